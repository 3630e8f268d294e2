package config

import (
	"path/filepath"
	"testing"

	"github.com/openfroyo/lazyval/pkg/printer"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(`
print:
  force: true
  max_depth: 2
  max_string_length: 80
attr: packages.hello
log_level: debug
`))
	if err != nil {
		t.Fatalf("ParseProfile() error = %v", err)
	}

	if !p.Print.Force || p.Print.MaxDepth != 2 || p.Print.MaxStringLength != 80 {
		t.Errorf("print options not decoded: %+v", p.Print)
	}
	// keys the file leaves out keep their defaults
	if !p.Print.TrackRepeated || p.Print.MaxAttributes != printer.Unlimited || p.Print.MaxListItems != printer.Unlimited {
		t.Errorf("defaults lost: %+v", p.Print)
	}
	if p.Attr != "packages.hello" || p.LogLevel != "debug" {
		t.Errorf("profile fields = %+v", p)
	}
}

func TestParseProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative bound", "print:\n  max_depth: -1\n"},
		{"negative string length", "print:\n  max_string_length: -5\n"},
		{"bad log level", "log_level: loud\n"},
		{"not yaml", "print: [\n"},
		{"wrong type", "print:\n  force: maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	writeFile(t, path, "print:\n  ansi_colors: true\n")

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if !p.Print.ANSIColors {
		t.Error("ansi_colors not set")
	}

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestDecodeOptions(t *testing.T) {
	base := printer.DefaultOptions()

	opts, err := DecodeOptions(map[string]interface{}{
		"force":          true,
		"max_list_items": int64(3),
	}, base)
	if err != nil {
		t.Fatalf("DecodeOptions() error = %v", err)
	}
	if !opts.Force || opts.MaxListItems != 3 || opts.MaxDepth != printer.Unlimited {
		t.Errorf("decoded = %+v", opts)
	}

	got, err := DecodeOptions(nil, base)
	if err != nil || got != base {
		t.Errorf("DecodeOptions(nil) = %+v, %v", got, err)
	}

	for name, raw := range map[string]map[string]interface{}{
		"unknown key":    {"colour": true},
		"negative bound": {"max_depth": int64(-1)},
		"wrong type":     {"force": "yes"},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeOptions(raw, base)
			if err == nil {
				t.Fatal("expected error")
			}
			if got != base {
				t.Errorf("base not returned on error: %+v", got)
			}
		})
	}
}

func TestValidateOptions(t *testing.T) {
	if err := ValidateOptions(printer.DefaultOptions()); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
	if err := ValidateOptions(printer.ErrorOptions()); err != nil {
		t.Errorf("error options invalid: %v", err)
	}
	opts := printer.DefaultOptions()
	opts.MaxAttributes = -1
	if err := ValidateOptions(opts); err == nil {
		t.Error("expected error for negative bound")
	}
}
