package store

import (
	"errors"
	"strings"
	"testing"
)

const testHash = "q790zdjk75hm2cn42nh77pqw4gbv1b88"

func TestParseStorePath(t *testing.T) {
	st := NewLocalStore("/nix/store/")

	tests := []struct {
		name    string
		in      string
		want    Path
		wantErr bool
	}{
		{"valid", "/nix/store/" + testHash + "-hello.txt", Path{Hash: testHash, Name: "hello.txt"}, false},
		{"uncleaned", "/nix/store//" + testHash + "-hello", Path{Hash: testHash, Name: "hello"}, false},
		{"other dir", "/tmp/" + testHash + "-hello", Path{}, true},
		{"nested", "/nix/store/" + testHash + "-hello/bin", Path{}, true},
		{"short", "/nix/store/abc-hello", Path{}, true},
		{"no dash", "/nix/store/" + testHash + "_hello", Path{}, true},
		{"bad hash char", "/nix/store/" + strings.Repeat("e", HashLen) + "-hello", Path{}, true},
		{"empty name", "/nix/store/" + testHash + "-", Path{}, true},
		{"dot name", "/nix/store/" + testHash + "-.hello", Path{}, true},
		{"illegal char", "/nix/store/" + testHash + "-he llo", Path{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ParseStorePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStorePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrBadStorePath) {
				t.Errorf("error %v does not wrap ErrBadStorePath", err)
			}
			if got != tt.want {
				t.Errorf("ParseStorePath() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPrintStorePath(t *testing.T) {
	st := NewLocalStore("")
	p := Path{Hash: testHash, Name: "x.drv"}

	if got := st.PrintStorePath(p); got != DefaultStoreDir+"/"+testHash+"-x.drv" {
		t.Errorf("PrintStorePath() = %s", got)
	}
	if !p.IsDerivation() {
		t.Error("IsDerivation() = false for .drv path")
	}
	if !st.IsInStore(st.PrintStorePath(p) + "/bin/sh") {
		t.Error("IsInStore() = false for path below a store path")
	}
	if st.IsInStore("/nix/storefoo") {
		t.Error("IsInStore() = true for sibling directory")
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"hello", "hello-2.0", "a+b", "x_y", "q?=", strings.Repeat("a", MaxNameLen)}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}

	invalid := []string{"", ".x", "a/b", "a b", "ü", strings.Repeat("a", MaxNameLen+1)}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) accepted", name)
		}
	}
}
