package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/printer"
)

const serviceCUE = `
name:     "svc"
port:     int
replicas: *2 | int
tags: ["a", "b"]
nested: {x: 1.5, y: null, z: true}
`

func TestCUELoader_LoadString(t *testing.T) {
	ev := newTestEvaluator()
	loader := NewCUELoader(nil)

	doc, err := loader.LoadString(context.Background(), ev, "service.cue", serviceCUE)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if doc.Format != FormatCUE {
		t.Errorf("Format = %s", doc.Format)
	}
	if len(doc.Files) != 1 || doc.Files[0] != "service.cue" {
		t.Errorf("Files = %v", doc.Files)
	}

	lazy := render(ev, doc.Root, nil)
	if lazy != "{ name = «thunk»; nested = «thunk»; port = «thunk»; replicas = «thunk»; tags = «thunk»; }" {
		t.Errorf("unforced render = %s", lazy)
	}

	forced := render(ev, doc.Root, func(o *printer.Options) { o.Force = true })
	want := `{ name = "svc"; nested = { x = 1.5; y = null; z = true; }; port = «port: incomplete value int»; replicas = 2; tags = [ "a" "b" ]; }`
	if forced != want {
		t.Errorf("forced render:\n got: %s\nwant: %s", forced, want)
	}
}

func TestCUELoader_IncompleteIsClassified(t *testing.T) {
	ev := newTestEvaluator()
	doc, err := NewCUELoader(nil).LoadString(context.Background(), ev, "service.cue", serviceCUE)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	err = ev.Force(context.Background(), attr(t, ev, doc.Root, "port"))
	if eval.ClassOf(err) != eval.ErrorClassIncomplete {
		t.Fatalf("expected an incomplete error, got %v", err)
	}
	if !strings.Contains(err.Error(), "service.cue:3:") {
		t.Errorf("error does not carry the field position: %v", err)
	}
}

func TestCUELoader_CompileError(t *testing.T) {
	_, err := NewCUELoader(nil).LoadString(context.Background(), newTestEvaluator(), "bad.cue", "a: {")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "cue evaluation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCUELoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewCUELoader(nil).LoadString(ctx, newTestEvaluator(), "x.cue", "a: 1"); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCUELoader_LoadFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cue"), "package demo\n\na: 1\n")
	writeFile(t, filepath.Join(dir, "b.cue"), "package demo\n\nb: a + 1\n")

	loader := NewCUELoader(nil)
	force := func(o *printer.Options) { o.Force = true }

	ev := newTestEvaluator()
	doc, err := loader.Load(context.Background(), ev, filepath.Join(dir, "a.cue"))
	if err != nil {
		t.Fatalf("Load(file) error = %v", err)
	}
	if got := render(ev, doc.Root, force); got != "{ a = 1; }" {
		t.Errorf("file render = %s", got)
	}

	ev = newTestEvaluator()
	doc, err = loader.Load(context.Background(), ev, dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if len(doc.Files) != 2 {
		t.Errorf("Files = %v", doc.Files)
	}
	if got := render(ev, doc.Root, force); got != "{ a = 1; b = 2; }" {
		t.Errorf("directory render = %s", got)
	}
}

func TestCUELoader_MissingFile(t *testing.T) {
	if _, err := NewCUELoader(nil).Load(context.Background(), newTestEvaluator(), filepath.Join(t.TempDir(), "none.cue")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.cue", "b.star", "c.BZL", "d.json"} {
		writeFile(t, filepath.Join(dir, name), "")
	}

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{filepath.Join(dir, "a.cue"), FormatCUE, false},
		{filepath.Join(dir, "b.star"), FormatStarlark, false},
		{filepath.Join(dir, "c.BZL"), FormatStarlark, false},
		{dir, FormatCUE, false},
		{filepath.Join(dir, "d.json"), "", true},
		{filepath.Join(dir, "missing.star"), "", true},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewLoader(t *testing.T) {
	for _, format := range []Format{FormatStarlark, FormatCUE} {
		loader, err := NewLoader(format, nil)
		if err != nil {
			t.Fatalf("NewLoader(%s) error = %v", format, err)
		}
		if loader.Format() != format {
			t.Errorf("Format() = %s, want %s", loader.Format(), format)
		}
	}
	if _, err := NewLoader("json", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
