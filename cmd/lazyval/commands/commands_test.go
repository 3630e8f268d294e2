package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "abc123", "2026-01-01")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestPrintCommand(t *testing.T) {
	script := writeSource(t, "default.star", `
a = 1
b = [1, 2, 3]
s = {"name": "web", "port": 8080}
later = lazy(lambda: "ready")
env = mode
`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "lazy by default",
			args: []string{"print", script, "--arg", "mode=dev"},
			want: `{ a = 1; b = [ 1 2 3 ]; env = "dev"; later = «thunk»; s = { name = "web"; port = 8080; }; }`,
		},
		{
			name: "forced with bounds",
			args: []string{"print", script, "--arg", "mode=dev", "--force", "--max-items", "2"},
			want: `{ a = 1; b = [ 1 2 «1 item elided»]; env = "dev"; later = "ready"; s = { name = "web"; port = 8080; }; }`,
		},
		{
			name: "selected attribute",
			args: []string{"print", script, "--arg", "mode=dev", "--attr", "s.port"},
			want: "8080",
		},
		{
			name: "depth bound",
			args: []string{"print", script, "--arg", "mode=prod", "-A", "s", "--max-depth", "0"},
			want: "{ ... }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, append(tt.args, "--color", "never")...)
			if err != nil {
				t.Fatalf("print error = %v", err)
			}
			if got := strings.TrimSuffix(out, "\n"); got != tt.want {
				t.Errorf("output:\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestPrintCommand_OptionPrecedence(t *testing.T) {
	script := writeSource(t, "opts.star", `
print_options = {"max_depth": 1}
a = {"b": {"c": 1}}
`)
	profile := writeSource(t, "profile.yaml", "print:\n  max_depth: 0\n  force: true\nattr: a\n")

	// the source's print_options win over the profile
	out, err := runCommand(t, "print", script, "--profile", profile, "--color", "never")
	if err != nil {
		t.Fatalf("print error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "{ b = { ... }; }" {
		t.Errorf("profile + source options = %s", got)
	}

	// flags win over both
	out, err = runCommand(t, "print", script, "--profile", profile, "--max-depth", "5", "--color", "never")
	if err != nil {
		t.Fatalf("print error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "{ b = { c = 1; }; }" {
		t.Errorf("flag override = %s", got)
	}
}

func TestPrintCommand_CUE(t *testing.T) {
	src := writeSource(t, "svc.cue", "name: \"svc\"\nport: int\n")

	out, err := runCommand(t, "print", src, "--force", "--color", "never")
	if err != nil {
		t.Fatalf("print error = %v", err)
	}
	if got := strings.TrimSpace(out); got != `{ name = "svc"; port = «port: incomplete value int»; }` {
		t.Errorf("output = %s", got)
	}
}

func TestPrintCommand_Colors(t *testing.T) {
	script := writeSource(t, "c.star", "n = 1\n")

	out, err := runCommand(t, "print", script, "--color", "always")
	if err != nil {
		t.Fatalf("print error = %v", err)
	}
	if !strings.Contains(out, "\x1b[") {
		t.Errorf("expected ANSI escapes in %q", out)
	}
}

func TestPrintCommand_Errors(t *testing.T) {
	script := writeSource(t, "e.star", "x = 1\n")
	other := writeSource(t, "e.json", "{}")

	tests := []struct {
		name string
		args []string
	}{
		{"no file", []string{"print"}},
		{"bad color", []string{"print", script, "--color", "sometimes"}},
		{"bad arg", []string{"print", script, "--arg", "novalue"}},
		{"missing attribute", []string{"print", script, "--attr", "y"}},
		{"unknown format", []string{"print", other}},
		{"negative bound", []string{"print", script, "--max-depth", "-1"}},
		{"missing profile", []string{"print", script, "--profile", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCommand(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStoreCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "store.db")

	out, err := runCommand(t, "store", "add", "hello.txt", "--text", "hello world", "--store", db)
	if err != nil {
		t.Fatalf("store add error = %v", err)
	}
	added := strings.TrimSpace(out)
	if !strings.HasPrefix(added, "/nix/store/") || !strings.HasSuffix(added, "-hello.txt") {
		t.Errorf("store add printed %q", added)
	}

	again, err := runCommand(t, "store", "add", "hello.txt", "--text", "hello world", "--store", db)
	if err != nil {
		t.Fatalf("second store add error = %v", err)
	}
	if strings.TrimSpace(again) != added {
		t.Errorf("path not deterministic: %q vs %q", again, added)
	}

	script := writeSource(t, "drv.star", `hello = derivation(name = "hello", builder = "/bin/sh")`)
	if _, err := runCommand(t, "print", script, "--force", "--derivation-paths", "--store", db, "--color", "never"); err != nil {
		t.Fatalf("print error = %v", err)
	}

	out, err = runCommand(t, "store", "ls", "--store", db)
	if err != nil {
		t.Fatalf("store ls error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected a header and 3 paths, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "PATH") {
		t.Errorf("missing header: %s", lines[0])
	}
	if !strings.Contains(out, added) || !strings.Contains(out, "-hello.drv") {
		t.Errorf("listing incomplete:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "lazyval test") || !strings.Contains(out, "commit: abc123") {
		t.Errorf("version output = %s", out)
	}
}

func TestParseArgs(t *testing.T) {
	got, err := parseArgs([]string{"env=prod", "empty=", "eq=a=b"})
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}
	if got["env"] != "prod" || got["empty"] != "" || got["eq"] != "a=b" {
		t.Errorf("parseArgs() = %v", got)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseArgs([]string{bad}); err == nil {
			t.Errorf("parseArgs(%q) expected error", bad)
		}
	}
}

func TestResolveColor(t *testing.T) {
	var buf bytes.Buffer

	if on, _ := resolveColor("always", &buf); !on {
		t.Error("always should enable colors")
	}
	if on, _ := resolveColor("never", &buf); on {
		t.Error("never should disable colors")
	}
	if on, _ := resolveColor("auto", &buf); on {
		t.Error("auto should not color a buffer")
	}

	t.Setenv("NO_COLOR", "1")
	if on, _ := resolveColor("auto", os.Stdout); on {
		t.Error("auto should honour NO_COLOR")
	}

	if _, err := resolveColor("rainbow", &buf); err == nil {
		t.Error("expected error for unknown mode")
	}
}
