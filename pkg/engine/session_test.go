package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/lazyval/pkg/config"
	"github.com/openfroyo/lazyval/pkg/engine"
	"github.com/openfroyo/lazyval/pkg/printer"
	"github.com/openfroyo/lazyval/pkg/store"
	"github.com/openfroyo/lazyval/pkg/telemetry"
)

const servicesStar = `
name = "demo"
services = {"web": {"port": 8080, "hosts": ["a", "b"]}}
broken = lazy(lambda: fail("boom"))
`

func newLoadedSession(t *testing.T, cfg engine.Config, script string) *engine.Session {
	t.Helper()
	s := engine.NewSession(cfg)
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.LoadString(context.Background(), config.FormatStarlark, "test.star", script)
	require.NoError(t, err)
	return s
}

func renderString(t *testing.T, s *engine.Session, attrPath string, opts printer.Options) (string, *engine.RenderResult) {
	t.Helper()
	var buf bytes.Buffer
	res, err := s.Render(context.Background(), &buf, engine.RenderRequest{AttrPath: attrPath, Options: opts})
	require.NoError(t, err)
	return buf.String(), res
}

func TestSession_RenderRoot(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, servicesStar)
	assert.Equal(t, engine.SessionStatusLoaded, s.Status())

	out, res := renderString(t, s, "", printer.DefaultOptions())
	assert.Equal(t, `{ broken = «thunk»; name = "demo"; services = { web = { hosts = [ "a" "b" ]; port = 8080; }; }; }`, out)
	assert.Equal(t, s.ID(), res.SessionID)
	assert.Equal(t, 0, res.Stats.Errors)
}

func TestSession_RenderSelected(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, servicesStar)

	tests := []struct {
		attrPath string
		want     string
	}{
		{"name", `"demo"`},
		{"services.web.port", "8080"},
		{"services.web.hosts.1", `"b"`},
		{`services."web"`, `{ hosts = [ "a" "b" ]; port = 8080; }`},
	}

	for _, tt := range tests {
		t.Run(tt.attrPath, func(t *testing.T) {
			out, res := renderString(t, s, tt.attrPath, printer.DefaultOptions())
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.attrPath, res.AttrPath)
		})
	}
}

func TestSession_SelectErrors(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, servicesStar)

	tests := []struct {
		attrPath string
		code     string
		message  string
	}{
		{"missing", engine.ErrCodeNotFound, "attribute 'missing' in selection path 'missing' not found"},
		{"name.x", engine.ErrCodeTypeMismatch, "selection path 'name' should be a set but is a string"},
		{"services.web.hosts.x", engine.ErrCodeTypeMismatch, "should be a set but is a list"},
		{"services.0", engine.ErrCodeTypeMismatch, "selection path 'services' should be a list but is a set"},
		{"services.web.hosts.5", engine.ErrCodeOutOfRange, "list index 5 in selection path 'services.web.hosts.5' is out of range"},
		{"broken.x", engine.ErrCodeEvalFailed, "boom"},
		{"a..b", engine.ErrCodeValidation, "empty attribute name"},
	}

	for _, tt := range tests {
		t.Run(tt.attrPath, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := s.Render(context.Background(), &buf, engine.RenderRequest{
				AttrPath: tt.attrPath,
				Options:  printer.DefaultOptions(),
			})
			require.Error(t, err)
			assert.True(t, engine.IsSelectError(err), "error = %v", err)
			assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassSelect, Code: tt.code})
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, buf.String())
		})
	}

	// a failed selection leaves the session usable
	out, _ := renderString(t, s, "name", printer.DefaultOptions())
	assert.Equal(t, `"demo"`, out)
}

func TestSession_InlineErrorsAreStats(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, servicesStar)

	opts := printer.DefaultOptions()
	opts.Force = true
	out, res := renderString(t, s, "broken", opts)

	assert.True(t, strings.HasPrefix(out, "«"), "output = %s", out)
	assert.Contains(t, out, "boom")
	assert.Equal(t, 1, res.Stats.Errors)
	assert.Equal(t, 1, s.Stats().Errors)
}

func TestSession_SourceOptions(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, `
print_options = {"max_depth": 1}
a = {"b": {"c": 1}}
`)

	opts, err := s.SourceOptions(printer.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, opts.MaxDepth)

	out, res := renderString(t, s, "", opts)
	assert.Equal(t, `{ a = { ... }; }`, out)
	assert.Equal(t, 1, res.Stats.Elided)

	bad := newLoadedSession(t, engine.Config{}, `print_options = {"colour": True}`)
	_, err = bad.SourceOptions(printer.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassLoad, Code: engine.ErrCodeValidation})
}

func TestSession_Lifecycle(t *testing.T) {
	s := engine.NewSession(engine.Config{})
	assert.Equal(t, engine.SessionStatusPending, s.Status())
	assert.Nil(t, s.Document())

	var buf bytes.Buffer
	_, err := s.Render(context.Background(), &buf, engine.RenderRequest{Options: printer.DefaultOptions()})
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassRender, Code: engine.ErrCodeNotLoaded})

	_, err = s.LoadString(context.Background(), config.FormatStarlark, "bad.star", "x = (")
	require.Error(t, err)
	assert.True(t, engine.IsLoadError(err))
	assert.Equal(t, engine.SessionStatusFailed, s.Status())

	_, err = s.LoadString(context.Background(), config.FormatStarlark, "good.star", "x = 1")
	require.NoError(t, err)
	assert.Equal(t, engine.SessionStatusLoaded, s.Status())
	assert.Equal(t, 2, s.Stats().Loads)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, engine.SessionStatusClosed, s.Status())

	_, err = s.Render(context.Background(), &buf, engine.RenderRequest{Options: printer.DefaultOptions()})
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassRender, Code: engine.ErrCodeSessionClosed})
	_, err = s.LoadString(context.Background(), config.FormatStarlark, "good.star", "x = 1")
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassLoad, Code: engine.ErrCodeSessionClosed})
}

func TestSession_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "default.star")
	require.NoError(t, os.WriteFile(path, []byte("greeting = \"hi\"\n"), 0o644))

	s := engine.NewSession(engine.Config{})
	defer s.Close()

	doc, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, config.FormatStarlark, doc.Format)

	out, _ := renderString(t, s, "greeting", printer.DefaultOptions())
	assert.Equal(t, `"hi"`, out)

	other := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(other, []byte("{}"), 0o644))
	_, err = s.Load(context.Background(), other)
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassLoad, Code: engine.ErrCodeUnsupportedFormat})
}

func TestSession_CUE(t *testing.T) {
	s := engine.NewSession(engine.Config{})
	defer s.Close()

	_, err := s.LoadString(context.Background(), config.FormatCUE, "svc.cue", "name: \"svc\"\nport: int\n")
	require.NoError(t, err)

	opts := printer.DefaultOptions()
	opts.Force = true
	out, res := renderString(t, s, "port", opts)
	assert.Equal(t, "«port: incomplete value int»", out)
	assert.Equal(t, 1, res.Stats.Errors)
}

func TestSession_InvalidOptions(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, "x = 1")

	opts := printer.DefaultOptions()
	opts.MaxDepth = -2
	_, err := s.Render(context.Background(), &bytes.Buffer{}, engine.RenderRequest{Options: opts})
	assert.ErrorIs(t, err, &engine.EngineError{Class: engine.ErrorClassRender, Code: engine.ErrCodeValidation})
}

func TestSession_CancelledRender(t *testing.T) {
	tel := telemetry.NewNopTelemetry()
	s := newLoadedSession(t, engine.Config{Telemetry: tel}, servicesStar)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Render(ctx, &bytes.Buffer{}, engine.RenderRequest{Options: printer.DefaultOptions()})
	require.Error(t, err)
	assert.True(t, engine.IsRenderError(err))
	assert.True(t, engine.IsCanceled(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSession_Metrics(t *testing.T) {
	tel := telemetry.NewNopTelemetry()
	s := newLoadedSession(t, engine.Config{Telemetry: tel}, servicesStar)
	renderString(t, s, "", printer.DefaultOptions())

	reg := tel.Metrics.Registry()
	require.NotNil(t, reg)
	for _, name := range []string{
		"lazyval_renders_total",
		"lazyval_render_duration_seconds",
		"lazyval_loads_total",
		"lazyval_active_sessions",
	} {
		n, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, 1, n, name)
	}
}

func TestSession_RegistersDerivations(t *testing.T) {
	db, err := store.NewSQLiteStore(store.Config{Path: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.Init(ctx))
	require.NoError(t, db.Migrate(ctx))
	defer db.Close()

	s := newLoadedSession(t, engine.Config{Store: db, Registry: db},
		`hello = derivation(name = "hello", builder = "/bin/sh")`)

	opts := printer.DefaultOptions()
	opts.Force = true
	opts.DerivationPaths = true
	out, _ := renderString(t, s, "hello", opts)
	assert.Regexp(t, `^«derivation /nix/store/[0-9a-z]{32}-hello\.drv»$`, out)
	assert.GreaterOrEqual(t, s.Stats().Derivations, 1)

	paths, err := db.ListPaths(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var drv, outPath *store.PathInfo
	for _, p := range paths {
		if p.Path.IsDerivation() {
			drv = p
		} else {
			outPath = p
		}
	}
	require.NotNil(t, drv)
	require.NotNil(t, outPath)
	require.NotNil(t, outPath.Deriver)
	assert.Equal(t, drv.Path, *outPath.Deriver)
	assert.Equal(t, "/nix/store/"+drv.Path.String(), strings.TrimSuffix(out[len("«derivation "):], "»"))
}

func TestSession_ConcurrentRenders(t *testing.T) {
	s := newLoadedSession(t, engine.Config{}, servicesStar)

	opts := printer.DefaultOptions()
	opts.Force = true
	want, _ := renderString(t, s, "services", opts)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var buf bytes.Buffer
			if _, err := s.Render(context.Background(), &buf, engine.RenderRequest{AttrPath: "services", Options: opts}); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = buf.String()
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 9, s.Stats().Renders)
}
