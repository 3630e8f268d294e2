package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/lazyval/pkg/config"
	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/printer"
	"github.com/openfroyo/lazyval/pkg/store"
	"github.com/openfroyo/lazyval/pkg/telemetry"
	"github.com/openfroyo/lazyval/pkg/value"
)

// PathRegistry records valid store paths. *store.SQLiteStore implements it.
type PathRegistry interface {
	AddPath(ctx context.Context, info *store.PathInfo) error
}

// Config configures a Session.
type Config struct {
	// Telemetry receives logs, spans and metrics. Defaults to no-op
	// telemetry.
	Telemetry *telemetry.Telemetry

	// Store prints and computes store paths. Defaults to the local store.
	Store store.Store

	// Registry, when set, registers every derivation instantiated while
	// loading or rendering.
	Registry PathRegistry

	// Starlark configures the Starlark loader.
	Starlark config.StarlarkOptions

	// MaxCallDepth bounds nested forcing. Zero means eval.DefaultMaxCallDepth.
	MaxCallDepth int

	// TraceOutput receives builtins.trace output. Defaults to stderr.
	TraceOutput io.Writer

	// TraceColors enables ANSI colors in traced values.
	TraceColors bool
}

// RenderRequest describes one render.
type RenderRequest struct {
	// AttrPath selects the value to print, empty for the root.
	AttrPath string

	// Options bound and color the output.
	Options printer.Options
}

// RenderResult summarizes a finished render.
type RenderResult struct {
	SessionID string
	AttrPath  string
	Stats     printer.Stats
	Duration  time.Duration
}

// SessionStats accumulates the stats of every render of a session.
type SessionStats struct {
	Loads       int `json:"loads"`
	Renders     int `json:"renders"`
	Derivations int `json:"derivations"`
	printer.Stats
}

// Session loads one source and renders values from it. Operations on a
// session are serialized.
type Session struct {
	id  string
	cfg Config

	tel    *telemetry.Telemetry
	logger *telemetry.Logger

	mu     sync.Mutex
	status SessionStatus
	source string
	ev     *eval.Evaluator
	doc    *config.Document
	stats  SessionStats
}

// NewSession creates a session with a fresh id.
func NewSession(cfg Config) *Session {
	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.NewNopTelemetry()
	}
	id := uuid.NewString()
	s := &Session{
		id:     id,
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("engine").WithSessionID(id),
		status: SessionStatusPending,
	}
	tel.Metrics.SessionOpened()
	s.logger.Debug("session opened")
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Status returns the lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stats returns the accumulated stats.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Document returns the loaded document, nil before a successful load.
func (s *Session) Document() *config.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Evaluator returns the evaluator owning the loaded values, nil before a
// successful load. Callers must not force values while a render runs.
func (s *Session) Evaluator() *eval.Evaluator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ev
}

// Load reads path, detecting the format from its extension. Each load
// starts from an empty arena, so values of a previous load are dropped.
func (s *Session) Load(ctx context.Context, path string) (*config.Document, error) {
	format, err := config.DetectFormat(path)
	if err != nil {
		return nil, NewLoadError("cannot load source", err).
			WithSource(path).WithCode(ErrCodeUnsupportedFormat)
	}
	return s.load(ctx, path, format, func(l config.Loader, ev *eval.Evaluator) (*config.Document, error) {
		return l.Load(ctx, ev, path)
	})
}

// LoadString loads src as a source of the given format. filename is used in
// positions and errors.
func (s *Session) LoadString(ctx context.Context, format config.Format, filename, src string) (*config.Document, error) {
	return s.load(ctx, filename, format, func(l config.Loader, ev *eval.Evaluator) (*config.Document, error) {
		return l.LoadString(ctx, ev, filename, src)
	})
}

func (s *Session) load(ctx context.Context, source string, format config.Format,
	run func(config.Loader, *eval.Evaluator) (*config.Document, error)) (*config.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return nil, NewLoadError("session is closed", nil).
			WithSource(source).WithCode(ErrCodeSessionClosed)
	}

	loader, err := s.newLoader(format)
	if err != nil {
		return nil, NewLoadError("cannot load source", err).
			WithSource(source).WithCode(ErrCodeUnsupportedFormat)
	}

	ctx, span := s.tel.Tracer.StartLoadSpan(ctx, source, string(format))
	defer span.End()
	logger := s.logger.WithSource(source, string(format))
	timer := telemetry.NewTimer()

	ev := s.newEvaluator()
	doc, err := run(loader, ev)
	duration := timer.Duration()
	s.stats.Loads++

	if err != nil {
		s.status = SessionStatusFailed
		s.ev, s.doc = nil, nil
		s.tel.Metrics.RecordLoad(string(format), statusOf(err), duration)
		telemetry.RecordError(span, err)
		logger.WithError(err).Warn("load failed")

		code := ErrCodeEvalFailed
		if IsCanceled(err) {
			code = ErrCodeCanceled
		}
		return nil, NewLoadError("failed to load source", err).WithSource(source).WithCode(code)
	}

	s.status = SessionStatusLoaded
	s.source = source
	s.ev, s.doc = ev, doc
	s.tel.Metrics.RecordLoad(string(format), telemetry.StatusOK, duration)
	telemetry.RecordSuccess(span)
	logger.WithFields(map[string]interface{}{
		"files":       len(doc.Files),
		"duration_ms": duration.Milliseconds(),
	}).Info("source loaded")
	return doc, nil
}

func (s *Session) newLoader(format config.Format) (config.Loader, error) {
	logger := s.tel.Logger.NewComponentLogger("loader").WithSessionID(s.id)
	switch format {
	case config.FormatStarlark:
		return config.NewStarlarkLoader(s.cfg.Starlark, logger), nil
	case config.FormatCUE:
		return config.NewCUELoader(logger), nil
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

func (s *Session) newEvaluator() *eval.Evaluator {
	return eval.New(value.NewArena(), s.cfg.Store, eval.Config{
		MaxCallDepth: s.cfg.MaxCallDepth,
		TraceOutput:  s.cfg.TraceOutput,
		TraceColors:  s.cfg.TraceColors,
		OnDerivation: s.registerDerivation,
	})
}

// registerDerivation runs while the session lock is held by Load or Render.
func (s *Session) registerDerivation(ctx context.Context, drv, out store.Path) error {
	s.stats.Derivations++
	s.tel.Metrics.RecordDerivation()
	if s.cfg.Registry == nil {
		return nil
	}

	if err := s.cfg.Registry.AddPath(ctx, &store.PathInfo{Path: drv}); err != nil {
		return NewStoreError("failed to register derivation", err).WithDetail("path", drv.String())
	}
	deriver := drv
	if err := s.cfg.Registry.AddPath(ctx, &store.PathInfo{Path: out, Deriver: &deriver}); err != nil {
		return NewStoreError("failed to register output", err).WithDetail("path", out.String())
	}
	s.logger.WithFields(map[string]interface{}{
		"drv": drv.String(),
		"out": out.String(),
	}).Debug("derivation registered")
	return nil
}

// SourceOptions applies the print_options the loaded source declared on
// top of base.
func (s *Session) SourceOptions(base printer.Options) (printer.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return base, NewRenderError("nothing loaded", nil).WithCode(ErrCodeNotLoaded)
	}
	opts, err := config.DecodeOptions(s.doc.PrintOptions, base)
	if err != nil {
		return base, NewLoadError("invalid print_options", err).
			WithSource(s.source).WithCode(ErrCodeValidation)
	}
	return opts, nil
}

// Select follows attrPath from the root of the loaded document.
func (s *Session) Select(ctx context.Context, attrPath string) (value.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return value.NilRef, err
	}
	return selectAttrPath(ctx, s.ev, s.doc.Root, attrPath)
}

func (s *Session) ready() error {
	switch {
	case s.status.IsTerminal():
		return NewRenderError("session is closed", nil).WithCode(ErrCodeSessionClosed)
	case !s.status.CanRender():
		return NewRenderError("nothing loaded", nil).WithCode(ErrCodeNotLoaded)
	}
	return nil
}

// Render selects req.AttrPath and prints it to w. Evaluation failures
// inside the value are printed inline; a cancelled context aborts the render
// and is returned wrapped in a render error.
func (s *Session) Render(ctx context.Context, w io.Writer, req RenderRequest) (*RenderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := config.ValidateOptions(req.Options); err != nil {
		return nil, NewRenderError("invalid print options", err).WithCode(ErrCodeValidation)
	}

	format := string(s.doc.Format)
	ctx, span := s.tel.Tracer.StartRenderSpan(ctx, s.id, req.AttrPath)
	defer span.End()
	logger := s.logger.WithAttrPath(req.AttrPath)
	timer := telemetry.NewTimer()

	ref, err := selectAttrPath(ctx, s.ev, s.doc.Root, req.AttrPath)
	if err != nil {
		s.tel.Metrics.RecordRender(format, statusOf(err), timer.Duration(), 0, 0, 0)
		telemetry.RecordError(span, err)
		logger.WithError(err).Warn("selection failed")
		return nil, err
	}

	stats, err := printer.PrintValue(ctx, w, s.ev, ref, req.Options)
	duration := timer.Duration()
	s.stats.Renders++
	s.stats.Attributes += stats.Attributes
	s.stats.ListItems += stats.ListItems
	s.stats.Repeated += stats.Repeated
	s.stats.Elided += stats.Elided
	s.stats.Errors += stats.Errors

	s.tel.Metrics.RecordRender(format, statusOf(err), duration, stats.Errors, stats.Elided, stats.Repeated)
	telemetry.SetAttributes(span,
		telemetry.AttrAttributes.Int(stats.Attributes),
		telemetry.AttrListItems.Int(stats.ListItems),
		telemetry.AttrRepeated.Int(stats.Repeated),
		telemetry.AttrElided.Int(stats.Elided),
		telemetry.AttrEvalErrors.Int(stats.Errors),
	)

	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithError(err).Warn("render aborted")
		code := ErrCodeInternal
		if IsCanceled(err) {
			code = ErrCodeCanceled
		}
		return nil, NewRenderError("render aborted", err).WithAttrPath(req.AttrPath).WithCode(code)
	}

	telemetry.RecordSuccess(span)
	logger.WithFields(map[string]interface{}{
		"attributes":  stats.Attributes,
		"list_items":  stats.ListItems,
		"eval_errors": stats.Errors,
		"duration_ms": duration.Milliseconds(),
	}).Debug("render complete")

	return &RenderResult{
		SessionID: s.id,
		AttrPath:  req.AttrPath,
		Stats:     stats,
		Duration:  duration,
	}, nil
}

// Close ends the session. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsTerminal() {
		return nil
	}
	s.status = SessionStatusClosed
	s.ev, s.doc = nil, nil
	s.tel.Metrics.SessionClosed()
	s.logger.WithFields(map[string]interface{}{
		"loads":   s.stats.Loads,
		"renders": s.stats.Renders,
	}).Debug("session closed")
	return nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return telemetry.StatusOK
	case IsCanceled(err):
		return telemetry.StatusCanceled
	default:
		return telemetry.StatusError
	}
}
