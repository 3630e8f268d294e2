package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/telemetry"
	"github.com/openfroyo/lazyval/pkg/value"
)

// CUELoader loads CUE files and packages. Only the root is converted
// eagerly; fields and list elements become thunks that convert on demand,
// so values that are not concrete fail only when forced.
type CUELoader struct {
	ctx    *cue.Context
	logger *telemetry.Logger
}

// NewCUELoader creates a new CUE loader.
func NewCUELoader(logger *telemetry.Logger) *CUELoader {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &CUELoader{
		ctx:    cuecontext.New(),
		logger: logger.NewComponentLogger("loader").WithField("format", string(FormatCUE)),
	}
}

// Format implements Loader.
func (cl *CUELoader) Format() Format { return FormatCUE }

// Load loads a single CUE file, or the CUE package in a directory.
func (cl *CUELoader) Load(ctx context.Context, ev *eval.Evaluator, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return cl.LoadDirectory(ctx, ev, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.LoadString(ctx, ev, path, string(content))
}

// LoadDirectory loads a directory as a CUE package.
func (cl *CUELoader) LoadDirectory(ctx context.Context, ev *eval.Evaluator, dir string) (*Document, error) {
	buildInstances := load.Instances(nil, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	val := cl.ctx.BuildInstance(inst)

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return cl.document(ctx, ev, val, files)
}

// LoadString compiles src as if it were read from filename.
func (cl *CUELoader) LoadString(ctx context.Context, ev *eval.Evaluator, filename, src string) (*Document, error) {
	val := cl.ctx.CompileString(src, cue.Filename(filename))
	return cl.document(ctx, ev, val, []string{filename})
}

func (cl *CUELoader) document(ctx context.Context, ev *eval.Evaluator, val cue.Value, files []string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := val.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root, err := convertCUE(ev, val)
	if err != nil {
		return nil, err
	}

	cl.logger.WithField("files", len(files)).Debug("loaded CUE instance")
	return &Document{Format: FormatCUE, Root: root, Files: files}, nil
}

// convertCUE converts one CUE value. Struct fields and list elements are
// left as thunks.
func convertCUE(ev *eval.Evaluator, v cue.Value) (value.Ref, error) {
	arena := ev.Arena()

	if d, ok := v.Default(); ok {
		v = d
	}
	if err := v.Err(); err != nil {
		return value.NilRef, cueEvalError(err, v)
	}

	switch v.Kind() {
	case cue.BottomKind:
		return value.NilRef, eval.NewError(eval.ErrorClassIncomplete,
			"%s: incomplete value %s", v.Path(), v.IncompleteKind()).WithPos(toValuePos(v.Pos()))
	case cue.NullKind:
		return arena.NewNull(), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		return arena.NewBool(b), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		return arena.NewInt(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		return arena.NewFloat(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		return arena.NewString(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		return arena.NewString(string(b)), nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		bb := value.NewBindingsBuilder(ev.Symbols(), 8)
		for iter.Next() {
			bb.Set(iter.Selector().Unquoted(), lazyCUE(ev, iter.Value()))
		}
		return arena.NewAttrs(bb.Finish()), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return value.NilRef, cueEvalError(err, v)
		}
		var elems []value.Ref
		for iter.Next() {
			elems = append(elems, lazyCUE(ev, iter.Value()))
		}
		return arena.NewList(elems), nil
	default:
		return value.NilRef, eval.TypeError("%s: unsupported CUE kind %s", v.Path(), v.Kind()).
			WithPos(toValuePos(v.Pos()))
	}
}

func lazyCUE(ev *eval.Evaluator, v cue.Value) value.Ref {
	return ev.NewThunk(func(value.EvalContext) (value.Ref, error) {
		return convertCUE(ev, v)
	})
}

// cueEvalError wraps a CUE error as a type error positioned at the first
// location CUE reports, falling back to the value's own position.
func cueEvalError(err error, v cue.Value) *eval.EvalError {
	msg := err.Error()
	pos := v.Pos()
	if errs := errors.Errors(err); len(errs) > 0 {
		msg = errs[0].Error()
		if positions := errors.Positions(errs[0]); len(positions) > 0 {
			pos = positions[0]
		}
	}
	return eval.TypeError("%s", msg).WithPos(toValuePos(pos)).WithCause(err)
}

// formatCUEError flattens CUE errors, with their positions, into one error.
func formatCUEError(err error) error {
	details := strings.TrimSpace(errors.Details(err, nil))
	return fmt.Errorf("cue evaluation failed: %s", details)
}

func toValuePos(p token.Pos) value.Pos {
	if !p.IsValid() {
		return value.NoPos
	}
	return value.Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}
