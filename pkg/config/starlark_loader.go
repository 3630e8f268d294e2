package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/telemetry"
	"github.com/openfroyo/lazyval/pkg/value"
)

// DefaultStarlarkTimeout bounds the execution of a script's top level.
const DefaultStarlarkTimeout = 30 * time.Second

// PrintOptionsGlobal is the global a script assigns to request print options.
const PrintOptionsGlobal = "print_options"

// StarlarkOptions configures a StarlarkLoader.
type StarlarkOptions struct {
	// Timeout bounds top-level execution. Calls made while rendering are
	// bounded by the render context instead.
	Timeout time.Duration

	// Predeclared values are visible to scripts as globals.
	Predeclared map[string]interface{}
}

// StarlarkLoader executes Starlark scripts and converts their globals into
// an attribute set.
//
// Globals starting with an underscore are private and skipped. Dicts and
// structs become attribute sets, lists and tuples become lists, functions
// become lambdas and builtins become primops. lazy(fn) defers fn until the
// value is forced and derivation(**attrs) builds a derivation.
type StarlarkLoader struct {
	opts   StarlarkOptions
	logger *telemetry.Logger
}

// NewStarlarkLoader creates a new Starlark loader.
func NewStarlarkLoader(opts StarlarkOptions, logger *telemetry.Logger) *StarlarkLoader {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultStarlarkTimeout
	}
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &StarlarkLoader{
		opts:   opts,
		logger: logger.NewComponentLogger("loader").WithField("format", string(FormatStarlark)),
	}
}

// Format implements Loader.
func (sl *StarlarkLoader) Format() Format { return FormatStarlark }

// Load executes the script at path.
func (sl *StarlarkLoader) Load(ctx context.Context, ev *eval.Evaluator, path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return sl.LoadString(ctx, ev, path, string(src))
}

// LoadString executes src as if it were read from filename.
func (sl *StarlarkLoader) LoadString(ctx context.Context, ev *eval.Evaluator, filename, src string) (*Document, error) {
	predeclared, err := sl.predeclared()
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, sl.opts.Timeout)
	defer cancel()

	type result struct {
		globals starlark.StringDict
		err     error
	}
	resultCh := make(chan result, 1)

	thread := sl.newThread(filename)
	go func() {
		globals, err := starlark.ExecFile(thread, filename, src, predeclared)
		resultCh <- result{globals, err}
	}()

	var globals starlark.StringDict
	select {
	case <-execCtx.Done():
		thread.Cancel(execCtx.Err().Error())
		return nil, fmt.Errorf("starlark execution of %s interrupted: %w", filename, execCtx.Err())
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("starlark execution failed: %w", r.err)
		}
		globals = r.globals
	}

	doc := &Document{Format: FormatStarlark, Files: []string{filename}}

	if opts, ok := globals[PrintOptionsGlobal]; ok {
		raw, err := fromStarlarkValue(opts)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", PrintOptionsGlobal, err)
		}
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid %s: expected a dict, got %s", PrintOptionsGlobal, opts.Type())
		}
		doc.PrintOptions = m
	}

	conv := newStarlarkConverter(sl, ev)
	names := make([]string, 0, len(globals))
	for name := range globals {
		// Skip internal variables (starting with _)
		if len(name) > 0 && name[0] == '_' || name == PrintOptionsGlobal {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	bb := value.NewBindingsBuilder(ev.Symbols(), len(names))
	for _, name := range names {
		ref, err := conv.convert(globals[name])
		if err != nil {
			return nil, fmt.Errorf("failed to convert global %s: %w", name, err)
		}
		bb.Set(name, ref)
	}
	doc.Root = ev.Arena().NewAttrs(bb.Finish())

	sl.logger.WithSource(filename, string(FormatStarlark)).Debugf("loaded %d globals", len(names))
	return doc, nil
}

func (sl *StarlarkLoader) newThread(name string) *starlark.Thread {
	logger := sl.logger.WithField("thread", name)
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg)
		},
	}
}

// call runs fn on a fresh thread that is cancelled together with ctx.
func (sl *StarlarkLoader) call(ctx context.Context, fn starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	thread := sl.newThread("render")
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	res, err := starlark.Call(thread, fn, args, kwargs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, starlarkError(err)
	}
	return res, nil
}

func (sl *StarlarkLoader) predeclared() (starlark.StringDict, error) {
	predeclared := starlark.StringDict{
		"struct":     starlarkstruct.Default,
		"lazy":       starlark.NewBuiltin("lazy", builtinLazy),
		"derivation": starlark.NewBuiltin("derivation", builtinDerivation),
	}

	// Convert input to Starlark values and add to predeclared
	for key, val := range sl.opts.Predeclared {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}
	return predeclared, nil
}

// starlarkError turns a Starlark failure into an evaluation error located
// at the innermost frame with a source position. Builtin frames have none.
func starlarkError(err error) error {
	var ee *starlark.EvalError
	if !errors.As(err, &ee) {
		return eval.ThrowError(err.Error()).WithCause(err)
	}
	e := eval.ThrowError(ee.Msg).WithCause(err)
	for i := 0; i < len(ee.CallStack); i++ {
		if frame := ee.CallStack.At(i); frame.Pos.IsValid() && frame.Pos.Line > 0 {
			return e.WithPos(toPos(frame.Pos))
		}
	}
	return e
}

func toPos(p syntax.Position) value.Pos {
	return value.Pos{File: p.Filename(), Line: int(p.Line), Column: int(p.Col)}
}

// lazyValue is the result of lazy(fn): fn runs when the value is forced.
type lazyValue struct {
	fn starlark.Callable
}

var _ starlark.Value = (*lazyValue)(nil)

func (lv *lazyValue) String() string        { return "lazy(" + lv.fn.String() + ")" }
func (lv *lazyValue) Type() string          { return "lazy" }
func (lv *lazyValue) Freeze()               { lv.fn.Freeze() }
func (lv *lazyValue) Truth() starlark.Bool  { return starlark.True }
func (lv *lazyValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: lazy") }

func builtinLazy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	return &lazyValue{fn: fn}, nil
}

// derivationValue is the result of derivation(**attrs).
type derivationValue struct {
	attrs *starlark.Dict
}

var _ starlark.Value = (*derivationValue)(nil)

func (dv *derivationValue) String() string        { return "derivation(" + dv.attrs.String() + ")" }
func (dv *derivationValue) Type() string          { return "derivation" }
func (dv *derivationValue) Freeze()               { dv.attrs.Freeze() }
func (dv *derivationValue) Truth() starlark.Bool  { return starlark.True }
func (dv *derivationValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: derivation") }

func builtinDerivation(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: unexpected positional arguments", b.Name())
	}
	attrs := starlark.NewDict(len(kwargs))
	for _, kv := range kwargs {
		if err := attrs.SetKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return &derivationValue{attrs: attrs}, nil
}

// starlarkExternal carries a Starlark value with no counterpart in the
// value model.
type starlarkExternal struct {
	v starlark.Value
}

func (se starlarkExternal) TypeOf() string { return se.v.Type() }

func (se starlarkExternal) Print(w io.Writer) {
	fmt.Fprintf(w, "«starlark %s»", se.v.String())
}

// starlarkConverter converts Starlark values into one arena. Mutable
// containers are memoized by identity so shared and self-referencing
// values keep their shape.
type starlarkConverter struct {
	loader *StarlarkLoader
	ev     *eval.Evaluator
	memo   map[starlark.Value]value.Ref
	back   map[value.Ref]starlark.Value
}

func newStarlarkConverter(sl *StarlarkLoader, ev *eval.Evaluator) *starlarkConverter {
	return &starlarkConverter{
		loader: sl,
		ev:     ev,
		memo:   make(map[starlark.Value]value.Ref),
		back:   make(map[value.Ref]starlark.Value),
	}
}

func (c *starlarkConverter) convert(v starlark.Value) (value.Ref, error) {
	arena := c.ev.Arena()

	if v == nil {
		return arena.NewNull(), nil
	}
	if memoizable(v) {
		if ref, ok := c.memo[v]; ok {
			return ref, nil
		}
	}

	switch val := v.(type) {
	case starlark.NoneType:
		return arena.NewNull(), nil
	case starlark.Bool:
		return arena.NewBool(bool(val)), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return value.NilRef, fmt.Errorf("integer %s does not fit in 64 bits", val.String())
		}
		return arena.NewInt(i), nil
	case starlark.Float:
		return arena.NewFloat(float64(val)), nil
	case starlark.String:
		return arena.NewString(string(val)), nil
	case starlark.Bytes:
		return arena.NewString(string(val)), nil

	case *starlark.List:
		ref := arena.NewList(nil)
		c.remember(v, ref)
		elems := make([]value.Ref, val.Len())
		for i := 0; i < val.Len(); i++ {
			elem, err := c.convert(val.Index(i))
			if err != nil {
				return value.NilRef, err
			}
			elems[i] = elem
		}
		arena.SetList(ref, elems)
		return ref, nil

	case starlark.Tuple:
		elems := make([]value.Ref, len(val))
		for i, item := range val {
			elem, err := c.convert(item)
			if err != nil {
				return value.NilRef, err
			}
			elems[i] = elem
		}
		return arena.NewList(elems), nil

	case *starlark.Dict:
		ref := arena.NewAttrs(nil)
		c.remember(v, ref)
		bb := value.NewBindingsBuilder(c.ev.Symbols(), val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return value.NilRef, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			elem, err := c.convert(item[1])
			if err != nil {
				return value.NilRef, err
			}
			bb.Set(string(key), elem)
		}
		arena.SetAttrs(ref, bb.Finish())
		return ref, nil

	case *starlarkstruct.Struct:
		return c.convertFields(v, val.AttrNames(), val.Attr)

	case *starlarkstruct.Module:
		return c.convertFields(v, val.AttrNames(), val.Attr)

	case *starlark.Function:
		return c.convertFunction(val), nil

	case *starlark.Builtin:
		return c.convertBuiltin(val)

	case *lazyValue:
		ref := c.ev.NewThunk(func(ctx value.EvalContext) (value.Ref, error) {
			res, err := c.loader.call(ctx, val.fn, nil, nil)
			if err != nil {
				return value.NilRef, err
			}
			return c.convert(res)
		})
		c.remember(v, ref)
		return ref, nil

	case *derivationValue:
		fn, ok := c.ev.PrimOp("derivation")
		if !ok {
			return value.NilRef, fmt.Errorf("derivation builtin is not available")
		}
		attrs, err := c.convert(val.attrs)
		if err != nil {
			return value.NilRef, err
		}
		ref := arena.NewApp(fn, attrs)
		c.remember(v, ref)
		return ref, nil

	default:
		return arena.NewExternal(starlarkExternal{v: v}), nil
	}
}

func (c *starlarkConverter) remember(v starlark.Value, ref value.Ref) {
	c.memo[v] = ref
	switch v.(type) {
	case *lazyValue, *derivationValue:
		// the slot is overwritten once forced
	default:
		c.back[ref] = v
	}
}

// memoizable reports whether v has identity. Other values are hashed by
// content or not hashable at all.
func memoizable(v starlark.Value) bool {
	switch v.(type) {
	case *starlark.List, *starlark.Dict, *starlarkstruct.Struct, *starlarkstruct.Module,
		*starlark.Function, *starlark.Builtin, *lazyValue, *derivationValue:
		return true
	}
	return false
}

func (c *starlarkConverter) convertFields(v starlark.Value, names []string, attr func(string) (starlark.Value, error)) (value.Ref, error) {
	arena := c.ev.Arena()
	ref := arena.NewAttrs(nil)
	c.remember(v, ref)
	bb := value.NewBindingsBuilder(c.ev.Symbols(), len(names))
	for _, name := range names {
		field, err := attr(name)
		if err != nil {
			return value.NilRef, fmt.Errorf("failed to read field %s: %w", name, err)
		}
		elem, err := c.convert(field)
		if err != nil {
			return value.NilRef, err
		}
		bb.Set(name, elem)
	}
	arena.SetAttrs(ref, bb.Finish())
	return ref, nil
}

func (c *starlarkConverter) convertFunction(fn *starlark.Function) value.Ref {
	name := value.NoSymbol
	if fn.Name() != "lambda" {
		name = c.ev.Symbols().Intern(fn.Name())
	}
	ref := c.ev.Arena().NewLambda(&value.Lambda{
		Name: name,
		Pos:  toPos(fn.Position()),
		Call: func(ctx value.EvalContext, arg value.Ref) (value.Ref, error) {
			sv, err := c.toStarlark(ctx, arg)
			if err != nil {
				return value.NilRef, err
			}
			res, err := c.loader.call(ctx, fn, starlark.Tuple{sv}, nil)
			if err != nil {
				return value.NilRef, err
			}
			return c.convert(res)
		},
	})
	c.remember(fn, ref)
	return ref
}

// convertBuiltin maps a builtin to a primop. A method bound to a receiver
// becomes the primop partially applied to that receiver.
func (c *starlarkConverter) convertBuiltin(b *starlark.Builtin) (value.Ref, error) {
	arena := c.ev.Arena()
	call := func(ctx value.EvalContext, arg value.Ref) (value.Ref, error) {
		sv, err := c.toStarlark(ctx, arg)
		if err != nil {
			return value.NilRef, err
		}
		res, err := c.loader.call(ctx, b, starlark.Tuple{sv}, nil)
		if err != nil {
			return value.NilRef, err
		}
		return c.convert(res)
	}

	recv := b.Receiver()
	if recv == nil {
		ref := arena.NewPrimOp(&value.PrimOp{
			Name:  b.Name(),
			Arity: 1,
			Fn: func(ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
				return call(ctx, args[0])
			},
		})
		c.remember(b, ref)
		return ref, nil
	}

	op := arena.NewPrimOp(&value.PrimOp{
		Name:  b.Name(),
		Arity: 2,
		Fn: func(ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
			return call(ctx, args[1])
		},
	})
	recvRef, err := c.convert(recv)
	if err != nil {
		return value.NilRef, err
	}
	ref := arena.NewPrimOpApp(op, recvRef)
	c.remember(b, ref)
	return ref, nil
}

// toStarlark converts a value back for a call into Starlark, forcing it
// and everything it contains. Values that came from Starlark are passed
// through unchanged.
func (c *starlarkConverter) toStarlark(ctx value.EvalContext, ref value.Ref) (starlark.Value, error) {
	seen := make(map[value.Ref]starlark.Value)
	return c.toStarlarkRec(ctx, ref, seen)
}

func (c *starlarkConverter) toStarlarkRec(ctx value.EvalContext, ref value.Ref, seen map[value.Ref]starlark.Value) (starlark.Value, error) {
	if sv, ok := c.back[ref]; ok {
		return sv, nil
	}
	if sv, ok := seen[ref]; ok {
		return sv, nil
	}
	if err := ctx.Force(ref); err != nil {
		return nil, err
	}
	v := ctx.Arena().Get(ref)
	if v == nil {
		return nil, eval.TypeError("cannot pass a dangling value to a starlark function")
	}

	switch v.Kind() {
	case value.KindNull:
		return starlark.None, nil
	case value.KindBool:
		return starlark.Bool(v.Bool()), nil
	case value.KindInt:
		return starlark.MakeInt64(v.Int()), nil
	case value.KindFloat:
		return starlark.Float(v.Float()), nil
	case value.KindString, value.KindPath:
		return starlark.String(v.Str()), nil
	case value.KindList:
		list := starlark.NewList(nil)
		seen[ref] = list
		for _, elem := range v.List() {
			sv, err := c.toStarlarkRec(ctx, elem, seen)
			if err != nil {
				return nil, err
			}
			if err := list.Append(sv); err != nil {
				return nil, err
			}
		}
		return list, nil
	case value.KindAttrs:
		dict := starlark.NewDict(len(v.Attrs()))
		seen[ref] = dict
		for _, attr := range v.Attrs() {
			sv, err := c.toStarlarkRec(ctx, attr.Value, seen)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(c.ev.Symbols().Name(attr.Name)), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, eval.TypeError("cannot pass a %s value to a starlark function", v.Kind())
	}
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a plain Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
