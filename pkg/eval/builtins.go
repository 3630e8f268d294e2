package eval

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openfroyo/lazyval/pkg/printer"
	"github.com/openfroyo/lazyval/pkg/store"
	"github.com/openfroyo/lazyval/pkg/value"
)

// builtin describes a primop before it is allocated in the arena.
type builtin struct {
	name  string
	arity int
	doc   string
	fn    func(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error)
}

var builtinTable = []builtin{
	{"add", 2, "Return the sum of the numbers e1 and e2.", primAdd},
	{"throw", 1, "Throw an error message s. Throws can be caught.", primThrow},
	{"abort", 1, "Abort evaluation and print the error message s.", primAbort},
	{"toString", 1, "Convert the expression e to a string.", primToString},
	{"seq", 2, "Evaluate e1, then evaluate and return e2.", primSeq},
	{"trace", 2, "Print the value e1 to stderr and return e2.", primTrace},
	{"derivation", 1, "Construct a derivation from a set of attributes.", primDerivation},
}

// PrimOp returns the builtin named name, allocating the builtins on first use.
func (e *Evaluator) PrimOp(name string) (value.Ref, bool) {
	e.initBuiltins()
	ref, ok := e.builtins[name]
	return ref, ok
}

// Builtins returns an attribute set holding every builtin.
func (e *Evaluator) Builtins() value.Ref {
	e.initBuiltins()
	if e.builtinsSet == value.NilRef {
		bb := value.NewBindingsBuilder(e.arena.Symbols(), len(e.builtins))
		for name, ref := range e.builtins {
			bb.Set(name, ref)
		}
		e.builtinsSet = e.arena.NewAttrs(bb.Finish())
	}
	return e.builtinsSet
}

func (e *Evaluator) initBuiltins() {
	if e.builtins != nil {
		return
	}
	e.builtins = make(map[string]value.Ref, len(builtinTable))
	for _, b := range builtinTable {
		e.builtins[b.name] = e.arena.NewPrimOp(&value.PrimOp{
			Name:  b.name,
			Arity: b.arity,
			Doc:   b.doc,
			Fn: func(ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
				return b.fn(e, ctx, args)
			},
		})
	}
}

func primAdd(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	for _, a := range args {
		if err := ctx.Force(a); err != nil {
			return value.NilRef, err
		}
	}
	x, y := e.arena.Get(args[0]), e.arena.Get(args[1])
	for _, v := range []*value.Value{x, y} {
		if k := v.Kind(); k != value.KindInt && k != value.KindFloat {
			return value.NilRef, TypeError("expected an integer but found %s", describe(v)).
				AddTrace("while evaluating an argument passed to builtins.add")
		}
	}
	if x.Kind() == value.KindInt && y.Kind() == value.KindInt {
		return e.arena.NewInt(x.Int() + y.Int()), nil
	}
	return e.arena.NewFloat(asFloat(x) + asFloat(y)), nil
}

func asFloat(v *value.Value) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.Int())
	}
	return v.Float()
}

func primThrow(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	s, err := e.CoerceToString(ctx, args[0], false)
	if err != nil {
		return value.NilRef, err
	}
	return value.NilRef, ThrowError(s)
}

func primAbort(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	s, err := e.CoerceToString(ctx, args[0], false)
	if err != nil {
		return value.NilRef, err
	}
	return value.NilRef, NewError(ErrorClassAbort, "evaluation aborted with the following error message: '%s'", s)
}

func primToString(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	s, err := e.CoerceToString(ctx, args[0], true)
	if err != nil {
		return value.NilRef, err
	}
	return e.arena.NewString(s), nil
}

func primSeq(_ *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	if err := ctx.Force(args[0]); err != nil {
		return value.NilRef, err
	}
	return args[1], nil
}

// primTrace prints its first argument without forcing nested values, so
// a value that is still being computed shows up as a potential infinite
// recursion rather than an error.
func primTrace(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	if err := ctx.Force(args[0]); err != nil {
		return value.NilRef, err
	}
	var msg string
	if v := e.arena.Get(args[0]); v.Type() == value.TypeString {
		msg = v.Str()
	} else {
		opts := printer.ErrorOptions()
		opts.ANSIColors = e.config.TraceColors
		var b strings.Builder
		if _, err := printer.PrintValue(ctx, &b, e, args[0], opts); err != nil {
			return value.NilRef, err
		}
		msg = b.String()
	}
	fmt.Fprintf(e.config.TraceOutput, "trace: %s\n", msg)
	return args[1], nil
}

// primDerivation computes store paths for a set of string-coercible
// attributes and returns them extended with type, drvPath and outPath.
func primDerivation(e *Evaluator, ctx value.EvalContext, args []value.Ref) (value.Ref, error) {
	if err := ctx.Force(args[0]); err != nil {
		return value.NilRef, err
	}
	v := e.arena.Get(args[0])
	if v.Type() != value.TypeAttrs {
		return value.NilRef, TypeError("expected a set but found %s", describe(v)).
			AddTrace("while evaluating the argument passed to builtins.derivation")
	}
	attrs := v.Attrs()
	symbols := e.arena.Symbols()

	nameRef, ok := attrs.Get(symbols.Intern(AttrName))
	if !ok {
		return value.NilRef, TypeError("required attribute 'name' missing").
			AddTrace("while evaluating the argument passed to builtins.derivation")
	}
	name, err := e.CoerceToString(ctx, nameRef, false)
	if err != nil {
		return value.NilRef, err
	}

	fields := make([]string, 0, len(attrs))
	for _, a := range attrs {
		key := symbols.Name(a.Name)
		s, err := e.CoerceToString(ctx, a.Value, true)
		if err != nil {
			var ee *EvalError
			if errors.As(err, &ee) {
				ee.AddTrace("while evaluating the attribute '%s' of derivation '%s'", key, name)
			}
			return value.NilRef, err
		}
		fields = append(fields, fmt.Sprintf("%q=%q", key, s))
	}
	sort.Strings(fields)

	dir := store.Dir(e.store.StoreDir())
	drv, err := dir.MakeTextPath(name+store.DrvExtension, "Derive("+strings.Join(fields, ",")+")")
	if err != nil {
		return value.NilRef, NewError(ErrorClassCoercion, "invalid derivation name '%s'", name).WithCause(err)
	}
	out, err := dir.MakeOutputPath(drv, "out", name)
	if err != nil {
		return value.NilRef, NewError(ErrorClassCoercion, "invalid derivation name '%s'", name).WithCause(err)
	}
	if e.config.OnDerivation != nil {
		if err := e.config.OnDerivation(ctx, drv, out); err != nil {
			return value.NilRef, fmt.Errorf("failed to register derivation %s: %w", name, err)
		}
	}

	bb := value.NewBindingsBuilder(symbols, len(attrs)+3)
	for _, a := range attrs {
		bb.Set(symbols.Name(a.Name), a.Value)
	}
	bb.Set(AttrType, e.arena.NewString(derivationType))
	bb.Set(AttrDrvPath, e.arena.NewString(dir.PrintStorePath(drv)))
	bb.Set(AttrOutPath, e.arena.NewString(dir.PrintStorePath(out)))
	return e.arena.NewAttrs(bb.Finish()), nil
}
