package eval

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openfroyo/lazyval/pkg/store"
	"github.com/openfroyo/lazyval/pkg/value"
)

// DefaultMaxCallDepth bounds nested forcing.
const DefaultMaxCallDepth = 10000

// Well-known attribute names.
const (
	AttrType    = "type"
	AttrDrvPath = "drvPath"
	AttrOutPath = "outPath"
	AttrName    = "name"

	derivationType = "derivation"
)

// Config configures an Evaluator.
type Config struct {
	// MaxCallDepth bounds nested thunk forcing and function calls.
	MaxCallDepth int

	// TraceOutput receives builtins.trace messages. Defaults to stderr.
	TraceOutput io.Writer

	// TraceColors enables ANSI colors in traced values.
	TraceColors bool

	// OnDerivation is called for every derivation the evaluator
	// instantiates.
	OnDerivation func(ctx context.Context, drv, out store.Path) error
}

// Evaluator forces values of one arena. It is not safe for concurrent use.
type Evaluator struct {
	arena  *value.Arena
	store  store.Store
	config Config

	depth int

	builtins    map[string]value.Ref
	builtinsSet value.Ref

	sType    value.Symbol
	sOutPath value.Symbol
}

// New creates an evaluator over arena, resolving store paths with st.
func New(arena *value.Arena, st store.Store, cfg Config) *Evaluator {
	if cfg.MaxCallDepth <= 0 {
		cfg.MaxCallDepth = DefaultMaxCallDepth
	}
	if cfg.TraceOutput == nil {
		cfg.TraceOutput = os.Stderr
	}
	if st == nil {
		st = store.NewLocalStore("")
	}
	symbols := arena.Symbols()
	return &Evaluator{
		arena:    arena,
		store:    st,
		config:   cfg,
		sType:    symbols.Intern(AttrType),
		sOutPath: symbols.Intern(AttrOutPath),
	}
}

// Arena returns the arena the evaluator works on.
func (e *Evaluator) Arena() *value.Arena { return e.arena }

// Value returns the slot behind ref.
func (e *Evaluator) Value(ref value.Ref) *value.Value { return e.arena.Get(ref) }

// Symbols returns the symbol table of the arena.
func (e *Evaluator) Symbols() *value.SymbolTable { return e.arena.Symbols() }

// Store returns the store collaborator.
func (e *Evaluator) Store() store.Store { return e.store }

// evalContext adapts an Evaluator and a context for running computations.
type evalContext struct {
	context.Context
	ev *Evaluator
}

func (c evalContext) Arena() *value.Arena { return c.ev.arena }

func (c evalContext) Force(ref value.Ref) error { return c.ev.Force(c.Context, ref) }

func (c evalContext) Apply(fn, arg value.Ref) (value.Ref, error) {
	return c.ev.Apply(c.Context, fn, arg)
}

// Context wraps ctx so that computations can call back into e.
func (e *Evaluator) Context(ctx context.Context) value.EvalContext {
	return evalContext{Context: ctx, ev: e}
}

// NewThunk allocates a deferred computation.
func (e *Evaluator) NewThunk(compute func(ctx value.EvalContext) (value.Ref, error)) value.Ref {
	return e.arena.NewThunk(&value.Thunk{Compute: compute})
}

// Force reduces ref to weak head normal form. Thunks and applications are
// evaluated and their slot is overwritten with the result; on failure a
// thunk goes back to the pending state so a later force retries it.
// Context cancellation is returned unwrapped.
func (e *Evaluator) Force(ctx context.Context, ref value.Ref) error {
	v := e.arena.Get(ref)
	if v == nil {
		return TypeError("cannot force a missing value")
	}

	switch v.Type() {
	case value.TypeThunk:
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.depth >= e.config.MaxCallDepth {
			return NewError(ErrorClassInfiniteRecursion, "stack overflow; max-call-depth exceeded")
		}
		t := v.Thunk()
		e.arena.MarkBlackhole(ref)

		e.depth++
		res, err := t.Compute(e.Context(ctx))
		if err == nil && res != ref {
			err = e.Force(ctx, res)
		}
		e.depth--

		if err != nil {
			e.arena.RestoreThunk(ref, t)
			return err
		}
		if res != ref {
			e.arena.Overwrite(ref, res)
		}

	case value.TypeApp:
		if err := ctx.Err(); err != nil {
			return err
		}
		fn, arg := v.AppParts()
		res, err := e.Apply(ctx, fn, arg)
		if err == nil {
			err = e.Force(ctx, res)
		}
		if err != nil {
			return err
		}
		e.arena.Overwrite(ref, res)

	case value.TypeBlackhole:
		return NewError(ErrorClassInfiniteRecursion, "infinite recursion encountered")
	}

	return nil
}

// Apply calls fn with arg. Primops receive their arguments once all of
// them are supplied; until then the result is a partial application.
func (e *Evaluator) Apply(ctx context.Context, fn, arg value.Ref) (value.Ref, error) {
	if err := e.Force(ctx, fn); err != nil {
		return value.NilRef, err
	}
	if e.depth >= e.config.MaxCallDepth {
		return value.NilRef, NewError(ErrorClassInfiniteRecursion, "stack overflow; max-call-depth exceeded")
	}
	e.depth++
	defer func() { e.depth-- }()

	f := e.arena.Get(fn)
	switch f.Type() {
	case value.TypeLambda:
		l := f.Lambda()
		if l.Call == nil {
			return value.NilRef, TypeError("function '%s' cannot be called from here", e.lambdaName(l)).WithPos(l.Pos)
		}
		return l.Call(e.Context(ctx), arg)

	case value.TypePrimOp:
		p := f.PrimOp()
		if p.Arity <= 1 {
			return p.Fn(e.Context(ctx), []value.Ref{arg})
		}
		return e.arena.NewPrimOpApp(fn, arg), nil

	case value.TypePrimOpApp:
		p := e.arena.PrimOpAppTarget(fn)
		if p == nil {
			return value.NilRef, TypeError("partial application does not end in a primop")
		}
		args := e.collectArgs(fn)
		args = append(args, arg)
		if len(args) < p.Arity {
			return e.arena.NewPrimOpApp(fn, arg), nil
		}
		return p.Fn(e.Context(ctx), args)

	default:
		return value.NilRef, TypeError("attempt to call something which is not a function but %s", describe(f))
	}
}

// collectArgs returns the arguments already bound along the spine of a
// partial application, outermost last.
func (e *Evaluator) collectArgs(ref value.Ref) []value.Ref {
	var rev []value.Ref
	for {
		v := e.arena.Get(ref)
		if v == nil || v.Type() != value.TypePrimOpApp {
			break
		}
		left, right := v.AppParts()
		rev = append(rev, right)
		ref = left
	}
	args := make([]value.Ref, len(rev))
	for i, r := range rev {
		args[len(rev)-1-i] = r
	}
	return args
}

func (e *Evaluator) lambdaName(l *value.Lambda) string {
	if l.Name == value.NoSymbol {
		return "anonymous lambda"
	}
	return e.arena.Symbols().Name(l.Name)
}

// IsDerivation reports whether ref is an attribute set whose type
// attribute forces to the string "derivation".
func (e *Evaluator) IsDerivation(ctx context.Context, ref value.Ref) (bool, error) {
	v := e.arena.Get(ref)
	if v == nil || v.Type() != value.TypeAttrs {
		return false, nil
	}
	typ, ok := v.Attrs().Get(e.sType)
	if !ok {
		return false, nil
	}
	if err := e.Force(ctx, typ); err != nil {
		return false, err
	}
	tv := e.arena.Get(typ)
	return tv.Type() == value.TypeString && tv.Str() == derivationType, nil
}

// CoerceToStorePath forces ref and interprets the resulting string or path
// as a store path.
func (e *Evaluator) CoerceToStorePath(ctx context.Context, ref value.Ref) (store.Path, error) {
	s, err := e.CoerceToString(ctx, ref, false)
	if err != nil {
		return store.Path{}, err
	}
	p, err := e.store.ParseStorePath(s)
	if err != nil {
		return store.Path{}, &EvalError{
			Class:   ErrorClassCoercion,
			Message: "path '" + s + "' is not in the store",
			Err:     err,
		}
	}
	return p, nil
}

// CoerceToString converts ref to a string. With extended set, integers,
// floats, booleans, null and lists are accepted as builtins.toString does.
func (e *Evaluator) CoerceToString(ctx context.Context, ref value.Ref, extended bool) (string, error) {
	if err := e.Force(ctx, ref); err != nil {
		return "", err
	}
	v := e.arena.Get(ref)
	switch v.Type() {
	case value.TypeString, value.TypePath:
		return v.Str(), nil
	case value.TypeAttrs:
		if out, ok := v.Attrs().Get(e.sOutPath); ok {
			s, err := e.CoerceToString(ctx, out, extended)
			if err != nil {
				var ee *EvalError
				if errors.As(err, &ee) {
					ee.AddTrace("while evaluating the 'outPath' attribute")
				}
				return "", err
			}
			return s, nil
		}
	}

	if extended {
		switch v.Type() {
		case value.TypeInt:
			return strconv.FormatInt(v.Int(), 10), nil
		case value.TypeFloat:
			return strconv.FormatFloat(v.Float(), 'f', 6, 64), nil
		case value.TypeBool:
			if v.Bool() {
				return "1", nil
			}
			return "", nil
		case value.TypeNull:
			return "", nil
		case value.TypeList:
			parts := make([]string, 0, len(v.List()))
			for _, elem := range v.List() {
				s, err := e.CoerceToString(ctx, elem, extended)
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			}
			return strings.Join(parts, " "), nil
		}
	}

	return "", NewError(ErrorClassCoercion, "cannot coerce %s to a string", describe(v))
}

// describe names the kind of v the way error messages do.
func describe(v *value.Value) string {
	switch v.Kind() {
	case value.KindInt:
		return "an integer"
	case value.KindFloat:
		return "a float"
	case value.KindBool:
		return "a Boolean"
	case value.KindString:
		return "a string"
	case value.KindPath:
		return "a path"
	case value.KindNull:
		return "null"
	case value.KindAttrs:
		return "a set"
	case value.KindList:
		return "a list"
	case value.KindFunction:
		return "a function"
	case value.KindExternal:
		return "an external value of type '" + v.External().TypeOf() + "'"
	default:
		return "a thunk"
	}
}
