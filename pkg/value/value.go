package value

import (
	"context"
	"fmt"
	"io"
)

// Kind is the user-visible type of a value.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindPath
	KindNull
	KindAttrs
	KindList
	KindFunction
	KindThunk
	KindExternal
)

// String returns the name the language uses for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindPath:
		return "path"
	case KindNull:
		return "null"
	case KindAttrs:
		return "set"
	case KindList:
		return "list"
	case KindFunction:
		return "lambda"
	case KindThunk:
		return "thunk"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Type is the internal representation tag. Several tags share one Kind:
// lambdas, primops and partial primop applications are all functions, and
// thunks, applications and blackholes are all deferred.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeString
	TypePath
	TypeNull
	TypeAttrs
	TypeList
	TypeLambda
	TypePrimOp
	TypePrimOpApp
	TypeThunk
	TypeApp
	TypeBlackhole
	TypeExternal
)

var typeNames = [...]string{
	TypeInvalid:   "invalid",
	TypeInt:       "int",
	TypeFloat:     "float",
	TypeBool:      "bool",
	TypeString:    "string",
	TypePath:      "path",
	TypeNull:      "null",
	TypeAttrs:     "attrs",
	TypeList:      "list",
	TypeLambda:    "lambda",
	TypePrimOp:    "primop",
	TypePrimOpApp: "primop-app",
	TypeThunk:     "thunk",
	TypeApp:       "app",
	TypeBlackhole: "blackhole",
	TypeExternal:  "external",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Value is a slot in an Arena. Only the fields matching Type are meaningful.
type Value struct {
	typ Type

	integer  int64
	fpoint   float64
	boolean  bool
	str      string
	attrs    Bindings
	list     []Ref
	lambda   *Lambda
	primOp   *PrimOp
	left     Ref
	right    Ref
	thunk    *Thunk
	external External
}

// Type returns the internal tag.
func (v *Value) Type() Type { return v.typ }

// Kind maps the internal tag onto the user-visible kind.
func (v *Value) Kind() Kind {
	switch v.typ {
	case TypeInt:
		return KindInt
	case TypeFloat:
		return KindFloat
	case TypeBool:
		return KindBool
	case TypeString:
		return KindString
	case TypePath:
		return KindPath
	case TypeNull:
		return KindNull
	case TypeAttrs:
		return KindAttrs
	case TypeList:
		return KindList
	case TypeLambda, TypePrimOp, TypePrimOpApp:
		return KindFunction
	case TypeThunk, TypeApp, TypeBlackhole:
		return KindThunk
	case TypeExternal:
		return KindExternal
	default:
		return KindUnknown
	}
}

func (v *Value) IsThunk() bool     { return v.typ == TypeThunk }
func (v *Value) IsApp() bool       { return v.typ == TypeApp }
func (v *Value) IsBlackhole() bool { return v.typ == TypeBlackhole }
func (v *Value) IsLambda() bool    { return v.typ == TypeLambda }
func (v *Value) IsPrimOp() bool    { return v.typ == TypePrimOp }
func (v *Value) IsPrimOpApp() bool { return v.typ == TypePrimOpApp }

// Int returns the integer payload.
func (v *Value) Int() int64 { return v.integer }

// Float returns the floating point payload.
func (v *Value) Float() float64 { return v.fpoint }

// Bool returns the boolean payload.
func (v *Value) Bool() bool { return v.boolean }

// Str returns the string payload of string values and the textual form of
// path values.
func (v *Value) Str() string { return v.str }

// Attrs returns the bindings of an attribute set.
func (v *Value) Attrs() Bindings { return v.attrs }

// List returns the element references of a list. Elements may be NilRef.
func (v *Value) List() []Ref { return v.list }

// Lambda returns the user-defined function descriptor.
func (v *Value) Lambda() *Lambda { return v.lambda }

// PrimOp returns the primitive of a TypePrimOp value.
func (v *Value) PrimOp() *PrimOp { return v.primOp }

// AppParts returns the function and argument of an application or a
// partial primop application.
func (v *Value) AppParts() (Ref, Ref) { return v.left, v.right }

// Thunk returns the deferred computation of a thunk or blackhole.
func (v *Value) Thunk() *Thunk { return v.thunk }

// External returns the external capability bound to the value.
func (v *Value) External() External { return v.external }

// EvalContext is handed to running computations: the cancellation context
// of the render or evaluation that demanded the value, plus access to the
// evaluator so a computation can force its own dependencies.
type EvalContext interface {
	context.Context
	Arena() *Arena
	Force(ref Ref) error
	Apply(fn, arg Ref) (Ref, error)
}

// Lambda describes a user-defined function.
type Lambda struct {
	// Name is NoSymbol for anonymous functions.
	Name Symbol
	Pos  Pos
	// Call applies the function to one argument. A nil Call makes the
	// lambda display-only.
	Call func(ctx EvalContext, arg Ref) (Ref, error)
}

// PrimOp is a built-in primitive operation.
type PrimOp struct {
	Name  string
	Arity int
	Doc   string
	Fn    func(ctx EvalContext, args []Ref) (Ref, error)
}

// String is the display form used inside callable markers.
func (p *PrimOp) String() string {
	if p.Name == "" {
		return "primop"
	}
	return "primop " + p.Name
}

// Thunk is a suspended computation. Compute returns a reference to the
// result, which the evaluator forces and copies into the thunk's slot.
type Thunk struct {
	Compute func(ctx EvalContext) (Ref, error)
}

// External is an opaque value owned by a plugin or host binding.
type External interface {
	// TypeOf is the type name reported to the language.
	TypeOf() string
	// Print writes the value's own textual representation.
	Print(w io.Writer)
}

// Pos is a source position.
type Pos struct {
	File   string
	Line   int
	Column int
}

// NoPos is the zero position.
var NoPos = Pos{}

// IsValid reports whether the position points somewhere.
func (p Pos) IsValid() bool { return p.Line > 0 }

// String renders the position as file:line:column.
func (p Pos) String() string {
	if !p.IsValid() {
		return "«none»"
	}
	file := p.File
	if file == "" {
		file = "«string»"
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Column)
}
