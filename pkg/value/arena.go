package value

import "sort"

// Ref is a stable handle to a slot in an Arena. Composite identity is the
// handle: two Refs are the same value exactly when they are equal.
type Ref uint32

// NilRef is the missing reference. It never addresses a value.
const NilRef Ref = 0

// Arena owns every value of one evaluation. It is not safe for concurrent
// mutation; readers may share it once forcing has stopped.
type Arena struct {
	slots   []Value
	symbols *SymbolTable
}

// NewArena creates an empty arena with its own symbol table.
func NewArena() *Arena {
	return &Arena{
		// slot 0 backs NilRef and stays invalid
		slots:   make([]Value, 1, 256),
		symbols: NewSymbolTable(),
	}
}

// Symbols returns the arena's symbol table.
func (a *Arena) Symbols() *SymbolTable { return a.symbols }

// Len returns the number of allocated values.
func (a *Arena) Len() int { return len(a.slots) - 1 }

// Get returns the slot behind ref, or nil for NilRef and out-of-range handles.
// The pointer is only valid until the next allocation.
func (a *Arena) Get(ref Ref) *Value {
	if ref == NilRef || int(ref) >= len(a.slots) {
		return nil
	}
	return &a.slots[ref]
}

func (a *Arena) alloc(v Value) Ref {
	a.slots = append(a.slots, v)
	return Ref(len(a.slots) - 1)
}

func (a *Arena) NewInt(n int64) Ref { return a.alloc(Value{typ: TypeInt, integer: n}) }
func (a *Arena) NewFloat(f float64) Ref { return a.alloc(Value{typ: TypeFloat, fpoint: f}) }
func (a *Arena) NewBool(b bool) Ref { return a.alloc(Value{typ: TypeBool, boolean: b}) }
func (a *Arena) NewString(s string) Ref { return a.alloc(Value{typ: TypeString, str: s}) }
func (a *Arena) NewPath(p string) Ref { return a.alloc(Value{typ: TypePath, str: p}) }
func (a *Arena) NewNull() Ref { return a.alloc(Value{typ: TypeNull}) }
func (a *Arena) NewList(elems []Ref) Ref { return a.alloc(Value{typ: TypeList, list: elems}) }
func (a *Arena) NewAttrs(b Bindings) Ref { return a.alloc(Value{typ: TypeAttrs, attrs: b}) }
func (a *Arena) NewLambda(l *Lambda) Ref { return a.alloc(Value{typ: TypeLambda, lambda: l}) }
func (a *Arena) NewPrimOp(p *PrimOp) Ref { return a.alloc(Value{typ: TypePrimOp, primOp: p}) }
func (a *Arena) NewThunk(t *Thunk) Ref { return a.alloc(Value{typ: TypeThunk, thunk: t}) }
func (a *Arena) NewExternal(e External) Ref { return a.alloc(Value{typ: TypeExternal, external: e}) }

// NewApp allocates an unreduced application of fn to arg.
func (a *Arena) NewApp(fn, arg Ref) Ref {
	return a.alloc(Value{typ: TypeApp, left: fn, right: arg})
}

// NewPrimOpApp allocates a partial application. fn is either a primop or
// another partial application.
func (a *Arena) NewPrimOpApp(fn, arg Ref) Ref {
	return a.alloc(Value{typ: TypePrimOpApp, left: fn, right: arg})
}

// NewInvalid allocates a slot with no recognized type. Only useful to
// exercise invariant checks.
func (a *Arena) NewInvalid() Ref { return a.alloc(Value{}) }

// SetAttrs replaces the bindings of an attribute set. Builders use it to
// close cycles after the set itself has been allocated.
func (a *Arena) SetAttrs(ref Ref, b Bindings) {
	a.slots[ref] = Value{typ: TypeAttrs, attrs: b}
}

// SetList replaces the elements of a list.
func (a *Arena) SetList(ref Ref, elems []Ref) {
	a.slots[ref] = Value{typ: TypeList, list: elems}
}

// Overwrite copies the value at src into dst. The evaluator uses it to
// memoize a forced result in the thunk's own slot.
func (a *Arena) Overwrite(dst, src Ref) {
	a.slots[dst] = a.slots[src]
}

// MarkBlackhole flags a thunk as being evaluated.
func (a *Arena) MarkBlackhole(ref Ref) {
	a.slots[ref].typ = TypeBlackhole
}

// RestoreThunk puts a blackholed slot back into the pending state.
func (a *Arena) RestoreThunk(ref Ref, t *Thunk) {
	a.slots[ref] = Value{typ: TypeThunk, thunk: t}
}

// PrimOpAppTarget walks the left spine of a partial application down to
// the primop it will eventually call. It returns nil if the spine does not
// end in a primop.
func (a *Arena) PrimOpAppTarget(ref Ref) *PrimOp {
	for {
		v := a.Get(ref)
		if v == nil {
			return nil
		}
		switch v.typ {
		case TypePrimOp:
			return v.primOp
		case TypePrimOpApp:
			ref = v.left
		default:
			return nil
		}
	}
}

// Attr is one binding of an attribute set.
type Attr struct {
	Name  Symbol
	Value Ref
}

// Bindings holds the attributes of a set. Sets built with BindingsBuilder
// are ordered by symbol id; the printer sorts by name itself.
type Bindings []Attr

// Get finds the binding for name.
func (b Bindings) Get(name Symbol) (Ref, bool) {
	for _, attr := range b {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return NilRef, false
}

// BindingsBuilder accumulates attributes by name.
type BindingsBuilder struct {
	symbols *SymbolTable
	attrs   Bindings
}

// NewBindingsBuilder returns a builder interning names into symbols.
func NewBindingsBuilder(symbols *SymbolTable, capacity int) *BindingsBuilder {
	return &BindingsBuilder{symbols: symbols, attrs: make(Bindings, 0, capacity)}
}

// Set adds or replaces the attribute called name.
func (bb *BindingsBuilder) Set(name string, ref Ref) *BindingsBuilder {
	sym := bb.symbols.Intern(name)
	for i := range bb.attrs {
		if bb.attrs[i].Name == sym {
			bb.attrs[i].Value = ref
			return bb
		}
	}
	bb.attrs = append(bb.attrs, Attr{Name: sym, Value: ref})
	return bb
}

// Finish returns the bindings ordered by symbol id, the order lookups and
// iteration see.
func (bb *BindingsBuilder) Finish() Bindings {
	sort.Slice(bb.attrs, func(i, j int) bool { return bb.attrs[i].Name < bb.attrs[j].Name })
	return bb.attrs
}
