package value

import (
	"bytes"
	"io"
	"testing"
)

func TestArenaAllocation(t *testing.T) {
	a := NewArena()
	if a.Get(NilRef) != nil {
		t.Fatal("NilRef must not address a value")
	}

	i := a.NewInt(3)
	s := a.NewString("x")
	if i == NilRef || s == NilRef || i == s {
		t.Fatalf("unexpected refs %d %d", i, s)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
	if a.Get(Ref(100)) != nil {
		t.Error("out of range ref returned a value")
	}

	if v := a.Get(i); v.Type() != TypeInt || v.Kind() != KindInt || v.Int() != 3 {
		t.Errorf("int slot = %+v", v)
	}
	if v := a.Get(s); v.Kind() != KindString || v.Str() != "x" {
		t.Errorf("string slot = %+v", v)
	}
}

func TestKinds(t *testing.T) {
	a := NewArena()
	fn := a.NewPrimOp(&PrimOp{Name: "f", Arity: 2})

	tests := []struct {
		ref  Ref
		typ  Type
		kind Kind
	}{
		{a.NewFloat(1), TypeFloat, KindFloat},
		{a.NewBool(true), TypeBool, KindBool},
		{a.NewPath("/x"), TypePath, KindPath},
		{a.NewNull(), TypeNull, KindNull},
		{a.NewList(nil), TypeList, KindList},
		{a.NewAttrs(nil), TypeAttrs, KindAttrs},
		{a.NewLambda(&Lambda{}), TypeLambda, KindFunction},
		{fn, TypePrimOp, KindFunction},
		{a.NewPrimOpApp(fn, a.NewNull()), TypePrimOpApp, KindFunction},
		{a.NewThunk(&Thunk{}), TypeThunk, KindThunk},
		{a.NewApp(fn, a.NewNull()), TypeApp, KindThunk},
		{a.NewExternal(nil), TypeExternal, KindExternal},
		{a.NewInvalid(), TypeInvalid, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			v := a.Get(tt.ref)
			if v.Type() != tt.typ {
				t.Errorf("Type() = %s, want %s", v.Type(), tt.typ)
			}
			if v.Kind() != tt.kind {
				t.Errorf("Kind() = %s, want %s", v.Kind(), tt.kind)
			}
		})
	}
}

func TestThunkLifecycle(t *testing.T) {
	a := NewArena()
	th := &Thunk{}
	ref := a.NewThunk(th)
	alias := ref

	a.MarkBlackhole(ref)
	if !a.Get(alias).IsBlackhole() {
		t.Fatal("blackhole not visible through alias")
	}

	a.RestoreThunk(ref, th)
	if !a.Get(ref).IsThunk() || a.Get(ref).Thunk() != th {
		t.Fatal("thunk not restored")
	}

	a.Overwrite(ref, a.NewInt(9))
	if v := a.Get(alias); v.Type() != TypeInt || v.Int() != 9 {
		t.Errorf("overwritten slot = %+v", v)
	}
}

func TestPrimOpAppTarget(t *testing.T) {
	a := NewArena()
	op := &PrimOp{Name: "add", Arity: 3}
	fn := a.NewPrimOp(op)
	one := a.NewPrimOpApp(fn, a.NewInt(1))
	two := a.NewPrimOpApp(one, a.NewInt(2))

	if a.PrimOpAppTarget(two) != op {
		t.Error("target not found through two applications")
	}
	if a.PrimOpAppTarget(a.NewPrimOpApp(a.NewNull(), a.NewNull())) != nil {
		t.Error("target found for spine not ending in a primop")
	}
	if op.String() != "primop add" || (&PrimOp{}).String() != "primop" {
		t.Error("unexpected primop display form")
	}
}

func TestBindingsBuilder(t *testing.T) {
	a := NewArena()
	st := a.Symbols()
	bb := NewBindingsBuilder(st, 3)
	bb.Set("b", a.NewInt(1)).Set("a", a.NewInt(2))
	replaced := a.NewInt(3)
	bb.Set("b", replaced)
	b := bb.Finish()

	if len(b) != 2 {
		t.Fatalf("len = %d, want 2", len(b))
	}
	if got, ok := b.Get(st.Intern("b")); !ok || got != replaced {
		t.Errorf("Get(b) = %d, %v", got, ok)
	}
	if _, ok := b.Get(st.Intern("zzz")); ok {
		t.Error("Get found a missing name")
	}
	if b[0].Name > b[1].Name {
		t.Error("bindings not ordered by symbol")
	}
}

func TestSetAttrsAndListCycles(t *testing.T) {
	a := NewArena()
	set := a.NewAttrs(nil)
	a.SetAttrs(set, NewBindingsBuilder(a.Symbols(), 1).Set("self", set).Finish())
	if got, _ := a.Get(set).Attrs().Get(a.Symbols().Intern("self")); got != set {
		t.Error("set does not contain itself")
	}

	list := a.NewList(nil)
	a.SetList(list, []Ref{list})
	if a.Get(list).List()[0] != list {
		t.Error("list does not contain itself")
	}
}

func TestSymbolTable(t *testing.T) {
	st := NewSymbolTable()
	x := st.Intern("x")
	if x == NoSymbol {
		t.Fatal("Intern returned NoSymbol")
	}
	if st.Intern("x") != x {
		t.Error("Intern is not idempotent")
	}
	if _, ok := st.Lookup("y"); ok {
		t.Error("Lookup created a symbol")
	}
	if st.Name(x) != "x" || st.Name(NoSymbol) != "" || st.Name(Symbol(99)) != "" {
		t.Error("unexpected names")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestPos(t *testing.T) {
	tests := []struct {
		pos  Pos
		want string
	}{
		{Pos{File: "a.cue", Line: 1, Column: 2}, "a.cue:1:2"},
		{Pos{Line: 4, Column: 1}, "«string»:4:1"},
		{NoPos, "«none»"},
	}
	for _, tt := range tests {
		if got := tt.pos.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

type blob struct{}

func (blob) TypeOf() string { return "blob" }
func (blob) Print(w io.Writer) { _, _ = io.WriteString(w, "<blob>") }

func TestExternal(t *testing.T) {
	a := NewArena()
	ref := a.NewExternal(blob{})
	var buf bytes.Buffer
	a.Get(ref).External().Print(&buf)
	if buf.String() != "<blob>" || a.Get(ref).External().TypeOf() != "blob" {
		t.Errorf("external printed %q", buf.String())
	}
}
