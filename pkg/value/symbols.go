package value

// Symbol is an interned attribute or function name.
type Symbol uint32

// NoSymbol marks an absent name, such as the name of an anonymous lambda.
const NoSymbol Symbol = 0

// SymbolTable interns names. Ids are dense and start at 1.
type SymbolTable struct {
	ids   map[string]Symbol
	names []string
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		ids:   make(map[string]Symbol),
		names: []string{""},
	}
}

// Intern returns the symbol for name, creating it on first use.
func (st *SymbolTable) Intern(name string) Symbol {
	if sym, ok := st.ids[name]; ok {
		return sym
	}
	sym := Symbol(len(st.names))
	st.names = append(st.names, name)
	st.ids[name] = sym
	return sym
}

// Lookup returns the symbol for name without creating it.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := st.ids[name]
	return sym, ok
}

// Name returns the text of sym. NoSymbol and unknown ids map to "".
func (st *SymbolTable) Name(sym Symbol) string {
	if int(sym) >= len(st.names) {
		return ""
	}
	return st.names[sym]
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int { return len(st.names) - 1 }
