// Package value defines the runtime value model of the configuration
// language.
//
// Values live in an Arena and are addressed by Ref handles. Attribute sets
// and lists hold Refs to their children, so graphs may share structure and
// may be cyclic; identity is handle equality, never structural equality.
//
// # Types and kinds
//
// Every slot carries an internal Type tag. Callers that only care about the
// user-visible category use Kind, which folds lambdas, primops and partial
// primop applications into KindFunction and thunks, applications and
// blackholes into KindThunk.
//
// # Deferred values
//
// A thunk slot is overwritten in place when it is forced, so every Ref that
// pointed at the thunk observes the result. While a thunk is being computed
// its slot is a blackhole; re-entering it signals self-referential
// evaluation order.
package value
