// Package printer renders runtime values as text for terminals and logs.
//
// The output uses the language's own syntax where possible:
//
//	{ a = 2; b = [ 1 "x" ]; }
//
// and bracketed markers for everything that has no literal form, such as
// «lambda f @ file.cfg:3:7», «thunk», «repeated» or «3 items elided».
//
// A render is bounded by Options. Depth, attribute, list item and string
// length limits truncate the output and leave an elision marker behind;
// they never fail. Attribute and list item limits count across the whole
// render, not per container.
//
// With Options.Force set, deferred values are evaluated through the
// Evaluator as they are reached. A failure is printed in place of the value
// and the render continues. Only context cancellation and write errors stop
// a render early.
//
// A Printer holds per-render state, a visited set and running counters, and
// must not be used from more than one goroutine.
package printer
