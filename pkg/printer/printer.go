package printer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openfroyo/lazyval/pkg/store"
	"github.com/openfroyo/lazyval/pkg/value"
)

// Evaluator is the part of the runtime the printer drives.
type Evaluator interface {
	// Force evaluates ref to weak head normal form in place.
	Force(ctx context.Context, ref value.Ref) error
	// Value returns the slot behind ref, or nil for a dangling reference.
	// The pointer is only valid until the next allocation.
	Value(ref value.Ref) *value.Value
	// Symbols resolves attribute names.
	Symbols() *value.SymbolTable
	// IsDerivation reports whether ref is a derivation attribute set.
	IsDerivation(ctx context.Context, ref value.Ref) (bool, error)
	// CoerceToStorePath forces ref and parses it as a store path.
	CoerceToStorePath(ctx context.Context, ref value.Ref) (store.Path, error)
	// Store prints store paths.
	Store() store.Store
}

// Stats summarizes one render.
type Stats struct {
	Attributes int
	ListItems  int
	Repeated   int
	Elided     int
	Errors     int
}

// InvariantError is the panic value raised when the value model is
// corrupt. It never describes a user error.
type InvariantError struct {
	Ref    value.Ref
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("printer invariant violated at value %d: %s", e.Ref, e.Detail)
}

// Printer renders values. State is reset by every call to Print, so one
// Printer may be reused but never shared between goroutines.
type Printer struct {
	ev   Evaluator
	opts Options
	out  *bufio.Writer

	seen             map[value.Ref]struct{}
	attrsPrinted     int
	listItemsPrinted int
	stats            Stats
}

// New returns a printer writing to w.
func New(w io.Writer, ev Evaluator, opts Options) *Printer {
	return &Printer{
		ev:   ev,
		opts: opts,
		out:  bufio.NewWriter(w),
	}
}

// Print renders the value at ref. The only errors returned are context
// errors, when ctx is cancelled during the render, and write errors.
// Evaluation failures are rendered inline.
func (p *Printer) Print(ctx context.Context, ref value.Ref) (Stats, error) {
	p.attrsPrinted = 0
	p.listItemsPrinted = 0
	p.stats = Stats{}
	if p.opts.TrackRepeated {
		p.seen = make(map[value.Ref]struct{})
	} else {
		p.seen = nil
	}

	err := p.print(ctx, ref, 0)
	p.seen = nil

	if ferr := p.out.Flush(); err == nil {
		err = ferr
	}
	p.stats.Attributes = p.attrsPrinted
	p.stats.ListItems = p.listItemsPrinted
	return p.stats, err
}

// PrintValue renders ref to w with a fresh printer.
func PrintValue(ctx context.Context, w io.Writer, ev Evaluator, ref value.Ref, opts Options) (Stats, error) {
	return New(w, ev, opts).Print(ctx, ref)
}

// Sprint renders ref to a string. A render interrupted by ctx returns what
// was written so far.
func Sprint(ctx context.Context, ev Evaluator, ref value.Ref, opts Options) string {
	var b strings.Builder
	_, _ = PrintValue(ctx, &b, ev, ref, opts)
	return b.String()
}

// print dispatches on the kind of ref.
func (p *Printer) print(ctx context.Context, ref value.Ref, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v := p.ev.Value(ref)
	if v == nil {
		p.printNullptr()
		return nil
	}

	if p.opts.Force {
		if err := p.ev.Force(ctx, ref); err != nil {
			if isInterrupt(err) {
				return err
			}
			p.printError(err)
			return nil
		}
		// forcing overwrites the slot
		v = p.ev.Value(ref)
	}

	switch v.Kind() {
	case value.KindInt:
		p.printInt(v)
	case value.KindFloat:
		p.printFloat(v)
	case value.KindBool:
		p.printBool(v)
	case value.KindString:
		p.printString(v)
	case value.KindPath:
		p.printPath(v)
	case value.KindNull:
		p.printNull()
	case value.KindAttrs:
		return p.printAttrs(ctx, ref, depth)
	case value.KindList:
		return p.printList(ctx, ref, depth)
	case value.KindFunction:
		p.printFunction(ref, v)
	case value.KindThunk:
		p.printThunk(ref, v)
	case value.KindExternal:
		p.printExternal(ref, v)
	default:
		panic(&InvariantError{Ref: ref, Detail: "value of unknown kind " + v.Type().String()})
	}
	return nil
}

// visit records ref as entered and reports whether it was new. It always
// succeeds when repeat tracking is off.
func (p *Printer) visit(ref value.Ref) bool {
	if p.seen == nil {
		return true
	}
	if _, ok := p.seen[ref]; ok {
		return false
	}
	p.seen[ref] = struct{}{}
	return true
}

// isInterrupt reports whether err stops the whole render.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// errorMessage returns the bare message of a classified evaluation error
// and the full text of anything else.
func errorMessage(err error) string {
	var m interface{ Msg() string }
	if errors.As(err, &m) {
		return m.Msg()
	}
	return err.Error()
}
