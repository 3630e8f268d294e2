package printer

import (
	"context"

	"github.com/openfroyo/lazyval/pkg/value"
)

func (p *Printer) printFunction(ref value.Ref, v *value.Value) {
	colorStart(p.out, ansiBlue, p.opts.ANSIColors)
	_, _ = p.out.WriteString("«")

	switch v.Type() {
	case value.TypeLambda:
		_, _ = p.out.WriteString("lambda")
		if l := v.Lambda(); l != nil {
			if l.Name != value.NoSymbol {
				_ = p.out.WriteByte(' ')
				_, _ = p.out.WriteString(p.ev.Symbols().Name(l.Name))
			}
			_, _ = p.out.WriteString(" @ ")
			_, _ = p.out.WriteString(StripANSI(l.Pos.String()))
		}
	case value.TypePrimOp:
		if op := v.PrimOp(); op != nil {
			_, _ = p.out.WriteString(op.String())
		} else {
			_, _ = p.out.WriteString("primop")
		}
	case value.TypePrimOpApp:
		_, _ = p.out.WriteString("partially applied ")
		if op := primOpAppTarget(p.ev, ref); op != nil {
			_, _ = p.out.WriteString(op.String())
		} else {
			_, _ = p.out.WriteString("primop")
		}
	default:
		panic(&InvariantError{Ref: ref, Detail: "function of type " + v.Type().String()})
	}

	_, _ = p.out.WriteString("»")
	colorEnd(p.out, p.opts.ANSIColors)
}

// primOpAppTarget walks a partial application down to its primop.
func primOpAppTarget(ev Evaluator, ref value.Ref) *value.PrimOp {
	for {
		v := ev.Value(ref)
		if v == nil {
			return nil
		}
		switch v.Type() {
		case value.TypePrimOp:
			return v.PrimOp()
		case value.TypePrimOpApp:
			ref, _ = v.AppParts()
		default:
			return nil
		}
	}
}

func (p *Printer) printThunk(ref value.Ref, v *value.Value) {
	switch v.Type() {
	case value.TypeBlackhole:
		// re-entered from the computation that is producing it
		colorStart(p.out, ansiRed, p.opts.ANSIColors)
		_, _ = p.out.WriteString("«potential infinite recursion»")
		colorEnd(p.out, p.opts.ANSIColors)
	case value.TypeThunk, value.TypeApp:
		colorStart(p.out, ansiMagenta, p.opts.ANSIColors)
		_, _ = p.out.WriteString("«thunk»")
		colorEnd(p.out, p.opts.ANSIColors)
	default:
		panic(&InvariantError{Ref: ref, Detail: "deferred value of type " + v.Type().String()})
	}
}

func (p *Printer) printExternal(ref value.Ref, v *value.Value) {
	ext := v.External()
	if ext == nil {
		panic(&InvariantError{Ref: ref, Detail: "external value without implementation"})
	}
	ext.Print(p.out)
}

// printDerivation writes «derivation PATH». Failures to resolve drvPath
// are rendered inline.
func (p *Printer) printDerivation(ctx context.Context, ref value.Ref) error {
	var storePath string
	if sym, ok := p.ev.Symbols().Lookup("drvPath"); ok {
		if drvPath, ok := p.ev.Value(ref).Attrs().Get(sym); ok {
			path, err := p.ev.CoerceToStorePath(ctx, drvPath)
			if err != nil {
				if isInterrupt(err) {
					return err
				}
				p.printError(err)
				return nil
			}
			storePath = p.ev.Store().PrintStorePath(path)
		}
	}

	colorStart(p.out, ansiGreen, p.opts.ANSIColors)
	_, _ = p.out.WriteString("«derivation")
	if storePath != "" {
		_ = p.out.WriteByte(' ')
		_, _ = p.out.WriteString(storePath)
	}
	_, _ = p.out.WriteString("»")
	colorEnd(p.out, p.opts.ANSIColors)
	return nil
}

func (p *Printer) printRepeated() {
	p.stats.Repeated++
	colorStart(p.out, ansiMagenta, p.opts.ANSIColors)
	_, _ = p.out.WriteString("«repeated»")
	colorEnd(p.out, p.opts.ANSIColors)
}

func (p *Printer) printNullptr() {
	colorStart(p.out, ansiMagenta, p.opts.ANSIColors)
	_, _ = p.out.WriteString("«nullptr»")
	colorEnd(p.out, p.opts.ANSIColors)
}

func (p *Printer) printError(err error) {
	p.stats.Errors++
	colorStart(p.out, ansiRed, p.opts.ANSIColors)
	_, _ = p.out.WriteString("«")
	_, _ = p.out.WriteString(errorMessage(err))
	_, _ = p.out.WriteString("»")
	colorEnd(p.out, p.opts.ANSIColors)
}
