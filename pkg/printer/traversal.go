package printer

import (
	"cmp"
	"context"
	"slices"

	"github.com/openfroyo/lazyval/pkg/value"
)

type attrPair struct {
	name string
	ref  value.Ref
}

// isImportantAttrName reports whether name discriminates the type of a set.
func isImportantAttrName(name string) bool {
	return name == "type" || name == "_type"
}

// sortAttrs orders pairs by name. When importantFirst is set, type
// discriminators come before all other names.
func sortAttrs(pairs []attrPair, importantFirst bool) {
	slices.SortFunc(pairs, func(a, b attrPair) int {
		if importantFirst {
			ai, bi := isImportantAttrName(a.name), isImportantAttrName(b.name)
			if ai != bi {
				if ai {
					return -1
				}
				return 1
			}
		}
		return cmp.Compare(a.name, b.name)
	})
}

func (p *Printer) printAttrs(ctx context.Context, ref value.Ref, depth int) error {
	if !p.visit(ref) {
		p.printRepeated()
		return nil
	}

	if p.opts.Force && p.opts.DerivationPaths {
		isDrv, err := p.ev.IsDerivation(ctx, ref)
		if err != nil {
			if isInterrupt(err) {
				return err
			}
			p.printError(err)
			return nil
		}
		if isDrv {
			return p.printDerivation(ctx, ref)
		}
	}

	if depth >= p.opts.MaxDepth {
		_, _ = p.out.WriteString("{ ... }")
		p.stats.Elided++
		return nil
	}

	bindings := p.ev.Value(ref).Attrs()
	symbols := p.ev.Symbols()
	sorted := make([]attrPair, len(bindings))
	for i, a := range bindings {
		sorted[i] = attrPair{name: symbols.Name(a.Name), ref: a.Value}
	}
	sortAttrs(sorted, p.opts.MaxAttributes != Unlimited)

	_, _ = p.out.WriteString("{ ")
	for i, pair := range sorted {
		if p.attrsPrinted >= p.opts.MaxAttributes {
			writeElided(p.out, len(sorted)-i, "attribute", "attributes", p.opts.ANSIColors)
			p.stats.Elided++
			break
		}

		writeAttributeName(p.out, pair.name)
		_, _ = p.out.WriteString(" = ")
		if err := p.print(ctx, pair.ref, depth+1); err != nil {
			return err
		}
		_, _ = p.out.WriteString("; ")
		p.attrsPrinted++
	}
	_ = p.out.WriteByte('}')
	return nil
}

func (p *Printer) printList(ctx context.Context, ref value.Ref, depth int) error {
	items := p.ev.Value(ref).List()

	// an empty list is never reported as repeated
	if len(items) > 0 && !p.visit(ref) {
		p.printRepeated()
		return nil
	}

	_, _ = p.out.WriteString("[ ")
	if depth < p.opts.MaxDepth {
		for i, elem := range items {
			if p.listItemsPrinted >= p.opts.MaxListItems {
				writeElided(p.out, len(items)-i, "item", "items", p.opts.ANSIColors)
				p.stats.Elided++
				break
			}

			if err := p.print(ctx, elem, depth+1); err != nil {
				return err
			}
			_ = p.out.WriteByte(' ')
			p.listItemsPrinted++
		}
	} else {
		_, _ = p.out.WriteString("... ")
		p.stats.Elided++
	}
	_ = p.out.WriteByte(']')
	return nil
}
