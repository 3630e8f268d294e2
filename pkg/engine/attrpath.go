package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openfroyo/lazyval/pkg/eval"
	"github.com/openfroyo/lazyval/pkg/value"
)

// ParseAttrPath splits a selection path such as `packages."foo.bar".out`
// into its components. Dots inside double quotes do not separate. The
// empty path selects the root and yields no components.
func ParseAttrPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	var (
		parts   []string
		cur     strings.Builder
		quoted  bool
		inQuote bool
	)
	flush := func() error {
		if cur.Len() == 0 && !quoted {
			return fmt.Errorf("empty attribute name in selection path '%s'", path)
		}
		parts = append(parts, cur.String())
		cur.Reset()
		quoted = false
		return nil
	}

	for _, r := range path {
		switch {
		case r == '"':
			inQuote = !inQuote
			quoted = true
		case r == '.' && !inQuote:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("missing closing quote in selection path '%s'", path)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return parts, nil
}

// selectAttrPath follows path from root. Every intermediate value is forced;
// the selected value itself is returned as is. A numeric component indexes
// a list, anything else names an attribute.
func selectAttrPath(ctx context.Context, ev *eval.Evaluator, root value.Ref, path string) (value.Ref, error) {
	parts, err := ParseAttrPath(path)
	if err != nil {
		return value.NilRef, NewSelectError("invalid selection path", err).
			WithAttrPath(path).WithCode(ErrCodeValidation)
	}

	ref := root
	for i, name := range parts {
		prefix := strings.Join(parts[:i], ".")

		if err := ev.Force(ctx, ref); err != nil {
			code := ErrCodeEvalFailed
			if IsCanceled(err) {
				code = ErrCodeCanceled
			}
			return value.NilRef, NewSelectError("failed to evaluate selection path", err).
				WithAttrPath(path).WithCode(code).WithDetail("prefix", prefix)
		}
		v := ev.Value(ref)

		if idx, convErr := strconv.Atoi(name); convErr == nil {
			if v.Kind() != value.KindList {
				return value.NilRef, NewSelectError(
					fmt.Sprintf("the expression selected by the selection path '%s' should be a list but is a %s", prefix, v.Kind()), nil,
				).WithAttrPath(path).WithCode(ErrCodeTypeMismatch)
			}
			elems := v.List()
			if idx < 0 || idx >= len(elems) {
				return value.NilRef, NewSelectError(
					fmt.Sprintf("list index %d in selection path '%s' is out of range", idx, path), nil,
				).WithAttrPath(path).WithCode(ErrCodeOutOfRange)
			}
			ref = elems[idx]
			continue
		}

		if v.Kind() != value.KindAttrs {
			return value.NilRef, NewSelectError(
				fmt.Sprintf("the expression selected by the selection path '%s' should be a set but is a %s", prefix, v.Kind()), nil,
			).WithAttrPath(path).WithCode(ErrCodeTypeMismatch)
		}
		sym, ok := ev.Symbols().Lookup(name)
		if ok {
			ref, ok = v.Attrs().Get(sym)
		}
		if !ok {
			return value.NilRef, NewSelectError(
				fmt.Sprintf("attribute '%s' in selection path '%s' not found", name, path), nil,
			).WithAttrPath(path).WithCode(ErrCodeNotFound)
		}
	}
	return ref, nil
}
