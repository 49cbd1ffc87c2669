package ipset

import (
	"fmt"
	"log/slog"
)

// rangeLike is any value ParseRanges can turn into an Address: dotted-quad
// text or an already-parsed Address.
type rangeLike any

// toAddress converts a single configuration element to an Address.
func toAddress(v rangeLike) (Address, error) {
	switch t := v.(type) {
	case Address:
		return t, nil
	case string:
		return ParseAddress(t)
	default:
		return 0, fmt.Errorf("%w: unsupported element type %T", ErrInvalidAddress, v)
	}
}

// ParseRanges normalizes heterogeneous IP_RANGES configuration into a Set.
//
// Accepted shapes:
//   - *Set: passed through unchanged.
//   - a two-element top-level slice of address-like values: interpreted as a
//     single range (first, last), with a warning logged. This collapses an
//     ambiguity in the historical configuration format that this engine
//     preserves rather than resolves.
//   - a slice of two-element slices: each inner pair is always a range.
//   - a slice of single address-like values: each becomes a one-address
//     range.
func ParseRanges(input any) (*Set, error) {
	if set, ok := input.(*Set); ok {
		return set, nil
	}

	items, ok := input.([]any)
	if !ok {
		return nil, fmt.Errorf("ipset: unsupported IP_RANGES value of type %T", input)
	}

	if len(items) == 0 {
		return NewSet(), nil
	}

	// Historical ambiguity: a bare two-element top-level sequence of
	// address-like values means "one range", not "two single addresses".
	if len(items) == 2 {
		if _, isSlice := items[0].([]any); !isSlice {
			if _, isSlice := items[1].([]any); !isSlice {
				first, err1 := toAddress(items[0])
				last, err2 := toAddress(items[1])
				if err1 == nil && err2 == nil {
					slog.Warn("ipset: interpreting two-element IP_RANGES as a single range",
						"first", first.String(), "last", last.String())
					return NewSet(NewRange(first, last)), nil
				}
			}
		}
	}

	set := NewSet()
	for _, item := range items {
		switch v := item.(type) {
		case []any:
			if len(v) != 2 {
				return nil, fmt.Errorf("ipset: nested range must have exactly two elements, got %d", len(v))
			}
			first, err := toAddress(v[0])
			if err != nil {
				return nil, err
			}
			last, err := toAddress(v[1])
			if err != nil {
				return nil, err
			}
			set.Add(NewRange(first, last))
		default:
			addr, err := toAddress(v)
			if err != nil {
				return nil, err
			}
			set.Add(Range{First: addr, Last: addr})
		}
	}

	return set, nil
}
