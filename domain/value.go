package domain

import (
	"net/netip"

	"wsldb/errs"
)

// ValueEqual compares two decoded domain values. Values of different Go
// types never compare equal; enum values from different bases fail with
// a type error instead of comparing indices.
func ValueEqual(a, b any) (bool, error) {
	av, aok := a.(EnumValue)
	bv, bok := b.(EnumValue)
	if aok && bok {
		return av.Equal(bv)
	}
	if aok != bok {
		return false, nil
	}
	return a == b, nil
}

// ValueLess orders two decoded domain values of the same domain: numbers
// numerically, strings bytewise, enum values by declaration index, and
// addresses in address order.
func ValueLess(a, b any) (bool, error) {
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv, nil
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv, nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv, nil
		}
	case EnumValue:
		if bv, ok := b.(EnumValue); ok {
			return av.Less(bv)
		}
	case netip.Addr:
		if bv, ok := b.(netip.Addr); ok {
			return av.Less(bv), nil
		}
	}
	return false, &errs.FormatError{What: "value", Message: "cannot order values of different types"}
}
