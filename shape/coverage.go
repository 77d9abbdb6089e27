package shape

import (
	"fmt"

	wslschema "wsldb/schema"
)

// Coverage maps each table name to a per-column use count: how many
// independent places in a shape spec read that column. A spec is a clean
// bijection between rows and objects only if every count is exactly 1: a
// 0 means the column is never read, and a count above 1 usually means
// the spec is denormalized. This analysis does not recognize functional
// dependencies, so a dict whose value also serves as (part of) its own
// key shows counts that look denormalized even when the spec is sound;
// read the result as a diagnostic aid, not a correctness proof.
type Coverage map[string][]int

// CheckCoverage computes the coverage of spec against s.
func CheckCoverage(s *wslschema.Schema, spec *Node) (Coverage, error) {
	cov := Coverage{}
	for _, name := range s.TableOrder {
		cov[name] = make([]int, len(s.Tables[name].Columns))
	}
	if err := checkAny(s, spec, map[string]BoundVar{}, cov); err != nil {
		return nil, err
	}
	return cov, nil
}

func checkAny(s *wslschema.Schema, n *Node, bindings map[string]BoundVar, cov Coverage) error {
	switch n.Kind {
	case ValueKind:
		b, ok := bindings[n.Variable]
		if !ok {
			return fmt.Errorf("shape coverage: variable %q is unbound", n.Variable)
		}
		cov[b.Table][b.Column]++
		return nil

	case StructKind:
		for _, child := range n.Childs {
			if err := checkAny(s, child, CopyBindings(bindings), cov); err != nil {
				return err
			}
		}
		return nil

	case OptionKind, SetKind:
		next, err := BindQuery(s, n.Query, bindings)
		if err != nil {
			return err
		}
		return checkAny(s, n.Childs[ChildVal], next, cov)

	case ListKind:
		next, err := BindQuery(s, n.Query, bindings)
		if err != nil {
			return err
		}
		if err := checkAny(s, n.Childs[ChildIdx], CopyBindings(next), cov); err != nil {
			return err
		}
		return checkAny(s, n.Childs[ChildVal], CopyBindings(next), cov)

	case DictKind:
		next, err := BindQuery(s, n.Query, bindings)
		if err != nil {
			return err
		}
		if err := checkAny(s, n.Childs[ChildKey], CopyBindings(next), cov); err != nil {
			return err
		}
		return checkAny(s, n.Childs[ChildVal], CopyBindings(next), cov)

	default:
		return fmt.Errorf("shape coverage: unknown node kind %v", n.Kind)
	}
}
