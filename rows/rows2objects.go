// Package rows converts between relational rows and nested tree objects
// under the direction of a shape spec. Objects are plain Go data:
// structs are map[string]any, dicts are map[any]any, sets and lists are
// []any, options are a value or nil, and scalars are the domain codec's
// decoded values.
package rows

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"wsldb/database"
	"wsldb/domain"
	"wsldb/errs"
	"wsldb/shape"
)

// scopeVar is one variable currently in scope during a traversal: its
// name and the domain of the table column that bound it.
type scopeVar struct {
	Name string
	Dom  *domain.Domain
}

func scopeIndex(cols []scopeVar, name string) (int, bool) {
	for i, c := range cols {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// pair associates a produced value with the index of the input slot it
// belongs to. Composite nodes under a query can produce zero or many
// values per slot, so results cannot simply be parallel arrays.
type pair struct {
	slot int
	val  any
}

type reader struct {
	db *database.Database
}

// Rows2Objects materializes the object tree described by spec from the
// rows of db.
func Rows2Objects(db *database.Database, spec *shape.Node) (any, error) {
	r := &reader{db: db}
	pairs, err := r.anyToObjects(nil, [][]any{{}}, []int{0}, spec)
	if err != nil {
		return nil, err
	}
	if len(pairs) != 1 {
		return nil, fmt.Errorf("rows: expected exactly one root object, got %d", len(pairs))
	}
	return pairs[0].val, nil
}

// findChildRows computes the join at a composite node: for each current
// row, the rows of the query's table whose non-fresh columns agree with
// the bindings in scope. It returns the extended scope, one extended row
// per match, the index of the originating input row for each match, and
// the per-input match count.
func (r *reader) findChildRows(cols []scopeVar, rows [][]any, q *shape.Query) ([]scopeVar, [][]any, []int, []int, error) {
	table := r.db.Schema.Tables[q.Table]

	isFresh := map[string]bool{}
	for _, f := range q.FreshVariables {
		isFresh[f] = true
	}

	type match struct{ qpos, scopePos int }
	var matches []match
	type freshCol struct {
		qpos int
		name string
	}
	var freshCols []freshCol
	firstAt := map[string]int{}
	var selfJoins [][2]int

	for i, v := range q.Variables {
		if isFresh[v] {
			if fp, dup := firstAt[v]; dup {
				selfJoins = append(selfJoins, [2]int{fp, i})
			} else {
				firstAt[v] = i
				freshCols = append(freshCols, freshCol{qpos: i, name: v})
			}
			continue
		}
		sp, ok := scopeIndex(cols, v)
		if !ok {
			return nil, nil, nil, nil, fmt.Errorf("rows: variable not in scope: %q", v)
		}
		matches = append(matches, match{qpos: i, scopePos: sp})
	}

	index := map[string][]int{}
	for p, row := range rows {
		key, err := joinKey(len(matches), func(k int) (*domain.Domain, any) {
			m := matches[k]
			return cols[m.scopePos].Dom, row[m.scopePos]
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		index[key] = append(index[key], p)
	}

	newcols := append(append([]scopeVar(nil), cols...), make([]scopeVar, len(freshCols))...)
	for i, fc := range freshCols {
		newcols[len(cols)+i] = scopeVar{Name: fc.name, Dom: table.Columns[fc.qpos].Domain}
	}

	var newrows [][]any
	var parents []int
	counts := make([]int, len(rows))

	for _, dbrow := range r.db.Rows[q.Table] {
		ok := true
		for _, sj := range selfJoins {
			eq, err := domain.ValueEqual(dbrow[sj[0]], dbrow[sj[1]])
			if err != nil {
				return nil, nil, nil, nil, err
			}
			ok = ok && eq
		}
		if !ok {
			continue
		}
		key, err := joinKey(len(matches), func(k int) (*domain.Domain, any) {
			m := matches[k]
			return table.Columns[m.qpos].Domain, dbrow[m.qpos]
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		for _, p := range index[key] {
			newrow := append(append([]any(nil), rows[p]...), make([]any, len(freshCols))...)
			for i, fc := range freshCols {
				newrow[len(rows[p])+i] = dbrow[fc.qpos]
			}
			newrows = append(newrows, newrow)
			parents = append(parents, p)
			counts[p]++
		}
	}
	return newcols, newrows, parents, counts, nil
}

// joinKey builds a collision-free string key from encoded tokens.
func joinKey(n int, at func(int) (*domain.Domain, any)) (string, error) {
	var b strings.Builder
	for k := 0; k < n; k++ {
		d, v := at(k)
		raw, err := d.Encode(v)
		if err != nil {
			return "", err
		}
		if k > 0 {
			b.WriteByte(0)
		}
		b.WriteString(raw)
	}
	return b.String(), nil
}

func (r *reader) anyToObjects(cols []scopeVar, rows [][]any, slots []int, n *shape.Node) ([]pair, error) {
	switch n.Kind {
	case shape.ValueKind:
		idx, ok := scopeIndex(cols, n.Variable)
		if !ok {
			return nil, fmt.Errorf("rows: variable not in scope: %q", n.Variable)
		}
		out := make([]pair, len(rows))
		for i := range rows {
			out[i] = pair{slot: slots[i], val: rows[i][idx]}
		}
		return out, nil

	case shape.StructKind:
		structs := make([]map[string]any, len(rows))
		for i := range structs {
			structs[i] = map[string]any{}
		}
		ids := make([]int, len(rows))
		for i := range ids {
			ids[i] = i
		}
		for _, name := range sortedChildNames(n) {
			pairs, err := r.anyToObjects(cols, rows, ids, n.Childs[name])
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				structs[p.slot][name] = p.val
			}
		}
		out := make([]pair, len(rows))
		for i := range rows {
			out[i] = pair{slot: slots[i], val: structs[i]}
		}
		return out, nil

	case shape.OptionKind:
		newcols, newrows, parents, counts, err := r.findChildRows(cols, rows, n.Query)
		if err != nil {
			return nil, err
		}
		for p, c := range counts {
			if c > 1 {
				return nil, &errs.IntegrityError{Cause: fmt.Errorf("option query in table %q matches %d rows for one object", n.Query.Table, counts[p])}
			}
		}
		vals := make([]any, len(rows))
		pairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildVal])
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			vals[p.slot] = p.val
		}
		out := make([]pair, len(rows))
		for i := range rows {
			out[i] = pair{slot: slots[i], val: vals[i]}
		}
		return out, nil

	case shape.SetKind:
		newcols, newrows, parents, _, err := r.findChildRows(cols, rows, n.Query)
		if err != nil {
			return nil, err
		}
		sets := make([][]any, len(rows))
		pairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildVal])
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			if !containsValue(sets[p.slot], p.val) {
				sets[p.slot] = append(sets[p.slot], p.val)
			}
		}
		if n.Childs[shape.ChildVal].Kind == shape.ValueKind {
			for i := range sets {
				if err := sortValues(sets[i]); err != nil {
					return nil, err
				}
			}
		}
		out := make([]pair, len(rows))
		for i := range rows {
			if sets[i] == nil {
				sets[i] = []any{}
			}
			out[i] = pair{slot: slots[i], val: sets[i]}
		}
		return out, nil

	case shape.ListKind:
		newcols, newrows, parents, _, err := r.findChildRows(cols, rows, n.Query)
		if err != nil {
			return nil, err
		}
		idxPairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildIdx])
		if err != nil {
			return nil, err
		}
		valPairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildVal])
		if err != nil {
			return nil, err
		}
		if len(idxPairs) != len(valPairs) {
			return nil, fmt.Errorf("rows: list index and value counts diverge")
		}
		type entry struct{ idx, val any }
		entries := make([][]entry, len(rows))
		for k := range idxPairs {
			p := idxPairs[k].slot
			entries[p] = append(entries[p], entry{idx: idxPairs[k].val, val: valPairs[k].val})
		}
		out := make([]pair, len(rows))
		for i := range rows {
			var sortErr error
			sort.SliceStable(entries[i], func(a, b int) bool {
				less, err := domain.ValueLess(entries[i][a].idx, entries[i][b].idx)
				if err != nil && sortErr == nil {
					sortErr = err
				}
				return less
			})
			if sortErr != nil {
				return nil, sortErr
			}
			lst := make([]any, len(entries[i]))
			for k, e := range entries[i] {
				lst[k] = e.val
			}
			out[i] = pair{slot: slots[i], val: lst}
		}
		return out, nil

	case shape.DictKind:
		newcols, newrows, parents, _, err := r.findChildRows(cols, rows, n.Query)
		if err != nil {
			return nil, err
		}
		keyPairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildKey])
		if err != nil {
			return nil, err
		}
		valPairs, err := r.anyToObjects(newcols, newrows, parents, n.Childs[shape.ChildVal])
		if err != nil {
			return nil, err
		}
		if len(keyPairs) != len(valPairs) {
			return nil, fmt.Errorf("rows: dict key and value counts diverge")
		}
		dicts := make([]map[any]any, len(rows))
		for i := range dicts {
			dicts[i] = map[any]any{}
		}
		for k := range keyPairs {
			p := keyPairs[k].slot
			key := keyPairs[k].val
			if _, dup := dicts[p][key]; dup {
				return nil, &errs.IntegrityError{Cause: fmt.Errorf("duplicate dict key %v", key)}
			}
			dicts[p][key] = valPairs[k].val
		}
		out := make([]pair, len(rows))
		for i := range rows {
			out[i] = pair{slot: slots[i], val: dicts[i]}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("rows: unknown node kind %v", n.Kind)
	}
}

func sortedChildNames(n *shape.Node) []string {
	names := make([]string, 0, len(n.Childs))
	for name := range n.Childs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func containsValue(vals []any, v any) bool {
	for _, x := range vals {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

func sortValues(vals []any) error {
	var sortErr error
	sort.SliceStable(vals, func(a, b int) bool {
		less, err := domain.ValueLess(vals[a], vals[b])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return less
	})
	return sortErr
}
