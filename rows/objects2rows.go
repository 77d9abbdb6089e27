package rows

import (
	"fmt"
	"sort"

	"wsldb/database"
	"wsldb/domain"
	"wsldb/errs"
	"wsldb/schema"
	"wsldb/shape"
)

// cell is a write-once slot for one variable of one row under
// construction. A second write must agree with the first.
type cell struct {
	isSet bool
	val   any
}

func (c *cell) set(v any) error {
	if c.isSet {
		eq, err := domain.ValueEqual(c.val, v)
		if err != nil || !eq {
			return &errs.IntegrityError{Cause: fmt.Errorf("relational value present at two locations disagrees")}
		}
		return nil
	}
	c.isSet = true
	c.val = v
	return nil
}

func freshCells(n int) []*cell {
	out := make([]*cell, n)
	for i := range out {
		out[i] = &cell{}
	}
	return out
}

type pendingRows struct {
	query *shape.Query
	cols  []scopeVar
	rows  [][]*cell
}

type writer struct {
	schema  *schema.Schema
	pending []pendingRows
}

// Objects2Rows decomposes the object tree obj into relational rows per
// spec. The returned database has each table's rows deduplicated and
// sorted by encoded tokens.
func Objects2Rows(s *schema.Schema, spec *shape.Node, obj any) (*database.Database, error) {
	w := &writer{schema: s}
	if err := w.todb(nil, [][]*cell{{}}, []any{obj}, spec); err != nil {
		return nil, err
	}

	// Row emission is deferred until the whole tree has been walked:
	// a query may read a variable that a sibling subtree assigns, and
	// the shared cells only carry their final values once traversal is
	// complete.
	db := &database.Database{Schema: s, Rows: map[string][][]any{}}
	for _, name := range s.TableOrder {
		db.Rows[name] = nil
	}
	for _, p := range w.pending {
		for _, cellRow := range p.rows {
			row := make([]any, len(p.query.Variables))
			for i, v := range p.query.Variables {
				idx, ok := scopeIndex(p.cols, v)
				if !ok {
					return nil, fmt.Errorf("rows: variable not in scope: %q", v)
				}
				c := cellRow[idx]
				if !c.isSet {
					return nil, &errs.IntegrityError{Cause: fmt.Errorf("no value for variable %q of table %q", v, p.query.Table)}
				}
				row[i] = c.val
			}
			db.Rows[p.query.Table] = append(db.Rows[p.query.Table], row)
		}
	}
	if err := normalize(db); err != nil {
		return nil, err
	}
	return db, nil
}

// extendScope appends cells and scope entries for a query's fresh
// variables to each given row.
func (w *writer) extendScope(cols []scopeVar, q *shape.Query) []scopeVar {
	table := w.schema.Tables[q.Table]
	isFresh := map[string]bool{}
	for _, f := range q.FreshVariables {
		isFresh[f] = true
	}
	out := append([]scopeVar(nil), cols...)
	seen := map[string]bool{}
	for i, v := range q.Variables {
		if isFresh[v] && !seen[v] {
			seen[v] = true
			out = append(out, scopeVar{Name: v, Dom: table.Columns[i].Domain})
		}
	}
	return out
}

func (w *writer) todb(cols []scopeVar, cellRows [][]*cell, objs []any, n *shape.Node) error {
	if len(cellRows) != len(objs) {
		return fmt.Errorf("rows: internal row/object count mismatch")
	}
	switch n.Kind {
	case shape.ValueKind:
		idx, ok := scopeIndex(cols, n.Variable)
		if !ok {
			return fmt.Errorf("rows: variable not in scope: %q", n.Variable)
		}
		for i, row := range cellRows {
			if err := row[idx].set(objs[i]); err != nil {
				return err
			}
		}
		return nil

	case shape.StructKind:
		for _, name := range sortedChildNames(n) {
			childObjs := make([]any, len(objs))
			for i, o := range objs {
				m, ok := o.(map[string]any)
				if !ok {
					return &errs.FormatError{What: "struct", Message: fmt.Sprintf("expected object with member %q", name)}
				}
				v, present := m[name]
				if !present {
					return &errs.FormatError{What: "struct", Message: fmt.Sprintf("missing member %q", name)}
				}
				childObjs[i] = v
			}
			if err := w.todb(cols, cellRows, childObjs, n.Childs[name]); err != nil {
				return err
			}
		}
		return nil

	case shape.OptionKind:
		nextcols := w.extendScope(cols, n.Query)
		var nextrows [][]*cell
		var nextobjs []any
		for i, o := range objs {
			if o == nil {
				continue
			}
			nextrows = append(nextrows, append(append([]*cell(nil), cellRows[i]...), freshCells(len(nextcols)-len(cols))...))
			nextobjs = append(nextobjs, o)
		}
		if err := w.todb(nextcols, nextrows, nextobjs, n.Childs[shape.ChildVal]); err != nil {
			return err
		}
		w.pending = append(w.pending, pendingRows{query: n.Query, cols: nextcols, rows: nextrows})
		return nil

	case shape.SetKind:
		nextcols := w.extendScope(cols, n.Query)
		var nextrows [][]*cell
		var nextobjs []any
		for i, o := range objs {
			items, ok := o.([]any)
			if !ok {
				return &errs.FormatError{What: "set", Message: "expected a slice of elements"}
			}
			for _, item := range items {
				nextrows = append(nextrows, append(append([]*cell(nil), cellRows[i]...), freshCells(len(nextcols)-len(cols))...))
				nextobjs = append(nextobjs, item)
			}
		}
		if err := w.todb(nextcols, nextrows, nextobjs, n.Childs[shape.ChildVal]); err != nil {
			return err
		}
		w.pending = append(w.pending, pendingRows{query: n.Query, cols: nextcols, rows: nextrows})
		return nil

	case shape.ListKind:
		nextcols := w.extendScope(cols, n.Query)
		var nextrows [][]*cell
		var nextvals []any
		var nextidxs []any
		for i, o := range objs {
			items, ok := o.([]any)
			if !ok {
				return &errs.FormatError{What: "list", Message: "expected a slice of elements"}
			}
			for k, item := range items {
				nextrows = append(nextrows, append(append([]*cell(nil), cellRows[i]...), freshCells(len(nextcols)-len(cols))...))
				nextvals = append(nextvals, item)
				nextidxs = append(nextidxs, int64(k))
			}
		}
		if err := w.todb(nextcols, nextrows, nextidxs, n.Childs[shape.ChildIdx]); err != nil {
			return err
		}
		if err := w.todb(nextcols, nextrows, nextvals, n.Childs[shape.ChildVal]); err != nil {
			return err
		}
		w.pending = append(w.pending, pendingRows{query: n.Query, cols: nextcols, rows: nextrows})
		return nil

	case shape.DictKind:
		nextcols := w.extendScope(cols, n.Query)
		var nextrows [][]*cell
		var nextkeys []any
		var nextvals []any
		for i, o := range objs {
			m, ok := o.(map[any]any)
			if !ok {
				return &errs.FormatError{What: "dict", Message: "expected a keyed map of elements"}
			}
			for key, val := range m {
				nextrows = append(nextrows, append(append([]*cell(nil), cellRows[i]...), freshCells(len(nextcols)-len(cols))...))
				nextkeys = append(nextkeys, key)
				nextvals = append(nextvals, val)
			}
		}
		if err := w.todb(nextcols, nextrows, nextkeys, n.Childs[shape.ChildKey]); err != nil {
			return err
		}
		if err := w.todb(nextcols, nextrows, nextvals, n.Childs[shape.ChildVal]); err != nil {
			return err
		}
		w.pending = append(w.pending, pendingRows{query: n.Query, cols: nextcols, rows: nextrows})
		return nil

	default:
		return fmt.Errorf("rows: unknown node kind %v", n.Kind)
	}
}

// normalize deduplicates and sorts every table's rows by their encoded
// tokens.
func normalize(db *database.Database) error {
	for name, rows := range db.Rows {
		table := db.Schema.Tables[name]
		type encRow struct {
			toks []string
			row  []any
		}
		enc := make([]encRow, len(rows))
		for i, row := range rows {
			toks := make([]string, len(table.Columns))
			for c, col := range table.Columns {
				raw, err := col.Domain.Encode(row[c])
				if err != nil {
					return err
				}
				toks[c] = raw
			}
			enc[i] = encRow{toks: toks, row: row}
		}
		sort.SliceStable(enc, func(a, b int) bool { return tokensLess(enc[a].toks, enc[b].toks) })
		var out [][]any
		for i, e := range enc {
			if i > 0 && tokensEqual(enc[i-1].toks, e.toks) {
				continue
			}
			out = append(out, e.row)
		}
		db.Rows[name] = out
	}
	return nil
}

func tokensLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func tokensEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
