package database

import (
	"sort"
	"strings"

	"wsldb/errs"
	"wsldb/schema"
)

// Format renders a database back to WSL text: tables in sorted order,
// and within each table one row per line, sorted lexicographically by
// encoded tokens, for a canonical diff-stable form. If inline, the
// schema is emitted first as "% "-prefixed lines.
func Format(db *Database, inline bool) (string, error) {
	var b strings.Builder
	if inline {
		for _, line := range strings.Split(schema.Format(db.Schema), "\n") {
			if line == "" {
				continue
			}
			b.WriteString("% ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	for _, name := range db.Schema.SortedTableNames() {
		table := db.Schema.Tables[name]
		rows := db.Rows[name]
		encoded := make([][]string, len(rows))
		for i, row := range rows {
			toks := make([]string, len(table.Columns))
			for c, col := range table.Columns {
				raw, err := col.Domain.Encode(row[c])
				if err != nil {
					return "", err
				}
				tok, err := col.Domain.Unlex(raw)
				if err != nil {
					return "", &errs.FormatError{What: name + " row", Message: err.Error()}
				}
				toks[c] = tok
			}
			encoded[i] = toks
		}
		sort.Slice(encoded, func(i, j int) bool { return rowLess(encoded[i], encoded[j]) })
		for _, toks := range encoded {
			b.WriteString(name)
			for _, t := range toks {
				b.WriteByte(' ')
				b.WriteString(t)
			}
			b.WriteByte('\n')
		}
	}

	return b.String(), nil
}

func rowLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
