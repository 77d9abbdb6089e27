// Package integrity checks a parsed database against its schema's keys
// (uniqueness, including the implicit all-columns key) and foreign keys
// (referential integrity).
package integrity

import (
	"strings"

	"wsldb/database"
	"wsldb/errs"
)

// Check verifies every key and foreign key of db, walking tables in
// sorted order so results are deterministic. It returns the first
// violation found, wrapped in an *errs.IntegrityError.
func Check(db *database.Database) error {
	s := db.Schema

	// Rows are compared by their encoded tokens, which the domain codec
	// guarantees are unique per value.
	encoded := map[string][][]string{}
	for _, tableName := range s.SortedTableNames() {
		table := s.Tables[tableName]
		rows := db.Rows[tableName]
		enc := make([][]string, len(rows))
		for i, row := range rows {
			toks := make([]string, len(table.Columns))
			for c, col := range table.Columns {
				raw, err := col.Domain.Encode(row[c])
				if err != nil {
					return err
				}
				toks[c] = raw
			}
			enc[i] = toks
		}
		encoded[tableName] = enc
	}

	// Each key gets a set of projected sub-rows; the first repeated
	// projection is a uniqueness violation.
	for _, tableName := range s.SortedTableNames() {
		for _, k := range s.KeysOfTable[tableName] {
			seen := map[string]bool{}
			for _, toks := range encoded[tableName] {
				tuple := project(toks, k.Columns)
				if seen[tuple] {
					return &errs.IntegrityError{Cause: &errs.UniqueConstraintViolation{
						Table: tableName, Key: k.Name, Row: append([]string(nil), toks...),
					}}
				}
				seen[tuple] = true
			}
		}
	}

	for _, tableName := range s.SortedTableNames() {
		for _, fk := range s.ForeignKeysOfTable[tableName] {
			// The matching unique key was resolved at schema build
			// time; its projections are keyed in ref-column order,
			// which equals the key's ascending column order only up to
			// permutation, so project the reference side explicitly.
			refSeen := map[string]bool{}
			for _, toks := range encoded[fk.RefTable] {
				refSeen[project(toks, fk.RefColumns)] = true
			}
			for _, toks := range encoded[tableName] {
				if !refSeen[project(toks, fk.Columns)] {
					return &errs.IntegrityError{Cause: &errs.ForeignKeyConstraintViolation{
						Table: tableName, ForeignKey: fk.Name, RefTable: fk.RefTable,
						Row: append([]string(nil), toks...),
					}}
				}
			}
		}
	}

	return nil
}

func project(toks []string, columns []int) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(toks[c])
	}
	return b.String()
}

