// Package database parses and formats the rows of a WSL database
// against an already-parsed schema, including the inline-schema
// ("%"-prefixed) document form.
package database

import "wsldb/schema"

// Database is a fully parsed set of rows, one slice per table, each row
// a slice of already-decoded domain values in column order.
type Database struct {
	Schema *schema.Schema
	Rows   map[string][][]any
}

// RowsOf returns the rows of table, or nil if the table has none.
func (d *Database) RowsOf(table string) [][]any { return d.Rows[table] }
