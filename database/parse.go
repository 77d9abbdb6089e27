package database

import (
	"strings"

	"wsldb/domain"
	"wsldb/errs"
	"wsldb/lexwsl"
	"wsldb/schema"
)

// splitInline separates a database document's leading inline-schema
// lines (each prefixed with '%', optionally followed by a space) from
// the row lines that follow. It returns the de-prefixed schema text
// (empty if there were no '%' lines) and the remaining text.
func splitInline(text string) (schemaText, rest string) {
	lines := strings.Split(text, "\n")
	var schemaLines []string
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "%") {
			break
		}
		schemaLines = append(schemaLines, strings.TrimLeft(trimmed, "% "))
	}
	return strings.Join(schemaLines, "\n"), strings.Join(lines[i:], "\n")
}

// Parse parses a database document. If the document begins with
// '%'-prefixed inline schema lines, those are parsed as the schema and s
// must be nil; otherwise s must be the schema to parse rows against.
func Parse(s *schema.Schema, text string) (*Database, error) {
	inlineSchemaText, rowText := splitInline(text)
	if inlineSchemaText != "" {
		if s != nil {
			return nil, &errs.ParseError{Context: "database", Text: text, ErrorPos: 0, Message: "document has both an inline schema and an externally supplied one"}
		}
		var err error
		s, err = schema.Parse(inlineSchemaText)
		if err != nil {
			return nil, err
		}
	}
	if s == nil {
		return nil, &errs.ParseError{Context: "database", Text: text, ErrorPos: 0, Message: "no schema available to parse rows against"}
	}

	// The per-table decode chain is looked up once per table, not per
	// cell.
	chains := map[string][]*domain.Domain{}
	for name, t := range s.Tables {
		ds := make([]*domain.Domain, len(t.Columns))
		for i, c := range t.Columns {
			ds[i] = c.Domain
		}
		chains[name] = ds
	}

	db := &Database{Schema: s, Rows: map[string][][]any{}}
	for _, name := range s.TableOrder {
		db.Rows[name] = nil
	}

	for _, line := range strings.Split(rowText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tableName, row, err := parseRow(line, chains)
		if err != nil {
			return nil, err
		}
		db.Rows[tableName] = append(db.Rows[tableName], row)
	}
	return db, nil
}

// parseRow decodes one data line: a table name, then one space-prefixed
// token per column, with nothing trailing.
func parseRow(line string, chains map[string][]*domain.Domain) (string, []any, error) {
	name, pos, err := lexwsl.LexTableName(line, 0)
	if err != nil {
		return "", nil, err
	}
	chain, ok := chains[name]
	if !ok {
		return "", nil, &errs.ParseError{Context: "row", Text: line, StartPos: 0, ErrorPos: 0, Message: "no such table: " + name}
	}

	row := make([]any, len(chain))
	for i, d := range chain {
		pos, err = lexwsl.LexSpace(line, pos)
		if err != nil {
			return "", nil, err
		}
		raw, newpos, err := d.Lex(line, pos)
		if err != nil {
			return "", nil, err
		}
		pos = newpos
		v, err := d.Decode(raw)
		if err != nil {
			return "", nil, err
		}
		row[i] = v
	}
	if pos != len(line) {
		return "", nil, &errs.ParseError{Context: "row", Text: line, StartPos: 0, ErrorPos: pos, Message: "unexpected trailing characters after last value"}
	}
	return name, row, nil
}
