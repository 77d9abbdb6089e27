// Package errs defines the error taxonomy shared by every parsing,
// formatting, and integrity-checking stage in the module: lexical errors,
// parse errors, format errors, integrity violations, and configuration
// errors. Each kind is its own struct so callers can type-switch on the
// concrete error rather than parsing messages.
package errs

import (
	"fmt"
	"strings"
)

// LineCol computes the 1-based line and column of an offset into text,
// counting newlines up to offset. Shared by LexError and ParseError so
// both report positions the same way.
func LineCol(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	line = 1 + strings.Count(text[:offset], "\n")
	if i := strings.LastIndexByte(text[:offset], '\n'); i >= 0 {
		col = offset - i
	} else {
		col = offset + 1
	}
	return line, col
}

// LexError reports a failure to tokenize a primitive value in the lexical
// type named by LexicalType (e.g. "string", "int", "identifier").
type LexError struct {
	LexicalType string
	Text        string
	StartPos    int
	ErrorPos    int
	Message     string
}

func (e *LexError) Error() string {
	sl, sc := LineCol(e.Text, e.StartPos)
	el, ec := LineCol(e.Text, e.ErrorPos)
	return fmt.Sprintf("While lexing %s (starting at %d:%d): At %d:%d: %s", e.LexicalType, sl, sc, el, ec, e.Message)
}

// ParseError reports a grammar-level failure while parsing a schema,
// database, or shape-spec document. Context names the grammar rule in
// progress (e.g. "key declaration", "shape tree").
type ParseError struct {
	Context  string
	Text     string
	StartPos int
	ErrorPos int
	Message  string
}

func (e *ParseError) Error() string {
	line, col := LineCol(e.Text, e.ErrorPos)
	return fmt.Sprintf("While parsing %s: At %d:%d: %s", e.Context, line, col, e.Message)
}

// FormatError reports a failure to render a value back to its text or
// JSON form, typically because a domain's encoder rejected a value it
// was never asked to decode.
type FormatError struct {
	What    string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error (%s): %s", e.What, e.Message)
}

// UniqueConstraintViolation reports a duplicate row under a declared key.
type UniqueConstraintViolation struct {
	Table string
	Key   string
	Row   []string
}

func (e *UniqueConstraintViolation) Error() string {
	return fmt.Sprintf("unique constraint violation: table %q key %q row %v", e.Table, e.Key, e.Row)
}

// ForeignKeyConstraintViolation reports a row whose foreign key has no
// matching row in the referenced table.
type ForeignKeyConstraintViolation struct {
	Table      string
	ForeignKey string
	RefTable   string
	Row        []string
}

func (e *ForeignKeyConstraintViolation) Error() string {
	return fmt.Sprintf("foreign key constraint violation: table %q foreign key %q -> %q row %v",
		e.Table, e.ForeignKey, e.RefTable, e.Row)
}

// IntegrityError wraps either constraint violation kind above, letting
// callers handle "the database failed a check" uniformly while still
// being able to unwrap to the specific violation.
type IntegrityError struct {
	Cause error
}

func (e *IntegrityError) Error() string { return fmt.Sprintf("integrity error: %s", e.Cause) }
func (e *IntegrityError) Unwrap() error { return e.Cause }

// ConfigurationError reports a schema that is internally inconsistent
// before any database is even read: duplicate declarations, a reference
// to an undeclared domain or table, a key whose columns don't exist.
type ConfigurationError struct {
	Context string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Context, e.Message)
}
