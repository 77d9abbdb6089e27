package shape

import (
	"fmt"
	"strings"

	"wsldb/errs"
	wslschema "wsldb/schema"
)

const indentWidth = 4

type line struct {
	indent int
	text   string // content after leading spaces, never empty
	lineno int
}

// ParseSpec parses a shape-spec document into its root Struct node and
// resolves every value leaf's PrimType by tracing its variable back
// through the enclosing queries to a table column of s.
func ParseSpec(s *wslschema.Schema, text string) (*Node, error) {
	lines, err := splitLines(text)
	if err != nil {
		return nil, err
	}
	childs, next, err := parseBlock(text, lines, 0, 0)
	if err != nil {
		return nil, err
	}
	if next != len(lines) {
		return nil, specErr(text, lines[next].lineno, "unexpected indentation")
	}
	root := &Node{Kind: StructKind, Childs: childs}
	if err := inferTypes(s, root, map[string]BoundVar{}); err != nil {
		return nil, err
	}
	return root, nil
}

// BoundVar records which table column a shape-spec variable resolves
// to. BindQuery threads these bindings through the tree for type
// inference and coverage analysis; the rows package tracks variable
// scope with its own structures during conversion.
type BoundVar struct {
	Table  string
	Column int
}

func specErr(text string, lineno int, format string, args ...any) error {
	return &errs.ParseError{Context: "shape spec", Text: text, ErrorPos: offsetOfLine(text, lineno), Message: fmt.Sprintf(format, args...)}
}

func offsetOfLine(text string, lineno int) int {
	off := 0
	for i, l := range strings.Split(text, "\n") {
		if i+1 == lineno {
			return off
		}
		off += len(l) + 1
	}
	return len(text)
}

func splitLines(text string) ([]line, error) {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n := 0
		for n < len(raw) && raw[n] == ' ' {
			n++
		}
		if n < len(raw) && raw[n] == '\t' {
			return nil, specErr(text, i+1, "tabs not allowed for indent")
		}
		if n%indentWidth != 0 {
			return nil, specErr(text, i+1, "indent must be a multiple of %d spaces", indentWidth)
		}
		out = append(out, line{indent: n / indentWidth, text: strings.TrimRight(raw[n:], " "), lineno: i + 1})
	}
	return out, nil
}

// parseBlock consumes every consecutive line at exactly the given indent
// level, building a map of field name to child node, and returns the
// index of the first line not consumed (shallower indent or EOF).
func parseBlock(text string, lines []line, pos, indent int) (map[string]*Node, int, error) {
	childs := map[string]*Node{}
	for pos < len(lines) && lines[pos].indent == indent {
		name, node, next, err := parseEntry(text, lines, pos, indent)
		if err != nil {
			return nil, 0, err
		}
		if _, dup := childs[name]; dup {
			return nil, 0, specErr(text, lines[pos].lineno, "duplicate member %q", name)
		}
		childs[name] = node
		pos = next
	}
	if pos < len(lines) && lines[pos].indent > indent {
		return nil, 0, specErr(text, lines[pos].lineno, "wrong amount of indentation (need %d levels)", indent)
	}
	return childs, pos, nil
}

// parseEntry parses one `name: type ...` line plus, recursively, its
// children block (the lines at indent+1 immediately below it).
func parseEntry(text string, lines []line, pos, indent int) (string, *Node, int, error) {
	l := lines[pos]

	name, rest, ok := strings.Cut(l.text, ":")
	if !ok {
		return "", nil, 0, specErr(text, l.lineno, "expected \":\" after member name")
	}
	if !isMemberName(name) {
		return "", nil, 0, specErr(text, l.lineno, "invalid member name %q", name)
	}
	rest, ok = strings.CutPrefix(rest, " ")
	if !ok {
		return "", nil, 0, specErr(text, l.lineno, "expected space after \":\"")
	}
	kindWord, rest, _ := strings.Cut(rest, " ")

	switch kindWord {
	case "value":
		variable := strings.TrimSpace(rest)
		if !isVariable(variable) {
			return "", nil, 0, specErr(text, l.lineno, "value member requires a variable name")
		}
		return name, &Node{Kind: ValueKind, Variable: variable}, pos + 1, nil

	case "struct":
		if strings.TrimSpace(rest) != "" {
			return "", nil, 0, specErr(text, l.lineno, "queries not allowed for struct members")
		}
		childs, next, err := parseBlock(text, lines, pos+1, indent+1)
		if err != nil {
			return "", nil, 0, err
		}
		if len(childs) == 0 {
			return "", nil, 0, specErr(text, l.lineno, "struct requires at least one member")
		}
		for child := range childs {
			if strings.HasPrefix(child, "_") {
				return "", nil, 0, specErr(text, l.lineno, "struct member %q must not start with underscore", child)
			}
		}
		return name, &Node{Kind: StructKind, Childs: childs}, next, nil

	case "option", "set", "list", "dict":
		query, err := parseQueryClause(text, rest, l.lineno)
		if err != nil {
			return "", nil, 0, err
		}
		childs, next, err := parseBlock(text, lines, pos+1, indent+1)
		if err != nil {
			return "", nil, 0, err
		}
		required := map[string][]string{
			"option": {ChildVal},
			"set":    {ChildVal},
			"list":   {ChildIdx, ChildVal},
			"dict":   {ChildKey, ChildVal},
		}[kindWord]
		if err := requireExactChilds(text, childs, required, l.lineno, kindWord); err != nil {
			return "", nil, 0, err
		}
		if kindWord == "dict" && childs[ChildKey].Kind != ValueKind {
			return "", nil, 0, specErr(text, l.lineno, "dict %s member must be a value", ChildKey)
		}
		kind := map[string]Kind{"option": OptionKind, "set": SetKind, "list": ListKind, "dict": DictKind}[kindWord]
		return name, &Node{Kind: kind, Childs: childs, Query: query}, next, nil

	default:
		return "", nil, 0, specErr(text, l.lineno, "not a valid member type: %q (valid types are: value struct option set list dict)", kindWord)
	}
}

func isMemberName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			return false
		}
	}
	return true
}

func isVariable(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
		return false
	}
	return isMemberName(s)
}

func requireExactChilds(text string, childs map[string]*Node, required []string, lineno int, kindWord string) error {
	for _, r := range required {
		if _, ok := childs[r]; !ok {
			return specErr(text, lineno, "%s member needs a %s child", kindWord, r)
		}
	}
	if len(childs) != len(required) {
		for name := range childs {
			known := false
			for _, r := range required {
				known = known || name == r
			}
			if !known {
				return specErr(text, lineno, "%s member has unexpected child %q", kindWord, name)
			}
		}
	}
	return nil
}

// parseQueryClause parses `for (fresh...) (table var...)`.
func parseQueryClause(text, s string, lineno int) (*Query, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "for ")
	if !ok {
		return nil, specErr(text, lineno, "expected \"for (fresh...) (table var...)\"")
	}
	fresh, rest, err := takeParenGroup(text, strings.TrimSpace(rest), lineno, true)
	if err != nil {
		return nil, err
	}
	clause, rest, err := takeParenGroup(text, strings.TrimSpace(rest), lineno, false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, specErr(text, lineno, "unexpected trailing text after query")
	}
	return &Query{FreshVariables: fresh, Table: clause[0], Variables: clause[1:]}, nil
}

// takeParenGroup consumes a parenthesized, space-separated identifier
// list from the head of s.
func takeParenGroup(text, s string, lineno int, emptyAllowed bool) ([]string, string, error) {
	if !strings.HasPrefix(s, "(") {
		return nil, "", specErr(text, lineno, "expected \"(\"")
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, "", specErr(text, lineno, "unterminated \"(\"")
	}
	names := strings.Fields(s[1:end])
	if len(names) == 0 && !emptyAllowed {
		return nil, "", specErr(text, lineno, "empty identifier list not allowed")
	}
	for _, n := range names {
		if !isVariable(n) {
			return nil, "", specErr(text, lineno, "invalid identifier %q", n)
		}
	}
	return names, s[end+1:], nil
}

// inferTypes walks the tree, threading variable bindings established by
// each query's fresh variables, and fills in every value leaf's PrimType
// from the schema column its variable resolves to.
func inferTypes(s *wslschema.Schema, n *Node, bindings map[string]BoundVar) error {
	switch n.Kind {
	case ValueKind:
		b, ok := bindings[n.Variable]
		if !ok {
			return &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("variable not in scope: %q", n.Variable)}
		}
		n.PrimType = s.Tables[b.Table].Columns[b.Column].Domain.Name
		return nil

	case StructKind:
		for _, child := range n.Childs {
			if err := inferTypes(s, child, CopyBindings(bindings)); err != nil {
				return err
			}
		}
		return nil

	case OptionKind, SetKind, ListKind, DictKind:
		next, err := BindQuery(s, n.Query, bindings)
		if err != nil {
			return err
		}
		for _, child := range n.Childs {
			if err := inferTypes(s, child, CopyBindings(next)); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("shape: unknown node kind %v", n.Kind)
	}
}

// CopyBindings returns a shallow copy of b, used whenever recursion
// branches into independent sub-trees that must not leak bindings back
// into their siblings.
func CopyBindings(b map[string]BoundVar) map[string]BoundVar {
	out := make(map[string]BoundVar, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// BindQuery extends bindings with the columns q's fresh variables
// introduce, validating that q is consistent with s: the table exists,
// the variable tuple covers its arity, fresh variables do not shadow
// outer bindings, and non-fresh variables are already bound to a column
// of the same domain.
func BindQuery(s *wslschema.Schema, q *Query, bindings map[string]BoundVar) (map[string]BoundVar, error) {
	table, ok := s.Tables[q.Table]
	if !ok {
		return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("query references undeclared table %q", q.Table)}
	}
	if len(q.Variables) != len(table.Columns) {
		return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("query against table %q has %d variables but the table has %d columns", q.Table, len(q.Variables), len(table.Columns))}
	}
	fresh := map[string]bool{}
	for _, f := range q.FreshVariables {
		found := false
		for _, v := range q.Variables {
			found = found || v == f
		}
		if !found {
			return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("fresh variable %q does not occur in the query", f)}
		}
		fresh[f] = true
	}
	out := CopyBindings(bindings)
	for i, v := range q.Variables {
		if fresh[v] {
			if _, already := bindings[v]; already {
				return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("variable %q shadows an outer binding", v)}
			}
			out[v] = BoundVar{Table: q.Table, Column: i}
		} else {
			b, bound := bindings[v]
			if !bound {
				return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("variable not in scope: %q", v)}
			}
			have := s.Tables[b.Table].Columns[b.Column].Domain
			want := table.Columns[i].Domain
			if have != want {
				return nil, &errs.ConfigurationError{Context: "shape spec", Message: fmt.Sprintf("type mismatch: variable %q has domain %q but this query position requires %q", v, have.Name, want.Name)}
			}
		}
	}
	return out, nil
}
