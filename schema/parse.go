package schema

import (
	"fmt"
	"sort"
	"strings"

	"wsldb/domain"
	"wsldb/errs"
)

type rawLine struct {
	fields []string
	lineno int
}

// Parse parses a schema document in two passes: the first classifies
// every non-blank line by its leading keyword without resolving
// cross-references, the second builds domains, then tables, then keys,
// then foreign keys, so each stage can refer back to everything declared
// before it. Lines with an unrecognized leading keyword are skipped.
func Parse(text string) (*Schema, error) {
	var domainLines, tableLines, keyLines, refLines []rawLine

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)
		rl := rawLine{fields: fields[1:], lineno: i + 1}
		switch fields[0] {
		case "DOMAIN":
			domainLines = append(domainLines, rl)
		case "TABLE":
			tableLines = append(tableLines, rl)
		case "KEY":
			keyLines = append(keyLines, rl)
		case "REFERENCE":
			refLines = append(refLines, rl)
		default:
			// Unknown declaration kinds are ignored so newer schema
			// documents stay readable by older tools.
		}
	}

	s := &Schema{
		Spec:               text,
		Domains:            map[string]*domain.Domain{},
		DomainDecls:        map[string]DomainDecl{},
		Tables:             map[string]*Table{},
		Keys:               map[string]*Key{},
		KeysOfTable:        map[string][]*Key{},
		ForeignKeys:        map[string]*ForeignKey{},
		ForeignKeysOfTable: map[string][]*ForeignKey{},
	}

	for _, rl := range domainLines {
		if err := s.addDomain(rl); err != nil {
			return nil, err
		}
	}
	for _, rl := range tableLines {
		if err := s.addTable(rl); err != nil {
			return nil, err
		}
	}
	for _, rl := range keyLines {
		if err := s.addKey(rl); err != nil {
			return nil, err
		}
	}
	for _, rl := range refLines {
		if err := s.addForeignKey(rl); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func declErr(lineno int, format string, args ...any) error {
	return &errs.ConfigurationError{Context: fmt.Sprintf("line %d", lineno), Message: fmt.Sprintf(format, args...)}
}

func isDeclName(s string) bool {
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
	return isDeclName(s)
}

func isTableName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func (s *Schema) addDomain(rl rawLine) error {
	if len(rl.fields) < 2 {
		return declErr(rl.lineno, "DOMAIN requires a name and a kind")
	}
	name, kind, args := rl.fields[0], rl.fields[1], rl.fields[2:]
	if !isDeclName(name) {
		return declErr(rl.lineno, "invalid domain name %q", name)
	}
	if _, dup := s.Domains[name]; dup {
		return declErr(rl.lineno, "domain %q declared twice", name)
	}
	d, err := domain.Build(kind, name, args)
	if err != nil {
		return declErr(rl.lineno, "%s", err)
	}
	s.Domains[name] = d
	s.DomainDecls[name] = DomainDecl{Kind: kind, Args: append([]string(nil), args...)}
	s.DomainOrder = append(s.DomainOrder, name)
	return nil
}

func (s *Schema) addTable(rl rawLine) error {
	if len(rl.fields) < 2 {
		return declErr(rl.lineno, "TABLE requires a name and at least one column")
	}
	name := rl.fields[0]
	if !isTableName(name) {
		return declErr(rl.lineno, "invalid table name %q (letters only)", name)
	}
	if _, dup := s.Tables[name]; dup {
		return declErr(rl.lineno, "table %q declared twice", name)
	}
	table := &Table{Name: name}
	seen := map[string]bool{}
	for _, colspec := range rl.fields[1:] {
		var colName, domName string
		if at := strings.IndexByte(colspec, ':'); at >= 0 {
			colName, domName = colspec[:at], colspec[at+1:]
			if !isDeclName(colName) {
				return declErr(rl.lineno, "invalid column name %q in table %q", colName, name)
			}
			if seen[colName] {
				return declErr(rl.lineno, "duplicate column name %q in table %q", colName, name)
			}
			seen[colName] = true
		} else {
			domName = colspec
		}
		d, ok := s.Domains[domName]
		if !ok {
			return declErr(rl.lineno, "table %q references undeclared domain %q", name, domName)
		}
		table.Columns = append(table.Columns, Column{Name: colName, Domain: d})
	}
	s.Tables[name] = table
	s.TableOrder = append(s.TableOrder, name)

	implicit := &Key{Name: ImplicitKeyName(name), Table: name, Columns: make([]int, len(table.Columns))}
	for i := range table.Columns {
		implicit.Columns[i] = i
	}
	s.Keys[implicit.Name] = implicit
	s.KeysOfTable[name] = append(s.KeysOfTable[name], implicit)
	return nil
}

// parseVarTuple validates a positional variable/wildcard tuple against a
// table's arity and returns the indices of the variable positions (in
// ascending order) plus the variable-name-to-index mapping.
func parseVarTuple(t *Table, vars []string, lineno int, context string) ([]int, map[string]int, error) {
	if len(vars) != len(t.Columns) {
		return nil, nil, declErr(lineno, "%s: arity mismatch for table %q: %d variables for %d columns", context, t.Name, len(vars), len(t.Columns))
	}
	byName := map[string]int{}
	var idxs []int
	for i, v := range vars {
		if v == "*" {
			continue
		}
		if !isVariable(v) {
			return nil, nil, declErr(lineno, "%s: invalid variable %q", context, v)
		}
		if _, dup := byName[v]; dup {
			return nil, nil, declErr(lineno, "%s: variable %q used twice on the same side", context, v)
		}
		byName[v] = i
		idxs = append(idxs, i)
	}
	return idxs, byName, nil
}

func (s *Schema) addKey(rl rawLine) error {
	if len(rl.fields) < 3 {
		return declErr(rl.lineno, "KEY requires a name, a table, and a variable tuple")
	}
	name, tableName, vars := rl.fields[0], rl.fields[1], rl.fields[2:]
	if !isDeclName(name) {
		return declErr(rl.lineno, "invalid key name %q", name)
	}
	if _, dup := s.Keys[name]; dup {
		return declErr(rl.lineno, "key %q declared twice", name)
	}
	table, ok := s.Tables[tableName]
	if !ok {
		return declErr(rl.lineno, "KEY %q references undeclared table %q", name, tableName)
	}
	idxs, _, err := parseVarTuple(table, vars, rl.lineno, "KEY "+name)
	if err != nil {
		return err
	}
	if len(idxs) == 0 {
		return declErr(rl.lineno, "KEY %q has no key columns", name)
	}
	k := &Key{Name: name, Table: tableName, Columns: idxs, Vars: append([]string(nil), vars...)}
	s.Keys[name] = k
	s.KeysOfTable[tableName] = append(s.KeysOfTable[tableName], k)
	return nil
}

func (s *Schema) addForeignKey(rl rawLine) error {
	arrowAt := -1
	for i, f := range rl.fields {
		if f == "=>" {
			arrowAt = i
			break
		}
	}
	if arrowAt < 0 {
		return declErr(rl.lineno, "REFERENCE requires \"=>\" between the local and foreign sides")
	}
	local, foreign := rl.fields[:arrowAt], rl.fields[arrowAt+1:]
	if len(local) < 3 || len(foreign) < 2 {
		return declErr(rl.lineno, "REFERENCE requires a name, a table and variables on each side of \"=>\"")
	}
	name := local[0]
	if !isDeclName(name) {
		return declErr(rl.lineno, "invalid reference name %q", name)
	}
	if _, dup := s.ForeignKeys[name]; dup {
		return declErr(rl.lineno, "reference %q declared twice", name)
	}
	localTable, ok := s.Tables[local[1]]
	if !ok {
		return declErr(rl.lineno, "REFERENCE %q references undeclared table %q", name, local[1])
	}
	refTable, ok := s.Tables[foreign[0]]
	if !ok {
		return declErr(rl.lineno, "REFERENCE %q references undeclared table %q", name, foreign[0])
	}
	localVars, refVars := local[2:], foreign[1:]
	_, localByName, err := parseVarTuple(localTable, localVars, rl.lineno, "REFERENCE "+name)
	if err != nil {
		return err
	}
	_, refByName, err := parseVarTuple(refTable, refVars, rl.lineno, "REFERENCE "+name)
	if err != nil {
		return err
	}

	// The shared variable names pair the column indices; the pairing is
	// ordered by variable name so equivalent declarations produce equal
	// constraints. Variables used only on the local side act as
	// wildcards; a foreign-side variable with no local counterpart has
	// nothing to pair with and is rejected.
	var shared []string
	for v := range refByName {
		if _, ok := localByName[v]; !ok {
			return declErr(rl.lineno, "REFERENCE %q uses variable %q only on the foreign side", name, v)
		}
		shared = append(shared, v)
	}
	if len(shared) == 0 {
		return declErr(rl.lineno, "REFERENCE %q shares no variables between its sides", name)
	}
	sort.Strings(shared)

	columns := make([]int, len(shared))
	refColumns := make([]int, len(shared))
	for i, v := range shared {
		li, ri := localByName[v], refByName[v]
		if localTable.Columns[li].Domain != refTable.Columns[ri].Domain {
			return declErr(rl.lineno, "REFERENCE %q: variable %q pairs columns of different domains (%s vs %s)",
				name, v, localTable.Columns[li].Domain.Name, refTable.Columns[ri].Domain.Name)
		}
		columns[i] = li
		refColumns[i] = ri
	}

	refKey, err := s.matchUniqueKey(refTable.Name, refColumns)
	if err != nil {
		return declErr(rl.lineno, "REFERENCE %q: %s", name, err)
	}

	fk := &ForeignKey{
		Name:       name,
		Table:      localTable.Name,
		Columns:    columns,
		RefTable:   refTable.Name,
		RefColumns: refColumns,
		RefKey:     refKey,
		Vars:       append([]string(nil), localVars...),
		RefVars:    append([]string(nil), refVars...),
	}
	s.ForeignKeys[name] = fk
	s.ForeignKeysOfTable[localTable.Name] = append(s.ForeignKeysOfTable[localTable.Name], fk)
	return nil
}

// matchUniqueKey finds the key on table whose column set equals columns,
// regardless of the order either was written in.
func (s *Schema) matchUniqueKey(table string, columns []int) (string, error) {
	want := append([]int(nil), columns...)
	sort.Ints(want)
	for _, k := range s.KeysOfTable[table] {
		if equalInts(k.Columns, want) {
			return k.Name, nil
		}
	}
	return "", fmt.Errorf("no unique key on table %q covers the referenced columns", table)
}

func equalInts(a, b []int) bool {
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
