package schema

import (
	"sort"
	"strings"
)

// Format re-emits a schema as canonical declaration text: DOMAIN lines,
// then TABLE lines, then KEY lines (skipping the synthesized implicit
// keys), then REFERENCE lines, each group sorted by name for a
// deterministic, diff-stable output.
func Format(s *Schema) string {
	var b strings.Builder

	domainNames := append([]string(nil), s.DomainOrder...)
	sort.Strings(domainNames)
	for _, name := range domainNames {
		decl := s.DomainDecls[name]
		b.WriteString("DOMAIN ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(decl.Kind)
		for _, a := range decl.Args {
			b.WriteByte(' ')
			b.WriteString(a)
		}
		b.WriteByte('\n')
	}

	tableNames := s.SortedTableNames()
	for _, name := range tableNames {
		b.WriteString("TABLE ")
		b.WriteString(name)
		for _, c := range s.Tables[name].Columns {
			b.WriteByte(' ')
			if c.Name != "" {
				b.WriteString(c.Name)
				b.WriteByte(':')
			}
			b.WriteString(c.Domain.Name)
		}
		b.WriteByte('\n')
	}

	var keyNames []string
	for name, k := range s.Keys {
		if k.Vars != nil {
			keyNames = append(keyNames, name)
		}
	}
	sort.Strings(keyNames)
	for _, name := range keyNames {
		k := s.Keys[name]
		b.WriteString("KEY ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(k.Table)
		for _, v := range k.Vars {
			b.WriteByte(' ')
			b.WriteString(v)
		}
		b.WriteByte('\n')
	}

	var fkNames []string
	for name := range s.ForeignKeys {
		fkNames = append(fkNames, name)
	}
	sort.Strings(fkNames)
	for _, name := range fkNames {
		fk := s.ForeignKeys[name]
		b.WriteString("REFERENCE ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(fk.Table)
		for _, v := range fk.Vars {
			b.WriteByte(' ')
			b.WriteString(v)
		}
		b.WriteString(" =>")
		b.WriteString(" ")
		b.WriteString(fk.RefTable)
		for _, v := range fk.RefVars {
			b.WriteByte(' ')
			b.WriteString(v)
		}
		b.WriteByte('\n')
	}

	return b.String()
}
