// Package objtext renders shape-typed object trees as an indented text
// form and parses that form back. Indentation is four spaces per level;
// scalar values follow their field keyword on the same line, composite
// values start on the next line one level deeper.
package objtext

import (
	"fmt"
	"sort"
	"strings"

	"wsldb/domain"
	"wsldb/errs"
	"wsldb/schema"
	"wsldb/shape"
)

const indentSpaces = "    "

// Objects2Text renders obj, whose structure is described by spec, as
// indented text. Struct members are emitted sorted by name, dict entries
// and scalar set elements in value order, and composite set elements in
// the order of their rendered text, so equal objects render identically.
func Objects2Text(s *schema.Schema, spec *shape.Node, obj any) (string, error) {
	e := &emitter{schema: s}
	var b strings.Builder
	if err := e.emitStructBody(&b, spec, obj, "", true); err != nil {
		return "", err
	}
	return b.String(), nil
}

type emitter struct {
	schema *schema.Schema
}

func (e *emitter) token(primType string, v any) (string, error) {
	d, ok := e.schema.Domains[primType]
	if !ok {
		return "", &errs.FormatError{What: "value", Message: "unknown domain " + primType}
	}
	raw, err := d.Encode(v)
	if err != nil {
		return "", err
	}
	return d.Unlex(raw)
}

// emitStructBody writes the members of a struct node. At the top level
// an extra blank line separates the members.
func (e *emitter) emitStructBody(b *strings.Builder, n *shape.Node, obj any, indent string, top bool) error {
	if n.Kind != shape.StructKind {
		return &errs.FormatError{What: "text form", Message: "root shape must be a struct"}
	}
	m, ok := obj.(map[string]any)
	if !ok {
		return &errs.FormatError{What: "struct", Message: "expected object"}
	}
	names := make([]string, 0, len(n.Childs))
	for name := range n.Childs {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if top && i > 0 {
			b.WriteByte('\n')
		}
		v, present := m[name]
		if !present {
			return &errs.FormatError{What: "struct", Message: "missing member " + name}
		}
		b.WriteString(indent)
		b.WriteString(name)
		if err := e.emitAfterKeyword(b, n.Childs[name], v, indent); err != nil {
			return err
		}
	}
	return nil
}

// emitAfterKeyword writes whatever follows a field keyword: a space and
// a token for scalars, an option sigil, or a newline and an indented
// block for composites.
func (e *emitter) emitAfterKeyword(b *strings.Builder, n *shape.Node, obj any, indent string) error {
	switch n.Kind {
	case shape.ValueKind:
		tok, err := e.token(n.PrimType, obj)
		if err != nil {
			return err
		}
		b.WriteByte(' ')
		b.WriteString(tok)
		b.WriteByte('\n')
		return nil

	case shape.OptionKind:
		if obj == nil {
			b.WriteString(" ?\n")
			return nil
		}
		b.WriteString(" !")
		return e.emitAfterKeyword(b, n.Childs[shape.ChildVal], obj, indent)

	case shape.StructKind:
		b.WriteByte('\n')
		return e.emitStructBody(b, n, obj, indent+indentSpaces, false)

	case shape.SetKind, shape.ListKind:
		items, ok := obj.([]any)
		if !ok {
			return &errs.FormatError{What: n.Kind.String(), Message: "expected a slice of elements"}
		}
		if n.Kind == shape.SetKind {
			var err error
			items, err = e.sortedElems(n.Childs[shape.ChildVal], items, indent)
			if err != nil {
				return err
			}
		}
		b.WriteByte('\n')
		for _, item := range items {
			b.WriteString(indent + indentSpaces)
			b.WriteString("val")
			if err := e.emitAfterKeyword(b, n.Childs[shape.ChildVal], item, indent+indentSpaces); err != nil {
				return err
			}
		}
		return nil

	case shape.DictKind:
		m, ok := obj.(map[any]any)
		if !ok {
			return &errs.FormatError{What: "dict", Message: "expected a keyed map of elements"}
		}
		keys := make([]any, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		if err := sortValues(keys); err != nil {
			return err
		}
		b.WriteByte('\n')
		keyType := n.Childs[shape.ChildKey].PrimType
		for _, k := range keys {
			tok, err := e.token(keyType, k)
			if err != nil {
				return err
			}
			b.WriteString(indent + indentSpaces)
			b.WriteString("val ")
			b.WriteString(tok)
			if err := e.emitAfterKeyword(b, n.Childs[shape.ChildVal], m[k], indent+indentSpaces); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("objtext: unknown node kind %v", n.Kind)
	}
}

// sortedElems orders set elements: scalar elements by value, composite
// elements by their rendered text.
func (e *emitter) sortedElems(child *shape.Node, items []any, indent string) ([]any, error) {
	out := append([]any(nil), items...)
	if child.Kind == shape.ValueKind {
		if err := sortValues(out); err != nil {
			return nil, err
		}
		return out, nil
	}
	type elem struct {
		text string
		val  any
	}
	elems := make([]elem, len(out))
	for i, item := range out {
		var b strings.Builder
		if err := e.emitAfterKeyword(&b, child, item, indent+indentSpaces); err != nil {
			return nil, err
		}
		elems[i] = elem{text: b.String(), val: item}
	}
	sort.SliceStable(elems, func(a, b int) bool { return elems[a].text < elems[b].text })
	for i, el := range elems {
		out[i] = el.val
	}
	return out, nil
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
