// Package objjson renders shape-typed object trees as canonical JSON
// and parses JSON documents back. Structs and dicts become objects (keys
// sorted), sets and lists become arrays (sets sorted), options become a
// value or null, and scalars follow each domain's JSON type.
package objjson

import (
	"fmt"
	"sort"
	"strings"

	"wsldb/domain"
	"wsldb/errs"
	"wsldb/lexjson"
	"wsldb/schema"
	"wsldb/shape"
)

// Objects2JSON renders obj, whose structure is described by spec, as a
// compact canonical JSON document.
func Objects2JSON(s *schema.Schema, spec *shape.Node, obj any) (string, error) {
	e := &emitter{schema: s}
	var b strings.Builder
	if err := e.emit(&b, spec, obj); err != nil {
		return "", err
	}
	return b.String(), nil
}

type emitter struct {
	schema *schema.Schema
}

func (e *emitter) domainOf(primType string) (*domain.Domain, error) {
	d, ok := e.schema.Domains[primType]
	if !ok {
		return nil, &errs.FormatError{What: "value", Message: "unknown domain " + primType}
	}
	return d, nil
}

// keyString renders a dict key as a JSON object key. JSON keys are
// always strings, so number-typed domains are quoted by their token
// text.
func (e *emitter) keyString(primType string, v any) (string, error) {
	d, err := e.domainOf(primType)
	if err != nil {
		return "", err
	}
	if d.JSONType == domain.JSONString {
		return d.EncodeJSON(v)
	}
	raw, err := d.Encode(v)
	if err != nil {
		return "", err
	}
	return lexjson.QuoteString(raw), nil
}

func (e *emitter) emit(b *strings.Builder, n *shape.Node, obj any) error {
	switch n.Kind {
	case shape.ValueKind:
		d, err := e.domainOf(n.PrimType)
		if err != nil {
			return err
		}
		lit, err := d.EncodeJSON(obj)
		if err != nil {
			return err
		}
		b.WriteString(lit)
		return nil

	case shape.StructKind:
		m, ok := obj.(map[string]any)
		if !ok {
			return &errs.FormatError{What: "struct", Message: "expected object"}
		}
		names := make([]string, 0, len(n.Childs))
		for name := range n.Childs {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteByte('{')
		for i, name := range names {
			v, present := m[name]
			if !present {
				return &errs.FormatError{What: "struct", Message: "missing member " + name}
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(lexjson.QuoteString(name))
			b.WriteByte(':')
			if err := e.emit(b, n.Childs[name], v); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	case shape.OptionKind:
		if obj == nil {
			b.WriteString("null")
			return nil
		}
		return e.emit(b, n.Childs[shape.ChildVal], obj)

	case shape.SetKind, shape.ListKind:
		items, ok := obj.([]any)
		if !ok {
			return &errs.FormatError{What: n.Kind.String(), Message: "expected a slice of elements"}
		}
		if n.Kind == shape.SetKind {
			var err error
			items, err = e.sortedElems(n.Childs[shape.ChildVal], items)
			if err != nil {
				return err
			}
		}
		b.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.emit(b, n.Childs[shape.ChildVal], item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil

	case shape.DictKind:
		m, ok := obj.(map[any]any)
		if !ok {
			return &errs.FormatError{What: "dict", Message: "expected a keyed map of elements"}
		}
		type entry struct {
			key string
			val any
		}
		entries := make([]entry, 0, len(m))
		keyType := n.Childs[shape.ChildKey].PrimType
		for k, v := range m {
			ks, err := e.keyString(keyType, k)
			if err != nil {
				return err
			}
			entries = append(entries, entry{key: ks, val: v})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].key < entries[b].key })
		b.WriteByte('{')
		for i, en := range entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(en.key)
			b.WriteByte(':')
			if err := e.emit(b, n.Childs[shape.ChildVal], en.val); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	default:
		return fmt.Errorf("objjson: unknown node kind %v", n.Kind)
	}
}

// sortedElems orders set elements: scalars by value, composites by
// their rendered JSON.
func (e *emitter) sortedElems(child *shape.Node, items []any) ([]any, error) {
	out := append([]any(nil), items...)
	if child.Kind == shape.ValueKind {
		var sortErr error
		sort.SliceStable(out, func(a, b int) bool {
			less, err := domain.ValueLess(out[a], out[b])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return less
		})
		return out, sortErr
	}
	type elem struct {
		text string
		val  any
	}
	elems := make([]elem, len(out))
	for i, item := range out {
		var b strings.Builder
		if err := e.emit(&b, child, item); err != nil {
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
