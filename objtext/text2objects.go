package objtext

import (
	"fmt"
	"reflect"
	"strings"

	"wsldb/errs"
	"wsldb/schema"
	"wsldb/shape"
)

// Text2Objects parses the indented text form back into the object tree
// described by spec.
func Text2Objects(s *schema.Schema, spec *shape.Node, text string) (any, error) {
	p := &parser{schema: s, text: text}
	if spec.Kind != shape.StructKind {
		return nil, &errs.FormatError{What: "text form", Message: "root shape must be a struct"}
	}
	obj, i, err := p.structBody(spec, 0, 0)
	if err != nil {
		return nil, err
	}
	for i < len(text) && text[i] == '\n' {
		i++
	}
	if i != len(text) {
		return nil, p.errAt(i, "unconsumed text")
	}
	return obj, nil
}

type parser struct {
	schema *schema.Schema
	text   string
}

func (p *parser) errAt(i int, format string, args ...any) error {
	return &errs.ParseError{Context: "text form", Text: p.text, ErrorPos: i, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) space(i int) (int, error) {
	if i >= len(p.text) || p.text[i] != ' ' {
		return i, p.errAt(i, "space character expected")
	}
	return i + 1, nil
}

func (p *parser) newline(i int) (int, error) {
	if i == len(p.text) {
		return i, nil
	}
	if p.text[i] != '\n' {
		return i, p.errAt(i, "end of line expected")
	}
	return i + 1, nil
}

func isKeywordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) keyword(i int) (string, int, error) {
	start := i
	for i < len(p.text) && isKeywordChar(p.text[i]) {
		i++
	}
	if i == start {
		return "", i, p.errAt(i, "keyword expected")
	}
	return p.text[start:i], i, nil
}

// block consumes every line of the current block: lines indented by
// exactly indent levels, each starting with a keyword the caller knows.
// It stops at a dedent or end of input and returns the keyword/value
// pairs in document order.
func (p *parser) block(handlers map[string]*shape.Node, indent int, i int) ([]string, []any, int, error) {
	prefix := strings.Repeat(indentSpaces, indent)
	var keys []string
	var vals []any
	for {
		for i < len(p.text) && p.text[i] == '\n' {
			i++
		}
		if i == len(p.text) {
			break
		}
		if !strings.HasPrefix(p.text[i:], prefix) {
			break
		}
		if len(p.text) > i+len(prefix) && p.text[i+len(prefix)] == ' ' {
			return nil, nil, i, p.errAt(i+len(prefix), "wrong amount of indentation")
		}
		kw, j, err := p.keyword(i + len(prefix))
		if err != nil {
			return nil, nil, j, err
		}
		node, ok := handlers[kw]
		if !ok {
			return nil, nil, j, p.errAt(i+len(prefix), "found unexpected field %q", kw)
		}
		val, j, err := p.afterKeyword(node, indent, j)
		if err != nil {
			return nil, nil, j, err
		}
		keys = append(keys, kw)
		vals = append(vals, val)
		i = j
	}
	return keys, vals, i, nil
}

// afterKeyword parses whatever follows a field keyword, mirroring the
// emitter: a space and token for scalars, option sigils, or a newline
// and a deeper block for composites.
func (p *parser) afterKeyword(n *shape.Node, indent int, i int) (any, int, error) {
	switch n.Kind {
	case shape.ValueKind:
		i, err := p.space(i)
		if err != nil {
			return nil, i, err
		}
		v, i, err := p.value(n.PrimType, i)
		if err != nil {
			return nil, i, err
		}
		i, err = p.newline(i)
		return v, i, err

	case shape.OptionKind:
		i, err := p.space(i)
		if err != nil {
			return nil, i, err
		}
		if i >= len(p.text) {
			return nil, i, p.errAt(i, `expected option ("?", or "!" followed by value)`)
		}
		switch p.text[i] {
		case '?':
			i, err := p.newline(i + 1)
			return nil, i, err
		case '!':
			return p.afterKeyword(n.Childs[shape.ChildVal], indent, i+1)
		default:
			return nil, i, p.errAt(i, `expected option ("?", or "!" followed by value)`)
		}

	case shape.StructKind:
		i, err := p.newline(i)
		if err != nil {
			return nil, i, err
		}
		return p.structBody(n, indent+1, i)

	case shape.SetKind, shape.ListKind:
		i, err := p.newline(i)
		if err != nil {
			return nil, i, err
		}
		_, vals, i, err := p.block(map[string]*shape.Node{"val": n.Childs[shape.ChildVal]}, indent+1, i)
		if err != nil {
			return nil, i, err
		}
		if vals == nil {
			vals = []any{}
		}
		if n.Kind == shape.SetKind {
			vals = dedupValues(vals)
			if n.Childs[shape.ChildVal].Kind == shape.ValueKind {
				if err := sortValues(vals); err != nil {
					return nil, i, err
				}
			}
		}
		return vals, i, nil

	case shape.DictKind:
		i, err := p.newline(i)
		if err != nil {
			return nil, i, err
		}
		out := map[any]any{}
		prefix := strings.Repeat(indentSpaces, indent+1)
		for {
			for i < len(p.text) && p.text[i] == '\n' {
				i++
			}
			if i == len(p.text) || !strings.HasPrefix(p.text[i:], prefix) {
				break
			}
			if len(p.text) > i+len(prefix) && p.text[i+len(prefix)] == ' ' {
				return nil, i, p.errAt(i+len(prefix), "wrong amount of indentation")
			}
			kw, j, err := p.keyword(i + len(prefix))
			if err != nil {
				return nil, j, err
			}
			if kw != "val" {
				return nil, j, p.errAt(i+len(prefix), "found unexpected field %q", kw)
			}
			j, err = p.space(j)
			if err != nil {
				return nil, j, err
			}
			key, j, err := p.value(n.Childs[shape.ChildKey].PrimType, j)
			if err != nil {
				return nil, j, err
			}
			if _, dup := out[key]; dup {
				return nil, j, p.errAt(i, "key used multiple times in this block")
			}
			val, j, err := p.afterKeyword(n.Childs[shape.ChildVal], indent+1, j)
			if err != nil {
				return nil, j, err
			}
			out[key] = val
			i = j
		}
		return out, i, nil

	default:
		return nil, i, fmt.Errorf("objtext: unknown node kind %v", n.Kind)
	}
}

// structBody parses the members of a struct node at the given indent
// level: members in any order, each exactly once, none missing and none
// unknown.
func (p *parser) structBody(n *shape.Node, indent int, i int) (any, int, error) {
	keys, vals, i, err := p.block(n.Childs, indent, i)
	if err != nil {
		return nil, i, err
	}
	out := map[string]any{}
	for k, kw := range keys {
		if _, dup := out[kw]; dup {
			return nil, i, p.errAt(i, "duplicate member %q", kw)
		}
		out[kw] = vals[k]
	}
	for name := range n.Childs {
		if _, ok := out[name]; !ok {
			return nil, i, p.errAt(i, "missing member %q", name)
		}
	}
	return out, i, nil
}

// value lexes and decodes one scalar token of the named domain.
func (p *parser) value(primType string, i int) (any, int, error) {
	d, ok := p.schema.Domains[primType]
	if !ok {
		return nil, i, p.errAt(i, "unknown domain %q", primType)
	}
	raw, j, err := d.Lex(p.text, i)
	if err != nil {
		return nil, j, err
	}
	v, err := d.Decode(raw)
	if err != nil {
		return nil, j, err
	}
	return v, j, nil
}

func dedupValues(vals []any) []any {
	var out []any
	for _, v := range vals {
		dup := false
		for _, x := range out {
			if reflect.DeepEqual(x, v) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out
}
