package objjson

import (
	"fmt"
	"reflect"
	"sort"

	"wsldb/domain"
	"wsldb/errs"
	"wsldb/lexjson"
	"wsldb/schema"
	"wsldb/shape"
)

// JSON2Objects parses a JSON document back into the object tree
// described by spec.
func JSON2Objects(s *schema.Schema, spec *shape.Node, text string) (any, error) {
	p := &parser{schema: s, text: text, lex: lexjson.New(text)}
	obj, err := p.parse(spec)
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lexjson.EOF {
		return nil, p.errAt(tok, "unconsumed text after document")
	}
	return obj, nil
}

type parser struct {
	schema *schema.Schema
	text   string
	lex    *lexjson.Lexer
	ahead  *lexjson.Token
}

func (p *parser) next() (lexjson.Token, error) {
	if p.ahead != nil {
		tok := *p.ahead
		p.ahead = nil
		return tok, nil
	}
	return p.lex.Next()
}

func (p *parser) peek() (lexjson.Token, error) {
	if p.ahead == nil {
		tok, err := p.lex.Next()
		if err != nil {
			return tok, err
		}
		p.ahead = &tok
	}
	return *p.ahead, nil
}

func (p *parser) errAt(tok lexjson.Token, format string, args ...any) error {
	return &errs.ParseError{Context: "json form", Text: p.text, ErrorPos: tok.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind lexjson.Kind, what string) (lexjson.Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind {
		return tok, p.errAt(tok, "expected %s", what)
	}
	return tok, nil
}

func (p *parser) parse(n *shape.Node) (any, error) {
	switch n.Kind {
	case shape.ValueKind:
		d, ok := p.schema.Domains[n.PrimType]
		if !ok {
			return nil, &errs.FormatError{What: "value", Message: "unknown domain " + n.PrimType}
		}
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		v, err := d.DecodeJSON(tok)
		if err != nil {
			return nil, p.errAt(tok, "%s", err)
		}
		return v, nil

	case shape.StructKind:
		if _, err := p.expect(lexjson.LBrace, `"{"`); err != nil {
			return nil, err
		}
		out := map[string]any{}
		first := true
		for {
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind == lexjson.RBrace {
				p.ahead = nil
				break
			}
			if !first {
				if _, err := p.expect(lexjson.Comma, `","`); err != nil {
					return nil, err
				}
			}
			first = false
			keyTok, err := p.expect(lexjson.String, "member name")
			if err != nil {
				return nil, err
			}
			child, known := n.Childs[keyTok.Value]
			if !known {
				return nil, p.errAt(keyTok, "unknown member %q", keyTok.Value)
			}
			if _, dup := out[keyTok.Value]; dup {
				return nil, p.errAt(keyTok, "duplicate member %q", keyTok.Value)
			}
			if _, err := p.expect(lexjson.Colon, `":"`); err != nil {
				return nil, err
			}
			v, err := p.parse(child)
			if err != nil {
				return nil, err
			}
			out[keyTok.Value] = v
		}
		for name := range n.Childs {
			if _, ok := out[name]; !ok {
				return nil, &errs.ParseError{Context: "json form", Text: p.text, Message: fmt.Sprintf("missing member %q", name)}
			}
		}
		return out, nil

	case shape.OptionKind:
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lexjson.Null {
			p.ahead = nil
			return nil, nil
		}
		return p.parse(n.Childs[shape.ChildVal])

	case shape.SetKind, shape.ListKind:
		if _, err := p.expect(lexjson.LBracket, `"["`); err != nil {
			return nil, err
		}
		out := []any{}
		first := true
		for {
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind == lexjson.RBracket {
				p.ahead = nil
				break
			}
			if !first {
				if _, err := p.expect(lexjson.Comma, `","`); err != nil {
					return nil, err
				}
			}
			first = false
			v, err := p.parse(n.Childs[shape.ChildVal])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if n.Kind == shape.SetKind {
			out = dedupValues(out)
			if n.Childs[shape.ChildVal].Kind == shape.ValueKind {
				if err := sortValues(out); err != nil {
					return nil, err
				}
			}
		}
		return out, nil

	case shape.DictKind:
		if _, err := p.expect(lexjson.LBrace, `"{"`); err != nil {
			return nil, err
		}
		out := map[any]any{}
		keyNode := n.Childs[shape.ChildKey]
		first := true
		for {
			tok, err := p.peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind == lexjson.RBrace {
				p.ahead = nil
				break
			}
			if !first {
				if _, err := p.expect(lexjson.Comma, `","`); err != nil {
					return nil, err
				}
			}
			first = false
			keyTok, err := p.expect(lexjson.String, "dict key")
			if err != nil {
				return nil, err
			}
			key, err := p.decodeKey(keyNode.PrimType, keyTok)
			if err != nil {
				return nil, err
			}
			if _, dup := out[key]; dup {
				return nil, p.errAt(keyTok, "duplicate dict key %q", keyTok.Value)
			}
			if _, err := p.expect(lexjson.Colon, `":"`); err != nil {
				return nil, err
			}
			v, err := p.parse(n.Childs[shape.ChildVal])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil

	default:
		return nil, fmt.Errorf("objjson: unknown node kind %v", n.Kind)
	}
}

// decodeKey interprets a JSON object key for a dict: keys of
// number-typed domains arrive quoted, so the key's token text is decoded
// directly.
func (p *parser) decodeKey(primType string, tok lexjson.Token) (any, error) {
	d, ok := p.schema.Domains[primType]
	if !ok {
		return nil, &errs.FormatError{What: "dict key", Message: "unknown domain " + primType}
	}
	if d.JSONType == domain.JSONString {
		v, err := d.DecodeJSON(tok)
		if err != nil {
			return nil, p.errAt(tok, "%s", err)
		}
		return v, nil
	}
	v, err := d.Decode(tok.Value)
	if err != nil {
		return nil, p.errAt(tok, "%s", err)
	}
	return v, nil
}

func dedupValues(vals []any) []any {
	out := []any{}
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
	return out
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
