package domain

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"wsldb/errs"
	"wsldb/lexjson"
	"wsldb/lexwsl"
)

func identityUnlex(raw string) (string, error) { return raw, nil }

// newIDDomain builds the ID domain: a bare identifier token, used
// verbatim as a string value.
func newIDDomain(name string, args []string) (*Domain, error) {
	if len(args) != 0 {
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: "ID takes no arguments"}
	}
	return &Domain{
		Name:     name,
		JSONType: JSONString,
		Lex:      lexwsl.LexIdentifier,
		Decode:   func(raw string) (any, error) { return raw, nil },
		Encode: func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", &errs.FormatError{What: name, Message: "expected string value"}
			}
			return s, nil
		},
		Unlex: lexwsl.UnlexIdentifier,
		DecodeJSON: func(tok lexjson.Token) (any, error) {
			if tok.Kind != lexjson.String {
				return nil, &errs.FormatError{What: name, Message: "expected JSON string"}
			}
			return tok.Value, nil
		},
		EncodeJSON: func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", &errs.FormatError{What: name, Message: "expected string value"}
			}
			return lexjson.QuoteString(s), nil
		},
	}, nil
}

// newStringDomain builds the String domain: a bracketed string literal.
// With no arguments, no escape sequences are recognized and the literal
// may not contain brackets or control characters; with the "escape"
// argument, \[ \] \\ \xHH \uDDDD \UDDDDDDDD sequences are decoded.
func newStringDomain(name string, args []string) (*Domain, error) {
	escape := false
	for _, a := range args {
		if a == "escape" {
			escape = true
			continue
		}
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: fmt.Sprintf("unknown String option %q", a)}
	}
	d := &Domain{Name: name, JSONType: JSONString}
	if !escape {
		d.Lex = lexwsl.LexStringWithoutEscapes
		d.Decode = func(raw string) (any, error) { return raw, nil }
		d.Encode = func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", &errs.FormatError{What: name, Message: "expected string value"}
			}
			return s, nil
		}
		d.Unlex = lexwsl.UnlexStringWithoutEscapes
	} else {
		d.Lex = lexwsl.LexStringWithEscapes
		d.Decode = func(raw string) (any, error) { return lexwsl.Unescape(raw) }
		d.Encode = func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", &errs.FormatError{What: name, Message: "expected string value"}
			}
			return lexwsl.Escape(s), nil
		}
		d.Unlex = func(raw string) (string, error) { return lexwsl.UnlexStringWithEscapes(raw), nil }
	}
	d.DecodeJSON = func(tok lexjson.Token) (any, error) {
		if tok.Kind != lexjson.String {
			return nil, &errs.FormatError{What: name, Message: "expected JSON string"}
		}
		return tok.Value, nil
	}
	d.EncodeJSON = func(v any) (string, error) {
		s, ok := v.(string)
		if !ok {
			return "", &errs.FormatError{What: name, Message: "expected string value"}
		}
		return lexjson.QuoteString(s), nil
	}
	return d, nil
}

// newIntDomain builds the Int domain: `0 | -?[1-9][0-9]*`, represented
// as int64.
func newIntDomain(name string, args []string) (*Domain, error) {
	if len(args) != 0 {
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: "Int takes no arguments"}
	}
	decode := func(raw string) (any, error) {
		if !isCanonicalInt(raw) {
			return nil, &errs.FormatError{What: name, Message: "not a valid integer: " + raw}
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &errs.FormatError{What: name, Message: "not a valid integer: " + raw}
		}
		return v, nil
	}
	encode := func(v any) (string, error) {
		i, ok := v.(int64)
		if !ok {
			return "", &errs.FormatError{What: name, Message: "expected int64 value"}
		}
		return strconv.FormatInt(i, 10), nil
	}
	return &Domain{
		Name:     name,
		JSONType: JSONNumber,
		Lex:      lexwsl.LexInt,
		Decode:   decode,
		Encode:   encode,
		Unlex:    identityUnlex,
		DecodeJSON: func(tok lexjson.Token) (any, error) {
			if tok.Kind != lexjson.Number {
				return nil, &errs.FormatError{What: name, Message: "expected JSON number"}
			}
			return decode(tok.Value)
		},
		EncodeJSON: encode,
	}, nil
}

// isCanonicalInt reports whether raw matches `0 | -?[1-9][0-9]*`.
func isCanonicalInt(raw string) bool {
	s := strings.TrimPrefix(raw, "-")
	if s == "" {
		return false
	}
	if s == "0" {
		return raw == "0"
	}
	if s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// newFloatDomain builds the Float domain: a decimal float literal
// `-?[0-9]+\.[0-9]+`, represented as float64.
func newFloatDomain(name string, args []string) (*Domain, error) {
	if len(args) != 0 {
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: "Float takes no arguments"}
	}
	decode := func(raw string) (any, error) {
		whole, frac, ok := strings.Cut(strings.TrimPrefix(raw, "-"), ".")
		if !ok || whole == "" || frac == "" || strings.Trim(whole+frac, "0123456789") != "" {
			return nil, &errs.FormatError{What: name, Message: "not a decimal float literal: " + raw}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &errs.FormatError{What: name, Message: "not a valid float: " + raw}
		}
		return v, nil
	}
	encode := func(v any) (string, error) {
		f, ok := v.(float64)
		if !ok {
			return "", &errs.FormatError{What: name, Message: "expected float64 value"}
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s, nil
	}
	return &Domain{
		Name:     name,
		JSONType: JSONNumber,
		Lex:      lexwsl.LexIdentifier,
		Decode:   decode,
		Encode:   encode,
		Unlex:    identityUnlex,
		DecodeJSON: func(tok lexjson.Token) (any, error) {
			if tok.Kind != lexjson.Number {
				return nil, &errs.FormatError{What: name, Message: "expected JSON number"}
			}
			v, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return nil, &errs.FormatError{What: name, Message: "not a valid float: " + tok.Value}
			}
			return v, nil
		},
		EncodeJSON: func(v any) (string, error) {
			f, ok := v.(float64)
			if !ok {
				return "", &errs.FormatError{What: name, Message: "expected float64 value"}
			}
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		},
	}, nil
}

// EnumBase identifies one Enum domain's closed, ordered set of named
// values. Bases are compared by pointer identity, never by value, so
// values of two separately declared enums never compare equal.
type EnumBase struct {
	Name  string
	Names []string
	Index map[string]int
}

// EnumValue is a value drawn from a particular EnumBase. Ordering among
// values of one base follows declaration order.
type EnumValue struct {
	Base  *EnumBase
	Name  string
	Index int
}

// Equal reports whether two enum values are equal, failing with a type
// error if the values come from different bases rather than comparing
// their indices.
func (v EnumValue) Equal(other EnumValue) (bool, error) {
	if v.Base != other.Base {
		return false, &errs.FormatError{What: "enum", Message: "cannot compare enum values from different domains"}
	}
	return v.Index == other.Index, nil
}

// Less reports declaration-order comparison, with the same cross-base
// restriction as Equal.
func (v EnumValue) Less(other EnumValue) (bool, error) {
	if v.Base != other.Base {
		return false, &errs.FormatError{What: "enum", Message: "cannot compare enum values from different domains"}
	}
	return v.Index < other.Index, nil
}

// newEnumDomain builds an Enum domain over the ordered value names given
// as arguments, e.g. `DOMAIN color Enum red green blue`.
func newEnumDomain(name string, args []string) (*Domain, error) {
	if len(args) == 0 {
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: "Enum requires at least one value name"}
	}
	base := &EnumBase{Name: name, Names: append([]string(nil), args...), Index: map[string]int{}}
	for i, n := range args {
		if _, err := lexwsl.UnlexIdentifier(n); err != nil {
			return nil, &errs.ConfigurationError{Context: "domain " + name, Message: fmt.Sprintf("invalid enum value name %q", n)}
		}
		if _, dup := base.Index[n]; dup {
			return nil, &errs.ConfigurationError{Context: "domain " + name, Message: fmt.Sprintf("duplicate enum value name %q", n)}
		}
		base.Index[n] = i
	}
	decode := func(raw string) (any, error) {
		idx, ok := base.Index[raw]
		if !ok {
			return nil, &errs.FormatError{What: name, Message: fmt.Sprintf("%q is not a member of enum %q", raw, name)}
		}
		return EnumValue{Base: base, Name: raw, Index: idx}, nil
	}
	encode := func(v any) (string, error) {
		ev, ok := v.(EnumValue)
		if !ok || ev.Base != base {
			return "", &errs.FormatError{What: name, Message: "expected enum value from this domain"}
		}
		return ev.Name, nil
	}
	return &Domain{
		Name:     name,
		JSONType: JSONString,
		Lex:      lexwsl.LexIdentifier,
		Decode:   decode,
		Encode:   encode,
		Unlex:    identityUnlex,
		DecodeJSON: func(tok lexjson.Token) (any, error) {
			if tok.Kind != lexjson.String {
				return nil, &errs.FormatError{What: name, Message: "expected JSON string"}
			}
			return decode(tok.Value)
		},
		EncodeJSON: func(v any) (string, error) {
			raw, err := encode(v)
			if err != nil {
				return "", err
			}
			return lexjson.QuoteString(raw), nil
		},
	}, nil
}

// parseOctet parses one dot-separated component of an IPv4 address: a
// non-empty run of digits with value at most 255.
func parseOctet(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		v = v*10 + int(s[i]-'0')
		if v > 255 {
			return 0, false
		}
	}
	return v, true
}

// newIPv4Domain builds the IPv4 domain: four dot-separated integers in
// [0,255], represented as netip.Addr.
func newIPv4Domain(name string, args []string) (*Domain, error) {
	if len(args) != 0 {
		return nil, &errs.ConfigurationError{Context: "domain " + name, Message: "IPv4 takes no arguments"}
	}
	decode := func(raw string) (any, error) {
		// Octets are plain integers in [0,255]; leading zeros are
		// allowed, so the dotted quad is decoded by hand rather than
		// through netip.ParseAddr.
		parts := strings.Split(raw, ".")
		if len(parts) != 4 {
			return nil, &errs.FormatError{What: name, Message: "not a valid IPv4 address: " + raw}
		}
		var quad [4]byte
		for i, part := range parts {
			v, ok := parseOctet(part)
			if !ok {
				return nil, &errs.FormatError{What: name, Message: "not a valid IPv4 address: " + raw}
			}
			quad[i] = byte(v)
		}
		return netip.AddrFrom4(quad), nil
	}
	encode := func(v any) (string, error) {
		addr, ok := v.(netip.Addr)
		if !ok || !addr.Is4() {
			return "", &errs.FormatError{What: name, Message: "expected IPv4 value"}
		}
		return addr.String(), nil
	}
	return &Domain{
		Name:     name,
		JSONType: JSONString,
		Lex:      lexwsl.LexIdentifier,
		Decode:   decode,
		Encode:   encode,
		Unlex:    identityUnlex,
		DecodeJSON: func(tok lexjson.Token) (any, error) {
			if tok.Kind != lexjson.String {
				return nil, &errs.FormatError{What: name, Message: "expected JSON string"}
			}
			return decode(tok.Value)
		},
		EncodeJSON: func(v any) (string, error) {
			raw, err := encode(v)
			if err != nil {
				return "", err
			}
			return lexjson.QuoteString(raw), nil
		},
	}, nil
}
