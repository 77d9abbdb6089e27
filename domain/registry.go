// Package domain implements the registry of named scalar value types.
// Each domain knows how to lex a WSL token out of a line of text, decode
// that token into a Go value, encode and unlex it back, and do the same
// over JSON. New domain kinds are registered at process startup and a
// schema's DOMAIN declarations look constructors up by kind name.
package domain

import (
	"fmt"
	"sync"

	"wsldb/lexjson"
)

// JSON primitive categories a domain can map to.
const (
	JSONString = "string"
	JSONNumber = "number"
)

// Domain is one configured scalar type: the result of resolving a DOMAIN
// declaration's kind name and arguments (e.g. "Enum red green blue")
// against a registered Constructor.
type Domain struct {
	Name string

	// JSONType is JSONString or JSONNumber, deciding how values of this
	// domain appear in JSON documents.
	JSONType string

	// Lex extracts the raw WSL token text for this domain starting at
	// pos, without interpreting it.
	Lex func(s string, pos int) (raw string, newpos int, err error)
	// Decode interprets raw token text (as returned by Lex) into a Go
	// value.
	Decode func(raw string) (any, error)
	// Encode is the inverse of Decode.
	Encode func(v any) (raw string, err error)
	// Unlex wraps an already-encoded raw token for the wire (adding
	// brackets for string domains); it may reject values whose token
	// would not lex back.
	Unlex func(raw string) (string, error)

	// DecodeJSON interprets a JSON token into a Go value.
	DecodeJSON func(tok lexjson.Token) (any, error)
	// EncodeJSON renders a Go value as literal JSON text.
	EncodeJSON func(v any) (string, error)
}

// Constructor builds a Domain from a DOMAIN declaration's kind name and
// trailing arguments (e.g. ["escape"] for `String escape`, or
// ["red","green","blue"] for `Enum red green blue`).
type Constructor func(name string, args []string) (*Domain, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register adds a domain kind constructor under kind (e.g. "String").
// Re-registering the same kind replaces the previous constructor.
func Register(kind string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[kind] = ctor
}

// Build resolves kind against the registry and constructs a Domain named
// name with the given arguments.
func Build(kind, name string, args []string) (*Domain, error) {
	mu.RLock()
	ctor, ok := registry[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("domain kind %q is not registered", kind)
	}
	return ctor(name, args)
}

// Kinds returns the currently registered domain kind names. Intended for
// diagnostics and tests.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

func init() {
	Register("ID", newIDDomain)
	Register("String", newStringDomain)
	Register("Int", newIntDomain)
	Register("Float", newFloatDomain)
	Register("Enum", newEnumDomain)
	Register("IPv4", newIPv4Domain)
}
