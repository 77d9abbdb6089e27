package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wslschema "wsldb/schema"
)

const barFooSchema = `DOMAIN Int Int
TABLE bar Int Int
TABLE foo Int Int Int
`

const barsSpec = `bars: dict for (c d) (bar c d)
    _key_: value c
    _val_: struct
        c: value c
        d: value d
        s: option for (a b) (foo a b c)
            _val_: struct
                a: value a
                b: value b
`

func parseSchema(t *testing.T, text string) *wslschema.Schema {
	t.Helper()
	s, err := wslschema.Parse(text)
	require.NoError(t, err)
	return s
}

func TestParseSpec(t *testing.T) {
	s := parseSchema(t, barFooSchema)
	root, err := ParseSpec(s, barsSpec)
	require.NoError(t, err)

	require.Equal(t, StructKind, root.Kind)
	bars := root.Childs["bars"]
	require.NotNil(t, bars)
	require.Equal(t, DictKind, bars.Kind)
	assert.Equal(t, "bar", bars.Query.Table)
	assert.Equal(t, []string{"c", "d"}, bars.Query.FreshVariables)
	assert.Equal(t, []string{"c", "d"}, bars.Query.Variables)

	key := bars.Childs[ChildKey]
	require.Equal(t, ValueKind, key.Kind)
	assert.Equal(t, "c", key.Variable)
	assert.Equal(t, "Int", key.PrimType)

	val := bars.Childs[ChildVal]
	require.Equal(t, StructKind, val.Kind)
	opt := val.Childs["s"]
	require.Equal(t, OptionKind, opt.Kind)
	assert.Equal(t, "foo", opt.Query.Table)
	assert.Equal(t, []string{"a", "b"}, opt.Query.FreshVariables)
	assert.Equal(t, []string{"a", "b", "c"}, opt.Query.Variables)

	inner := opt.Childs[ChildVal]
	require.Equal(t, StructKind, inner.Kind)
	assert.Equal(t, "Int", inner.Childs["a"].PrimType)
}

func TestParseSpecErrors(t *testing.T) {
	s := parseSchema(t, barFooSchema)
	tests := []struct {
		name string
		text string
	}{
		{name: "tab indent", text: "x: set for () (bar c d)\n\t_val_: value c\n"},
		{name: "odd indent", text: "x: set for (c d) (bar c d)\n  _val_: value c\n"},
		{name: "missing colon", text: "x value c\n"},
		{name: "unknown type", text: "x: blob for (c d) (bar c d)\n"},
		{name: "query on struct", text: "x: struct for (c d) (bar c d)\n    y: value c\n"},
		{name: "struct without members", text: "x: struct\n"},
		{name: "struct underscore member", text: "x: set for (c d) (bar c d)\n    _val_: struct\n        _y_: value c\n"},
		{name: "set without query", text: "x: set\n    _val_: value c\n"},
		{name: "set missing _val_", text: "x: set for (c d) (bar c d)\n    _other_: value c\n"},
		{name: "list missing _idx_", text: "x: list for (c d) (bar c d)\n    _val_: value c\n"},
		{name: "dict extra child", text: "x: dict for (c d) (bar c d)\n    _key_: value c\n    _val_: value d\n    _idx_: value c\n"},
		{name: "dict composite key", text: "x: dict for (c d) (bar c d)\n    _key_: struct\n        k: value c\n    _val_: value d\n"},
		{name: "value without variable", text: "x: set for (c d) (bar c d)\n    _val_: value\n"},
		{name: "unbound variable", text: "x: value q\n"},
		{name: "duplicate member", text: "x: set for (c d) (bar c d)\n    _val_: value c\nx: set for (e f) (bar e f)\n    _val_: value e\n"},
		{name: "arity mismatch", text: "x: set for (c) (bar c)\n    _val_: value c\n"},
		{name: "unknown table", text: "x: set for (c d) (baz c d)\n    _val_: value c\n"},
		{name: "fresh not in query", text: "x: set for (q c d) (bar c d)\n    _val_: value c\n"},
		{name: "unbound query variable", text: "x: set for (c) (bar c q)\n    _val_: value c\n"},
		{name: "empty identifier list", text: "x: set for (c d) ()\n    _val_: value c\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec(s, tt.text)
			require.Error(t, err)
		})
	}
}

func TestTypeMismatch(t *testing.T) {
	s := parseSchema(t, `DOMAIN Int Int
DOMAIN String String
TABLE num Int
TABLE name String
`)
	// v is bound to an Int column, then reused in a String position.
	_, err := ParseSpec(s, `xs: set for (v) (num v)
    _val_: struct
        n: value v
        names: set for () (name v)
            _val_: value v
`)
	require.Error(t, err)
}

func TestShadowingRejected(t *testing.T) {
	s := parseSchema(t, barFooSchema)
	_, err := ParseSpec(s, `xs: set for (c d) (bar c d)
    _val_: struct
        inner: set for (c d) (bar c d)
            _val_: value c
`)
	require.Error(t, err)
}

func TestCheckCoverage(t *testing.T) {
	s := parseSchema(t, barFooSchema)
	spec, err := ParseSpec(s, barsSpec)
	require.NoError(t, err)

	cov, err := CheckCoverage(s, spec)
	require.NoError(t, err)

	// The dict key reuses the c column, so bar's first column counts
	// twice. foo's third column is only constrained through the join
	// variable, never read by a value member, so its count stays 0.
	assert.Equal(t, []int{2, 1}, cov["bar"])
	assert.Equal(t, []int{1, 1, 0}, cov["foo"])
}
