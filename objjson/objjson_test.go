package objjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsldb/schema"
	"wsldb/shape"
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

func fixture(t *testing.T) (*schema.Schema, *shape.Node) {
	t.Helper()
	s, err := schema.Parse(barFooSchema)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, barsSpec)
	require.NoError(t, err)
	return s, spec
}

func barsObject() map[string]any {
	return map[string]any{
		"bars": map[any]any{
			int64(3): map[string]any{
				"c": int64(3), "d": int64(666),
				"s": map[string]any{"a": int64(1), "b": int64(2)},
			},
			int64(6): map[string]any{
				"c": int64(6), "d": int64(1024),
				"s": map[string]any{"a": int64(4), "b": int64(5)},
			},
			int64(42): map[string]any{
				"c": int64(42), "d": int64(0),
				"s": nil,
			},
		},
	}
}

const barsJSON = `{"bars":{"3":{"c":3,"d":666,"s":{"a":1,"b":2}},"42":{"c":42,"d":0,"s":null},"6":{"c":6,"d":1024,"s":{"a":4,"b":5}}}}`

func TestObjects2JSON(t *testing.T) {
	s, spec := fixture(t)
	out, err := Objects2JSON(s, spec, barsObject())
	require.NoError(t, err)
	assert.Equal(t, barsJSON, out)
}

func TestJSON2Objects(t *testing.T) {
	s, spec := fixture(t)
	obj, err := JSON2Objects(s, spec, barsJSON)
	require.NoError(t, err)
	assert.Equal(t, barsObject(), obj)
}

func TestJSONRoundTrip(t *testing.T) {
	s, spec := fixture(t)
	obj, err := JSON2Objects(s, spec, barsJSON)
	require.NoError(t, err)
	out, err := Objects2JSON(s, spec, obj)
	require.NoError(t, err)
	assert.Equal(t, barsJSON, out)
}

func TestMemberOrderAndWhitespace(t *testing.T) {
	s, err := schema.Parse("DOMAIN Int Int\nTABLE p Int Int\n")
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `pt: option for (x y) (p x y)
    _val_: struct
        x: value x
        y: value y
`)
	require.NoError(t, err)

	obj, err := JSON2Objects(s, spec, "{ \"pt\" : { \"y\" : 2 , \"x\" : 1 } }\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pt": map[string]any{"x": int64(1), "y": int64(2)}}, obj)
}

func TestJSON2ObjectsErrors(t *testing.T) {
	s, spec := fixture(t)
	tests := []struct {
		name string
		text string
	}{
		{name: "unknown member", text: `{"nope":{}}`},
		{name: "missing member", text: `{}`},
		{name: "duplicate member", text: `{"bars":{},"bars":{}}`},
		{name: "wrong scalar type", text: `{"bars":{"3":{"c":"3","d":666,"s":null}}}`},
		{name: "trailing text", text: barsJSON + "{}"},
		{name: "missing struct member", text: `{"bars":{"3":{"c":3,"s":null}}}`},
		{name: "bad dict key", text: `{"bars":{"zzz":{"c":3,"d":666,"s":null}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON2Objects(s, spec, tt.text)
			require.Error(t, err)
		})
	}
}

func TestStringAndSetForms(t *testing.T) {
	s, err := schema.Parse(`DOMAIN Int Int
DOMAIN String String escape
TABLE tag Int String
`)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `tags: set for (i x) (tag i x)
    _val_: struct
        id: value i
        label: value x
`)
	require.NoError(t, err)

	obj := map[string]any{"tags": []any{
		map[string]any{"id": int64(1), "label": "a \"b\""},
		map[string]any{"id": int64(2), "label": "plain"},
	}}
	out, err := Objects2JSON(s, spec, obj)
	require.NoError(t, err)
	assert.Equal(t, `{"tags":[{"id":1,"label":"a \"b\""},{"id":2,"label":"plain"}]}`, out)

	back, err := JSON2Objects(s, spec, out)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}
