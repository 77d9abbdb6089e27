package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsldb/database"
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

const barFooRows = `bar 3 666
bar 6 1024
bar 42 0
foo 1 2 3
foo 4 5 6
`

func fixture(t *testing.T) (*schema.Schema, *shape.Node, *database.Database) {
	t.Helper()
	s, err := schema.Parse(barFooSchema)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, barsSpec)
	require.NoError(t, err)
	db, err := database.Parse(s, barFooRows)
	require.NoError(t, err)
	return s, spec, db
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

func TestRows2Objects(t *testing.T) {
	_, spec, db := fixture(t)
	obj, err := Rows2Objects(db, spec)
	require.NoError(t, err)
	assert.Equal(t, barsObject(), obj)
}

func TestObjects2Rows(t *testing.T) {
	s, spec, db := fixture(t)
	out, err := Objects2Rows(s, spec, barsObject())
	require.NoError(t, err)

	// Compare through the canonical text form so row order is
	// irrelevant.
	want, err := database.Format(db, false)
	require.NoError(t, err)
	got, err := database.Format(out, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRoundTrip(t *testing.T) {
	s, spec, db := fixture(t)
	obj, err := Rows2Objects(db, spec)
	require.NoError(t, err)
	back, err := Objects2Rows(s, spec, obj)
	require.NoError(t, err)
	obj2, err := Rows2Objects(back, spec)
	require.NoError(t, err)
	assert.Equal(t, obj, obj2)
}

func TestOptionAmbiguityRejected(t *testing.T) {
	s, err := schema.Parse(barFooSchema)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, barsSpec)
	require.NoError(t, err)
	// Two foo rows join the same bar row, so the option is ambiguous.
	db, err := database.Parse(s, "bar 3 666\nfoo 1 2 3\nfoo 4 5 3\n")
	require.NoError(t, err)

	_, err = Rows2Objects(db, spec)
	require.Error(t, err)
}

func TestWriteConflict(t *testing.T) {
	s, err := schema.Parse(barFooSchema)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `pairs: set for (u v) (bar u v)
    _val_: struct
        first: value u
        second: value u
`)
	require.NoError(t, err)

	// The same variable backs both members, so disagreeing values
	// cannot be stored.
	_, err = Objects2Rows(s, spec, map[string]any{
		"pairs": []any{
			map[string]any{"first": int64(1), "second": int64(2)},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relational value present at two locations disagrees")

	// Agreeing values are fine; the v column stays uncovered though,
	// so emission fails for a different reason.
	_, err = Objects2Rows(s, spec, map[string]any{
		"pairs": []any{
			map[string]any{"first": int64(1), "second": int64(1)},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no value for variable")
}

func TestListShape(t *testing.T) {
	s, err := schema.Parse(`DOMAIN Int Int
DOMAIN String String
TABLE item Int String
`)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `items: list for (i x) (item i x)
    _idx_: value i
    _val_: value x
`)
	require.NoError(t, err)

	// Rows arrive unordered; the list is ordered by its index column.
	db, err := database.Parse(s, "item 2 [third]\nitem 0 [first]\nitem 1 [second]\n")
	require.NoError(t, err)
	obj, err := Rows2Objects(db, spec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"first", "second", "third"}}, obj)

	back, err := Objects2Rows(s, spec, obj)
	require.NoError(t, err)
	want, err := database.Format(db, false)
	require.NoError(t, err)
	got, err := database.Format(back, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetShape(t *testing.T) {
	s, err := schema.Parse(`DOMAIN Int Int
TABLE num Int
`)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `nums: set for (n) (num n)
    _val_: value n
`)
	require.NoError(t, err)

	db, err := database.Parse(s, "num 10\nnum 2\nnum 7\n")
	require.NoError(t, err)
	obj, err := Rows2Objects(db, spec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"nums": []any{int64(2), int64(7), int64(10)}}, obj)

	back, err := Objects2Rows(s, spec, obj)
	require.NoError(t, err)
	assert.Len(t, back.RowsOf("num"), 3)
}

func TestDictDuplicateKeyRejected(t *testing.T) {
	s, err := schema.Parse(`DOMAIN Int Int
TABLE kv Int Int
`)
	require.NoError(t, err)
	spec, err := shape.ParseSpec(s, `m: dict for (k v) (kv k v)
    _key_: value k
    _val_: value v
`)
	require.NoError(t, err)

	db, err := database.Parse(s, "kv 1 10\nkv 1 20\n")
	require.NoError(t, err)
	_, err = Rows2Objects(db, spec)
	require.Error(t, err)
}
