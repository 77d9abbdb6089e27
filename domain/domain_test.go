package domain

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsldb/lexjson"
)

func build(t *testing.T, kind, name string, args ...string) *Domain {
	t.Helper()
	d, err := Build(kind, name, args)
	require.NoError(t, err)
	return d
}

func TestRegistryKinds(t *testing.T) {
	kinds := Kinds()
	for _, k := range []string{"ID", "String", "Int", "Float", "Enum", "IPv4"} {
		assert.Contains(t, kinds, k)
	}
	_, err := Build("NoSuchKind", "x", nil)
	require.Error(t, err)
}

func TestIDDomain(t *testing.T) {
	d := build(t, "ID", "ID")

	raw, pos, err := d.Lex("jane rest", 0)
	require.NoError(t, err)
	assert.Equal(t, "jane", raw)
	assert.Equal(t, 4, pos)

	v, err := d.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "jane", v)

	enc, err := d.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, raw, enc)

	_, err = Build("ID", "ID", []string{"bogus"})
	require.Error(t, err)
}

func TestStringDomain(t *testing.T) {
	plain := build(t, "String", "String")

	raw, _, err := plain.Lex("[Jane Dane]", 0)
	require.NoError(t, err)
	v, err := plain.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Jane Dane", v)

	enc, err := plain.Encode(v)
	require.NoError(t, err)
	tok, err := plain.Unlex(enc)
	require.NoError(t, err)
	assert.Equal(t, "[Jane Dane]", tok)

	// Values with brackets cannot be written without escape support.
	enc, err = plain.Encode("a]b")
	require.NoError(t, err)
	_, err = plain.Unlex(enc)
	require.Error(t, err)

	esc := build(t, "String", "String", "escape")
	raw, _, err = esc.Lex(`[a\]b]`, 0)
	require.NoError(t, err)
	v, err = esc.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "a]b", v)

	enc, err = esc.Encode("a]b")
	require.NoError(t, err)
	tok, err = esc.Unlex(enc)
	require.NoError(t, err)
	assert.Equal(t, `[a\]b]`, tok)

	_, err = Build("String", "String", []string{"nonsense"})
	require.Error(t, err)
}

func TestIntDomain(t *testing.T) {
	d := build(t, "Int", "Int")

	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "0", want: 0},
		{raw: "42", want: 42},
		{raw: "-7", want: -7},
		{raw: "007", wantErr: true},
		{raw: "-0", wantErr: true},
	}
	for _, tt := range tests {
		v, err := d.Decode(tt.raw)
		if tt.wantErr {
			require.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, v)

		enc, err := d.Encode(v)
		require.NoError(t, err)
		assert.Equal(t, tt.raw, enc)
	}

	jv, err := d.DecodeJSON(lexjson.Token{Kind: lexjson.Number, Value: "13"})
	require.NoError(t, err)
	assert.Equal(t, int64(13), jv)

	_, err = d.DecodeJSON(lexjson.Token{Kind: lexjson.String, Value: "13"})
	require.Error(t, err)
}

func TestFloatDomain(t *testing.T) {
	d := build(t, "Float", "Float")

	v, err := d.Decode("3.25")
	require.NoError(t, err)
	assert.Equal(t, 3.25, v)

	_, err = d.Decode("3")
	require.Error(t, err)

	enc, err := d.Encode(3.25)
	require.NoError(t, err)
	assert.Equal(t, "3.25", enc)

	enc, err = d.Encode(float64(2))
	require.NoError(t, err)
	assert.Equal(t, "2.0", enc)
}

func TestEnumDomain(t *testing.T) {
	d := build(t, "Enum", "color", "red", "green", "blue")

	v, err := d.Decode("green")
	require.NoError(t, err)
	green := v.(EnumValue)
	assert.Equal(t, 1, green.Index)

	enc, err := d.Encode(green)
	require.NoError(t, err)
	assert.Equal(t, "green", enc)

	_, err = d.Decode("purple")
	require.Error(t, err)

	red, err := d.Decode("red")
	require.NoError(t, err)
	less, err := red.(EnumValue).Less(green)
	require.NoError(t, err)
	assert.True(t, less)

	// Values of separately declared enums never compare, even with the
	// same value names.
	other := build(t, "Enum", "color", "red", "green", "blue")
	ov, err := other.Decode("green")
	require.NoError(t, err)
	_, err = green.Equal(ov.(EnumValue))
	require.Error(t, err)

	_, err = d.Encode(ov)
	require.Error(t, err)

	_, err = Build("Enum", "empty", nil)
	require.Error(t, err)
	_, err = Build("Enum", "dup", []string{"a", "a"})
	require.Error(t, err)
}

func TestIPv4Domain(t *testing.T) {
	d := build(t, "IPv4", "Addr")

	v, err := d.Decode("192.168.0.1")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.0.1"), v)

	enc, err := d.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.1", enc)

	// Leading zeros in an octet are allowed; only the [0,255] range is
	// checked.
	v, err = d.Decode("192.168.001.001")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), v)

	for _, bad := range []string{"256.0.0.1", "1.2.3", "1.2.3.4.5", "::1", "a.b.c.d", "1..2.3"} {
		_, err := d.Decode(bad)
		require.Error(t, err, bad)
	}
}

func TestValueCompare(t *testing.T) {
	eq, err := ValueEqual(int64(3), int64(3))
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = ValueEqual(int64(3), "3")
	require.NoError(t, err)
	assert.False(t, eq)

	less, err := ValueLess(int64(2), int64(10))
	require.NoError(t, err)
	assert.True(t, less)

	_, err = ValueLess(int64(2), "10")
	require.Error(t, err)
}
