package lexjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()
	l := New(input)
	var out []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Kind == EOF {
			return out
		}
		out = append(out, tok)
	}
}

func TestTokenStream(t *testing.T) {
	toks := lexAll(t, ` {"a": [1, -2], "b": null} `)
	kinds := make([]Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []Kind{LBrace, String, Colon, LBracket, Number, Comma, Number, RBracket, Comma, String, Colon, Null, RBrace}, kinds)
	assert.Equal(t, "a", toks[1].Value)
	assert.Equal(t, "1", toks[4].Value)
	assert.Equal(t, "-2", toks[6].Value)
}

func TestStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\"b\\c\ndA"`)
	require.Len(t, toks, 1)
	assert.Equal(t, "a\"b\\c\ndA", toks[0].Value)
}

func TestStringErrors(t *testing.T) {
	for _, bad := range []string{`"unterminated`, `"dangling\`, `"bad\q"`, `"trunc\u12"`} {
		l := New(bad)
		_, err := l.Next()
		require.Error(t, err, bad)
	}
}

func TestNumbers(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{in: "0", want: "0"},
		{in: "-12", want: "-12"},
		{in: "3.5", want: "3.5"},
		{in: "1e3", want: "1e3"},
	} {
		toks := lexAll(t, tt.in)
		require.Len(t, toks, 1)
		assert.Equal(t, Number, toks[0].Kind)
		assert.Equal(t, tt.want, toks[0].Value)
	}

	l := New("-x")
	_, err := l.Next()
	require.Error(t, err)
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteString("plain"))
	assert.Equal(t, `"a\"b"`, QuoteString(`a"b`))
	assert.Equal(t, `"line\nbreak"`, QuoteString("line\nbreak"))

	// Quoting then lexing returns the original string.
	l := New(QuoteString("round \t trip \" done"))
	tok, err := l.Next()
	require.NoError(t, err)
	assert.Equal(t, "round \t trip \" done", tok.Value)
}

func TestUnexpectedCharacter(t *testing.T) {
	l := New("@")
	_, err := l.Next()
	require.Error(t, err)
}
