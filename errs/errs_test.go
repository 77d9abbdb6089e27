package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineCol(t *testing.T) {
	text := "first\nsecond\nthird"
	tests := []struct {
		name   string
		offset int
		line   int
		col    int
	}{
		{name: "start", offset: 0, line: 1, col: 1},
		{name: "mid first line", offset: 3, line: 1, col: 4},
		{name: "start of second line", offset: 6, line: 2, col: 1},
		{name: "mid third line", offset: 15, line: 3, col: 3},
		{name: "past the end clamps", offset: 100, line: 3, col: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, col := LineCol(text, tt.offset)
			assert.Equal(t, tt.line, line)
			assert.Equal(t, tt.col, col)
		})
	}
}

func TestLexErrorMessage(t *testing.T) {
	err := &LexError{
		LexicalType: "string literal",
		Text:        "ab\ncdefgh\nxy",
		StartPos:    5,
		ErrorPos:    7,
		Message:     `Unknown escape sequence: \q`,
	}
	assert.Equal(t, `While lexing string literal (starting at 2:3): At 2:5: Unknown escape sequence: \q`, err.Error())
}

func TestIntegrityErrorUnwrap(t *testing.T) {
	cause := &UniqueConstraintViolation{Table: "T", Key: "K", Row: []string{"x"}}
	err := &IntegrityError{Cause: cause}

	var got *UniqueConstraintViolation
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "K", got.Key)
	assert.Contains(t, err.Error(), "unique constraint violation")
}
