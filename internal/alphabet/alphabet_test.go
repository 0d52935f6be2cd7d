package alphabet_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RowanDark/cipherkit/internal/alphabet"
)

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  error
	}{
		{"empty", []string{}, alphabet.ErrTooShort},
		{"single empty element", []string{""}, alphabet.ErrTooShort},
		{"single letter", []string{"a"}, alphabet.ErrTooShort},
		{"two empty elements", []string{"", ""}, alphabet.ErrInvalidElement},
		{"whitespace element", []string{" ", "x"}, alphabet.ErrInvalidElement},
		{"multi-char element", []string{"ab", "c"}, alphabet.ErrInvalidElement},
		{"exact duplicate", []string{"a", "a"}, alphabet.ErrDuplicateElement},
		{"case-insensitive duplicate", []string{"a", "A"}, alphabet.ErrDuplicateElement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := alphabet.Validate(tt.input)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, alphabet.ErrInvalidAlphabet)
		})
	}
}

func TestValidate_ReturnsInputUnchanged(t *testing.T) {
	got, err := alphabet.Validate([]string{"a", "B", "ö"})
	require.NoError(t, err)
	assert.Equal(t, alphabet.Alphabet{"a", "B", "ö"}, got)
}

func TestDefault(t *testing.T) {
	def := alphabet.Default()
	require.Len(t, def, 26)
	assert.Equal(t, alphabet.LatinLower, def.String())

	// Callers get their own copy.
	def[0] = "x"
	assert.Equal(t, "a", alphabet.Default()[0])
}

func TestParse(t *testing.T) {
	got, err := alphabet.Parse("xyz")
	require.NoError(t, err)
	assert.Equal(t, alphabet.Alphabet{"x", "y", "z"}, got)

	got, err = alphabet.Parse([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, alphabet.Alphabet{"a", "b"}, got)

	_, err = alphabet.Parse(true)
	assert.ErrorIs(t, err, alphabet.ErrInvalidType)

	_, err = alphabet.Parse([]any{1, 2})
	assert.ErrorIs(t, err, alphabet.ErrInvalidType)

	_, err = alphabet.Parse("aa")
	assert.ErrorIs(t, err, alphabet.ErrDuplicateElement)
}

func TestIsUpperCase(t *testing.T) {
	assert.False(t, alphabet.IsUpperCase("a"))
	assert.True(t, alphabet.IsUpperCase("A"))
	assert.False(t, alphabet.IsUpperCase("abc"))
	assert.True(t, alphabet.IsUpperCase("ABC"))
	assert.False(t, alphabet.IsUpperCase("aBc"))
	assert.False(t, alphabet.IsUpperCase("!"))
	assert.True(t, alphabet.IsUpperCase("Ä"))
}

func TestRandomASCIIChar_CoversPool(t *testing.T) {
	pool := alphabet.PrintableSpecial + alphabet.Digits + alphabet.LatinLower + strings.ToUpper(alphabet.LatinLower)
	seen := make(map[rune]bool)
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20000; i++ {
		c := alphabet.RandomASCIIChar(r)
		require.True(t, strings.ContainsRune(pool, c), "unexpected char %q", c)
		seen[c] = true
	}
	for _, c := range pool {
		assert.True(t, seen[c], "char %q never generated", c)
	}
}
