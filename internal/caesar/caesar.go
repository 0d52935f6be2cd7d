// Package caesar implements the Caesar shift cipher over an arbitrary
// alphabet.
package caesar

import (
	"fmt"
	"strings"

	"github.com/RowanDark/cipherkit/internal/alphabet"
)

// Options controls how characters are rotated.
type Options struct {
	// CaseSensitive restores upper case on letters that were upper case in
	// the input. When false every output letter takes the alphabet's case.
	CaseSensitive bool
	// IncludeForeignChars copies characters missing from the alphabet to the
	// output. When false they are dropped.
	IncludeForeignChars bool
	// Alphabet is the rotation alphabet. Nil means alphabet.Default().
	Alphabet alphabet.Alphabet
}

// DefaultOptions returns case-sensitive, foreign-preserving options over the
// Latin alphabet.
func DefaultOptions() Options {
	return Options{
		CaseSensitive:       true,
		IncludeForeignChars: true,
		Alphabet:            alphabet.Default(),
	}
}

// Encrypt rotates every alphabet character of plaintext forward by shift.
// Negative and oversized shifts are reduced modulo the alphabet length.
func Encrypt(plaintext string, shift int, opts Options) (string, error) {
	abc, err := resolveAlphabet(opts.Alphabet)
	if err != nil {
		return "", err
	}
	n := len(abc)
	shift = normalize(shift, n)

	index := make(map[string]int, n)
	for i, el := range abc {
		index[strings.ToLower(el)] = i
	}

	var b strings.Builder
	b.Grow(len(plaintext))
	for _, r := range plaintext {
		ch := string(r)
		pos, ok := index[strings.ToLower(ch)]
		if !ok {
			if opts.IncludeForeignChars {
				b.WriteString(ch)
			}
			continue
		}

		out := abc[(pos+shift)%n]
		if opts.CaseSensitive && alphabet.IsUpperCase(ch) {
			out = strings.ToUpper(out)
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// Decrypt reverses Encrypt by rotating with the complementary shift.
func Decrypt(ciphertext string, shift int, opts Options) (string, error) {
	abc, err := resolveAlphabet(opts.Alphabet)
	if err != nil {
		return "", err
	}
	opts.Alphabet = abc
	return Encrypt(ciphertext, len(abc)-normalize(shift, len(abc)), opts)
}

func resolveAlphabet(a alphabet.Alphabet) (alphabet.Alphabet, error) {
	if a == nil {
		return alphabet.Default(), nil
	}
	abc, err := alphabet.Validate(a)
	if err != nil {
		return nil, fmt.Errorf("caesar: %w", err)
	}
	return abc, nil
}

func normalize(shift, n int) int {
	shift %= n
	if shift < 0 {
		shift += n
	}
	return shift
}
