package bacon

import (
	"math/rand/v2"
	"strings"

	"github.com/RowanDark/cipherkit/internal/alphabet"
)

// Scatter hides the code symbols of stream among random printable ASCII
// characters. Up to noise filler characters are inserted before every symbol;
// fillers are never code symbols, so Decode with IncludeForeignChars unset
// recovers the message. A nil r uses the global source.
func Scatter(stream string, noise int, r *rand.Rand) string {
	if noise <= 0 {
		return stream
	}
	intN := rand.IntN
	if r != nil {
		intN = r.IntN
	}

	var b strings.Builder
	b.Grow(len(stream) * (noise/2 + 1))
	for _, c := range stream {
		if _, ok := symbol(c); ok {
			for i := intN(noise + 1); i > 0; i-- {
				b.WriteRune(filler(r))
			}
		}
		b.WriteRune(c)
	}
	return b.String()
}

func filler(r *rand.Rand) rune {
	for {
		c := alphabet.RandomASCIIChar(r)
		if _, isSymbol := symbol(c); !isSymbol {
			return c
		}
	}
}
