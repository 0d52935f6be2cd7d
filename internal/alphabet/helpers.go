package alphabet

import (
	"math/rand/v2"
	"strings"
)

const (
	// PrintableSpecial holds the printable ASCII characters that are neither
	// letters nor digits, space included.
	PrintableSpecial = " !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	// Digits holds the decimal digits.
	Digits = "0123456789"
)

var asciiPool = []rune(PrintableSpecial + Digits + LatinLower + strings.ToUpper(LatinLower))

// IsUpperCase reports whether s contains at least one cased letter and is
// entirely upper case. "ABC" is upper case, "aBc" and "!" are not.
func IsUpperCase(s string) bool {
	return s == strings.ToUpper(s) && s != strings.ToLower(s)
}

// RandomASCIIChar returns a uniformly chosen printable ASCII character. A nil
// r uses the global source.
func RandomASCIIChar(r *rand.Rand) rune {
	if r == nil {
		return asciiPool[rand.IntN(len(asciiPool))]
	}
	return asciiPool[r.IntN(len(asciiPool))]
}
