package bacon

import (
	"fmt"
	"strings"
	"unicode"
)

// Pattern is a casing pattern: true marks an upper-case letter (symbol b),
// false a lower-case one (symbol a).
type Pattern []bool

// PatternFromCodes converts the code symbols of stream into a pattern.
// Characters other than code symbols are ignored.
func PatternFromCodes(stream string) Pattern {
	p := make(Pattern, 0, len(stream))
	for _, r := range stream {
		if sym, ok := symbol(r); ok {
			p = append(p, sym == SymbolB)
		}
	}
	return p
}

// ExtractPattern records the case of every case-carrying letter of text.
func ExtractPattern(text string) Pattern {
	var p Pattern
	for _, r := range text {
		if isCarrier(r) {
			p = append(p, unicode.IsUpper(r))
		}
	}
	return p
}

// Codes renders the pattern as code symbols, whole windows only.
func (p Pattern) Codes() string {
	n := len(p) - len(p)%CodeLen
	var b strings.Builder
	b.Grow(n)
	for _, bit := range p[:n] {
		if bit {
			b.WriteRune(SymbolB)
		} else {
			b.WriteRune(SymbolA)
		}
	}
	return b.String()
}

// EncryptInText hides secret in the letter casing of cover. Every letter of
// the secret needs five letters of cover; letters after the hidden pattern
// keep their case, and non-letters are copied untouched.
func EncryptInText(secret, cover string, v Version) (string, error) {
	stream, err := Encode(secret, Options{Version: v})
	if err != nil {
		return "", err
	}
	pattern := PatternFromCodes(stream)

	if have := countCarriers(cover); have < len(pattern) {
		return "", fmt.Errorf("%w: need at least %d letters to hide the message, got %d; please provide more letters",
			ErrInsufficientCoverText, len(pattern), have)
	}

	var b strings.Builder
	b.Grow(len(cover))
	next := 0
	for _, r := range cover {
		if next < len(pattern) && isCarrier(r) {
			if pattern[next] {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			next++
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// DecryptInText reads the casing pattern of marked and decodes it. Every
// whole group of five letters is decoded; there is no end marker, so letters
// following a hidden message decode as well.
func DecryptInText(marked string, v Version) (string, error) {
	return Decode(ExtractPattern(marked).Codes(), Options{Version: v})
}

// isCarrier reports whether r has distinct upper and lower case forms and can
// therefore hold one bit.
func isCarrier(r rune) bool {
	return unicode.IsLetter(r) && unicode.ToUpper(r) != unicode.ToLower(r)
}

func countCarriers(s string) int {
	n := 0
	for _, r := range s {
		if isCarrier(r) {
			n++
		}
	}
	return n
}
