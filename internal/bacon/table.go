package bacon

import (
	"fmt"
	"strings"

	"github.com/RowanDark/cipherkit/internal/alphabet"
)

// Version selects one of the two historical code tables.
type Version int

const (
	// V1 is the 24-letter table where I/J and U/V share codes.
	V1 Version = 1
	// V2 gives every letter of the alphabet its own code.
	V2 Version = 2

	// DefaultVersion is used when no version is configured.
	DefaultVersion = V2
)

const (
	// CodeLen is the number of symbols per letter.
	CodeLen = 5
	// SymbolA is the first code symbol (lower case, bit 0).
	SymbolA = 'a'
	// SymbolB is the second code symbol (upper case, bit 1).
	SymbolB = 'b'
)

// Table maps letters to codes and back. Tables are built once and never
// mutated.
type Table struct {
	version Version
	forward map[rune]string
	reverse map[string]rune
}

var tables = map[Version]*Table{
	V1: buildTable(V1, map[rune]rune{'j': 'i', 'v': 'u'}),
	V2: buildTable(V2, nil),
}

// TableFor returns the code table for v.
func TableFor(v Version) (*Table, error) {
	t, ok := tables[v]
	if !ok {
		return nil, fmt.Errorf("%w %d: select version 1 or 2", ErrUnknownVersion, int(v))
	}
	return t, nil
}

// buildTable assigns codes 0, 1, 2... to the Latin letters in order. Letters
// listed in shared reuse the code of their partner and do not advance the
// counter. The reverse map keeps the first letter seen for every code, which
// resolves shared codes to the alphabetically earlier letter.
func buildTable(v Version, shared map[rune]rune) *Table {
	t := &Table{
		version: v,
		forward: make(map[rune]string, len(alphabet.LatinLower)),
		reverse: make(map[string]rune, len(alphabet.LatinLower)),
	}
	next := 0
	for _, letter := range alphabet.LatinLower {
		if partner, ok := shared[letter]; ok {
			t.forward[letter] = t.forward[partner]
			continue
		}
		code := codeFor(next)
		next++
		t.forward[letter] = code
		if _, taken := t.reverse[code]; !taken {
			t.reverse[code] = letter
		}
	}
	return t
}

func codeFor(n int) string {
	var b strings.Builder
	for bit := CodeLen - 1; bit >= 0; bit-- {
		if n&(1<<bit) != 0 {
			b.WriteRune(SymbolB)
		} else {
			b.WriteRune(SymbolA)
		}
	}
	return b.String()
}

// Version reports which table this is.
func (t *Table) Version() Version { return t.version }

// Code returns the code for letter, matched case-insensitively.
func (t *Table) Code(letter rune) (string, bool) {
	code, ok := t.forward[toLowerLatin(letter)]
	return code, ok
}

// Letter returns the lowercase letter for code, matched case-insensitively.
func (t *Table) Letter(code string) (rune, bool) {
	r, ok := t.reverse[strings.ToLower(code)]
	return r, ok
}

// Codes reports the number of distinct codes in the table.
func (t *Table) Codes() int { return len(t.reverse) }

func toLowerLatin(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
