package alphabet

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// LatinLower lists the English alphabet in order.
const LatinLower = "abcdefghijklmnopqrstuvwxyz"

// Alphabet is an ordered set of single-character strings. Values returned by
// Validate or Parse are safe to share; callers must not mutate them.
type Alphabet []string

var latin = Split(LatinLower)

// Default returns the 26-letter lowercase Latin alphabet.
func Default() Alphabet {
	out := make(Alphabet, len(latin))
	copy(out, latin)
	return out
}

// Split turns every rune of s into an alphabet element without validating.
func Split(s string) Alphabet {
	out := make(Alphabet, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Len reports the number of elements.
func (a Alphabet) Len() int { return len(a) }

// String joins the elements back into a single string.
func (a Alphabet) String() string { return strings.Join(a, "") }

// Validate checks that alphabet holds at least two unique, single visible
// characters. Duplicates are detected case-insensitively. The alphabet is
// returned unchanged on success.
func Validate(alphabet []string) (Alphabet, error) {
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrTooShort, len(alphabet))
	}

	for i, el := range alphabet {
		if !isSingleChar(el) {
			return nil, fmt.Errorf("%w (element %d: %q)", ErrInvalidElement, i, el)
		}
	}

	folder := cases.Fold()
	seen := make(map[string]int, len(alphabet))
	for i, el := range alphabet {
		key := folder.String(el)
		if first, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w (elements %d and %d: %q)", ErrDuplicateElement, first, i, el)
		}
		seen[key] = i
	}

	return Alphabet(alphabet), nil
}

// Parse validates an alphabet received as an untyped value, typically an
// operation parameter decoded from JSON or YAML. A plain string is split into
// its characters.
func Parse(v any) (Alphabet, error) {
	switch val := v.(type) {
	case Alphabet:
		return Validate(val)
	case []string:
		return Validate(val)
	case string:
		return Validate(Split(val))
	case []any:
		elems := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w (element %d is %T)", ErrInvalidType, i, item)
			}
			elems[i] = s
		}
		return Validate(elems)
	default:
		return nil, fmt.Errorf("%w (got %T)", ErrInvalidType, v)
	}
}

func isSingleChar(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && !unicode.IsSpace(r) && unicode.IsPrint(r)
}
