package bacon

import (
	"strings"
)

// Options configures Encode and Decode.
type Options struct {
	// Version selects the code table. Zero means DefaultVersion.
	Version Version
	// IncludeForeignChars copies characters that are not letters (on encode)
	// or not code symbols (on decode) to the output. When false they are
	// dropped.
	IncludeForeignChars bool
}

// DefaultOptions returns version 2 with foreign characters preserved.
func DefaultOptions() Options {
	return Options{Version: DefaultVersion, IncludeForeignChars: true}
}

func (o Options) table() (*Table, error) {
	return TableFor(resolveVersion(o.Version))
}

func resolveVersion(v Version) Version {
	if v == 0 {
		return DefaultVersion
	}
	return v
}

// Encode replaces every Latin letter of plaintext with its five-symbol code.
func Encode(plaintext string, opts Options) (string, error) {
	t, err := opts.table()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(plaintext) * CodeLen)
	for _, r := range plaintext {
		if code, ok := t.Code(r); ok {
			b.WriteString(code)
			continue
		}
		if opts.IncludeForeignChars {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// Decode reads stream in windows of five code symbols and maps each window
// back to a letter. Symbols match case-insensitively. Any other character
// does not advance the window. A trailing incomplete window and windows with
// no letter in the table (v1 has 24 codes out of 32) produce nothing.
func Decode(stream string, opts Options) (string, error) {
	t, err := opts.table()
	if err != nil {
		return "", err
	}

	var (
		b      strings.Builder
		window = make([]byte, 0, CodeLen)
	)
	for _, r := range stream {
		sym, ok := symbol(r)
		if !ok {
			if opts.IncludeForeignChars {
				b.WriteRune(r)
			}
			continue
		}
		window = append(window, sym)
		if len(window) < CodeLen {
			continue
		}
		if letter, ok := t.Letter(string(window)); ok {
			b.WriteRune(letter)
		}
		window = window[:0]
	}
	return b.String(), nil
}

func symbol(r rune) (byte, bool) {
	switch r {
	case SymbolA, 'A':
		return SymbolA, true
	case SymbolB, 'B':
		return SymbolB, true
	default:
		return 0, false
	}
}
