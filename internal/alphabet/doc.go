// Package alphabet validates the character sets used by the substitution
// ciphers and provides the small text helpers they share: the default Latin
// alphabet, a case classifier and a random printable-ASCII generator.
//
// Validation rules, in the order they are checked:
//
//   - at least two elements (ErrTooShort)
//   - every element is exactly one visible character (ErrInvalidElement)
//   - no two elements are equal once case-folded (ErrDuplicateElement)
//
// Parse additionally rejects values that are not sequences of strings
// (ErrInvalidType). All four wrap ErrInvalidAlphabet.
package alphabet
