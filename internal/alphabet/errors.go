package alphabet

import "errors"

// ErrInvalidAlphabet is the umbrella error every validation failure wraps.
var ErrInvalidAlphabet = errors.New("invalid alphabet")

var (
	// ErrInvalidType indicates the value is not a sequence of strings.
	ErrInvalidType = wrapInvalid("provide a sequence of single-letter chars")
	// ErrInvalidElement indicates an element is not exactly one visible character.
	ErrInvalidElement = wrapInvalid("alphabet should contain only single-letter chars")
	// ErrTooShort indicates fewer than two elements.
	ErrTooShort = wrapInvalid("alphabet needs to be at least 2 characters long")
	// ErrDuplicateElement indicates two elements equal under case folding.
	ErrDuplicateElement = wrapInvalid("alphabet must not contain duplicates")
)

type invalidError struct {
	msg string
}

func wrapInvalid(msg string) error {
	return &invalidError{msg: msg}
}

func (e *invalidError) Error() string {
	return ErrInvalidAlphabet.Error() + ": " + e.msg
}

func (e *invalidError) Unwrap() error {
	return ErrInvalidAlphabet
}
