package bacon

import "errors"

var (
	// ErrUnknownVersion is returned for table versions other than 1 and 2.
	ErrUnknownVersion = errors.New("bacon: unknown version")
	// ErrInsufficientCoverText is returned when a cover text has fewer letters
	// than the encoded secret needs.
	ErrInsufficientCoverText = errors.New("bacon: insufficient cover text")
)
