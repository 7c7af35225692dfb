package types

import "errors"

// Validation errors
var (
	ErrInvalidMetaPath   = errors.New("invalid meta-path")
	ErrMissingKey        = errors.New("rating record is missing a required key")
	ErrRatingOutOfRange  = errors.New("rating must be within [0, 1]")
	ErrInvalidID         = errors.New("meta-path id must be positive")
	ErrInvalidTimeToRate = errors.New("time_to_rate must not be negative")
)
