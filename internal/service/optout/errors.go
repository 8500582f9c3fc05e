package optout

import "errors"

// Sentinel errors for the opt-out service layer.
var (
	ErrNotFound     = errors.New("opt-out entry not found")
	ErrInvalidPhone = errors.New("invalid phone number")
)
