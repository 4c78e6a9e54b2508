package models

import "errors"

// Failure kinds. Concrete errors wrap one of these, so callers match with
// errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds or overdraft limit exceeded")
)

// Kind names the failure kind of err, or returns "" when err is nil or not
// one of the domain kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "DuplicateIdentifier"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	}
	return ""
}
