package entity

import "errors"

// Validation errors: reported to the user, no state change.
var (
	ErrInvalidPrice        = errors.New("price must be a non-negative whole number")
	ErrDescriptionTooShort = errors.New("description is too short")
	ErrEmptyLocation       = errors.New("location cannot be empty")
)

// Authorization errors: reported to the user, no state change.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNoPublicHandle      = errors.New("a public username is required to publish")
	ErrForbidden           = errors.New("user not authorized to perform this action")
)

var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrInvalidTransition = errors.New("listing status transition not allowed")
	ErrUnknownPlan       = errors.New("unknown top-up plan")
)
