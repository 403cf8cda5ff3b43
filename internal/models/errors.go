package models

import "errors"

var (
	ErrInvalidRange           = errors.New("end time must be after start time")
	ErrBelowMinimumDuration   = errors.New("booking duration below 12 hour minimum")
	ErrInvalidExtensionHours  = errors.New("added hours must be a positive multiple of 12")
	ErrInvalidPaymentOutcome  = errors.New("outcome must be success or failure")
	ErrCarNotFound            = errors.New("car not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrCarNotAvailable        = errors.New("car not available for requested range")
	ErrForbidden              = errors.New("not allowed")
	ErrNotExtendable          = errors.New("only confirmed bookings can be extended")
	ErrBookingEnded           = errors.New("cannot extend an already-ended booking")
	ErrInvalidTransition      = errors.New("illegal booking status transition")
	ErrIdempotencyKeyConflict = errors.New("idempotency key already used")
)

// IsValidation reports whether err is a request validation error that should
// be rejected before any transaction opens.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrBelowMinimumDuration) ||
		errors.Is(err, ErrInvalidExtensionHours) ||
		errors.Is(err, ErrInvalidPaymentOutcome)
}

// IsNotFound reports whether err indicates a missing entity
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCarNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsConflict reports whether err indicates availability lost between quote and
// commit. Never retried server-side; the caller re-quotes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCarNotAvailable) || errors.Is(err, ErrIdempotencyKeyConflict)
}
