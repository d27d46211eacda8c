package apperrors

import "errors"

var (
	// ErrAccountNotFound is returned when the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientBalance is returned when a debit would take the sender
	// below zero. The operation leaves no writes behind.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for amounts that are zero, negative or
	// otherwise malformed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateReference indicates the idempotency reference was already
	// used. The store returns the previously completed entry alongside it, so
	// callers can treat a replay as a success.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrConcurrencyConflict signals that row lock contention exceeded the
	// internal retry budget. The whole operation is safe to retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStoreUnavailable wraps storage failures that abort the request with
	// nothing applied.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrAccountExists = errors.New("account already exists")

	// ErrModeNotAllowed is returned when a role may not act in the requested
	// mode.
	ErrModeNotAllowed = errors.New("mode not allowed for role")
)
