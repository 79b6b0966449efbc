package domain

import "errors"

var (
	// ErrSubscriptionFailed is returned when subscription to events fails
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateEvent is returned when an event's (txHash, logIndex) key was already applied
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrMalformedEvent is returned when an event fails structural validation
	ErrMalformedEvent = errors.New("malformed event")

	// ErrInvariantViolation is returned when an event contradicts the current
	// project state (e.g. execute without a pending announcement)
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUpstreamUnavailable is returned when the chain RPC endpoint cannot be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
