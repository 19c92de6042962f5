package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput covers malformed requests: empty block reasons,
	// non-positive burn amounts, malformed recovery keys.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRecoveryKey hides whether the key was malformed or merely wrong.
	// The reason is to avoid leaking which part of the key check failed.
	ErrInvalidRecoveryKey = errors.New("invalid recovery key")
	// ErrAlreadyRecovered guards the one-way recovery state machine.
	// Without this sentinel a retried verification could re-credit funds.
	ErrAlreadyRecovered = errors.New("burn transaction already recovered")
	// ErrExternalService signals an unavailable or timed-out collaborator
	// (chain writer, geolocation, biometric verifier).
	ErrExternalService = errors.New("external service unavailable")
	// ErrPolicyBlocked is returned when an action is refused by trust-score
	// or blacklist policy rather than by bad input.
	ErrPolicyBlocked     = errors.New("blocked by security policy")
	ErrRateLimited       = errors.New("rate limited")
	ErrInsufficientFunds = errors.New("insufficient balance")
)
