package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the request-gate rejection kinds that cross package
// boundaries. Callers should use [errors.Is] to match these.
var (
	// ErrMissingSignature indicates no signature was presented with the
	// request in any of the accepted transports.
	ErrMissingSignature = errors.New("missing signature")

	// ErrSignatureMismatch means none of the candidate encodings of the
	// payload produced the asserted signature.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrMalformedPayload means the body was absent, unparsable, or a
	// required field had the wrong type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrStaleTimestamp means the timestamp claim fell outside the replay
	// window, or was missing or non-numeric.
	ErrStaleTimestamp = errors.New("stale timestamp")

	// ErrRateLimitExceeded is returned when a source exceeds the allowed
	// request rate for the window.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrStoreUnavailable indicates the backing registry store failed.
	ErrStoreUnavailable = errors.New("registry store unavailable")
)

// GateError is a request-gate rejection. It wraps one of the sentinel
// errors and carries the optional response details that go with it:
// signature prefixes on a mismatch, a retry hint on a rate limit.
type GateError struct {
	Err         error
	ReceivedSig string
	ComputedSig string
	RetryAfter  int // seconds until the limiter window resets
}

func (e *GateError) Error() string {
	return e.Err.Error()
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// RegistryError wraps an underlying store error with subject context.
type RegistryError struct {
	SubjectID string
	Op        string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.SubjectID != "" {
		return fmt.Sprintf("subject %s: %s: %v", e.SubjectID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}
