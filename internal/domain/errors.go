package domain

import "errors"

var (
	// ErrValidation marks malformed input (unknown direction, empty
	// description, bad expiry window). Rejected synchronously, never persisted.
	ErrValidation = errors.New("Invalid input")

	// ErrNotFound marks a lookup miss for a listing or match record.
	ErrNotFound = errors.New("Record not found")

	// ErrInvalidTransition marks an illegal state change attempt; the
	// underlying record is left untouched.
	ErrInvalidTransition = errors.New("Invalid status transition")

	// ErrNotEmbedded marks a listing without a vector. Matching for it is
	// deferred, not surfaced to the end user.
	ErrNotEmbedded = errors.New("Listing has no embedding")

	// ErrRetrieval marks a candidate search backend failure. The run is
	// abandoned for this cycle and retried on the next scheduled pass.
	ErrRetrieval = errors.New("Candidate retrieval failed")
)
