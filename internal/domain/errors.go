package domain

import "errors"

var (
	// ErrNotFound is returned when a record for the requested key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEvent marks events rejected before they enter the pipeline.
	ErrInvalidEvent = errors.New("invalid error event")

	// ErrQueueUnavailable is returned by queues that are known to be unreachable.
	ErrQueueUnavailable = errors.New("ingestion queue unavailable")

	// ErrInvalidTransition is returned for unknown target statuses.
	ErrInvalidTransition = errors.New("invalid status transition")
)
