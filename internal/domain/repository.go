package domain

import (
	"context"
	"time"
)

// EventQueue is the durable FIFO between producers and consumers.
type EventQueue interface {
	// Push appends one serialized event and refreshes the queue TTL.
	Push(ctx context.Context, payload []byte) error

	// Pop waits up to timeout for the next payload. It returns nil, nil when the
	// queue stays empty.
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)

	// DeadLetter appends a payload that could not be processed.
	DeadLetter(ctx context.Context, payload []byte) error

	// IsAvailable reports the last known health of the queue backend.
	IsAvailable() bool
}

// IgnoreMarker is the fast-path set of incident keys whose events are dropped
// before aggregation.
type IgnoreMarker interface {
	IsIgnored(ctx context.Context, logHash string) (bool, error)
	MarkIgnored(ctx context.Context, logHash string) error
	UnmarkIgnored(ctx context.Context, logHash string) error
}

// QueueAdminRepository exposes operator views over the queue and DLQ.
type QueueAdminRepository interface {
	Stats(ctx context.Context) (QueueStats, error)
	PeekDeadLetters(ctx context.Context, count int64) ([]string, error)
	ReplayDeadLetters(ctx context.Context, count int64) (int64, error)
}

// QueueStats is a point-in-time depth sample.
type QueueStats struct {
	QueueKey   string `json:"queue_key"`
	QueueDepth int64  `json:"queue_depth"`
	DLQKey     string `json:"dlq_key"`
	DLQDepth   int64  `json:"dlq_depth"`
}

// ErrorLogRepository is the aggregation store accessor for the event-log store.
type ErrorLogRepository interface {
	// UpsertOccurrence atomically inserts or increments the host row and the
	// record row for the occurrence key.
	UpsertOccurrence(ctx context.Context, occ Occurrence) (UpsertResult, error)

	FindByKey(ctx context.Context, logHash string) (*ErrorLogRecord, error)

	// MarkIgnored and UnmarkIgnored are idempotent.
	MarkIgnored(ctx context.Context, logHash string) error
	UnmarkIgnored(ctx context.Context, logHash string) error

	Acknowledge(ctx context.Context, logHash, by string, at time.Time) error
	Resolve(ctx context.Context, logHash string, at time.Time) error

	// CountHostsByKeys returns the number of distinct hosts per key. Keys
	// without hosts are absent from the map.
	CountHostsByKeys(ctx context.Context, logHashes []string) (map[string]int64, error)
}

// IncidentRepository is the incident store.
type IncidentRepository interface {
	// RecordOccurrence inserts or increments the incident, reopening resolved
	// and closed incidents.
	RecordOccurrence(ctx context.Context, occ Occurrence) (*Incident, error)

	// TouchIfIgnored refreshes lastOccurredAt when the incident is IGNORED and
	// reports whether it was.
	TouchIfIgnored(ctx context.Context, logHash string, at time.Time) (bool, error)

	FindByKey(ctx context.Context, logHash string) (*Incident, error)

	// TransitionStatus changes the status and writes the resulting outbox entry
	// in the same transaction.
	TransitionStatus(ctx context.Context, logHash string, next IncidentStatus, now time.Time, grace time.Duration) (*StatusChange, error)

	// CloseResolved closes RESOLVED incidents whose grace period ended and
	// returns their keys.
	CloseResolved(ctx context.Context, now time.Time) ([]string, error)
}

// OutboxRepository persists delivery state for outbox entries.
type OutboxRepository interface {
	FindDue(ctx context.Context, now time.Time, limit, maxAttempts int) ([]OutboxEntry, error)
	MarkSucceeded(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextRetryAt time.Time, reason string, at time.Time) error
}

// DraftRepository stores system drafts.
type DraftRepository interface {
	// CreateIfAbsent stores the draft unless one already exists for its key.
	CreateIfAbsent(ctx context.Context, d Draft) (bool, error)

	FindDraft(ctx context.Context, logHash string) (*Draft, error)

	// DeleteStale removes untouched DRAFT-status drafts older than cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier delivers chat alerts.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
