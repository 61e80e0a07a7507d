package domain

import "time"

// OutboxAction is the mutation an outbox entry applies to the event-log side.
type OutboxAction string

const (
	OutboxIgnore   OutboxAction = "IGNORE"
	OutboxUnignore OutboxAction = "UNIGNORE"
)

// OutboxStatus is the delivery state of an outbox entry.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSuccess OutboxStatus = "SUCCESS"
	OutboxFailed  OutboxStatus = "FAILED"
	// OutboxSuperseded marks an undelivered entry replaced by a newer, opposite
	// action for the same key.
	OutboxSuperseded OutboxStatus = "SUPERSEDED"
)

// OutboxEntry is a durable, retryable cross-store mutation.
type OutboxEntry struct {
	ID           int64        `json:"id"`
	LogHash      string       `json:"log_hash"`
	Action       OutboxAction `json:"action"`
	Status       OutboxStatus `json:"status"`
	AttemptCount int          `json:"attempt_count"`
	NextRetryAt  *time.Time   `json:"next_retry_at,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
}

// OutboxActionFor derives the outbox action for a status transition. Only
// crossing the IGNORED boundary produces one.
func OutboxActionFor(prev, next IncidentStatus) (OutboxAction, bool) {
	if prev == next {
		return "", false
	}
	if next == IncidentIgnored {
		return OutboxIgnore, true
	}
	if prev == IncidentIgnored {
		return OutboxUnignore, true
	}
	return "", false
}

// OutboxBackoff returns the delay before retry number attempt (1-based):
// base doubled per attempt and capped at max.
func OutboxBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
