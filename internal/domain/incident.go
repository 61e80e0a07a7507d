package domain

import (
	"fmt"
	"time"
)

// IncidentStatus is the lifecycle state of an incident in the incident store.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "OPEN"
	IncidentInProgress IncidentStatus = "IN_PROGRESS"
	IncidentResolved   IncidentStatus = "RESOLVED"
	IncidentClosed     IncidentStatus = "CLOSED"
	IncidentIgnored    IncidentStatus = "IGNORED"
)

// Valid reports whether s is a known status.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentOpen, IncidentInProgress, IncidentResolved, IncidentClosed, IncidentIgnored:
		return true
	}
	return false
}

// Incident is the knowledge-side view of an incident key.
type Incident struct {
	ID              int64          `json:"id"`
	LogHash         string         `json:"log_hash"`
	ServiceName     string         `json:"service_name"`
	Title           string         `json:"title"`
	Summary         string         `json:"summary"`
	StackTrace      string         `json:"stack_trace,omitempty"`
	ErrorCode       string         `json:"error_code"`
	ErrorLevel      string         `json:"error_level"`
	Status          IncidentStatus `json:"status"`
	RepeatCount     int64          `json:"repeat_count"`
	FirstOccurredAt time.Time      `json:"first_occurred_at"`
	LastOccurredAt  time.Time      `json:"last_occurred_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	CloseEligibleAt *time.Time     `json:"close_eligible_at,omitempty"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
	ReopenedAt      *time.Time     `json:"reopened_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IncidentTitle builds the default title for a newly seen incident.
func IncidentTitle(serviceName, errorCode, logHash string) string {
	if errorCode == "" {
		return "Incident #" + shortHash(logHash)
	}
	return fmt.Sprintf("[%s] %s", serviceName, errorCode)
}

// Transition moves the incident to next and stamps the lifecycle timestamps.
// It returns the previous status. Moving to the current status is a no-op.
func (i *Incident) Transition(next IncidentStatus, now time.Time, grace time.Duration) (IncidentStatus, error) {
	if !next.Valid() {
		return i.Status, fmt.Errorf("%w: %q", ErrInvalidTransition, next)
	}
	prev := i.Status
	if prev == next {
		return prev, nil
	}

	switch next {
	case IncidentResolved:
		resolved := now
		eligible := now.Add(grace)
		i.ResolvedAt = &resolved
		i.CloseEligibleAt = &eligible
		i.ClosedAt = nil
	case IncidentClosed:
		closed := now
		i.ClosedAt = &closed
		i.CloseEligibleAt = nil
	default:
		if prev == IncidentResolved || prev == IncidentClosed {
			reopened := now
			i.ReopenedAt = &reopened
		}
		i.ResolvedAt = nil
		i.CloseEligibleAt = nil
		i.ClosedAt = nil
	}

	i.Status = next
	i.UpdatedAt = now
	return prev, nil
}

// StatusChange is the outcome of a bridged status update.
type StatusChange struct {
	Incident Incident       `json:"incident"`
	Previous IncidentStatus `json:"previous"`
	Outbox   *OutboxEntry   `json:"outbox,omitempty"`
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
