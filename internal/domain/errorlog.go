package domain

import "time"

// ErrorLogStatus is the handling state of an aggregated error record.
type ErrorLogStatus string

const (
	ErrorLogNew          ErrorLogStatus = "NEW"
	ErrorLogAcknowledged ErrorLogStatus = "ACKNOWLEDGED"
	ErrorLogResolved     ErrorLogStatus = "RESOLVED"
	ErrorLogIgnored      ErrorLogStatus = "IGNORED"
)

// ErrorLogRecord is the deduplicated aggregate for one incident key in the
// event-log store.
type ErrorLogRecord struct {
	ID              int64          `json:"id"`
	LogHash         string         `json:"log_hash"`
	ServiceName     string         `json:"service_name"`
	HostName        string         `json:"host_name"`
	LogLevel        string         `json:"log_level"`
	Message         string         `json:"message"`
	StackTrace      string         `json:"stack_trace,omitempty"`
	Summary         string         `json:"summary"`
	ErrorCode       string         `json:"error_code"`
	Status          ErrorLogStatus `json:"status"`
	RepeatCount     int64          `json:"repeat_count"`
	FirstOccurredAt time.Time      `json:"first_occurred_at"`
	LastOccurredAt  time.Time      `json:"last_occurred_at"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string         `json:"acknowledged_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HostOccurrence tracks one host affected by an incident key.
type HostOccurrence struct {
	LogHash             string    `json:"log_hash"`
	ServiceName         string    `json:"service_name"`
	HostName            string    `json:"host_name"`
	IP                  string    `json:"ip,omitempty"`
	FirstOccurrenceTime time.Time `json:"first_occurrence_time"`
	LastOccurrenceTime  time.Time `json:"last_occurrence_time"`
	RepeatCount         int64     `json:"repeat_count"`
}

// Occurrence is the input to the aggregation upsert: one event already
// fingerprinted and enriched.
type Occurrence struct {
	LogHash     string
	ServiceName string
	HostName    string
	IP          string
	LogLevel    string
	Message     string
	StackTrace  string
	Summary     string
	ErrorCode   string
	OccurredAt  time.Time
}

// UpsertResult reports what a single aggregation upsert did.
type UpsertResult struct {
	IsNewIncident     bool
	IsNewHost         bool
	RepeatCount       int64
	ImpactedHostCount int64
	Status            ErrorLogStatus
	Summary           string
	ErrorCode         string
}
