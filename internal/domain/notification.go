package domain

import "fmt"

// Notification is a chat alert about an incident.
type Notification struct {
	Title             string `json:"title"`
	ServiceName       string `json:"service_name"`
	Summary           string `json:"summary"`
	ErrorCode         string `json:"error_code,omitempty"`
	LogHash           string `json:"log_hash"`
	RepeatCount       int64  `json:"repeat_count"`
	ImpactedHostCount int64  `json:"impacted_host_count"`
}

const (
	titleNewIncident    = "New incident"
	titleSpreadDetected = "Spread detected"
	titleHighRecurrence = "High recurrence warning"
)

// ShouldNotify applies the alerting policy to an upsert result: new incident,
// new host, or the repeat count reaching threshold. Acknowledged records stay
// quiet.
func ShouldNotify(r UpsertResult, threshold int64) bool {
	if r.Status == ErrorLogAcknowledged {
		return false
	}
	return r.IsNewIncident || r.IsNewHost || (threshold > 0 && r.RepeatCount == threshold)
}

// NewNotification builds the alert for an upsert result.
func NewNotification(serviceName, logHash string, r UpsertResult) Notification {
	title := titleHighRecurrence
	switch {
	case r.IsNewIncident:
		title = titleNewIncident
	case r.IsNewHost:
		title = titleSpreadDetected
	}
	return Notification{
		Title:             title,
		ServiceName:       serviceName,
		Summary:           fmt.Sprintf("%s (current cumulative: %d)", r.Summary, r.RepeatCount),
		ErrorCode:         r.ErrorCode,
		LogHash:           logHash,
		RepeatCount:       r.RepeatCount,
		ImpactedHostCount: r.ImpactedHostCount,
	}
}
