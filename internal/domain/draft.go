package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// DraftReason records why a draft knowledge article was opened.
type DraftReason string

const (
	DraftHostSpread DraftReason = "HOST_SPREAD"
	DraftHighRecur  DraftReason = "HIGH_RECUR"
	DraftResolved   DraftReason = "RESOLVED"
)

// DraftStatus is the editing state of a draft.
type DraftStatus string

const (
	DraftOpen       DraftStatus = "DRAFT"
	DraftInProgress DraftStatus = "IN_PROGRESS"
	DraftPublished  DraftStatus = "PUBLISHED"
)

// Draft is a system generated knowledge article stub for an incident.
type Draft struct {
	ID             int64       `json:"id"`
	LogHash        string      `json:"log_hash"`
	Reason         DraftReason `json:"reason"`
	Status         DraftStatus `json:"status"`
	Title          string      `json:"title"`
	Content        string      `json:"content"`
	HostCount      int64       `json:"host_count"`
	RepeatCount    int64       `json:"repeat_count"`
	CreatedAt      time.Time   `json:"created_at"`
	LastActivityAt time.Time   `json:"last_activity_at"`
}

const draftSummaryRunes = 40

// NewSystemDraft builds a draft for the incident.
func NewSystemDraft(inc Incident, reason DraftReason, hostCount, repeatCount int64, now time.Time) Draft {
	return Draft{
		LogHash:        inc.LogHash,
		Reason:         reason,
		Status:         DraftOpen,
		Title:          draftTitle(inc),
		Content:        draftContent(inc, reason, hostCount, repeatCount),
		HostCount:      hostCount,
		RepeatCount:    repeatCount,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func draftTitle(inc Incident) string {
	if inc.ErrorCode == "" && inc.Summary == "" {
		return "Incident #" + shortHash(inc.LogHash)
	}
	return fmt.Sprintf("[SYSTEM][%s] %s - %s", inc.ServiceName, inc.ErrorCode, truncateRunes(inc.Summary, draftSummaryRunes))
}

func draftContent(inc Incident, reason DraftReason, hostCount, repeatCount int64) string {
	return fmt.Sprintf("reason: %s\nservice: %s\nerror_code: %s\nimpacted_hosts: %d\nrepeat_count: %d\n\n%s",
		reason, inc.ServiceName, inc.ErrorCode, hostCount, repeatCount, inc.Summary)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
