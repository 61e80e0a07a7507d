// Package incidentdb is the incident store: incidents, the cross-store outbox
// and system drafts, kept in one SQLite database through gorm.
package incidentdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

type incidentRow struct {
	ID              uint   `gorm:"primaryKey"`
	LogHash         string `gorm:"uniqueIndex;size:64"`
	ServiceName     string `gorm:"index;size:255"`
	Title           string `gorm:"size:512"`
	Summary         string `gorm:"type:text"`
	StackTrace      string `gorm:"type:text"`
	ErrorCode       string `gorm:"size:64"`
	ErrorLevel      string `gorm:"size:32"`
	Status          string `gorm:"index;size:16"`
	RepeatCount     int64
	FirstOccurredAt time.Time
	LastOccurredAt  time.Time `gorm:"index"`
	ResolvedAt      *time.Time
	CloseEligibleAt *time.Time `gorm:"index"`
	ClosedAt        *time.Time
	ReopenedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (incidentRow) TableName() string { return "incidents" }

type outboxRow struct {
	ID           uint   `gorm:"primaryKey"`
	LogHash      string `gorm:"index:idx_outbox_hash_status;size:64"`
	Action       string `gorm:"size:16"`
	Status       string `gorm:"index:idx_outbox_hash_status;index;size:16"`
	AttemptCount int
	NextRetryAt  *time.Time `gorm:"index"`
	LastError    string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"index"`
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

func (outboxRow) TableName() string { return "incident_outbox" }

type draftRow struct {
	ID             uint   `gorm:"primaryKey"`
	LogHash        string `gorm:"uniqueIndex;size:64"`
	Reason         string `gorm:"size:16"`
	Status         string `gorm:"index;size:16"`
	Title          string `gorm:"size:512"`
	Content        string `gorm:"type:text"`
	HostCount      int64
	RepeatCount    int64
	CreatedAt      time.Time `gorm:"index"`
	LastActivityAt time.Time
}

func (draftRow) TableName() string { return "kb_drafts" }

// Open opens (creating if needed) the SQLite file at path and migrates the
// schema. All access goes through one connection so transactions serialize.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open incident store %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access incident store pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&incidentRow{}, &outboxRow{}, &draftRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate incident store: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close releases the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func incidentFromRow(r incidentRow) domain.Incident {
	return domain.Incident{
		ID:              int64(r.ID),
		LogHash:         r.LogHash,
		ServiceName:     r.ServiceName,
		Title:           r.Title,
		Summary:         r.Summary,
		StackTrace:      r.StackTrace,
		ErrorCode:       r.ErrorCode,
		ErrorLevel:      r.ErrorLevel,
		Status:          domain.IncidentStatus(r.Status),
		RepeatCount:     r.RepeatCount,
		FirstOccurredAt: r.FirstOccurredAt,
		LastOccurredAt:  r.LastOccurredAt,
		ResolvedAt:      r.ResolvedAt,
		CloseEligibleAt: r.CloseEligibleAt,
		ClosedAt:        r.ClosedAt,
		ReopenedAt:      r.ReopenedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func rowFromIncident(i domain.Incident) incidentRow {
	return incidentRow{
		ID:              uint(i.ID),
		LogHash:         i.LogHash,
		ServiceName:     i.ServiceName,
		Title:           i.Title,
		Summary:         i.Summary,
		StackTrace:      i.StackTrace,
		ErrorCode:       i.ErrorCode,
		ErrorLevel:      i.ErrorLevel,
		Status:          string(i.Status),
		RepeatCount:     i.RepeatCount,
		FirstOccurredAt: i.FirstOccurredAt,
		LastOccurredAt:  i.LastOccurredAt,
		ResolvedAt:      i.ResolvedAt,
		CloseEligibleAt: i.CloseEligibleAt,
		ClosedAt:        i.ClosedAt,
		ReopenedAt:      i.ReopenedAt,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func outboxFromRow(r outboxRow) domain.OutboxEntry {
	return domain.OutboxEntry{
		ID:           int64(r.ID),
		LogHash:      r.LogHash,
		Action:       domain.OutboxAction(r.Action),
		Status:       domain.OutboxStatus(r.Status),
		AttemptCount: r.AttemptCount,
		NextRetryAt:  r.NextRetryAt,
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ProcessedAt:  r.ProcessedAt,
	}
}
