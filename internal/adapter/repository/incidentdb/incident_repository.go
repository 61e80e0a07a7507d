package incidentdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// IncidentRepository implements domain.IncidentRepository.
type IncidentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewIncidentRepository(db *gorm.DB, logger *slog.Logger) *IncidentRepository {
	return &IncidentRepository{db: db, logger: logger.With("component", "incident_store")}
}

// RecordOccurrence inserts the incident or bumps its counters. RESOLVED and
// CLOSED incidents reopen as OPEN; IGNORED incidents only get their
// lastOccurredAt refreshed.
func (r *IncidentRepository) RecordOccurrence(ctx context.Context, occ domain.Occurrence) (*domain.Incident, error) {
	at := occ.OccurredAt.UTC()
	var out domain.Incident

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row incidentRow
		err := tx.Where("log_hash = ?", occ.LogHash).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = incidentRow{
				LogHash:         occ.LogHash,
				ServiceName:     occ.ServiceName,
				Title:           domain.IncidentTitle(occ.ServiceName, occ.ErrorCode, occ.LogHash),
				Summary:         occ.Summary,
				StackTrace:      occ.StackTrace,
				ErrorCode:       occ.ErrorCode,
				ErrorLevel:      occ.LogLevel,
				Status:          string(domain.IncidentOpen),
				RepeatCount:     1,
				FirstOccurredAt: at,
				LastOccurredAt:  at,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert incident: %w", err)
			}
			out = incidentFromRow(row)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load incident: %w", err)
		}

		inc := incidentFromRow(row)
		if inc.Status == domain.IncidentIgnored {
			if at.After(inc.LastOccurredAt) {
				inc.LastOccurredAt = at
			}
		} else {
			inc.RepeatCount++
			if at.After(inc.LastOccurredAt) {
				inc.LastOccurredAt = at
			}
			if at.Before(inc.FirstOccurredAt) {
				inc.FirstOccurredAt = at
			}
			if inc.Summary == "" {
				inc.Summary = occ.Summary
			}
			if occ.LogLevel != "" {
				inc.ErrorLevel = occ.LogLevel
			}
			if inc.Status == domain.IncidentResolved || inc.Status == domain.IncidentClosed {
				if _, err := inc.Transition(domain.IncidentOpen, at, 0); err != nil {
					return err
				}
				r.logger.Info("Incident reopened", "log_hash", occ.LogHash)
			}
		}

		row = rowFromIncident(inc)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to update incident: %w", err)
		}
		out = incidentFromRow(row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record occurrence %s: %w", occ.LogHash, err)
	}
	return &out, nil
}

// TouchIfIgnored refreshes lastOccurredAt of an IGNORED incident.
func (r *IncidentRepository) TouchIfIgnored(ctx context.Context, logHash string, at time.Time) (bool, error) {
	at = at.UTC()
	res := r.db.WithContext(ctx).Model(&incidentRow{}).
		Where("log_hash = ? AND status = ?", logHash, string(domain.IncidentIgnored)).
		Update("last_occurred_at", gorm.Expr("CASE WHEN last_occurred_at < ? THEN ? ELSE last_occurred_at END", at, at))
	if res.Error != nil {
		return false, fmt.Errorf("failed to touch ignored incident %s: %w", logHash, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *IncidentRepository) FindByKey(ctx context.Context, logHash string) (*domain.Incident, error) {
	var row incidentRow
	err := r.db.WithContext(ctx).Where("log_hash = ?", logHash).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load incident %s: %w", logHash, err)
	}
	inc := incidentFromRow(row)
	return &inc, nil
}

// TransitionStatus applies the status change and, when it crosses the IGNORED
// boundary, enqueues the outbox entry in the same transaction.
func (r *IncidentRepository) TransitionStatus(ctx context.Context, logHash string, next domain.IncidentStatus, now time.Time, grace time.Duration) (*domain.StatusChange, error) {
	now = now.UTC()
	var change domain.StatusChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row incidentRow
		err := tx.Where("log_hash = ?", logHash).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load incident: %w", err)
		}

		inc := incidentFromRow(row)
		prev, err := inc.Transition(next, now, grace)
		if err != nil {
			return err
		}
		change.Previous = prev
		change.Incident = inc
		if prev == next {
			return nil
		}

		row = rowFromIncident(inc)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to save incident: %w", err)
		}
		change.Incident = incidentFromRow(row)

		action, ok := domain.OutboxActionFor(prev, next)
		if !ok {
			return nil
		}
		entry, err := enqueueOutbox(tx, logHash, action, now)
		if err != nil {
			return err
		}
		change.Outbox = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// enqueueOutbox inserts a PENDING entry unless the newest undelivered entry
// for the key already has the same action. An undelivered opposite action is
// marked SUPERSEDED.
func enqueueOutbox(tx *gorm.DB, logHash string, action domain.OutboxAction, now time.Time) (domain.OutboxEntry, error) {
	var last outboxRow
	err := tx.Where("log_hash = ? AND status IN ?", logHash, undeliveredStatuses()).
		Order("id desc").
		First(&last).Error
	switch {
	case err == nil && last.Action == string(action):
		return outboxFromRow(last), nil
	case err == nil:
		if err := tx.Model(&outboxRow{}).Where("id = ?", last.ID).
			Updates(map[string]any{"status": string(domain.OutboxSuperseded), "updated_at": now}).Error; err != nil {
			return domain.OutboxEntry{}, fmt.Errorf("failed to supersede outbox entry %d: %w", last.ID, err)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return domain.OutboxEntry{}, fmt.Errorf("failed to load pending outbox: %w", err)
	}

	row := outboxRow{
		LogHash:   logHash,
		Action:    string(action),
		Status:    string(domain.OutboxPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(&row).Error; err != nil {
		return domain.OutboxEntry{}, fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return outboxFromRow(row), nil
}

func undeliveredStatuses() []string {
	return []string{string(domain.OutboxPending), string(domain.OutboxFailed)}
}

// CloseResolved moves RESOLVED incidents past closeEligibleAt to CLOSED.
func (r *IncidentRepository) CloseResolved(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	var keys []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&incidentRow{}).
			Where("status = ? AND close_eligible_at IS NOT NULL AND close_eligible_at <= ?", string(domain.IncidentResolved), now).
			Order("log_hash").
			Pluck("log_hash", &keys).Error; err != nil {
			return fmt.Errorf("failed to list closable incidents: %w", err)
		}
		if len(keys) == 0 {
			return nil
		}
		return tx.Model(&incidentRow{}).
			Where("log_hash IN ?", keys).
			Updates(map[string]any{
				"status":            string(domain.IncidentClosed),
				"closed_at":         now,
				"close_eligible_at": nil,
				"updated_at":        now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("close resolved incidents: %w", err)
	}
	return keys, nil
}
