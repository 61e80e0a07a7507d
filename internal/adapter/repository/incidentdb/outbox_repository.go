package incidentdb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// OutboxRepository implements domain.OutboxRepository.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// FindDue returns undelivered entries whose retry time has come, oldest first.
func (r *OutboxRepository) FindDue(ctx context.Context, now time.Time, limit, maxAttempts int) ([]domain.OutboxEntry, error) {
	var rows []outboxRow
	err := r.db.WithContext(ctx).
		Where("status IN ? AND attempt_count < ?", undeliveredStatuses(), maxAttempts).
		Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now.UTC()).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due outbox entries: %w", err)
	}
	out := make([]domain.OutboxEntry, len(rows))
	for i, row := range rows {
		out[i] = outboxFromRow(row)
	}
	return out, nil
}

func (r *OutboxRepository) MarkSucceeded(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	return r.update(ctx, id, map[string]any{
		"status":        string(domain.OutboxSuccess),
		"processed_at":  at,
		"next_retry_at": nil,
		"last_error":    "",
		"updated_at":    at,
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextRetryAt time.Time, reason string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"status":        string(domain.OutboxFailed),
		"attempt_count": attempts,
		"next_retry_at": nextRetryAt.UTC(),
		"last_error":    reason,
		"updated_at":    at.UTC(),
	})
}

func (r *OutboxRepository) update(ctx context.Context, id int64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update outbox entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
