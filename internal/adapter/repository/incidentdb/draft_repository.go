package incidentdb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// DraftRepository implements domain.DraftRepository.
type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// CreateIfAbsent inserts the draft; an existing draft for the key wins.
func (r *DraftRepository) CreateIfAbsent(ctx context.Context, d domain.Draft) (bool, error) {
	row := draftRow{
		LogHash:        d.LogHash,
		Reason:         string(d.Reason),
		Status:         string(d.Status),
		Title:          d.Title,
		Content:        d.Content,
		HostCount:      d.HostCount,
		RepeatCount:    d.RepeatCount,
		CreatedAt:      d.CreatedAt.UTC(),
		LastActivityAt: d.LastActivityAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "log_hash"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create draft for %s: %w", d.LogHash, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteStale removes DRAFT-status drafts untouched since cutoff.
func (r *DraftRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND last_activity_at < ?", string(domain.DraftOpen), cutoff, cutoff).
		Delete(&draftRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FindDraft loads the draft for logHash.
func (r *DraftRepository) FindDraft(ctx context.Context, logHash string) (*domain.Draft, error) {
	var row draftRow
	err := r.db.WithContext(ctx).Where("log_hash = ?", logHash).Limit(1).Find(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load draft %s: %w", logHash, err)
	}
	if row.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &domain.Draft{
		ID:             int64(row.ID),
		LogHash:        row.LogHash,
		Reason:         domain.DraftReason(row.Reason),
		Status:         domain.DraftStatus(row.Status),
		Title:          row.Title,
		Content:        row.Content,
		HostCount:      row.HostCount,
		RepeatCount:    row.RepeatCount,
		CreatedAt:      row.CreatedAt,
		LastActivityAt: row.LastActivityAt,
	}, nil
}
