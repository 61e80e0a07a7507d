package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the event-log tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply event-log schema: %w", err)
	}
	return nil
}

// (xmax = 0) is true only for rows inserted by this statement.
const upsertHostQuery = `
	INSERT INTO error_log_hosts (log_hash, service_name, host_name, ip, first_occurrence_time, last_occurrence_time, repeat_count)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $5, 1)
	ON CONFLICT (log_hash, host_name) DO UPDATE SET
		repeat_count = error_log_hosts.repeat_count + 1,
		first_occurrence_time = LEAST(error_log_hosts.first_occurrence_time, EXCLUDED.first_occurrence_time),
		last_occurrence_time = GREATEST(error_log_hosts.last_occurrence_time, EXCLUDED.last_occurrence_time),
		ip = COALESCE(EXCLUDED.ip, error_log_hosts.ip)
	RETURNING (xmax = 0) AS inserted`

const upsertLogQuery = `
	INSERT INTO error_logs (log_hash, service_name, host_name, log_level, message, stack_trace, summary, error_code,
		status, repeat_count, first_occurred_at, last_occurred_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, 'NEW', 1, $9, $9)
	ON CONFLICT (log_hash) DO UPDATE SET
		repeat_count = error_logs.repeat_count + 1,
		host_name = EXCLUDED.host_name,
		log_level = EXCLUDED.log_level,
		first_occurred_at = LEAST(error_logs.first_occurred_at, EXCLUDED.first_occurred_at),
		last_occurred_at = GREATEST(error_logs.last_occurred_at, EXCLUDED.last_occurred_at),
		status = CASE WHEN error_logs.status = 'RESOLVED' THEN 'NEW' ELSE error_logs.status END,
		resolved_at = CASE WHEN error_logs.status = 'RESOLVED' THEN NULL ELSE error_logs.resolved_at END,
		updated_at = now()
	RETURNING (xmax = 0) AS inserted, repeat_count, status, COALESCE(summary, ''), COALESCE(error_code, '')`

const selectLogColumns = `
	SELECT id, log_hash, service_name, host_name, log_level, message, COALESCE(stack_trace, ''),
		COALESCE(summary, ''), COALESCE(error_code, ''), status, repeat_count, first_occurred_at, last_occurred_at,
		acknowledged_at, COALESCE(acknowledged_by, ''), resolved_at, created_at, updated_at
	FROM error_logs`

// ErrorLogRepository implements domain.ErrorLogRepository for PostgreSQL.
type ErrorLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewErrorLogRepository creates a new PostgreSQL event-log repository.
func NewErrorLogRepository(db *sql.DB, logger *slog.Logger) *ErrorLogRepository {
	return &ErrorLogRepository{db: db, logger: logger.With("component", "postgres_errorlog")}
}

// UpsertOccurrence writes the host row and the record row in one transaction,
// then counts the distinct hosts for the key.
func (r *ErrorLogRepository) UpsertOccurrence(ctx context.Context, occ domain.Occurrence) (domain.UpsertResult, error) {
	var res domain.UpsertResult

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	at := occ.OccurredAt.UTC()

	if err := txn.QueryRowContext(ctx, upsertHostQuery,
		occ.LogHash, occ.ServiceName, occ.HostName, occ.IP, at,
	).Scan(&res.IsNewHost); err != nil {
		return res, fmt.Errorf("failed to upsert host occurrence: %w", err)
	}

	var status string
	if err := txn.QueryRowContext(ctx, upsertLogQuery,
		occ.LogHash, occ.ServiceName, occ.HostName, occ.LogLevel, occ.Message, occ.StackTrace,
		occ.Summary, occ.ErrorCode, at,
	).Scan(&res.IsNewIncident, &res.RepeatCount, &status, &res.Summary, &res.ErrorCode); err != nil {
		return res, fmt.Errorf("failed to upsert error log: %w", err)
	}
	res.Status = domain.ErrorLogStatus(status)

	if err := txn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM error_log_hosts WHERE log_hash = $1`, occ.LogHash,
	).Scan(&res.ImpactedHostCount); err != nil {
		return res, fmt.Errorf("failed to count hosts: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return res, nil
}

// FindByKey loads the record for logHash.
func (r *ErrorLogRepository) FindByKey(ctx context.Context, logHash string) (*domain.ErrorLogRecord, error) {
	var (
		rec               domain.ErrorLogRecord
		status            string
		ackAt, resolvedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, selectLogColumns+` WHERE log_hash = $1`, logHash).Scan(
		&rec.ID, &rec.LogHash, &rec.ServiceName, &rec.HostName, &rec.LogLevel, &rec.Message, &rec.StackTrace,
		&rec.Summary, &rec.ErrorCode, &status, &rec.RepeatCount, &rec.FirstOccurredAt, &rec.LastOccurredAt,
		&ackAt, &rec.AcknowledgedBy, &resolvedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load error log %s: %w", logHash, err)
	}
	rec.Status = domain.ErrorLogStatus(status)
	if ackAt.Valid {
		rec.AcknowledgedAt = &ackAt.Time
	}
	if resolvedAt.Valid {
		rec.ResolvedAt = &resolvedAt.Time
	}
	return &rec, nil
}

// MarkIgnored sets the record to IGNORED. Missing records are not an error.
func (r *ErrorLogRepository) MarkIgnored(ctx context.Context, logHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE error_logs SET status = 'IGNORED', updated_at = now() WHERE log_hash = $1`, logHash)
	if err != nil {
		return fmt.Errorf("failed to mark %s ignored: %w", logHash, err)
	}
	return nil
}

// UnmarkIgnored returns an IGNORED record to NEW.
func (r *ErrorLogRepository) UnmarkIgnored(ctx context.Context, logHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE error_logs SET status = 'NEW', updated_at = now() WHERE log_hash = $1 AND status = 'IGNORED'`, logHash)
	if err != nil {
		return fmt.Errorf("failed to unmark %s ignored: %w", logHash, err)
	}
	return nil
}

// Acknowledge marks the record as seen by an operator.
func (r *ErrorLogRepository) Acknowledge(ctx context.Context, logHash, by string, at time.Time) error {
	return r.execOne(ctx, "acknowledge", logHash,
		`UPDATE error_logs SET status = 'ACKNOWLEDGED', acknowledged_at = $2, acknowledged_by = NULLIF($3, ''), updated_at = now()
		 WHERE log_hash = $1`, logHash, at.UTC(), by)
}

// Resolve marks the record RESOLVED. The next occurrence reopens it as NEW.
func (r *ErrorLogRepository) Resolve(ctx context.Context, logHash string, at time.Time) error {
	return r.execOne(ctx, "resolve", logHash,
		`UPDATE error_logs SET status = 'RESOLVED', resolved_at = $2, updated_at = now() WHERE log_hash = $1`,
		logHash, at.UTC())
}

// CountHostsByKeys counts distinct hosts for each of the given keys.
func (r *ErrorLogRepository) CountHostsByKeys(ctx context.Context, logHashes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(logHashes))
	if len(logHashes) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT log_hash, COUNT(*) FROM error_log_hosts WHERE log_hash = ANY($1) GROUP BY log_hash`,
		pq.Array(logHashes))
	if err != nil {
		return nil, fmt.Errorf("failed to count hosts by keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan host count: %w", err)
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *ErrorLogRepository) execOne(ctx context.Context, op, logHash, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, logHash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", op, logHash, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
