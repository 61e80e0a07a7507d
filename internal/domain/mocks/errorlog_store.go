package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// ErrorLogStore is an in-memory domain.ErrorLogRepository with the same upsert
// semantics as the SQL implementation. One mutex makes each upsert atomic.
type ErrorLogStore struct {
	mu        sync.Mutex
	records   map[string]*domain.ErrorLogRecord
	hosts     map[string]map[string]*domain.HostOccurrence
	nextID    int64
	UpsertErr error
	MarkErr   error
	Upserts   int
}

func NewErrorLogStore() *ErrorLogStore {
	return &ErrorLogStore{
		records: make(map[string]*domain.ErrorLogRecord),
		hosts:   make(map[string]map[string]*domain.HostOccurrence),
	}
}

func (s *ErrorLogStore) UpsertOccurrence(ctx context.Context, occ domain.Occurrence) (domain.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Upserts++
	if s.UpsertErr != nil {
		return domain.UpsertResult{}, s.UpsertErr
	}

	at := occ.OccurredAt
	byHost, ok := s.hosts[occ.LogHash]
	if !ok {
		byHost = make(map[string]*domain.HostOccurrence)
		s.hosts[occ.LogHash] = byHost
	}
	h, ok := byHost[occ.HostName]
	isNewHost := !ok
	if isNewHost {
		h = &domain.HostOccurrence{
			LogHash:             occ.LogHash,
			ServiceName:         occ.ServiceName,
			HostName:            occ.HostName,
			IP:                  occ.IP,
			FirstOccurrenceTime: at,
			LastOccurrenceTime:  at,
		}
		byHost[occ.HostName] = h
	}
	h.RepeatCount++
	h.FirstOccurrenceTime = minTime(h.FirstOccurrenceTime, at)
	h.LastOccurrenceTime = maxTime(h.LastOccurrenceTime, at)

	rec, ok := s.records[occ.LogHash]
	isNew := !ok
	now := time.Now().UTC()
	if isNew {
		s.nextID++
		rec = &domain.ErrorLogRecord{
			ID:              s.nextID,
			LogHash:         occ.LogHash,
			ServiceName:     occ.ServiceName,
			Message:         occ.Message,
			StackTrace:      occ.StackTrace,
			Summary:         occ.Summary,
			ErrorCode:       occ.ErrorCode,
			Status:          domain.ErrorLogNew,
			FirstOccurredAt: at,
			LastOccurredAt:  at,
			CreatedAt:       now,
		}
		s.records[occ.LogHash] = rec
	}
	rec.RepeatCount++
	rec.HostName = occ.HostName
	rec.LogLevel = occ.LogLevel
	rec.FirstOccurredAt = minTime(rec.FirstOccurredAt, at)
	rec.LastOccurredAt = maxTime(rec.LastOccurredAt, at)
	rec.UpdatedAt = now
	if rec.Status == domain.ErrorLogResolved {
		rec.Status = domain.ErrorLogNew
		rec.ResolvedAt = nil
	}

	return domain.UpsertResult{
		IsNewIncident:     isNew,
		IsNewHost:         isNewHost,
		RepeatCount:       rec.RepeatCount,
		ImpactedHostCount: int64(len(byHost)),
		Status:            rec.Status,
		Summary:           rec.Summary,
		ErrorCode:         rec.ErrorCode,
	}, nil
}

func (s *ErrorLogStore) FindByKey(ctx context.Context, logHash string) (*domain.ErrorLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[logHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *ErrorLogStore) MarkIgnored(ctx context.Context, logHash string) error {
	return s.setStatus(logHash, false, func(r *domain.ErrorLogRecord) { r.Status = domain.ErrorLogIgnored })
}

func (s *ErrorLogStore) UnmarkIgnored(ctx context.Context, logHash string) error {
	return s.setStatus(logHash, false, func(r *domain.ErrorLogRecord) {
		if r.Status == domain.ErrorLogIgnored {
			r.Status = domain.ErrorLogNew
		}
	})
}

func (s *ErrorLogStore) Acknowledge(ctx context.Context, logHash, by string, at time.Time) error {
	return s.setStatus(logHash, true, func(r *domain.ErrorLogRecord) {
		r.Status = domain.ErrorLogAcknowledged
		r.AcknowledgedAt = &at
		r.AcknowledgedBy = by
	})
}

func (s *ErrorLogStore) Resolve(ctx context.Context, logHash string, at time.Time) error {
	return s.setStatus(logHash, true, func(r *domain.ErrorLogRecord) {
		r.Status = domain.ErrorLogResolved
		r.ResolvedAt = &at
	})
}

func (s *ErrorLogStore) CountHostsByKeys(ctx context.Context, logHashes []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	for _, k := range logHashes {
		if n := len(s.hosts[k]); n > 0 {
			out[k] = int64(n)
		}
	}
	return out, nil
}

// Hosts returns the host rows for a key.
func (s *ErrorLogStore) Hosts(logHash string) []domain.HostOccurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HostOccurrence, 0, len(s.hosts[logHash]))
	for _, h := range s.hosts[logHash] {
		out = append(out, *h)
	}
	return out
}

// Len returns the number of distinct records.
func (s *ErrorLogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *ErrorLogStore) setStatus(logHash string, mustExist bool, fn func(*domain.ErrorLogRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	rec, ok := s.records[logHash]
	if !ok {
		if mustExist {
			return domain.ErrNotFound
		}
		return nil
	}
	fn(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
