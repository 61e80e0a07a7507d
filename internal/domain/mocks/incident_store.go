package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// IncidentStore is an in-memory incident store. It implements
// domain.IncidentRepository, domain.OutboxRepository and domain.DraftRepository
// behind one mutex, standing in for the single incident-store transaction.
type IncidentStore struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	outbox    []*domain.OutboxEntry
	drafts    map[string]*domain.Draft
	nextID    int64

	RecordErr     error
	TransitionErr error
	DraftErr      error
	OutboxErr     error
}

func NewIncidentStore() *IncidentStore {
	return &IncidentStore{
		incidents: make(map[string]*domain.Incident),
		drafts:    make(map[string]*domain.Draft),
	}
}

func (s *IncidentStore) RecordOccurrence(ctx context.Context, occ domain.Occurrence) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return nil, s.RecordErr
	}
	at := occ.OccurredAt
	inc, ok := s.incidents[occ.LogHash]
	if !ok {
		s.nextID++
		inc = &domain.Incident{
			ID:              s.nextID,
			LogHash:         occ.LogHash,
			ServiceName:     occ.ServiceName,
			Title:           domain.IncidentTitle(occ.ServiceName, occ.ErrorCode, occ.LogHash),
			StackTrace:      occ.StackTrace,
			ErrorCode:       occ.ErrorCode,
			ErrorLevel:      occ.LogLevel,
			Status:          domain.IncidentOpen,
			FirstOccurredAt: at,
			LastOccurredAt:  at,
			CreatedAt:       at,
		}
		s.incidents[occ.LogHash] = inc
	}
	if inc.Status == domain.IncidentIgnored {
		inc.LastOccurredAt = maxTime(inc.LastOccurredAt, at)
		cp := *inc
		return &cp, nil
	}
	inc.RepeatCount++
	if inc.Summary == "" {
		inc.Summary = occ.Summary
	}
	inc.LastOccurredAt = maxTime(inc.LastOccurredAt, at)
	inc.FirstOccurredAt = minTime(inc.FirstOccurredAt, at)
	if inc.Status == domain.IncidentResolved || inc.Status == domain.IncidentClosed {
		reopened := at
		inc.Status = domain.IncidentOpen
		inc.ResolvedAt = nil
		inc.CloseEligibleAt = nil
		inc.ClosedAt = nil
		inc.ReopenedAt = &reopened
	}
	inc.UpdatedAt = at
	cp := *inc
	return &cp, nil
}

func (s *IncidentStore) TouchIfIgnored(ctx context.Context, logHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[logHash]
	if !ok || inc.Status != domain.IncidentIgnored {
		return false, nil
	}
	inc.LastOccurredAt = maxTime(inc.LastOccurredAt, at)
	return true, nil
}

func (s *IncidentStore) FindByKey(ctx context.Context, logHash string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[logHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inc
	return &cp, nil
}

func (s *IncidentStore) TransitionStatus(ctx context.Context, logHash string, next domain.IncidentStatus, now time.Time, grace time.Duration) (*domain.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TransitionErr != nil {
		return nil, s.TransitionErr
	}
	inc, ok := s.incidents[logHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := *inc
	prev, err := working.Transition(next, now, grace)
	if err != nil {
		return nil, err
	}
	change := &domain.StatusChange{Previous: prev}
	if action, ok := domain.OutboxActionFor(prev, next); ok {
		change.Outbox = s.enqueueLocked(logHash, action, now)
	}
	*inc = working
	change.Incident = working
	return change, nil
}

// enqueueLocked appends an outbox entry unless the newest undelivered entry for
// the key already carries the same action. An undelivered opposite action is
// superseded.
func (s *IncidentStore) enqueueLocked(logHash string, action domain.OutboxAction, now time.Time) *domain.OutboxEntry {
	for i := len(s.outbox) - 1; i >= 0; i-- {
		e := s.outbox[i]
		if e.LogHash != logHash || (e.Status != domain.OutboxPending && e.Status != domain.OutboxFailed) {
			continue
		}
		if e.Action == action {
			cp := *e
			return &cp
		}
		e.Status = domain.OutboxSuperseded
		e.UpdatedAt = now
		break
	}
	s.nextID++
	e := &domain.OutboxEntry{
		ID:        s.nextID,
		LogHash:   logHash,
		Action:    action,
		Status:    domain.OutboxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.outbox = append(s.outbox, e)
	cp := *e
	return &cp
}

func (s *IncidentStore) CloseResolved(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, inc := range s.incidents {
		if inc.Status != domain.IncidentResolved || inc.CloseEligibleAt == nil || inc.CloseEligibleAt.After(now) {
			continue
		}
		closed := now
		inc.Status = domain.IncidentClosed
		inc.ClosedAt = &closed
		inc.CloseEligibleAt = nil
		inc.UpdatedAt = now
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *IncidentStore) FindDue(ctx context.Context, now time.Time, limit, maxAttempts int) ([]domain.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OutboxErr != nil {
		return nil, s.OutboxErr
	}
	var out []domain.OutboxEntry
	for _, e := range s.outbox {
		if e.Status != domain.OutboxPending && e.Status != domain.OutboxFailed {
			continue
		}
		if e.AttemptCount >= maxAttempts {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *IncidentStore) MarkSucceeded(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id)
	if e == nil {
		return domain.ErrNotFound
	}
	e.Status = domain.OutboxSuccess
	e.ProcessedAt = &at
	e.NextRetryAt = nil
	e.UpdatedAt = at
	return nil
}

func (s *IncidentStore) MarkFailed(ctx context.Context, id int64, attempts int, nextRetryAt time.Time, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(id)
	if e == nil {
		return domain.ErrNotFound
	}
	e.Status = domain.OutboxFailed
	e.AttemptCount = attempts
	e.NextRetryAt = &nextRetryAt
	e.LastError = reason
	e.UpdatedAt = at
	return nil
}

func (s *IncidentStore) CreateIfAbsent(ctx context.Context, d domain.Draft) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DraftErr != nil {
		return false, s.DraftErr
	}
	if _, ok := s.drafts[d.LogHash]; ok {
		return false, nil
	}
	s.nextID++
	d.ID = s.nextID
	s.drafts[d.LogHash] = &d
	return true, nil
}

func (s *IncidentStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, d := range s.drafts {
		if d.Status == domain.DraftOpen && d.CreatedAt.Before(cutoff) && d.LastActivityAt.Before(cutoff) {
			delete(s.drafts, k)
			n++
		}
	}
	return n, nil
}

func (s *IncidentStore) FindDraft(ctx context.Context, logHash string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[logHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// Put stores an incident as-is.
func (s *IncidentStore) Put(inc domain.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inc.ID = s.nextID
	s.incidents[inc.LogHash] = &inc
}

// Outbox returns a copy of every outbox entry in insertion order.
func (s *IncidentStore) Outbox() []domain.OutboxEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxEntry, len(s.outbox))
	for i, e := range s.outbox {
		out[i] = *e
	}
	return out
}

// Drafts returns a copy of every stored draft.
func (s *IncidentStore) Drafts() []domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, *d)
	}
	return out
}

// PutDraft stores a draft as-is.
func (s *IncidentStore) PutDraft(d domain.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.LogHash] = &d
}

func (s *IncidentStore) entryLocked(id int64) *domain.OutboxEntry {
	for _, e := range s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}
