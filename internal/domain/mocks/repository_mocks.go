package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// MockEventQueue is an in-memory domain.EventQueue.
type MockEventQueue struct {
	mu            sync.Mutex
	Items         [][]byte
	DeadLetters   [][]byte
	PushErr       error
	PopErr        error
	DeadLetterErr error
	Unavailable   bool
	Pushes        int
}

func (m *MockEventQueue) Push(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pushes++
	if m.PushErr != nil {
		return m.PushErr
	}
	m.Items = append(m.Items, payload)
	return nil
}

func (m *MockEventQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PopErr != nil {
		return nil, m.PopErr
	}
	if len(m.Items) == 0 {
		return nil, nil
	}
	p := m.Items[0]
	m.Items = m.Items[1:]
	return p, nil
}

func (m *MockEventQueue) DeadLetter(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadLetterErr != nil {
		return m.DeadLetterErr
	}
	m.DeadLetters = append(m.DeadLetters, payload)
	return nil
}

func (m *MockEventQueue) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Unavailable
}

// Len returns the number of queued payloads.
func (m *MockEventQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Items)
}

// MockIgnoreMarker is an in-memory domain.IgnoreMarker.
type MockIgnoreMarker struct {
	mu        sync.Mutex
	Keys      map[string]bool
	CheckErr  error
	MarkErr   error
	UnmarkErr error
}

func (m *MockIgnoreMarker) IsIgnored(ctx context.Context, logHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	return m.Keys[logHash], nil
}

func (m *MockIgnoreMarker) MarkIgnored(ctx context.Context, logHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	if m.Keys == nil {
		m.Keys = make(map[string]bool)
	}
	m.Keys[logHash] = true
	return nil
}

func (m *MockIgnoreMarker) UnmarkIgnored(ctx context.Context, logHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UnmarkErr != nil {
		return m.UnmarkErr
	}
	delete(m.Keys, logHash)
	return nil
}

// MockQueueAdmin is a canned domain.QueueAdminRepository.
type MockQueueAdmin struct {
	StatsResult domain.QueueStats
	Peeked      []string
	Replayed    int64
	Err         error
}

func (m *MockQueueAdmin) Stats(ctx context.Context) (domain.QueueStats, error) {
	return m.StatsResult, m.Err
}

func (m *MockQueueAdmin) PeekDeadLetters(ctx context.Context, count int64) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if int64(len(m.Peeked)) > count {
		return m.Peeked[:count], nil
	}
	return m.Peeked, nil
}

func (m *MockQueueAdmin) ReplayDeadLetters(ctx context.Context, count int64) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if m.Replayed > count {
		return count, nil
	}
	return m.Replayed, nil
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []domain.Notification
	Err  error
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, n)
	return nil
}

// Notifications returns a copy of what was sent.
func (m *MockNotifier) Notifications() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, len(m.Sent))
	copy(out, m.Sent)
	return out
}
