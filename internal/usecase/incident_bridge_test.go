package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
)

// seed records one occurrence and returns its key.
func (p *pipeline) seed(t *testing.T) string {
	t.Helper()
	out, err := p.recorder.Record(context.Background(), paymentEvent("host-a", "Connection timed out after 3000ms"))
	require.NoError(t, err)
	return out.Key
}

func TestIncidentBridge_IgnoreRoundTrip(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)

	change, err := p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	require.NoError(t, err)
	require.NotNil(t, change.Outbox)
	assert.Equal(t, domain.OutboxIgnore, change.Outbox.Action)
	assert.Equal(t, domain.IncidentOpen, change.Previous)

	// Repeating the same status does not enqueue again.
	change, err = p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	require.NoError(t, err)
	assert.Nil(t, change.Outbox)
	require.Len(t, p.incidents.Outbox(), 1)

	n, err := p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := p.errorLogs.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorLogIgnored, rec.Status)
	ignored, _ := p.ignored.IsIgnored(ctx, key)
	assert.True(t, ignored)
	assert.Equal(t, domain.OutboxSuccess, p.incidents.Outbox()[0].Status)

	_, err = p.bridge.UpdateStatus(ctx, key, domain.IncidentInProgress)
	require.NoError(t, err)
	n, err = p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err = p.errorLogs.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorLogNew, rec.Status)
	ignored, _ = p.ignored.IsIgnored(ctx, key)
	assert.False(t, ignored)

	entries := p.incidents.Outbox()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OutboxIgnore, entries[0].Action)
	assert.Equal(t, domain.OutboxUnignore, entries[1].Action)

	// Nothing left to deliver.
	n, err = p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIncidentBridge_UnignoreSupersedesUndelivered(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)

	_, err := p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	require.NoError(t, err)
	_, err = p.bridge.UpdateStatus(ctx, key, domain.IncidentOpen)
	require.NoError(t, err)

	entries := p.incidents.Outbox()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.OutboxSuperseded, entries[0].Status)
	assert.Equal(t, domain.OutboxPending, entries[1].Status)

	_, err = p.outbox.Drain(ctx)
	require.NoError(t, err)
	ignored, _ := p.ignored.IsIgnored(ctx, key)
	assert.False(t, ignored)
}

func TestIncidentBridge_Errors(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)

	_, err := p.bridge.UpdateStatus(ctx, key, "PAUSED")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = p.bridge.UpdateStatus(ctx, "unknown", domain.IncidentIgnored)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p.incidents.TransitionErr = errors.New("sqlite busy")
	_, err = p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	assert.Error(t, err)
	assert.Empty(t, p.incidents.Outbox())
}

func TestIncidentBridge_ResolveAndAutoClose(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)

	change, err := p.bridge.UpdateStatus(ctx, key, domain.IncidentResolved)
	require.NoError(t, err)
	require.NotNil(t, change.Incident.CloseEligibleAt)
	assert.True(t, change.Incident.CloseEligibleAt.Equal(testStart.Add(2*time.Hour)))
	assert.Nil(t, change.Outbox)

	drafts := p.incidents.Drafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.DraftResolved, drafts[0].Reason)
	assert.EqualValues(t, 1, drafts[0].HostCount)

	p.clock.Add(time.Hour)
	n, err := p.lifecycle.AutoClose(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p.clock.Add(time.Hour)
	n, err = p.lifecycle.AutoClose(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inc, err := p.incidents.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentClosed, inc.Status)
	require.NotNil(t, inc.ClosedAt)
	assert.Nil(t, inc.CloseEligibleAt)
}

func TestOutboxDrain_Backoff(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)
	_, err := p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	require.NoError(t, err)

	p.ignored.MarkErr = errors.New("redis down")
	n, err := p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e := p.incidents.Outbox()[0]
	assert.Equal(t, domain.OutboxFailed, e.Status)
	assert.Equal(t, 1, e.AttemptCount)
	assert.Equal(t, "redis down", e.LastError)
	require.NotNil(t, e.NextRetryAt)
	assert.True(t, e.NextRetryAt.Equal(testStart.Add(time.Minute)))

	// Not due yet.
	p.ignored.MarkErr = nil
	p.clock.Add(30 * time.Second)
	n, err = p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p.clock.Add(30 * time.Second)
	n, err = p.outbox.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.OutboxSuccess, p.incidents.Outbox()[0].Status)
}

func TestOutboxDrain_ExhaustedStaysFailed(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	key := p.seed(t)
	_, err := p.bridge.UpdateStatus(ctx, key, domain.IncidentIgnored)
	require.NoError(t, err)

	p.errorLogs.MarkErr = errors.New("postgres down")
	for i := 0; i < 5; i++ {
		_, err := p.outbox.Drain(ctx)
		require.NoError(t, err)
		p.clock.Add(3 * time.Hour)
	}

	e := p.incidents.Outbox()[0]
	assert.Equal(t, domain.OutboxFailed, e.Status)
	assert.Equal(t, 3, e.AttemptCount, "drain stops at max attempts")
}

func TestLifecycle_CleanupDrafts(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	week := 7 * 24 * time.Hour

	p.incidents.PutDraft(domain.Draft{LogHash: "old", Status: domain.DraftOpen, CreatedAt: testStart.Add(-week - time.Hour), LastActivityAt: testStart.Add(-week - time.Hour)})
	p.incidents.PutDraft(domain.Draft{LogHash: "touched", Status: domain.DraftOpen, CreatedAt: testStart.Add(-week - time.Hour), LastActivityAt: testStart.Add(-time.Hour)})
	p.incidents.PutDraft(domain.Draft{LogHash: "editing", Status: domain.DraftInProgress, CreatedAt: testStart.Add(-2 * week), LastActivityAt: testStart.Add(-2 * week)})
	p.incidents.PutDraft(domain.Draft{LogHash: "fresh", Status: domain.DraftOpen, CreatedAt: testStart, LastActivityAt: testStart})

	n, err := p.lifecycle.CleanupDrafts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var keys []string
	for _, d := range p.incidents.Drafts() {
		keys = append(keys, d.LogHash)
	}
	assert.ElementsMatch(t, []string{"touched", "editing", "fresh"}, keys)
}

func TestErrorLogAdmin(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	admin := NewErrorLogAdminUseCase(p.errorLogs, p.clock, slogDiscard())
	key := p.seed(t)

	require.NoError(t, admin.Acknowledge(ctx, key, "ops"))
	rec, err := p.errorLogs.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorLogAcknowledged, rec.Status)
	assert.Equal(t, "ops", rec.AcknowledgedBy)

	require.NoError(t, admin.Resolve(ctx, key))
	rec, err = p.errorLogs.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorLogResolved, rec.Status)

	assert.ErrorIs(t, admin.Acknowledge(ctx, "missing", "ops"), domain.ErrNotFound)
	assert.ErrorIs(t, admin.Resolve(ctx, "missing"), domain.ErrNotFound)
}
