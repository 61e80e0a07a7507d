package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/fingerprint"
)

func TestProcessEventsUseCase_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Payment connId variants share one key", func(t *testing.T) {
		p := newPipeline(t)
		p.enqueue(t,
			paymentEvent("host-a", "Connection timed out after 3000ms (connId=1001)"),
			paymentEvent("host-a", "Connection timed out after 5120ms (connId=2099)"),
		)

		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		assert.Equal(t, 1, p.errorLogs.Len())
		key := fingerprint.Fingerprint("payment-api", "Connection timed out after 3000ms (connId=1001)", "")
		rec, err := p.errorLogs.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.EqualValues(t, 2, rec.RepeatCount)

		sent := p.notifier.Notifications()
		require.Len(t, sent, 1)
		assert.Equal(t, "New incident", sent[0].Title)
		assert.Equal(t, key, sent[0].LogHash)
	})

	t.Run("Empty queue ends the batch", func(t *testing.T) {
		p := newPipeline(t)
		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Batch size bounds one pass", func(t *testing.T) {
		p := newPipeline(t)
		for i := 0; i < 60; i++ {
			p.enqueue(t, paymentEvent("host-a", "Connection timed out after 3000ms"))
		}
		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, n)
		assert.Equal(t, 10, p.queue.Len())
	})

	t.Run("Undecodable payload goes to the DLQ", func(t *testing.T) {
		p := newPipeline(t)
		p.queue.Items = append(p.queue.Items, []byte("not json"), []byte(`{"message":"no service here"}`))
		p.enqueue(t, paymentEvent("host-a", "Connection timed out after 3000ms"))

		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		require.Len(t, p.queue.DeadLetters, 2)
		assert.Equal(t, "not json", string(p.queue.DeadLetters[0]))
		assert.Equal(t, 1, p.errorLogs.Len())
	})

	t.Run("Store failure dead-letters and continues", func(t *testing.T) {
		p := newPipeline(t)
		p.errorLogs.UpsertErr = errors.New("database is down")
		p.enqueue(t,
			paymentEvent("host-a", "Connection timed out after 3000ms"),
			paymentEvent("host-b", "Connection timed out after 3000ms"),
		)

		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, p.queue.DeadLetters, 2)
		assert.Empty(t, p.notifier.Notifications())
	})

	t.Run("DLQ failure does not stop the batch", func(t *testing.T) {
		p := newPipeline(t)
		p.errorLogs.UpsertErr = errors.New("database is down")
		p.queue.DeadLetterErr = errors.New("redis is down")
		p.enqueue(t,
			paymentEvent("host-a", "Connection timed out after 3000ms"),
			paymentEvent("host-b", "Connection timed out after 3000ms"),
		)

		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, p.errorLogs.Upserts)
	})

	t.Run("Queue read error is returned", func(t *testing.T) {
		p := newPipeline(t)
		p.queue.PopErr = errors.New("connection reset")
		_, err := p.consumer.ProcessBatch(ctx)
		assert.Error(t, err)
	})

	t.Run("Ignored marker suppresses before aggregation", func(t *testing.T) {
		p := newPipeline(t)
		ev := paymentEvent("host-a", "Connection timed out after 3000ms")
		key := fingerprint.Fingerprint(ev.ServiceName, ev.Message, "")
		p.ignored.Keys = map[string]bool{key: true}
		p.enqueue(t, ev)

		n, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 0, p.errorLogs.Upserts)
		assert.Empty(t, p.notifier.Notifications())
		assert.Empty(t, p.queue.DeadLetters)
	})

	t.Run("Ignored incident keeps counts unchanged", func(t *testing.T) {
		p := newPipeline(t)
		ev := paymentEvent("host-a", "Connection timed out after 3000ms")
		key := fingerprint.Fingerprint(ev.ServiceName, ev.Message, "")
		p.incidents.Put(domain.Incident{LogHash: key, ServiceName: ev.ServiceName, Status: domain.IncidentIgnored, RepeatCount: 4, LastOccurredAt: testStart.Add(-time.Hour)})

		ev.OccurredAt = testStart
		p.enqueue(t, ev)
		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, p.errorLogs.Upserts)
		inc, err := p.incidents.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.EqualValues(t, 4, inc.RepeatCount)
		assert.True(t, inc.LastOccurredAt.Equal(testStart))
		assert.Empty(t, p.notifier.Notifications())
	})

	t.Run("Non-collected levels are skipped", func(t *testing.T) {
		p := newPipeline(t)
		ev := paymentEvent("host-a", "cache warmed up in 3000ms")
		ev.LogLevel = "INFO"
		p.enqueue(t, ev)

		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, p.errorLogs.Upserts)
		assert.Empty(t, p.queue.DeadLetters)
	})

	t.Run("Host spread notifies and opens a draft", func(t *testing.T) {
		p := newPipeline(t)
		for _, h := range []string{"host-a", "host-b", "host-c", "host-a"} {
			p.enqueue(t, paymentEvent(h, "Connection timed out after 3000ms"))
		}

		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)

		sent := p.notifier.Notifications()
		require.Len(t, sent, 3)
		assert.Equal(t, "New incident", sent[0].Title)
		assert.Equal(t, "Spread detected", sent[1].Title)
		assert.Equal(t, "Spread detected", sent[2].Title)
		assert.EqualValues(t, 3, sent[2].ImpactedHostCount)

		drafts := p.incidents.Drafts()
		require.Len(t, drafts, 1)
		assert.Equal(t, domain.DraftHostSpread, drafts[0].Reason)
		assert.EqualValues(t, 3, drafts[0].HostCount)
	})

	t.Run("Repeat threshold notifies once", func(t *testing.T) {
		p := newPipeline(t)
		for i := 0; i < 12; i++ {
			p.enqueue(t, paymentEvent("host-a", "Connection timed out after 3000ms"))
		}

		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)

		sent := p.notifier.Notifications()
		require.Len(t, sent, 2)
		assert.Equal(t, "High recurrence warning", sent[1].Title)
		assert.EqualValues(t, 10, sent[1].RepeatCount)
		assert.Contains(t, sent[1].Summary, "(current cumulative: 10)")
	})

	t.Run("Acknowledged records stay quiet", func(t *testing.T) {
		p := newPipeline(t)
		p.enqueue(t, paymentEvent("host-a", "Connection timed out after 3000ms"))
		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)

		key := fingerprint.Fingerprint("payment-api", "Connection timed out after 3000ms", "")
		require.NoError(t, p.errorLogs.Acknowledge(ctx, key, "ops", testStart))

		p.enqueue(t, paymentEvent("host-b", "Connection timed out after 3000ms"))
		_, err = p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Len(t, p.notifier.Notifications(), 1)
	})

	t.Run("Notifier failure does not dead-letter", func(t *testing.T) {
		p := newPipeline(t)
		p.notifier.Err = errors.New("webhook 500")
		p.enqueue(t, paymentEvent("host-a", "Connection timed out after 3000ms"))

		_, err := p.consumer.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Empty(t, p.queue.DeadLetters)
		assert.Equal(t, 1, p.errorLogs.Len())
	})

	t.Run("High recurrence opens a draft", func(t *testing.T) {
		p := newPipeline(t)
		for i := 0; i < 100; i++ {
			p.enqueue(t, paymentEvent("host-a", fmt.Sprintf("Connection timed out after %dms", 3000+i)))
		}
		for p.queue.Len() > 0 {
			_, err := p.consumer.ProcessBatch(ctx)
			require.NoError(t, err)
		}

		drafts := p.incidents.Drafts()
		require.Len(t, drafts, 1)
		assert.Equal(t, domain.DraftHighRecur, drafts[0].Reason)
	})
}

func TestRecordOccurrenceUseCase_IncidentFailureIsBestEffort(t *testing.T) {
	p := newPipeline(t)
	p.incidents.RecordErr = errors.New("sqlite locked")
	ev := paymentEvent("host-a", "Connection timed out after 3000ms")

	out, err := p.recorder.Record(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, out.Result.IsNewIncident)
	assert.Nil(t, out.Incident)
}

func TestRecordOccurrenceUseCase_ReopensOnRecurrence(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	ev := paymentEvent("host-a", "Connection timed out after 3000ms")

	out, err := p.recorder.Record(ctx, ev)
	require.NoError(t, err)
	require.NoError(t, p.errorLogs.Resolve(ctx, out.Key, testStart))
	_, err = p.bridge.UpdateStatus(ctx, out.Key, domain.IncidentResolved)
	require.NoError(t, err)

	out, err = p.recorder.Record(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, domain.ErrorLogNew, out.Result.Status)
	assert.EqualValues(t, 2, out.Result.RepeatCount)
	require.NotNil(t, out.Incident)
	assert.Equal(t, domain.IncidentOpen, out.Incident.Status)
	assert.NotNil(t, out.Incident.ReopenedAt)
}

func TestRecordOccurrenceUseCase_DefaultsHost(t *testing.T) {
	p := newPipeline(t)
	ev := paymentEvent("", "Connection timed out after 3000ms")

	out, err := p.recorder.Record(context.Background(), ev)
	require.NoError(t, err)
	hosts := p.errorLogs.Hosts(out.Key)
	require.Len(t, hosts, 1)
	assert.Equal(t, domain.UnknownHost, hosts[0].HostName)
}
