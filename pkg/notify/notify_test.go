package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/reminder"
)

func queues(t *testing.T) map[string]Queue {
	t.Helper()
	bq, err := NewBoltQueue(filepath.Join(t.TempDir(), "sub", "queue.db"), 0, logger.Noop())
	require.NoError(t, err)
	return map[string]Queue{
		"bolt":   bq,
		"memory": NewMemoryQueue(),
	}
}

func note(id string, at time.Time) reminder.Notification {
	return reminder.Notification{ID: id, FireAt: at, Title: "t-" + id, Body: "b-" + id}
}

func TestQueueScheduleReplacesSameID(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			h, err := q.Schedule(ctx, note("hike_reminder_1", base))
			require.NoError(t, err)
			assert.Equal(t, reminder.Handle("hike_reminder_1"), h)

			_, err = q.Schedule(ctx, note("hike_reminder_1", base.Add(time.Hour)))
			require.NoError(t, err)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.True(t, pending[0].FireAt.Equal(base.Add(time.Hour)))
		})
	}
}

func TestQueueRejectsEmptyID(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			_, err := q.Schedule(context.Background(), note("", time.Now()))
			assert.ErrorIs(t, err, ErrEmptyID)
		})
	}
}

func TestQueueCancel(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			// Cancelling on an empty queue is a no-op.
			require.NoError(t, q.Cancel(ctx, []string{"nothing"}))

			for _, id := range []string{"a", "b", "c"} {
				_, err := q.Schedule(ctx, note(id, base))
				require.NoError(t, err)
			}
			require.NoError(t, q.Cancel(ctx, []string{"a", "c", "missing"}))

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, "b", pending[0].ID)
		})
	}
}

func TestQueueDue(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			_, _ = q.Schedule(ctx, note("late", base.Add(2*time.Hour)))
			_, _ = q.Schedule(ctx, note("second", base.Add(time.Hour)))
			_, _ = q.Schedule(ctx, note("first", base))

			due, err := q.Due(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			require.Len(t, due, 2)
			assert.Equal(t, "first", due[0].ID)
			assert.Equal(t, "second", due[1].ID)

			again, err := q.Due(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.Empty(t, again)

			pending, err := q.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, "late", pending[0].ID)
		})
	}
}

func TestBoltQueueSharedByPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	writer, err := NewBoltQueue(path, 0, logger.Noop())
	require.NoError(t, err)
	_, err = writer.Schedule(ctx, note("motivation_reminder_1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	reader, err := NewBoltQueue(path, 0, logger.Noop())
	require.NoError(t, err)
	pending, err := reader.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "motivation_reminder_1", pending[0].ID)
}

func TestNewBoltQueueEmptyPath(t *testing.T) {
	_, err := NewBoltQueue("", 0, logger.Noop())
	assert.ErrorIs(t, err, ErrQueuePath)
}

func TestQueueWithScheduler(t *testing.T) {
	t0 := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()

	s := reminder.New(q, reminder.Config{
		HikeEnabled:  true,
		HikeInterval: 30 * time.Minute,
		HikeCount:    4,
		Location:     time.UTC,
		Messages:     []string{"keep going"},
	}, reminder.Options{Clock: clock.NewFake(t0)}, logger.Noop())
	defer s.Close()

	s.OnSessionStarted(t0)
	s.Wait()

	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	s.CancelAllInProgressReminders()
	s.Wait()

	pending, err = q.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// mockSink records delivered notifications.
type mockSink struct {
	mu        sync.Mutex
	delivered []reminder.Notification
	err       error
}

func (m *mockSink) Deliver(ctx context.Context, n reminder.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, n)
	return m.err
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

func TestRunnerRunOnce(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	clk := clock.NewFake(base)

	q := NewMemoryQueue()
	_, _ = q.Schedule(ctx, note("now", base))
	_, _ = q.Schedule(ctx, note("later", base.Add(time.Hour)))

	failing := &mockSink{err: errors.New("offline")}
	ok := &mockSink{}
	r := NewRunner(q, []Sink{failing, ok}, clk, time.Minute, logger.Noop())

	assert.Equal(t, 1, r.RunOnce(ctx))
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())

	assert.Equal(t, 0, r.RunOnce(ctx))

	clk.Advance(time.Hour)
	assert.Equal(t, 1, r.RunOnce(ctx))
	assert.Equal(t, 2, ok.count())
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clk := clock.NewFake(base)

	q := NewMemoryQueue()
	_, _ = q.Schedule(context.Background(), note("soon", base.Add(time.Minute)))

	sink := &mockSink{}
	r := NewRunner(q, []Sink{sink}, clk, time.Minute, logger.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return clk.Tickers() == 1 }, time.Second, time.Millisecond)
	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestWebhookSink(t *testing.T) {
	var (
		mu      sync.Mutex
		payload WebhookPayload
		ctype   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		ctype = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	at := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Deliver(context.Background(), note("motivation_reminder_1", at)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "application/json", ctype)
	assert.Equal(t, "reminder", payload.Event)
	assert.Equal(t, "motivation_reminder_1", payload.ID)
	assert.Equal(t, "b-motivation_reminder_1", payload.Message)
	assert.Equal(t, "2026-03-05T10:00:00Z", payload.FireAt)
	assert.NotEmpty(t, payload.Timestamp)
}

func TestWebhookSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Deliver(context.Background(), note("x", time.Now()))
	assert.ErrorIs(t, err, ErrWebhookStatus)
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, NewLogSink(logger.Noop()).Deliver(context.Background(), note("x", time.Now())))
}
