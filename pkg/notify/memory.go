package notify

import (
	"context"
	"sync"
	"time"

	"github.com/0xmhha/hikelog/pkg/reminder"
)

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string]reminder.Notification
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string]reminder.Notification)}
}

// Schedule implements reminder.Dispatcher.Schedule.
func (q *MemoryQueue) Schedule(ctx context.Context, n reminder.Notification) (reminder.Handle, error) {
	if n.ID == "" {
		return "", ErrEmptyID
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[n.ID] = n
	return reminder.Handle(n.ID), nil
}

// Cancel implements reminder.Dispatcher.Cancel.
func (q *MemoryQueue) Cancel(ctx context.Context, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		delete(q.pending, id)
	}
	return nil
}

// Pending implements Queue.Pending.
func (q *MemoryQueue) Pending(ctx context.Context) ([]reminder.Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]reminder.Notification, 0, len(q.pending))
	for _, n := range q.pending {
		out = append(out, n)
	}
	sortByFireTime(out)
	return out, nil
}

// Due implements Queue.Due.
func (q *MemoryQueue) Due(ctx context.Context, now time.Time) ([]reminder.Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []reminder.Notification
	for id, n := range q.pending {
		if !n.FireAt.After(now) {
			due = append(due, n)
			delete(q.pending, id)
		}
	}
	sortByFireTime(due)
	return due, nil
}
