// Package notify delivers scheduled reminders.
//
// A Queue holds pending notifications keyed by their stable id, so
// scheduling an id that is already pending replaces it. The daemon's Runner
// pops due notifications and hands them to sinks (log, webhook).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/reminder"
)

var pendingBucket = []byte("pending")

// Queue is a reminder.Dispatcher that also reports due notifications.
type Queue interface {
	reminder.Dispatcher

	// Pending returns every pending notification ordered by fire time.
	Pending(ctx context.Context) ([]reminder.Notification, error)

	// Due removes and returns notifications whose fire time is at or before now.
	Due(ctx context.Context, now time.Time) ([]reminder.Notification, error)
}

// BoltQueue keeps pending notifications in a bbolt file.
//
// The file is opened per operation so the short-lived CLI and the long
// running daemon can share it without holding bbolt's exclusive lock.
type BoltQueue struct {
	path    string
	timeout time.Duration
	logger  logger.Logger
}

// NewBoltQueue creates a queue backed by the bbolt file at path.
//
// Parameters:
//   - path: Queue database file; parent directories are created on first use
//   - timeout: How long to wait for the file lock (default: 1 second)
//   - log: Logger instance
func NewBoltQueue(path string, timeout time.Duration, log logger.Logger) (*BoltQueue, error) {
	if path == "" {
		return nil, ErrQueuePath
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &BoltQueue{
		path:    path,
		timeout: timeout,
		logger:  log.Component("notify"),
	}, nil
}

// Path returns the queue file path.
func (q *BoltQueue) Path() string {
	return q.path
}

// withDB opens the queue file, runs fn and closes it again.
func (q *BoltQueue) withDB(fn func(db *bolt.DB) error) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0700); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := bolt.Open(q.path, 0600, &bolt.Options{Timeout: q.timeout})
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			q.logger.Warn("failed to close queue", "error", cerr)
		}
	}()

	return fn(db)
}

// Schedule implements reminder.Dispatcher.Schedule.
func (q *BoltQueue) Schedule(ctx context.Context, n reminder.Notification) (reminder.Handle, error) {
	if n.ID == "" {
		return "", ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = q.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(pendingBucket)
			if err != nil {
				return err
			}
			return b.Put([]byte(n.ID), data)
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to schedule %s: %w", n.ID, err)
	}

	q.logger.Debug("notification scheduled", "id", n.ID, "fire_at", n.FireAt)
	return reminder.Handle(n.ID), nil
}

// Cancel implements reminder.Dispatcher.Cancel.
func (q *BoltQueue) Cancel(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return q.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(pendingBucket)
			if b == nil {
				return nil
			}
			for _, id := range ids {
				if err := b.Delete([]byte(id)); err != nil {
					return fmt.Errorf("failed to cancel %s: %w", id, err)
				}
			}
			return nil
		})
	})
}

// Pending implements Queue.Pending.
func (q *BoltQueue) Pending(ctx context.Context) ([]reminder.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []reminder.Notification
	err := q.withDB(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(pendingBucket)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				var n reminder.Notification
				if err := json.Unmarshal(v, &n); err != nil {
					q.logger.Warn("skipping corrupt notification", "id", string(k), "error", err)
					return nil
				}
				out = append(out, n)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	sortByFireTime(out)
	return out, nil
}

// Due implements Queue.Due.
func (q *BoltQueue) Due(ctx context.Context, now time.Time) ([]reminder.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var due []reminder.Notification
	err := q.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(pendingBucket)
			if b == nil {
				return nil
			}

			var keys [][]byte
			err := b.ForEach(func(k, v []byte) error {
				var n reminder.Notification
				if err := json.Unmarshal(v, &n); err != nil {
					q.logger.Warn("dropping corrupt notification", "id", string(k), "error", err)
					keys = append(keys, append([]byte(nil), k...))
					return nil
				}
				if !n.FireAt.After(now) {
					due = append(due, n)
					keys = append(keys, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop due notifications: %w", err)
	}

	sortByFireTime(due)
	return due, nil
}

func sortByFireTime(ns []reminder.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].FireAt.Equal(ns[j].FireAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].FireAt.Before(ns[j].FireAt)
	})
}
