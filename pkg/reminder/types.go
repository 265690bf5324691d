// Package reminder turns hike lifecycle events into a bounded set of local
// notifications with overwrite-not-accumulate semantics.
//
// Notification ids are stable (hike_reminder_<k>, motivation_reminder_1), so
// re-scheduling is cancel-then-schedule and never piles up stale entries.
// Every call returns immediately; the work runs on one worker goroutine and
// dispatcher failures are logged, never returned.
package reminder

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
)

// MaxHikeReminders bounds the in-progress reminder ids. Cancellation sweeps
// the whole range so reminders scheduled by another process are covered.
const MaxHikeReminders = 64

// MotivationID is the id of the post-hike motivation reminder.
const MotivationID = "motivation_reminder_1"

// HikeReminderID returns the id of the k-th in-progress reminder (1-based).
func HikeReminderID(k int) string {
	return fmt.Sprintf("hike_reminder_%d", k)
}

// Notification is one scheduled local notification.
type Notification struct {
	ID     string    `json:"id"`
	FireAt time.Time `json:"fire_at"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
}

// Handle identifies a scheduled notification at the dispatcher.
type Handle string

// Dispatcher delivers notifications at their fire time.
type Dispatcher interface {
	// Schedule registers n, replacing any pending notification with the same id.
	Schedule(ctx context.Context, n Notification) (Handle, error)

	// Cancel removes pending notifications. Unknown ids are ignored.
	Cancel(ctx context.Context, ids []string) error
}

// Config contains scheduling settings.
type Config struct {
	// HikeEnabled turns on in-progress reminders.
	HikeEnabled bool

	// HikeInterval spaces in-progress reminders.
	HikeInterval time.Duration

	// HikeCount is the number of in-progress reminders per hike.
	HikeCount int

	// MotivationEnabled turns on the post-hike reminder.
	MotivationEnabled bool

	// MotivationDays is the number of days after a hike ends.
	MotivationDays int

	// MotivationHour and MotivationMinute give the local fire time.
	MotivationHour   int
	MotivationMinute int

	// Location is the time zone for the motivation time (default: time.Local).
	Location *time.Location

	// Messages is the pool for in-progress reminder bodies.
	Messages []string
}

// Options contains scheduler dependencies.
type Options struct {
	// Clock supplies "now" for the never-in-the-past rule (default: clock.Real).
	Clock clock.Clock

	// Rand shuffles the message pool (default: seeded from the clock).
	Rand *rand.Rand

	// Timeout bounds each dispatcher call (default: 10 seconds).
	Timeout time.Duration
}
