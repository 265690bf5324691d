package reminder

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/0xmhha/hikelog/pkg/clock"
	"github.com/0xmhha/hikelog/pkg/logger"
)

// Titles used for scheduled notifications.
const (
	hikeTitle       = "Hike in progress"
	motivationTitle = "Time for a walk?"
	motivationBody  = "It has been a few days since your last hike. The trail is waiting."
)

// Scheduler schedules and cancels reminders on a single worker goroutine.
// It satisfies session.Lifecycle.
type Scheduler struct {
	dispatcher Dispatcher
	clock      clock.Clock
	logger     logger.Logger
	timeout    time.Duration

	mu      sync.Mutex
	config  Config
	rng     *rand.Rand
	handles map[string]Handle
	queue   []func(ctx context.Context)
	closed  bool

	wake    chan struct{}
	pending sync.WaitGroup
	stopped chan struct{}
}

// New creates a scheduler and starts its worker.
//
// Parameters:
//   - d: Notification dispatcher
//   - cfg: Scheduling settings
//   - opts: Clock, random source and call timeout
//   - log: Logger instance
//
// Returns a running Scheduler. Call Close to stop it.
func New(d Dispatcher, cfg Config, opts Options, log logger.Logger) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano())) // #nosec G404 -- message order only
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	s := &Scheduler{
		dispatcher: d,
		clock:      opts.Clock,
		logger:     log.Component("reminder"),
		timeout:    opts.Timeout,
		config:     normalize(cfg),
		rng:        opts.Rand,
		handles:    make(map[string]Handle),
		wake:       make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}

	go s.run()
	return s
}

func normalize(cfg Config) Config {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.HikeCount > MaxHikeReminders {
		cfg.HikeCount = MaxHikeReminders
	}
	cfg.Messages = append([]string(nil), cfg.Messages...)
	return cfg
}

// UpdateConfig replaces the settings used for later events.
func (s *Scheduler) UpdateConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = normalize(cfg)
}

// OnSessionStarted replaces any in-progress reminders with a fresh set
// spaced HikeInterval apart from startedAt.
func (s *Scheduler) OnSessionStarted(startedAt time.Time) {
	s.mu.Lock()
	cfg := s.config
	var messages []string
	if cfg.HikeEnabled && cfg.HikeCount > 0 {
		messages = s.drawMessagesLocked(cfg.HikeCount)
	}
	s.mu.Unlock()

	s.enqueue(func(ctx context.Context) {
		s.cancelHike(ctx)

		if !cfg.HikeEnabled || cfg.HikeCount <= 0 {
			return
		}

		for k := 1; k <= cfg.HikeCount; k++ {
			s.schedule(ctx, Notification{
				ID:     HikeReminderID(k),
				FireAt: startedAt.Add(time.Duration(k) * cfg.HikeInterval),
				Title:  hikeTitle,
				Body:   messages[k-1],
			})
		}

		s.logger.Info("hike reminders scheduled",
			"count", cfg.HikeCount,
			"interval", cfg.HikeInterval)
	})
}

// OnSessionEnded cancels in-progress reminders and schedules the motivation
// reminder for MotivationDays after endedAt, unless that is not in the future.
func (s *Scheduler) OnSessionEnded(endedAt time.Time) {
	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()

	s.enqueue(func(ctx context.Context) {
		s.cancelHike(ctx)
		s.cancel(ctx, []string{MotivationID})

		if !cfg.MotivationEnabled {
			return
		}

		fireAt := MotivationTime(endedAt, cfg)
		if !fireAt.After(s.clock.Now()) {
			s.logger.Debug("motivation reminder skipped, fire time not in the future",
				"fire_at", fireAt)
			return
		}

		s.schedule(ctx, Notification{
			ID:     MotivationID,
			FireAt: fireAt,
			Title:  motivationTitle,
			Body:   motivationBody,
		})

		s.logger.Info("motivation reminder scheduled", "fire_at", fireAt)
	})
}

// CancelAllInProgressReminders cancels every in-progress reminder.
// Safe to call with nothing scheduled.
func (s *Scheduler) CancelAllInProgressReminders() {
	s.enqueue(s.cancelHike)
}

// CancelMotivationReminder cancels the motivation reminder.
// Safe to call with nothing scheduled.
func (s *Scheduler) CancelMotivationReminder() {
	s.enqueue(func(ctx context.Context) {
		s.cancel(ctx, []string{MotivationID})
	})
}

// Scheduled returns the ids this scheduler currently holds handles for.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until all queued work has run.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

// Close drains queued work and stops the worker. Later events are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.stopped
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.signal()
	<-s.stopped
}

// MotivationTime returns the motivation fire time: the configured local
// time on the calendar day MotivationDays after endedAt.
func MotivationTime(endedAt time.Time, cfg Config) time.Time {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	day := endedAt.In(loc).AddDate(0, 0, cfg.MotivationDays)
	return time.Date(day.Year(), day.Month(), day.Day(),
		cfg.MotivationHour, cfg.MotivationMinute, 0, 0, loc)
}

// drawMessagesLocked deals n messages from a freshly shuffled pool, cycling
// through the whole pool before any message repeats.
func (s *Scheduler) drawMessagesLocked(n int) []string {
	pool := append([]string(nil), s.config.Messages...)
	if len(pool) == 0 {
		pool = []string{"How is the hike going?"}
	}
	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	out := make([]string, n)
	for i := range out {
		out[i] = pool[i%len(pool)]
	}
	return out
}

func (s *Scheduler) cancelHike(ctx context.Context) {
	ids := make([]string, MaxHikeReminders)
	for k := 1; k <= MaxHikeReminders; k++ {
		ids[k-1] = HikeReminderID(k)
	}
	s.cancel(ctx, ids)
}

func (s *Scheduler) cancel(ctx context.Context, ids []string) {
	if err := s.dispatcher.Cancel(ctx, ids); err != nil {
		s.logger.Warn("failed to cancel reminders", "count", len(ids), "error", err)
		return
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.handles, id)
	}
	s.mu.Unlock()
}

func (s *Scheduler) schedule(ctx context.Context, n Notification) {
	h, err := s.dispatcher.Schedule(ctx, n)
	if err != nil {
		s.logger.Warn("failed to schedule reminder", "id", n.ID, "error", err)
		return
	}

	s.mu.Lock()
	s.handles[n.ID] = h
	s.mu.Unlock()
}

// enqueue appends work for the worker without blocking.
func (s *Scheduler) enqueue(task func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("scheduler closed, dropping reminder work")
		return
	}
	s.pending.Add(1)
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	for range s.wake {
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return
				}
				break
			}
			task := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.runTask(task)
		}
	}
}

func (s *Scheduler) runTask(task func(ctx context.Context)) {
	defer s.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder task panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	task(ctx)
}
