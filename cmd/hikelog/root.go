package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/hikelog/pkg/config"
	"github.com/0xmhha/hikelog/pkg/display"
	"github.com/0xmhha/hikelog/pkg/inbox"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/notify"
	"github.com/0xmhha/hikelog/pkg/reminder"
	"github.com/0xmhha/hikelog/pkg/session"
	"github.com/0xmhha/hikelog/pkg/store"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
	format     string
	compact    bool
}

// newRootCmd builds the command tree.
func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "hikelog",
		Short:         "Personal hiking journal",
		Long:          "Track one hike at a time, record voice notes on the trail and get reminded to keep walking.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Version = version
	root.SetVersionTemplate("hikelog {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.format, "format", "", "output format (table, json, simple)")
	root.PersistentFlags().BoolVar(&opts.compact, "compact", false, "compact output")

	root.AddCommand(
		newStartCmd(opts),
		newEndCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newRecordCmd(opts),
		newPlayCmd(opts),
		newRecordingsCmd(opts),
		newPhotosCmd(opts),
		newReconcileCmd(opts),
		newStatsCmd(opts),
		newDaemonCmd(opts),
		newConfigCmd(opts),
	)

	return root
}

// app holds the components a command works with.
type app struct {
	cfg       *config.Config
	log       logger.Logger
	store     store.Store
	queue     *notify.BoltQueue
	scheduler *reminder.Scheduler
	manager   session.Manager
	importer  *inbox.Importer

	// synced is the inbox import done while loading.
	synced inbox.Result
}

// loadConfig loads the file named by --config, or searches the default
// locations when none was given.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the application logger from cfg.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// reminderConfig converts the file settings into scheduler settings.
func reminderConfig(rc config.RemindersConfig) (reminder.Config, error) {
	hour, minute, err := rc.MotivationClock()
	if err != nil {
		return reminder.Config{}, err
	}

	return reminder.Config{
		HikeEnabled:       rc.HikeEnabled,
		HikeInterval:      rc.HikeInterval,
		HikeCount:         rc.HikeCount,
		MotivationEnabled: rc.MotivationEnabled,
		MotivationDays:    rc.MotivationDays,
		MotivationHour:    hour,
		MotivationMinute:  minute,
		Location:          time.Local,
		Messages:          rc.Messages,
	}, nil
}

// openJournal opens the store with a session manager and an inbox importer
// on top of it. lifecycle may be nil.
func openJournal(cfg *config.Config, lifecycle session.Lifecycle, log logger.Logger) (store.Store, session.Manager, *inbox.Importer, error) {
	st, err := store.Open(store.Config{
		Driver:  cfg.Storage.Driver,
		DBPath:  cfg.Storage.DBPath,
		Timeout: cfg.Storage.Timeout,
	}, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	mgr, err := session.New(st, session.Config{Lifecycle: lifecycle}, log)
	if err != nil {
		_ = st.Close() //nolint:errcheck // best effort cleanup
		return nil, nil, nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	positions := inbox.NewMemoryPositionStore()
	if bs, ok := st.(store.BoltStore); ok {
		positions, err = inbox.NewBoltPositionStore(bs.DB())
		if err != nil {
			_ = st.Close() //nolint:errcheck // best effort cleanup
			return nil, nil, nil, fmt.Errorf("failed to initialize position store: %w", err)
		}
	}

	importer, err := inbox.NewImporter(st, mgr, inbox.NewReader(positions, log), log)
	if err != nil {
		_ = st.Close() //nolint:errcheck // best effort cleanup
		return nil, nil, nil, err
	}

	return st, mgr, importer, nil
}

// loadApp loads configuration, opens the journal and the reminder queue and
// pulls in anything the sync tool dropped since the last run.
func loadApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg)

	queue, err := notify.NewBoltQueue(cfg.Reminders.QueuePath, cfg.Storage.Timeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reminder queue: %w", err)
	}

	remCfg, err := reminderConfig(cfg.Reminders)
	if err != nil {
		return nil, err
	}
	sched := reminder.New(queue, remCfg, reminder.Options{}, log)

	st, mgr, importer, err := openJournal(cfg, sched, log)
	if err != nil {
		sched.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     st,
		queue:     queue,
		scheduler: sched,
		manager:   mgr,
		importer:  importer,
	}

	a.synced, err = a.importer.ImportDir(ctx, cfg.Sync.InboxDir)
	if err != nil {
		log.Warn("inbox import failed", "dir", cfg.Sync.InboxDir, "error", err)
	}

	return a, nil
}

// Close flushes scheduled reminder work and closes the journal.
func (a *app) Close() {
	a.scheduler.Close()
	if err := a.store.Close(); err != nil {
		a.log.Error("failed to close journal", "error", err)
	}
}

// formatter returns the formatter selected by --format or the config default.
func (a *app) formatter(opts *globalOptions) (display.Formatter, error) {
	name := opts.format
	if name == "" {
		name = a.cfg.Display.DefaultFormat
	}

	format, err := display.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	return display.New(display.Config{
		Format:   format,
		Location: time.Local,
		Compact:  opts.compact,
	}), nil
}

// withApp loads the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// resolveSession expands ref, or picks the active hike when ref is empty.
func (a *app) resolveSession(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		id, ok := a.manager.ActiveSessionID()
		if !ok {
			return "", errNoActiveHike
		}
		return id, nil
	}
	return a.manager.Resolve(ctx, ref)
}
