package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xmhha/hikelog/pkg/config"
	"github.com/0xmhha/hikelog/pkg/inbox"
	"github.com/0xmhha/hikelog/pkg/logger"
	"github.com/0xmhha/hikelog/pkg/notify"
	"github.com/0xmhha/hikelog/pkg/watcher"
)

// newReconcileCmd creates the reconcile command.
func newReconcileCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Import the sync inbox and re-check the active hike",
		Long: `Import new records from the sync inbox, then clear the active hike if it
no longer exists or is no longer in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cleared, err := a.manager.ReconcileFromStore(ctx)
				if err != nil {
					return err
				}

				res := a.synced
				res.ActiveCleared = res.ActiveCleared || cleared
				printResult(cmd, res)

				if id, ok := a.manager.ActiveSessionID(); ok {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active hike: %s\n", id)
				} else {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No hike in progress")
				}
				return nil
			})
		},
	}
}

func printResult(cmd *cobra.Command, res inbox.Result) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Imported %d file(s): %d upserted, %d deleted, %d already gone\n",
		res.Files, res.Upserted, res.Deleted, res.Missing)
	if res.Stale > 0 {
		_, _ = fmt.Fprintf(out, "Kept %d completed hike(s) over stale in-progress copies\n", res.Stale)
	}
	if res.ActiveCleared {
		_, _ = fmt.Fprintln(out, "Active hike cleared: it was completed or removed elsewhere")
	}
}

// newDaemonCmd creates the daemon command.
func newDaemonCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Deliver reminders and import the sync inbox as it changes",
		Long: `Run in the foreground until interrupted. Due reminders are delivered to the
log and, when configured, to a webhook. Files the sync tool writes into the
inbox are imported as soon as they settle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := newDaemon(cfg, log)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s - press Ctrl+C to stop\n", cfg.Sync.InboxDir)
			return d.Run(ctx)
		},
	}
}

// daemon pairs the reminder runner with the inbox watcher.
type daemon struct {
	cfg     *config.Config
	log     logger.Logger
	runner  *notify.Runner
	watcher watcher.Watcher
}

// newDaemon builds the runner and the watcher from cfg.
func newDaemon(cfg *config.Config, log logger.Logger) (*daemon, error) {
	queue, err := notify.NewBoltQueue(cfg.Reminders.QueuePath, cfg.Storage.Timeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reminder queue: %w", err)
	}

	sinks := []notify.Sink{notify.NewLogSink(log)}
	if cfg.Reminders.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Reminders.WebhookURL))
	}

	w, err := watcher.New(watcher.Config{Debounce: cfg.Sync.Debounce}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize watcher: %w", err)
	}

	return &daemon{
		cfg:     cfg,
		log:     log.Component("daemon"),
		runner:  notify.NewRunner(queue, sinks, nil, cfg.Reminders.PollInterval, log),
		watcher: w,
	}, nil
}

// Run imports the inbox once, then serves until ctx is done or the watcher
// gives up.
func (d *daemon) Run(ctx context.Context) error {
	defer func() {
		if err := d.watcher.Close(); err != nil {
			d.log.Error("failed to close watcher", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.runner.Run(ctx) //nolint:errcheck // returns ctx.Err on shutdown
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	d.importAll(ctx)

	if err := d.watcher.Start(ctx, d.cfg.Sync.InboxDir); err != nil {
		return fmt.Errorf("failed to watch inbox: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping")
			return nil

		case ev, ok := <-d.watcher.Events():
			if !ok {
				return nil
			}
			d.log.Debug("inbox changed", "path", ev.Path, "op", ev.Op.String())
			d.importFile(ctx, ev.Path)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return nil
			}
			if errors.Is(err, watcher.ErrCircuitBreakerOpen) {
				return err
			}
			d.log.Warn("watch error", "error", err)
		}
	}
}

// importAll imports every inbox file.
func (d *daemon) importAll(ctx context.Context) {
	d.withImporter(func(im *inbox.Importer) error {
		_, err := im.ImportDir(ctx, d.cfg.Sync.InboxDir)
		return err
	})
}

// importFile imports new lines of one inbox file. A removed file imports
// nothing but still triggers a reconcile.
func (d *daemon) importFile(ctx context.Context, path string) {
	d.withImporter(func(im *inbox.Importer) error {
		_, err := im.ImportFile(ctx, path)
		return err
	})
}

// withImporter opens the journal for one import so the CLI is not locked
// out of the database between inbox changes.
func (d *daemon) withImporter(fn func(im *inbox.Importer) error) {
	st, _, im, err := openJournal(d.cfg, nil, d.log)
	if err != nil {
		d.log.Error("failed to open journal", "error", err)
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			d.log.Error("failed to close journal", "error", err)
		}
	}()

	if err := fn(im); err != nil {
		d.log.Error("inbox import failed", "error", err)
	}
}
