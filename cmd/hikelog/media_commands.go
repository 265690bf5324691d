package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/hikelog/pkg/capture"
	"github.com/0xmhha/hikelog/pkg/device"
	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/store"
)

var (
	// errNothingRecorded is returned when a capture produced no file.
	errNothingRecorded = errors.New("nothing was recorded")

	// errAmbiguousMedia is returned when an id prefix matches several recordings or photos.
	errAmbiguousMedia = errors.New("id prefix matches more than one item")
)

// newEngine builds a capture engine on the ffmpeg device.
func (a *app) newEngine() *capture.Engine {
	dev := device.New(device.Config{
		FFmpegPath:  a.cfg.Audio.FFmpegPath,
		FFplayPath:  a.cfg.Audio.FFplayPath,
		InputFormat: a.cfg.Audio.InputFormat,
		InputDevice: a.cfg.Audio.InputDevice,
		SampleRate:  a.cfg.Audio.SampleRate,
	}, a.log)

	eng := capture.New(dev, capture.Config{
		TempDir:      a.cfg.Audio.TempDir,
		TickInterval: a.cfg.Audio.TickInterval,
	}, a.log)

	removed, err := eng.CleanupStale(a.cfg.Audio.StaleAfter)
	if err != nil {
		a.log.Warn("stale capture cleanup failed", "error", err)
	} else if removed > 0 {
		a.log.Info("removed stale capture files", "count", removed)
	}

	return eng
}

// newRecordCmd creates the record command.
func newRecordCmd(opts *globalOptions) *cobra.Command {
	var (
		name   string
		maxDur time.Duration
	)

	cmd := &cobra.Command{
		Use:   "record [id]",
		Short: "Record a voice note for a hike",
		Long:  "Record a voice note for the active hike, or the hike given by id. Press Ctrl+C to stop and save.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.resolveSession(ctx, argOrEmpty(args))
				if err != nil {
					return err
				}
				if _, err := a.manager.Get(ctx, id); err != nil {
					return err
				}

				eng := a.newEngine()
				defer eng.Close()

				if err := eng.StartRecording(); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintln(out, "Recording... press Ctrl+C to stop")

				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				var limit <-chan time.Time
				if maxDur > 0 {
					timer := time.NewTimer(maxDur)
					defer timer.Stop()
					limit = timer.C
				}

				m := newMeter(out, a.cfg.Display.Meter)
				interrupted := false
			loop:
				for {
					select {
					case <-sigCtx.Done():
						break loop
					case <-limit:
						break loop
					case snap := <-eng.Updates():
						m.Render(snap, 0)
						if snap.Interrupted {
							interrupted = true
							break loop
						}
					}
				}
				m.Finish()

				c, ok := eng.StopRecording()
				if !ok {
					return errNothingRecorded
				}
				if interrupted {
					_, _ = fmt.Fprintln(out, "The audio device stopped; saving what was captured.")
				}

				data, err := eng.SaveRecording(c.TempPath)
				if err != nil {
					return err
				}

				if name == "" {
					name = "Voice note " + time.Now().Format("15:04")
				}

				rec, err := a.manager.AddRecording(ctx, id, name, data, c.Seconds())
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(out, "Recording saved: %s %q (%s)\n", shortRef(rec.ID), rec.Name, formatClock(rec.DurationValue()))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "recording name")
	cmd.Flags().DurationVar(&maxDur, "max", 0, "stop automatically after this long (e.g. 2m)")

	return cmd
}

// newPlayCmd creates the play command.
func newPlayCmd(opts *globalOptions) *cobra.Command {
	var from time.Duration

	cmd := &cobra.Command{
		Use:   "play <recording-id>",
		Short: "Play a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recID, err := a.resolveRecording(ctx, args[0])
				if err != nil {
					return err
				}

				rec, err := a.manager.Recording(ctx, recID)
				if err != nil {
					return err
				}

				data, err := a.manager.RecordingAudio(ctx, recID)
				if err != nil {
					return err
				}

				eng := a.newEngine()
				defer eng.Close()

				src, err := eng.StagePlayback(data, rec.DurationValue())
				if err != nil {
					return err
				}
				if err := eng.Play(src); err != nil {
					return err
				}
				if from > 0 {
					if err := eng.Seek(from); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Playing %q (%s)\n", rec.Name, formatClock(rec.DurationValue()))

				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				m := newMeter(out, a.cfg.Display.Meter)
			loop:
				for {
					select {
					case <-sigCtx.Done():
						eng.StopPlaying()
						break loop
					case snap := <-eng.Updates():
						if snap.State != capture.StatePlaying {
							break loop
						}
						m.Render(snap, rec.DurationValue())
					}
				}
				m.Finish()

				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&from, "from", 0, "start position (e.g. 30s)")

	return cmd
}

// newRecordingsCmd creates the recordings command group.
func newRecordingsCmd(opts *globalOptions) *cobra.Command {
	recordings := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"rec"},
		Short:   "Manage a hike's recordings",
	}

	list := &cobra.Command{
		Use:   "list [id]",
		Short: "List recordings of a hike in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				f, err := a.formatter(opts)
				if err != nil {
					return err
				}

				id, err := a.resolveSession(ctx, argOrEmpty(args))
				if err != nil {
					return err
				}

				recs, err := a.manager.Recordings(ctx, id)
				if err != nil {
					return err
				}

				return f.FormatRecordings(cmd.OutOrStdout(), recs)
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <recording-id> <name>",
		Short: "Rename a recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("name cannot be empty")
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recID, err := a.resolveRecording(ctx, args[0])
				if err != nil {
					return err
				}

				if err := a.manager.RenameRecording(ctx, recID, name); err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recording renamed: %s -> %q\n", shortRef(recID), name)
				return nil
			})
		},
	}

	var force bool
	del := &cobra.Command{
		Use:   "delete <recording-id>",
		Short: "Delete a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recID, err := a.resolveRecording(ctx, args[0])
				if err != nil {
					return err
				}

				rec, err := a.manager.Recording(ctx, recID)
				if err != nil {
					return err
				}

				if !force {
					prompt := fmt.Sprintf("Delete recording %q (%s)?", rec.Name, shortRef(recID))
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled.")
						return nil
					}
				}

				if err := a.manager.DeleteRecording(ctx, recID); err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recording deleted: %s\n", recID)
				return nil
			})
		},
	}
	del.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	recordings.AddCommand(list, rename, del)
	return recordings
}

// newPhotosCmd creates the photos command group.
func newPhotosCmd(opts *globalOptions) *cobra.Command {
	photos := &cobra.Command{
		Use:   "photos",
		Short: "Manage a hike's photos",
	}

	var caption string
	add := &cobra.Command{
		Use:   "add <file> [id]",
		Short: "Attach an image to a hike",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0]) // #nosec G304 -- user supplied path
			if err != nil {
				return fmt.Errorf("failed to read photo: %w", err)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.resolveSession(ctx, argOrEmpty(args[1:]))
				if err != nil {
					return err
				}

				p, err := a.manager.AddPhoto(ctx, id, caption, data)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Photo added: %s (%d bytes)\n", p.ID, p.Size)
				return nil
			})
		},
	}
	add.Flags().StringVarP(&caption, "caption", "c", "", "photo caption")

	list := &cobra.Command{
		Use:   "list [id]",
		Short: "List photos of a hike in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.resolveSession(ctx, argOrEmpty(args))
				if err != nil {
					return err
				}

				items, err := a.manager.Photos(ctx, id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					_, _ = fmt.Fprintln(out, "No photos")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "#\tID\tCAPTION\tSIZE\tADDED")
				for _, p := range items {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
						p.SortOrder+1, shortRef(p.ID), p.Caption, p.Size,
						p.CreatedAt.Local().Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <photo-id>",
		Short: "Delete a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				photoID, err := a.resolvePhoto(ctx, args[0])
				if err != nil {
					return err
				}

				if err := a.manager.DeletePhoto(ctx, photoID); err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Photo deleted: %s\n", photoID)
				return nil
			})
		},
	}

	photos.AddCommand(add, list, del)
	return photos
}

// resolveRecording expands an unambiguous recording id prefix.
func (a *app) resolveRecording(ctx context.Context, ref string) (string, error) {
	return a.resolveMedia(ctx, ref, hike.ErrRecordingNotFound, func(sessionID string) ([]string, error) {
		recs, err := a.manager.Recordings(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		return ids, nil
	})
}

// resolvePhoto expands an unambiguous photo id prefix.
func (a *app) resolvePhoto(ctx context.Context, ref string) (string, error) {
	return a.resolveMedia(ctx, ref, hike.ErrPhotoNotFound, func(sessionID string) ([]string, error) {
		photos, err := a.manager.Photos(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(photos))
		for i, p := range photos {
			ids[i] = p.ID
		}
		return ids, nil
	})
}

// resolveMedia scans every session's media ids for a unique prefix match.
func (a *app) resolveMedia(ctx context.Context, ref string, notFound error, ids func(sessionID string) ([]string, error)) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if hike.ValidID(ref) {
		return ref, nil
	}
	if ref == "" {
		return "", hike.ErrInvalidID
	}

	sessions, err := a.manager.List(ctx, store.Query{})
	if err != nil {
		return "", err
	}

	var match string
	for _, s := range sessions {
		list, err := ids(s.ID)
		if err != nil {
			return "", err
		}
		for _, id := range list {
			if !strings.HasPrefix(id, ref) {
				continue
			}
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguousMedia, ref)
			}
			match = id
		}
	}

	if match == "" {
		return "", fmt.Errorf("%w: %s", notFound, ref)
	}
	return match, nil
}
