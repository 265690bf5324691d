package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/hikelog/pkg/display"
	"github.com/0xmhha/hikelog/pkg/hike"
	"github.com/0xmhha/hikelog/pkg/store"
)

// errNoActiveHike is returned when a command needs the active hike and none is in progress.
var errNoActiveHike = errors.New("no hike in progress")

// dateLayout is the accepted format for --since and --until.
const dateLayout = "2006-01-02"

// newStartCmd creates the start command.
func newStartCmd(opts *globalOptions) *cobra.Command {
	var fields hike.StartFields

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a hike",
		Long:  "Start a new hike. Only one hike can be in progress at a time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.manager.Start(ctx, fields)
				if err != nil {
					var active *hike.AlreadyActiveError
					if errors.As(err, &active) {
						return fmt.Errorf("hike %s is already in progress; end it first", shortRef(active.ExistingID))
					}
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Hike started: %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&fields.Title, "title", "t", "", "hike title")
	cmd.Flags().IntVarP(&fields.StartMood, "mood", "m", 0, "mood at the start (1-10)")
	cmd.Flags().StringVar(&fields.Notes, "notes", "", "notes")
	cmd.Flags().StringSliceVar(&fields.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("mood") //nolint:errcheck // flag is defined above

	return cmd
}

// newEndCmd creates the end command.
func newEndCmd(opts *globalOptions) *cobra.Command {
	var fields hike.ClosingFields

	cmd := &cobra.Command{
		Use:   "end [id]",
		Short: "Complete the active hike",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.resolveSession(ctx, argOrEmpty(args))
				if err != nil {
					return err
				}

				if err := a.manager.End(ctx, id, fields); err != nil {
					return err
				}

				s, err := a.manager.Get(ctx, id)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Hike completed: %s (%s)\n", id, s.Duration().Round(time.Second))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&fields.EndMood, "mood", "m", 0, "mood at the end (1-10)")
	cmd.Flags().StringVar(&fields.Reflection, "reflection", "", "reflection")
	cmd.Flags().Float64Var(&fields.DistanceKm, "distance", 0, "distance in kilometers")
	cmd.Flags().IntVar(&fields.Steps, "steps", 0, "step count")
	cmd.Flags().IntVar(&fields.Rating, "rating", 0, "rating (0-5)")
	_ = cmd.MarkFlagRequired("mood") //nolint:errcheck // flag is defined above

	return cmd
}

// newStatusCmd creates the status command.
func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active hike and pending reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				f, err := a.formatter(opts)
				if err != nil {
					return err
				}

				// Reminders from the start of this process must land first.
				a.scheduler.Wait()

				var st display.Status
				if id, ok := a.manager.ActiveSessionID(); ok {
					s, err := a.manager.Get(ctx, id)
					if err != nil {
						return err
					}
					st.Active = s
					st.Elapsed = time.Since(s.StartedAt).Round(time.Second)
				}

				pending, err := a.queue.Pending(ctx)
				if err != nil {
					return err
				}
				st.Reminders = pending

				return f.FormatStatus(cmd.OutOrStdout(), st)
			})
		},
	}
}

// listOptions holds flags for the list command.
type listOptions struct {
	status string
	since  string
	until  string
	limit  int
}

// query converts the flags into a store query.
func (o listOptions) query() (store.Query, error) {
	var q store.Query

	switch strings.ToLower(o.status) {
	case "":
	case "active", string(hike.StatusInProgress):
		q.Status = hike.StatusInProgress
	case string(hike.StatusCompleted):
		q.Status = hike.StatusCompleted
	default:
		return q, fmt.Errorf("invalid status %q: must be active or completed", o.status)
	}

	var err error
	if q.Since, err = parseDate(o.since, false); err != nil {
		return q, err
	}
	if q.Until, err = parseDate(o.until, true); err != nil {
		return q, err
	}

	q.Limit = o.limit
	return q, nil
}

// newListCmd creates the list command.
func newListCmd(opts *globalOptions) *cobra.Command {
	var lo listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hikes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := lo.query()
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				f, err := a.formatter(opts)
				if err != nil {
					return err
				}

				sessions, err := a.manager.List(ctx, q)
				if err != nil {
					return err
				}

				activeID, _ := a.manager.ActiveSessionID()
				return f.FormatSessions(cmd.OutOrStdout(), sessions, activeID)
			})
		},
	}

	cmd.Flags().StringVar(&lo.status, "status", "", "filter by status (active, completed)")
	cmd.Flags().StringVar(&lo.since, "since", "", "only hikes started on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&lo.until, "until", "", "only hikes started on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&lo.limit, "limit", "n", 0, "maximum number of hikes")

	return cmd
}

// newShowCmd creates the show command.
func newShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a hike with its recordings and photos",
		Long:  "Show a hike with its recordings and photos. Without an id the active hike is shown.",
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

				detail, err := a.sessionDetail(ctx, id)
				if err != nil {
					return err
				}

				return f.FormatSession(cmd.OutOrStdout(), detail)
			})
		},
	}
}

// sessionDetail loads a session with its media.
func (a *app) sessionDetail(ctx context.Context, id string) (display.SessionDetail, error) {
	s, err := a.manager.Get(ctx, id)
	if err != nil {
		return display.SessionDetail{}, err
	}

	recs, err := a.manager.Recordings(ctx, id)
	if err != nil {
		return display.SessionDetail{}, err
	}

	photos, err := a.manager.Photos(ctx, id)
	if err != nil {
		return display.SessionDetail{}, err
	}

	activeID, _ := a.manager.ActiveSessionID()
	return display.SessionDetail{
		Session:    s,
		Active:     s.ID == activeID,
		Recordings: recs,
		Photos:     photos,
	}, nil
}

// newEditCmd creates the edit command. Only flags given on the command line
// are applied.
func newEditCmd(opts *globalOptions) *cobra.Command {
	var (
		title, notes, reflection string
		distance                 float64
		steps, rating            int
		startMood, endMood       int
		tags                     []string
	)

	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit a hike's narrative fields",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit hike.Edit
			flags := cmd.Flags()
			if flags.Changed("title") {
				edit.Title = &title
			}
			if flags.Changed("notes") {
				edit.Notes = &notes
			}
			if flags.Changed("reflection") {
				edit.Reflection = &reflection
			}
			if flags.Changed("distance") {
				edit.DistanceKm = &distance
			}
			if flags.Changed("steps") {
				edit.Steps = &steps
			}
			if flags.Changed("rating") {
				edit.Rating = &rating
			}
			if flags.Changed("start-mood") {
				edit.StartMood = &startMood
			}
			if flags.Changed("end-mood") {
				edit.EndMood = &endMood
			}
			if flags.Changed("tag") {
				edit.Tags = &tags
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.resolveSession(ctx, argOrEmpty(args))
				if err != nil {
					return err
				}

				s, err := a.manager.Edit(ctx, id, edit)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Hike updated: %s\n", s.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "hike title")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&reflection, "reflection", "", "reflection")
	cmd.Flags().Float64Var(&distance, "distance", 0, "distance in kilometers")
	cmd.Flags().IntVar(&steps, "steps", 0, "step count")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating (0-5)")
	cmd.Flags().IntVar(&startMood, "start-mood", 0, "mood at the start (1-10)")
	cmd.Flags().IntVar(&endMood, "end-mood", 0, "mood at the end (1-10)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "replace tags (repeatable)")

	return cmd
}

// newDeleteCmd creates the delete command.
func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a hike with its recordings and photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.manager.Resolve(ctx, args[0])
				if err != nil {
					return err
				}

				s, err := a.manager.Get(ctx, id)
				if err != nil {
					return err
				}

				if !force {
					prompt := fmt.Sprintf("Delete hike %q (%s)?", displayTitle(s), shortRef(id))
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Delete cancelled.")
						return nil
					}
				}

				if err := a.manager.Delete(ctx, id); err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Hike deleted: %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}

// parseDate parses a YYYY-MM-DD flag in local time. endOfDay moves the
// result to the last instant of that day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}

	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// shortRef returns the first 8 characters of an id.
func shortRef(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func displayTitle(s *hike.Session) string {
	if s.Title == "" {
		return "Untitled hike"
	}
	return s.Title
}
