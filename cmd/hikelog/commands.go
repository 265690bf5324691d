package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/hikelog/pkg/stats"
)

// statsOptions holds flags for the stats command.
type statsOptions struct {
	top   int
	since string
	until string
}

// newStatsCmd creates the stats command.
func newStatsCmd(opts *globalOptions) *cobra.Command {
	var so statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show journal statistics",
		Long:  "Show totals, a per-month breakdown and the longest hikes by distance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := listOptions{since: so.since, until: so.until}.query()
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

				agg := stats.New(stats.Config{Location: time.Local})
				for _, s := range sessions {
					recs, err := a.manager.Recordings(ctx, s.ID)
					if err != nil {
						a.log.Warn("failed to list recordings", "session", s.ID, "error", err)
					}
					agg.Add(s, recs)
				}

				return f.FormatStats(cmd.OutOrStdout(), agg.Report(so.top))
			})
		},
	}

	cmd.Flags().IntVar(&so.top, "top", 5, "number of longest hikes to show")
	cmd.Flags().StringVar(&so.since, "since", "", "only hikes started on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&so.until, "until", "", "only hikes started on or before this date (YYYY-MM-DD)")

	return cmd
}
