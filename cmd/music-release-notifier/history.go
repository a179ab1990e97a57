package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/music-release-notifier/internal/ledger"
)

func historyCmd() *cobra.Command {
	var (
		limit      int
		deliveries bool
	)

	cmd := &cobra.Command{
		Use:   "history <config-folder>",
		Short: "Show recent runs from the run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if cfg.Ledger.Path == "" {
				return errors.New("run history is disabled (ledger.path is empty)")
			}
			if _, err := os.Stat(cfg.Ledger.Path); err != nil {
				return fmt.Errorf("no run history at %s: %w", cfg.Ledger.Path, err)
			}

			l, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			runs, err := l.Recent(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "STARTED\tSTATUS\tWINDOW UNTIL\tDIGESTS\tALBUMS\tSENT\tFAILED\tERROR")
			for _, r := range runs {
				status := r.Status
				if r.FirstRun {
					status += " (first)"
				}
				if r.DryRun {
					status += " (dry)"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.StartedAt.Format(time.DateTime),
					status,
					r.WindowUntil.Format(time.DateTime),
					r.Digests, r.Albums, r.Sent, r.Failed, r.Error)

				if !deliveries {
					continue
				}
				ds, err := l.Deliveries(ctx, r.ID)
				if err != nil {
					return err
				}
				for _, d := range ds {
					_, _ = fmt.Fprintf(w, "\t  %s\t%s\t\t%d\t\t\t%s\n", d.Status, d.Recipient, d.Albums, d.Error)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	cmd.Flags().BoolVarP(&deliveries, "deliveries", "d", false, "list each run's deliveries")

	return cmd
}
