package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/runlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent run history",
	Long:  "Lists recent ingest, reconcile, prices and perf runs, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "migrate")
		if err != nil {
			return err
		}
		defer pool.Close()

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := runlog.New(pool).List(ctx, kind, limit)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(entries) == 0 {
			zap.L().Info("no runs recorded yet, run 'tradewatch ingest run' to start")
			return nil
		}

		formatRunEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("kind", "", "only runs of this kind: ingest, reconcile, prices or perf")
	statusCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

// formatRunEntries writes a tabular representation of run entries to out.
func formatRunEntries(out io.Writer, entries []runlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t----\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Kind,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.RowsSynced,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}
