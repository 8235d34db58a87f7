package main

import (
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/disclosure"
	"github.com/sells-group/tradewatch/internal/fetcher"
	"github.com/sells-group/tradewatch/internal/ingest"
	"github.com/sells-group/tradewatch/internal/runlog"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest periodic transaction reports",
	Long:  "Discovers, downloads and parses congressional periodic transaction reports into trades.",
}

var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "ingest")
		if err != nil {
			return err
		}
		defer pool.Close()

		lookback, _ := cmd.Flags().GetInt("lookback-days")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		throttle, _ := cmd.Flags().GetInt("throttle-ms")
		year, _ := cmd.Flags().GetInt("year")
		force, _ := cmd.Flags().GetBool("force")
		format, _ := cmd.Flags().GetString("format")

		orch := newOrchestrator(pool)
		stats, err := orch.Run(ctx, ingest.Options{
			LookbackDays: lookback,
			MaxPages:     maxPages,
			ThrottleMs:   throttle,
			Year:         year,
			Force:        force,
		})
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		return writeOutput(os.Stdout, format, stats)
	},
}

var ingestReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Link unresolved filers to officials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "ingest")
		if err != nil {
			return err
		}
		defer pool.Close()

		format, _ := cmd.Flags().GetString("format")

		stats, err := newOrchestrator(pool).Reconcile(ctx)
		if err != nil {
			return eris.Wrap(err, "ingest reconcile")
		}

		zap.L().Info("reconcile complete",
			zap.Int("filers", stats.Filers),
			zap.Int64("linked", stats.Linked),
		)
		return writeOutput(os.Stdout, format, stats)
	},
}

func init() {
	ingestRunCmd.Flags().Int("lookback-days", 0, "search window in days (default from config)")
	ingestRunCmd.Flags().Int("max-pages", 0, "search page cap (default from config)")
	ingestRunCmd.Flags().Int("throttle-ms", 0, "delay between requests in ms (default from config)")
	ingestRunCmd.Flags().Int("year", 0, "filing year for the bulk index (default current year)")
	ingestRunCmd.Flags().Bool("force", false, "re-process documents that are already parsed")
	ingestRunCmd.Flags().String("format", "json", "output format: json or yaml")
	ingestReconcileCmd.Flags().String("format", "json", "output format: json or yaml")

	ingestCmd.AddCommand(ingestRunCmd, ingestReconcileCmd)
	rootCmd.AddCommand(ingestCmd)
}

func newOrchestrator(pool *pgxpool.Pool) *ingest.Orchestrator {
	ic := cfg.Ingest

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		BaseURL:    ic.BaseURL,
		UserAgent:  ic.UserAgent,
		Timeout:    time.Duration(ic.TimeoutSecs) * time.Second,
		MaxRetries: ic.MaxRetries,
		Throttle:   time.Duration(ic.ThrottleMs) * time.Millisecond,
		CacheDir:   ic.CacheDir,
		IndexTTL:   time.Duration(ic.IndexCacheTTLHours) * time.Hour,
	})

	parsers := disclosure.NewRegistry(disclosure.Options{
		BaseURL:       ic.BaseURL,
		RawTextLimit:  ic.RawTextLimit,
		PdfToTextPath: ic.PdfToTextPath,
	})

	return ingest.New(f, parsers, ingest.NewPGStore(pool), runlog.New(pool), ingest.Config{
		KnownStreakLimit: ic.KnownStreakLimit,
		LookbackDays:     ic.LookbackDays,
		MaxPages:         ic.MaxPages,
	})
}
