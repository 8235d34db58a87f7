package main

import (
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tradewatch/internal/prices"
	"github.com/sells-group/tradewatch/internal/runlog"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Maintain daily price history",
}

var pricesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh stale symbols, or a single symbol with --symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "prices")
		if err != nil {
			return err
		}
		defer pool.Close()

		symbol, _ := cmd.Flags().GetString("symbol")
		maxAge, _ := cmd.Flags().GetInt("max-age-minutes")
		startFlag, _ := cmd.Flags().GetString("start")
		format, _ := cmd.Flags().GetString("format")

		if startFlag == "" {
			startFlag = cfg.Prices.StartDate
		}
		start, err := time.Parse(time.DateOnly, startFlag)
		if err != nil {
			return eris.Wrapf(err, "prices refresh: invalid start date %q", startFlag)
		}
		if maxAge <= 0 {
			maxAge = cfg.Prices.MaxAgeMinutes
		}

		r := newRefresher(pool)

		if symbol != "" {
			res := r.RefreshSymbol(ctx, symbol, start)
			if err := writeOutput(os.Stdout, format, res); err != nil {
				return err
			}
			if res.Err != nil {
				return eris.Wrapf(res.Err, "prices refresh %s", res.Symbol)
			}
			return nil
		}

		summary, err := r.RefreshAll(ctx, maxAge, start)
		if err != nil {
			return eris.Wrap(err, "prices refresh")
		}
		return writeOutput(os.Stdout, format, summary)
	},
}

func init() {
	pricesRefreshCmd.Flags().String("symbol", "", "refresh only this symbol")
	pricesRefreshCmd.Flags().Int("max-age-minutes", 0, "staleness threshold (default from config)")
	pricesRefreshCmd.Flags().String("start", "", "first date for symbols with no history, YYYY-MM-DD (default from config)")
	pricesRefreshCmd.Flags().String("format", "json", "output format: json or yaml")

	pricesCmd.AddCommand(pricesRefreshCmd)
	rootCmd.AddCommand(pricesCmd)
}

func newRefresher(pool *pgxpool.Pool) *prices.Refresher {
	pc := cfg.Prices
	client := prices.NewEODHDClient(prices.ClientOptions{
		BaseURL:  pc.BaseURL,
		APIKey:   pc.APIKey,
		Throttle: prices.NewThrottle(time.Duration(pc.ThrottleMs) * time.Millisecond),
	})
	return prices.NewRefresher(client, prices.NewPGStore(pool), runlog.New(pool), prices.Config{
		Benchmark: pc.Benchmark,
		ChunkSize: pc.ChunkSize,
	})
}
