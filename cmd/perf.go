package main

import (
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/access"
	"github.com/sells-group/tradewatch/internal/api"
	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/perf"
	"github.com/sells-group/tradewatch/internal/runlog"
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Compute and inspect trade performance",
}

var perfComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Recompute performance for every trade with a ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := openPool(ctx, "perf")
		if err != nil {
			return err
		}
		defer pool.Close()

		format, _ := cmd.Flags().GetString("format")

		summary, err := newEngine(pool).ComputeAll(ctx)
		if err != nil {
			return eris.Wrap(err, "perf compute")
		}
		return writeOutput(os.Stdout, format, summary)
	},
}

var perfTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Show performance for one trade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		level, format, err := tierAndFormat(cmd)
		if err != nil {
			return err
		}

		pool, err := openPool(ctx, "perf")
		if err != nil {
			return err
		}
		defer pool.Close()

		p, err := newEngine(pool).TradePerformance(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "perf trade %d", id)
		}
		if p == nil {
			return eris.Errorf("perf trade %d: no performance (missing trade, ticker or prices)", id)
		}

		return writeOutput(os.Stdout, format, api.TradeResponse{
			Performance:  access.FilterTradePerformance(*p, level),
			Capabilities: access.CapabilitiesFor(level),
		})
	},
}

var perfOfficialCmd = &cobra.Command{
	Use:   "official <official-id>",
	Short: "Show aggregate performance for one official",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		level, format, err := tierAndFormat(cmd)
		if err != nil {
			return err
		}
		f, err := tradeFilter(cmd)
		if err != nil {
			return err
		}

		pool, err := openPool(ctx, "perf")
		if err != nil {
			return err
		}
		defer pool.Close()

		stats, err := newEngine(pool).ComputePoliticianPerformance(ctx, id, f)
		if err != nil {
			return eris.Wrapf(err, "perf official %d", id)
		}
		if stats == nil {
			return eris.Errorf("perf official %d: not found", id)
		}

		return writeOutput(os.Stdout, format, api.OfficialResponse{
			Stats:        access.FilterOfficialStats(*stats, level),
			Capabilities: access.CapabilitiesFor(level),
		})
	},
}

func init() {
	perfComputeCmd.Flags().String("format", "json", "output format: json or yaml")
	for _, c := range []*cobra.Command{perfTradeCmd, perfOfficialCmd} {
		c.Flags().String("tier", string(access.Premium), "access tier: guest, account or premium")
		c.Flags().String("format", "json", "output format: json or yaml")
	}
	perfOfficialCmd.Flags().String("from", "", "earliest trade date, YYYY-MM-DD")
	perfOfficialCmd.Flags().String("to", "", "latest trade date, YYYY-MM-DD")
	perfOfficialCmd.Flags().String("type", "", "trade type: buy, sell, exchange or other")
	perfOfficialCmd.Flags().String("ticker", "", "only trades in this ticker")

	perfCmd.AddCommand(perfComputeCmd, perfTradeCmd, perfOfficialCmd)
	rootCmd.AddCommand(perfCmd)
}

func newEngine(pool *pgxpool.Pool) *perf.Engine {
	return perf.NewEngine(perf.NewPGStore(pool), runlog.New(pool), perf.Config{
		Benchmark: cfg.Prices.Benchmark,
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid id %q", s)
	}
	return id, nil
}

func tierAndFormat(cmd *cobra.Command) (access.Level, string, error) {
	tier, _ := cmd.Flags().GetString("tier")
	format, _ := cmd.Flags().GetString("format")
	level, err := access.ParseLevel(tier)
	if err != nil {
		return level, format, err
	}
	zap.L().Debug("rendering with access tier", zap.String("tier", string(level)))
	return level, format, nil
}

func tradeFilter(cmd *cobra.Command) (perf.TradeFilter, error) {
	var f perf.TradeFilter

	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	tradeType, _ := cmd.Flags().GetString("type")
	f.Ticker, _ = cmd.Flags().GetString("ticker")

	if from != "" {
		if f.From = model.ParseDay(from); f.From == nil {
			return f, eris.Errorf("invalid --from %q", from)
		}
	}
	if to != "" {
		if f.To = model.ParseDay(to); f.To == nil {
			return f, eris.Errorf("invalid --to %q", to)
		}
	}
	if tradeType != "" {
		tt := model.TradeType(tradeType)
		if !tt.Valid() {
			return f, eris.Errorf("invalid --type %q", tradeType)
		}
		f.TradeType = tt
	}
	return f, nil
}
