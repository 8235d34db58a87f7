package ingest

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/resolve"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// ReconcileStats summarises a reconciliation pass.
type ReconcileStats struct {
	Filers    int   `json:"filers" yaml:"filers"`
	Officials int   `json:"officials" yaml:"officials"`
	Linked    int64 `json:"linked" yaml:"linked"`
	Errors    int   `json:"errors" yaml:"errors"`
}

// filerGroup is every spelling of one filer name.
type filerGroup struct {
	names  []string
	office string
}

// Reconcile links unlinked trades to officials. Filer names that normalise
// to the same key share one official. A failure on one name is logged and
// counted; only failing to list the unlinked filers is returned as an error.
func (o *Orchestrator) Reconcile(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	run := o.startRun(ctx, runlog.KindReconcile)

	refs, err := o.store.UnlinkedFilers(ctx)
	if err != nil {
		err = eris.Wrap(err, "ingest: reconcile")
		o.failRun(ctx, run, err)
		return stats, err
	}
	stats.Filers = len(refs)

	groups := make(map[string]*filerGroup)
	for _, r := range refs {
		key := resolve.NormalizeName(r.FilerName)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &filerGroup{}
			groups[key] = g
		}
		g.names = append(g.names, r.FilerName)
		if g.office == "" {
			g.office = r.Office
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if ctx.Err() != nil {
			o.failRun(ctx, run, ctx.Err())
			return stats, ctx.Err()
		}
		g := groups[key]
		log := o.log.With(zap.String("filer", g.names[0]))

		jurisdiction, sub := resolve.ParseOffice(g.office)
		official := &model.Official{
			Name:            resolve.CanonicalName(g.names[0]),
			Chamber:         model.ChamberHouse,
			Jurisdiction:    jurisdiction,
			SubJurisdiction: sub,
		}
		id, err := o.store.UpsertOfficial(ctx, official)
		if err != nil {
			log.Warn("upsert official failed", zap.Error(err))
			stats.Errors++
			continue
		}
		stats.Officials++

		n, err := o.store.LinkTrades(ctx, id, g.names)
		if err != nil {
			log.Warn("link trades failed", zap.Int64("official_id", id), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.Linked += n
	}

	o.completeRun(ctx, run, runlog.Result{
		RowsSynced: stats.Linked,
		Metadata: map[string]any{
			"filers":    stats.Filers,
			"officials": stats.Officials,
			"errors":    stats.Errors,
		},
	})
	o.log.Info("reconciliation complete",
		zap.Int("filers", stats.Filers),
		zap.Int("officials", stats.Officials),
		zap.Int64("linked", stats.Linked),
		zap.Int("errors", stats.Errors),
	)
	return stats, nil
}
