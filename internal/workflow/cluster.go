package workflow

import (
	"context"

	"github.com/m25mathews/rainger-poc/internal/cluster"
	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/scope"
)

// Cluster groups the geocoded sales-order locations of each scope into
// sites and stages them for the bridge step.
func (w *Workflows) Cluster(ctx context.Context, group string, pid int) (*scope.Report, error) {
	defer w.observe("cluster")()
	scopes, err := w.load(scope.KindSalesOrder, group, pid)
	if err != nil {
		return nil, err
	}

	report := w.runner.Run(ctx, group, scopes, func(ctx context.Context, s scope.Scope) error {
		locs, err := w.store.Locations(ctx, s)
		if err != nil {
			return err
		}
		sites := cluster.Cluster(locs, curate.NewID)
		if len(sites) == 0 {
			return nil
		}
		if err := w.store.StageSites(ctx, sites); err != nil {
			return err
		}
		w.logger.Debug("sites staged", "scope", s.String(), "locations", len(locs), "sites", len(sites))
		if w.metrics != nil {
			w.metrics.SitesCreated.Add(float64(len(sites)))
		}
		return nil
	})
	w.logger.Info("clustering finished", "group", group, "scopes", report.Total, "failed", len(report.Failures))
	return report, nil
}
