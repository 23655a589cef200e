package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/residential"
	"github.com/m25mathews/rainger-poc/internal/scope"
	"github.com/m25mathews/rainger-poc/internal/store"
)

// smallGroup runs without geocoding or residential checks.
const smallGroup = "small"

func (w *Workflows) curateOptions(simple bool) curate.Options {
	return curate.Options{
		SimpleMode:               simple,
		AutoLabel:                true,
		GeocodeAccuracyThreshold: w.cfg.Curate.GeocodeAccuracyThreshold,
		GeocodeTimeout:           w.cfg.Curate.GeocodeTimeout,
	}
}

// Generate canonicalizes the sales-order scopes of one process and merges
// the locations. Outside the small group locations are geocoded and checked
// for residential addresses.
func (w *Workflows) Generate(ctx context.Context, group string, pid int) (*scope.Report, error) {
	defer w.observe("generate")()
	scopes, err := w.load(scope.KindSalesOrder, group, pid)
	if err != nil {
		return nil, err
	}
	curator := curate.NewSalesOrder(w.tables, w.geocoder)
	return w.generate(ctx, scope.KindSalesOrder, group, scopes, curator, w.curateOptions(group == smallGroup))
}

// GenerateSoldTo canonicalizes the sold-to scopes of one process.
func (w *Workflows) GenerateSoldTo(ctx context.Context, pid int) (*scope.Report, error) {
	defer w.observe("generate_soldto")()
	scopes, err := w.load(scope.KindSoldTo, "", pid)
	if err != nil {
		return nil, err
	}
	curator := curate.NewSoldTo(w.tables, w.zips, w.geocoder)
	return w.generate(ctx, scope.KindSoldTo, "", scopes, curator, w.curateOptions(false))
}

func (w *Workflows) generate(ctx context.Context, kind scope.Kind, group string, scopes []scope.Scope, curator curate.Curator, opts curate.Options) (*scope.Report, error) {
	if opts.SimpleMode {
		w.logger.Info("geocoding disabled", "kind", kind, "group", group)
	} else if w.geocoder == nil {
		w.logger.Warn("no geocoder configured, locations are stored without coordinates", "kind", kind)
	}

	stager, err := w.store.Stager(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := stager.Drop(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("dropping preload table failed", "error", err)
		}
	}()

	report := w.runner.Run(ctx, group, scopes, func(ctx context.Context, s scope.Scope) error {
		logger := w.logger.With("scope", s.String())
		dims, err := w.store.Dimensions(ctx, s)
		if err != nil {
			return err
		}
		if len(dims) == 0 {
			logger.Warn("no records in scope")
			return nil
		}

		res, err := curate.Run(ctx, curator, w.tables, dims, opts)
		if errors.Is(err, curate.ErrEmptyBatch) {
			logger.Warn("no locations to load")
			return nil
		}
		if err != nil {
			return err
		}
		if res.GeocodeErr != nil {
			logger.Error("geocoding failed, locations kept without coordinates", "error", res.GeocodeErr)
		}
		if w.metrics != nil {
			w.metrics.RowsCanonicalized.WithLabelValues(string(kind)).Add(float64(len(dims)))
		}
		if len(res.Locations) == 0 {
			logger.Warn("no locations to load")
			return nil
		}

		var rows [][]any
		if kind == scope.KindSoldTo {
			rows = make([][]any, len(res.Locations))
			for i, l := range res.Locations {
				rows[i] = store.SoldToLocationRow(l)
			}
		} else {
			var flags map[string]bool
			if !opts.SimpleMode {
				flags = w.residentialFlags(ctx, res.Locations)
			}
			rows = locationRows(res.Locations, flags)
		}
		if err := w.addRows(ctx, stager, rows); err != nil {
			return err
		}
		return w.stageAssociations(ctx, string(kind), res.Associations)
	})

	n, err := stager.Merge(ctx)
	if err != nil {
		return report, err
	}
	w.logger.Info("locations generated",
		"kind", kind, "group", group, "scopes", report.Total, "failed", len(report.Failures), "inserted", n)
	return report, nil
}

// locationRows encodes locations; a location missing from flags has not
// been checked.
func locationRows(locs []curate.Location, flags map[string]bool) [][]any {
	rows := make([][]any, len(locs))
	for i, l := range locs {
		var res *bool
		if flag, ok := flags[l.ID]; ok {
			res = &flag
		}
		rows[i] = store.LocationRow(l, res)
	}
	return rows
}

func (w *Workflows) addRows(ctx context.Context, stager Stager, rows [][]any) error {
	size := w.cfg.Curate.BatchSize
	if size <= 0 {
		size = len(rows)
	}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := stager.Add(ctx, rows[start:end]); err != nil {
			return errors.Wrap(err, "stage locations")
		}
	}
	return nil
}

func (w *Workflows) stageAssociations(ctx context.Context, kind string, assocs []match.Association) error {
	if len(assocs) == 0 {
		return nil
	}
	if err := w.store.StageAssociations(ctx, kind, assocs); err != nil {
		return errors.Wrap(err, "stage associations")
	}
	if w.metrics != nil {
		for _, a := range assocs {
			w.metrics.Associations.WithLabelValues(string(a.Method)).Inc()
		}
	}
	return nil
}

func addresses(locs []curate.Location) []residential.Address {
	out := make([]residential.Address, len(locs))
	for i, l := range locs {
		out[i] = residential.Address{ID: l.ID, Street: l.Street, City: l.City, State: l.State, Zip: l.Zip5}
	}
	return out
}

// residentialFlags checks locs. Failures are logged and leave every
// location unchecked, for flag-residential to pick up later.
func (w *Workflows) residentialFlags(ctx context.Context, locs []curate.Location) map[string]bool {
	if w.flagger == nil {
		return nil
	}
	ids, err := w.flagger.Flag(ctx, addresses(locs))
	if err != nil {
		w.logger.Error("residential check failed", "locations", len(locs), "error", err)
		return nil
	}
	flags := make(map[string]bool, len(locs))
	for _, l := range locs {
		flags[l.ID] = false
	}
	for _, id := range ids {
		flags[id] = true
	}
	return flags
}
