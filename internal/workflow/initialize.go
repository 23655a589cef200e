package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/scope"
)

// groupsFor returns the size groups of kind.
func groupsFor(kind scope.Kind, cfg scope.GroupConfig, incremental bool) ([]scope.Group, error) {
	switch kind {
	case scope.KindSalesOrder:
		return scope.SalesOrderGroups(cfg, incremental), nil
	case scope.KindSoldTo:
		return []scope.Group{scope.SoldToGroup(cfg)}, nil
	case scope.KindFirmographic:
		return scope.FirmographicGroups(cfg), nil
	case scope.KindKeepstock:
		return []scope.Group{scope.KeepstockGroup(cfg)}, nil
	}
	return nil, errors.Errorf("unknown scope kind %q", kind)
}

// Initialize prepares a run of kind: staging tables are emptied, full runs
// reset the locations the kind produces, and the scope files are rewritten
// from fresh size estimates.
func (w *Workflows) Initialize(ctx context.Context, kind scope.Kind, incremental bool) ([]scope.File, error) {
	defer w.observe("initialize")()
	groups, err := groupsFor(kind, w.cfg.Scopes.Groups, incremental)
	if err != nil {
		return nil, err
	}

	if err := w.store.ClearAssociations(ctx, string(kind)); err != nil {
		return nil, err
	}
	switch kind {
	case scope.KindSalesOrder:
		if err := w.store.ClearSites(ctx); err != nil {
			return nil, err
		}
		if !incremental {
			w.logger.Info("resetting locations for a full run")
			if err := w.store.ResetLocations(ctx); err != nil {
				return nil, err
			}
		}
	case scope.KindSoldTo:
		if !incremental {
			w.logger.Info("resetting sold-to locations for a full run")
			if err := w.store.ResetSoldToLocations(ctx); err != nil {
				return nil, err
			}
		}
	}

	sizes, err := w.store.Sizes(ctx, kind, incremental)
	if err != nil {
		return nil, errors.Wrapf(err, "size %s scopes", kind)
	}
	files, err := scope.Plan(kind, sizes, groups, incremental, w.cfg.Scopes.Groups.MaxScopes)
	if err != nil {
		return nil, err
	}
	if err := scope.Clear(w.cfg.Scopes.Dir, kind); err != nil {
		return nil, err
	}
	if err := scope.Write(w.cfg.Scopes.Dir, files); err != nil {
		return nil, err
	}

	for _, f := range files {
		w.logger.Info("scope file written",
			"kind", kind, "group", f.Group, "pid", f.PID, "scopes", len(f.Scopes))
	}
	return files, nil
}
