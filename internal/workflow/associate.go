package workflow

import (
	"context"

	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/scope"
)

func dimensions(recs []curate.DimensionRecord) []match.Dimension {
	out := make([]match.Dimension, len(recs))
	for i, r := range recs {
		out[i] = match.Dimension{
			ID:             r.ID,
			OrganizationID: r.OrganizationID,
			State:          r.State,
			Text:           r.Describe(),
		}
	}
	return out
}

func candidates(locs []curate.Location) []match.Candidate {
	out := make([]match.Candidate, len(locs))
	for i, l := range locs {
		out[i] = match.Candidate{
			ID:             l.ID,
			OrganizationID: l.OrganizationID,
			Text:           l.Describe(),
			Marker:         l.Marker,
		}
	}
	return out
}

// Associate resolves the sales-order records of each scope against its
// locations with the marker, fuzzy and learned tiers.
func (w *Workflows) Associate(ctx context.Context, group string, pid int) (*scope.Report, error) {
	defer w.observe("associate")()
	scopes, err := w.load(scope.KindSalesOrder, group, pid)
	if err != nil {
		return nil, err
	}
	opts := w.cfg.Matching
	opts.Chunks = max(opts.Chunks, scope.RankChunks(scope.KindSalesOrder, group))
	resolver := match.NewResolver(w.markers, opts)

	report := w.runner.Run(ctx, group, scopes, func(ctx context.Context, s scope.Scope) error {
		dims, locs, err := w.pair(ctx, s)
		if err != nil || len(dims) == 0 || len(locs) == 0 {
			return err
		}
		assocs := resolver.Resolve(dimensions(dims), candidates(locs))
		return w.stageAssociations(ctx, string(scope.KindSalesOrder), assocs)
	})
	w.logger.Info("association finished", "kind", scope.KindSalesOrder, "group", group,
		"scopes", report.Total, "failed", len(report.Failures))
	return report, nil
}

// AssociateSoldTo links sold-to records to the sold-to location with the
// same organization and canonical address.
func (w *Workflows) AssociateSoldTo(ctx context.Context, pid int) (*scope.Report, error) {
	defer w.observe("associate_soldto")()
	scopes, err := w.load(scope.KindSoldTo, "", pid)
	if err != nil {
		return nil, err
	}

	report := w.runner.Run(ctx, "", scopes, func(ctx context.Context, s scope.Scope) error {
		recs, locs, err := w.pair(ctx, s)
		if err != nil || len(recs) == 0 || len(locs) == 0 {
			return err
		}
		dims := make([]match.Dimension, len(recs))
		for i, r := range recs {
			dims[i] = match.Dimension{
				ID:             r.ID,
				OrganizationID: r.OrganizationID,
				State:          r.State,
				Text:           match.CanonicalText(w.tables, r.Street, r.City, r.State, r.Zip5),
			}
		}
		cands := make([]match.Candidate, len(locs))
		for i, l := range locs {
			cands[i] = match.Candidate{
				ID:             l.ID,
				OrganizationID: l.OrganizationID,
				Text:           match.CanonicalText(w.tables, l.Street, l.City, l.State, l.Zip5),
			}
		}
		return w.stageAssociations(ctx, string(scope.KindSoldTo), match.MatchStrict(dims, cands))
	})
	w.logger.Info("association finished", "kind", scope.KindSoldTo,
		"scopes", report.Total, "failed", len(report.Failures))
	return report, nil
}

// AssociateFirmographic finds the closest firmographic record for the
// locations of each scope.
func (w *Workflows) AssociateFirmographic(ctx context.Context, group string, pid int) (*scope.Report, error) {
	defer w.observe("associate_firmographic")()
	scopes, err := w.load(scope.KindFirmographic, group, pid)
	if err != nil {
		return nil, err
	}
	chunks := max(w.cfg.Matching.Chunks, scope.RankChunks(scope.KindFirmographic, group))

	report := w.runner.Run(ctx, group, scopes, func(ctx context.Context, s scope.Scope) error {
		locs, err := w.store.Locations(ctx, s)
		if err != nil || len(locs) == 0 {
			return err
		}
		firms, err := w.store.Firmographics(ctx, s)
		if err != nil || len(firms) == 0 {
			return err
		}
		assocs := match.MatchFirmographics(candidates(locs), firms, chunks)
		return w.stageAssociations(ctx, string(scope.KindFirmographic), assocs)
	})
	w.logger.Info("association finished", "kind", scope.KindFirmographic, "group", group,
		"scopes", report.Total, "failed", len(report.Failures))
	return report, nil
}

// AssociateKeepstock links keepstock records to the locations of the
// organizations owning their accounts.
func (w *Workflows) AssociateKeepstock(ctx context.Context, pid int) (*scope.Report, error) {
	defer w.observe("associate_keepstock")()
	scopes, err := w.load(scope.KindKeepstock, "", pid)
	if err != nil {
		return nil, err
	}
	chunks := max(w.cfg.Matching.Chunks, 1)

	report := w.runner.Run(ctx, "", scopes, func(ctx context.Context, s scope.Scope) error {
		recs, err := w.store.Keepstock(ctx, s)
		if err != nil || len(recs) == 0 {
			return err
		}
		locs, err := w.store.Locations(ctx, s)
		if err != nil || len(locs) == 0 {
			return err
		}
		assocs := match.MatchKeepstock(recs, candidates(locs), chunks)
		return w.stageAssociations(ctx, string(scope.KindKeepstock), assocs)
	})
	w.logger.Info("association finished", "kind", scope.KindKeepstock,
		"scopes", report.Total, "failed", len(report.Failures))
	return report, nil
}

// pair loads the records of a scope and the locations they resolve against.
func (w *Workflows) pair(ctx context.Context, s scope.Scope) ([]curate.DimensionRecord, []curate.Location, error) {
	dims, err := w.store.Dimensions(ctx, s)
	if err != nil || len(dims) == 0 {
		return nil, nil, err
	}
	locs, err := w.store.Locations(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	if len(locs) == 0 {
		w.logger.Warn("no locations in scope", "scope", s.String(), "records", len(dims))
	}
	return dims, locs, nil
}
