package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/curate"
)

// FlagResidential checks every location that has no residential flag yet
// and stores the answers. It returns the number flagged residential.
func (w *Workflows) FlagResidential(ctx context.Context) (int, error) {
	defer w.observe("flag_residential")()
	if w.flagger == nil {
		return 0, errors.New("no residential validators configured")
	}
	locs, err := w.store.UncheckedLocations(ctx)
	if err != nil {
		return 0, err
	}
	if len(locs) == 0 {
		w.logger.Info("no unchecked locations")
		return 0, nil
	}

	size := w.cfg.Curate.BatchSize
	if size <= 0 {
		size = len(locs)
	}
	flagged := 0
	for start := 0; start < len(locs); start += size {
		batch := locs[start:min(start+size, len(locs))]
		ids, err := w.flagger.Flag(ctx, addresses(batch))
		if err != nil {
			return flagged, errors.Wrap(err, "flag residential")
		}
		if err := w.store.SetResidential(ctx, locationIDs(batch), ids); err != nil {
			return flagged, errors.Wrap(err, "store residential flags")
		}
		flagged += len(ids)
	}
	w.logger.Info("residential check finished", "checked", len(locs), "residential", flagged)
	return flagged, nil
}

func locationIDs(locs []curate.Location) []string {
	ids := make([]string, len(locs))
	for i, l := range locs {
		ids[i] = l.ID
	}
	return ids
}
