package workflow

import (
	"context"
	"strconv"
	"time"
)

// RunID identifies the run the statistics belong to: the configured id, or
// the current unix time.
func (w *Workflows) RunID() string {
	if w.cfg.Env.RunID != "" {
		return w.cfg.Env.RunID
	}
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// Stats records the table statistics of this run.
func (w *Workflows) Stats(ctx context.Context) (int64, error) {
	defer w.observe("stats")()
	runID := w.RunID()
	n, err := w.store.ComputeStats(ctx, runID)
	if err != nil {
		return 0, err
	}
	w.logger.Info("run statistics recorded", "run_id", runID, "metrics", n)
	return n, nil
}
