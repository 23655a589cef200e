package scope

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/metrics"
)

// Func processes one scope.
type Func func(ctx context.Context, s Scope) error

// Failure records a scope that returned an error.
type Failure struct {
	Scope string `json:"scope"`
	Err   error  `json:"-"`
	Error string `json:"error"`
}

// Report collects the outcome of a run.
type Report struct {
	mu        sync.Mutex
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Failures  []Failure `json:"failures,omitempty"`
}

func (r *Report) record(s Scope, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.Processed++
		return
	}
	r.Failures = append(r.Failures, Failure{Scope: s.String(), Err: err, Error: err.Error()})
}

// Err summarizes the failures, nil when every scope succeeded.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Failures) == 0 {
		return nil
	}
	return errors.Wrapf(r.Failures[0].Err, "%d of %d scopes failed, first", len(r.Failures), r.Total)
}

// Runner executes scopes concurrently. A failing scope never cancels the
// others.
type Runner struct {
	limit   int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner creates a runner executing at most limit scopes at once. m may
// be nil.
func NewRunner(limit int, m *metrics.Metrics) *Runner {
	return &Runner{
		limit:   max(limit, 1),
		metrics: m,
		logger:  logging.WithComponent("scope"),
	}
}

// Run applies fn to every scope. group only labels logs and metrics. Scopes
// not started before ctx is cancelled are recorded as failed.
func (r *Runner) Run(ctx context.Context, group string, scopes []Scope, fn Func) *Report {
	report := &Report{Total: len(scopes)}
	g := &errgroup.Group{}
	g.SetLimit(r.limit)

	for i, s := range scopes {
		logger := r.logger.With("scope", s.String(), "group", group)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.record(s, errors.Wrap(err, "not started"))
				r.count(s, group, err)
				return nil
			}
			logger.Info("working on scope", "n", i+1, "of", len(scopes))
			err := safely(ctx, s, fn)
			if err != nil {
				logger.Error("scope failed", "error", err)
			}
			report.record(s, err)
			r.count(s, group, err)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("scopes done", "group", group, "processed", report.Processed, "failed", len(report.Failures))
	return report
}

func (r *Runner) count(s Scope, group string, err error) {
	if r.metrics == nil {
		return
	}
	if err != nil {
		r.metrics.ScopesFailed.WithLabelValues(string(s.Kind), group).Inc()
		return
	}
	r.metrics.ScopesProcessed.WithLabelValues(string(s.Kind), group).Inc()
}

func safely(ctx context.Context, s Scope, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, s)
}
