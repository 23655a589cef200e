// Package workflow implements the pipeline steps run by the CLI: scope
// planning, location generation, clustering, association, commits, the
// location bridge, residential flags and run statistics.
package workflow

import (
	"context"
	"log/slog"

	"github.com/m25mathews/rainger-poc/internal/cluster"
	"github.com/m25mathews/rainger-poc/internal/config"
	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/normalize"
	"github.com/m25mathews/rainger-poc/internal/residential"
	"github.com/m25mathews/rainger-poc/internal/scope"
	"github.com/m25mathews/rainger-poc/internal/store"
)

// Stager buffers location rows for one merge.
type Stager interface {
	Add(ctx context.Context, rows [][]any) error
	Merge(ctx context.Context) (int64, error)
	Drop(ctx context.Context) error
}

// Store is the persistence the workflows need.
type Store interface {
	Dimensions(ctx context.Context, s scope.Scope) ([]curate.DimensionRecord, error)
	Locations(ctx context.Context, s scope.Scope) ([]curate.Location, error)
	Firmographics(ctx context.Context, s scope.Scope) ([]match.Firmographic, error)
	Keepstock(ctx context.Context, s scope.Scope) ([]match.Keepstock, error)
	Sizes(ctx context.Context, kind scope.Kind, incremental bool) ([]scope.Sized, error)

	Stager(ctx context.Context, kind scope.Kind) (Stager, error)
	StageAssociations(ctx context.Context, kind string, assocs []match.Association) error
	ClearAssociations(ctx context.Context, kind string) error
	CommitAssociations(ctx context.Context, kind string) (int64, error)
	ResetLocations(ctx context.Context) error
	ResetSoldToLocations(ctx context.Context) error

	StageSites(ctx context.Context, sites []cluster.Site) error
	ClearSites(ctx context.Context) error
	CommitSites(ctx context.Context) error
	StagedSites(ctx context.Context) ([]store.Parent, error)
	Hierarchy(ctx context.Context) ([]store.HierarchyNode, error)
	ReplaceBridge(ctx context.Context, rows [][]any) error

	UncheckedLocations(ctx context.Context) ([]curate.Location, error)
	SetResidential(ctx context.Context, checked, residential []string) error

	ComputeStats(ctx context.Context, runID string) (int64, error)
}

// Flagger decides which addresses are residential.
type Flagger interface {
	Flag(ctx context.Context, addrs []residential.Address) ([]string, error)
}

// Deps are the collaborators of the workflows. Geocoder and Flagger may be
// nil; steps that need them then run without.
type Deps struct {
	Store    Store
	Tables   *normalize.Tables
	Markers  *normalize.MarkerCache
	Zips     *normalize.ZipStates
	Geocoder curate.Geocoder
	Flagger  Flagger
	Metrics  *metrics.Metrics
}

// Workflows runs pipeline steps.
type Workflows struct {
	cfg      *config.Config
	store    Store
	tables   *normalize.Tables
	markers  *normalize.MarkerCache
	zips     *normalize.ZipStates
	geocoder curate.Geocoder
	flagger  Flagger
	metrics  *metrics.Metrics
	runner   *scope.Runner
	logger   *slog.Logger
}

// New creates the workflows.
func New(cfg *config.Config, deps Deps) *Workflows {
	if deps.Tables == nil {
		deps.Tables = normalize.DefaultTables()
	}
	if deps.Markers == nil {
		deps.Markers = normalize.NewMarkerCache()
	}
	if deps.Zips == nil {
		deps.Zips = normalize.NewZipStates()
	}
	return &Workflows{
		cfg:      cfg,
		store:    deps.Store,
		tables:   deps.Tables,
		markers:  deps.Markers,
		zips:     deps.Zips,
		geocoder: deps.Geocoder,
		flagger:  deps.Flagger,
		metrics:  deps.Metrics,
		runner:   scope.NewRunner(cfg.Scopes.Workers, deps.Metrics),
		logger:   logging.WithComponent("workflow"),
	}
}

func (w *Workflows) observe(stage string) func() {
	if w.metrics == nil {
		return func() {}
	}
	return w.metrics.ObserveStage(stage)
}

func (w *Workflows) load(kind scope.Kind, group string, pid int) ([]scope.Scope, error) {
	scopes, err := scope.Load(w.cfg.Scopes.Dir, kind, group, pid)
	if err != nil {
		return nil, err
	}
	w.logger.Info("loaded scopes", "kind", kind, "group", group, "pid", pid, "scopes", len(scopes))
	return scopes, nil
}

// Postgres adapts the Postgres store to the workflows.
func Postgres(s *store.Store) Store {
	return &postgres{Store: s, Provider: store.NewProvider(s)}
}

type postgres struct {
	*store.Store
	*store.Provider
}

func (p *postgres) Stager(ctx context.Context, kind scope.Kind) (Stager, error) {
	var (
		st  *store.Stager
		err error
	)
	if kind == scope.KindSoldTo {
		st, err = p.Store.SoldToLocationStager(ctx)
	} else {
		st, err = p.Store.LocationStager(ctx)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
