package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/m25mathews/rainger-poc/internal/config"
	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/db"
	"github.com/m25mathews/rainger-poc/internal/geocode"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/residential"
	"github.com/m25mathews/rainger-poc/internal/store"
	"github.com/m25mathews/rainger-poc/internal/workflow"
)

// app holds the connections shared by the pipeline commands.
type app struct {
	conn      *db.Connection
	redis     *redis.Client
	store     *store.Store
	metrics   *metrics.Metrics
	workflows *workflow.Workflows
	logger    *slog.Logger
}

// openApp connects to Postgres and wires the workflows.
func openApp(ctx context.Context) (*app, error) {
	a := &app{
		metrics: metrics.New(prometheus.DefaultRegisterer),
		logger:  logging.WithComponent("cli"),
	}
	conn, err := db.NewConnection(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	a.conn = conn
	a.store = store.New(conn.DB, cfg.Schemas)

	geocoder, err := a.geocoder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.workflows = workflow.New(cfg, workflow.Deps{
		Store:    workflow.Postgres(a.store),
		Geocoder: geocoder,
		Flagger:  a.flagger(),
		Metrics:  a.metrics,
	})
	return a, nil
}

// geocoder returns nil when no vendor key is configured; locations are then
// stored without coordinates.
func (a *app) geocoder(ctx context.Context) (curate.Geocoder, error) {
	if cfg.Geocodio.APIKey == "" {
		a.logger.Warn("geocodio api key not set, geocoding disabled")
		return nil, nil
	}
	client, err := geocode.NewClient(cfg.Geocodio)
	if err != nil {
		return nil, err
	}

	var cache geocode.Cache
	switch cfg.GeocodeCache {
	case config.CachePostgres:
		cache = geocode.NewPostgresCache(a.conn.DB, cfg.Schemas.GeocodeCache().Schema)
	case config.CacheRedis:
		rdb, err := geocode.DialRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "geocode cache")
		}
		a.redis = rdb
		cache = geocode.NewRedisCache(rdb, cfg.Redis.TTL)
	case config.CacheNone:
	}
	a.logger.Info("geocoding enabled", "cache", cfg.GeocodeCache)
	return geocode.NewOrchestrator(client, cache, cfg.Geocodio, a.metrics), nil
}

// flagger returns nil when no residential service is configured.
func (a *app) flagger() workflow.Flagger {
	var validators []residential.Validator
	services := []struct {
		name string
		cfg  residential.ServiceConfig
	}{
		{"ups", cfg.Residential.UPS},
		{"svs", cfg.Residential.SVS},
	}
	for _, s := range services {
		if s.cfg.URL == "" {
			continue
		}
		v, err := residential.NewHTTPValidator(s.name, s.cfg)
		if err != nil {
			a.logger.Error("residential validator disabled", "validator", s.name, "error", err)
			continue
		}
		validators = append(validators, v)
	}
	if len(validators) == 0 {
		a.logger.Warn("no residential validators configured")
		return nil
	}
	return residential.NewFlagger(cfg.Residential, a.metrics, validators...)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("closing redis failed", "error", err)
		}
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("closing database failed", "error", err)
	}
}

// withApp runs fn with an open app and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
