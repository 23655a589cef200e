package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/resilience"
)

// API is the vendor batch endpoint.
type API interface {
	Geocode(ctx context.Context, addresses []string) ([]Result, error)
}

// Orchestrator answers geocode requests from the cache first and sends the
// rest to the vendor in chunks. Identical chunks requested concurrently are
// sent once.
type Orchestrator struct {
	api     API
	cache   Cache
	cfg     Config
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// NewOrchestrator wires the vendor client to an optional cache. m may be nil.
func NewOrchestrator(api API, cache Cache, cfg Config, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		api:     api,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		metrics: m,
		logger:  logging.WithComponent("geocode"),
	}
}

// Resolve returns one result per request, aligned with reqs.
func (o *Orchestrator) Resolve(ctx context.Context, reqs []Request) ([]Result, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	defer logging.Timer(o.logger, "geocode resolve", "requests", len(reqs))()

	var results []Result
	err := resilience.WithTimeout(ctx, o.cfg.ResolveTimeout, "geocode resolve", func(ctx context.Context) error {
		out, err := o.resolve(ctx, reqs)
		if err != nil {
			return err
		}
		results = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) resolve(ctx context.Context, reqs []Request) ([]Result, error) {
	var unique []Request
	positions := make(map[string][]int)
	for i, r := range reqs {
		k := r.Key()
		if _, ok := positions[k]; !ok {
			unique = append(unique, r)
		}
		positions[k] = append(positions[k], i)
	}

	found := o.lookup(ctx, unique)

	var misses []Request
	for _, r := range unique {
		if _, ok := found[r.Key()]; !ok {
			misses = append(misses, r)
		}
	}
	o.logger.Info("geocode cache",
		"requests", len(reqs), "unique", len(unique),
		"cached", len(unique)-len(misses), "missing", len(misses))
	if o.metrics != nil {
		o.metrics.GeocodeCacheHits.Add(float64(len(unique) - len(misses)))
		o.metrics.GeocodeCacheMisses.Add(float64(len(misses)))
	}

	var fresh []Entry
	for start := 0; start < len(misses); start += o.cfg.ChunkSize {
		chunk := misses[start:min(start+o.cfg.ChunkSize, len(misses))]
		res, err := o.callChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i, r := range chunk {
			found[r.Key()] = res[i]
			fresh = append(fresh, Entry{Request: r, Result: res[i]})
		}
	}

	if o.cache != nil && len(fresh) > 0 {
		if err := o.cache.Save(ctx, fresh); err != nil {
			o.logger.Error("saving geocodes to cache failed", "entries", len(fresh), "error", err)
		}
	}

	out := make([]Result, len(reqs))
	for k, idx := range positions {
		for _, i := range idx {
			out[i] = found[k]
		}
	}
	return out, nil
}

// lookup never fails: an unreachable cache means everything is a miss.
func (o *Orchestrator) lookup(ctx context.Context, reqs []Request) map[string]Result {
	if o.cache == nil {
		return make(map[string]Result)
	}
	found, err := o.cache.Lookup(ctx, reqs)
	if err != nil {
		o.logger.Error("geocode cache lookup failed", "error", err)
		return make(map[string]Result)
	}
	return found
}

func (o *Orchestrator) callChunk(ctx context.Context, chunk []Request) ([]Result, error) {
	lines := make([]string, len(chunk))
	h := sha256.New()
	for i, r := range chunk {
		lines[i] = r.Line()
		h.Write([]byte(r.Key()))
		h.Write([]byte{0})
	}
	key := fmt.Sprintf("%x", h.Sum(nil))

	v, err, shared := o.group.Do(key, func() (interface{}, error) {
		var res []Result
		err := resilience.WithTimeout(ctx, o.cfg.APITimeout, "geocodio batch", func(ctx context.Context) error {
			return resilience.Retry(ctx, "geocodio batch", o.cfg.Retry, func() error {
				out, err := o.api.Geocode(ctx, lines)
				if err != nil {
					return err
				}
				if len(out) != len(lines) {
					return resilience.Permanent(errors.Errorf("vendor returned %d results for %d addresses", len(out), len(lines)))
				}
				res = out
				return nil
			})
		})
		o.countCall(err)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "geocode chunk of %d", len(chunk))
	}
	if shared {
		o.logger.Debug("geocode chunk shared with a concurrent caller", "addresses", len(chunk))
	}
	return v.([]Result), nil
}

func (o *Orchestrator) countCall(err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.GeocodeAPICalls.WithLabelValues(status).Inc()
}
