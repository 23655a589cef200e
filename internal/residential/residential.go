// Package residential flags locations that address validation services
// classify as residential.
package residential

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/metrics"
	"github.com/m25mathews/rainger-poc/internal/resilience"
)

// Address is one location to classify.
type Address struct {
	ID     string `json:"id"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Validator classifies a batch of addresses. The answer is aligned with the
// input.
type Validator interface {
	Name() string
	Residential(ctx context.Context, addrs []Address) ([]bool, error)
}

// Config holds the settings shared by every validator call.
type Config struct {
	BatchSize int                    `koanf:"batch_size"`
	Timeout   time.Duration          `koanf:"timeout"`
	Retry     resilience.RetryConfig `koanf:"retry"`
	UPS       ServiceConfig          `koanf:"ups"`
	SVS       ServiceConfig          `koanf:"svs"`
}

// Flagger asks every validator and flags an address when any says it is
// residential.
type Flagger struct {
	validators []Validator
	cfg        Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewFlagger creates a flagger. m may be nil.
func NewFlagger(cfg Config, m *metrics.Metrics, validators ...Validator) *Flagger {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Flagger{
		validators: validators,
		cfg:        cfg,
		metrics:    m,
		logger:     logging.WithComponent("residential"),
	}
}

// Flag returns the ids of the residential addresses. A failing validator is
// logged and ignored as long as another one answered.
func (f *Flagger) Flag(ctx context.Context, addrs []Address) ([]string, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	if len(f.validators) == 0 {
		return nil, errors.New("no residential validators configured")
	}
	defer logging.Timer(f.logger, "flag residential", "addresses", len(addrs))()

	flags := make([]bool, len(addrs))
	answered := 0
	var lastErr error
	for _, v := range f.validators {
		got, err := f.ask(ctx, v, addrs)
		if err != nil {
			f.logger.Error("residential validator failed", "validator", v.Name(), "error", err)
			lastErr = err
			continue
		}
		answered++
		for i, r := range got {
			flags[i] = flags[i] || r
		}
	}
	if answered == 0 {
		return nil, errors.Wrap(lastErr, "every residential validator failed")
	}

	var ids []string
	for i, r := range flags {
		if r {
			ids = append(ids, addrs[i].ID)
		}
	}
	f.logger.Info("residential addresses flagged", "total", len(ids))
	if f.metrics != nil {
		f.metrics.ResidentialFlagged.Add(float64(len(ids)))
	}
	return ids, nil
}

func (f *Flagger) ask(ctx context.Context, v Validator, addrs []Address) ([]bool, error) {
	out := make([]bool, 0, len(addrs))
	for start := 0; start < len(addrs); start += f.cfg.BatchSize {
		batch := addrs[start:min(start+f.cfg.BatchSize, len(addrs))]
		var got []bool
		err := resilience.WithTimeout(ctx, f.cfg.Timeout, v.Name(), func(ctx context.Context) error {
			return resilience.Retry(ctx, v.Name(), f.cfg.Retry, func() error {
				res, err := v.Residential(ctx, batch)
				if err != nil {
					return err
				}
				if len(res) != len(batch) {
					return resilience.Permanent(errors.Errorf("%s answered %d of %d addresses", v.Name(), len(res), len(batch)))
				}
				got = res
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}
