package curate

import (
	"context"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/geocode"
	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/resilience"
)

// Geocoder resolves street addresses to coordinates. Results are aligned
// with the requests.
type Geocoder interface {
	Resolve(ctx context.Context, reqs []geocode.Request) ([]geocode.Result, error)
}

// geocodeRows fills coordinates on rows in place. On failure rows are left
// without coordinates and the error is returned for the caller to report.
func geocodeRows(ctx context.Context, g Geocoder, rows []*candidate, opts Options) error {
	if len(rows) == 0 {
		return nil
	}
	if g == nil {
		return errors.New("no geocoder configured")
	}
	logger := logging.WithComponent("curate")
	defer logging.Timer(logger, "batch geocoding", "records", len(rows))()

	reqs := make([]geocode.Request, len(rows))
	for i, r := range rows {
		reqs[i] = geocode.Request{
			Street:       r.street,
			City:         r.city,
			State:        r.state,
			Zip:          r.zip,
			Organization: r.orgName,
		}
	}

	timeout := opts.GeocodeTimeout
	if timeout <= 0 {
		timeout = defaultGeocodeTimeout
	}
	var results []geocode.Result
	err := resilience.WithTimeout(ctx, timeout, "geocoding steps", func(ctx context.Context) error {
		var err error
		results, err = g.Resolve(ctx, reqs)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "geocode batch")
	}
	if len(results) != len(rows) {
		return errors.Errorf("geocoder returned %d results for %d requests", len(results), len(rows))
	}

	for i, res := range results {
		if !res.Found || res.Accuracy < opts.GeocodeAccuracyThreshold {
			continue
		}
		rows[i].geo = res
		rows[i].geocoded = true
	}
	return nil
}
