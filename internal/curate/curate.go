// Package curate turns a batch of raw dimension records into canonical
// locations: row-level inference, batch consensus, filtering, geocoding and
// naming, with one Curator per source system.
package curate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// ErrEmptyBatch is returned when there is nothing to curate.
var ErrEmptyBatch = errors.New("empty batch cannot be precurated")

// MinLenParallel is the batch size from which row-level work is spread over
// all CPUs.
const MinLenParallel = 100000

const defaultGeocodeTimeout = 30 * time.Minute

// Curator canonicalizes the records of one source system.
type Curator interface {
	Preprocess(ctx context.Context, batch []DimensionRecord) ([]DimensionRecord, error)
	Autocurate(ctx context.Context, batch []Precurated, opts Options) (*Result, error)
}

// Options control one Autocurate call.
type Options struct {
	// SimpleMode skips geocoding.
	SimpleMode bool
	// AutoLabel emits an association for every contributing record.
	AutoLabel bool
	// Geocodes less accurate than this are discarded.
	GeocodeAccuracyThreshold float64
	// GeocodeTimeout bounds the whole geocoding step; zero means 30 minutes.
	GeocodeTimeout time.Duration
}

// Result is the output of Autocurate.
type Result struct {
	Locations    []Location
	Associations []match.Association
	// GeocodeErr is set when geocoding failed; the locations are still
	// returned, without coordinates.
	GeocodeErr error
}

// Run preprocesses, precurates and autocurates one batch.
func Run(ctx context.Context, c Curator, tables *normalize.Tables, batch []DimensionRecord, opts Options) (*Result, error) {
	prepared, err := c.Preprocess(ctx, batch)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	precurated, err := Precurate(prepared, tables)
	if err != nil {
		return nil, err
	}
	return c.Autocurate(ctx, precurated, opts)
}

// NewID returns a time-based location id.
func NewID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func autoLabel(locations []Location) []match.Association {
	var out []match.Association
	for _, loc := range locations {
		for _, dimID := range loc.DimensionIDs {
			out = append(out, match.Association{
				DimensionID: dimID,
				LocationID:  loc.ID,
				Score:       1,
				Method:      match.MethodAutoLabel,
			})
		}
	}
	return out
}
