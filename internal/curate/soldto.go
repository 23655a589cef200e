package curate

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// SoldTo curates billing (sold-to) account addresses. Sub-locations are
// dropped and intersections are not accepted.
type SoldTo struct {
	tables   *normalize.Tables
	zips     *normalize.ZipStates
	geocoder Geocoder
	newID    func() string
	logger   *slog.Logger
}

// NewSoldTo creates the sold-to curator.
func NewSoldTo(tables *normalize.Tables, zips *normalize.ZipStates, geocoder Geocoder) *SoldTo {
	return &SoldTo{
		tables:   tables,
		zips:     zips,
		geocoder: geocoder,
		newID:    NewID,
		logger:   logging.WithComponent("curate.soldto"),
	}
}

// Preprocess fills an empty state from the zip code.
func (s *SoldTo) Preprocess(_ context.Context, batch []DimensionRecord) ([]DimensionRecord, error) {
	out := make([]DimensionRecord, len(batch))
	filled := 0
	for i, rec := range batch {
		if strings.TrimSpace(rec.State) == "" {
			if state := s.zips.State(rec.Zip5); state != "" {
				rec.State = state
				filled++
			}
		}
		out[i] = rec
	}
	s.logger.Debug("states filled from zip", "records", filled)
	return out, nil
}

// Autocurate groups precurated rows into one location per street address.
func (s *SoldTo) Autocurate(ctx context.Context, batch []Precurated, opts Options) (*Result, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	defer logging.Timer(s.logger, "autocurate", "records", len(batch))()

	rows := make([]*candidate, len(batch))
	for i, p := range batch {
		rows[i] = &candidate{
			street:   p.Address,
			city:     p.City,
			state:    p.State,
			zip:      p.Zip5,
			orgID:    p.OrganizationID,
			orgName:  p.OrganizationName,
			rawCount: p.RawCount,
			dimIDs:   []string{p.ID},
		}
	}

	rows = group(rows, (*candidate).groupKey)
	s.logger.Info("autocurating", "groups", len(rows))

	rows = filter(s.tables, rows, false)
	for _, r := range rows {
		r.street = s.tables.RemoveGarbageAfterSuffix(r.street)
	}

	result := &Result{}
	if !opts.SimpleMode {
		if err := geocodeRows(ctx, s.geocoder, rows, opts); err != nil {
			s.logger.Error("geocoding failed, keeping rows without coordinates", "error", err)
			result.GeocodeErr = err
		}
	}

	title := cases.Title(language.AmericanEnglish)
	for _, r := range rows {
		r.street = s.tables.CleanFinalStreet(r.street)
		r.city = title.String(r.city)
		r.name = joinName(r.orgID, "@", r.street, r.city, r.state, r.zip)
	}
	rows = group(rows, (*candidate).regroupKey)

	locations := make([]Location, len(rows))
	for i, r := range rows {
		loc := r.location()
		loc.IsAddress = true
		locations[i] = loc
	}

	sort.SliceStable(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	for i := range locations {
		locations[i].ID = s.newID()
	}

	result.Locations = locations
	if opts.AutoLabel {
		result.Associations = autoLabel(locations)
	}
	s.logger.Info("autocuration output", "locations", len(locations))
	return result, nil
}
