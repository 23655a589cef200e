package curate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/m25mathews/rainger-poc/internal/logging"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// SalesOrder curates ship-to records from sales orders. Sub-locations are
// kept, so one street address can yield an address row and building rows.
type SalesOrder struct {
	tables   *normalize.Tables
	geocoder Geocoder
	newID    func() string
	logger   *slog.Logger
}

// NewSalesOrder creates the sales-order curator. geocoder may be nil when
// every call runs in simple mode.
func NewSalesOrder(tables *normalize.Tables, geocoder Geocoder) *SalesOrder {
	return &SalesOrder{
		tables:   tables,
		geocoder: geocoder,
		newID:    NewID,
		logger:   logging.WithComponent("curate.salesorder"),
	}
}

// Preprocess returns the batch unchanged.
func (s *SalesOrder) Preprocess(_ context.Context, batch []DimensionRecord) ([]DimensionRecord, error) {
	return batch, nil
}

// Autocurate groups precurated rows into canonical locations.
func (s *SalesOrder) Autocurate(ctx context.Context, batch []Precurated, opts Options) (*Result, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}
	defer logging.Timer(s.logger, "autocurate", "records", len(batch))()

	rows := make([]*candidate, len(batch))
	for i, p := range batch {
		rows[i] = &candidate{
			street:         p.Address,
			city:           p.City,
			state:          p.State,
			zip:            p.Zip5,
			subloc:         p.Sublocation1,
			orgID:          p.OrganizationID,
			orgName:        p.OrganizationName,
			marker:         p.Marker,
			isIntersection: p.IsIntersection,
			rawCount:       p.RawCount,
			dimIDs:         []string{p.ID},
		}
	}

	rows = group(rows, (*candidate).groupKey)
	s.logger.Info("autocurating", "groups", len(rows))

	rows = filter(s.tables, rows, true)
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

	for _, r := range rows {
		r.street = s.tables.CleanFinalStreet(r.street)
		r.name = joinName(r.orgID, "@", r.street, r.subloc)
	}
	rows = group(rows, (*candidate).regroupKey)

	locations := make([]Location, len(rows))
	for i, r := range rows {
		loc := r.location()
		loc.IsAddress = loc.Marker == ""
		loc.IsBuilding = loc.Marker != ""
		locations[i] = loc
	}
	s.setParents(locations)

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

type parentKey struct {
	street, city, state, zip, orgID, orgName string
}

// setParents points every building at the single address row on the same
// street. With no address row, or several, the buildings stay unparented.
func (s *SalesOrder) setParents(locations []Location) {
	groups := make(map[parentKey][]int)
	var order []parentKey
	for i, loc := range locations {
		k := parentKey{loc.Street, loc.City, loc.State, loc.Zip5, loc.OrganizationID, loc.OrganizationName}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		var addresses, buildings []int
		for _, i := range groups[k] {
			if locations[i].IsAddress {
				addresses = append(addresses, i)
			} else {
				buildings = append(buildings, i)
			}
		}
		if len(buildings) == 0 {
			continue
		}
		switch len(addresses) {
		case 1:
			for _, i := range buildings {
				locations[i].MainName = locations[addresses[0]].Name
			}
		case 0:
			s.logger.Warn("no address-level parent for buildings", "street", k.street, "organization_id", k.orgID)
		default:
			s.logger.Warn("multiple address-level parents for buildings", "street", k.street, "organization_id", k.orgID)
		}
	}
}
