package curate

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m25mathews/rainger-poc/internal/geocode"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

func records(streets ...string) []DimensionRecord {
	out := make([]DimensionRecord, len(streets))
	for i, street := range streets {
		out[i] = DimensionRecord{
			ID:               strconv.Itoa(i),
			Street:           street,
			City:             "OLYMPIA",
			State:            "WA",
			Zip5:             "12345",
			OrganizationID:   "1",
			OrganizationName: "TEST",
		}
	}
	return out
}

func times(n int, s string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "loc-" + strconv.Itoa(n)
	}
}

func curateSalesOrder(t *testing.T, batch []DimensionRecord) []Location {
	t.Helper()
	tables := normalize.DefaultTables()
	curator := NewSalesOrder(tables, nil)
	curator.newID = sequentialIDs()
	res, err := Run(context.Background(), curator, tables, batch, Options{SimpleMode: true})
	require.NoError(t, err)
	return res.Locations
}

func streets(locs []Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.Street
	}
	return out
}

func idsByStreet(locs []Location) map[string][]string {
	out := make(map[string][]string)
	for _, l := range locs {
		ids := append([]string(nil), l.DimensionIDs...)
		sort.Strings(ids)
		out[l.Street] = ids
	}
	return out
}

func TestPrecurateEmptyBatch(t *testing.T) {
	_, err := Precurate(nil, normalize.DefaultTables())
	assert.True(t, errors.Is(err, ErrEmptyBatch))
}

func TestPrecurateOrdersByPopularity(t *testing.T) {
	rows, err := Precurate(records("9 Elm Street", "123 Main Street", "123 Main St", "123 Main Street Bldg 2"), normalize.DefaultTables())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "123 Main Street", rows[0].Address)
	assert.Equal(t, "123 Main Street", rows[0].Street)
	assert.Equal(t, 3, rows[0].AddressCount)
	assert.Equal(t, 2, rows[0].SublocationCount)
	assert.Empty(t, rows[0].Marker)
	assert.Equal(t, "Building 2", rows[2].Sublocation1)
	assert.NotEmpty(t, rows[2].Marker)
	assert.Equal(t, "9 Elm Street", rows[3].Address)
	assert.Equal(t, 1, rows[3].RawCount)
}

func TestSalesOrderAutocurate(t *testing.T) {
	tests := []struct {
		name        string
		streets     []string
		wantStreets []string
		wantIDs     map[string][]string
	}{
		{
			name:        "missing street number",
			streets:     join(times(9, "123 Main Street"), times(1, "Main Street")),
			wantStreets: []string{"123 Main Street"},
		},
		{
			name: "order switch",
			streets: join(
				times(5, "1 North High Street"),
				times(3, "1 High Street North"),
				times(2, "1 High North Street"),
			),
			wantStreets: []string{"1 North High Street"},
		},
		{
			name: "garbage after suffix",
			streets: join(
				times(4, "45 Slowpoke Lane"),
				times(1, "45 Slowpoke Lane asdfwaf"),
				times(3, "46 Slowpoke Lane"),
				times(2, "46 Slowpoke Lane thisisgarbage"),
			),
			wantStreets: []string{"45 Slowpoke Lane", "46 Slowpoke Lane"},
		},
		{
			name:        "missing suffix",
			streets:     join(times(8, "1989 Ehemann Drive"), times(2, "1989 Ehemann")),
			wantStreets: []string{"1989 Ehemann Drive"},
		},
		{
			name:        "po boxes",
			streets:     []string{"P.O. Box 123", "PO BX 123", "P.O BX 456", "PO B0X 456"},
			wantStreets: []string{"PO Box 123", "PO Box 456"},
			wantIDs: map[string][]string{
				"PO Box 123": {"0", "1"},
				"PO Box 456": {"2", "3"},
			},
		},
		{
			name: "wisconsin street numbers",
			streets: []string{
				"N64W1024 Big Road",
				"N64W1024 Big Rd",
				"N 64W 1024 Big Road",
				"S96W4096 Sweet Way",
				"S 96 W 4096 Sweet Way",
				"S96 W4096 Sweet Wy",
				"N64 Mario Dr",
				"W40 Lubricant Rd",
				"S360 Switch St",
				"490 S 22nd Street",
			},
			wantStreets: []string{
				"N64W1024 Big Road",
				"S96W4096 Sweet Way",
				"N64 Mario Drive",
				"W40 Lubricant Road",
				"S360 Switch Street",
				"490 South 22nd Street",
			},
			wantIDs: map[string][]string{
				"N64W1024 Big Road":     {"0", "1", "2"},
				"S96W4096 Sweet Way":    {"3", "4", "5"},
				"490 South 22nd Street": {"9"},
			},
		},
		{
			name:        "sublocation keywords inside street names",
			streets:     []string{"45 Dock Road", "24 Big Building Way", "123 Sweet Suite Drive", "456 Warehouse Drive"},
			wantStreets: []string{"45 Dock Road", "24 Big Building Way", "123 Sweet Suite Drive", "456 Warehouse Drive"},
		},
		{
			name:        "trailing sublocation keyword",
			streets:     []string{"123 Main Street Building"},
			wantStreets: []string{"123 Main Street"},
		},
		{
			name: "suffixless roads",
			streets: []string{
				"123 I-24",
				"123 I 24",
				"123 Interstate 24",
				"123 Int 24",
				"1441 Broadway",
				"1441 broadway",
				"456 Highway 1",
				"456 hwy 1",
				"600 merchants concourse",
			},
			wantStreets: []string{"123 Interstate 24", "1441 Broadway", "456 Highway 1", "600 Merchants Concourse"},
			wantIDs: map[string][]string{
				"123 Interstate 24":       {"0", "1", "2", "3"},
				"1441 Broadway":           {"4", "5"},
				"456 Highway 1":           {"6", "7"},
				"600 Merchants Concourse": {"8"},
			},
		},
		{
			name:        "highways",
			streets:     []string{"123 US Hwy 10", "123 us Hiwy 10", "W456 Hway 9", "99 Hiway 9", "99 Highway 9", "W1234 US Hiway 1"},
			wantStreets: []string{"123 Us Highway 10", "W456 Highway 9", "99 Highway 9", "W1234 Us Highway 1"},
		},
		{
			name:        "spanish suffix",
			streets:     []string{"4781 W Calle Torim", "4781 W Cll Torim", "17309 Caminito Masada", "17309 Cmt Masada"},
			wantStreets: []string{"4781 West Calle Torim", "17309 Caminito Masada"},
			wantIDs: map[string][]string{
				"4781 West Calle Torim": {"0", "1"},
				"17309 Caminito Masada": {"2", "3"},
			},
		},
		{
			name:        "intersection is kept",
			streets:     []string{"Hwy 59 & Conde St", "Main Street"},
			wantStreets: []string{"Highway 59 & Conde Street"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs := curateSalesOrder(t, records(tt.streets...))
			assert.ElementsMatch(t, tt.wantStreets, streets(locs))

			got := idsByStreet(locs)
			for street, ids := range tt.wantIDs {
				assert.Equal(t, ids, got[street], street)
			}
		})
	}
}

func TestSalesOrderIsIdempotent(t *testing.T) {
	batch := records(join(times(3, "123 Main St"), times(2, "123 main street bldg 1"), times(1, "45 Elm Ave"))...)
	first := curateSalesOrder(t, batch)

	var again []DimensionRecord
	for i, loc := range first {
		again = append(again, DimensionRecord{
			ID:               strconv.Itoa(i),
			Street:           normalize.JoinFields(loc.Street, loc.Sublocation),
			City:             loc.City,
			State:            loc.State,
			Zip5:             loc.Zip5,
			OrganizationID:   loc.OrganizationID,
			OrganizationName: loc.OrganizationName,
		})
	}
	second := curateSalesOrder(t, again)

	names := func(locs []Location) []string {
		out := make([]string, len(locs))
		for i, l := range locs {
			out[i] = l.Name
		}
		return out
	}
	assert.Equal(t, names(first), names(second))
}

func TestSalesOrderExtractsSublocations(t *testing.T) {
	batch := records(times(10, "123 MAIN STREET")...)
	batch[5].Department = "BUILDING 2"
	batch[6].Receiver = "WAREHOUSE B"
	batch[7].Attention = "WAREHOUSE A"
	batch[8].Supplemental = "BLDG 1"

	locs := curateSalesOrder(t, batch)
	require.Len(t, locs, 5)

	var sublocs []string
	for _, l := range locs {
		sublocs = append(sublocs, l.Sublocation)
		assert.Equal(t, "123 Main Street", l.Street)
		if l.Sublocation == "" {
			assert.True(t, l.IsAddress)
			assert.Empty(t, l.MainName)
		} else {
			assert.True(t, l.IsBuilding)
			assert.Equal(t, "1 @ 123 Main Street", l.MainName)
		}
	}
	assert.ElementsMatch(t, []string{"", "Building 1", "Building 2", "Warehouse A", "Warehouse B"}, sublocs)
}

func TestSalesOrderCollectsIDs(t *testing.T) {
	batch := records(join(
		times(2, "123 Main Street"),
		times(2, "123 Main Street Bldg 2"),
		times(2, "435 Broad Ave"),
		times(2, "12319 Wide Road"),
		times(2, "67 Nowhere Drive"),
	)...)

	locs := curateSalesOrder(t, batch)
	require.Len(t, locs, 5)

	byName := make(map[string][]string)
	for _, l := range locs {
		byName[l.Name] = l.DimensionIDs
	}
	assert.Equal(t, map[string][]string{
		"1 @ 123 Main Street":            {"0", "1"},
		"1 @ 123 Main Street Building 2": {"2", "3"},
		"1 @ 435 Broad Avenue":           {"4", "5"},
		"1 @ 12319 Wide Road":            {"6", "7"},
		"1 @ 67 Nowhere Drive":           {"8", "9"},
	}, byName)
}

func TestSalesOrderParents(t *testing.T) {
	batch := records(join(
		times(1, "123 Main Street"),
		times(4, "123 Main Street Building 1"),
		times(1, "345 Broad Avenue"),
		times(4, "345 Broad Avenue Warehouse 2"),
		times(2, "9 Elm Street Building 3"),
	)...)
	for i := 5; i < 10; i++ {
		batch[i].City = "SEATTLE"
	}

	locs := curateSalesOrder(t, batch)
	require.Len(t, locs, 5)

	parents := make(map[string]string)
	for _, l := range locs {
		parents[l.Name] = l.MainName
	}
	assert.Equal(t, "1 @ 123 Main Street", parents["1 @ 123 Main Street Building 1"])
	assert.Equal(t, "1 @ 345 Broad Avenue", parents["1 @ 345 Broad Avenue Warehouse 2"])
	assert.Equal(t, "", parents["1 @ 9 Elm Street Building 3"])
}

func TestSalesOrderAutoLabel(t *testing.T) {
	tables := normalize.DefaultTables()
	curator := NewSalesOrder(tables, nil)
	curator.newID = sequentialIDs()

	res, err := Run(context.Background(), curator, tables, records("123 Main Street", "123 Main St", "45 Elm Ave"), Options{SimpleMode: true, AutoLabel: true})
	require.NoError(t, err)
	require.Len(t, res.Associations, 3)

	ids := make(map[string]bool)
	for _, l := range res.Locations {
		ids[l.ID] = true
	}
	for _, a := range res.Associations {
		assert.Equal(t, 1.0, a.Score)
		assert.Equal(t, match.MethodAutoLabel, a.Method)
		assert.True(t, ids[a.LocationID])
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

type fakeGeocoder struct {
	err  error
	reqs []geocode.Request
}

func (f *fakeGeocoder) Resolve(_ context.Context, reqs []geocode.Request) ([]geocode.Result, error) {
	f.reqs = append(f.reqs, reqs...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]geocode.Result, len(reqs))
	for i := range reqs {
		out[i] = geocode.Result{Latitude: 47.0 + float64(i), Longitude: -122.9, Accuracy: 0.9, Level: "rooftop", Found: true}
	}
	return out, nil
}

func TestSalesOrderGeocoding(t *testing.T) {
	tables := normalize.DefaultTables()

	t.Run("coordinates are attached", func(t *testing.T) {
		g := &fakeGeocoder{}
		curator := NewSalesOrder(tables, g)
		res, err := Run(context.Background(), curator, tables, records("123 Main Street"), Options{})
		require.NoError(t, err)
		require.NoError(t, res.GeocodeErr)
		require.Len(t, res.Locations, 1)
		assert.True(t, res.Locations[0].Geocoded)
		assert.Equal(t, 47.0, res.Locations[0].Latitude)
		assert.Equal(t, "rooftop", res.Locations[0].Level)
		require.Len(t, g.reqs, 1)
		assert.Equal(t, geocode.Request{Street: "123 Main Street", City: "OLYMPIA", State: "WA", Zip: "12345", Organization: "TEST"}, g.reqs[0])
	})

	t.Run("low accuracy is discarded", func(t *testing.T) {
		curator := NewSalesOrder(tables, &fakeGeocoder{})
		res, err := Run(context.Background(), curator, tables, records("123 Main Street"), Options{GeocodeAccuracyThreshold: 0.95})
		require.NoError(t, err)
		assert.False(t, res.Locations[0].Geocoded)
	})

	t.Run("failure keeps rows", func(t *testing.T) {
		curator := NewSalesOrder(tables, &fakeGeocoder{err: errors.New("vendor down")})
		res, err := Run(context.Background(), curator, tables, records("123 Main Street", "45 Elm Ave"), Options{})
		require.NoError(t, err)
		require.Error(t, res.GeocodeErr)
		assert.Len(t, res.Locations, 2)
		for _, l := range res.Locations {
			assert.False(t, l.Geocoded)
		}
	})
}

func TestSoldTo(t *testing.T) {
	tables := normalize.DefaultTables()
	curator := NewSoldTo(tables, normalize.NewZipStates(), nil)
	curator.newID = sequentialIDs()

	batch := records("123 Main Street", "123 Main Street Building 1", "Hwy 59 & Conde St", "9 Elm St")
	batch[0].State = ""
	batch[0].Zip5 = "98501"
	batch[1].Zip5 = "98501"
	batch[3].Zip5 = "98501"

	prepared, err := curator.Preprocess(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, "WA", prepared[0].State)
	assert.Equal(t, "", batch[0].State)

	res, err := Run(context.Background(), curator, tables, batch, Options{SimpleMode: true, AutoLabel: true})
	require.NoError(t, err)
	require.Len(t, res.Locations, 2)

	byName := make(map[string]Location)
	for _, l := range res.Locations {
		byName[l.Name] = l
	}
	main, ok := byName["1 @ 123 Main Street Olympia WA 98501"]
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"0", "1"}, main.DimensionIDs)
	assert.Equal(t, "Olympia", main.City)
	assert.Empty(t, main.Sublocation)
	_, ok = byName["1 @ 9 Elm Street Olympia WA 98501"]
	assert.True(t, ok)
	assert.Len(t, res.Associations, 3)
}

func TestAutocurateEmptyBatch(t *testing.T) {
	tables := normalize.DefaultTables()
	_, err := NewSalesOrder(tables, nil).Autocurate(context.Background(), nil, Options{SimpleMode: true})
	assert.True(t, errors.Is(err, ErrEmptyBatch))
	_, err = NewSoldTo(tables, normalize.NewZipStates(), nil).Autocurate(context.Background(), nil, Options{SimpleMode: true})
	assert.True(t, errors.Is(err, ErrEmptyBatch))
}
