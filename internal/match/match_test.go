package match

import (
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m25mathews/rainger-poc/internal/normalize"
)

type opsRow struct {
	id, street, city, state, zip, subloc string
}

// Deliberately out of id order.
var testOps = []opsRow{
	{"3", "1989 Ehemann Drive", "Antioch", "CA", "94509", "Building 1"},
	{"1", "123 Main Street", "Tullahoma", "TN", "37130", ""},
	{"2", "456 Broad Street", "Columbus", "OH", "43081", ""},
}

type dimRow struct {
	street, city, state, zip, department, attention string
}

var testDims = []dimRow{
	{"123main stret", "Tullahoma", "TN", "37130", "", ""},
	{"123 Maine St", "Tullahoma", "TN", "37131", "", ""},
	{"123 main strt", "Tullahoma", "TN", "37311", "", ""},
	{"Main Street", "Tullahoma", "TN", "37130", "", ""},
	{"456 Broad St", "Columbus", "OH", "43081", "", ""},
	{"45 Broad Street", "Columbus", "OH", "40318", "", ""},
	{"456 Brod Street SEE GEORGE", "Columbus", "OH", "43210", "", ""},
	{"1989 Ehemann Dr bldg1", "Antioch", "CA", "94509", "", ""},
	{"aasdfefj 1989 Ehemann Drive 31fasd", "Antioch", "CA", "90210", "Building 1", ""},
	{"1989eman dr", "Antioch", "CA", "94510", "", "Bldg 1"},
}

const wantLocations = "1111222333"

func candidates(t *testing.T) []Candidate {
	t.Helper()
	out := make([]Candidate, len(testOps))
	for i, o := range testOps {
		marker, _ := normalize.InferMarker(o.subloc)
		out[i] = Candidate{
			ID:             o.id,
			OrganizationID: "ORG1",
			Text:           normalize.JoinFields(o.street, o.subloc, o.city, o.state, o.zip),
			Marker:         marker,
		}
	}
	return out
}

func dimensions(org string) []Dimension {
	out := make([]Dimension, len(testDims))
	for i, d := range testDims {
		out[i] = Dimension{
			ID:             strconv.Itoa(i),
			OrganizationID: org,
			State:          d.state,
			Text:           normalize.JoinFields(d.department, d.attention, d.street, d.city, d.state, d.zip),
		}
	}
	return out
}

func rankedIDs(cands []Candidate, ranks []Ranked) string {
	var s string
	for _, r := range ranks {
		if r.Index < 0 {
			s += "-"
			continue
		}
		s += cands[r.Index].ID
	}
	return s
}

func byDimension(assocs []Association) map[string]Association {
	out := make(map[string]Association, len(assocs))
	for _, a := range assocs {
		out[a.DimensionID] = a
	}
	return out
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "123 Main Street", b: "123 Main Street", want: 1},
		{name: "case and punctuation", a: "123 Main St.", b: "123 main st", want: 1},
		{name: "subset", a: "Main Street Tullahoma", b: "123 Main Street Tullahoma TN", want: 1},
		{name: "order", a: "Street Main 123", b: "123 Main Street", want: 1},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "empty", a: "", b: "123 Main Street", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenSetRatio(tt.a, tt.b), 1e-9)
		})
	}

	partial := TokenSetRatio("123 Maine St Tullahoma", "123 Main Street Tullahoma")
	assert.Greater(t, partial, 0.5)
	assert.Less(t, partial, 1.0)
}

func TestRank(t *testing.T) {
	cands := candidates(t)
	ranks := Rank(cands, dimensions("ORG1"))
	assert.Equal(t, wantLocations, rankedIDs(cands, ranks))
}

func TestRankChunksMatchesRank(t *testing.T) {
	cands := candidates(t)
	dims := dimensions("ORG1")
	want := Rank(cands, dims)

	for _, n := range []int{1, 2, 3, 10, len(cands)} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			assert.Equal(t, want, RankChunks(cands, dims, n))
		})
	}
}

func TestRankTiesKeepLowerIndex(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Text: "1 Main Street"},
		{ID: "b", Text: "1 Main Street"},
		{ID: "c", Text: "1 Main Street"},
	}
	dims := []Dimension{{ID: "d", Text: "1 Main Street"}}
	for _, n := range []int{1, 2, 3} {
		assert.Equal(t, []Ranked{{Index: 0, Score: 1}}, RankChunks(cands, dims, n))
	}
}

func TestRankRespectsOrganization(t *testing.T) {
	cands := candidates(t)
	ranks := Rank(cands, dimensions("ORG2"))
	for _, r := range ranks {
		assert.Equal(t, -1, r.Index)
	}
}

func TestMatchMarkers(t *testing.T) {
	cands := candidates(t)
	hits := NewResolver(nil, DefaultOptions()).MatchMarkers(cands, dimensions("ORG1"))

	var marked []int
	for di, h := range hits {
		if len(h) == 0 {
			continue
		}
		marked = append(marked, di)
		require.Len(t, h, 1)
		assert.Equal(t, "3", cands[h[0]].ID)
	}
	assert.Equal(t, []int{7, 8, 9}, marked)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		methods   map[string]Method
	}{
		{
			name:      "learned tier",
			threshold: 0.8,
			methods: map[string]Method{
				"0": MethodLearned, "4": MethodLearned, "6": MethodLearned,
				"7": MethodMarker, "8": MethodMarker, "9": MethodMarker,
			},
		},
		{
			name:      "fuzzy answers stand without training data",
			threshold: 1.1,
			methods: map[string]Method{
				"0": MethodFuzzy, "4": MethodFuzzy, "6": MethodFuzzy,
				"7": MethodMarker,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.RankThreshold = tt.threshold
			opts.Chunks = 2
			assocs := NewResolver(normalize.NewMarkerCache(), opts).Resolve(dimensions("ORG1"), candidates(t))
			require.Len(t, assocs, len(testDims))

			got := byDimension(assocs)
			var ids string
			for i := range testDims {
				ids += got[strconv.Itoa(i)].LocationID
			}
			assert.Equal(t, wantLocations, ids)
			for dim, method := range tt.methods {
				assert.Equal(t, method, got[dim].Method, dim)
			}
			for _, a := range assocs {
				assert.Greater(t, a.Score, 0.0)
				assert.LessOrEqual(t, a.Score, 1.0+1e-9)
			}
		})
	}
}

func TestResolveNoCandidates(t *testing.T) {
	r := NewResolver(nil, DefaultOptions())
	assert.Empty(t, r.Resolve(dimensions("ORG2"), candidates(t)))
	assert.Empty(t, r.Resolve(dimensions("ORG1"), nil))
}

func TestNeighborsReproduceTrainingLabels(t *testing.T) {
	texts := []string{
		"123 Main Street Tullahoma TN 37130",
		"456 Broad Street Columbus OH 43081",
		"1989 Ehemann Drive Antioch CA 94509",
		"Building 1 1989 Ehemann Drive Antioch CA 94509",
	}
	labels := []string{"1", "2", "3", "4"}

	for _, k := range []int{0, 1} {
		model := FitNeighbors(texts, labels, k)
		for i, text := range texts {
			label, score := model.Predict(text)
			assert.Equal(t, labels[i], label)
			assert.InDelta(t, 1.0, score, 1e-9)
		}
	}

	label, _ := FitNeighbors(texts, labels, 1).Predict("123 main st tullahoma")
	assert.Equal(t, "1", label)
}

func TestNeighborsVote(t *testing.T) {
	texts := []string{"10 Oak Lane Springfield", "10 Oak Lane Springfield IL", "10 Oak Lane Springfield 62701", "99 Pine Road Dayton"}
	labels := []string{"a", "a", "a", "b"}
	label, score := FitNeighbors(texts, labels, 3).Predict("10 Oak Ln Springfield")
	assert.Equal(t, "a", label)
	assert.Greater(t, score, 0.0)

	empty := FitNeighbors(nil, nil, 1)
	label, score = empty.Predict("anything")
	assert.Empty(t, label)
	assert.Zero(t, score)
}

func TestMatchFirmographics(t *testing.T) {
	firms := []Firmographic{
		{ID: "456", Street: "456 Broad Ave", City: "Columbus", State: "OH", Zip5: "43081"},
		{ID: "789", Street: "1988 Eheman Dr", City: "Antioch", State: "CA", Zip5: "94509"},
		{ID: "123", Street: "123 Main St", City: "Tullahoma", State: "TN", Zip5: "37130"},
	}

	for _, n := range []int{1, 10} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			assocs := MatchFirmographics(candidates(t), firms, n)
			got := make(map[string]string)
			for _, a := range assocs {
				got[a.LocationID] = a.DimensionID
				assert.Equal(t, MethodFuzzy, a.Method)
			}
			assert.Equal(t, map[string]string{"1": "123", "2": "456", "3": "789"}, got)
		})
	}
}

func TestMatchKeepstock(t *testing.T) {
	records := []Keepstock{
		{ID: "0", Address1: "123 Main Street", City: "Tullahoma", Province: "TN", Zip5: "37130", Account: "08123"},
		{ID: "1", Address1: "12 Main St", City: "Tullahoma", Province: "TN", Zip5: "37130", Account: "08123"},
		{ID: "2", Address1: "45 Broad Ave", City: "Columbus", Province: "OH", Zip5: "43081", Account: "08234"},
		{ID: "3", Address1: "1989 Ehemann Dr", City: "Antioch", Province: "CA", Zip5: "94509", Account: "08345"},
	}
	assocs := MatchKeepstock(records, candidates(t), 1)
	got := byDimension(assocs)
	require.Len(t, got, 4)
	assert.Equal(t, "1", got["0"].LocationID)
	assert.Equal(t, "1", got["1"].LocationID)
	assert.Equal(t, "2", got["2"].LocationID)
	assert.Equal(t, "3", got["3"].LocationID)
}

func TestMatchStrict(t *testing.T) {
	tables := normalize.DefaultTables()

	cands := make([]Candidate, len(testOps))
	for i, o := range testOps {
		cands[i] = Candidate{ID: o.id, OrganizationID: "ORG1", Text: CanonicalText(tables, o.street, o.city, o.state, o.zip)}
	}
	dimsFor := func(org string) []Dimension {
		out := make([]Dimension, len(testDims))
		for i, d := range testDims {
			out[i] = Dimension{ID: strconv.Itoa(i), OrganizationID: org, Text: CanonicalText(tables, d.street, d.city, d.state, d.zip)}
		}
		return out
	}

	t.Run("exact matches", func(t *testing.T) {
		assocs := MatchStrict(dimsFor("ORG1"), cands)
		sort.Slice(assocs, func(i, j int) bool { return assocs[i].DimensionID < assocs[j].DimensionID })
		assert.Equal(t, []Association{
			{DimensionID: "4", LocationID: "2", Score: 1, Method: MethodExact},
			{DimensionID: "7", LocationID: "3", Score: 1, Method: MethodExact},
		}, assocs)
	})

	t.Run("different organizations", func(t *testing.T) {
		dims := dimsFor("ORG2")
		assert.Empty(t, MatchStrict(dims, cands))
		for _, d := range dims {
			for _, c := range cands {
				assert.Zero(t, StrictScore(d, c))
			}
		}
	})

	assert.Equal(t, "456 broad street columbus oh 43081", CanonicalText(tables, "456 Broad St", "Columbus", "OH", "43081"))
}
