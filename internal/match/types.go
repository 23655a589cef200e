// Package match associates dimension records with canonical locations in
// three tiers: sub-location markers, fuzzy ranking and a learned
// nearest-neighbour classifier.
package match

// Method names the tier that produced an association.
type Method string

const (
	MethodMarker    Method = "marker"
	MethodFuzzy     Method = "fuzzy"
	MethodLearned   Method = "learned"
	MethodExact     Method = "exact"
	MethodAutoLabel Method = "autolabel"
)

// Association links one dimension record to one canonical location.
type Association struct {
	DimensionID string  `json:"dim_location_id"`
	LocationID  string  `json:"ops_location_id"`
	Score       float64 `json:"ops_match_score"`
	Method      Method  `json:"method"`
}

// Dimension is a record to be resolved, reduced to its descriptive text.
type Dimension struct {
	ID             string
	OrganizationID string
	State          string
	Text           string
}

// Candidate is a canonical location a dimension can resolve to.
type Candidate struct {
	ID             string
	OrganizationID string
	Text           string
	Marker         string // empty for address-level locations
}

// Ranked is the best candidate for one dimension. Index is -1 when no
// candidate shares the dimension's organization.
type Ranked struct {
	Index int
	Score float64
}

// Options tune the resolver.
type Options struct {
	RankThreshold float64 `koanf:"rank_threshold"` // fuzzy scores below this are not used for training
	Chunks        int     `koanf:"chunks"`         // candidate chunks for fuzzy ranking
	Neighbors     int     `koanf:"neighbors"`      // k of the learned tier
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		RankThreshold: 0.8,
		Chunks:        1,
		Neighbors:     1,
	}
}

// sameOrganization treats an empty organization as a wildcard; firmographic
// and keepstock records carry none.
func sameOrganization(a, b string) bool {
	return a == "" || b == "" || a == b
}
