package match

import (
	"strings"

	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// Firmographic is a third-party business location record.
type Firmographic struct {
	ID     string `json:"id"`
	Street string `json:"phys_strt_ad"`
	City   string `json:"phys_cty"`
	State  string `json:"phys_st_abrv"`
	Zip5   string `json:"phys_zip5"`
}

func (f Firmographic) Describe() string {
	return normalize.JoinFields(f.Street, f.City, f.State, f.Zip5)
}

// Keepstock is an inventory-program ship-to record.
type Keepstock struct {
	ID       string `json:"id"`
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip5     string `json:"zip5"`
	Account  string `json:"account"`
}

func (k Keepstock) Describe() string {
	return normalize.JoinFields(k.Address1, k.City, k.Province, k.Zip5)
}

// MatchFirmographics finds the best firmographic record for every
// location. The association runs from the firmographic record to the
// location.
func MatchFirmographics(locations []Candidate, firms []Firmographic, chunks int) []Association {
	cands := make([]Candidate, len(firms))
	for i, f := range firms {
		cands[i] = Candidate{ID: f.ID, Text: f.Describe()}
	}
	dims := make([]Dimension, len(locations))
	for i, l := range locations {
		dims[i] = Dimension{ID: l.ID, Text: l.Text}
	}

	var out []Association
	for i, r := range RankChunks(cands, dims, chunks) {
		if r.Index < 0 || r.Score <= 0 {
			continue
		}
		out = append(out, Association{
			DimensionID: firms[r.Index].ID,
			LocationID:  locations[i].ID,
			Score:       r.Score,
			Method:      MethodFuzzy,
		})
	}
	return out
}

// MatchKeepstock finds the best location for every keepstock record.
func MatchKeepstock(records []Keepstock, locations []Candidate, chunks int) []Association {
	dims := make([]Dimension, len(records))
	for i, k := range records {
		dims[i] = Dimension{ID: k.ID, Text: k.Describe()}
	}

	var out []Association
	for i, r := range RankChunks(locations, dims, chunks) {
		if r.Index < 0 || r.Score <= 0 {
			continue
		}
		out = append(out, Association{
			DimensionID: records[i].ID,
			LocationID:  locations[r.Index].ID,
			Score:       r.Score,
			Method:      MethodFuzzy,
		})
	}
	return out
}

// CanonicalText is the comparison form used by strict matching: the
// normalized street followed by the remaining fields, lower-cased with
// single spaces.
func CanonicalText(t *normalize.Tables, street string, rest ...string) string {
	address := t.Infer(normalize.RowInput{Street: street}).Address
	fields := append([]string{address}, rest...)
	return strings.Join(words(normalize.JoinFields(fields...)), " ")
}

// StrictScore is 1 when both organizations are set and equal and the
// canonical texts are identical, 0 otherwise.
func StrictScore(d Dimension, c Candidate) float64 {
	if d.OrganizationID == "" || d.OrganizationID != c.OrganizationID {
		return 0
	}
	if d.Text == "" || d.Text != c.Text {
		return 0
	}
	return 1
}

// MatchStrict is the sold-to resolver: each dimension is associated with
// the first candidate it scores 1 against. Texts must already be in
// CanonicalText form.
func MatchStrict(dims []Dimension, cands []Candidate) []Association {
	index := make(map[string]int, len(cands))
	for i := len(cands) - 1; i >= 0; i-- {
		index[cands[i].OrganizationID+"\x1f"+cands[i].Text] = i
	}

	var out []Association
	for _, d := range dims {
		ci, ok := index[d.OrganizationID+"\x1f"+d.Text]
		if !ok || StrictScore(d, cands[ci]) == 0 {
			continue
		}
		out = append(out, Association{
			DimensionID: d.ID,
			LocationID:  cands[ci].ID,
			Score:       1,
			Method:      MethodExact,
		})
	}
	return out
}
