package curate

import (
	"github.com/m25mathews/rainger-poc/internal/normalize"
)

// DimensionRecord is one raw location record as fetched from a source
// system. Records are never modified after they are fetched.
type DimensionRecord struct {
	ID               string `json:"id"`
	StreetNum        string `json:"street_num"`
	Street           string `json:"street"`
	City             string `json:"city"`
	State            string `json:"state"`
	Zip5             string `json:"zip5"`
	Department       string `json:"department"`
	Attention        string `json:"attention"`
	Supplemental     string `json:"supplemental"`
	Receiver         string `json:"receiver"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`

	SoldAccount  string `json:"sold_account,omitempty"`
	ShipAccount  string `json:"ship_account,omitempty"`
	TrackCode    string `json:"track_code,omitempty"`
	SubTrackCode string `json:"sub_track_code,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Describe is the free-text form used for marker and fuzzy matching.
func (d DimensionRecord) Describe() string {
	return normalize.JoinFields(
		d.Department, d.Attention, d.Supplemental, d.Receiver,
		d.StreetNum, d.Street, d.City, d.State, d.Zip5,
	)
}

// DescribeRow is Describe with the account fields in front.
func (d DimensionRecord) DescribeRow() string {
	return normalize.JoinFields(
		d.SoldAccount, d.ShipAccount, d.TrackCode, d.SubTrackCode,
		d.Describe(), d.Country,
	)
}

// Location is a canonical (OPS) location.
type Location struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	MainName         string   `json:"main_name,omitempty"`
	Street           string   `json:"street"`
	Sublocation      string   `json:"sublocation,omitempty"`
	City             string   `json:"city"`
	State            string   `json:"state"`
	Zip5             string   `json:"zip5"`
	Marker           string   `json:"marker,omitempty"`
	OrganizationID   string   `json:"organization_id"`
	OrganizationName string   `json:"organization_name"`
	Latitude         float64  `json:"latitude,omitempty"`
	Longitude        float64  `json:"longitude,omitempty"`
	Accuracy         float64  `json:"geocode_accuracy,omitempty"`
	Level            string   `json:"geocode_level,omitempty"`
	Geocoded         bool     `json:"geocoded"`
	IsAddress        bool     `json:"is_address"`
	IsBuilding       bool     `json:"is_building"`
	IsSite           bool     `json:"is_site"`
	IsResidential    bool     `json:"is_residential"`
	Curated          bool     `json:"curated"`
	RawCount         int      `json:"raw_count"`
	DimensionIDs     []string `json:"dimension_ids,omitempty"`
}

// Describe is the free-text form used for fuzzy matching.
func (l Location) Describe() string {
	return normalize.JoinFields(l.Street, l.Sublocation, l.City, l.State, l.Zip5)
}

// Key identifies a location within one batch.
type Key struct {
	Street         string
	City           string
	State          string
	Zip5           string
	Sublocation    string
	OrganizationID string
}

// Key returns the batch key of l.
func (l Location) Key() Key {
	return Key{
		Street:         l.Street,
		City:           l.City,
		State:          l.State,
		Zip5:           l.Zip5,
		Sublocation:    l.Sublocation,
		OrganizationID: l.OrganizationID,
	}
}

// Precurated is a record after row-level inference and batch consensus.
type Precurated struct {
	DimensionRecord

	Address        string `json:"address"`
	Sublocation1   string `json:"sublocation_lvl1"`
	Sublocation2   string `json:"sublocation_lvl2"`
	Marker         string `json:"marker,omitempty"`
	IsIntersection bool   `json:"is_intersection"`

	AddressCount        int `json:"address_count"`
	AddressCityZipCount int `json:"address_city_zip_count"`
	SublocationCount    int `json:"sublocation_count"`
	RawCount            int `json:"raw_count"`
}
