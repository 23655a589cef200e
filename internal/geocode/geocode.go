// Package geocode resolves street addresses to coordinates through a cache
// in front of the Geocodio batch API.
package geocode

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/resilience"
)

// ErrNoAPIKey is returned when the vendor client is built without a key.
var ErrNoAPIKey = errors.New("geocodio api key is not configured")

const (
	// DefaultChunkSize is the largest batch the vendor accepts.
	DefaultChunkSize      = 10000
	defaultAPITimeout     = 60 * time.Minute
	defaultResolveTimeout = 15 * time.Minute
)

// Config holds the vendor and orchestration settings.
type Config struct {
	APIKey         string                 `koanf:"api_key"`
	URL            string                 `koanf:"url"`
	ChunkSize      int                    `koanf:"chunk_size"`
	APITimeout     time.Duration          `koanf:"api_timeout"`
	ResolveTimeout time.Duration          `koanf:"resolve_timeout"`
	HTTPTimeout    time.Duration          `koanf:"http_timeout"`
	Retry          resilience.RetryConfig `koanf:"retry"`
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 || c.ChunkSize > DefaultChunkSize {
		c.ChunkSize = DefaultChunkSize
	}
	if c.APITimeout <= 0 {
		c.APITimeout = defaultAPITimeout
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = defaultResolveTimeout
	}
	return c
}

// Request is one address to geocode. The organization is part of the cache
// key only; it is never sent to the vendor.
type Request struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Organization string `json:"organization"`
}

// Key identifies the request in caches.
func (r Request) Key() string {
	return strings.Join([]string{
		strings.TrimSpace(r.Street),
		strings.TrimSpace(r.City),
		strings.TrimSpace(r.State),
		strings.TrimSpace(r.Zip),
		strings.TrimSpace(r.Organization),
	}, "\x1f")
}

// Line renders the one-line form sent to the vendor: "street city, state zip".
func (r Request) Line() string {
	return strings.TrimSpace(r.Street) + " " + strings.TrimSpace(r.City) + ", " +
		strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zip)
}

// Result is the vendor's best match for a request. Found is false when the
// vendor had no match; the other fields are then zero.
type Result struct {
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lon"`
	Accuracy         float64 `json:"accuracy"`
	Level            string  `json:"type"`
	FormattedAddress string  `json:"formatted_address"`
	Found            bool    `json:"found"`
}
