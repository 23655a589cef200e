package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/resilience"
)

const defaultGeocodioURL = "https://api.geocod.io/v1.7"

// Client calls the Geocodio batch geocoding endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a vendor client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	base := cfg.URL
	if base == "" {
		base = defaultGeocodioURL
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

type batchResponse struct {
	Results []struct {
		Query    string `json:"query"`
		Response struct {
			Results []struct {
				FormattedAddress string `json:"formatted_address"`
				Location         struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
				Accuracy     float64 `json:"accuracy"`
				AccuracyType string  `json:"accuracy_type"`
			} `json:"results"`
		} `json:"response"`
	} `json:"results"`
}

// Geocode sends one batch of one-line addresses and returns the best match
// for each, in input order. Client errors other than rate limiting are
// marked permanent so that callers do not retry them.
func (c *Client) Geocode(ctx context.Context, addresses []string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(addresses)
	if err != nil {
		return nil, errors.Wrap(err, "encode batch")
	}

	endpoint := c.baseURL + "/geocode?" + url.Values{"api_key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build geocodio request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call geocodio")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Errorf("geocodio returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode geocodio response")
	}
	if len(decoded.Results) != len(addresses) {
		return nil, errors.Errorf("geocodio returned %d results for %d addresses", len(decoded.Results), len(addresses))
	}

	out := make([]Result, len(addresses))
	for i, r := range decoded.Results {
		if len(r.Response.Results) == 0 {
			continue
		}
		best := r.Response.Results[0]
		out[i] = Result{
			Latitude:         best.Location.Lat,
			Longitude:        best.Location.Lng,
			Accuracy:         best.Accuracy,
			Level:            best.AccuracyType,
			FormattedAddress: best.FormattedAddress,
			Found:            true,
		}
	}
	return out, nil
}
