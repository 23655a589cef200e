package residential

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/resilience"
)

// ServiceConfig points at one validation service.
type ServiceConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
	// Indicator is the delivery indicator value meaning residential,
	// "Residential" for UPS and "R" for SVS.
	Indicator string        `koanf:"indicator"`
	Timeout   time.Duration `koanf:"timeout"`
}

// HTTPValidator posts address batches to a validation service that answers
// with a residential delivery indicator per address id.
type HTTPValidator struct {
	name string
	cfg  ServiceConfig
	http *http.Client
}

// NewHTTPValidator creates a validator called name.
func NewHTTPValidator(name string, cfg ServiceConfig) (*HTTPValidator, error) {
	if cfg.URL == "" {
		return nil, errors.Errorf("%s: url is not configured", name)
	}
	if cfg.Indicator == "" {
		return nil, errors.Errorf("%s: residential indicator is not configured", name)
	}
	return &HTTPValidator{
		name: name,
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (v *HTTPValidator) Name() string { return v.name }

type indicatorResponse struct {
	ID  string `json:"id"`
	RDI string `json:"rdi"`
}

func (v *HTTPValidator) Residential(ctx context.Context, addrs []Address) ([]bool, error) {
	body, err := json.Marshal(map[string][]Address{"addresses": addrs})
	if err != nil {
		return nil, errors.Wrap(err, "encode addresses")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", v.name)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+v.cfg.Token)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", v.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Errorf("%s returned %d: %s", v.name, resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var decoded []indicatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", v.name)
	}
	byID := make(map[string]bool, len(decoded))
	for _, d := range decoded {
		byID[d.ID] = byID[d.ID] || d.RDI == v.cfg.Indicator
	}

	out := make([]bool, len(addrs))
	for i, a := range addrs {
		out[i] = byID[a.ID]
	}
	return out, nil
}
