package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m25mathews/rainger-poc/internal/resilience"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestClientGeocode(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/geocode", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"query":"100 Grainger Parkway Lake Forest, IL 60045","response":{"results":[
				{"formatted_address":"100 Grainger Pkwy, Lake Forest, IL 60045","location":{"lat":42.26,"lng":-87.89},"accuracy":1,"accuracy_type":"rooftop"},
				{"formatted_address":"100 Grainger Pkwy, Lake Forest, IL","location":{"lat":42.2,"lng":-87.8},"accuracy":0.5,"accuracy_type":"street_center"}
			]}},
			{"query":"nowhere","response":{"results":[]}}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "secret", URL: srv.URL})
	require.NoError(t, err)

	res, err := c.Geocode(context.Background(), []string{"100 Grainger Parkway Lake Forest, IL 60045", "nowhere"})
	require.NoError(t, err)
	assert.Equal(t, []string{"100 Grainger Parkway Lake Forest, IL 60045", "nowhere"}, got)
	require.Len(t, res, 2)
	assert.Equal(t, Result{
		Latitude:         42.26,
		Longitude:        -87.89,
		Accuracy:         1,
		Level:            "rooftop",
		FormattedAddress: "100 Grainger Pkwy, Lake Forest, IL 60045",
		Found:            true,
	}, res[0])
	assert.False(t, res[1].Found)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int
	}{
		{name: "bad key is not retried", status: http.StatusForbidden, body: `{"error":"Invalid API key"}`, wantCalls: 1},
		{name: "rate limited is retried", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantCalls: 2},
		{name: "server error is retried", status: http.StatusInternalServerError, body: `oops`, wantCalls: 2},
		{name: "short response", status: http.StatusOK, body: `{"results":[]}`, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{APIKey: "k", URL: srv.URL})
			require.NoError(t, err)

			cfg := resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
			err = resilience.Retry(context.Background(), "test", cfg, func() error {
				_, err := c.Geocode(context.Background(), []string{"1 Main Street Olympia, WA 98501"})
				return err
			})
			require.Error(t, err)
			assert.Equal(t, int32(tt.wantCalls), calls.Load())
		})
	}
}

func TestRequestForms(t *testing.T) {
	r := Request{Street: " 1 Main Street", City: "Olympia ", State: "WA", Zip: "98501", Organization: "ACME"}
	assert.Equal(t, "1 Main Street Olympia, WA 98501", r.Line())

	other := r
	other.Organization = "OTHER"
	assert.NotEqual(t, r.Key(), other.Key())
	assert.Equal(t, redisKey(r), redisKey(Request{Street: "1 Main Street", City: "Olympia", State: "WA", Zip: "98501", Organization: "ACME"}))
	assert.NotEqual(t, redisKey(r), redisKey(other))
}
