package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New(nil)

	m.ScopesProcessed.WithLabelValues("salesorder", "small").Inc()
	m.ScopesProcessed.WithLabelValues("salesorder", "small").Inc()
	m.Associations.WithLabelValues("marker").Add(3)
	m.ObserveStage("precurate")()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rainger_scopes_processed_total{group="small",kind="salesorder"} 2`)
	assert.Contains(t, rec.Body.String(), `rainger_associations_total{method="marker"} 3`)
	assert.Contains(t, rec.Body.String(), "rainger_stage_duration_seconds")
}

func TestNewIsIndependentPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
