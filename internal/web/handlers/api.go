package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/m25mathews/rainger-poc/internal/store"
)

// StatsReader returns the most recent run statistics.
type StatsReader interface {
	LatestStats(ctx context.Context) ([]store.Metric, error)
}

// APIHandler handles general API endpoints
type APIHandler struct {
	Stats  StatsReader
	Logger *slog.Logger
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// StatsResponse groups the latest run metrics by table.
type StatsResponse struct {
	RunID   string                    `json:"run_id,omitempty"`
	Tables  map[string][]store.Metric `json:"tables"`
	Metrics int                       `json:"metrics"`
}

// Health reports that the server is up.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

// GetStats returns the statistics of the latest run.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil {
		http.Error(w, "Statistics unavailable", http.StatusServiceUnavailable)
		return
	}
	metrics, err := h.Stats.LatestStats(r.Context())
	if err != nil {
		h.Logger.Error("reading run statistics failed", "error", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{Tables: make(map[string][]store.Metric), Metrics: len(metrics)}
	for _, m := range metrics {
		resp.RunID = m.RunID
		resp.Tables[m.FullName] = append(resp.Tables[m.FullName], m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
