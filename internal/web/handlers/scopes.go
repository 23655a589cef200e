package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/m25mathews/rainger-poc/internal/scope"
)

// ScopesHandler lists the scope files of the current run.
type ScopesHandler struct {
	Dir    string
	Logger *slog.Logger
}

// ScopesResponse summarizes the scope files on disk.
type ScopesResponse struct {
	Files  []scope.Listing `json:"files"`
	Scopes int             `json:"scopes"`
	Keys   int             `json:"keys"`
}

// List returns the scope files, optionally filtered by ?kind= and capped
// by ?limit=.
func (h *ScopesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var kind scope.Kind
	if raw := q.Get("kind"); raw != "" {
		k, err := scope.ParseKind(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		kind = k
	}
	limit := cast.ToInt(q.Get("limit"))

	listings, err := scope.List(h.Dir)
	if err != nil {
		h.Logger.Error("listing scope files failed", "dir", h.Dir, "error", err)
		http.Error(w, "Scope files unavailable", http.StatusInternalServerError)
		return
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].Name < listings[j].Name })

	resp := ScopesResponse{Files: []scope.Listing{}}
	for _, l := range listings {
		if kind != "" && !strings.HasPrefix(l.Name, string(kind)+"_scopes") {
			continue
		}
		if limit > 0 && len(resp.Files) == limit {
			break
		}
		resp.Files = append(resp.Files, l)
		resp.Scopes += l.Scopes
		resp.Keys += l.Keys
	}
	writeJSON(w, http.StatusOK, resp)
}
