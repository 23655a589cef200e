package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/m25mathews/rainger-poc/internal/normalize"
	"github.com/m25mathews/rainger-poc/internal/postal"
)

// NormalizeHandler parses and normalizes one-line addresses.
type NormalizeHandler struct {
	Parser   postal.Parser
	Tables   *normalize.Tables
	Validate *validator.Validate
	Logger   *slog.Logger
}

// NormalizeRequest is the POST body: one address or a batch.
type NormalizeRequest struct {
	Address   string   `json:"address" validate:"required_without=Addresses,max=500"`
	Addresses []string `json:"addresses" validate:"omitempty,max=1000,dive,required,max=500"`
}

// NormalizeResponse holds one result per requested address.
type NormalizeResponse struct {
	Results []postal.Normalized `json:"results"`
}

// Get normalizes the address query parameter.
func (h *NormalizeHandler) Get(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "address parameter is required"})
		return
	}
	writeJSON(w, http.StatusOK, postal.Normalize(h.Parser, h.Tables, address))
}

// Post normalizes the addresses of a JSON body.
func (h *NormalizeHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, validationError(err))
		return
	}

	addresses := req.Addresses
	if req.Address != "" {
		addresses = append([]string{req.Address}, addresses...)
	}
	resp := NormalizeResponse{Results: make([]postal.Normalized, 0, len(addresses))}
	for _, a := range addresses {
		resp.Results = append(resp.Results, postal.Normalize(h.Parser, h.Tables, strings.TrimSpace(a)))
	}
	h.Logger.Debug("addresses normalized", "count", len(addresses))
	writeJSON(w, http.StatusOK, resp)
}

func validationError(err error) ErrorResponse {
	resp := ErrorResponse{Error: "invalid request"}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return resp
	}
	resp.Fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		resp.Fields[fe.Field()] = fe.Tag()
	}
	return resp
}
