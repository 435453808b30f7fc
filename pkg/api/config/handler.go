// Package config serves the effective pipeline settings to operators.
package config

import (
	"encoding/json"
	"net/http"

	appconfig "filing_valuation/pkg/config"
)

// Handler holds dependencies for config endpoints
type Handler struct {
	cfg appconfig.Config
}

// NewHandler creates a new config handler
func NewHandler(cfg appconfig.Config) *Handler {
	return &Handler{cfg: cfg}
}

// HandleConfig returns the loaded settings. The database DSN is never included.
// GET /api/config
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(h.cfg)
}
