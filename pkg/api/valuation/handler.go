// Package valuation serves stored corporate values.
package valuation

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"filing_valuation/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Finder looks up a stored valuation; the store implements it.
type Finder interface {
	FindValuation(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error)
}

// Handler holds dependencies for valuation endpoints
type Handler struct {
	finder Finder
	log    zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(finder Finder, log zerolog.Logger) *Handler {
	return &Handler{finder: finder, log: log.With().Str("handler", "valuation").Logger()}
}

// RegisterRoutes mounts the endpoints under /api/valuations.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/valuations/{filer}/{periodEnd}", h.HandleGetValuation)
}

// ValuationResponse adds the fixed-point rendering operators read.
type ValuationResponse struct {
	*models.ValuationResult
	PerShare string `json:"per_share"`
}

// HandleGetValuation returns the corporate value of one filer and period
// GET /api/valuations/{filer}/{periodEnd}
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	filer := chi.URLParam(r, "filer")
	periodEnd, err := time.Parse(models.DateLayout, chi.URLParam(r, "periodEnd"))
	if err != nil {
		http.Error(w, "Invalid period end, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	v, err := h.finder.FindValuation(r.Context(), filer, periodEnd)
	if err != nil {
		h.log.Error().Err(err).Str("filer", filer).Msg("Failed to get valuation")
		http.Error(w, "Failed to get valuation", http.StatusInternalServerError)
		return
	}
	if v == nil {
		http.Error(w, "Valuation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ValuationResponse{ValuationResult: v, PerShare: v.CorporateValue.StringFixed(2)})
}
