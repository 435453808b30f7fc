// Package filing exposes the pipeline entry points over HTTP.
package filing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"filing_valuation/pkg/core/pipeline"
	"filing_valuation/pkg/core/status"
	"filing_valuation/pkg/core/store"
	"filing_valuation/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Runner is the slice of the orchestrator the handlers call.
type Runner interface {
	RunFiling(ctx context.Context, documentID string, opts pipeline.Options) (pipeline.FilingResult, error)
	RunSubmitDate(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error)
	Report(ctx context.Context, from, to time.Time) (status.Report, error)
	Remove(ctx context.Context, documentID string) error
}

// Handler holds dependencies for filing endpoints
type Handler struct {
	runner Runner
	log    zerolog.Logger
	now    func() time.Time
}

// NewHandler creates a new filing handler
func NewHandler(runner Runner, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		log:    log.With().Str("handler", "filing").Logger(),
		now:    time.Now,
	}
}

// RegisterRoutes mounts the endpoints under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/filings/{id}/run", h.HandleRunFiling)
		r.Post("/filings/{id}/remove", h.HandleRemove)
		r.Post("/submissions/{date}/run", h.HandleRunSubmitDate)
		r.Get("/report", h.HandleReport)
	})
}

// HandleRunFiling scrapes and values one filing
// POST /api/filings/{id}/run?force=true
func (h *Handler) HandleRunFiling(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.runner.RunFiling(r.Context(), id, options(r))
	if err != nil {
		h.fail(w, err, "Failed to run filing", id)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRunSubmitDate runs every filing submitted on one day
// POST /api/submissions/{date}/run?force=true
func (h *Handler) HandleRunSubmitDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(models.DateLayout, chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "Invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	results, err := h.runner.RunSubmitDate(r.Context(), date, options(r))
	if err != nil {
		h.fail(w, err, "Failed to run submit date", date.Format(models.DateLayout))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleReport lists filings with PARTIAL or ERROR stages
// GET /api/report?from=YYYY-MM-DD&to=YYYY-MM-DD (default: the last 7 days)
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	today := h.now().UTC().Truncate(24 * time.Hour)
	from, err := dateParam(r, "from", today.AddDate(0, 0, -7))
	if err != nil {
		http.Error(w, "Invalid from date", http.StatusBadRequest)
		return
	}
	to, err := dateParam(r, "to", today)
	if err != nil {
		http.Error(w, "Invalid to date", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "to is before from", http.StatusBadRequest)
		return
	}

	report, err := h.runner.Report(r.Context(), from, to)
	if err != nil {
		h.fail(w, err, "Failed to build report", "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleRemove excludes a filing from future runs
// POST /api/filings/{id}/remove
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runner.Remove(r.Context(), id); err != nil {
		h.fail(w, err, "Failed to remove filing", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document_id": id, "status": "removed"})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg, subject string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Filing not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Str("subject", subject).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}

func options(r *http.Request) pipeline.Options {
	force := r.URL.Query().Get("force")
	return pipeline.Options{Force: force == "true" || force == "1"}
}

func dateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return time.Parse(models.DateLayout, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
