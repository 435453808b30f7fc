package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filing_valuation/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockFinder struct {
	FindValuationFunc func(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error)
}

func (m *MockFinder) FindValuation(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error) {
	if m.FindValuationFunc != nil {
		return m.FindValuationFunc(ctx, filerCode, periodEnd)
	}
	return nil, nil
}

func get(t *testing.T, finder Finder, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	NewHandler(finder, zerolog.Nop()).RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleGetValuation(t *testing.T) {
	finder := &MockFinder{
		FindValuationFunc: func(ctx context.Context, filer string, periodEnd time.Time) (*models.ValuationResult, error) {
			if filer != "E00001" || periodEnd.Format(models.DateLayout) != "2024-03-31" {
				return nil, nil
			}
			return &models.ValuationResult{
				FilerCode:      filer,
				PeriodEnd:      periodEnd,
				DocumentID:     "S100AAAA",
				CorporateValue: decimal.RequireFromString("786.6666666667"),
			}, nil
		},
	}

	rec := get(t, finder, "/api/valuations/E00001/2024-03-31")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "786.67", body["per_share"])
	assert.Equal(t, "786.6666666667", body["corporate_value"])
	assert.Equal(t, "S100AAAA", body["document_id"])

	assert.Equal(t, http.StatusNotFound, get(t, finder, "/api/valuations/E00002/2024-03-31").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, finder, "/api/valuations/E00001/March").Code)
}

func TestHandleGetValuation_StoreError(t *testing.T) {
	finder := &MockFinder{
		FindValuationFunc: func(ctx context.Context, filer string, periodEnd time.Time) (*models.ValuationResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	assert.Equal(t, http.StatusInternalServerError, get(t, finder, "/api/valuations/E00001/2024-03-31").Code)
}
