package api_test

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/api/handlers"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/config"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/solver"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/testutil"
)

const testAPIKey = "test-api-key"

// newTestRouter wires the full HTTP stack over an in-memory database,
// mirroring the production assembly.
func newTestRouter(t *testing.T, db *sql.DB) http.Handler {
	t.Helper()

	entityRepo := repository.NewEntityRepository(db)
	cashFlowRepo := repository.NewCashFlowRepository(db)
	ownershipRepo := repository.NewOwnershipRepository(db)
	irrRepo := repository.NewIRRRepository(db)

	opts := solver.DefaultOptions()
	systemService := service.NewSystemService(db)
	cashFlowService := service.NewCashFlowService(cashFlowRepo)
	aggregation := service.NewAggregationService(entityRepo, ownershipRepo, cashFlowService)
	coordinator := service.NewCoordinator(4)
	cache := service.NewCacheService(irrRepo, entityRepo, aggregation, coordinator, opts)
	cascade := service.NewCascadeService(entityRepo, irrRepo, cache, coordinator)
	irr := service.NewIRRService(cache, cascade, aggregation, irrRepo, opts, 30*time.Second)

	cfg := &config.Config{
		CORS:  config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Admin: config.AdminConfig{APIKey: testAPIKey},
	}
	return api.NewRouter(systemService, irr, cfg)
}

func doRequest(t *testing.T, router http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeIRR(t *testing.T, rec *httptest.ResponseRecorder) handlers.IRRResponse {
	t.Helper()
	var resp handlers.IRRResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

// TestGetIRREndpoint covers the read path: a computed value, path
// validation, and the error taxonomy for missing entities and data.
func TestGetIRREndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	_, _, funds := testutil.CreateHierarchy(t, db, 2)
	testutil.AddCashFlow(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-01-01"), testutil.Dec(t, "-1000"))
	testutil.AddValuation(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-12-31"), testutil.Dec(t, "1100"))

	t.Run("computed value", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+funds[0].ID+"?as_of=2024-12-31", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeIRR(t, rec)
		if resp.Status != "fresh" {
			t.Errorf("Expected fresh status, got %s", resp.Status)
		}
		if resp.Value == nil {
			t.Fatal("Expected a non-null value")
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/account/"+funds[0].ID, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/not-a-uuid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed as_of", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+funds[0].ID+"?as_of=31-12-2024", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown fund", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+testutil.MakeID()+"?as_of=2024-12-31", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			// An unknown fund has no valuations, which surfaces as
			// insufficient data on the extraction path.
			t.Errorf("Expected 422, got %d", rec.Code)
		}
	})

	t.Run("fund without valuation", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+funds[1].ID+"?as_of=2024-12-31", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestOwnerIRREndpoint covers the owner-weighted view and the 409 invariant
// mapping.
func TestOwnerIRREndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	_, portfolio, funds := testutil.CreateHierarchy(t, db, 1)
	testutil.AddCashFlow(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-01-01"), testutil.Dec(t, "-1000"))
	testutil.AddValuation(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-12-31"), testutil.Dec(t, "1100"))
	alice := testutil.MakeID()
	testutil.AddOwnershipSplit(t, db, funds[0].ID, alice, testutil.Dec(t, "100"))

	base := "/api/irr/portfolio/" + portfolio.ID + "/owner/"

	t.Run("owner view", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, base+alice+"?as_of=2024-12-31", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeIRR(t, rec)
		if resp.Value == nil {
			t.Fatal("Expected a non-null value")
		}
	})

	t.Run("invalid owner id", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, base+"nope", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("invariant violation", func(t *testing.T) {
		testutil.AddOwnershipSplit(t, db, funds[0].ID, testutil.MakeID(), testutil.Dec(t, "0.02"))
		rec := doRequest(t, router, http.MethodGet, base+alice+"?as_of=2024-12-31", nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestInvalidateEndpoint verifies the mutation notification surface.
func TestInvalidateEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	company, portfolio, funds := testutil.CreateHierarchy(t, db, 1)
	testutil.AddCashFlow(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-01-01"), testutil.Dec(t, "-1000"))
	testutil.AddValuation(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-12-31"), testutil.Dec(t, "1100"))

	rec := doRequest(t, router, http.MethodPost, "/api/irr/fund/"+funds[0].ID+"/invalidate?as_of=2024-12-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handlers.InvalidateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Source != "fund:"+funds[0].ID {
		t.Errorf("Expected source fund key, got %s", resp.Source)
	}
	want := []string{"portfolio:" + portfolio.ID, "company:" + company.ID}
	if len(resp.Dependents) != 2 || resp.Dependents[0] != want[0] || resp.Dependents[1] != want[1] {
		t.Errorf("Expected dependents %v, got %v", want, resp.Dependents)
	}
}

// TestRecomputeEndpoint verifies the API-key guard on the administrative path.
func TestRecomputeEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	_, _, funds := testutil.CreateHierarchy(t, db, 1)
	testutil.AddCashFlow(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-01-01"), testutil.Dec(t, "-1000"))
	testutil.AddValuation(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-12-31"), testutil.Dec(t, "1100"))

	path := "/api/irr/fund/" + funds[0].ID + "/recompute?as_of=2024-12-31"

	t.Run("missing key", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, path, map[string]string{"X-API-Key": "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid key", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPost, path, map[string]string{"X-API-Key": testAPIKey})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeIRR(t, rec)
		if resp.Status != "fresh" {
			t.Errorf("Expected fresh status, got %s", resp.Status)
		}
	})
}

// TestHistoryEndpoint verifies the audit trail exposure over HTTP.
func TestHistoryEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	_, _, funds := testutil.CreateHierarchy(t, db, 1)
	testutil.AddCashFlow(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-01-01"), testutil.Dec(t, "-1000"))
	testutil.AddValuation(t, db, funds[0].ID, model.LevelFund, testutil.Date(t, "2024-12-31"), testutil.Dec(t, "1100"))

	if rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+funds[0].ID+"?as_of=2024-12-31", nil); rec.Code != http.StatusOK {
		t.Fatalf("Failed to prime cache: %d", rec.Code)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/irr/fund/"+funds[0].ID+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history []handlers.IRRResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(history))
	}
}

// TestSystemEndpoints verifies health and version.
func TestSystemEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	for _, path := range []string{"/api/system/health", "/api/system/version"} {
		rec := doRequest(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 from %s, got %d", path, rec.Code)
		}
	}
}
