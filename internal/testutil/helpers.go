package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/solver"
)

// MakeID generates a unique identifier for test entities.
func MakeID() string {
	return uuid.NewString()
}

// Date parses a YYYY-MM-DD string, failing the test on malformed input.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("Failed to parse test date %q: %v", s, err)
	}
	return d.UTC()
}

// Dec parses a decimal string, failing the test on malformed input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Failed to parse test decimal %q: %v", s, err)
	}
	return d
}

// Engine bundles the fully wired service stack for tests that exercise the
// pipeline end to end: extraction, aggregation, caching, cascades.
type Engine struct {
	EntityRepo      *repository.EntityRepository
	CashFlowRepo    *repository.CashFlowRepository
	OwnershipRepo   *repository.OwnershipRepository
	IRRRepo         *repository.IRRRepository
	CashFlowService *service.CashFlowService
	Aggregation     *service.AggregationService
	Coordinator     *service.Coordinator
	Cache           *service.CacheService
	Cascade         *service.CascadeService
	IRR             *service.IRRService
}

// NewEngine wires the complete engine over the given test database, with
// default solver bounds, 4 workers, and a generous compute-wait window so
// unit tests never see a spurious "computing" response.
func NewEngine(t *testing.T, db *sql.DB) *Engine {
	t.Helper()

	entityRepo := repository.NewEntityRepository(db)
	cashFlowRepo := repository.NewCashFlowRepository(db)
	ownershipRepo := repository.NewOwnershipRepository(db)
	irrRepo := repository.NewIRRRepository(db)

	opts := solver.DefaultOptions()
	cashFlowService := service.NewCashFlowService(cashFlowRepo)
	aggregation := service.NewAggregationService(entityRepo, ownershipRepo, cashFlowService)
	coordinator := service.NewCoordinator(4)
	cache := service.NewCacheService(irrRepo, entityRepo, aggregation, coordinator, opts)
	cascade := service.NewCascadeService(entityRepo, irrRepo, cache, coordinator)
	irr := service.NewIRRService(cache, cascade, aggregation, irrRepo, opts, 30*time.Second)

	return &Engine{
		EntityRepo:      entityRepo,
		CashFlowRepo:    cashFlowRepo,
		OwnershipRepo:   ownershipRepo,
		IRRRepo:         irrRepo,
		CashFlowService: cashFlowService,
		Aggregation:     aggregation,
		Coordinator:     coordinator,
		Cache:           cache,
		Cascade:         cascade,
		IRR:             irr,
	}
}
