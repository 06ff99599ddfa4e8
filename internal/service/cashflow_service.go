package service

import (
	"fmt"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/repository"
)

// CashFlowService is the cash-flow extractor: it builds the ordered, signed
// cash-flow series for a single entity. The series always ends with the
// entity's latest valuation appended as a terminal pseudo-inflow, so an open
// position's unrealized value participates in the money-weighted return.
//
// Extraction is a pure read; it never writes anything.
type CashFlowService struct {
	cashFlowRepo *repository.CashFlowRepository
}

// NewCashFlowService creates a new CashFlowService with the provided dependencies.
func NewCashFlowService(cashFlowRepo *repository.CashFlowRepository) *CashFlowService {
	return &CashFlowService{cashFlowRepo: cashFlowRepo}
}

// ExtractSeries builds the cash-flow series for an entity as of a date.
//
// The series contains every recorded event on or before asOf, ascending by
// date, plus one synthetic terminal event carrying the latest valuation as a
// positive inflow. Fails with apperrors.ErrInsufficientData (from the
// repository) when the entity has no valuation, since a series without a
// terminal value cannot be priced.
func (s *CashFlowService) ExtractSeries(entityID string, level model.Level, asOf time.Time) (model.CashFlowSeries, error) {
	series := model.CashFlowSeries{EntityID: entityID, Level: level}

	err := s.cashFlowRepo.GetEventsForEntity(entityID, level, asOf, func(event model.CashFlowEvent) error {
		series.Events = append(series.Events, event)
		return nil
	})
	if err != nil {
		return model.CashFlowSeries{}, fmt.Errorf("failed to extract cash flows for %s %s: %w", level, entityID, err)
	}

	valuation, err := s.cashFlowRepo.GetLatestValuation(entityID, level, asOf)
	if err != nil {
		return model.CashFlowSeries{}, err
	}

	series.Events = append(series.Events, model.CashFlowEvent{
		EntityID:    entityID,
		EntityLevel: level,
		Date:        valuation.Date,
		Amount:      valuation.Value,
	})

	series.Sort()
	return series, nil
}
