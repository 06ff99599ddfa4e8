package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// CashFlowRepository provides read access to cash-flow events and valuations.
// Both tables are written by external collaborators (the transaction and
// valuation services); the engine only ever reads them.
type CashFlowRepository struct {
	db *sql.DB
}

// NewCashFlowRepository creates a new repository instance.
func NewCashFlowRepository(db *sql.DB) *CashFlowRepository {
	return &CashFlowRepository{db: db}
}

// GetEventsForEntity streams all cash-flow events for an entity up to and
// including the as-of date, ordered ascending by date. The callback pattern
// keeps memory flat for entities with long transaction histories.
//
// Returns an error if the query fails or if the callback returns an error
// during processing.
func (r *CashFlowRepository) GetEventsForEntity(
	entityID string,
	level model.Level,
	asOf time.Time,
	callback func(event model.CashFlowEvent) error,
) error {
	rows, err := r.db.Query(`
		SELECT id, entity_id, entity_level, date, amount
		FROM cash_flow_event
		WHERE entity_id = ? AND entity_level = ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`, entityID, level.String(), asOf.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("failed to query cash_flow_event: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var event model.CashFlowEvent
		var levelStr, dateStr, amountStr string

		if err := rows.Scan(&event.ID, &event.EntityID, &levelStr, &dateStr, &amountStr); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		event.EntityLevel, err = model.ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("failed to parse entity level: %w", err)
		}

		event.Date, err = ParseTime(dateStr)
		if err != nil {
			return fmt.Errorf("failed to parse date: %w", err)
		}

		event.Amount, err = ParseDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse amount: %w", err)
		}

		if err := callback(event); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	return nil
}

// GetLatestValuation returns the most recent valuation for an entity on or
// before the as-of date. Returns apperrors.ErrInsufficientData when the
// entity has no valuation at all, since no IRR can be computed without a
// terminal value.
func (r *CashFlowRepository) GetLatestValuation(
	entityID string,
	level model.Level,
	asOf time.Time,
) (model.ValuationRecord, error) {
	var v model.ValuationRecord
	var levelStr, dateStr, valueStr string

	err := r.db.QueryRow(`
		SELECT id, entity_id, entity_level, date, value
		FROM valuation
		WHERE entity_id = ? AND entity_level = ? AND date <= ?
		ORDER BY date DESC, created_at DESC
		LIMIT 1
	`, entityID, level.String(), asOf.Format("2006-01-02")).Scan(
		&v.ID, &v.EntityID, &levelStr, &dateStr, &valueStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ValuationRecord{}, fmt.Errorf("no valuation for %s %s: %w", level, entityID, apperrors.ErrInsufficientData)
	}
	if err != nil {
		return model.ValuationRecord{}, fmt.Errorf("failed to query valuation: %w", err)
	}

	v.EntityLevel, err = model.ParseLevel(levelStr)
	if err != nil {
		return model.ValuationRecord{}, fmt.Errorf("failed to parse entity level: %w", err)
	}

	v.Date, err = ParseTime(dateStr)
	if err != nil {
		return model.ValuationRecord{}, fmt.Errorf("failed to parse date: %w", err)
	}

	v.Value, err = ParseDecimal(valueStr)
	if err != nil {
		return model.ValuationRecord{}, fmt.Errorf("failed to parse value: %w", err)
	}

	return v, nil
}
