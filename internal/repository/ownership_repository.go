package repository

import (
	"database/sql"
	"fmt"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// OwnershipRepository provides read access to the ownership registry.
// Split data is owned by an external collaborator; the engine validates it
// before use but never mutates it.
type OwnershipRepository struct {
	db *sql.DB
}

// NewOwnershipRepository creates a new repository instance.
func NewOwnershipRepository(db *sql.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

// GetSplitsForFund retrieves all ownership splits for a fund, ordered by
// owner ID. Returns apperrors.ErrOwnershipNotFound when no splits are
// registered, so callers can distinguish "no registry entry" from a fund
// that genuinely has a single implicit owner.
func (r *OwnershipRepository) GetSplitsForFund(fundID string) ([]model.OwnershipSplit, error) {
	rows, err := r.db.Query(`
		SELECT id, fund_id, owner_id, percentage
		FROM ownership_split
		WHERE fund_id = ?
		ORDER BY owner_id
	`, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ownership_split: %w", err)
	}
	defer rows.Close()

	var splits []model.OwnershipSplit
	for rows.Next() {
		var s model.OwnershipSplit
		var percentageStr string

		if err := rows.Scan(&s.ID, &s.FundID, &s.OwnerID, &percentageStr); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Percentage, err = ParseDecimal(percentageStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse percentage: %w", err)
		}

		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(splits) == 0 {
		return nil, fmt.Errorf("fund %s: %w", fundID, apperrors.ErrOwnershipNotFound)
	}

	return splits, nil
}
