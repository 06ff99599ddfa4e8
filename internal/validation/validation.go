package validation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if id == "" {
		return apperrors.ErrEmptyID
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}

// ValidateLevel parses and validates an entity level path parameter.
func ValidateLevel(level string) (model.Level, error) {
	parsed, err := model.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrInvalidLevel, level)
	}
	return parsed, nil
}

// ParseAsOf parses an optional as-of date query parameter. An empty value
// defaults to today (UTC, date precision).
func ParseAsOf(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	asOf, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidDate, value)
	}
	return asOf.UTC(), nil
}
