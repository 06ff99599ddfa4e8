package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the cache-entry lifecycle state for an IRR result.
// Transitions: fresh -> stale -> computing -> fresh (success) or
// computing -> failed (solver/aggregation error).
type Status string

const (
	StatusFresh     Status = "fresh"
	StatusStale     Status = "stale"
	StatusComputing Status = "computing"
	StatusFailed    Status = "failed"
)

// ParseStatus converts the database representation back to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusFresh, StatusStale, StatusComputing, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// IRRRecord is one computed (or attempted) IRR result for an entity.
// Records are append-only: a recompute inserts a new row with a new
// ComputedAt and flips IsCurrent, preserving the audit trail of what the
// IRR was believed to be at any point in time.
type IRRRecord struct {
	ID               string          `json:"id"`
	EntityID         string          `json:"entityId"`
	Level            Level           `json:"level"`
	AsOfDate         time.Time       `json:"asOfDate"`
	Value            decimal.Decimal `json:"value"`
	Undefined        bool            `json:"undefined"`
	InputFingerprint string          `json:"inputFingerprint"`
	ComputedAt       time.Time       `json:"computedAt"`
	Status           Status          `json:"status"`
	IsCurrent        bool            `json:"isCurrent"`
}

// Key returns the cache key this record belongs to.
func (r IRRRecord) Key() EntityKey {
	return EntityKey{EntityID: r.EntityID, Level: r.Level}
}

// InvalidationMarker is the transient record linking a changed source entity
// to the dependent cache keys that must transition to stale. Markers are
// produced by mutation collaborators (via the invalidate endpoint) and
// consumed by the cascade controller.
type InvalidationMarker struct {
	Source     EntityKey
	Dependents []EntityKey
	CreatedAt  time.Time
}
