package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowEvent is a single dated, signed money movement for an entity.
// Amounts are negative for outflows (contributions into the investment) and
// positive for inflows (withdrawals, and the terminal valuation appended by
// the extractor). Events are immutable once written; corrections are new events.
type CashFlowEvent struct {
	ID          string          `json:"id"`
	EntityID    string          `json:"entityId"`
	EntityLevel Level           `json:"entityLevel"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
}

// ValuationRecord is the market value of an entity on a date. The latest
// valuation per entity is the terminal cash flow for open positions.
type ValuationRecord struct {
	ID          string          `json:"id"`
	EntityID    string          `json:"entityId"`
	EntityLevel Level           `json:"entityLevel"`
	Date        time.Time       `json:"date"`
	Value       decimal.Decimal `json:"value"`
	CreatedAt   time.Time       `json:"createdAt,omitempty"`
}

// CashFlowSeries is an ordered series of cash flows for one entity,
// sorted ascending by date.
type CashFlowSeries struct {
	EntityID string
	Level    Level
	Events   []CashFlowEvent
}

// Sort orders the events ascending by date. Events on the same date keep
// their relative order so that corrections land after the flows they correct.
func (s *CashFlowSeries) Sort() {
	sort.SliceStable(s.Events, func(i, j int) bool {
		return s.Events[i].Date.Before(s.Events[j].Date)
	})
}

// HasSignChange reports whether the series contains at least one negative and
// one positive non-zero amount. Without a sign change the IRR is undefined by
// definition.
func (s *CashFlowSeries) HasSignChange() bool {
	var sawNegative, sawPositive bool
	for _, e := range s.Events {
		switch {
		case e.Amount.IsNegative():
			sawNegative = true
		case e.Amount.IsPositive():
			sawPositive = true
		}
	}
	return sawNegative && sawPositive
}

// Fingerprint returns a deterministic hash over the series content. Two
// series with identical dates and amounts produce identical fingerprints,
// which is what lets the cache serve a prior result without recomputation.
func (s *CashFlowSeries) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Level.String()))
	h.Write([]byte{0})
	h.Write([]byte(s.EntityID))
	for _, e := range s.Events {
		h.Write([]byte{0})
		h.Write([]byte(e.Date.UTC().Format("2006-01-02")))
		h.Write([]byte{0})
		h.Write([]byte(e.Amount.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AggregateFingerprint hashes an ordered list of child fingerprints into a
// parent fingerprint. Aggregate results are keyed on their children's inputs,
// so a change to any constituent fund invalidates the parent.
func AggregateFingerprint(key EntityKey, childFingerprints []string) string {
	sorted := make([]string, len(childFingerprints))
	copy(sorted, childFingerprints)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(key.String()))
	for _, fp := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(fp))
	}
	return hex.EncodeToString(h.Sum(nil))
}
