package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ownership percentage tolerance: the sum across all owners of a fund must
// lie within [99.99, 100.01] percentage points. Source data carries rounding
// noise, so exact equality with 100 is not required.
var (
	ownershipSumMin = decimal.NewFromFloat(99.99)
	ownershipSumMax = decimal.NewFromFloat(100.01)
	hundred         = decimal.NewFromInt(100)
)

// OwnershipSplit is one owner's percentage stake in a fund.
type OwnershipSplit struct {
	ID         string          `json:"id"`
	FundID     string          `json:"fundId"`
	OwnerID    string          `json:"ownerId"`
	Percentage decimal.Decimal `json:"percentage"`
}

// OwnershipKind discriminates the OwnershipModel variants.
type OwnershipKind int

const (
	// OwnershipIndividual: a single owner holds 100%.
	OwnershipIndividual OwnershipKind = iota
	// OwnershipTenantsInCommon: multiple owners with explicit percentages.
	OwnershipTenantsInCommon
	// OwnershipJoint: multiple owners in equal undivided shares.
	OwnershipJoint
)

// OwnershipModel is the validated ownership structure of a fund. It is built
// through the constructor functions below and never passed around as raw
// key/value data; an OwnershipModel in hand has already passed the sum
// invariant.
type OwnershipModel struct {
	Kind   OwnershipKind
	FundID string
	splits []OwnershipSplit
}

// NewIndividualOwnership builds the single-owner model. The owner's share is
// 100% by construction.
func NewIndividualOwnership(fundID, ownerID string) OwnershipModel {
	return OwnershipModel{
		Kind:   OwnershipIndividual,
		FundID: fundID,
		splits: []OwnershipSplit{{FundID: fundID, OwnerID: ownerID, Percentage: hundred}},
	}
}

// NewJointOwnership builds the equal-shares model for two or more owners.
func NewJointOwnership(fundID string, ownerIDs []string) (OwnershipModel, error) {
	if len(ownerIDs) == 0 {
		return OwnershipModel{}, fmt.Errorf("joint ownership of fund %s requires at least one owner", fundID)
	}
	share := hundred.Div(decimal.NewFromInt(int64(len(ownerIDs))))
	splits := make([]OwnershipSplit, len(ownerIDs))
	for i, ownerID := range ownerIDs {
		splits[i] = OwnershipSplit{FundID: fundID, OwnerID: ownerID, Percentage: share}
	}
	return OwnershipModel{Kind: OwnershipJoint, FundID: fundID, splits: splits}, nil
}

// NewTenantsInCommonOwnership builds the explicit-percentage model and
// enforces the sum invariant. Splits whose percentages sum outside
// [99.99, 100.01] are rejected here so that no aggregation can ever run on a
// skewed weight set.
func NewTenantsInCommonOwnership(fundID string, splits []OwnershipSplit) (OwnershipModel, error) {
	if len(splits) == 0 {
		return OwnershipModel{}, fmt.Errorf("ownership of fund %s has no splits", fundID)
	}
	if err := ValidateSplitSum(fundID, splits); err != nil {
		return OwnershipModel{}, err
	}
	owned := make([]OwnershipSplit, len(splits))
	copy(owned, splits)
	return OwnershipModel{Kind: OwnershipTenantsInCommon, FundID: fundID, splits: owned}, nil
}

// ValidateSplitSum checks the percentage sum invariant for a split set.
// The returned error lists the owners involved so the violation can be
// reported against the exact record set that is wrong.
func ValidateSplitSum(fundID string, splits []OwnershipSplit) error {
	sum := decimal.Zero
	owners := make([]string, 0, len(splits))
	for _, s := range splits {
		sum = sum.Add(s.Percentage)
		owners = append(owners, s.OwnerID)
	}
	if sum.LessThan(ownershipSumMin) || sum.GreaterThan(ownershipSumMax) {
		return fmt.Errorf("ownership splits for fund %s sum to %s%% (owners %v)", fundID, sum.String(), owners)
	}
	return nil
}

// Splits returns a copy of the owner/percentage pairs.
func (m OwnershipModel) Splits() []OwnershipSplit {
	out := make([]OwnershipSplit, len(m.splits))
	copy(out, m.splits)
	return out
}

// ShareOf returns the validated percentage held by ownerID, or zero if the
// owner has no stake in the fund.
func (m OwnershipModel) ShareOf(ownerID string) decimal.Decimal {
	for _, s := range m.splits {
		if s.OwnerID == ownerID {
			return s.Percentage
		}
	}
	return decimal.Zero
}

// Weight returns the owner's share as a fraction in [0, 1], the multiplier
// applied to each cash flow for owner-weighted aggregation.
func (m OwnershipModel) Weight(ownerID string) decimal.Decimal {
	return m.ShareOf(ownerID).Div(hundred)
}
