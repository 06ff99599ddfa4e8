package model_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

func split(owner, pct string) model.OwnershipSplit {
	return model.OwnershipSplit{FundID: "fund-1", OwnerID: owner, Percentage: decimal.RequireFromString(pct)}
}

// TestValidateSplitSum exercises the tolerance band: sums within
// [99.99, 100.01] are accepted, anything outside is rejected.
func TestValidateSplitSum(t *testing.T) {
	cases := []struct {
		name    string
		splits  []model.OwnershipSplit
		wantErr bool
	}{
		{"exact hundred", []model.OwnershipSplit{split("a", "60"), split("b", "40")}, false},
		{"rounding noise low", []model.OwnershipSplit{split("a", "33.33"), split("b", "33.33"), split("c", "33.33")}, false},
		{"slightly over within tolerance", []model.OwnershipSplit{split("a", "50"), split("b", "50.005")}, false},
		{"upper bound inclusive", []model.OwnershipSplit{split("a", "50.005"), split("b", "50.005")}, false},
		{"lower bound inclusive", []model.OwnershipSplit{split("a", "49.995"), split("b", "49.995")}, false},
		{"just above tolerance", []model.OwnershipSplit{split("a", "50.01"), split("b", "50.01")}, true},
		{"just below tolerance", []model.OwnershipSplit{split("a", "49.99"), split("b", "49.99")}, true},
		{"grossly over", []model.OwnershipSplit{split("a", "80"), split("b", "40")}, true},
		{"single owner short", []model.OwnershipSplit{split("a", "95")}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := model.ValidateSplitSum("fund-1", tc.splits)
			if tc.wantErr && err == nil {
				t.Error("Expected a sum invariant violation, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected splits to validate, got %v", err)
			}
		})
	}
}

// TestNewTenantsInCommonOwnership verifies construction enforces the sum
// invariant and that shares resolve per owner.
func TestNewTenantsInCommonOwnership(t *testing.T) {
	t.Run("valid splits", func(t *testing.T) {
		m, err := model.NewTenantsInCommonOwnership("fund-1", []model.OwnershipSplit{
			split("alice", "70"), split("bob", "30"),
		})
		if err != nil {
			t.Fatalf("Failed to build ownership model: %v", err)
		}
		if m.Kind != model.OwnershipTenantsInCommon {
			t.Errorf("Expected tenants-in-common kind, got %v", m.Kind)
		}
		if got := m.ShareOf("alice"); !got.Equal(decimal.NewFromInt(70)) {
			t.Errorf("Expected alice's share 70, got %s", got)
		}
		if got := m.ShareOf("nobody"); !got.IsZero() {
			t.Errorf("Expected zero share for unknown owner, got %s", got)
		}
	})

	t.Run("invalid sum rejected", func(t *testing.T) {
		_, err := model.NewTenantsInCommonOwnership("fund-1", []model.OwnershipSplit{
			split("alice", "70"), split("bob", "30.02"),
		})
		if err == nil {
			t.Fatal("Expected a sum invariant violation, got nil")
		}
	})

	t.Run("empty splits rejected", func(t *testing.T) {
		if _, err := model.NewTenantsInCommonOwnership("fund-1", nil); err == nil {
			t.Fatal("Expected an error for empty splits, got nil")
		}
	})
}

// TestNewJointOwnership verifies equal undivided shares.
func TestNewJointOwnership(t *testing.T) {
	m, err := model.NewJointOwnership("fund-1", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Failed to build joint ownership: %v", err)
	}
	if got := m.ShareOf("alice"); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected equal 50%% share, got %s", got)
	}
	if _, err := model.NewJointOwnership("fund-1", nil); err == nil {
		t.Error("Expected an error for joint ownership with no owners")
	}
}

// TestWeight verifies the fraction used to scale cash flows.
func TestWeight(t *testing.T) {
	m := model.NewIndividualOwnership("fund-1", "alice")
	if got := m.Weight("alice"); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected weight 1 for sole owner, got %s", got)
	}
	if got := m.Weight("bob"); !got.IsZero() {
		t.Errorf("Expected weight 0 for non-owner, got %s", got)
	}

	tic, err := model.NewTenantsInCommonOwnership("fund-1", []model.OwnershipSplit{
		split("alice", "25"), split("bob", "75"),
	})
	if err != nil {
		t.Fatalf("Failed to build ownership model: %v", err)
	}
	if got := tic.Weight("alice"); !got.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Expected weight 0.25, got %s", got)
	}
}
