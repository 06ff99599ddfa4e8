package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/testutil"
)

func record(t *testing.T, key model.EntityKey, status model.Status, fingerprint string, computedAt time.Time) model.IRRRecord {
	t.Helper()
	return model.IRRRecord{
		ID:               testutil.MakeID(),
		EntityID:         key.EntityID,
		Level:            key.Level,
		AsOfDate:         testutil.Date(t, "2024-12-31"),
		Value:            testutil.Dec(t, "0.1"),
		InputFingerprint: fingerprint,
		ComputedAt:       computedAt,
		Status:           status,
	}
}

// TestInsertCurrent verifies the append-only contract: a new row supersedes
// the previous current one without deleting it.
func TestInsertCurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := testutil.NewEngine(t, db).IRRRepo
	key := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelFund}

	first := record(t, key, model.StatusFresh, "fp-1", testutil.Date(t, "2024-12-31"))
	if err := repo.InsertCurrent(first); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	second := record(t, key, model.StatusFresh, "fp-2", testutil.Date(t, "2025-01-15"))
	if err := repo.InsertCurrent(second); err != nil {
		t.Fatalf("Failed to insert superseding record: %v", err)
	}

	current, err := repo.GetCurrent(key)
	if err != nil {
		t.Fatalf("Failed to read current record: %v", err)
	}
	if current.ID != second.ID {
		t.Errorf("Expected the newest record to be current, got %s", current.ID)
	}
	if !current.IsCurrent {
		t.Error("Expected IsCurrent set on the current record")
	}

	var rows int
	err = repo.GetHistory(key, func(r model.IRRRecord) error {
		rows++
		if r.ID == first.ID && r.IsCurrent {
			t.Error("Expected the superseded record to lose IsCurrent")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 audit rows, got %d", rows)
	}
}

// TestInsertCurrent_UndefinedValue verifies the null-value round trip for
// undefined results.
func TestInsertCurrent_UndefinedValue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := testutil.NewEngine(t, db).IRRRepo
	key := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelFund}

	undefined := record(t, key, model.StatusFresh, "fp-1", testutil.Date(t, "2024-12-31"))
	undefined.Undefined = true
	if err := repo.InsertCurrent(undefined); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	got, err := repo.GetCurrent(key)
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if !got.Undefined {
		t.Error("Expected the undefined flag to round-trip")
	}
	if !got.Value.IsZero() {
		t.Errorf("Expected zero value for an undefined result, got %s", got.Value)
	}
}

// TestGetCurrent_NotFound verifies the sentinel for never-computed keys.
func TestGetCurrent_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := testutil.NewEngine(t, db).IRRRepo

	key := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelFund}
	if _, err := repo.GetCurrent(key); !errors.Is(err, apperrors.ErrResultNotFound) {
		t.Fatalf("Expected ErrResultNotFound, got %v", err)
	}
}

// TestUpdateCurrentStatus verifies the single in-place mutation the table
// allows, and that it is a no-op for keys without a current row.
func TestUpdateCurrentStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := testutil.NewEngine(t, db).IRRRepo
	key := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelPortfolio}

	if err := repo.UpdateCurrentStatus(key, model.StatusStale); err != nil {
		t.Fatalf("Expected status update without a row to be a no-op, got %v", err)
	}

	if err := repo.InsertCurrent(record(t, key, model.StatusFresh, "fp-1", testutil.Date(t, "2024-12-31"))); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if err := repo.UpdateCurrentStatus(key, model.StatusStale); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	got, err := repo.GetCurrent(key)
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if got.Status != model.StatusStale {
		t.Errorf("Expected stale status, got %s", got.Status)
	}
	if !got.Value.Equal(testutil.Dec(t, "0.1")) {
		t.Error("Expected the stored value untouched by the status transition")
	}
}

// TestListCurrentByStatus verifies the sweep query: only current rows with
// matching statuses are returned.
func TestListCurrentByStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := testutil.NewEngine(t, db).IRRRepo

	staleKey := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelFund}
	freshKey := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelFund}
	failedKey := model.EntityKey{EntityID: testutil.MakeID(), Level: model.LevelCompany}

	// The stale key also carries a superseded row that must not show up.
	if err := repo.InsertCurrent(record(t, staleKey, model.StatusStale, "fp-old", testutil.Date(t, "2024-11-30"))); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if err := repo.InsertCurrent(record(t, staleKey, model.StatusStale, "fp-1", testutil.Date(t, "2024-12-31"))); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if err := repo.InsertCurrent(record(t, freshKey, model.StatusFresh, "fp-2", testutil.Date(t, "2024-12-31"))); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if err := repo.InsertCurrent(record(t, failedKey, model.StatusFailed, "fp-3", testutil.Date(t, "2024-12-31"))); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	var got []model.EntityKey
	err := repo.ListCurrentByStatus([]model.Status{model.StatusStale, model.StatusFailed}, func(r model.IRRRecord) error {
		got = append(got, r.Key())
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 pending entries, got %d", len(got))
	}
	seen := map[model.EntityKey]bool{}
	for _, k := range got {
		seen[k] = true
	}
	if !seen[staleKey] || !seen[failedKey] {
		t.Errorf("Expected stale and failed keys, got %v", got)
	}
}
