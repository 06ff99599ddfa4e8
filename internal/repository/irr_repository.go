package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/model"
)

// IRRRepository is the durable side of the cache store. It maps
// (entity_id, level) to a stream of append-only IRRRecord rows, exactly one
// of which is current per key. Historical rows are never mutated; a
// recompute inserts a new row and flips is_current inside one transaction.
type IRRRepository struct {
	db *sql.DB
}

// NewIRRRepository creates a new repository instance.
func NewIRRRepository(db *sql.DB) *IRRRepository {
	return &IRRRepository{db: db}
}

const irrSelectColumns = `id, entity_id, level, as_of_date, value, undefined,
	input_fingerprint, computed_at, status, is_current`

// GetCurrent returns the current record for a cache key, or
// apperrors.ErrResultNotFound when the key has never been computed.
func (r *IRRRepository) GetCurrent(key model.EntityKey) (model.IRRRecord, error) {
	row := r.db.QueryRow(`
		SELECT `+irrSelectColumns+`
		FROM irr_result
		WHERE entity_id = ? AND level = ? AND is_current
	`, key.EntityID, key.Level.String())

	record, err := scanIRRRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IRRRecord{}, fmt.Errorf("%s: %w", key, apperrors.ErrResultNotFound)
	}
	if err != nil {
		return model.IRRRecord{}, err
	}
	return record, nil
}

// InsertCurrent appends a new result row for the key and makes it the single
// current row, superseding (but never deleting) the previous one. The old
// row keeps its values as the audit trail of what the IRR was believed to be
// at its computed_at time.
func (r *IRRRepository) InsertCurrent(record model.IRRRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(`
		UPDATE irr_result SET is_current = FALSE
		WHERE entity_id = ? AND level = ? AND is_current
	`, record.EntityID, record.Level.String())
	if err != nil {
		return fmt.Errorf("failed to supersede current irr_result: %w", err)
	}

	var value any
	if !record.Undefined {
		value = record.Value.String()
	}

	_, err = tx.Exec(`
		INSERT INTO irr_result (id, entity_id, level, as_of_date, value, undefined,
			input_fingerprint, computed_at, status, is_current)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
	`,
		record.ID,
		record.EntityID,
		record.Level.String(),
		record.AsOfDate.Format("2006-01-02"),
		value,
		record.Undefined,
		record.InputFingerprint,
		record.ComputedAt.UTC().Format(time.RFC3339),
		string(record.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert irr_result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit irr_result insert: %w", err)
	}
	return nil
}

// UpdateCurrentStatus transitions the status of the key's current row.
// This is the one in-place mutation the table allows: the cascade needs a
// single authoritative status per key while historical values stay frozen.
// Updating a key with no current row is a no-op.
func (r *IRRRepository) UpdateCurrentStatus(key model.EntityKey, status model.Status) error {
	_, err := r.db.Exec(`
		UPDATE irr_result SET status = ?
		WHERE entity_id = ? AND level = ? AND is_current
	`, string(status), key.EntityID, key.Level.String())
	if err != nil {
		return fmt.Errorf("failed to update irr_result status: %w", err)
	}
	return nil
}

// GetHistory streams all result rows for a key, newest first. This is the
// audit trail exposed by the history endpoint.
func (r *IRRRepository) GetHistory(key model.EntityKey, callback func(record model.IRRRecord) error) error {
	rows, err := r.db.Query(`
		SELECT `+irrSelectColumns+`
		FROM irr_result
		WHERE entity_id = ? AND level = ?
		ORDER BY computed_at DESC
	`, key.EntityID, key.Level.String())
	if err != nil {
		return fmt.Errorf("failed to query irr_result history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanIRRRecord(rows)
		if err != nil {
			return err
		}
		if err := callback(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}

// ListCurrentByStatus streams the current rows that carry one of the given
// statuses. The refresh sweep uses it to find stale and failed entries.
func (r *IRRRepository) ListCurrentByStatus(statuses []model.Status, callback func(record model.IRRRecord) error) error {
	if len(statuses) == 0 {
		return nil
	}

	placeholders := ""
	args := make([]any, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = string(s)
	}

	rows, err := r.db.Query(`
		SELECT `+irrSelectColumns+`
		FROM irr_result
		WHERE is_current AND status IN (`+placeholders+`)
		ORDER BY entity_id, level
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query current irr_result rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanIRRRecord(rows)
		if err != nil {
			return err
		}
		if err := callback(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIRRRecord(row rowScanner) (model.IRRRecord, error) {
	var record model.IRRRecord
	var levelStr, asOfStr, computedAtStr, statusStr string
	var value sql.NullString

	err := row.Scan(
		&record.ID,
		&record.EntityID,
		&levelStr,
		&asOfStr,
		&value,
		&record.Undefined,
		&record.InputFingerprint,
		&computedAtStr,
		&statusStr,
		&record.IsCurrent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.IRRRecord{}, err
		}
		return model.IRRRecord{}, fmt.Errorf("failed to scan irr_result row: %w", err)
	}

	record.Level, err = model.ParseLevel(levelStr)
	if err != nil {
		return model.IRRRecord{}, fmt.Errorf("failed to parse level: %w", err)
	}

	record.AsOfDate, err = ParseTime(asOfStr)
	if err != nil {
		return model.IRRRecord{}, fmt.Errorf("failed to parse as_of_date: %w", err)
	}

	record.ComputedAt, err = ParseTime(computedAtStr)
	if err != nil {
		return model.IRRRecord{}, fmt.Errorf("failed to parse computed_at: %w", err)
	}

	status, ok := model.ParseStatus(statusStr)
	if !ok {
		return model.IRRRecord{}, fmt.Errorf("unknown irr_result status %q", statusStr)
	}
	record.Status = status

	if value.Valid {
		record.Value, err = ParseDecimal(value.String)
		if err != nil {
			return model.IRRRecord{}, fmt.Errorf("failed to parse value: %w", err)
		}
	}

	return record, nil
}
