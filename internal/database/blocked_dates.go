package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"villasole/internal/models"

	"github.com/mattn/go-sqlite3"
)

const blockedColumns = `id, start_date, end_date, reason, created_by, signature, created_at`

// CreateBlockedRange inserts a blocked range. The signature UNIQUE index is
// the dedup key: inserting an identical range returns ErrDuplicateRange.
func (db *DB) CreateBlockedRange(ctx context.Context, r *models.BlockedDateRange) error {
	query := `INSERT INTO blocked_dates (start_date, end_date, reason, created_by, signature, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		r.StartDate.Format(models.DateFormat),
		r.EndDate.Format(models.DateFormat),
		r.Reason,
		r.CreatedBy,
		r.Signature,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateRange
		}
		return fmt.Errorf("failed to create blocked range: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// BlockedRangeExists reports whether a range with the given signature is
// already stored. Used to make repeated feed syncs a no-op.
func (db *DB) BlockedRangeExists(ctx context.Context, signature string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_dates WHERE signature = ?`, signature).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check blocked range signature: %w", err)
	}
	return count > 0, nil
}

// GetOverlappingBlockedRanges returns blocked ranges conflicting with the
// half-open range.
func (db *DB) GetOverlappingBlockedRanges(ctx context.Context, r models.DateRange) ([]*models.BlockedDateRange, error) {
	query := `SELECT ` + blockedColumns + ` FROM blocked_dates
	          WHERE start_date < ? AND ? < end_date ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, query,
		r.End.Format(models.DateFormat), r.Start.Format(models.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to get overlapping blocked ranges: %w", err)
	}
	defer rows.Close()
	return scanBlockedRanges(rows)
}

func (db *DB) GetBlockedRanges(ctx context.Context) ([]*models.BlockedDateRange, error) {
	query := `SELECT ` + blockedColumns + ` FROM blocked_dates ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked ranges: %w", err)
	}
	defer rows.Close()
	return scanBlockedRanges(rows)
}

func (db *DB) DeleteBlockedRange(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blocked_dates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocked range: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStaleSyncedRanges removes synchronized ranges that ended before the
// cutoff or whose creator is no longer an active sync source. Admin-created
// ranges are never touched.
func (db *DB) DeleteStaleSyncedRanges(ctx context.Context, cutoff time.Time, activeCreators []string) (int64, error) {
	args := []interface{}{cutoff.Format(models.DateFormat)}
	query := `DELETE FROM blocked_dates WHERE created_by LIKE 'sync:%' AND (end_date < ?`

	if len(activeCreators) > 0 {
		placeholders := strings.Repeat("?,", len(activeCreators))
		placeholders = placeholders[:len(placeholders)-1]
		query += ` OR created_by NOT IN (` + placeholders + `)`
		for _, c := range activeCreators {
			args = append(args, c)
		}
	}
	query += `)`

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale synced ranges: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// DeleteSyncedShadowedByManual removes synced ranges fully covered by a
// manual block. Manual blocks always win over synchronized ones.
func (db *DB) DeleteSyncedShadowedByManual(ctx context.Context) (int64, error) {
	query := `DELETE FROM blocked_dates
	          WHERE created_by LIKE 'sync:%' AND EXISTS (
	              SELECT 1 FROM blocked_dates m
	              WHERE m.created_by = ?
	                AND m.start_date <= blocked_dates.start_date
	                AND m.end_date >= blocked_dates.end_date
	          )`
	result, err := db.ExecContext(ctx, query, models.CreatedByAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to delete shadowed synced ranges: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func scanBlockedRanges(rows *sql.Rows) ([]*models.BlockedDateRange, error) {
	var ranges []*models.BlockedDateRange
	for rows.Next() {
		r := &models.BlockedDateRange{}
		var start, end string
		err := rows.Scan(&r.ID, &start, &end, &r.Reason, &r.CreatedBy, &r.Signature, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked range: %w", err)
		}
		r.StartDate, err = time.Parse(models.DateFormat, start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start_date %s: %w", start, err)
		}
		r.EndDate, err = time.Parse(models.DateFormat, end)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_date %s: %w", end, err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranges, nil
}
