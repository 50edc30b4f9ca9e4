package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"villasole/internal/models"
)

const sourceColumns = `id, platform, name, feed_url, status, last_sync_at, last_sync_error, created_at, updated_at`

func (db *DB) CreateCalendarSource(ctx context.Context, source *models.ExternalCalendarSource) error {
	if source.Status == "" {
		source.Status = models.SourceActive
	}
	query := `INSERT INTO calendar_sources (platform, name, feed_url, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		source.Platform, source.Name, source.FeedURL, source.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create calendar source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	source.ID = id
	source.CreatedAt = now
	source.UpdatedAt = now
	return nil
}

func (db *DB) GetCalendarSource(ctx context.Context, id int64) (*models.ExternalCalendarSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM calendar_sources WHERE id = ?`
	row := db.QueryRowContext(ctx, query, id)

	source, err := scanCalendarSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar source: %w", err)
	}
	return source, nil
}

// GetSyncableSources returns active sources with a non-empty feed URL, plus
// errored sources so the next run can retry them. Inactive sources are
// skipped entirely.
func (db *DB) GetSyncableSources(ctx context.Context) ([]*models.ExternalCalendarSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM calendar_sources
	          WHERE status IN (?, ?) AND feed_url != '' ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query, models.SourceActive, models.SourceError)
	if err != nil {
		return nil, fmt.Errorf("failed to get syncable sources: %w", err)
	}
	defer rows.Close()
	return scanCalendarSources(rows)
}

func (db *DB) ListCalendarSources(ctx context.Context) ([]*models.ExternalCalendarSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM calendar_sources ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar sources: %w", err)
	}
	defer rows.Close()
	return scanCalendarSources(rows)
}

func (db *DB) DeleteCalendarSource(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM calendar_sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar source: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSourceSynced records a successful run: status back to active, error
// cleared, last_sync_at set.
func (db *DB) MarkSourceSynced(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE calendar_sources
	          SET status = ?, last_sync_at = ?, last_sync_error = '', updated_at = ?
	          WHERE id = ?`
	_, err := db.ExecContext(ctx, query, models.SourceActive, at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark source synced: %w", err)
	}
	return nil
}

// MarkSourceError records a failed run against the source only.
func (db *DB) MarkSourceError(ctx context.Context, id int64, message string) error {
	query := `UPDATE calendar_sources
	          SET status = ?, last_sync_error = ?, updated_at = ?
	          WHERE id = ?`
	_, err := db.ExecContext(ctx, query, models.SourceError, message, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark source error: %w", err)
	}
	return nil
}

func scanCalendarSources(rows *sql.Rows) ([]*models.ExternalCalendarSource, error) {
	var sources []*models.ExternalCalendarSource
	for rows.Next() {
		source, err := scanCalendarSource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar source: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

func scanCalendarSource(scan func(...any) error) (*models.ExternalCalendarSource, error) {
	s := &models.ExternalCalendarSource{}
	var lastSyncAt sql.NullTime
	var lastErr sql.NullString
	err := scan(&s.ID, &s.Platform, &s.Name, &s.FeedURL, &s.Status,
		&lastSyncAt, &lastErr, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastSyncAt.Valid {
		s.LastSyncAt = &lastSyncAt.Time
	}
	s.LastSyncError = lastErr.String
	return s, nil
}
