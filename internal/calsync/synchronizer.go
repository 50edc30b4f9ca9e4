// Package calsync reconciles external calendar feeds into local blocked-date
// records. Each run is idempotent: re-synchronizing an unchanged feed
// produces no new state.
package calsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"villasole/internal/calendar"
	"villasole/internal/database"
	"villasole/internal/domain"
	"villasole/internal/metrics"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

type Synchronizer struct {
	store     domain.Store
	fetcher   calendar.Fetcher
	policies  *calendar.PolicyRegistry
	snapshots domain.SnapshotRepository
	logger    *zerolog.Logger

	// one mutex per source id; a source never syncs concurrently with itself
	sourceLocks sync.Map
}

func NewSynchronizer(
	store domain.Store,
	fetcher calendar.Fetcher,
	policies *calendar.PolicyRegistry,
	snapshots domain.SnapshotRepository,
	logger *zerolog.Logger,
) *Synchronizer {
	return &Synchronizer{
		store:     store,
		fetcher:   fetcher,
		policies:  policies,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Signature builds the stable dedup key for a synchronized range.
func Signature(createdBy, reason string, start, end time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		createdBy, reason, start.Format(models.DateFormat), end.Format(models.DateFormat))
	return hex.EncodeToString(h.Sum(nil))
}

// SyncAll synchronizes every syncable source. A failure on one source is
// recorded on that source only; the run continues with the rest. When the
// source list itself cannot be loaded, a single failed result is returned so
// the caller sees a broken run rather than an empty calendar.
func (s *Synchronizer) SyncAll(ctx context.Context) []*models.SyncResult {
	sources, err := s.store.GetSyncableSources(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sync: failed to load sources")
		return []*models.SyncResult{failedResult(0, "", fmt.Errorf("load sources: %w", err))}
	}

	results := make([]*models.SyncResult, 0, len(sources))
	for _, source := range sources {
		results = append(results, s.syncLocked(ctx, source))
	}
	return results
}

// SyncSource synchronizes a single source by id.
func (s *Synchronizer) SyncSource(ctx context.Context, sourceID int64) *models.SyncResult {
	source, err := s.store.GetCalendarSource(ctx, sourceID)
	if err != nil {
		return failedResult(sourceID, "", fmt.Errorf("load source: %w", err))
	}
	if source.Status == models.SourceInactive {
		return failedResult(sourceID, source.Platform, errors.New("source is inactive"))
	}
	return s.syncLocked(ctx, source)
}

func (s *Synchronizer) syncLocked(ctx context.Context, source *models.ExternalCalendarSource) *models.SyncResult {
	lockAny, _ := s.sourceLocks.LoadOrStore(source.ID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	if !lock.TryLock() {
		return failedResult(source.ID, source.Platform, errors.New("sync already in progress"))
	}
	defer lock.Unlock()

	result := s.syncOne(ctx, source)

	if result.Err != nil {
		result.Error = result.Err.Error()
		metrics.IncSyncRun(source.Platform, "error")
		if err := s.store.MarkSourceError(ctx, source.ID, result.Error); err != nil {
			s.logger.Error().Err(err).Int64("source_id", source.ID).Msg("sync: failed to record source error")
		}
		s.logger.Error().Err(result.Err).
			Int64("source_id", source.ID).
			Str("platform", source.Platform).
			Msg("sync: source failed")
		return result
	}

	metrics.IncSyncRun(source.Platform, "ok")
	metrics.AddSyncedRanges(source.Platform, result.RangesCreated)
	if err := s.store.MarkSourceSynced(ctx, source.ID, result.SyncedAt); err != nil {
		s.logger.Error().Err(err).Int64("source_id", source.ID).Msg("sync: failed to record success")
	}
	s.logger.Info().
		Int64("source_id", source.ID).
		Str("platform", source.Platform).
		Int("events", result.EventsFound).
		Int("created", result.RangesCreated).
		Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).
		Msg("sync: source completed")
	return result
}

func (s *Synchronizer) syncOne(ctx context.Context, source *models.ExternalCalendarSource) *models.SyncResult {
	result := &models.SyncResult{
		SourceID: source.ID,
		Platform: source.Platform,
		SyncedAt: time.Now(),
	}

	raw, err := s.fetcher.Fetch(ctx, source.FeedURL)
	if err != nil {
		result.Err = fmt.Errorf("fetch: %w", err)
		return result
	}

	events, err := calendar.ParseICS(raw)
	if err != nil {
		result.Err = fmt.Errorf("parse: %w", err)
		return result
	}
	result.EventsFound = len(events)

	policy := s.policies.ForPlatform(source.Platform)
	createdBy := models.CreatedBySync(source.Platform)

	var occupancy []models.ExternalOccupancy
	for _, event := range events {
		blocks, reason := policy.Blocks(event)
		if !blocks {
			continue
		}

		occupancy = append(occupancy, models.ExternalOccupancy{
			SourceID: source.ID,
			Platform: source.Platform,
			Summary:  event.Summary,
			Start:    event.Start,
			End:      event.End,
		})

		inserted, duplicate, err := s.storeBlockingEvent(ctx, source, createdBy, reason, event)
		if err != nil {
			result.Err = err
			return result
		}
		switch {
		case duplicate:
			result.Duplicates++
		case inserted:
			result.RangesCreated++
		default:
			result.Skipped++
		}
	}

	s.updateSnapshot(ctx, source.ID, occupancy)
	return result
}

// storeBlockingEvent inserts one blocked range unless it already exists or
// would overlap a live booking. Returns (inserted, duplicate, err).
func (s *Synchronizer) storeBlockingEvent(
	ctx context.Context,
	source *models.ExternalCalendarSource,
	createdBy, reason string,
	event models.CalendarEvent,
) (bool, bool, error) {
	signature := Signature(createdBy, reason, event.Start, event.End)

	exists, err := s.store.BlockedRangeExists(ctx, signature)
	if err != nil {
		return false, false, fmt.Errorf("check signature: %w", err)
	}
	if exists {
		return false, true, nil
	}

	// A paid guest's dates must never be silently reclassified as blocked.
	blocking, err := s.store.GetBlockingBookings(ctx, models.DateRange{Start: event.Start, End: event.End})
	if err != nil {
		return false, false, fmt.Errorf("check bookings: %w", err)
	}
	if len(blocking) > 0 {
		s.logger.Warn().
			Int64("source_id", source.ID).
			Str("platform", source.Platform).
			Str("uid", event.UID).
			Time("start", event.Start).
			Time("end", event.End).
			Int("bookings", len(blocking)).
			Msg("sync: external event overlaps a live booking, skipping insert")
		metrics.IncSyncSkippedOverlap(source.Platform)
		return false, false, nil
	}

	blockedRange := &models.BlockedDateRange{
		StartDate: event.Start,
		EndDate:   event.End,
		Reason:    reason,
		CreatedBy: createdBy,
		Signature: signature,
	}
	err = s.store.CreateBlockedRange(ctx, blockedRange)
	if errors.Is(err, database.ErrDuplicateRange) {
		// Lost a race with a concurrent run; still a no-op.
		return false, true, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("insert blocked range: %w", err)
	}
	return true, false, nil
}

func (s *Synchronizer) updateSnapshot(ctx context.Context, sourceID int64, occupancy []models.ExternalOccupancy) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.SetSnapshot(ctx, sourceID, occupancy); err != nil {
		s.logger.Warn().Err(err).Int64("source_id", sourceID).Msg("sync: failed to update occupancy snapshot")
	}
}

func failedResult(sourceID int64, platform string, err error) *models.SyncResult {
	return &models.SyncResult{
		SourceID: sourceID,
		Platform: platform,
		Err:      err,
		Error:    err.Error(),
		SyncedAt: time.Now(),
	}
}
