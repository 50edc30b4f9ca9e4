package repository

import (
	"context"
	"sync/atomic"
	"time"

	"villasole/internal/domain"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSnapshotRepository serves snapshots from the primary (redis)
// repository and falls back to the in-memory one when the primary fails.
// Recovery is retried after a cool-down.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotRepository
	fallback  domain.SnapshotRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed primary attempt
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotRepository, logger *zerolog.Logger) *FailoverSnapshotRepository {
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSnapshotRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary snapshot repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSnapshotRepository) shouldRetryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverSnapshotRepository) SetSnapshot(ctx context.Context, sourceID int64, entries []models.ExternalOccupancy) error {
	if r.shouldRetryPrimary() {
		err := r.primary.SetSnapshot(ctx, sourceID, entries)
		if err == nil {
			r.isDown.Store(false)
			// Mirror into the fallback so reads survive a later outage.
			_ = r.fallback.SetSnapshot(ctx, sourceID, entries)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetSnapshot(ctx, sourceID, entries)
}

func (r *FailoverSnapshotRepository) GetSnapshot(ctx context.Context, sourceID int64) ([]models.ExternalOccupancy, error) {
	if r.shouldRetryPrimary() {
		entries, err := r.primary.GetSnapshot(ctx, sourceID)
		if err == nil {
			r.isDown.Store(false)
			return entries, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetSnapshot(ctx, sourceID)
}

func (r *FailoverSnapshotRepository) GetAllSnapshots(ctx context.Context) ([]models.ExternalOccupancy, error) {
	if r.shouldRetryPrimary() {
		entries, err := r.primary.GetAllSnapshots(ctx)
		if err == nil {
			r.isDown.Store(false)
			return entries, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetAllSnapshots(ctx)
}

func (r *FailoverSnapshotRepository) ClearSnapshot(ctx context.Context, sourceID int64) error {
	if r.shouldRetryPrimary() {
		err := r.primary.ClearSnapshot(ctx, sourceID)
		if err == nil {
			r.isDown.Store(false)
			_ = r.fallback.ClearSnapshot(ctx, sourceID)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearSnapshot(ctx, sourceID)
}
