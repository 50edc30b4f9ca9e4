// Package availability reports conflicts for a requested date range across
// live bookings, blocked ranges and the cached external occupancy snapshot.
package availability

import (
	"context"
	"fmt"

	"villasole/internal/domain"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

type Checker struct {
	store     domain.Store
	snapshots domain.SnapshotRepository
	logger    *zerolog.Logger
}

func NewChecker(store domain.Store, snapshots domain.SnapshotRepository, logger *zerolog.Logger) *Checker {
	return &Checker{
		store:     store,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Check unions the three occupancy sources. The range is unavailable if any
// source conflicts. All comparisons use half-open intervals, so a stay
// ending on another's start date does not conflict.
func (c *Checker) Check(ctx context.Context, r models.DateRange) (*models.AvailabilityResult, error) {
	if !r.Start.Before(r.End) {
		return nil, models.NewValidationError("range", "start date must be before end date")
	}

	bookings, err := c.store.GetBlockingBookings(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("check bookings: %w", err)
	}

	blocked, err := c.store.GetOverlappingBlockedRanges(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("check blocked ranges: %w", err)
	}

	external := c.externalConflicts(ctx, r)

	result := &models.AvailabilityResult{
		Available: len(bookings) == 0 && len(blocked) == 0 && len(external) == 0,
		Conflicts: models.AvailabilityConflicts{
			Bookings:     bookings,
			BlockedDates: blocked,
			External:     external,
		},
	}
	return result, nil
}

// externalConflicts filters the cached snapshot against the range. The
// snapshot is advisory; losing it degrades to the two persisted sources
// rather than failing the check.
func (c *Checker) externalConflicts(ctx context.Context, r models.DateRange) []models.ExternalOccupancy {
	if c.snapshots == nil {
		return nil
	}

	entries, err := c.snapshots.GetAllSnapshots(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("availability: snapshot lookup failed, continuing without external source")
		return nil
	}

	var conflicts []models.ExternalOccupancy
	for _, entry := range entries {
		occupied := models.DateRange{Start: entry.Start, End: entry.End}
		if occupied.Overlaps(r) {
			conflicts = append(conflicts, entry)
		}
	}
	return conflicts
}
