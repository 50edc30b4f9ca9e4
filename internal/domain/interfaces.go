package domain

import (
	"context"
	"time"

	"villasole/internal/models"
)

// Store is the persistence surface the core depends on.
type Store interface {
	// Bookings
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetBlockingBookings(ctx context.Context, r models.DateRange) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	ConfirmBookingPayment(ctx context.Context, id, fromVersion int64, method string, amount float64) error

	// Blocked ranges
	CreateBlockedRange(ctx context.Context, r *models.BlockedDateRange) error
	BlockedRangeExists(ctx context.Context, signature string) (bool, error)
	GetOverlappingBlockedRanges(ctx context.Context, r models.DateRange) ([]*models.BlockedDateRange, error)
	GetBlockedRanges(ctx context.Context) ([]*models.BlockedDateRange, error)
	DeleteBlockedRange(ctx context.Context, id int64) error
	DeleteStaleSyncedRanges(ctx context.Context, cutoff time.Time, activeCreators []string) (int64, error)
	DeleteSyncedShadowedByManual(ctx context.Context) (int64, error)

	// Calendar sources
	CreateCalendarSource(ctx context.Context, source *models.ExternalCalendarSource) error
	GetCalendarSource(ctx context.Context, id int64) (*models.ExternalCalendarSource, error)
	GetSyncableSources(ctx context.Context) ([]*models.ExternalCalendarSource, error)
	ListCalendarSources(ctx context.Context) ([]*models.ExternalCalendarSource, error)
	DeleteCalendarSource(ctx context.Context, id int64) error
	MarkSourceSynced(ctx context.Context, id int64, at time.Time) error
	MarkSourceError(ctx context.Context, id int64, message string) error

	// Pricing
	GetPricingConfig(ctx context.Context) (*models.PricingConfig, error)
	SavePricingConfig(ctx context.Context, cfg *models.PricingConfig) error
}

// SnapshotRepository caches the external occupancy seen during the last sync
// of each source, including events that were not persisted as blocked ranges.
type SnapshotRepository interface {
	SetSnapshot(ctx context.Context, sourceID int64, entries []models.ExternalOccupancy) error
	GetSnapshot(ctx context.Context, sourceID int64) ([]models.ExternalOccupancy, error)
	GetAllSnapshots(ctx context.Context) ([]models.ExternalOccupancy, error)
	ClearSnapshot(ctx context.Context, sourceID int64) error
}

// AvailabilityChecker answers whether a date range is free.
type AvailabilityChecker interface {
	Check(ctx context.Context, r models.DateRange) (*models.AvailabilityResult, error)
}

// Synchronizer reconciles external calendar feeds into blocked ranges.
type Synchronizer interface {
	SyncSource(ctx context.Context, sourceID int64) *models.SyncResult
	SyncAll(ctx context.Context) []*models.SyncResult
}

// Notifier sends a message about a persisted booking. Best effort only.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, booking *models.Booking) error
	NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error
	NotifyEscalation(ctx context.Context, message string) error
}

// NotifyWorker enqueues durable best-effort notification jobs.
type NotifyWorker interface {
	EnqueueBookingCreated(ctx context.Context, booking *models.Booking) error
	EnqueueBookingConfirmed(ctx context.Context, booking *models.Booking) error
}

// EventPublisher publishes in-process domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
