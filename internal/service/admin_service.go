package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"villasole/internal/calsync"
	"villasole/internal/domain"
	"villasole/internal/events"
	"villasole/internal/metrics"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

// AdminService covers the owner-facing operations: calendar sources, manual
// blocks and pricing configuration.
type AdminService struct {
	store     domain.Store
	snapshots domain.SnapshotRepository
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
}

func NewAdminService(store domain.Store, snapshots domain.SnapshotRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *AdminService {
	return &AdminService{
		store:     store,
		snapshots: snapshots,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// CreateSource registers a calendar feed for synchronization.
func (s *AdminService) CreateSource(ctx context.Context, source *models.ExternalCalendarSource) error {
	source.Platform = strings.ToLower(strings.TrimSpace(source.Platform))
	if source.Platform == "" {
		return models.NewValidationError("platform", "platform is required")
	}
	if source.Name == "" {
		source.Name = source.Platform
	}

	parsed, err := url.Parse(source.FeedURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return models.NewValidationError("feed_url", "feed_url must be an absolute http(s) URL")
	}

	if source.Status == "" {
		source.Status = models.SourceActive
	}
	return s.store.CreateCalendarSource(ctx, source)
}

func (s *AdminService) ListSources(ctx context.Context) ([]*models.ExternalCalendarSource, error) {
	return s.store.ListCalendarSources(ctx)
}

// DeleteSource removes the source and clears its cached snapshot. Blocked
// ranges it created are left for the stale cleanup job.
func (s *AdminService) DeleteSource(ctx context.Context, id int64) error {
	if err := s.store.DeleteCalendarSource(ctx, id); err != nil {
		return err
	}
	if s.snapshots != nil {
		if err := s.snapshots.ClearSnapshot(ctx, id); err != nil {
			s.logger.Warn().Err(err).Int64("source_id", id).Msg("failed to clear snapshot for deleted source")
		}
	}
	return nil
}

// CreateManualBlock records an admin-created blocked range. Manual blocks
// are allowed to coexist with synced ranges; they are never removed by sync.
// Blocking a live booking's dates is permitted, the owner may have a reason,
// but it is never silent: the overlap is logged, counted and published.
func (s *AdminService) CreateManualBlock(ctx context.Context, start, end time.Time, reason string) (*models.BlockedDateRange, error) {
	if !start.Before(end) {
		return nil, models.NewValidationError("range", "start date must be before end date")
	}
	if reason == "" {
		reason = "Blocked by owner"
	}

	overlapping, err := s.store.GetBlockingBookings(ctx, models.DateRange{Start: start, End: end})
	if err != nil {
		return nil, err
	}

	blocked := &models.BlockedDateRange{
		StartDate: start,
		EndDate:   end,
		Reason:    reason,
		CreatedBy: models.CreatedByAdmin,
		Signature: calsync.Signature(models.CreatedByAdmin, reason, start, end),
	}
	if err := s.store.CreateBlockedRange(ctx, blocked); err != nil {
		return nil, err
	}

	if len(overlapping) > 0 {
		s.logger.Warn().
			Time("start", start).
			Time("end", end).
			Int("bookings", len(overlapping)).
			Msg("manual block covers a live booking")
		metrics.IncManualBlockOverlap()
		s.publishOverlap("manual_block", len(overlapping), start, end)
	}
	return blocked, nil
}

func (s *AdminService) publishOverlap(origin string, conflicts int, start, end time.Time) {
	if s.eventBus == nil {
		return
	}
	payload := events.OverlapEventPayload{
		Origin:    origin,
		Conflicts: conflicts,
		StartDate: start,
		EndDate:   end,
	}
	if err := s.eventBus.PublishJSON(events.EventOverlapDetected, payload); err != nil {
		s.logger.Error().Err(err).Msg("publish overlap event error")
	}
}

func (s *AdminService) ListBlockedRanges(ctx context.Context) ([]*models.BlockedDateRange, error) {
	return s.store.GetBlockedRanges(ctx)
}

func (s *AdminService) DeleteBlockedRange(ctx context.Context, id int64) error {
	return s.store.DeleteBlockedRange(ctx, id)
}

func (s *AdminService) GetPricing(ctx context.Context) (*models.PricingConfig, error) {
	return s.store.GetPricingConfig(ctx)
}

// UpdatePricing appends a new pricing configuration. Existing bookings keep
// the amounts they were created with.
func (s *AdminService) UpdatePricing(ctx context.Context, cfg *models.PricingConfig) error {
	if cfg.BasePricePerAdult <= 0 {
		return models.NewValidationError("base_price_per_adult", "base price must be positive")
	}
	if cfg.AdditionalGuestPrice < 0 || cfg.ParkingFeePerNight < 0 ||
		cfg.CleaningFee < 0 || cfg.TouristTaxPerPerson < 0 {
		return models.NewValidationError("pricing", "fees cannot be negative")
	}
	if cfg.MinimumNights < 1 {
		return models.NewValidationError("minimum_nights", "minimum nights must be at least 1")
	}
	if cfg.DepositPercentage < 0 || cfg.DepositPercentage > 1 {
		return models.NewValidationError("deposit_percentage", "deposit percentage must be within [0,1]")
	}
	return s.store.SavePricingConfig(ctx, cfg)
}
