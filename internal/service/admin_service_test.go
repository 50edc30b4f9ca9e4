package service

import (
	"context"
	"testing"
	"time"

	"villasole/internal/database"
	"villasole/internal/models"
	"villasole/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminService(t *testing.T, db *database.DB) (*AdminService, *repository.MemorySnapshotRepository, *fakeBus) {
	t.Helper()
	logger := zerolog.Nop()
	snapshots := repository.NewMemorySnapshotRepository(time.Hour)
	bus := &fakeBus{}
	return NewAdminService(db, snapshots, bus, &logger), snapshots, bus
}

func TestCreateSource(t *testing.T) {
	db := setupTestDB(t)
	svc, _, _ := newTestAdminService(t, db)
	ctx := context.Background()

	source := &models.ExternalCalendarSource{
		Platform: "  Airbnb ",
		FeedURL:  "https://airbnb.example.com/calendar.ics",
	}
	require.NoError(t, svc.CreateSource(ctx, source))
	assert.Equal(t, "airbnb", source.Platform)
	assert.Equal(t, "airbnb", source.Name, "name defaults to the platform")
	assert.Equal(t, models.SourceActive, source.Status)
	assert.NotZero(t, source.ID)
}

func TestCreateSourceValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _, _ := newTestAdminService(t, db)
	ctx := context.Background()

	var verr *models.ValidationError

	err := svc.CreateSource(ctx, &models.ExternalCalendarSource{FeedURL: "https://feed/a"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "platform", verr.Field)

	for _, feedURL := range []string{"", "not a url", "ftp://feed/a", "/relative/path"} {
		err = svc.CreateSource(ctx, &models.ExternalCalendarSource{Platform: "airbnb", FeedURL: feedURL})
		require.ErrorAs(t, err, &verr, feedURL)
		assert.Equal(t, "feed_url", verr.Field)
	}
}

func TestDeleteSourceClearsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	svc, snapshots, _ := newTestAdminService(t, db)
	ctx := context.Background()

	source := &models.ExternalCalendarSource{Platform: "airbnb", FeedURL: "https://feed/a"}
	require.NoError(t, svc.CreateSource(ctx, source))
	require.NoError(t, snapshots.SetSnapshot(ctx, source.ID, []models.ExternalOccupancy{
		{SourceID: source.ID, Platform: "airbnb", Start: date(2026, 7, 1), End: date(2026, 7, 3)},
	}))

	require.NoError(t, svc.DeleteSource(ctx, source.ID))

	_, err := db.GetCalendarSource(ctx, source.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	entries, err := snapshots.GetSnapshot(ctx, source.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateManualBlock(t *testing.T) {
	db := setupTestDB(t)
	svc, _, _ := newTestAdminService(t, db)
	ctx := context.Background()

	blocked, err := svc.CreateManualBlock(ctx, date(2026, 8, 1), date(2026, 8, 5), "")
	require.NoError(t, err)
	assert.Equal(t, "Blocked by owner", blocked.Reason)
	assert.Equal(t, models.CreatedByAdmin, blocked.CreatedBy)
	assert.True(t, blocked.Manual())
	assert.NotEmpty(t, blocked.Signature)

	// Same range twice dedups on the signature.
	_, err = svc.CreateManualBlock(ctx, date(2026, 8, 1), date(2026, 8, 5), "")
	assert.ErrorIs(t, err, database.ErrDuplicateRange)

	_, err = svc.CreateManualBlock(ctx, date(2026, 8, 5), date(2026, 8, 1), "inverted")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "range", verr.Field)
}

func TestCreateManualBlockOverBookingIsReported(t *testing.T) {
	db := setupTestDB(t)
	svc, _, bus := newTestAdminService(t, db)
	ctx := context.Background()

	booking := &models.Booking{
		Reference:  "VS-OVERLAP",
		GuestName:  "Anna Rossi",
		GuestEmail: "anna@example.com",
		CheckIn:    date(2026, 7, 10),
		CheckOut:   date(2026, 7, 14),
		Adults:     2,
		Nights:     4,
		Status:     models.StatusConfirmed,
	}
	require.NoError(t, db.CreateBookingWithLock(ctx, booking))

	// The owner may block the same dates, but the overlap must surface.
	blocked, err := svc.CreateManualBlock(ctx, date(2026, 7, 10), date(2026, 7, 14), "Renovation")
	require.NoError(t, err)
	assert.NotZero(t, blocked.ID)
	assert.Contains(t, bus.published, "overlap_detected")

	// Disjoint dates stay quiet.
	bus.published = nil
	_, err = svc.CreateManualBlock(ctx, date(2026, 9, 1), date(2026, 9, 3), "")
	require.NoError(t, err)
	assert.NotContains(t, bus.published, "overlap_detected")
}

func TestUpdatePricing(t *testing.T) {
	db := setupTestDB(t)
	seedPricing(t, db)
	svc, _, _ := newTestAdminService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpdatePricing(ctx, &models.PricingConfig{
		BasePricePerAdult:    55,
		AdditionalGuestPrice: 30,
		CleaningFee:          70,
		ParkingFeePerNight:   12,
		TouristTaxPerPerson:  2.5,
		MinimumNights:        3,
		DepositPercentage:    0.25,
	}))

	// History is append only; the latest entry wins.
	current, err := svc.GetPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55.0, current.BasePricePerAdult)
	assert.Equal(t, 3, current.MinimumNights)
}

func TestUpdatePricingValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _, _ := newTestAdminService(t, db)
	ctx := context.Background()

	tests := []struct {
		name  string
		cfg   models.PricingConfig
		field string
	}{
		{"zero base price", models.PricingConfig{MinimumNights: 2}, "base_price_per_adult"},
		{"negative fee", models.PricingConfig{BasePricePerAdult: 50, CleaningFee: -1, MinimumNights: 2}, "pricing"},
		{"zero minimum nights", models.PricingConfig{BasePricePerAdult: 50}, "minimum_nights"},
		{"deposit above one", models.PricingConfig{BasePricePerAdult: 50, MinimumNights: 2, DepositPercentage: 1.5}, "deposit_percentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdatePricing(ctx, &tt.cfg)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
