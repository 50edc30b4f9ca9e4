package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"villasole/internal/config"
	"villasole/internal/database"
	"villasole/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	quote     *models.CostBreakdown
	quoteErr  error
	booking   *models.Booking
	createErr error
	available bool
}

func (f *fakeBookings) GetQuote(ctx context.Context, params models.StayParams) (*models.CostBreakdown, error) {
	return f.quote, f.quoteErr
}

func (f *fakeBookings) CheckAvailability(ctx context.Context, r models.DateRange) (*models.AvailabilityResult, error) {
	return &models.AvailabilityResult{Available: f.available}, nil
}

func (f *fakeBookings) CreateBooking(ctx context.Context, params models.StayParams, guest models.GuestInfo, payment models.PaymentChoice) (*models.Booking, error) {
	return f.booking, f.createErr
}

func (f *fakeBookings) ConfirmPayment(ctx context.Context, reference, method string) (*models.Booking, error) {
	if f.booking == nil || f.booking.Reference != reference {
		return nil, database.ErrNotFound
	}
	confirmed := *f.booking
	confirmed.Status = models.StatusConfirmed
	return &confirmed, nil
}

func (f *fakeBookings) CancelBooking(ctx context.Context, reference string) (*models.Booking, error) {
	if f.booking == nil || f.booking.Reference != reference {
		return nil, database.ErrNotFound
	}
	cancelled := *f.booking
	cancelled.Status = models.StatusCancelled
	return &cancelled, nil
}

func (f *fakeBookings) GetBooking(ctx context.Context, reference string) (*models.Booking, error) {
	if f.booking == nil || f.booking.Reference != reference {
		return nil, database.ErrNotFound
	}
	return f.booking, nil
}

type fakeAdmin struct {
	sources   []*models.ExternalCalendarSource
	blocked   *models.BlockedDateRange
	pricing   *models.PricingConfig
	createErr error
}

func (f *fakeAdmin) CreateSource(ctx context.Context, source *models.ExternalCalendarSource) error {
	source.ID = 7
	return f.createErr
}

func (f *fakeAdmin) ListSources(ctx context.Context) ([]*models.ExternalCalendarSource, error) {
	return f.sources, nil
}

func (f *fakeAdmin) DeleteSource(ctx context.Context, id int64) error {
	if id == 404 {
		return database.ErrNotFound
	}
	return nil
}

func (f *fakeAdmin) CreateManualBlock(ctx context.Context, start, end time.Time, reason string) (*models.BlockedDateRange, error) {
	if f.blocked == nil {
		return nil, database.ErrDuplicateRange
	}
	return f.blocked, nil
}

func (f *fakeAdmin) ListBlockedRanges(ctx context.Context) ([]*models.BlockedDateRange, error) {
	return nil, nil
}

func (f *fakeAdmin) DeleteBlockedRange(ctx context.Context, id int64) error { return nil }

func (f *fakeAdmin) GetPricing(ctx context.Context) (*models.PricingConfig, error) {
	return f.pricing, nil
}

func (f *fakeAdmin) UpdatePricing(ctx context.Context, cfg *models.PricingConfig) error {
	if cfg.BasePricePerAdult <= 0 {
		return models.NewValidationError("base_price_per_adult", "base price must be positive")
	}
	f.pricing = cfg
	return nil
}

type fakeSync struct {
	result  *models.SyncResult
	results []*models.SyncResult
}

func (f *fakeSync) SyncSource(ctx context.Context, sourceID int64) *models.SyncResult {
	return f.result
}

func (f *fakeSync) SyncAll(ctx context.Context) []*models.SyncResult {
	return f.results
}

type fakeExporter struct {
	path string
	err  error
}

func (f *fakeExporter) ExportOccupancy(ctx context.Context, start, end time.Time) (string, error) {
	return f.path, f.err
}

func newTestServer(t *testing.T, cfg config.APIConfig, bookings BookingAPI, admin AdminAPI, syncAPI SyncAPI) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()
	srv := NewHTTPServer(cfg, bookings, admin, syncAPI, &fakeExporter{}, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, Port: 0}
}

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: "admin-key", Name: "owner", Permissions: []string{"admin"}},
				{Key: "widget-key", Name: "widget", Permissions: []string{"read:availability", "write:bookings"}},
			},
		},
	}
}

func TestHealthBypassesAuth(t *testing.T) {
	ts := newTestServer(t, authConfig(), &fakeBookings{}, &fakeAdmin{}, &fakeSync{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, authConfig(), &fakeBookings{available: true}, &fakeAdmin{}, &fakeSync{})
	availURL := ts.URL + "/api/v1/availability?check_in=2026-07-10&check_out=2026-07-15"

	t.Run("MissingKey", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, availURL, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, availURL, nil, map[string]string{"x-api-key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ValidKey", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, availURL, nil, map[string]string{"x-api-key": "widget-key"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("MissingPermission", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/sources", nil, map[string]string{"x-api-key": "widget-key"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("AdminImpliesAll", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, availURL, nil, map[string]string{"x-api-key": "admin-key"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/sources", nil, map[string]string{"x-api-key": "admin-key"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	ts := newTestServer(t, cfg, &fakeBookings{available: true}, &fakeAdmin{}, &fakeSync{})

	url := ts.URL + "/api/v1/availability?check_in=2026-07-10&check_out=2026-07-15"
	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodGet, url, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := doJSON(t, http.MethodGet, url, nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestQuoteEndpoint(t *testing.T) {
	bookings := &fakeBookings{quote: &models.CostBreakdown{Nights: 4, TotalAmount: 476}}
	ts := newTestServer(t, openConfig(), bookings, &fakeAdmin{}, &fakeSync{})

	body := map[string]any{
		"check_in":  "2026-07-10",
		"check_out": "2026-07-14",
		"adults":    2,
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/quote", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var breakdown models.CostBreakdown
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&breakdown))
	assert.Equal(t, 476.0, breakdown.TotalAmount)

	t.Run("BadDate", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/quote",
			map[string]any{"check_in": "10/07/2026", "check_out": "2026-07-14"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("UnknownField", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/quote",
			map[string]any{"check_in": "2026-07-10", "check_out": "2026-07-14", "pets": 1}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/quote", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestCreateBookingEndpoint(t *testing.T) {
	booking := &models.Booking{ID: 1, Reference: "ref-1", Status: models.StatusPending, TotalAmount: 476}
	bookings := &fakeBookings{booking: booking}
	ts := newTestServer(t, openConfig(), bookings, &fakeAdmin{}, &fakeSync{})

	body := map[string]any{
		"check_in":  "2026-07-10",
		"check_out": "2026-07-14",
		"adults":    2,
		"guest":     map[string]any{"name": "Anna", "email": "anna@example.com"},
		"payment":   map[string]any{"method": "card", "type": "full"},
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "ref-1", created.Reference)

	t.Run("Unavailable", func(t *testing.T) {
		bookings.createErr = database.ErrRangeUnavailable
		defer func() { bookings.createErr = nil }()

		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", body, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	booking := &models.Booking{ID: 1, Reference: "ref-1", Status: models.StatusPending}
	ts := newTestServer(t, openConfig(), &fakeBookings{booking: booking}, &fakeAdmin{}, &fakeSync{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/ref-1", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/ref-1/confirm",
		map[string]any{"method": "bank_transfer"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmed models.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&confirmed))
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/ref-1/cancel", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncEndpoints(t *testing.T) {
	sync := &fakeSync{
		result:  &models.SyncResult{SourceID: 3, RangesCreated: 2},
		results: []*models.SyncResult{{SourceID: 3}},
	}
	ts := newTestServer(t, openConfig(), &fakeBookings{}, &fakeAdmin{}, sync)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/sync", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/sync/3", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("FailedSync", func(t *testing.T) {
		sync.result = &models.SyncResult{SourceID: 3, Err: fmt.Errorf("boom"), Error: "boom"}
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/sync/3", nil, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestSourceEndpoints(t *testing.T) {
	ts := newTestServer(t, openConfig(), &fakeBookings{}, &fakeAdmin{}, &fakeSync{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/sources",
		map[string]any{"platform": "airbnb", "feed_url": "https://feed/a"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/sources/7", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/sources/404", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBlockedDateEndpoints(t *testing.T) {
	admin := &fakeAdmin{blocked: &models.BlockedDateRange{ID: 1, Reason: "Maintenance"}}
	ts := newTestServer(t, openConfig(), &fakeBookings{}, admin, &fakeSync{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/blocked-dates",
		map[string]any{"start_date": "2026-08-01", "end_date": "2026-08-05", "reason": "Maintenance"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("Duplicate", func(t *testing.T) {
		admin.blocked = nil
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/blocked-dates",
			map[string]any{"start_date": "2026-08-01", "end_date": "2026-08-05"}, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("BadDate", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/blocked-dates",
			map[string]any{"start_date": "soon", "end_date": "2026-08-05"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPricingEndpoints(t *testing.T) {
	admin := &fakeAdmin{pricing: &models.PricingConfig{BasePricePerAdult: 45, MinimumNights: 2}}
	ts := newTestServer(t, openConfig(), &fakeBookings{}, admin, &fakeSync{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/pricing", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg models.PricingConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, 45.0, cfg.BasePricePerAdult)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/pricing",
		map[string]any{"base_price_per_adult": 55.0, "minimum_nights": 3}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("Invalid", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/v1/pricing",
			map[string]any{"base_price_per_adult": 0}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
