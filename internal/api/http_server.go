// Package api exposes the guest and admin HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"villasole/internal/config"
	"villasole/internal/database"
	"villasole/internal/metrics"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer wires the service layer to HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings BookingAPI
	admin    AdminAPI
	sync     SyncAPI
	exporter ExportAPI
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

// BookingAPI is the guest-facing service surface.
type BookingAPI interface {
	GetQuote(ctx context.Context, params models.StayParams) (*models.CostBreakdown, error)
	CheckAvailability(ctx context.Context, r models.DateRange) (*models.AvailabilityResult, error)
	CreateBooking(ctx context.Context, params models.StayParams, guest models.GuestInfo, payment models.PaymentChoice) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, reference, method string) (*models.Booking, error)
	CancelBooking(ctx context.Context, reference string) (*models.Booking, error)
	GetBooking(ctx context.Context, reference string) (*models.Booking, error)
}

// AdminAPI is the owner-facing service surface.
type AdminAPI interface {
	CreateSource(ctx context.Context, source *models.ExternalCalendarSource) error
	ListSources(ctx context.Context) ([]*models.ExternalCalendarSource, error)
	DeleteSource(ctx context.Context, id int64) error
	CreateManualBlock(ctx context.Context, start, end time.Time, reason string) (*models.BlockedDateRange, error)
	ListBlockedRanges(ctx context.Context) ([]*models.BlockedDateRange, error)
	DeleteBlockedRange(ctx context.Context, id int64) error
	GetPricing(ctx context.Context) (*models.PricingConfig, error)
	UpdatePricing(ctx context.Context, cfg *models.PricingConfig) error
}

// SyncAPI triggers calendar synchronization on demand.
type SyncAPI interface {
	SyncSource(ctx context.Context, sourceID int64) *models.SyncResult
	SyncAll(ctx context.Context) []*models.SyncResult
}

// ExportAPI produces report files.
type ExportAPI interface {
	ExportOccupancy(ctx context.Context, start, end time.Time) (string, error)
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings BookingAPI,
	admin AdminAPI,
	syncAPI SyncAPI,
	exporter ExportAPI,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		admin:    admin,
		sync:     syncAPI,
		exporter: exporter,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/quote", srv.handleQuote)
	mux.HandleFunc("/api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByReference)
	mux.HandleFunc("/api/v1/sync", srv.handleSyncAll)
	mux.HandleFunc("/api/v1/sync/", srv.handleSyncSource)
	mux.HandleFunc("/api/v1/sources", srv.handleSources)
	mux.HandleFunc("/api/v1/sources/", srv.handleSourceByID)
	mux.HandleFunc("/api/v1/blocked-dates", srv.handleBlockedDates)
	mux.HandleFunc("/api/v1/blocked-dates/", srv.handleBlockedDateByID)
	mux.HandleFunc("/api/v1/pricing", srv.handlePricing)
	mux.HandleFunc("/api/v1/reports/occupancy", srv.handleOccupancyReport)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var validation *models.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, database.ErrRangeUnavailable):
		writeError(w, http.StatusConflict, "requested dates are not available")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "booking was modified concurrently, retry")
	case errors.Is(err, database.ErrDuplicateRange):
		writeError(w, http.StatusConflict, "an identical blocked range already exists")
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
