// Package service holds the orchestration layer between the transport
// handlers and the core packages.
package service

import (
	"context"
	"errors"
	"fmt"

	"villasole/internal/database"
	"villasole/internal/domain"
	"villasole/internal/events"
	"villasole/internal/metrics"
	"villasole/internal/models"
	"villasole/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService drives the quote, availability and booking flows. A quote
// and the booking created from the same parameters always carry the same
// amounts.
type BookingService struct {
	store        domain.Store
	checker      domain.AvailabilityChecker
	eventBus     domain.EventPublisher
	notifyWorker domain.NotifyWorker
	logger       *zerolog.Logger
}

func NewBookingService(
	store domain.Store,
	checker domain.AvailabilityChecker,
	eventBus domain.EventPublisher,
	notifyWorker domain.NotifyWorker,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:        store,
		checker:      checker,
		eventBus:     eventBus,
		notifyWorker: notifyWorker,
		logger:       logger,
	}
}

// GetQuote prices a stay without reserving anything.
func (s *BookingService) GetQuote(ctx context.Context, params models.StayParams) (*models.CostBreakdown, error) {
	if err := pricing.ValidateStay(params); err != nil {
		metrics.IncQuoteRejection("validation")
		return nil, err
	}

	cfg, err := s.store.GetPricingConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}

	breakdown, err := pricing.Calculate(params, cfg)
	if err != nil {
		metrics.IncQuoteRejection("minimum_nights")
		return nil, err
	}
	return breakdown, nil
}

// CheckAvailability reports whether the range is free and what conflicts
// with it.
func (s *BookingService) CheckAvailability(ctx context.Context, r models.DateRange) (*models.AvailabilityResult, error) {
	return s.checker.Check(ctx, r)
}

// CreateBooking validates, prices and persists a booking. The availability
// pre-check gives a fast answer; the insert re-checks inside a transaction,
// so two concurrent requests for the same dates cannot both succeed.
func (s *BookingService) CreateBooking(
	ctx context.Context,
	params models.StayParams,
	guest models.GuestInfo,
	payment models.PaymentChoice,
) (*models.Booking, error) {
	if err := pricing.ValidateStay(params); err != nil {
		metrics.IncQuoteRejection("validation")
		return nil, err
	}
	if err := validateGuest(guest); err != nil {
		metrics.IncQuoteRejection("validation")
		return nil, err
	}
	if err := validatePayment(payment); err != nil {
		metrics.IncQuoteRejection("validation")
		return nil, err
	}

	availability, err := s.checker.Check(ctx, models.DateRange{Start: params.CheckIn, End: params.CheckOut})
	if err != nil {
		return nil, fmt.Errorf("availability pre-check: %w", err)
	}
	if !availability.Available {
		metrics.IncQuoteRejection("unavailable")
		return nil, database.ErrRangeUnavailable
	}

	cfg, err := s.store.GetPricingConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing config: %w", err)
	}
	breakdown, err := pricing.Calculate(params, cfg)
	if err != nil {
		metrics.IncQuoteRejection("minimum_nights")
		return nil, err
	}

	paymentAmount := breakdown.TotalAmount
	if payment.Type == models.PaymentTypeDeposit {
		paymentAmount = breakdown.DepositAmount
	}

	booking := &models.Booking{
		Reference:     uuid.NewString(),
		GuestName:     guest.Name,
		GuestEmail:    guest.Email,
		GuestPhone:    guest.Phone,
		CheckIn:       params.CheckIn,
		CheckOut:      params.CheckOut,
		Adults:        params.Adults,
		ChildrenAges:  params.ChildrenAges,
		ParkingOption: params.ParkingOption,
		Nights:        breakdown.Nights,
		BasePrice:     breakdown.BasePrice,
		ParkingCost:   breakdown.ParkingCost,
		CleaningFee:   breakdown.CleaningFee,
		TouristTax:    breakdown.TouristTax,
		TotalAmount:   breakdown.TotalAmount,
		DepositAmount: breakdown.DepositAmount,
		PaymentMethod: payment.Method,
		PaymentType:   payment.Type,
		PaymentAmount: paymentAmount,
		Status:        models.StatusPending,
		Comment:       guest.Comment,
	}

	if err := s.store.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, database.ErrRangeUnavailable) {
			metrics.IncQuoteRejection("unavailable")
		}
		return nil, err
	}

	metrics.IncBookingCreated(booking.PaymentType)
	s.publishEvent(events.EventBookingCreated, booking)
	s.enqueueNotify(ctx, booking, false)

	s.logger.Info().
		Str("reference", booking.Reference).
		Time("check_in", booking.CheckIn).
		Time("check_out", booking.CheckOut).
		Float64("total", booking.TotalAmount).
		Msg("booking created")

	return booking, nil
}

// ConfirmPayment moves a pending booking to confirmed once its payment has
// been received.
func (s *BookingService) ConfirmPayment(ctx context.Context, reference, method string) (*models.Booking, error) {
	booking, err := s.store.GetBookingByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending {
		return nil, models.NewValidationError("status",
			fmt.Sprintf("cannot confirm payment for a %s booking", booking.Status))
	}
	if method == "" {
		method = booking.PaymentMethod
	}

	if err := s.store.ConfirmBookingPayment(ctx, booking.ID, booking.Version, method, booking.PaymentAmount); err != nil {
		return nil, err
	}

	booking, err = s.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingConfirmed, booking)
	s.enqueueNotify(ctx, booking, true)
	return booking, nil
}

// CancelBooking releases the booking's dates.
func (s *BookingService) CancelBooking(ctx context.Context, reference string) (*models.Booking, error) {
	booking, err := s.store.GetBookingByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !booking.Blocking() {
		return nil, models.NewValidationError("status",
			fmt.Sprintf("cannot cancel a %s booking", booking.Status))
	}

	if err := s.store.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled); err != nil {
		return nil, err
	}

	booking, err = s.store.GetBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCanceled, booking)
	return booking, nil
}

// GetBooking loads a booking by its public reference.
func (s *BookingService) GetBooking(ctx context.Context, reference string) (*models.Booking, error) {
	return s.store.GetBookingByReference(ctx, reference)
}

// GetBookingsByDateRange lists bookings touching the period, for reporting.
func (s *BookingService) GetBookingsByDateRange(ctx context.Context, r models.DateRange) ([]*models.Booking, error) {
	return s.store.GetBookingsByDateRange(ctx, r.Start, r.End)
}

func validateGuest(guest models.GuestInfo) error {
	if guest.Name == "" {
		return models.NewValidationError("name", "guest name is required")
	}
	if guest.Email == "" && guest.Phone == "" {
		return models.NewValidationError("contact", "an email or phone number is required")
	}
	return nil
}

func validatePayment(payment models.PaymentChoice) error {
	switch payment.Type {
	case models.PaymentTypeDeposit, models.PaymentTypeFull:
		return nil
	default:
		return models.NewValidationError("payment_type", "payment type must be deposit or full")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		Reference:     booking.Reference,
		GuestName:     booking.GuestName,
		CheckIn:       booking.CheckIn,
		CheckOut:      booking.CheckOut,
		Status:        booking.Status,
		TotalAmount:   booking.TotalAmount,
		PaymentType:   booking.PaymentType,
		PaymentAmount: booking.PaymentAmount,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueNotify(ctx context.Context, booking *models.Booking, confirmed bool) {
	if s.notifyWorker == nil {
		return
	}

	var err error
	if confirmed {
		err = s.notifyWorker.EnqueueBookingConfirmed(ctx, booking)
	} else {
		err = s.notifyWorker.EnqueueBookingCreated(ctx, booking)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("notify enqueue error")
	}
}
