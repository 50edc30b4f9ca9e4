// Package pricing computes deterministic cost breakdowns for a stay. The
// calculation is pure: the same parameters and configuration always produce
// the same result, so a quote and the charge derived from it are identical.
package pricing

import (
	"fmt"
	"math"
	"time"

	"villasole/internal/models"
)

// Calculate builds a cost breakdown for the stay, or returns a
// ValidationError when the stay is shorter than the configured minimum.
// Safe for concurrent use; reused unchanged for quotes and charges.
func Calculate(params models.StayParams, cfg *models.PricingConfig) (*models.CostBreakdown, error) {
	nights := countNights(params.CheckIn, params.CheckOut)
	if nights < cfg.MinimumNights {
		return nil, models.NewValidationError("nights",
			fmt.Sprintf("stay of %d nights is below the minimum of %d", nights, cfg.MinimumNights))
	}

	payingChildren := 0
	taxableChildren := 0
	for _, age := range params.ChildrenAges {
		if age > models.FreeStayMaxAge {
			payingChildren++
		}
		if age >= models.TouristTaxMinAge {
			taxableChildren++
		}
	}

	payingGuests := params.Adults + payingChildren
	taxableGuests := params.Adults + taxableChildren

	baseGuests := payingGuests
	if baseGuests > models.TieredGuestThreshold {
		baseGuests = models.TieredGuestThreshold
	}
	extraGuests := payingGuests - models.TieredGuestThreshold
	if extraGuests < 0 {
		extraGuests = 0
	}

	costPerNight := float64(baseGuests)*cfg.BasePricePerAdult +
		float64(extraGuests)*cfg.AdditionalGuestPrice
	basePrice := costPerNight * float64(nights)

	var parkingCost float64
	if params.ParkingOption == models.ParkingPrivate {
		parkingCost = float64(nights) * cfg.ParkingFeePerNight
	}

	touristTax := float64(taxableGuests) * cfg.TouristTaxPerPerson * float64(nights)

	depositPct := cfg.DepositPercentage
	if depositPct == 0 {
		depositPct = models.DefaultDepositPercentage
	}

	// Each monetary field rounds independently; totals are not re-derived
	// from already rounded components.
	totalAmount := basePrice + parkingCost + cfg.CleaningFee + touristTax
	breakdown := &models.CostBreakdown{
		Nights:        nights,
		PayingGuests:  payingGuests,
		TaxableGuests: taxableGuests,
		CostPerNight:  round2(costPerNight),
		BasePrice:     round2(basePrice),
		ParkingCost:   round2(parkingCost),
		CleaningFee:   round2(cfg.CleaningFee),
		TouristTax:    round2(touristTax),
		TotalAmount:   round2(totalAmount),
		DepositAmount: round2(totalAmount * depositPct),
	}

	return breakdown, nil
}

// ValidateStay checks the structural parts of a stay request before pricing
// or persistence.
func ValidateStay(params models.StayParams) error {
	if params.CheckIn.IsZero() {
		return models.NewValidationError("check_in", "check-in date is required")
	}
	if params.CheckOut.IsZero() {
		return models.NewValidationError("check_out", "check-out date is required")
	}
	if !params.CheckOut.After(params.CheckIn) {
		return models.NewValidationError("check_out", "check-out must be after check-in")
	}
	if params.Adults < 1 {
		return models.NewValidationError("adults", "at least one adult is required")
	}
	for _, age := range params.ChildrenAges {
		if age < 0 {
			return models.NewValidationError("children_ages", "child age cannot be negative")
		}
	}
	switch params.ParkingOption {
	case "", models.ParkingNone, models.ParkingStreet, models.ParkingPrivate:
	default:
		return models.NewValidationError("parking_option", "unknown parking option "+params.ParkingOption)
	}
	return nil
}

func countNights(checkIn, checkOut time.Time) int {
	return int(math.Round(checkOut.Sub(checkIn).Hours() / 24))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
