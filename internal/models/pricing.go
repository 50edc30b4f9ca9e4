package models

import "time"

// PricingConfig holds the authoritative pricing parameters. Loaded, not
// mutated, by the pricing calculator per call.
type PricingConfig struct {
	ID                   int64     `json:"id"`
	BasePricePerAdult    float64   `json:"base_price_per_adult" yaml:"base_price_per_adult"`
	AdditionalGuestPrice float64   `json:"additional_guest_price" yaml:"additional_guest_price"`
	CleaningFee          float64   `json:"cleaning_fee" yaml:"cleaning_fee"`
	ParkingFeePerNight   float64   `json:"parking_fee_per_night" yaml:"parking_fee_per_night"`
	TouristTaxPerPerson  float64   `json:"tourist_tax_per_person" yaml:"tourist_tax_per_person"`
	MinimumNights        int       `json:"minimum_nights" yaml:"minimum_nights"`
	DepositPercentage    float64   `json:"deposit_percentage" yaml:"deposit_percentage"`
	UpdatedAt            time.Time `json:"updated_at" yaml:"-"`
}

// CostBreakdown is the result of a pricing computation. It becomes
// authoritative only once copied into a Booking.
type CostBreakdown struct {
	Nights        int     `json:"nights"`
	PayingGuests  int     `json:"paying_guests"`
	TaxableGuests int     `json:"taxable_guests"`
	CostPerNight  float64 `json:"cost_per_night"`
	BasePrice     float64 `json:"base_price"`
	ParkingCost   float64 `json:"parking_cost"`
	CleaningFee   float64 `json:"cleaning_fee"`
	TouristTax    float64 `json:"tourist_tax"`
	TotalAmount   float64 `json:"total_amount"`
	DepositAmount float64 `json:"deposit_amount"`
}
