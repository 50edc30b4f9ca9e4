package models

import "time"

type Booking struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	GuestPhone    string    `json:"guest_phone"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Adults        int       `json:"adults"`
	ChildrenAges  []int     `json:"children_ages"`
	ParkingOption string    `json:"parking_option"` // none, street, private
	Nights        int       `json:"nights"`
	BasePrice     float64   `json:"base_price"`
	ParkingCost   float64   `json:"parking_cost"`
	CleaningFee   float64   `json:"cleaning_fee"`
	TouristTax    float64   `json:"tourist_tax"`
	TotalAmount   float64   `json:"total_amount"`
	DepositAmount float64   `json:"deposit_amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentType   string    `json:"payment_type"` // deposit, full
	PaymentAmount float64   `json:"payment_amount"`
	Status        string    `json:"status"` // pending, confirmed, cancelled, completed
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// Blocking reports whether the booking occupies its date range.
// Only pending and confirmed bookings count against availability.
func (b *Booking) Blocking() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Range returns the booking's stay as a half-open date range.
func (b *Booking) Range() DateRange {
	return DateRange{Start: b.CheckIn, End: b.CheckOut}
}

// StayParams is the guest-supplied part of a quote or booking request.
type StayParams struct {
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Adults        int       `json:"adults"`
	ChildrenAges  []int     `json:"children_ages"`
	ParkingOption string    `json:"parking_option"`
}

// GuestInfo identifies the guest making a booking.
type GuestInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Comment string `json:"comment"`
}

// PaymentChoice selects how the booking is paid.
type PaymentChoice struct {
	Method string `json:"method"`
	Type   string `json:"type"` // deposit or full
}
