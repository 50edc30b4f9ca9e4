package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	SourceActive   = "active"
	SourceInactive = "inactive"
	SourceError    = "error"
)

const (
	ParkingNone    = "none"
	ParkingStreet  = "street"
	ParkingPrivate = "private"
)

const (
	PaymentTypeDeposit = "deposit"
	PaymentTypeFull    = "full"
)

const (
	PlatformAirbnb  = "airbnb"
	PlatformBooking = "booking"
	PlatformVrbo    = "vrbo"
)

const CreatedByAdmin = "admin"

// CreatedBySync builds the creator tag for a synchronized range.
func CreatedBySync(platform string) string {
	return "sync:" + platform
}

const (
	// FreeStayMaxAge: children up to and including this age stay free.
	FreeStayMaxAge = 3

	// TouristTaxMinAge: guests at or above this age pay tourist tax.
	TouristTaxMinAge = 14

	// TieredGuestThreshold: paying guests beyond this count are billed at
	// the additional-guest rate.
	TieredGuestThreshold = 2

	// DefaultDepositPercentage is applied when the stored config has none.
	DefaultDepositPercentage = 0.30

	// DefaultSnapshotTTL is the redis lifetime of the cached external
	// occupancy snapshot, in seconds.
	DefaultSnapshotTTL = 48 * 60 * 60

	// WorkerQueueSize bounds the in-memory notification queue.
	WorkerQueueSize = 128
)

// DateFormat is the wire and storage format for calendar dates.
const DateFormat = "2006-01-02"
