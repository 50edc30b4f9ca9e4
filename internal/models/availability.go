package models

import "time"

// DateRange is a half-open interval [Start, End): the end date is the
// check-out day and does not occupy the property.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open ranges conflict. Adjacent ranges
// touching at a boundary do not.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Nights returns the number of nights covered by the range.
func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start).Round(24*time.Hour) / (24 * time.Hour))
}

// AvailabilityConflicts lists everything that blocks a requested range,
// grouped by source.
type AvailabilityConflicts struct {
	Bookings     []*Booking          `json:"bookings"`
	BlockedDates []*BlockedDateRange `json:"blocked_dates"`
	External     []ExternalOccupancy `json:"external"`
}

// AvailabilityResult is the outcome of an availability check.
type AvailabilityResult struct {
	Available bool                  `json:"available"`
	Conflicts AvailabilityConflicts `json:"conflicts"`
}

// ExternalOccupancy is one occupied interval from the cached snapshot of a
// third-party calendar, kept between sync runs.
type ExternalOccupancy struct {
	SourceID int64     `json:"source_id"`
	Platform string    `json:"platform"`
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}
