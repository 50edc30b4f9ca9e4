package database

import "errors"

var (
	// ErrRangeUnavailable means the requested dates conflict with a live
	// booking or a blocked range. The caller may re-quote other dates.
	ErrRangeUnavailable = errors.New("requested date range is not available")

	// ErrConcurrentModification is returned when an optimistic-lock update
	// finds a newer version of the row.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrPricingConfigMissing means no authoritative pricing configuration
	// is stored. Pricing never falls back to guessed values.
	ErrPricingConfigMissing = errors.New("pricing configuration unavailable")

	// ErrDuplicateRange means an identical blocked range already exists.
	ErrDuplicateRange = errors.New("blocked range already exists")

	// ErrNotFound is returned for lookups of missing rows.
	ErrNotFound = errors.New("record not found")
)
