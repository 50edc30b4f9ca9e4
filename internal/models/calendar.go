package models

import "time"

// ExternalCalendarSource is a third-party calendar feed synchronized into
// local blocked-date records.
type ExternalCalendarSource struct {
	ID            int64      `json:"id"`
	Platform      string     `json:"platform"` // airbnb, booking, vrbo, ...
	Name          string     `json:"name"`
	FeedURL       string     `json:"feed_url"`
	Status        string     `json:"status"` // active, inactive, error
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CalendarEvent is a single parsed feed entry.
type CalendarEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// SyncResult describes one synchronization run for one source.
// Ephemeral; never persisted as authoritative state.
type SyncResult struct {
	SourceID      int64     `json:"source_id"`
	Platform      string    `json:"platform"`
	EventsFound   int       `json:"events_found"`
	RangesCreated int       `json:"ranges_created"`
	Duplicates    int       `json:"duplicates"`
	Skipped       int       `json:"skipped"` // would overlap a live booking
	Err           error     `json:"-"`
	Error         string    `json:"error,omitempty"`
	SyncedAt      time.Time `json:"synced_at"`
}
