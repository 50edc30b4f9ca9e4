package models

import "time"

// BlockedDateRange marks an interval during which the property cannot be
// booked. Created by an admin or by the calendar synchronizer; immutable
// once created.
type BlockedDateRange struct {
	ID        int64     `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"` // "admin" or "sync:<platform>"
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// Manual reports whether the range was created by an admin rather than a
// calendar sync. Manual blocks always win over synced ones.
func (r *BlockedDateRange) Manual() bool {
	return r.CreatedBy == CreatedByAdmin
}
