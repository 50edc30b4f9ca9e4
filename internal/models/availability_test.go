package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func TestDateRangeOverlaps(t *testing.T) {
	base := DateRange{Start: day(10), End: day(15)}

	tests := []struct {
		name    string
		other   DateRange
		overlap bool
	}{
		{"identical", DateRange{Start: day(10), End: day(15)}, true},
		{"contained", DateRange{Start: day(11), End: day(13)}, true},
		{"overlaps start", DateRange{Start: day(8), End: day(11)}, true},
		{"overlaps end", DateRange{Start: day(14), End: day(20)}, true},
		{"touches start", DateRange{Start: day(5), End: day(10)}, false},
		{"touches end", DateRange{Start: day(15), End: day(20)}, false},
		{"before", DateRange{Start: day(1), End: day(5)}, false},
		{"after", DateRange{Start: day(20), End: day(25)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, base.Overlaps(tt.other))
			assert.Equal(t, tt.overlap, tt.other.Overlaps(base))
		})
	}
}

func TestDateRangeNights(t *testing.T) {
	r := DateRange{Start: day(10), End: day(15)}
	assert.Equal(t, 5, r.Nights())
}

func TestBookingBlocking(t *testing.T) {
	for status, blocking := range map[string]bool{
		StatusPending:   true,
		StatusConfirmed: true,
		StatusCancelled: false,
		StatusCompleted: false,
	} {
		b := &Booking{Status: status}
		assert.Equal(t, blocking, b.Blocking(), status)
	}
}
