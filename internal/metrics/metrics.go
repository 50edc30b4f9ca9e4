package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "bookings_created_total",
			Help:      "Bookings created by payment type.",
		},
		[]string{"payment_type"},
	)

	quoteRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "quote_rejections_total",
			Help:      "Quote or booking requests rejected, by reason.",
		},
		[]string{"reason"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "calendar_sync_runs_total",
			Help:      "Calendar sync runs by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	syncedRanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "calendar_synced_ranges_total",
			Help:      "Blocked ranges created from external calendars.",
		},
		[]string{"platform"},
	)

	syncSkippedOverlaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "calendar_sync_skipped_overlaps_total",
			Help:      "External events skipped because they overlap a live booking.",
		},
		[]string{"platform"},
	)

	manualBlockOverlaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "villasole",
			Name:      "manual_blocks_over_bookings_total",
			Help:      "Manual blocked ranges created over a live booking.",
		},
	)

	overlapConflicts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "villasole",
			Name:      "booking_block_overlap_conflicts",
			Help:      "Blocked ranges overlapping a live booking, per consistency run.",
		},
	)

	syncFailingSources = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "villasole",
			Name:      "calendar_sync_failing_sources",
			Help:      "Sources that failed their most recent sync run.",
		},
	)

	syncEscalated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "villasole",
			Name:      "calendar_sync_escalated",
			Help:      "1 while the majority of sources are failing, 0 otherwise.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			quoteRejections,
			syncRuns,
			syncedRanges,
			syncSkippedOverlaps,
			manualBlockOverlaps,
			overlapConflicts,
			syncFailingSources,
			syncEscalated,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated(paymentType string) {
	bookingsCreated.WithLabelValues(paymentType).Inc()
}

func IncQuoteRejection(reason string) {
	quoteRejections.WithLabelValues(reason).Inc()
}

func IncSyncRun(platform, outcome string) {
	syncRuns.WithLabelValues(platform, outcome).Inc()
}

func AddSyncedRanges(platform string, n int) {
	syncedRanges.WithLabelValues(platform).Add(float64(n))
}

func IncSyncSkippedOverlap(platform string) {
	syncSkippedOverlaps.WithLabelValues(platform).Inc()
}

func IncManualBlockOverlap() {
	manualBlockOverlaps.Inc()
}

// SetOverlapConflicts records how many blocked ranges currently overlap a
// live booking, as seen by the last consistency run.
func SetOverlapConflicts(n int) {
	overlapConflicts.Set(float64(n))
}

// SetSyncHealth records the failing source count and the escalation flag.
func SetSyncHealth(failing int, escalated bool) {
	syncFailingSources.Set(float64(failing))
	if escalated {
		syncEscalated.Set(1)
	} else {
		syncEscalated.Set(0)
	}
}
