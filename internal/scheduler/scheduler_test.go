package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"villasole/internal/config"
	"villasole/internal/database"
	"villasole/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSynchronizer struct {
	results []*models.SyncResult
	calls   int
	mu      sync.Mutex
}

func (f *fakeSynchronizer) SyncSource(ctx context.Context, sourceID int64) *models.SyncResult {
	return &models.SyncResult{SourceID: sourceID}
}

func (f *fakeSynchronizer) SyncAll(ctx context.Context) []*models.SyncResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.results
}

func (f *fakeSynchronizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeBus struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeBus) PublishJSON(eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, eventType)
	return nil
}

func (f *fakeBus) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

type fakeNotifier struct {
	mu          sync.Mutex
	escalations []string
}

func (f *fakeNotifier) NotifyBookingCreated(ctx context.Context, b *models.Booking) error { return nil }

func (f *fakeNotifier) NotifyBookingConfirmed(ctx context.Context, b *models.Booking) error {
	return nil
}

func (f *fakeNotifier) NotifyEscalation(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalations = append(f.escalations, message)
	return nil
}

func (f *fakeNotifier) escalationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.escalations)
}

func newTestScheduler(sync *fakeSynchronizer, cfg config.SyncConfig) (*Scheduler, *fakeBus, *fakeNotifier) {
	logger := zerolog.Nop()
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	return NewScheduler(sync, nil, bus, notifier, cfg, &logger), bus, notifier
}

func okResult() *models.SyncResult {
	return &models.SyncResult{RangesCreated: 1}
}

func failedResult() *models.SyncResult {
	return &models.SyncResult{Err: errors.New("fetch failed"), Error: "fetch failed"}
}

func TestRunSyncCycleHealthy(t *testing.T) {
	sync := &fakeSynchronizer{results: []*models.SyncResult{okResult(), okResult()}}
	sched, bus, notifier := newTestScheduler(sync, config.SyncConfig{})

	sched.runSyncCycle(context.Background())

	assert.Equal(t, []string{"sync_completed"}, bus.events())
	assert.Zero(t, notifier.escalationCount())
}

func TestRunSyncCycleEscalates(t *testing.T) {
	sync := &fakeSynchronizer{results: []*models.SyncResult{failedResult(), failedResult(), okResult()}}
	sched, bus, notifier := newTestScheduler(sync, config.SyncConfig{})

	sched.runSyncCycle(context.Background())

	assert.Equal(t, []string{"sync_completed", "sync_escalation"}, bus.events())
	assert.Equal(t, 1, notifier.escalationCount())
}

func TestRunSyncCycleAtThresholdDoesNotEscalate(t *testing.T) {
	// Exactly half failing is not a majority.
	sync := &fakeSynchronizer{results: []*models.SyncResult{failedResult(), okResult()}}
	sched, bus, notifier := newTestScheduler(sync, config.SyncConfig{})

	sched.runSyncCycle(context.Background())

	assert.Equal(t, []string{"sync_completed"}, bus.events())
	assert.Zero(t, notifier.escalationCount())
}

func TestRunSyncCycleCustomThreshold(t *testing.T) {
	sync := &fakeSynchronizer{results: []*models.SyncResult{failedResult(), okResult(), okResult(), okResult()}}
	sched, bus, _ := newTestScheduler(sync, config.SyncConfig{FailureThreshold: 0.2})

	sched.runSyncCycle(context.Background())

	assert.Contains(t, bus.events(), "sync_escalation")
}

func TestRunSyncCycleNoSources(t *testing.T) {
	sync := &fakeSynchronizer{}
	sched, bus, notifier := newTestScheduler(sync, config.SyncConfig{})

	sched.runSyncCycle(context.Background())

	assert.Empty(t, bus.events())
	assert.Zero(t, notifier.escalationCount())
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestConsistencyCheckReportsBlockOverBooking(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	bus := &fakeBus{}
	sched := NewScheduler(&fakeSynchronizer{}, db, bus, &fakeNotifier{}, config.SyncConfig{}, &logger)
	ctx := context.Background()

	booking := &models.Booking{
		Reference:  "VS-AUDIT",
		GuestName:  "Anna Rossi",
		GuestEmail: "anna@example.com",
		CheckIn:    date(2026, 7, 10),
		CheckOut:   date(2026, 7, 14),
		Adults:     2,
		Nights:     4,
		Status:     models.StatusConfirmed,
	}
	require.NoError(t, db.CreateBookingWithLock(ctx, booking))
	require.NoError(t, db.CreateBlockedRange(ctx, &models.BlockedDateRange{
		StartDate: date(2026, 7, 12),
		EndDate:   date(2026, 7, 16),
		Reason:    "Renovation",
		CreatedBy: models.CreatedByAdmin,
		Signature: "sig-audit",
	}))

	sched.runConsistencyCheck(ctx)

	assert.Contains(t, bus.events(), "overlap_detected")
}

func TestConsistencyCheckStaysQuietWithoutOverlaps(t *testing.T) {
	db := setupTestDB(t)
	logger := zerolog.Nop()
	bus := &fakeBus{}
	sched := NewScheduler(&fakeSynchronizer{}, db, bus, &fakeNotifier{}, config.SyncConfig{}, &logger)
	ctx := context.Background()

	require.NoError(t, db.CreateBlockedRange(ctx, &models.BlockedDateRange{
		StartDate: date(2026, 7, 1),
		EndDate:   date(2026, 7, 5),
		Reason:    "Maintenance",
		CreatedBy: models.CreatedByAdmin,
		Signature: "sig-quiet",
	}))

	sched.runConsistencyCheck(ctx)

	assert.Empty(t, bus.events())
}

func TestRunJobSkipsWhileActive(t *testing.T) {
	logger := zerolog.Nop()
	sched := &Scheduler{logger: &logger}

	runs := 0
	j := &job{name: "test", run: func(ctx context.Context) { runs++ }}

	j.mu.Lock()
	sched.runJob(context.Background(), j)
	j.mu.Unlock()

	assert.Zero(t, runs, "a tick during an active run is skipped")

	sched.runJob(context.Background(), j)
	assert.Equal(t, 1, runs)
}

func TestRunJobRecoversFromPanic(t *testing.T) {
	logger := zerolog.Nop()
	sched := &Scheduler{logger: &logger}

	j := &job{name: "test", run: func(ctx context.Context) { panic("boom") }}
	assert.NotPanics(t, func() {
		sched.runJob(context.Background(), j)
	})
}

func TestSchedulerStartAndStop(t *testing.T) {
	sync := &fakeSynchronizer{results: []*models.SyncResult{okResult()}}
	sched, _, _ := newTestScheduler(sync, config.SyncConfig{
		Interval: config.Duration(10 * time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	require.Eventually(t, func() bool {
		return sync.callCount() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	sched.Wait()
}
