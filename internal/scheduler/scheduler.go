// Package scheduler runs the periodic maintenance cycle: calendar syncs,
// consistency repair and stale range cleanup.
package scheduler

import (
	"context"
	"sync"
	"time"

	"villasole/internal/config"
	"villasole/internal/domain"
	"villasole/internal/events"
	"villasole/internal/metrics"
	"villasole/internal/models"

	"github.com/rs/zerolog"
)

type job struct {
	name     string
	interval time.Duration
	delay    time.Duration
	run      func(ctx context.Context)
	mu       sync.Mutex
}

type Scheduler struct {
	sync     domain.Synchronizer
	store    domain.Store
	bus      domain.EventPublisher
	notifier domain.Notifier
	cfg      config.SyncConfig
	logger   *zerolog.Logger

	wg   sync.WaitGroup
	jobs []*job
}

func NewScheduler(
	synchronizer domain.Synchronizer,
	store domain.Store,
	bus domain.EventPublisher,
	notifier domain.Notifier,
	cfg config.SyncConfig,
	logger *zerolog.Logger,
) *Scheduler {
	s := &Scheduler{
		sync:     synchronizer,
		store:    store,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}

	s.jobs = []*job{
		{name: "calendar_sync", interval: cfg.Interval.Std(), delay: cfg.InitialDelay.Std(), run: s.runSyncCycle},
		{name: "consistency_check", interval: cfg.ConsistencyInterval.Std(), run: s.runConsistencyCheck},
		{name: "stale_cleanup", interval: cfg.CleanupInterval.Std(), run: s.runStaleCleanup},
	}
	return s
}

// Start launches one goroutine per job. Jobs stop when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		if j.interval <= 0 {
			s.logger.Warn().Str("job", j.name).Msg("scheduler: job disabled, no interval configured")
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler: started")
}

// Wait blocks until all job goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	if j.delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(j.delay):
		}
	}

	s.runJob(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("job", j.name).Msg("scheduler: job stopped")
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

// runJob executes one tick. A tick that fires while the previous run is
// still going is skipped rather than queued.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if !j.mu.TryLock() {
		s.logger.Warn().Str("job", j.name).Msg("scheduler: previous run still active, skipping tick")
		return
	}
	defer j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job", j.name).Interface("panic", r).Msg("scheduler: job panicked")
		}
	}()

	started := time.Now()
	j.run(ctx)
	s.logger.Debug().Str("job", j.name).Dur("took", time.Since(started)).Msg("scheduler: job finished")
}

func (s *Scheduler) runSyncCycle(ctx context.Context) {
	results := s.sync.SyncAll(ctx)
	if len(results) == 0 {
		metrics.SetSyncHealth(0, false)
		return
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	threshold := s.cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	escalated := float64(failed)/float64(len(results)) > threshold
	metrics.SetSyncHealth(failed, escalated)

	payload := events.SyncEventPayload{Total: len(results), Failed: failed, Escalated: escalated}
	if err := s.bus.PublishJSON(events.EventSyncCompleted, payload); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: publish sync event failed")
	}

	if !escalated {
		return
	}

	s.logger.Error().
		Int("failed", failed).
		Int("total", len(results)).
		Msg("scheduler: majority of calendar sources failing")

	if err := s.bus.PublishJSON(events.EventSyncEscalation, payload); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: publish escalation failed")
	}
	if s.notifier != nil {
		message := "calendar sync degraded: " +
			time.Now().Format(time.RFC3339)
		if err := s.notifier.NotifyEscalation(ctx, message); err != nil {
			s.logger.Warn().Err(err).Msg("scheduler: escalation notification failed")
		}
	}
}

// runConsistencyCheck removes synced ranges that a manual block has since
// shadowed, then audits every blocked range against live bookings. Overlaps
// are not repaired automatically, a booking and a block on the same dates
// needs an operator decision, but each one is logged, gauged and published.
func (s *Scheduler) runConsistencyCheck(ctx context.Context) {
	removed, err := s.store.DeleteSyncedShadowedByManual(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: consistency check failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("scheduler: removed synced ranges shadowed by manual blocks")
	}

	s.auditOverlaps(ctx)
}

func (s *Scheduler) auditOverlaps(ctx context.Context) {
	ranges, err := s.store.GetBlockedRanges(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: overlap audit could not list blocked ranges")
		return
	}

	conflicts := 0
	for _, r := range ranges {
		bookings, err := s.store.GetBlockingBookings(ctx, models.DateRange{Start: r.StartDate, End: r.EndDate})
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduler: overlap audit failed")
			return
		}
		if len(bookings) == 0 {
			continue
		}
		conflicts++
		s.logger.Error().
			Int64("blocked_range_id", r.ID).
			Str("created_by", r.CreatedBy).
			Time("start", r.StartDate).
			Time("end", r.EndDate).
			Int("bookings", len(bookings)).
			Msg("scheduler: blocked range overlaps a live booking")
	}

	metrics.SetOverlapConflicts(conflicts)
	if conflicts == 0 {
		return
	}

	payload := events.OverlapEventPayload{Origin: "consistency_check", Conflicts: conflicts}
	if err := s.bus.PublishJSON(events.EventOverlapDetected, payload); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler: publish overlap event failed")
	}
}

// runStaleCleanup drops synced ranges that ended long ago or whose source
// has been removed or deactivated.
func (s *Scheduler) runStaleCleanup(ctx context.Context) {
	sources, err := s.store.ListCalendarSources(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: cleanup could not list sources")
		return
	}

	creators := make([]string, 0, len(sources))
	for _, source := range sources {
		if source.Status != models.SourceInactive {
			creators = append(creators, models.CreatedBySync(source.Platform))
		}
	}

	retention := s.cfg.StaleRetentionDays
	if retention <= 0 {
		retention = 90
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	removed, err := s.store.DeleteStaleSyncedRanges(ctx, cutoff, creators)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: stale cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("scheduler: removed stale synced ranges")
	}
}
