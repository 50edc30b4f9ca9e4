package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"villasole/internal/api"
	"villasole/internal/availability"
	"villasole/internal/calendar"
	"villasole/internal/calsync"
	"villasole/internal/config"
	"villasole/internal/database"
	"villasole/internal/domain"
	"villasole/internal/events"
	"villasole/internal/export"
	"villasole/internal/logging"
	"villasole/internal/metrics"
	"villasole/internal/models"
	"villasole/internal/notify"
	"villasole/internal/repository"
	"villasole/internal/scheduler"
	"villasole/internal/service"
	"villasole/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	if err := seedPricing(cfg, db, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient, snapshots := initSnapshots(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifier unavailable, notifications disabled")
	}

	var notifyWorker domain.NotifyWorker
	var escalationNotifier domain.Notifier
	if notifier != nil {
		escalationNotifier = notifier
		queueWorker := worker.NewNotifyQueueWorker(db, notifier, redisClient, worker.RetryPolicy{}, nil)
		go queueWorker.Start(ctx)
		notifyWorker = queueWorker
	}

	eventBus := events.NewEventBus()

	checker := availability.NewChecker(db, snapshots, logger)
	fetcher := calendar.NewHTTPFetcher(cfg.Sync.FetchTimeout.Std())
	synchronizer := calsync.NewSynchronizer(db, fetcher, calendar.NewPolicyRegistry(), snapshots, logger)

	sched := scheduler.NewScheduler(synchronizer, db, eventBus, escalationNotifier, cfg.Sync, logger)
	sched.Start(ctx)

	bookingService := service.NewBookingService(db, checker, eventBus, notifyWorker, logger)
	adminService := service.NewAdminService(db, snapshots, eventBus, logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, logger)

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, bookingService, adminService, synchronizer, exporter, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("api server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().Msg("started")
	<-ctx.Done()

	sched.Wait()
	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "server").Logger()
	return cfg, &logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("failed to create export directory")
			return err
		}
	}
	return nil
}

// seedPricing loads the initial pricing configuration from file when the
// database has none yet. Later updates go through the admin API.
func seedPricing(cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	_, err := db.GetPricingConfig(context.Background())
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrPricingConfigMissing) {
		return err
	}

	pricingPath := os.Getenv("PRICING_PATH")
	if pricingPath == "" {
		pricingPath = "configs/pricing.yaml"
	}

	data, err := os.ReadFile(pricingPath)
	if err != nil {
		logger.Error().Err(err).Str("path", pricingPath).Msg("no pricing config in database and no seed file")
		return err
	}

	var pricing models.PricingConfig
	if err := yaml.Unmarshal(data, &pricing); err != nil {
		return fmt.Errorf("parse %s: %w", pricingPath, err)
	}

	if err := db.SavePricingConfig(context.Background(), &pricing); err != nil {
		return err
	}
	logger.Info().Str("path", pricingPath).Msg("seeded pricing configuration")
	return nil
}

func initSnapshots(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SnapshotRepository) {
	ttl := cfg.Sync.SnapshotTTL.Std()
	fallback := repository.NewMemorySnapshotRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("redis not configured, occupancy snapshots are in-memory only")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, failover repository will recover when it returns")
	}

	primary := repository.NewRedisSnapshotRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSnapshotRepository(primary, fallback, logger)
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listening")
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
