// Package main is the entry point for the challenge engine worker.
//
// The worker owns the full lifecycle machinery: it runs the scheduler jobs
// that open and close challenge windows and materialize recurring templates,
// and serves the REST API for catalog reads, participation writes and admin
// lifecycle commands.
//
// The layout follows Clean Architecture/DDD:
// - Domain: state machines, progression tracker, recommendation engine
// - Application: command/query handlers (CQRS)
// - Infrastructure: postgres, redis, scheduler, external clients
// - Interface: HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/craftquest/challenge-engine/config"
	"github.com/craftquest/challenge-engine/internal/application/command"
	"github.com/craftquest/challenge-engine/internal/application/eventhandler"
	"github.com/craftquest/challenge-engine/internal/application/query"
	"github.com/craftquest/challenge-engine/internal/domain/progression"
	"github.com/craftquest/challenge-engine/internal/domain/recommendation"
	"github.com/craftquest/challenge-engine/internal/infrastructure/external/ledger"
	"github.com/craftquest/challenge-engine/internal/infrastructure/external/linkpreview"
	"github.com/craftquest/challenge-engine/internal/infrastructure/messaging"
	"github.com/craftquest/challenge-engine/internal/infrastructure/persistence/postgres"
	"github.com/craftquest/challenge-engine/internal/infrastructure/persistence/redis"
	"github.com/craftquest/challenge-engine/internal/infrastructure/scheduler"
	"github.com/craftquest/challenge-engine/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/craftquest/challenge-engine/internal/interface/http"
	"github.com/craftquest/challenge-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	appLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	log.Info("starting challenge engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()

	if cfg.Database.MigrateOnStart {
		log.Info("running database migrations")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	var profileCache query.ProfileCache
	var catalogCache query.CatalogCache

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			// Cache loss degrades reads to the database; it never blocks
			// startup.
			log.Warn("redis unavailable, caching disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			profileCache = redis.NewProfileCache(cache)
			catalogCache = redis.NewCatalogCache(cache)
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewEventBus(messaging.EventBusConfig{Logger: log})
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	if err := messaging.RegisterAuditLog(bus, log); err != nil {
		return fmt.Errorf("failed to register audit log: %w", err)
	}
	if catalogCache != nil {
		if err := messaging.RegisterCatalogInvalidation(bus, catalogCache); err != nil {
			return fmt.Errorf("failed to register catalog invalidation: %w", err)
		}
	}
	if err := eventhandler.RegisterNotifications(bus, eventhandler.NewLogDispatcher(log), log); err != nil {
		return fmt.Errorf("failed to register notification handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	var xpLedger command.XPLedger
	var skills query.SkillLevelProvider

	if cfg.Ledger.BaseURL != "" {
		ledgerCfg := ledger.DefaultClientConfig(cfg.Ledger.BaseURL)
		ledgerCfg.APIKey = cfg.Ledger.APIKey
		ledgerCfg.Timeout = cfg.Ledger.RequestTimeout
		ledgerCfg.RequestsPerSecond = cfg.Ledger.RequestsPerSecond
		ledgerCfg.Burst = cfg.Ledger.Burst
		ledgerCfg.Logger = appLog

		client := ledger.NewClient(ledgerCfg)
		skills = client
		if cfg.Features.LedgerCredits {
			xpLedger = client
		}
	}

	var linkResolver command.LinkResolver
	if cfg.Features.LinkPreviews && cfg.LinkPreview.BaseURL != "" {
		previewCfg := linkpreview.DefaultClientConfig(cfg.LinkPreview.BaseURL)
		previewCfg.Timeout = cfg.LinkPreview.RequestTimeout
		previewCfg.RequestsPerSecond = cfg.LinkPreview.RequestsPerSecond
		previewCfg.Burst = cfg.LinkPreview.Burst
		previewCfg.Logger = appLog

		linkResolver = linkpreview.NewClient(previewCfg)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. REPOSITORIES & DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	challengeRepo := postgres.NewChallengeRepository(conn)
	participationRepo := postgres.NewParticipationRepository(conn)
	templateRepo := postgres.NewTemplateRepository(conn)

	tracker := progression.NewTracker()
	engine := recommendation.NewEngine()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	joinHandler := command.NewJoinChallengeHandler(challengeRepo, participationRepo, bus)
	submitHandler := command.NewRecordSubmissionHandler(command.RecordSubmissionConfig{
		ChallengeRepo:     challengeRepo,
		ParticipationRepo: participationRepo,
		Tracker:           tracker,
		LinkResolver:      linkResolver,
		Ledger:            xpLedger,
		EventPublisher:    bus,
	})
	reviewHandler := command.NewReviewSubmissionHandler(challengeRepo, participationRepo, tracker, xpLedger, bus)
	abandonHandler := command.NewAbandonChallengeHandler(participationRepo, bus)
	adminHandler := command.NewChallengeAdminHandler(challengeRepo, participationRepo, bus, log)

	catalogQuery := query.NewGetCatalogHandler(challengeRepo, catalogCache)
	profileQuery := query.NewGetProgressionProfileHandler(participationRepo, tracker, skills, profileCache)

	var recommendationsQuery *query.GetRecommendationsHandler
	if cfg.Features.Recommendations {
		recommendationsQuery = query.NewGetRecommendationsHandler(challengeRepo, participationRepo, engine, skills)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER & JOBS
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			Logger:       log,
			TickInterval: cfg.Scheduler.TickInterval,
		})

		activateJob := jobs.NewActivateChallengesJob(challengeRepo, bus, log,
			jobs.ActivateChallengesConfig{Timeout: cfg.Scheduler.ActivationTimeout})
		if err := sched.Register(activateJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ActivationInterval)); err != nil {
			return fmt.Errorf("failed to register activation job: %w", err)
		}

		completeJob := jobs.NewCompleteChallengesJob(challengeRepo, adminHandler, log,
			jobs.CompleteChallengesConfig{Timeout: cfg.Scheduler.CompletionTimeout})
		if err := sched.Register(completeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.CompletionInterval)); err != nil {
			return fmt.Errorf("failed to register completion job: %w", err)
		}

		if cfg.Features.Materialization {
			cron, err := scheduler.ParseCronExpression(cfg.Scheduler.MaterializationCron)
			if err != nil {
				return fmt.Errorf("invalid materialization cron %q: %w", cfg.Scheduler.MaterializationCron, err)
			}
			materializeJob := jobs.NewMaterializeRecurringJob(templateRepo, challengeRepo, bus, log,
				jobs.MaterializeRecurringConfig{Timeout: cfg.Scheduler.MaterializationTimeout})
			if err := sched.Register(materializeJob, cron); err != nil {
				return fmt.Errorf("failed to register materialization job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	var server *httpserver.Server

	if cfg.HTTP.Enabled {
		serverCfg := httpserver.DefaultConfig()
		serverCfg.Host = cfg.HTTP.Host
		serverCfg.Port = cfg.HTTP.Port
		serverCfg.RateLimitPerSecond = cfg.HTTP.RateLimitPerSecond
		serverCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
		serverCfg.AdminAPIKeys = cfg.HTTP.AdminAPIKeys

		deps := httpserver.Dependencies{
			Catalog:         catalogQuery,
			Recommendations: recommendationsQuery,
			Profile:         profileQuery,
			Join:            joinHandler,
			Submit:          submitHandler,
			Review:          reviewHandler,
			Abandon:         abandonHandler,
			Admin:           adminHandler,
			Scheduler:       sched,
			Database:        conn,
			Logger:          appLog,
		}
		if cache != nil {
			deps.Cache = cache
		}

		server = httpserver.NewServer(serverCfg, deps)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	log.Info("challenge engine is running",
		"scheduler", cfg.Scheduler.Enabled,
		"http", cfg.HTTP.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", "error", err)
			shutdownErr = err
		}
	}

	// Stop waits for in-flight sweeps, so a job mid-run finishes its writes.
	if sched != nil {
		if err := sched.Stop(); err != nil && err != scheduler.ErrSchedulerNotRunning {
			log.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// Event bus, redis and postgres close via defers.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
		return nil
	}

	log.Info("shutdown completed")
	return nil
}

// setupLogger builds the slog logger per the observability settings.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
