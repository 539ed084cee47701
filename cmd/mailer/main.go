package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cupidlink/mail-dispatcher/internal/channel"
	"github.com/cupidlink/mail-dispatcher/internal/config"
	"github.com/cupidlink/mail-dispatcher/internal/handler"
	"github.com/cupidlink/mail-dispatcher/internal/infra/postgresql"
	"github.com/cupidlink/mail-dispatcher/internal/infra/postgresql/migrations"
	infraredis "github.com/cupidlink/mail-dispatcher/internal/infra/redis"
	"github.com/cupidlink/mail-dispatcher/internal/observability"
	"github.com/cupidlink/mail-dispatcher/internal/repository"
	"github.com/cupidlink/mail-dispatcher/internal/service"
	"github.com/cupidlink/mail-dispatcher/internal/template"
	"github.com/cupidlink/mail-dispatcher/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, logLevel, err := observability.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	limiter, err := infraredis.NewSendThrottle(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("send throttle initialization failed", zap.Error(err))
	}

	channels, err := buildChannels(cfg)
	if err != nil {
		logger.Fatal("channel initialization failed", zap.Error(err))
	}

	dispatcher, err := channel.NewDispatcher(channels, cfg.SendTimeout(), logger)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}

	resolver, err := service.NewResolver(
		repository.NewGormTemplateRepo(db),
		repository.NewGormProfileRepo(db),
		cfg.DefaultLanguage,
		logger,
	)
	if err != nil {
		logger.Fatal("resolver initialization failed", zap.Error(err))
	}

	renderer := template.NewRenderer(template.Defaults{
		PlatformName: cfg.PlatformName,
		SupportEmail: cfg.SupportEmail,
		ContactEmail: cfg.ContactEmail,
		BaseURL:      cfg.BaseURL,
	}, cfg.DefaultLanguage)

	tracker := service.NewTracker(repository.NewGormTrackingRepo(db), logger)

	orchestrator, err := service.NewOrchestrator(
		tracker,
		repository.NewGormUserDirectory(db),
		resolver,
		renderer,
		dispatcher,
		cfg.DefaultLanguage,
		logger,
	)
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}
	orchestrator.SetRateLimiter(limiter)
	orchestrator.SetMetrics(metrics)

	pollerCfg := service.PollerConfig{
		CheckInterval:  cfg.CheckInterval(),
		LookbackWindow: cfg.LookbackWindow(),
		BatchSize:      cfg.BatchSize,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		EnableTracking: cfg.EnableTracking,
	}
	if cfg.TargetUserID != "" {
		target := cfg.TargetUserID
		pollerCfg.TargetUserID = &target
	}

	poller, err := service.NewPoller(repository.NewGormNotificationRepo(db), orchestrator, pollerCfg, logger)
	if err != nil {
		logger.Fatal("poller initialization failed", zap.Error(err))
	}
	poller.SetMetrics(metrics)
	poller.SetLogLevelFunc(func(level string) error {
		return observability.SetLevel(logLevel, level)
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterAdminRoutes(app, poller, tracker); err != nil {
		logger.Fatal("admin route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("admin api listening", zap.Int("port", cfg.AdminPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.AdminPort))
	})

	g.Go(func() error {
		err := poller.Start(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		poller.Stop()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("mail dispatcher exited with error", zap.Error(err))
	}
	logger.Info("mail dispatcher stopped")
}

func buildChannels(cfg *config.Config) ([]channel.Channel, error) {
	relay, err := channel.NewRelayChannel(cfg.RelayURL)
	if err != nil {
		return nil, err
	}
	channels := []channel.Channel{relay}

	if cfg.FunctionEndpointURL != "" {
		function, err := channel.NewFunctionChannel(cfg.FunctionEndpointURL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, function)
	}

	return channels, nil
}
