package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandops/platform-backend/internal/activitylog"
	"github.com/brandops/platform-backend/internal/automation"
	"github.com/brandops/platform-backend/internal/automation/actions"
	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/internal/notifications"
	"github.com/brandops/platform-backend/internal/retention"
	"github.com/brandops/platform-backend/pkg/config"
	"github.com/brandops/platform-backend/pkg/db"
	"github.com/brandops/platform-backend/pkg/instance"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
	"github.com/brandops/platform-backend/pkg/migrate"
	"github.com/brandops/platform-backend/pkg/redis"
)

// The worker runs the automation engine without the HTTP surface. Rules are
// reloaded from the database on an interval so changes made through the api
// process take effect here without a restart.
func main() {
	logg := logger.New(logger.Options{ServiceName: "automation-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "automation-worker"

	logg = logger.New(logger.Options{
		ServiceName: "automation-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	busMetrics := metrics.NewBusMetrics(promRegistry)
	automationMetrics := metrics.NewAutomationMetrics(promRegistry)
	schedulerMetrics := metrics.NewSchedulerMetrics(promRegistry)

	bus, err := eventbus.New(eventbus.Params{
		Logger:    logg,
		Metrics:   busMetrics,
		QueueSize: cfg.Automation.BusQueueSize,
		Workers:   cfg.Automation.BusWorkers,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event bus", err)
		os.Exit(1)
	}

	ruleRepo := automation.NewRepository(dbClient.DB())
	registry := automation.NewRegistry(ruleRepo)
	if err := registry.Load(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load automation rules", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.ServiceParams{
		Logger: logg,
		Repo:   notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	executor, err := automation.NewExecutor(automation.ExecutorParams{
		Logger:        logg,
		Metrics:       automationMetrics,
		Registry:      registry,
		Bus:           bus,
		ActionTimeout: cfg.Automation.ActionTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create executor", err)
		os.Exit(1)
	}
	executor.RegisterHandler(actions.NewEmitEvent(bus))
	executor.RegisterHandler(actions.NewCreateNotification(notificationService))
	executor.RegisterHandler(actions.NewWebhookCall(actions.WebhookParams{
		MaxBodySize: cfg.Automation.WebhookMaxBodySize,
	}))

	dispatcher, err := automation.NewDispatcher(automation.DispatcherParams{
		Logger:            logg,
		Metrics:           automationMetrics,
		Registry:          registry,
		Executor:          executor,
		MaxCausationDepth: cfg.Automation.MaxCausationDepth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}
	bus.SubscribeAll(dispatcher.Handle)

	activityRepo := activitylog.NewRepository(dbClient.DB())
	activitySubscriber, err := activitylog.NewSubscriber(logg, activityRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create activity subscriber", err)
		os.Exit(1)
	}
	activitySubscriber.Register(bus)

	activityService, err := activitylog.NewService(activitylog.ServiceParams{
		Logger: logg,
		Repo:   activityRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activity service", err)
		os.Exit(1)
	}

	var retentionSweeper *retention.Sweeper
	if cfg.Automation.ActivityRetention > 0 {
		retentionSweeper, err = retention.NewSweeper(retention.SweeperParams{
			Logger:    logg,
			Retention: time.Duration(cfg.Automation.ActivityRetention) * 24 * time.Hour,
			Targets: map[string]retention.Pruner{
				"activity":      activityService,
				"notifications": notificationService,
			},
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create retention sweeper", err)
			os.Exit(1)
		}
	}

	alertSubscriber, err := notifications.NewSubscriber(logg, notificationService)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert subscriber", err)
		os.Exit(1)
	}
	alertSubscriber.Register(bus)

	scheduler, err := automation.NewScheduler(automation.SchedulerParams{
		Logger:   logg,
		Metrics:  schedulerMetrics,
		Registry: registry,
		Executor: executor,
		Lock:     automation.NewRedisLock(redisClient),
		Interval: cfg.Automation.SweepInterval,
		LockTTL:  cfg.Automation.SchedulerLockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting automation worker")

	bus.Start(ctx)
	go reloadRules(ctx, logg, registry, cfg.Automation.SweepInterval)
	if retentionSweeper != nil {
		go retentionSweeper.Run(ctx)
	} else {
		logg.Warn(ctx, "retention sweeper disabled; activity and notification rows are kept forever")
	}

	scheduler.Run(ctx)

	bus.Wait()
	logg.Info(ctx, "automation worker stopped")
}

func reloadRules(ctx context.Context, logg *logger.Logger, registry *automation.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := registry.Load(ctx); err != nil {
				logg.Error(ctx, "failed to reload automation rules", err)
			}
		}
	}
}
