package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandops/platform-backend/api/routes"
	"github.com/brandops/platform-backend/internal/activitylog"
	"github.com/brandops/platform-backend/internal/automation"
	"github.com/brandops/platform-backend/internal/automation/actions"
	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/internal/notifications"
	"github.com/brandops/platform-backend/pkg/config"
	"github.com/brandops/platform-backend/pkg/db"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
	"github.com/brandops/platform-backend/pkg/migrate"
	"github.com/brandops/platform-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	activityRepo := activitylog.NewRepository(dbClient.DB())
	activityService, err := activitylog.NewService(activitylog.ServiceParams{
		Logger: logg,
		Repo:   activityRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activity service", err)
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

	activitySubscriber, err := activitylog.NewSubscriber(logg, activityRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create activity subscriber", err)
		os.Exit(1)
	}
	activitySubscriber.Register(bus)

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

	automationService, err := automation.NewService(automation.ServiceParams{
		Logger:   logg,
		Repo:     ruleRepo,
		Registry: registry,
		Bus:      bus,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create automation service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus.Start(ctx)
	go scheduler.Run(ctx)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Bus:           bus,
			Automations:   automationService,
			Notifications: notificationService,
			Activity:      activityService,
			Registry:      promRegistry,
			DB:            dbClient,
			Redis:         redisClient,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "error shutting down server", err)
		}
		bus.Wait()
	}

	logg.Info(runCtx, "api server stopped")
}
