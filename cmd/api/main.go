package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/counterpos-backend/api/controllers"
	"github.com/angelmondragon/counterpos-backend/api/routes"
	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/terminal"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/migrate"
	pkgredis "github.com/angelmondragon/counterpos-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithTerminalID(ctx, cfg.App.TerminalID)

	remote, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	local, err := db.NewLocal(ctx, cfg.LocalStore, logg)
	if err != nil {
		_ = remote.Close()
		logg.Error(ctx, "failed to open local cache", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, remote); err != nil {
		if !db.IsConnectivityError(err) {
			_ = multierr.Combine(remote.Close(), local.Close())
			logg.Error(ctx, "failed to check remote schema", err)
			os.Exit(1)
		}
		logg.WarnErr(ctx, "migrate.skipped_remote_unreachable", err)
	}

	hub := signals.NewHub()
	var notifier signals.Notifier = hub
	var redisClient *pkgredis.Client
	var shared *signals.RedisNotifier
	if cfg.Redis.Enabled() {
		redisClient, err = pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			// view invalidation falls back to this process
			logg.WarnErr(ctx, "redis unavailable, using in-process signals", err)
		} else if shared, err = signals.NewRedisNotifier(redisClient, hub); err != nil {
			logg.Error(ctx, "failed to wire redis notifier", err)
			os.Exit(1)
		} else {
			notifier = shared
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	term, err := terminal.New(terminal.Params{
		Config:     cfg,
		Logger:     logg,
		Remote:     remote,
		Local:      local,
		Notifier:   notifier,
		Registerer: registry,
	})
	if err != nil {
		logg.Error(ctx, "failed to wire terminal", err)
		os.Exit(1)
	}

	// one synchronous tick so a reachable remote is served from the first request
	if err := term.Worker.Tick(ctx); err != nil {
		logg.WarnErr(ctx, "initial sync tick failed, starting offline", err)
	}

	params := routes.RouterParams{
		Config:     cfg,
		Logger:     logg,
		Mode:       term.State,
		SyncStatus: term.Dispatcher,
		Views:      notifier,
		Events:     hub,
		Inventory:  term.Inventory,
		Recipes:    term.Recipes,
		Orders:     term.Orders,
		Gatherer:   registry,
		Readiness: []controllers.ReadinessCheck{
			{Name: "remote", Pinger: remote},
			{Name: "local", Pinger: local, Required: true},
		},
	}
	if redisClient != nil {
		params.Idempotency = redisClient
		params.Readiness = append(params.Readiness, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := term.Worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "sync worker stopped unexpectedly", err)
		}
	}()
	if shared != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := shared.Follow(ctx, redisClient); err != nil && !errors.Is(err, context.Canceled) {
				logg.WarnErr(ctx, "signals.follow_stopped", err)
			}
		}()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	srvCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
		"mode": term.State.Current().String(),
	})
	logg.Info(srvCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// view event streams never finish on their own
	server.RegisterOnShutdown(hub.Close)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logg.Info(srvCtx, "shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logg.Error(srvCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closeErr := server.Shutdown(shutdownCtx)
	wg.Wait()

	closeErr = multierr.Append(closeErr, local.Close())
	closeErr = multierr.Append(closeErr, remote.Close())
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if closeErr != nil {
		logg.Error(srvCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	os.Exit(exitCode)
}
