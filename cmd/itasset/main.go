package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/itasset/cmd/itasset/cli"
	"github.com/odyssey-erp/itasset/internal/app"
	"github.com/odyssey-erp/itasset/internal/assets"
	assethttp "github.com/odyssey-erp/itasset/internal/assets/http"
	"github.com/odyssey-erp/itasset/internal/dashboard"
	dashboardhttp "github.com/odyssey-erp/itasset/internal/dashboard/http"
	"github.com/odyssey-erp/itasset/internal/observability"
	"github.com/odyssey-erp/itasset/internal/platform/cache"
	"github.com/odyssey-erp/itasset/internal/platform/db"
	"github.com/odyssey-erp/itasset/internal/shared"
	"github.com/odyssey-erp/itasset/internal/view"
	"github.com/odyssey-erp/itasset/jobs"
)

const usage = `usage: itasset [command]

commands:
  serve                 run the HTTP server (default)
  migrate               apply database migrations
  jobs trigger <task>   enqueue a background task
  jobs stats            print default queue counters
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = cli.Migrate(ctx, cfg.PGDSN, os.Stdout)
	case "jobs":
		err = runJobs(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch {
	case len(args) == 2 && args[0] == "trigger":
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case len(args) == 1 && args[0] == "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = stats.WriteTo(os.Stdout)
		return err
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("jobs: unexpected arguments %v", args)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "itasset_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	statsCache := assets.NewStatsCache(redisClient, cfg.StatsCacheTTL).WithLogger(logger)
	assetService := assets.NewService(assets.NewRepository(pool), statsCache,
		assets.WithLogger(logger),
		assets.WithTimeout(cfg.StatsTimeout),
		assets.WithCacheObserver(metrics),
	)
	assetsHandler := assethttp.NewHandler(logger, assetService, cfg.StatsTimeout)

	var query dashboard.QueryService = dashboard.NewLocalQueryService(assetService)
	if cfg.QueryBaseURL != "" {
		query = dashboard.NewHTTPQueryService(cfg.QueryBaseURL, nil)
		logger.Info("dashboard uses remote query service", slog.String("base_url", cfg.QueryBaseURL))
	}
	registry := dashboard.NewRegistry(func() *dashboard.Controller {
		return dashboard.NewController(query, &dashboard.ActionNavigator{},
			dashboard.WithLogger(logger),
			dashboard.WithObserver(metrics),
			dashboard.WithPlaceholderActivities(cfg.PlaceholderActivities),
		)
	}, cfg.DashboardIdleTTL, logger)
	go registry.Run(ctx)

	if err := statsCache.ListenForInvalidation(ctx, func(version int64) {
		logger.Debug("stats cache generation changed", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("subscribe stats invalidation", slog.Any("error", err))
	}

	dashboardHandler := dashboardhttp.NewHandler(logger, registry, csrfManager, templates.Dashboard(), cfg.StatsTimeout)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AssetsHandler:    assetsHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
