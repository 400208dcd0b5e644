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
	"syscall"
	"time"

	"salon/internal/api"
	"salon/internal/auth"
	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/google"
	"salon/internal/logging"
	"salon/internal/metrics"
	"salon/internal/repository"
	"salon/internal/scheduling"
	"salon/internal/service"
	"salon/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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
		defer (func() { _ = closer.Close() })()
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus(&logger)

	syncWorker := worker.NewSyncWorker(db, initGoogleSheets(ctx, cfg, &logger), redisClient, worker.DefaultRetryPolicy(), &logger)
	syncWorker.Subscribe(eventBus)
	defer syncWorker.Wait()
	go syncWorker.Start(ctx)

	deps, err := buildDeps(cfg, db, eventBus, &logger)
	if err != nil {
		return err
	}

	grpcServer, err := api.NewGRPCServer(cfg.API, deps, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}
	httpServer := api.NewHTTPServer(cfg.API, deps, &logger)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func buildDeps(cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) (api.Deps, error) {
	hours, err := scheduling.ParseHours(cfg.Schedule.Open, cfg.Schedule.Close, cfg.Schedule.StepMinutes)
	if err != nil {
		return api.Deps{}, fmt.Errorf("schedule: %w", err)
	}
	loc := cfg.Schedule.Location()

	authorizer, err := auth.NewAuthorizer()
	if err != nil {
		return api.Deps{}, fmt.Errorf("authorizer: %w", err)
	}

	loyalty := service.NewLoyaltyService(db, bus, cfg.Phone.DefaultRegion, logger)
	bookings := service.NewBookingService(db, bus, hours, loc, logger)

	return api.Deps{
		Loyalty:    loyalty,
		Bookings:   bookings,
		CheckIn:    service.NewCheckInService(bookings, loyalty, logger),
		Sales:      service.NewSalesService(db, bus, logger),
		Inventory:  service.NewInventoryService(db, logger),
		Reports:    service.NewReportService(db, loc, logger),
		Verifier:   auth.NewStaffVerifier(cfg.API.Auth.Staff),
		Tokens:     auth.NewTokenIssuer(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.TokenTTL),
		Authorizer: authorizer,
		Location:   loc,
		Ready:      db.PingContext,
		Services:   cfg.Services,
	}, nil
}

// initRedis returns nil when redis is not configured or unreachable; the
// worker then falls back to its in-memory queue.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SheetsWriter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.SpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Schedule.Location())
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeaders(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if cfg.API.GRPC.Enabled {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Bool("grpc", cfg.API.GRPC.Enabled).Int("grpc_port", cfg.API.GRPC.Port).
		Bool("http", cfg.API.HTTP.Enabled).Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
