package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salon/internal/bot"
	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/events"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := cfg.ValidateBot(); err != nil {
		logger.Error().Err(err).Msg("set telegram.bot_token in config.yaml")
		return err
	}

	hours, err := scheduling.ParseHours(cfg.Schedule.Open, cfg.Schedule.Close, cfg.Schedule.StepMinutes)
	if err != nil {
		logger.Error().Err(err).Msg("invalid schedule")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateService := initStateService(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Registrations made here are only queued; the API process drains sync_queue.
	eventBus := events.NewEventBus(&logger)
	syncWorker := worker.NewSyncWorker(db, nil, redisClient, worker.RetryPolicy{}, &logger)
	syncWorker.Subscribe(eventBus)
	defer syncWorker.Wait()

	loyalty := service.NewLoyaltyService(db, eventBus, cfg.Phone.DefaultRegion, &logger)
	bookings := service.NewBookingService(db, eventBus, hours, cfg.Schedule.Location(), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	return startBot(ctx, cfg, stateService, loyalty, bookings, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	return cfg, logger, closer, nil
}

// initStateService keeps conversations in redis when it is reachable and in
// process memory otherwise.
func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, conversations fall back to memory")
		}
	}

	ttl := time.Duration(cfg.Bot.StateTTLMinutes) * time.Minute
	primary := repository.NewRedisStateRepository(redisClient, ttl)
	fallback := repository.NewMemoryStateRepository(ttl)
	return redisClient, service.NewStateService(repository.NewFailoverStateRepository(primary, fallback, logger), logger)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	stateService *service.StateService,
	loyalty *service.LoyaltyService,
	bookings *service.BookingService,
	logger *zerolog.Logger,
) error {
	wrapper, err := bot.NewBotWrapper(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("create bot api")
		return err
	}

	telegramBot, err := bot.NewBot(service.NewTelegramService(wrapper), cfg, stateService, loyalty, bookings, logger)
	if err != nil {
		logger.Error().Err(err).Msg("create bot")
		return err
	}

	logger.Info().Str("username", wrapper.GetSelf().UserName).Msg("bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("shutdown complete")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
