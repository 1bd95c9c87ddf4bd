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

	"cabo/internal/api"
	"cabo/internal/auth"
	"cabo/internal/cache"
	"cabo/internal/config"
	"cabo/internal/database"
	"cabo/internal/domain"
	"cabo/internal/events"
	"cabo/internal/google"
	"cabo/internal/imageopt"
	"cabo/internal/itinerary"
	"cabo/internal/logging"
	"cabo/internal/metrics"
	"cabo/internal/models"
	"cabo/internal/notify"
	"cabo/internal/payments"
	"cabo/internal/service"
	"cabo/internal/webhook"
	"cabo/internal/worker"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	store, stopCache := initCache(cfg, redisClient, &logger)
	defer stopCache()

	bus := events.NewEventBus()
	outbox := worker.NewOutboxWorker(db, redisClient, worker.Options{
		Retry: worker.RetryPolicy{
			MaxRetries:    cfg.Worker.MaxRetries,
			InitialDelay:  cfg.Worker.InitialDelay,
			MaxDelay:      cfg.Worker.MaxDelay,
			BackoffFactor: cfg.Worker.BackoffFactor,
		},
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		QueueKey:     cfg.App.Name + ":outbox",
	}, logging.Component(&logger, "outbox"))

	outbox.Register(worker.TaskWebhook, worker.WebhookHandler(webhook.NewClient(cfg.Webhooks.Timeout), db))
	sheets := initGoogleSheets(ctx, cfg, &logger)
	if sheets != nil {
		outbox.Register(worker.TaskSheets, worker.SheetsAppendHandler(sheets, db))
		outbox.Register(worker.TaskSheetsResync, worker.SheetsResyncHandler(sheets, db))
	}
	if notifier := initTelegram(cfg, &logger); notifier != nil {
		outbox.Register(worker.TaskNotify, worker.NotifyHandler(notifier))
		worker.SubscribeNotifications(bus, outbox, &logger)
	}

	deps := buildServices(cfg, db, store, outbox, bus, sheets != nil, &logger)
	deps.Ready = db.PingContext

	httpServer := api.NewHTTPServer(deps, api.Options{
		HTTP:           cfg.HTTP,
		RateLimit:      cfg.RateLimit,
		MediaDir:       cfg.Images.Dir,
		MediaURL:       cfg.Images.BaseURL,
		MaxUploadBytes: cfg.Images.MaxUploadMB << 20,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.GRPC, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	startMetrics(ctx, cfg, &logger)
	go outbox.Start(ctx)

	return startServers(ctx, grpcServer, httpServer, db, cfg, &logger)
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

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	created, err := db.SeedAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info().Str("email", cfg.Auth.AdminEmail).Msg("initial admin account created")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := cache.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initCache layers Redis over the in-process cache when Redis is up.
func initCache(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) (cache.Store, func()) {
	mem := cache.NewMemoryCache(cfg.Cache.LocalSize)
	if client == nil {
		return mem, mem.Stop
	}
	return cache.NewFailoverCache(cache.NewRedisCache(client, cfg.App.Name), mem, logger), mem.Stop
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.LeadsSheet {
	if cfg.Google.CredentialsFile == "" || cfg.Google.LeadsSpreadsheetID == "" {
		return nil
	}

	sheet, err := google.NewLeadsSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.LeadsSpreadsheetID, cfg.Google.LeadsSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sheet.TestConnection(testCtx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, tasks will retry")
	}

	logger.Info().Str("spreadsheet", cfg.Google.LeadsSpreadsheetID).Msg("google sheets connected")
	return sheet
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
		return nil
	}
	bot, err := notify.NewBot(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.ChatIDs)).Msg("telegram notifications enabled")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.ChatIDs)
}

func buildServices(
	cfg *config.Config,
	db *database.DB,
	store cache.Store,
	outbox *worker.OutboxWorker,
	bus *events.EventBus,
	sheetsEnabled bool,
	logger *zerolog.Logger,
) api.Deps {
	ttl := cfg.Cache.ContentTTL
	villaStore := database.NewContentStore[models.Villa](db, models.KindVilla)
	resortStore := database.NewContentStore[models.Resort](db, models.KindResort)
	adventureStore := database.NewContentStore[models.Adventure](db, models.KindAdventure)
	restaurantStore := database.NewContentStore[models.Restaurant](db, models.KindRestaurant)

	var provider payments.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = payments.NewStripeProvider(cfg.Stripe, nil)
		logger.Info().Msg("stripe checkout enabled")
	}

	var completer domain.Completer
	if cfg.OpenAI.APIKey != "" {
		completer = itinerary.NewOpenAICompleter(cfg.OpenAI)
		logger.Info().Str("model", cfg.OpenAI.Model).Msg("itinerary generation enabled")
	}

	optimizer := imageopt.New(imageopt.Options{
		MaxWidth:    cfg.Images.MaxWidth,
		JPEGQuality: cfg.Images.JPEGQuality,
		WebPQuality: cfg.Images.WebPQuality,
	}, logger)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.App.Name)

	return api.Deps{
		Villas:      service.NewContentService[models.Villa](villaStore, store, ttl, logger),
		Resorts:     service.NewContentService[models.Resort](resortStore, store, ttl, logger),
		Adventures:  service.NewContentService[models.Adventure](adventureStore, store, ttl, logger),
		Restaurants: service.NewContentService[models.Restaurant](restaurantStore, store, ttl, logger),
		Leads: service.NewLeadService(db, outbox, bus, service.LeadOptions{
			WebhookURL:    cfg.Webhooks.LeadURL,
			SheetsEnabled: sheetsEnabled,
		}, logger),
		Guides: service.NewGuideService(cfg.Guides, db, outbox, bus, cfg.Webhooks.GuideURL, logger),
		Bookings: service.NewBookingService(db, villaStore, adventureStore, provider, bus, service.BookingOptions{
			MinNights:      cfg.Booking.MinNights,
			MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
			DepositPercent: cfg.Stripe.DepositPercent,
			Currency:       cfg.Stripe.Currency,
		}, logger),
		Images:    service.NewImageService(db, optimizer, cfg.Images.Dir, cfg.Images.BaseURL, logger),
		Itinerary: service.NewItineraryService(completer, adventureStore.Names, restaurantStore.Names, store, cfg.RateLimit.ItineraryPerHour, logger),
		Admin:     service.NewAdminService(db, tokens, db, db, db, db, outbox, logger),
		Tokens:    tokens,
	}
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
	db *database.DB,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		go grpcServer.Watch(ctx, db.PingContext, 15*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
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
