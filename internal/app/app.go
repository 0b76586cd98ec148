package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smallsky163/hualin-assistant/internal/adapter/genai"
	mongoadapter "github.com/smallsky163/hualin-assistant/internal/adapter/mongo"
	natsadapter "github.com/smallsky163/hualin-assistant/internal/adapter/nats"
	redisadapter "github.com/smallsky163/hualin-assistant/internal/adapter/redis"
	"github.com/smallsky163/hualin-assistant/internal/adapter/storage"
	"github.com/smallsky163/hualin-assistant/internal/adapter/telegram"
	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/service"
)

type App struct {
	cfg         *config.Config
	log         logger.Logger
	bot         *telegram.Bot
	dispatcher  *service.Dispatcher
	mongoClient *mongo.Client
	redisClient *redis.Client
	natsConn    *natsgo.Conn
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logCfg := logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	appLogger, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s", cfg.Env)

	appLogger.Info("Initializing MongoDB client...")
	mongoClient, err := mongoadapter.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}
	appLogger.Info("MongoDB client initialized successfully")

	appLogger.Info("Initializing Redis client...")
	redisClient, err := redisadapter.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
	}
	appLogger.Info("Redis client initialized successfully")

	appLogger.Info("Initializing NATS connection...")
	natsConn, err := natsadapter.NewConnection(cfg.NATS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize NATS connection: %w", err)
	}
	eventPublisher, err := natsadapter.NewNATSPublisher(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize NATS publisher: %w", err)
	}
	appLogger.Info("NATS connection initialized successfully")

	appLogger.Info("Initializing MinIO storage...")
	photoStorage, err := storage.NewMinIOStorage(ctx, cfg.MinIO, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO storage: %w", err)
	}
	appLogger.Info("MinIO storage initialized successfully")

	generator := genai.NewClient(cfg.Gemini)

	listingRepo := mongoadapter.NewListingRepository(mongoClient, cfg.MongoDB)
	profileRepo := mongoadapter.NewProfileRepository(mongoClient, cfg.MongoDB)
	subscriptionRepo := mongoadapter.NewSubscriptionRepository(mongoClient, cfg.MongoDB)
	listingCache := redisadapter.NewListingCacheRepository(redisClient)
	appLogger.Info("Repositories initialized")

	tb, err := telegram.NewBotAPI(cfg.Telegram)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot api: %w", err)
	}
	messenger := telegram.NewMessenger(tb)

	dispatcher := service.NewDispatcher(cfg.Dispatcher, appLogger)

	gate, err := service.NewCreditGate(profileRepo, cfg.Credits, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credit gate: %w", err)
	}
	fanout := service.NewFanoutEngine(listingRepo, subscriptionRepo, profileRepo, messenger, appLogger)
	lifecycle := service.NewLifecycleService(
		listingRepo, profileRepo, listingCache,
		fanout, dispatcher, eventPublisher, generator,
		cfg.Listing.CacheTTL, appLogger,
	)
	ingest := service.NewIngestService(gate, lifecycle, generator, photoStorage, cfg.Credits.ListingCost, appLogger)
	search := service.NewSearchService(
		gate, generator, listingRepo, listingCache,
		cfg.Listing.CacheTTL, cfg.Credits.SearchCost, appLogger,
	)
	appLogger.Info("Services initialized")

	continuations := service.NewContinuationTable()
	bot := telegram.NewBot(
		tb, cfg.Telegram,
		gate, lifecycle, ingest, search,
		subscriptionRepo, continuations, dispatcher,
		cfg.Listing.MaxImageBytes, appLogger,
	)

	return &App{
		cfg:         cfg,
		log:         appLogger,
		bot:         bot,
		dispatcher:  dispatcher,
		mongoClient: mongoClient,
		redisClient: redisClient,
		natsConn:    natsConn,
	}, nil
}

func (a *App) Run() {
	a.log.Info("Starting application components...")

	go a.bot.Start()
	a.log.Info("Telegram bot started in a goroutine")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	a.log.Infof("Received shutdown signal: %v. Shutting down application...", receivedSignal)

	a.bot.Stop()
	a.log.Info("Telegram bot stopped")

	a.dispatcher.Stop()
	a.log.Info("Dispatcher drained and stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.log.Info("Closing connections...")

	if a.natsConn != nil {
		a.natsConn.Close()
		a.log.Info("NATS connection closed successfully")
	}

	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
			a.log.Errorf("Error disconnecting from MongoDB: %v", err)
		} else {
			a.log.Info("MongoDB connection closed successfully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}

	a.log.Info("Application shut down successfully")
}
