package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/strategy-catalog/internal/backtest"
	"github.com/yourorg/strategy-catalog/internal/catalog"
	"github.com/yourorg/strategy-catalog/internal/client"
	"github.com/yourorg/strategy-catalog/internal/config"
	"github.com/yourorg/strategy-catalog/internal/events"
	"github.com/yourorg/strategy-catalog/internal/handler"
	"github.com/yourorg/strategy-catalog/internal/middleware"
	"github.com/yourorg/strategy-catalog/internal/model"
)

// publisher is the event sink shared by the catalog and the orchestrator
type publisher interface {
	catalog.EventPublisher
	backtest.EventPublisher
	Close() error
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize event publisher
	eventPublisher := newPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	// Initialize remote client
	var signer *client.TokenSigner
	if cfg.Remote.JWTSecret != "" {
		signer = client.NewTokenSigner(cfg.Remote.JWTSecret, "strategy-catalog", cfg.Remote.TokenTTL)
	}
	strategyClient := client.NewStrategyClient(client.Options{
		BaseURL:              cfg.Remote.URL,
		Timeout:              cfg.Remote.Timeout,
		ServiceKey:           cfg.Remote.ServiceKey,
		Signer:               signer,
		RetryMaxElapsed:      cfg.Remote.Retry.MaxElapsed,
		RetryInitialInterval: cfg.Remote.Retry.InitialInterval,
	}, logger)

	// Initialize catalog and orchestrator
	store := catalog.NewStore(strategyClient, eventPublisher, logger)
	orchestrator := backtest.NewOrchestrator(store, strategyClient, eventPublisher, backtest.Options{
		Defaults: model.BacktestDefaults{
			Ticker:    cfg.Backtest.DefaultTicker,
			MAPeriod:  cfg.Backtest.DefaultMAPeriod,
			RSIPeriod: cfg.Backtest.RSIPeriod,
		},
		Timeout: cfg.Backtest.Timeout,
	}, logger)

	// Initial catalog load; the service starts empty if the remote store is down
	initialLoad(store, logger)

	// Set up HTTP server with Gin
	catalogHandler := handler.NewCatalogHandler(store, orchestrator, logger)
	router := setupRouter(catalogHandler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := orchestrator.Wait(ctx); err != nil {
		logger.Warn("Backtests still pending at shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level, format string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func newPublisher(cfg config.KafkaConfig, logger *zap.Logger) publisher {
	brokers := events.ParseBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Info("No Kafka brokers configured, events disabled")
		return events.NopPublisher{}
	}

	logger.Info("Publishing events to Kafka", zap.Strings("brokers", brokers))
	return events.NewPublisher(brokers, cfg.ClientID, events.Topics{
		StrategyEvents: cfg.Topics.StrategyEvents,
		BacktestEvents: cfg.Topics.BacktestEvents,
	}, logger)
}

// initialLoad fills the catalog, retrying while the remote store comes up
func initialLoad(store *catalog.Store, logger *zap.Logger) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.RetryNotify(func() error {
		return store.Load(context.Background())
	}, b, func(err error, wait time.Duration) {
		logger.Warn("Initial catalog load failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		logger.Error("Starting with an empty catalog", zap.Error(err))
		return
	}

	logger.Info("Catalog loaded", zap.Int("strategies", store.Len()))
}

func setupRouter(catalogHandler *handler.CatalogHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	catalogHandler.RegisterRoutes(v1)

	return router
}
