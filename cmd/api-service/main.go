package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/reportpilot/reportpilot/internal/api/handler"
	"github.com/reportpilot/reportpilot/internal/api/router"
	"github.com/reportpilot/reportpilot/internal/config"
	"github.com/reportpilot/reportpilot/internal/sheets"
	"github.com/reportpilot/reportpilot/internal/storage"
	"github.com/reportpilot/reportpilot/shared/logger"
	"github.com/reportpilot/reportpilot/shared/postgresql"
	"github.com/reportpilot/reportpilot/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize schedule and run storage
	store, err := initStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	appLogger.Info("Storage ready",
		slog.String("driver", cfg.Storage.Driver),
	)

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Initialize the optional Google Sheets client
	sheetsClient, err := initSheets(&cfg.Google, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, store, rabbitClient, sheetsClient)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		if err := store.Close(); err != nil {
			appLogger.Error("Failed to close storage",
				slog.Any("error", err),
			)
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initStore opens the schedule and run store for the configured driver.
func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.Storage.Driver == config.StorageDriverPostgres {
		pgClient, err := initPostgreSQL(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}

		store := storage.NewPostgresStore(pgClient, logger)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := store.EnsureSchema(ctx); err != nil {
			pgClient.Close()
			return nil, err
		}

		return store, nil
	}

	return storage.NewFileStore(cfg.Storage.Dir, logger)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ConnectTimeout:  cfg.ConnectTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initSheets builds the Google Sheets client when service account
// credentials are configured. Without credentials it returns nil; the
// API still manages schedules, and preview and snapshot capture report
// the missing configuration.
func initSheets(cfg *config.GoogleConfig, logger *slog.Logger) (*sheets.Client, error) {
	creds, err := googleCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		logger.Warn("Google Sheets credentials not configured, source preview disabled")
		return nil, nil
	}

	return sheets.NewClient(context.Background(), sheets.Config{
		CredentialsJSON: creds,
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
	}, logger)
}

// googleCredentials resolves the service account key, preferring the
// environment over the credentials file.
func googleCredentials(cfg *config.GoogleConfig) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, store storage.Store, rabbitClient *rabbitmq.Client, sheetsClient *sheets.Client) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger: logger,
		Config: cfg,
		Store:  store,
		Queue:  rabbitClient,
	}
	if sheetsClient != nil {
		handlerDeps.Sheets = sheetsClient
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
