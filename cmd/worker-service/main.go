package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/reportpilot/reportpilot/internal/chart"
	"github.com/reportpilot/reportpilot/internal/config"
	"github.com/reportpilot/reportpilot/internal/email"
	"github.com/reportpilot/reportpilot/internal/insight"
	"github.com/reportpilot/reportpilot/internal/report"
	"github.com/reportpilot/reportpilot/internal/scheduler"
	"github.com/reportpilot/reportpilot/internal/sheets"
	"github.com/reportpilot/reportpilot/internal/storage"
	"github.com/reportpilot/reportpilot/internal/worker"
	"github.com/reportpilot/reportpilot/shared/logger"
	"github.com/reportpilot/reportpilot/shared/postgresql"
	"github.com/reportpilot/reportpilot/shared/rabbitmq"
	"github.com/reportpilot/reportpilot/shared/redis"
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
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
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

	// Initialize the optional Redis client for schedule locking
	redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize the optional Google Sheets client
	sheetsClient, err := initSheets(&cfg.Google, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// Initialize the optional Gemini analysis generator
	insightGen, err := initInsights(context.Background(), &cfg.Gemini, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	// Create worker instance
	chartRenderer := chart.NewRenderer(chart.Config{
		MaxCharts: cfg.Reports.MaxCharts,
	}, appLogger.Logger)

	workerCfg := &worker.Config{
		Logger:            appLogger.Logger,
		Store:             store,
		RabbitClient:      rabbitClient,
		Charts:            chartRenderer,
		Reports:           report.NewBuilder(appLogger.Logger),
		Mail:              initMail(&cfg.Email, appLogger.Logger),
		Concurrency:       cfg.Worker.Concurrency,
		QueueSize:         cfg.Worker.QueueSize,
		RunTimeout:        cfg.Worker.RunTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		QueueName:         cfg.RabbitMQ.Queue.Name,
		ArtifactDir:       cfg.Reports.ArtifactDir,
		SampleRows:        cfg.Reports.SampleRows,
	}
	if sheetsClient != nil {
		workerCfg.Sheets = sheetsClient
	}
	if insightGen != nil {
		workerCfg.Insights = insightGen
	}
	workerInstance := worker.NewWorker(workerCfg)

	// Create the scheduler unless this instance only consumes
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Disabled {
		appLogger.Info("Scheduler disabled, this instance only consumes runs")
	} else {
		schedCfg := &scheduler.Config{
			Logger:       appLogger.Logger,
			Store:        store,
			Queue:        rabbitClient,
			TickInterval: cfg.Scheduler.TickInterval,
			LockTTL:      cfg.Scheduler.LockTTL,
			MaxRetries:   cfg.Worker.MaxRetries,
		}
		if redisClient != nil {
			schedCfg.Locker = redisClient
		}
		sched = scheduler.NewScheduler(schedCfg)
	}

	// Janitor keeps the artifact directory inside the retention window
	janitor := worker.NewJanitor(&worker.JanitorConfig{
		Logger: appLogger.Logger,
		Dir:    cfg.Reports.ArtifactDir,
		TTL:    cfg.Reports.ArtifactTTL,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker, scheduler, and janitor in goroutines
	errChan := make(chan error, 3)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()
	if sched != nil {
		go func() {
			if err := sched.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}
	go func() {
		if err := janitor.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker and scheduler
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop scheduler, janitor, and worker
	done := make(chan struct{})
	go func() {
		if sched != nil {
			sched.Stop()
		}
		janitor.Stop()
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Failed to close storage",
				slog.Any("error", err),
			)
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
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

// initRedis connects to Redis for distributed schedule locks. It
// returns nil when no address is configured; a single scheduler
// instance needs no locking.
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("Redis not configured, schedule locking disabled")
		return nil, nil
	}

	return redis.NewClient(&redis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
}

// initSheets builds the Google Sheets client when service account
// credentials are configured. Without credentials it returns nil and
// runs fail unless they can be served from a schedule snapshot.
func initSheets(cfg *config.GoogleConfig, logger *slog.Logger) (*sheets.Client, error) {
	creds, err := googleCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		logger.Warn("Google Sheets credentials not configured, live fetches will fail")
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

// initMail builds the email sender. Provider credentials are optional;
// sends fail with a clear error when none are configured.
func initMail(cfg *config.EmailConfig, logger *slog.Logger) *email.Sender {
	return email.NewSender(email.Config{
		SendGridAPIKey: cfg.SendGridAPIKey,
		FromEmail:      cfg.FromEmail,
		FromName:       cfg.FromName,
		SMTPHost:       cfg.SMTP.Host,
		SMTPPort:       cfg.SMTP.Port,
		SMTPUser:       cfg.SMTPUser,
		SMTPPass:       cfg.SMTPPass,
		SendTimeout:    cfg.SendTimeout,
	}, logger)
}

// initInsights builds the Gemini analysis generator. It returns nil
// when Gemini is disabled or no API key is set; reports then ship
// without the analysis section.
func initInsights(ctx context.Context, cfg *config.GeminiConfig, logger *slog.Logger) (*insight.Generator, error) {
	if cfg.Disabled || cfg.APIKey == "" {
		logger.Warn("Gemini not configured, reports will ship without analysis")
		return nil, nil
	}

	return insight.NewGenerator(ctx, insight.Config{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
		Temperature:     float32(cfg.Temperature),
		RetryAttempts:   cfg.RetryAttempts,
		RetryBaseDelay:  cfg.RetryBaseDelay,
	}, logger)
}
