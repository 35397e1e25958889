// Package worker consumes run messages from RabbitMQ and executes the
// report pipeline: fetch data, generate analysis, render charts, build
// the PDF and spreadsheet, and email the result.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reportpilot/reportpilot/internal/chart"
	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/email"
	"github.com/reportpilot/reportpilot/internal/insight"
	"github.com/reportpilot/reportpilot/internal/report"
	"github.com/reportpilot/reportpilot/internal/storage"
	"github.com/reportpilot/reportpilot/shared/rabbitmq"
)

// SheetSource reads spreadsheet data for runs that are not served from
// a schedule snapshot. Nil when Google credentials are not configured.
type SheetSource interface {
	Fetch(ctx context.Context, ref, worksheet string) ([][]string, error)
}

// InsightGenerator produces the narrative analysis section. Nil when
// Gemini is disabled; reports then ship without an analysis section.
type InsightGenerator interface {
	Generate(ctx context.Context, req insight.Request) (string, error)
}

// MailSender delivers the finished report.
type MailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             storage.Store
	RabbitClient      *rabbitmq.Client
	Sheets            SheetSource
	Insights          InsightGenerator
	Charts            *chart.Renderer
	Reports           *report.Builder
	Mail              MailSender
	Concurrency       int
	QueueSize         int
	RunTimeout        time.Duration
	HeartbeatInterval time.Duration
	PrefetchCount     int
	QueueName         string
	ArtifactDir       string
	SampleRows        int
}

// Worker represents the background run worker
type Worker struct {
	logger            *slog.Logger
	store             storage.Store
	rabbitClient      *rabbitmq.Client
	sheets            SheetSource
	insights          InsightGenerator
	charts            *chart.Renderer
	reports           *report.Builder
	mail              MailSender
	concurrency       int
	runTimeout        time.Duration
	heartbeatInterval time.Duration
	prefetchCount     int
	queueName         string
	artifactDir       string
	sampleRows        int
	workerID          string
	runsChan          chan *domain.RunMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		rabbitClient:      cfg.RabbitClient,
		sheets:            cfg.Sheets,
		insights:          cfg.Insights,
		charts:            cfg.Charts,
		reports:           cfg.Reports,
		mail:              cfg.Mail,
		concurrency:       cfg.Concurrency,
		runTimeout:        cfg.RunTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		prefetchCount:     cfg.PrefetchCount,
		queueName:         cfg.QueueName,
		artifactDir:       cfg.ArtifactDir,
		sampleRows:        cfg.SampleRows,
		workerID:          uuid.New().String(),
		runsChan:          make(chan *domain.RunMessage, cfg.QueueSize),
		stopChan:          make(chan struct{}),
	}
}

// Start begins processing runs. It blocks until the context is
// canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("run_timeout", w.runTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
