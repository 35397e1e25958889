package handler

import (
	"context"
	"log/slog"

	"github.com/reportpilot/reportpilot/internal/config"
	"github.com/reportpilot/reportpilot/internal/storage"
)

// RunQueue publishes run messages to the worker queue.
type RunQueue interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
	IsConnected() bool
}

// SheetSource reads spreadsheet data. Nil when Google credentials are
// not configured; schedule CRUD still works, preview and snapshots
// report the missing configuration instead.
type SheetSource interface {
	Fetch(ctx context.Context, ref, worksheet string) ([][]string, error)
	Worksheets(ctx context.Context, ref string) ([]string, error)
	ServiceAccountEmail() string
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Config *config.Config
	Store  storage.Store
	Queue  RunQueue
	Sheets SheetSource
}

// Handler handles ReportPilot HTTP requests
type Handler struct {
	logger    *slog.Logger
	config    *config.Config
	store     storage.Store
	queue     RunQueue
	sheets    SheetSource
	downloads *downloadStore
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	return &Handler{
		logger:    deps.Logger,
		config:    deps.Config,
		store:     deps.Store,
		queue:     deps.Queue,
		sheets:    deps.Sheets,
		downloads: newDownloadStore(),
	}
}
