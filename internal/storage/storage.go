// Package storage persists schedules and runs behind a driver-agnostic
// interface. Two drivers exist: PostgreSQL for shared deployments and a
// JSON file store for single-node installs.
package storage

import (
	"context"
	"time"

	"github.com/reportpilot/reportpilot/internal/domain"
)

// Cursor is a keyset pagination position: the (created_at, id) pair of
// the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ScheduleFilter narrows and pages schedule listings.
type ScheduleFilter struct {
	Paused   *bool
	Language string
	PageSize int
	Cursor   *Cursor
}

// RunFilter narrows and pages run listings.
type RunFilter struct {
	ScheduleID string
	Status     string
	Trigger    string
	PageSize   int
	Cursor     *Cursor
}

// RunResult carries the terminal state of a finished run.
type RunResult struct {
	Status         string
	ErrorMessage   string
	RowsFetched    int
	ColumnsFetched int
	PDFPath        string
	XLSXPath       string
}

// Store is the persistence surface shared by the API service, the
// scheduler, and the worker. List operations return up to PageSize+1
// rows so callers can detect further pages without a count query.
type Store interface {
	CreateSchedule(ctx context.Context, schedule *domain.Schedule) error
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, schedule *domain.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]*domain.Schedule, error)

	// DueSchedules returns unpaused schedules whose next_run_at is at or
	// before now, soonest first.
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error)
	UpdateScheduleNextRun(ctx context.Context, id string, nextRunAt time.Time) error
	UpdateScheduleLastRun(ctx context.Context, id string, lastRunAt time.Time, status string) error

	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*domain.Run, error)

	// ClaimRun transitions a PENDING run to RUNNING for one worker.
	// domain.ErrRunNotClaimable signals the run was already taken.
	ClaimRun(ctx context.Context, id, workerID string) (*domain.Run, error)

	// MarkRunRetrying puts a RUNNING run back to PENDING with its retry
	// count incremented, so a requeued delivery can claim it again.
	MarkRunRetrying(ctx context.Context, id, errorMessage string) error
	FinishRun(ctx context.Context, id string, result RunResult) error
	HeartbeatRun(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close() error
}
