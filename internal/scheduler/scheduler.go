// Package scheduler polls the store for due schedules and enqueues a
// run for each one. Multiple instances coordinate through Redis locks;
// without Redis a single instance is assumed.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/storage"
)

// dueBatchSize caps how many schedules one tick dispatches.
const dueBatchSize = 50

// RunQueue publishes run messages to the worker queue.
type RunQueue interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Locker coordinates schedule firing across scheduler instances. A nil
// Locker disables locking.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Config holds scheduler configuration
type Config struct {
	Logger       *slog.Logger
	Store        storage.Store
	Queue        RunQueue
	Locker       Locker
	TickInterval time.Duration
	LockTTL      time.Duration
	MaxRetries   int
}

// Scheduler drives the due-schedule polling loop
type Scheduler struct {
	logger       *slog.Logger
	store        storage.Store
	queue        RunQueue
	locker       Locker
	tickInterval time.Duration
	lockTTL      time.Duration
	maxRetries   int
	stopChan     chan struct{}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *Config) *Scheduler {
	return &Scheduler{
		logger:       cfg.Logger,
		store:        cfg.Store,
		queue:        cfg.Queue,
		locker:       cfg.Locker,
		tickInterval: cfg.TickInterval,
		lockTTL:      cfg.LockTTL,
		maxRetries:   cfg.MaxRetries,
		stopChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		slog.Duration("tick_interval", s.tickInterval),
		slog.Duration("lock_ttl", s.lockTTL),
		slog.Bool("locking_enabled", s.locker != nil),
	)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled, stopping...")
			return nil

		case <-s.stopChan:
			s.logger.Info("Scheduler stop requested")
			return nil

		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// Stop ends the polling loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// dispatchDue fires every schedule whose next run time has passed.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.store.DueSchedules(ctx, now, dueBatchSize)
	if err != nil {
		s.logger.Error("Failed to load due schedules",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.Debug("Due schedules found",
		slog.Int("count", len(due)),
	)

	for _, schedule := range due {
		s.fire(ctx, schedule, now)
	}
}

// fire enqueues one run for a due schedule and advances its next run
// time. The lock covers the window between run creation and the
// next_run_at update, so a second instance cannot double-fire.
func (s *Scheduler) fire(ctx context.Context, schedule *domain.Schedule, now time.Time) {
	lockKey := scheduleLockKey(schedule.ID)

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			// Prefer a delayed fire over a duplicate one.
			s.logger.Warn("Failed to acquire schedule lock",
				slog.String("schedule_id", schedule.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if !acquired {
			s.logger.Debug("Schedule locked by another instance",
				slog.String("schedule_id", schedule.ID),
			)
			return
		}
	}

	run := domain.Run{
		ID:             uuid.New().String(),
		ScheduleID:     schedule.ID,
		Trigger:        domain.TriggerScheduled,
		Status:         domain.RunStatusPending,
		ReportName:     schedule.Name,
		SheetRef:       schedule.SheetRef,
		Worksheet:      schedule.Worksheet,
		Recipient:      schedule.Recipient,
		Language:       schedule.Language,
		IncludeCharts:  schedule.IncludeCharts,
		IncludeRawData: schedule.IncludeRawData,
		MaxRetries:     s.maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateRun(ctx, &run); err != nil {
		// next_run_at is untouched, so the next tick retries. The lock
		// keeps other instances away until its TTL expires.
		s.logger.Error("Failed to create scheduled run",
			slog.String("schedule_id", schedule.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.publishRun(ctx, run.ID); err != nil {
		s.logger.Error("Failed to enqueue scheduled run",
			slog.String("schedule_id", schedule.ID),
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		// The run row exists but no worker will ever see it. Fail it so
		// the run history tells the truth, then advance the schedule.
		result := storage.RunResult{
			Status:       domain.RunStatusFailed,
			ErrorMessage: fmt.Sprintf("failed to enqueue run: %s", err.Error()),
		}
		if finishErr := s.store.FinishRun(ctx, run.ID, result); finishErr != nil {
			s.logger.Error("Failed to mark unenqueued run as failed",
				slog.String("run_id", run.ID),
				slog.String("error", finishErr.Error()),
			)
		}
	} else {
		s.logger.Info("Scheduled run enqueued",
			slog.String("schedule_id", schedule.ID),
			slog.String("run_id", run.ID),
			slog.String("schedule_name", schedule.Name),
		)
	}

	s.advance(ctx, schedule, now)

	if s.locker != nil {
		if err := s.locker.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release schedule lock",
				slog.String("schedule_id", schedule.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// advance moves next_run_at to the first occurrence after now. Missed
// occurrences are never backfilled.
func (s *Scheduler) advance(ctx context.Context, schedule *domain.Schedule, now time.Time) {
	next, err := schedule.Frequency.NextRun(now)
	if err != nil {
		// Frequencies are validated at creation, so this is a stored
		// schedule gone bad. Leave next_run_at alone and let the
		// operator see the error.
		s.logger.Error("Failed to compute next run time",
			slog.String("schedule_id", schedule.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.store.UpdateScheduleNextRun(ctx, schedule.ID, next); err != nil {
		s.logger.Error("Failed to advance schedule",
			slog.String("schedule_id", schedule.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("Schedule advanced",
		slog.String("schedule_id", schedule.ID),
		slog.Time("next_run_at", next),
	)
}

func (s *Scheduler) publishRun(ctx context.Context, runID string) error {
	body, err := json.Marshal(domain.RunMessage{RunID: runID})
	if err != nil {
		return fmt.Errorf("failed to marshal run message: %w", err)
	}
	return s.queue.PublishWithRetry(ctx, body, "application/json")
}

func scheduleLockKey(scheduleID string) string {
	return "schedule_lock:" + scheduleID
}
