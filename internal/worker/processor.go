package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/storage"
)

// processRun claims one run, executes the report pipeline, and records
// the outcome. The returned error drives the ACK/NACK decision.
func (w *Worker) processRun(ctx context.Context, msg *domain.RunMessage) error {
	w.logger.Info("Processing run",
		slog.String("run_id", msg.RunID),
		slog.String("worker_id", w.workerID),
	)

	// Claim the run (PENDING -> RUNNING)
	run, err := w.store.ClaimRun(ctx, msg.RunID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotClaimable) {
			// Another worker got there first - don't requeue
			w.logger.Warn("Run already claimed, skipping",
				slog.String("run_id", msg.RunID),
			)
			return fmt.Errorf("run already claimed: %w", err)
		}
		w.logger.Error("Failed to claim run",
			slog.String("run_id", msg.RunID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to claim run: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	// Heartbeat while the pipeline runs so stalled workers are visible
	heartbeatDone := make(chan struct{})
	go w.sendRunHeartbeat(runCtx, run.ID, heartbeatDone)
	defer close(heartbeatDone)

	out, err := w.executeRun(runCtx, run)
	if err != nil {
		return w.handleRunFailure(ctx, run, err)
	}

	result := storage.RunResult{
		Status:         domain.RunStatusCompleted,
		RowsFetched:    out.rowsFetched,
		ColumnsFetched: out.columnsFetched,
		PDFPath:        out.pdfPath,
		XLSXPath:       out.xlsxPath,
	}
	if updateErr := w.store.FinishRun(ctx, run.ID, result); updateErr != nil {
		// The report went out; a bookkeeping failure must not retrigger it
		w.logger.Error("Failed to mark run as completed",
			slog.String("run_id", run.ID),
			slog.String("error", updateErr.Error()),
		)
	}
	w.recordScheduleOutcome(ctx, run, domain.RunStatusCompleted)

	w.logger.Info("Run completed successfully",
		slog.String("run_id", run.ID),
		slog.String("report_name", run.ReportName),
		slog.Int("rows_fetched", out.rowsFetched),
	)

	return nil
}

// handleRunFailure either puts the run back to PENDING for another
// attempt or finishes it as FAILED once the retry budget is spent.
func (w *Worker) handleRunFailure(ctx context.Context, run *domain.Run, execErr error) error {
	w.logger.Error("Run execution failed",
		slog.String("run_id", run.ID),
		slog.String("report_name", run.ReportName),
		slog.String("error", execErr.Error()),
	)

	if run.RetryCount < run.MaxRetries {
		// Back to PENDING so the requeued delivery can claim it again
		if retryErr := w.store.MarkRunRetrying(ctx, run.ID, execErr.Error()); retryErr != nil {
			w.logger.Error("Failed to mark run for retry",
				slog.String("run_id", run.ID),
				slog.String("error", retryErr.Error()),
			)
			w.failRun(ctx, run, execErr)
			return fmt.Errorf("run execution failed: %v", execErr)
		}

		w.logger.Info("Run will be retried",
			slog.String("run_id", run.ID),
			slog.Int("retry_count", run.RetryCount),
			slog.Int("max_retries", run.MaxRetries),
		)
		return NewRetryableError(fmt.Errorf("run execution failed: %w", execErr))
	}

	w.logger.Warn("Run exceeded max retries",
		slog.String("run_id", run.ID),
		slog.Int("retry_count", run.RetryCount),
		slog.Int("max_retries", run.MaxRetries),
	)
	w.failRun(ctx, run, execErr)
	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, execErr)
}

// failRun finishes a run as FAILED and mirrors the outcome onto its
// schedule.
func (w *Worker) failRun(ctx context.Context, run *domain.Run, execErr error) {
	result := storage.RunResult{
		Status:       domain.RunStatusFailed,
		ErrorMessage: execErr.Error(),
	}
	if updateErr := w.store.FinishRun(ctx, run.ID, result); updateErr != nil {
		w.logger.Error("Failed to mark run as failed",
			slog.String("run_id", run.ID),
			slog.String("error", updateErr.Error()),
		)
	}
	w.recordScheduleOutcome(ctx, run, domain.RunStatusFailed)
}

// recordScheduleOutcome mirrors the terminal status onto the owning
// schedule for listings. Ad-hoc runs have no schedule.
func (w *Worker) recordScheduleOutcome(ctx context.Context, run *domain.Run, status string) {
	if run.ScheduleID == "" {
		return
	}
	if err := w.store.UpdateScheduleLastRun(ctx, run.ScheduleID, time.Now().UTC(), status); err != nil {
		w.logger.Warn("Failed to update schedule last run",
			slog.String("schedule_id", run.ScheduleID),
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// sendRunHeartbeat periodically updates the run's heartbeat timestamp
func (w *Worker) sendRunHeartbeat(ctx context.Context, runID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	w.logger.Debug("Run heartbeat started",
		slog.String("run_id", runID),
	)

	for {
		select {
		case <-done:
			w.logger.Debug("Run heartbeat stopped",
				slog.String("run_id", runID),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Run heartbeat stopped - context canceled",
				slog.String("run_id", runID),
			)
			return

		case <-ticker.C:
			if err := w.store.HeartbeatRun(ctx, runID); err != nil {
				w.logger.Warn("Failed to update run heartbeat",
					slog.String("run_id", runID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
