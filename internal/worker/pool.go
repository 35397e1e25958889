package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reportpilot/reportpilot/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.runsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - runsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.logger.Info("Worker received run",
				slog.String("worker_name", workerName),
				slog.String("run_id", msg.RunID),
				slog.Uint64("delivery_tag", msg.DeliveryTag),
			)

			err := w.processRun(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
				)
				continue
			}

			if err != nil {
				w.logger.Error("Run processing failed",
					slog.String("worker_name", workerName),
					slog.String("run_id", msg.RunID),
					slog.String("error", err.Error()),
				)

				requeue := w.shouldRequeueRun(err)

				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
						slog.String("error", nackErr.Error()),
					)
				} else {
					w.logger.Info("Message NACKed",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
						slog.Bool("requeue", requeue),
					)
				}
			} else {
				if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
					w.logger.Error("Failed to ACK message",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
						slog.String("error", ackErr.Error()),
					)
				} else {
					w.logger.Info("Run finished",
						slog.String("worker_name", workerName),
						slog.String("run_id", msg.RunID),
					)
				}
			}
		}
	}
}

// shouldRequeueRun determines if a run message should be requeued based on the error type
func (w *Worker) shouldRequeueRun(err error) bool {
	// Don't requeue if the run was already claimed by another worker
	if errors.Is(err, domain.ErrRunNotClaimable) {
		return false
	}

	// Don't requeue if max retries exceeded
	if errors.Is(err, ErrMaxRetriesExceeded) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}
