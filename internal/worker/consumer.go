package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/reportpilot/reportpilot/internal/domain"
)

// setupConsumer sets up the RabbitMQ consumer with QoS and returns the
// delivery channel
func (w *Worker) setupConsumer(ctx context.Context) (<-chan amqp.Delivery, error) {
	// prefetch bounds how many unacked runs this instance holds
	if err := w.rabbitClient.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	// Consumer tag doubles as the worker identity in run records
	consumerTag := w.workerID

	deliveries, err := w.rabbitClient.Consume(consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", consumerTag),
		slog.String("worker_id", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches runs to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg domain.RunMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				w.logger.Error("Failed to parse message JSON",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// NACK without requeue - malformed messages should go to DLQ
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if _, err := uuid.Parse(msg.RunID); err != nil {
				w.logger.Error("Invalid run_id format - not a UUID",
					slog.String("run_id", msg.RunID),
					slog.String("error", err.Error()),
				)
				// NACK without requeue - invalid UUID
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK message with invalid run_id",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			msg.DeliveryTag = delivery.DeliveryTag

			select {
			case w.runsChan <- &msg:
				w.logger.Debug("Run dispatched to worker pool",
					slog.String("run_id", msg.RunID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching run")
				// NACK with requeue so the run is not lost on shutdown
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
