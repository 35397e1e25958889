package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nackCall struct {
	tag     uint64
	requeue bool
}

type stubAcker struct {
	acks  []uint64
	nacks []nackCall
}

func (a *stubAcker) Ack(tag uint64, multiple bool) error {
	a.acks = append(a.acks, tag)
	return nil
}

func (a *stubAcker) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks = append(a.nacks, nackCall{tag: tag, requeue: requeue})
	return nil
}

func (a *stubAcker) Reject(tag uint64, requeue bool) error {
	a.nacks = append(a.nacks, nackCall{tag: tag, requeue: requeue})
	return nil
}

func TestMessageDispatcher(t *testing.T) {
	tw := newTestWorker(t, nil)
	acker := &stubAcker{}
	runID := uuid.New().String()

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{broken`)}
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte(`{"run_id":"not-a-uuid"}`)}
	deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte(`{"run_id":"` + runID + `"}`)}
	close(deliveries)

	// Returns once the delivery channel closes.
	tw.w.startMessageDispatcher(context.Background(), deliveries)

	// Malformed payloads are dropped without requeue.
	require.Len(t, acker.nacks, 2)
	assert.Equal(t, nackCall{tag: 1, requeue: false}, acker.nacks[0])
	assert.Equal(t, nackCall{tag: 2, requeue: false}, acker.nacks[1])
	assert.Empty(t, acker.acks)

	select {
	case msg := <-tw.w.runsChan:
		assert.Equal(t, runID, msg.RunID)
		assert.Equal(t, uint64(3), msg.DeliveryTag)
	default:
		t.Fatal("valid run message was not dispatched")
	}
}

func TestMessageDispatcher_ContextCanceled(t *testing.T) {
	tw := newTestWorker(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deliveries := make(chan amqp.Delivery)
	done := make(chan struct{})
	go func() {
		tw.w.startMessageDispatcher(ctx, deliveries)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancel")
	}
}
