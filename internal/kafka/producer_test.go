package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
	err    error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.created", 16)
	p.Start(context.Background())

	p.Publish([]byte("ORD-000001"), []byte(`{"a":1}`), kafka.Header{Key: "x-event-type", Value: []byte("OrderCreated")})
	p.Publish([]byte("ORD-000002"), []byte(`{"a":2}`))
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "ORD-000001", string(w.msgs[0].Key))
	assert.Equal(t, "x-event-type", w.msgs[0].Headers[0].Key)
	assert.True(t, w.closed)
}

func TestProducer_DrainsOnContextCancel(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.cancelled", 16)
	ctx, cancel := context.WithCancel(context.Background())

	p.Publish([]byte("ORD-000003"), []byte(`{}`))
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	assert.Len(t, w.msgs, 1)
	assert.True(t, w.closed)
}

func TestProducer_WriteErrorDoesNotStopLoop(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, "order.created", 4)
	p.Start(context.Background())

	p.Publish([]byte("a"), []byte("1"))
	p.Publish([]byte("b"), []byte("2"))
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 2)
}

func TestProducer_PublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.created", 4)
	p.Start(context.Background())

	p.Publish([]byte("a"), []byte("1"))
	p.Close()
	assert.NotPanics(t, func() {
		p.Publish([]byte("late"), []byte("2"))
		p.Close()
	})
	p.WaitClosed()

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "a", string(w.msgs[0].Key))
}

func TestProducer_PublishAfterLoopExitDoesNotBlock(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "order.cancelled", 0)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	done := make(chan struct{})
	go func() {
		p.Publish([]byte("late"), []byte("1"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after the write loop exited")
	}
	assert.Empty(t, w.msgs)
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderNumber string `json:"order_number"`
	}

	got, err := UnwrapPayload[payload](MustMarshal(payload{OrderNumber: "ORD-000010"}))
	require.NoError(t, err)
	assert.Equal(t, "ORD-000010", got.OrderNumber)

	_, err = UnwrapPayload[payload]([]byte("not json"))
	assert.Error(t, err)
}
