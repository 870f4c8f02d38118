package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ground-booking/internal/application"
	"github.com/example/ground-booking/internal/scheduler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu     sync.Mutex
	events []application.Event
}

func (s *recordingSink) Deliver(_ context.Context, event application.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.BookingID
	}
	return out
}

func event(id string) application.Event {
	return application.Event{
		Type:       application.EventBookingCreated,
		BookingID:  id,
		ResourceID: "G1",
		SlotNumber: 1,
		Date:       "2024-01-10",
		StartTime:  "10:00",
		EndTime:    "12:00",
		Status:     scheduler.StatusPending,
		OccurredAt: time.Date(2024, time.January, 8, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_QueueFullAndDrain(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(1, 1, discardLogger(), sink)

	require.NoError(t, d.Publish(context.Background(), event("B1")))
	assert.ErrorIs(t, d.Publish(context.Background(), event("B2")), ErrQueueFull)
	assert.Equal(t, 1, d.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	assert.Equal(t, []string{"B1"}, sink.ids())
	assert.ErrorIs(t, d.Publish(context.Background(), event("B3")), ErrClosed)
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	first := &recordingSink{}
	failures := 0
	var mu sync.Mutex
	failing := SinkFunc(func(context.Context, application.Event) error {
		mu.Lock()
		failures++
		mu.Unlock()
		return errors.New("broker down")
	})
	last := &recordingSink{}
	d := NewDispatcher(2, 8, discardLogger(), first, failing, last)

	for _, id := range []string{"B1", "B2", "B3"} {
		require.NoError(t, d.Publish(context.Background(), event(id)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.ElementsMatch(t, []string{"B1", "B2", "B3"}, first.ids())
	assert.ElementsMatch(t, []string{"B1", "B2", "B3"}, last.ids())
	assert.Equal(t, 3, failures)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	e := event("B1")
	e.Type = application.EventBookingCancelled
	e.Reason = "rain"
	require.NoError(t, sink.Deliver(context.Background(), e))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "booking.cancelled", entry["event"])
	assert.Equal(t, "B1", entry["booking_id"])
	assert.Equal(t, "rain", entry["reason"])
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_Deliver(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "bookings"}

	require.NoError(t, p.Deliver(context.Background(), event("B1")))
	assert.Equal(t, "bookings", ch.exchange)
	assert.Equal(t, "booking.created", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "booking.created:B1", ch.msg.MessageId)

	var decoded application.Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "G1", decoded.ResourceID)
	assert.Equal(t, "10:00", decoded.StartTime)

	ch.err = errors.New("channel closed")
	err := p.Deliver(context.Background(), event("B2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish booking.created")
}
