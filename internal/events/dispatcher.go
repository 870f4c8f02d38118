package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ground-booking/internal/application"
)

var (
	// ErrQueueFull is returned by Publish when the dispatcher buffer is full.
	ErrQueueFull = errors.New("events: dispatch queue full")
	// ErrClosed is returned by Publish once the dispatcher has shut down.
	ErrClosed = errors.New("events: dispatcher closed")
)

const deliveryTimeout = 5 * time.Second

// Sink receives booking events from the dispatcher workers.
type Sink interface {
	Deliver(ctx context.Context, event application.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event application.Event) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, event application.Event) error {
	return f(ctx, event)
}

var _ application.EventPublisher = (*Dispatcher)(nil)

// Dispatcher fans events out to sinks from a pool of workers.
type Dispatcher struct {
	size   int
	jobs   chan application.Event
	sinks  []Sink
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher with size workers and a queue holding
// buffer events.
func NewDispatcher(size, buffer int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	if buffer < size {
		buffer = size
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		size:   size,
		jobs:   make(chan application.Event, buffer),
		sinks:  sinks,
		logger: logger.With("component", "event_dispatcher"),
	}
}

// Publish queues event without blocking.
func (d *Dispatcher) Publish(_ context.Context, event application.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending reports the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Run starts the workers and blocks until ctx is done. Queued events are
// drained before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(ctx, id)
		}(i)
	}

	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	wg.Wait()
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	d.logger.Debug("worker started", "worker", id)
	base := context.WithoutCancel(ctx)
	for event := range d.jobs {
		d.deliver(base, event)
	}
	d.logger.Debug("worker stopped", "worker", id)
}

func (d *Dispatcher) deliver(base context.Context, event application.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(base, deliveryTimeout)
		err := sink.Deliver(ctx, event)
		cancel()
		if err != nil {
			d.logger.Warn("event delivery failed",
				"event", string(event.Type),
				"booking_id", event.BookingID,
				"error", err,
			)
		}
	}
}
