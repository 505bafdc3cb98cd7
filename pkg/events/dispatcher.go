package events

import (
	"context"
	"sync"
	"time"

	"event-booking/pkg/clock"
	"event-booking/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBuffer   = 1024
	DefaultWorkers  = 4
	deliveryTimeout = 5 * time.Second
)

// Dispatcher fans events out to sinks from a bounded queue drained by a fixed
// worker pool. When the queue is full the event is dropped and counted.
type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	workers int
	clock   clock.Clock
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(log *zap.Logger, clk clock.Clock, buffer, workers int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		workers: workers,
		clock:   clk,
		log:     log.With(zap.String("component", "event-dispatcher")),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	d.log.Info("Event dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("buffer", cap(d.queue)),
		zap.Int("sinks", len(d.sinks)),
	)
}

func (d *Dispatcher) Publish(eventType Type, payload any) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: d.clock.Now(),
		Payload:    payload,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.TrackEvent(string(eventType), "dropped")
		d.log.Warn("Event published after shutdown", zap.String("event_type", string(eventType)))
		return
	}

	select {
	case d.queue <- ev:
		metrics.TrackEvent(string(eventType), "queued")
		metrics.SetEventQueueDepth(len(d.queue))
	default:
		metrics.TrackEvent(string(eventType), "dropped")
		d.log.Warn("Event queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("event_id", ev.ID),
		)
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.log.Warn("Event dispatcher shutdown timed out", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for ev := range d.queue {
		metrics.SetEventQueueDepth(len(d.queue))
		d.deliver(id, ev)
	}
}

func (d *Dispatcher) deliver(worker int, ev Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := d.safeDeliver(ctx, sink, ev)
		cancel()

		if err != nil {
			metrics.TrackEvent(string(ev.Type), "failed")
			d.log.Error("Failed to deliver event",
				zap.Error(err),
				zap.Int("worker", worker),
				zap.String("sink", sink.Name()),
				zap.String("event_type", string(ev.Type)),
				zap.String("event_id", ev.ID),
			)
			continue
		}
		metrics.TrackEvent(string(ev.Type), "delivered")
	}
}

func (d *Dispatcher) safeDeliver(ctx context.Context, sink Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Event sink panicked",
				zap.Any("panic", r),
				zap.String("sink", sink.Name()),
				zap.Stack("stack"),
			)
			err = errSinkPanic
		}
	}()
	return sink.Deliver(ctx, ev)
}
