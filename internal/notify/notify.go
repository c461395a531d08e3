// Package notify delivers repair-shop events (job completed, low stock, ...) to
// email, in-app, pub/sub and webhook sinks. Delivery is fire-and-forget: sink
// failures are logged and never reach the operation that raised the event.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types
const (
	EventJobCreated       = "job.created"
	EventJobStatusChanged = "job.status_changed"
	EventJobCompleted     = "job.completed"
	EventJobAssigned      = "job.assigned"
	EventJobOverdue       = "job.overdue"
	EventLowStock         = "part.low_stock"
)

// Event is a single notification-worthy occurrence.
type Event struct {
	Type          string                 `json:"type"`
	JobID         string                 `json:"job_id,omitempty"`
	JobNumber     string                 `json:"job_number,omitempty"`
	CustomerID    string                 `json:"customer_id,omitempty"`
	CustomerEmail string                 `json:"customer_email,omitempty"`
	UserIDs       []string               `json:"user_ids,omitempty"`
	PartID        string                 `json:"part_id,omitempty"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Notifier is what services depend on.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Dispatcher fans events out to sinks from a background worker.
type Dispatcher struct {
	logger  *zap.Logger
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher; call Start before Notify.
func NewDispatcher(logger *zap.Logger, bufferSize int, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		logger:  logger,
		sinks:   sinks,
		timeout: 10 * time.Second,
		queue:   make(chan Event, bufferSize),
	}
}

// AddSink registers a sink; must be called before Start.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.queue {
			d.Deliver(context.Background(), ev)
		}
	}()
}

// Notify enqueues ev without blocking; events are dropped when the buffer is full.
func (d *Dispatcher) Notify(_ context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("Notification dropped after shutdown", zap.String("type", ev.Type))
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("Notification queue full, dropping event",
			zap.String("type", ev.Type),
			zap.String("job_id", ev.JobID),
			zap.String("part_id", ev.PartID),
		)
	}
}

// Deliver sends ev to every sink synchronously, logging failures.
func (d *Dispatcher) Deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.Send(sctx, ev)
		cancel()
		if err != nil {
			d.logger.Error("Notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("type", ev.Type),
				zap.String("job_id", ev.JobID),
				zap.String("part_id", ev.PartID),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events and waits for the queue to drain.
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
		return ctx.Err()
	}
}
