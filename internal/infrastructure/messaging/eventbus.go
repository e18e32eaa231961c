// Package messaging implements the in-process event bus that carries domain
// events from command handlers and scheduler jobs to subscribers (cache
// invalidation, audit logging). The worker runs as a single process, so an
// in-memory bus is sufficient; the EventPublisher port keeps a broker-backed
// implementation possible without touching the domain.
package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is an in-memory implementation of shared.EventPublisher with typed
// subscriptions. Publish never blocks on handlers: handlers run on a bounded
// worker pool and their errors are logged, not propagated, so a slow or
// broken subscriber cannot fail a command.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]namedHandler
	allHandlers []namedHandler
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *Metrics
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

type namedHandler struct {
	name    string
	handler shared.EventHandler
}

// EventBusConfig contains configuration for EventBus.
type EventBusConfig struct {
	// WorkerPoolSize bounds concurrent handler executions.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultEventBusConfig returns sensible defaults.
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		WorkerPoolSize: 10,
	}
}

// NewEventBus creates a new in-memory event bus.
func NewEventBus(config EventBusConfig) *EventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DefaultEventBusConfig().WorkerPoolSize
	}

	return &EventBus{
		handlers:   make(map[shared.EventType][]namedHandler),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		logger:     config.Logger,
		metrics:    NewMetrics(),
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a named handler for a specific event type.
func (b *EventBus) Subscribe(eventType shared.EventType, name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], namedHandler{name: name, handler: handler})
	b.logger.Debug("subscribed handler", "event_type", eventType, "handler", name)

	return nil
}

// SubscribeAll registers a handler for every event type.
func (b *EventBus) SubscribeAll(name string, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, namedHandler{name: name, handler: handler})
	b.logger.Debug("subscribed global handler", "handler", name)

	return nil
}

// Publish delivers an event to all subscribed handlers asynchronously.
func (b *EventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	handlers := make([]namedHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())

	for _, h := range handlers {
		b.execute(event, h)
	}

	return nil
}

// execute runs one handler on the worker pool.
func (b *EventBus) execute(event shared.Event, h namedHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("handler panic recovered",
					"event_type", event.EventType(),
					"handler", h.name,
					"panic", r,
				)
				b.metrics.RecordExecution(event.EventType(), false)
			}
		}()

		start := time.Now()
		err := h.handler(event)
		b.metrics.RecordExecution(event.EventType(), err == nil)

		if err != nil {
			b.logger.Error("handler failed",
				"event_type", event.EventType(),
				"handler", h.name,
				"duration", time.Since(start),
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight handlers and shuts the bus down.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus metrics.
func (b *EventBus) Metrics() *Metrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks event bus activity.
type Metrics struct {
	mu sync.RWMutex

	PublishedTotal   map[shared.EventType]int64
	HandlerSuccesses int64
	HandlerFailures  int64
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		PublishedTotal: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordExecution records one handler execution.
func (m *Metrics) RecordExecution(_ shared.EventType, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}

	return MetricsSnapshot{
		TotalPublished:   published,
		HandlerSuccesses: m.HandlerSuccesses,
		HandlerFailures:  m.HandlerFailures,
	}
}

// MetricsSnapshot is a point-in-time snapshot of bus metrics.
type MetricsSnapshot struct {
	TotalPublished   int64
	HandlerSuccesses int64
	HandlerFailures  int64
}
