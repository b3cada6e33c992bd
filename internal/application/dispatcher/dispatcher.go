package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/sitequote/internal/domain/event"
)

// ErrClosed is returned when dispatching after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes side-effect events produced by the workflow engine to
// the adapters subscribed for their type
type Dispatcher interface {
	// SubscribeNamed registers a handler with a name used in logs
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Dispatch runs every handler for the event synchronously. All handlers
	// run even if one fails; the failures are joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs handlers in background goroutines. Failures are logged.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// HandlerCount reports how many handlers are registered for a type
	HandlerCount(eventType event.Type) int

	// Close stops accepting events and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	// mu guards handlers and closed. Async dispatch registers its
	// goroutines with wg while holding it, so Close cannot start
	// waiting between the closed check and wg.Add.
	mu       sync.RWMutex
	handlers map[event.Type][]subscription
	closed   bool
	logger   Logger

	wg sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]subscription),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	d.handlers[eventType] = append(d.handlers[eventType], subscription{name: name, handler: handler})
	d.mu.Unlock()

	d.info("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) HandlerCount(eventType event.Type) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType])
}

// snapshot copies the handlers for eventType; ok is false once closed.
// Caller must hold mu.
func (d *eventDispatcher) snapshot(eventType event.Type) (subs []subscription, ok bool) {
	if d.closed {
		return nil, false
	}
	subs = make([]subscription, len(d.handlers[eventType]))
	copy(subs, d.handlers[eventType])
	return subs, true
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	subs, ok := d.snapshot(evt.Type)
	d.mu.RUnlock()
	if !ok {
		return ErrClosed
	}

	d.info("Dispatching event",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"entity_id", evt.EntityID,
		"correlation_id", evt.CorrelationID,
		"handler_count", len(subs),
	)

	var errs []error
	for _, sub := range subs {
		if err := d.safeExecute(ctx, evt, sub); err != nil {
			d.error("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", sub.name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("handler %s failed: %w", sub.name, err))
		}
	}

	return errors.Join(errs...)
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	subs, ok := d.snapshot(evt.Type)
	if ok {
		d.wg.Add(len(subs))
	}
	d.mu.RUnlock()
	if !ok {
		d.error("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}

	d.info("Dispatching event asynchronously",
		"event_type", evt.Type,
		"event_id", evt.ID,
		"correlation_id", evt.CorrelationID,
		"handler_count", len(subs),
	)

	// The request context is usually cancelled before delivery finishes
	bg := context.WithoutCancel(ctx)
	for _, sub := range subs {
		go func(s subscription) {
			defer d.wg.Done()
			if err := d.safeExecute(bg, evt, s); err != nil {
				d.error("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", s.name,
					"error", err,
				)
			}
		}(sub)
	}
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.mu.Unlock()

	d.info("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.info("Dispatcher closed")

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.error("Handler panic recovered",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", sub.name,
				"panic", r,
			)
		}
	}()

	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) info(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) error(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
