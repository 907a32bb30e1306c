// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is shutting down")
	ErrBusFull   = errors.New("event channel full")
)

// Bus is an in-memory event bus. Asynchronous events are dispatched by a
// single goroutine in publish order.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[EventType]map[string]Handler
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	eventChan chan Event
}

// NewBus creates a bus with a queue of bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:  make(map[EventType]map[string]Handler),
		logger:    logger.Named("event_bus"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		eventChan: make(chan Event, bufferSize),
	}
	go bus.dispatch()
	return bus
}

// Subscribe registers a handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event without blocking. A full queue drops the event.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	default:
	}

	select {
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync runs every handler of the event on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.eventChan:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			_ = b.PublishSync(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Shutdown stops accepting events, drains the queue and waits for the
// dispatcher or ctx, whichever comes first.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()
	select {
	case <-b.done:
		b.logger.Debug("Event bus shutdown complete")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}
