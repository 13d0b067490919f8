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

type entry struct {
	id      string
	handler Handler
}

// Bus fans ledger events out to indexers: the journal, metrics, CLI
// listeners. Handlers of one type run in subscription order.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[EventType][]entry
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	eventChan  chan Event
	bufferSize int
}

// NewBus starts a bus whose async queue holds bufferSize events.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:   make(map[EventType][]entry),
		logger:     logger.Named("event_bus"),
		ctx:        ctx,
		cancel:     cancel,
		eventChan:  make(chan Event, bufferSize),
		bufferSize: bufferSize,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for a specific event type, or for every
// type with AnyEvent.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[eventType] = append(b.handlers[eventType], entry{id: id, handler: handler})

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{bus: b, typ: eventType, id: id}
}

// SubscribeFunc subscribes a plain function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues an event for asynchronous delivery.
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

// handlersFor returns the handlers of an event type followed by the
// wildcard handlers.
func (b *Bus) handlersFor(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Handler, 0, len(b.handlers[eventType])+len(b.handlers[AnyEvent]))
	for _, typ := range []EventType{eventType, AnyEvent} {
		for _, e := range b.handlers[typ] {
			out = append(out, e.handler)
		}
	}
	return out
}

// PublishSync delivers an event to all handlers on the calling goroutine.
// Every handler runs even when an earlier one fails.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	handlers := b.handlersFor(event.Type())
	if len(handlers) == 0 {
		return nil
	}

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

// processEvents delivers queued events in order.
func (b *Bus) processEvents() {
	defer b.wg.Done()

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
			if err := b.PublishSync(b.ctx, event); err != nil {
				b.logger.Error("Failed to process event",
					zap.String("event_type", string(event.Type())),
					zap.Error(err))
			}
		}
	}
}

func (b *Bus) unsubscribe(eventType EventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := b.handlers[eventType]
	for i, e := range group {
		if e.id == id {
			group = append(group[:i:i], group[i+1:]...)
			break
		}
	}
	if len(group) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = group
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops the bus after the queued events are delivered.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Debug("Shutting down event bus")
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// BusStats is a point-in-time view of the bus.
type BusStats struct {
	BufferSize    int
	Pending       int
	HandlerCounts map[EventType]int
}

// Stats reports queue depth and handler counts per event type.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[EventType]int, len(b.handlers))
	for typ, group := range b.handlers {
		counts[typ] = len(group)
	}
	return BusStats{BufferSize: b.bufferSize, Pending: len(b.eventChan), HandlerCounts: counts}
}
