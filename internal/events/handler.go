// internal/events/handler.go
package events

import (
	"context"

	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// Handler consumes bus events. PublishSync runs handlers inside the ledger
// commit hook, so a handler must not submit transactions itself.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	bus *Bus
	typ EventType
	id  string
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.typ, s.id)
}

// OnPayload calls fn for program events whose decoded payload is a T.
// Any other event is ignored.
func OnPayload[T pump.Event](fn func(ctx context.Context, ev *ProgramEvent, payload T) error) Handler {
	return HandlerFunc(func(ctx context.Context, e Event) error {
		pe, ok := e.(*ProgramEvent)
		if !ok {
			return nil
		}
		payload, ok := pe.Payload.(T)
		if !ok {
			return nil
		}
		return fn(ctx, pe, payload)
	})
}

// OnFailure calls fn for failed transactions only.
func OnFailure(fn func(ctx context.Context, ev *TransactionFailedEvent) error) Handler {
	return HandlerFunc(func(ctx context.Context, e Event) error {
		if ev, ok := e.(*TransactionFailedEvent); ok {
			return fn(ctx, ev)
		}
		return nil
	})
}
