// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// EventType represents the type of event.
type EventType string

const (
	// AnyEvent subscribes a handler to every event type.
	AnyEvent EventType = "*"

	// Program events, one per emitted on-chain event.
	ConfigUpdated      EventType = "config.updated"
	TokenLaunched      EventType = "token.launched"
	TradeExecuted      EventType = "curve.trade"
	CurveCompleted     EventType = "curve.completed"
	MigrationCompleted EventType = "curve.migrated"
	PoolCreated        EventType = "pool.created"
	ReservesReleased   EventType = "reserves.released"

	// TransactionFailed is published for committed transactions whose
	// instructions failed.
	TransactionFailed EventType = "transaction.failed"
)

var programEventTypes = map[string]EventType{
	pump.EventConfigUpdated:      ConfigUpdated,
	pump.EventTokenLaunched:      TokenLaunched,
	pump.EventTrade:              TradeExecuted,
	pump.EventCurveCompleted:     CurveCompleted,
	pump.EventMigrationCompleted: MigrationCompleted,
	pump.EventMigratedToRaydium:  PoolCreated,
	pump.EventReservesReleased:   ReservesReleased,
}

// TypeOf maps a program event name to its bus type.
func TypeOf(name string) (EventType, bool) {
	t, ok := programEventTypes[name]
	return t, ok
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ProgramEvent carries one decoded program event and the transaction that
// emitted it.
type ProgramEvent struct {
	BaseEvent
	Signature solana.Signature
	Slot      uint64
	Payload   pump.Event
}

// TransactionFailedEvent is emitted when a committed transaction failed.
type TransactionFailedEvent struct {
	BaseEvent
	Signature solana.Signature
	Slot      uint64
	Error     error
}
