package pump

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// Event is a program event emitted as an Anchor "Program data:" log line.
type Event interface {
	EventName() string
}

// Event names.
const (
	EventConfigUpdated      = "ConfigUpdated"
	EventTokenLaunched      = "TokenLaunched"
	EventTrade              = "Trade"
	EventCurveCompleted     = "CurveCompleted"
	EventMigrationCompleted = "MigrationCompleted"
	EventMigratedToRaydium  = "MigratedToRaydium"
	EventReservesReleased   = "ReservesReleased"
)

// ConfigUpdated is emitted by every successful configure.
type ConfigUpdated struct {
	Authority solana.PublicKey `json:"authority"`
}

// TokenLaunched is emitted when a creator launches a mint.
type TokenLaunched struct {
	Mint    solana.PublicKey `json:"mint"`
	Creator solana.PublicKey `json:"creator"`
	Name    string           `json:"name"`
	Symbol  string           `json:"symbol"`
	URI     string           `json:"uri"`
}

// Trade is emitted by every swap. Reserves are the values after the trade.
type Trade struct {
	Mint                 solana.PublicKey `json:"mint"`
	User                 solana.PublicKey `json:"user"`
	Direction            uint8            `json:"direction"`
	AmountIn             uint64           `json:"amount_in"`
	AmountOut            uint64           `json:"amount_out"`
	Fee                  uint64           `json:"fee"`
	VirtualSolReserves   uint64           `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64           `json:"virtual_token_reserves"`
	RealSolReserves      uint64           `json:"real_sol_reserves"`
	RealTokenReserves    uint64           `json:"real_token_reserves"`
}

// CurveCompleted is emitted by the swap that pushes a curve over its limit.
type CurveCompleted struct {
	Mint            solana.PublicKey `json:"mint"`
	RealSolReserves uint64           `json:"real_sol_reserves"`
}

// MigrationCompleted is emitted once per migrated curve.
type MigrationCompleted struct {
	Mint           solana.PublicKey `json:"mint"`
	AdapterProgram solana.PublicKey `json:"adapter_program"`
}

// MigratedToRaydium describes the pool seeded by the Raydium adapter.
type MigratedToRaydium struct {
	Pool        solana.PublicKey `json:"pool"`
	LpMint      solana.PublicKey `json:"lp_mint"`
	AmountToken uint64           `json:"amount_token"`
	AmountWsol  uint64           `json:"amount_wsol"`
}

// ReservesReleased is emitted by every release, including empty ones.
type ReservesReleased struct {
	Mint         solana.PublicKey `json:"mint"`
	Recipient    solana.PublicKey `json:"recipient"`
	LamportsSent uint64           `json:"lamports_sent"`
	TokensSent   uint64           `json:"tokens_sent"`
}

func (ConfigUpdated) EventName() string      { return EventConfigUpdated }
func (TokenLaunched) EventName() string      { return EventTokenLaunched }
func (Trade) EventName() string              { return EventTrade }
func (CurveCompleted) EventName() string     { return EventCurveCompleted }
func (MigrationCompleted) EventName() string { return EventMigrationCompleted }
func (MigratedToRaydium) EventName() string  { return EventMigratedToRaydium }
func (ReservesReleased) EventName() string   { return EventReservesReleased }

var eventFactories = map[Discriminator]func() Event{
	EventDiscriminator(EventConfigUpdated):      func() Event { return new(ConfigUpdated) },
	EventDiscriminator(EventTokenLaunched):      func() Event { return new(TokenLaunched) },
	EventDiscriminator(EventTrade):              func() Event { return new(Trade) },
	EventDiscriminator(EventCurveCompleted):     func() Event { return new(CurveCompleted) },
	EventDiscriminator(EventMigrationCompleted): func() Event { return new(MigrationCompleted) },
	EventDiscriminator(EventMigratedToRaydium):  func() Event { return new(MigratedToRaydium) },
	EventDiscriminator(EventReservesReleased):   func() Event { return new(ReservesReleased) },
}

// NewEvent returns a zero event for a name, or nil if the name is unknown.
func NewEvent(name string) Event {
	factory, ok := eventFactories[EventDiscriminator(name)]
	if !ok {
		return nil
	}
	return factory()
}

// EncodeEvent serializes ev with its event discriminator.
func EncodeEvent(ev Event) ([]byte, error) {
	d := EventDiscriminator(ev.EventName())
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return buf.Bytes(), nil
}

// DecodeEvent parses one event payload. Unknown discriminators return nil
// without an error so foreign program data can be skipped.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < len(Discriminator{}) {
		return nil, nil
	}
	var d Discriminator
	copy(d[:], data)
	factory, ok := eventFactories[d]
	if !ok {
		return nil, nil
	}
	ev := factory()
	if err := bin.NewBorshDecoder(data[len(d):]).Decode(ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.EventName(), err)
	}
	return ev, nil
}

// ParseEvents extracts the program events from transaction logs, in order.
// The returned values are pointers to the event structs.
func ParseEvents(logs []string) ([]Event, error) {
	chunks, err := ledger.ProgramData(logs)
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, chunk := range chunks {
		ev, err := DecodeEvent(chunk)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

func emit(ctx *ledger.InvokeContext, ev Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	ctx.LogData(data)
	return nil
}
