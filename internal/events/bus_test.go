package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

func TestBusDeliversToTypedAndWildcardHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop(), 8)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	var typed, wildcard int
	bus.SubscribeFunc(ReservesReleased, func(context.Context, Event) error { typed++; return nil })
	sub := bus.SubscribeFunc(AnyEvent, func(context.Context, Event) error { wildcard++; return nil })

	ev := &ProgramEvent{BaseEvent: BaseEvent{EventType: ReservesReleased}}
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	require.NoError(t, bus.PublishSync(context.Background(), &ProgramEvent{BaseEvent: BaseEvent{EventType: TradeExecuted}}))
	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, wildcard)

	sub.Unsubscribe()
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	assert.Equal(t, 2, wildcard)
}

func TestBusHandlerErrorsAreJoined(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	boom := errors.New("boom")
	var ran bool
	bus.SubscribeFunc(TradeExecuted, func(context.Context, Event) error { return boom })
	bus.SubscribeFunc(AnyEvent, func(context.Context, Event) error { ran = true; return nil })

	err := bus.PublishSync(context.Background(), &ProgramEvent{BaseEvent: BaseEvent{EventType: TradeExecuted}})
	require.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestOnPayloadFiltersAndKeepsOrder(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	var calls []string
	bus.Subscribe(ReservesReleased, OnPayload(func(_ context.Context, _ *ProgramEvent, ev *pump.ReservesReleased) error {
		calls = append(calls, fmt.Sprintf("first:%d", ev.LamportsSent))
		return nil
	}))
	bus.Subscribe(ReservesReleased, OnPayload(func(_ context.Context, _ *ProgramEvent, ev *pump.Trade) error {
		calls = append(calls, "trade")
		return nil
	}))
	bus.Subscribe(ReservesReleased, OnPayload(func(_ context.Context, _ *ProgramEvent, ev *pump.ReservesReleased) error {
		calls = append(calls, fmt.Sprintf("second:%d", ev.TokensSent))
		return nil
	}))
	bus.Subscribe(AnyEvent, OnFailure(func(_ context.Context, ev *TransactionFailedEvent) error {
		calls = append(calls, "failure:"+ev.Error.Error())
		return nil
	}))

	ev := &ProgramEvent{
		BaseEvent: BaseEvent{EventType: ReservesReleased},
		Payload:   &pump.ReservesReleased{LamportsSent: 7, TokensSent: 9},
	}
	require.NoError(t, bus.PublishSync(context.Background(), ev))
	require.NoError(t, bus.PublishSync(context.Background(), &TransactionFailedEvent{
		BaseEvent: BaseEvent{EventType: TransactionFailed},
		Error:     errors.New("paused"),
	}))
	assert.Equal(t, []string{"first:7", "second:9", "failure:paused"}, calls)

	stats := bus.Stats()
	assert.Equal(t, 3, stats.HandlerCounts[ReservesReleased])
	assert.Equal(t, 1, stats.HandlerCounts[AnyEvent])
}

func TestBusAsyncDrainsOnShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)

	var mu sync.Mutex
	var got []uint64
	bus.SubscribeFunc(TradeExecuted, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(*ProgramEvent).Slot)
		return nil
	})
	for slot := uint64(1); slot <= 5; slot++ {
		require.NoError(t, bus.Publish(&ProgramEvent{BaseEvent: BaseEvent{EventType: TradeExecuted}, Slot: slot}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, got)
	assert.ErrorIs(t, bus.Publish(&ProgramEvent{BaseEvent: BaseEvent{EventType: TradeExecuted}}), ErrBusClosed)
}

func TestLedgerHookPublishesProgramEvents(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(context.Background()) }()

	var received []Event
	bus.SubscribeFunc(AnyEvent, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})

	l := ledger.New(zap.NewNop(), ledger.WithCommitHook(LedgerHook(bus, zap.NewNop())))
	prog := pump.New(pump.DefaultProgramID, zap.NewNop())
	l.RegisterProgram(prog.ID(), prog)

	admin, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	require.NoError(t, l.Airdrop(context.Background(), admin.PublicKey(), 10_000_000_000))

	cfg := &pump.Config{
		Authority:                   admin.PublicKey(),
		FeeRecipient:                admin.PublicKey(),
		CurveLimit:                  1,
		InitialVirtualTokenReserves: 1,
		InitialVirtualSolReserves:   1,
		TotalTokenSupply:            1,
	}
	ix, err := pump.NewConfigureInstruction(prog.ID(), admin.PublicKey(), cfg)
	require.NoError(t, err)
	sig := sendTx(t, l, admin, ix)

	require.Len(t, received, 1)
	pe, ok := received[0].(*ProgramEvent)
	require.True(t, ok)
	assert.Equal(t, ConfigUpdated, pe.Type())
	assert.Equal(t, sig, pe.Signature)
	assert.Equal(t, &pump.ConfigUpdated{Authority: admin.PublicKey()}, pe.Payload)

	t.Run("failed transaction", func(t *testing.T) {
		stranger, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		require.NoError(t, l.Airdrop(context.Background(), stranger.PublicKey(), 10_000_000_000))
		bad := *cfg
		bad.Authority = stranger.PublicKey()
		ix, err := pump.NewConfigureInstruction(prog.ID(), stranger.PublicKey(), &bad)
		require.NoError(t, err)
		sendTx(t, l, stranger, ix)

		require.Len(t, received, 2)
		failed, ok := received[1].(*TransactionFailedEvent)
		require.True(t, ok)
		assert.ErrorIs(t, failed.Error, pump.ErrNotAuthorized)
	})
}

func sendTx(t *testing.T, l *ledger.Ledger, payer solana.PrivateKey, ix solana.Instruction) solana.Signature {
	t.Helper()
	ctx := context.Background()
	hash, err := l.GetRecentBlockhash(ctx)
	require.NoError(t, err)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, hash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	require.NoError(t, err)
	sig, _ := l.SendTransaction(ctx, tx)
	return sig
}
