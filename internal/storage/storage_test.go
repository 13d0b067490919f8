package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/events"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

func TestSnapshotRoundTripThroughLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "ledger.yaml")
	store := NewYAMLSnapshotStore(path, zap.NewNop())

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	l := ledger.New(zap.NewNop())
	wallet := solana.NewWallet().PublicKey()
	require.NoError(t, l.Airdrop(ctx, wallet, 5_000_000))
	owned := solana.NewWallet().PublicKey()
	l.SetAccount(owned, &ledger.Account{Lamports: 1_000_000, Owner: pump.DefaultProgramID, Data: []byte{1, 2, 3}})

	require.NoError(t, store.Save(ctx, l.Snapshot()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), wallet.String())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)

	restored := ledger.New(zap.NewNop())
	restored.Restore(loaded)
	assert.Equal(t, l.Slot(), restored.Slot())

	balance, err := restored.GetBalance(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), balance)

	info, err := restored.GetAccountInfo(ctx, owned)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, pump.DefaultProgramID, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
}

func TestSnapshotRejectsBadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slot: 3\naccounts:\n  - pubkey: nope\n    lamports: 1\n    owner: nope\n"), 0o644))

	_, err := NewYAMLSnapshotStore(path, zap.NewNop()).Load(context.Background())
	assert.Error(t, err)
}

func TestJournalHandlerAppendsEvents(t *testing.T) {
	ctx := context.Background()
	journal := NewJSONLJournal(filepath.Join(t.TempDir(), "events.jsonl"), zap.NewNop())

	records, err := journal.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	bus := events.NewBus(zap.NewNop(), 1)
	defer func() { _ = bus.Shutdown(ctx) }()
	bus.Subscribe(events.AnyEvent, journal.Handler())

	mint := solana.NewWallet().PublicKey()
	released := &pump.ReservesReleased{Mint: mint, Recipient: mint, LamportsSent: 4_109_120, TokensSent: 1000}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, bus.PublishSync(ctx, &events.ProgramEvent{
		BaseEvent: events.BaseEvent{EventType: events.ReservesReleased, EventTime: now},
		Slot:      7,
		Payload:   released,
	}))
	require.NoError(t, bus.PublishSync(ctx, &events.TransactionFailedEvent{
		BaseEvent: events.BaseEvent{EventType: events.TransactionFailed, EventTime: now},
		Slot:      8,
		Error:     pump.ErrProgramPaused,
	}))

	records, err = journal.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, string(events.ReservesReleased), records[0].Type)
	assert.Equal(t, uint64(7), records[0].Slot)
	assert.True(t, now.Equal(records[0].Time))
	ev, err := records[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, released, ev)

	assert.Equal(t, string(events.TransactionFailed), records[1].Type)
	assert.Contains(t, records[1].Error, "ProgramPaused")
	ev, err = records[1].Decode()
	require.NoError(t, err)
	assert.Nil(t, ev)
}
