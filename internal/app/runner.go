// Package app wires the ledger, the pump program, its adapters and the
// client side into one process that a command runs operations against.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/config"
	"github.com/rovshanmuradov/pump-curve/internal/events"
	"github.com/rovshanmuradov/pump-curve/internal/program/amm"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
	"github.com/rovshanmuradov/pump-curve/internal/storage"
	"github.com/rovshanmuradov/pump-curve/internal/transaction"
	logutil "github.com/rovshanmuradov/pump-curve/internal/utils/logger"
	"github.com/rovshanmuradov/pump-curve/internal/utils/metrics"
	"github.com/rovshanmuradov/pump-curve/internal/wallet"
)

// Wallet names written by genesis.
const (
	AdminWallet        = "admin"
	FeeRecipientWallet = "fee_recipient"
)

const busBufferSize = 256

// ErrNotInitialized is returned by Load before genesis has been run.
var ErrNotInitialized = errors.New("ledger not initialized, run genesis first")

type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	programID solana.PublicKey
	adapters  map[pump.AdapterKind]solana.PublicKey

	ledger    *ledger.Ledger
	bus       *events.Bus
	journal   *storage.JSONLJournal
	snapshots storage.SnapshotStore
	metrics   *metrics.Collector
	submitter *transaction.Submitter
	wallets   wallet.Keyring
	shutdown  *ShutdownHandler
}

// NewRunner builds an empty ledger with the pump program and both adapter
// programs deployed. reg receives the runner's metrics.
func NewRunner(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Runner, error) {
	programID, err := cfg.ProgramKey()
	if err != nil {
		return nil, err
	}
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	r := &Runner{
		cfg:       cfg,
		logger:    logger.Named("runner"),
		programID: programID,
		adapters: map[pump.AdapterKind]solana.PublicKey{
			pump.AdapterRaydium: adapterKey(cfg.Migration.RaydiumProgram, amm.RaydiumProgramID),
			pump.AdapterMeteora: adapterKey(cfg.Migration.MeteoraProgram, amm.MeteoraProgramID),
		},
		bus:       events.NewBus(logger, busBufferSize),
		journal:   storage.NewJSONLJournal(cfg.JournalPath, logger),
		snapshots: storage.NewYAMLSnapshotStore(cfg.SnapshotPath, logger),
		metrics:   collector,
		wallets:   make(wallet.Keyring),
		shutdown:  NewShutdownHandler(logger),
	}

	r.ledger = ledger.New(logger,
		ledger.WithRent(cfg.Rent),
		ledger.WithCommitHook(events.LedgerHook(r.bus, logger)))

	pools, err := amm.NewPoolCreator(cfg.AdapterKind())
	if err != nil {
		return nil, err
	}
	opts := append(cfg.ProgramOptions(), pump.WithPoolCreator(pools))
	r.ledger.RegisterProgram(programID, pump.New(programID, logger, opts...))
	for kind, id := range r.adapters {
		r.ledger.RegisterProgram(id, amm.NewAdapter(kind, logger))
	}

	r.subscribe()
	r.submitter = transaction.NewSubmitter(r.ledger, logger,
		transaction.WithRecorder(collector),
		transaction.WithMaxTries(uint(cfg.Retries)+1),
		transaction.WithRateLimit(cfg.SubmitRate, cfg.SubmitBurst))

	r.shutdown.Add("logger", func(context.Context) error {
		return logutil.Sync(logger)
	})
	r.shutdown.Add("event_bus", func(ctx context.Context) error {
		stats := r.bus.Stats()
		r.logger.Debug("Draining event bus",
			zap.Int("pending", stats.Pending),
			zap.Int("event_types", len(stats.HandlerCounts)))
		return r.bus.Shutdown(ctx)
	})

	r.logger.Debug("Runner initialized",
		zap.String("program_id", programID.String()),
		zap.String("adapter", string(cfg.AdapterKind())),
		zap.String("scope", cfg.Migration.Scope))
	return r, nil
}

func adapterKey(configured string, fallback solana.PublicKey) solana.PublicKey {
	if key, err := solana.PublicKeyFromBase58(configured); err == nil {
		return key
	}
	return fallback
}

// subscribe attaches the journal and the metrics to the event bus.
func (r *Runner) subscribe() {
	r.bus.Subscribe(events.AnyEvent, r.journal.Handler())

	r.bus.Subscribe(events.ReservesReleased, events.OnPayload(
		func(_ context.Context, _ *events.ProgramEvent, ev *pump.ReservesReleased) error {
			r.metrics.RecordRelease(ev.LamportsSent, ev.TokensSent)
			return nil
		}))
	r.bus.Subscribe(events.MigrationCompleted, events.OnPayload(
		func(_ context.Context, _ *events.ProgramEvent, _ *pump.MigrationCompleted) error {
			r.metrics.RecordMigration(string(r.cfg.AdapterKind()))
			return nil
		}))
	r.bus.Subscribe(events.TransactionFailed, events.OnFailure(
		func(_ context.Context, ev *events.TransactionFailedEvent) error {
			r.logger.Debug("Transaction failed on ledger",
				zap.String("signature", ev.Signature.String()),
				zap.Error(ev.Error))
			return nil
		}))
}

// Load restores the persisted ledger and wallets.
func (r *Runner) Load(ctx context.Context) error {
	snap, err := r.snapshots.Load(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	r.ledger.Restore(snap)

	wallets, err := wallet.LoadWallets(r.cfg.WalletsPath)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}
	r.wallets = wallets
	r.logger.Debug("State loaded",
		zap.Uint64("slot", snap.Slot),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("wallets", len(wallets)))
	return nil
}

// Save persists the ledger and wallets.
func (r *Runner) Save(ctx context.Context) error {
	if err := r.snapshots.Save(ctx, r.ledger.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := wallet.SaveWallets(r.cfg.WalletsPath, r.wallets); err != nil {
		return fmt.Errorf("save wallets: %w", err)
	}
	return nil
}

// Close drains the event bus and flushes the logger.
func (r *Runner) Close(ctx context.Context) error {
	return r.shutdown.Shutdown(ctx)
}

func (r *Runner) Ledger() *ledger.Ledger      { return r.ledger }
func (r *Runner) Bus() *events.Bus            { return r.bus }
func (r *Runner) Journal() storage.Journal    { return r.journal }
func (r *Runner) Metrics() *metrics.Collector { return r.metrics }
func (r *Runner) ProgramID() solana.PublicKey { return r.programID }
func (r *Runner) Wallets() wallet.Keyring     { return r.wallets }
func (r *Runner) Config() *config.Config      { return r.cfg }

// Wallet returns a named wallet.
func (r *Runner) Wallet(name string) (*wallet.Wallet, error) {
	return r.wallets.Get(name)
}

// AdapterProgram returns the program id migrations call for the configured
// adapter. Deployments without an adapter pass the system program.
func (r *Runner) AdapterProgram() solana.PublicKey {
	if id, ok := r.adapters[r.cfg.AdapterKind()]; ok {
		return id
	}
	return solana.SystemProgramID
}
