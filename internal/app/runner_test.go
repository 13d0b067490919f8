package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/config"
	"github.com/rovshanmuradov/pump-curve/internal/export"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

const testSOL = solana.LAMPORTS_PER_SOL

func testConfig(t *testing.T, mutate ...func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.SnapshotPath = filepath.Join(dir, "ledger.yaml")
	cfg.JournalPath = filepath.Join(dir, "events.jsonl")
	cfg.WalletsPath = filepath.Join(dir, "wallets.yaml")
	cfg.ExportDir = filepath.Join(dir, "reports")
	cfg.Curve.CurveLimit = 2 * testSOL
	cfg.Workers = 3
	for _, m := range mutate {
		m(cfg)
	}
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config) (*Runner, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := NewRunner(cfg, zap.NewNop(), reg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, r.Close(ctx))
	})
	return r, reg
}

func launch(t *testing.T, r *Runner, creator, symbol string) solana.PublicKey {
	t.Helper()
	res, err := r.Launch(context.Background(), creator, pump.LaunchArgs{Name: symbol + " coin", Symbol: symbol, URI: "https://example.org/" + symbol})
	require.NoError(t, err)
	return res.Accounts.Mint
}

func TestLoadBeforeGenesis(t *testing.T) {
	r, _ := newTestRunner(t, testConfig(t))
	assert.ErrorIs(t, r.Load(context.Background()), ErrNotInitialized)
}

func TestGenesisPersistsAcrossRunners(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	first, _ := newTestRunner(t, cfg)

	onChain, err := first.Genesis(ctx, DefaultGenesis("alice"))
	require.NoError(t, err)
	mint := launch(t, first, "alice", "ONE")
	require.NoError(t, first.Save(ctx))

	second, _ := newTestRunner(t, cfg)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, []string{AdminWallet, "alice", FeeRecipientWallet}, second.Wallets().Names())

	stored, err := second.GlobalConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, onChain, stored)

	admin, err := second.Wallet(AdminWallet)
	require.NoError(t, err)
	assert.Equal(t, admin.PublicKey, stored.Authority)

	state, err := second.CurveState(ctx, mint)
	require.NoError(t, err)
	assert.False(t, state.Curve.IsCompleted)
	assert.Equal(t, cfg.Curve.TotalTokenSupply, state.TokenBalance)
	assert.Equal(t, cfg.Curve.TotalTokenSupply, state.Supply)
	assert.Equal(t, uint8(pump.TokenDecimals), state.Decimals)

	alice, err := second.Wallet("alice")
	require.NoError(t, err)
	ata, held, err := second.HolderBalance(ctx, mint, alice.PublicKey)
	require.NoError(t, err)
	assert.Zero(t, held)
	wantATA, err := alice.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, wantATA, ata)

	info, err := os.Stat(cfg.WalletsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigurePauseBlocksLaunch(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t, testConfig(t))
	_, err := r.Genesis(ctx, DefaultGenesis("alice"))
	require.NoError(t, err)

	_, err = r.Configure(ctx, func(c *pump.Config) error {
		c.Paused = true
		return nil
	})
	require.NoError(t, err)

	_, err = r.Launch(ctx, "alice", pump.LaunchArgs{Name: "Paused", Symbol: "P"})
	require.ErrorIs(t, err, pump.ErrProgramPaused)

	cfg, err := r.Configure(ctx, func(c *pump.Config) error {
		c.Paused = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, cfg.Paused)
	launch(t, r, "alice", "P")
}

func TestRaydiumLifecycle(t *testing.T) {
	ctx := context.Background()
	r, reg := newTestRunner(t, testConfig(t))
	_, err := r.Genesis(ctx, DefaultGenesis("alice", "bob"))
	require.NoError(t, err)
	mint := launch(t, r, "alice", "RAY")

	swap, err := r.Swap(ctx, "bob", mint, 3*testSOL, pump.DirectionBuy, 100)
	require.NoError(t, err)
	require.NotNil(t, swap.Trade)
	assert.Equal(t, swap.Quote.AmountOut, swap.Trade.AmountOut)
	assert.GreaterOrEqual(t, swap.Trade.AmountOut, swap.Quote.MinOut)
	assert.Equal(t, swap.Trade.AmountOut, swap.TokenBalance)

	before, err := r.CurveState(ctx, mint)
	require.NoError(t, err)
	require.True(t, before.Curve.IsCompleted)
	assert.Equal(t, before.Lamports-before.RentMinimum, before.Plan.LamportsSent)

	t.Run("sell after completion", func(t *testing.T) {
		_, err := r.Swap(ctx, "bob", mint, 1_000, pump.DirectionSell, 0)
		assert.ErrorIs(t, err, pump.ErrCurveAlreadyCompleted)
	})

	migrated, err := r.Migrate(ctx, mint, 1)
	require.NoError(t, err)
	require.NotNil(t, migrated.Pool)
	assert.Equal(t, r.AdapterProgram(), migrated.Adapter)
	assert.Equal(t, before.Lamports-before.RentMinimum, migrated.Pool.AmountWsol)
	assert.Equal(t, before.TokenBalance, migrated.Pool.AmountToken)

	after, err := r.CurveState(ctx, mint)
	require.NoError(t, err)
	assert.True(t, after.Curve.MigrationCompleted)
	assert.Equal(t, after.RentMinimum, after.Lamports)
	assert.NotNil(t, after.Pool)

	_, err = r.Migrate(ctx, mint, 2)
	assert.Error(t, err)

	recipient := solana.NewWallet().PublicKey()
	released, err := r.Release(ctx, mint, recipient)
	require.NoError(t, err)
	assert.Zero(t, released.LamportsSent)
	assert.Zero(t, released.TokensSent)

	records, err := r.Journal().Records(ctx)
	require.NoError(t, err)
	seen := make(map[string]int)
	for _, rec := range records {
		seen[rec.Event]++
	}
	assert.Equal(t, 1, seen[pump.EventTokenLaunched])
	assert.Equal(t, 1, seen[pump.EventCurveCompleted])
	assert.Equal(t, 1, seen[pump.EventMigratedToRaydium])
	assert.Equal(t, 1, seen[pump.EventMigrationCompleted])
	assert.Equal(t, 1, seen[pump.EventReservesReleased])

	n, err := testutil.GatherAndCount(reg, "pump_curve_migrations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepCompletedCurves(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t, testConfig(t, func(c *config.Config) {
		c.Migration.Adapter = string(pump.AdapterNone)
	}))
	_, err := r.Genesis(ctx, DefaultGenesis("alice", "bob"))
	require.NoError(t, err)

	var completed []solana.PublicKey
	for _, symbol := range []string{"A", "B", "C"} {
		mint := launch(t, r, "alice", symbol)
		if symbol == "C" {
			continue
		}
		_, err := r.Swap(ctx, "bob", mint, 3*testSOL, pump.DirectionBuy, 50)
		require.NoError(t, err)
		completed = append(completed, mint)
	}

	expected := make(map[solana.PublicKey]pump.ReleasePlan)
	for _, mint := range completed {
		state, err := r.CurveState(ctx, mint)
		require.NoError(t, err)
		expected[mint] = state.Plan
	}

	recipient := solana.NewWallet().PublicKey()
	report, err := r.Sweep(ctx, recipient, nil, export.ExportOptions{Format: export.FormatJSON})
	require.NoError(t, err)
	require.Len(t, report.Results, len(completed))
	assert.Equal(t, len(completed), report.Summary.Succeeded)
	assert.FileExists(t, report.ReportPath)
	assert.Equal(t, r.Config().ExportDir, filepath.Dir(report.ReportPath))

	// закрытый токен-аккаунт кривой возвращает ренту получателю
	ataRent := r.Ledger().Rent().MinimumBalance(ledger.TokenAccountSize)
	var total, received uint64
	for _, res := range report.Results {
		require.NoError(t, res.Err)
		plan := expected[res.Mint]
		assert.Equal(t, plan.LamportsSent, res.LamportsSent, res.Mint.String())
		assert.Equal(t, plan.TokensSent, res.TokensSent, res.Mint.String())
		total += res.LamportsSent
		received += res.LamportsSent + ataRent
	}
	balance, err := r.Ledger().GetBalance(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, received, balance)
	assert.Equal(t, total, report.Summary.TotalLamports)

	curves, err := r.Curves(ctx)
	require.NoError(t, err)
	assert.Len(t, curves, 3)
}
