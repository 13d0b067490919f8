package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/export"
	"github.com/rovshanmuradov/pump-curve/internal/program/amm"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
	"github.com/rovshanmuradov/pump-curve/internal/transaction"
	"github.com/rovshanmuradov/pump-curve/internal/utils/logger"
	"github.com/rovshanmuradov/pump-curve/internal/wallet"
)

var (
	ErrConfigMissing = errors.New("global config not found")
	ErrCurveMissing  = errors.New("bonding curve not found")
)

// GenesisOptions describes the wallets created on a fresh ledger.
type GenesisOptions struct {
	Users        []string
	AdminFunds   uint64
	UserFunds    uint64
	FeeRecipient uint64
}

// DefaultGenesis funds the admin with 1000 SOL and each user with 100 SOL.
func DefaultGenesis(users ...string) GenesisOptions {
	return GenesisOptions{
		Users:        users,
		AdminFunds:   1_000 * solana.LAMPORTS_PER_SOL,
		UserFunds:    100 * solana.LAMPORTS_PER_SOL,
		FeeRecipient: solana.LAMPORTS_PER_SOL,
	}
}

// Genesis creates the admin, fee recipient and user wallets on the current
// ledger, funds them and writes the global config.
func (r *Runner) Genesis(ctx context.Context, opts GenesisOptions) (*pump.Config, error) {
	log := logger.WithOperation(r.logger, "genesis")

	funds := map[string]uint64{AdminWallet: opts.AdminFunds, FeeRecipientWallet: opts.FeeRecipient}
	for _, name := range opts.Users {
		funds[name] = opts.UserFunds
	}
	names := make([]string, 0, len(funds))
	for name := range funds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := r.wallets.Get(name)
		if errors.Is(err, wallet.ErrWalletNotFound) {
			if w, err = wallet.Generate(name); err != nil {
				return nil, err
			}
			r.wallets.Add(w)
		}
		if funds[name] == 0 {
			continue
		}
		if err := r.ledger.Airdrop(ctx, w.PublicKey, funds[name]); err != nil {
			return nil, fmt.Errorf("fund %s: %w", name, err)
		}
		log.Debug("Wallet funded", zap.String("wallet", name), zap.String("address", w.PublicKey.String()))
	}

	admin, _ := r.wallets.Get(AdminWallet)
	fees, _ := r.wallets.Get(FeeRecipientWallet)
	cfg := r.cfg.OnChain(admin.PublicKey, fees.PublicKey)
	if _, err := r.submitConfig(ctx, admin, cfg); err != nil {
		return nil, err
	}
	log.Info("Genesis complete",
		zap.String("authority", admin.PublicKey.String()),
		zap.Int("wallets", len(r.wallets)))
	return cfg, nil
}

// GlobalConfig reads the program's settings record.
func (r *Runner) GlobalConfig(ctx context.Context) (*pump.Config, error) {
	key, _, err := pump.FindGlobalConfigAddress(r.programID)
	if err != nil {
		return nil, err
	}
	info, err := r.ledger.GetAccountInfo(ctx, key)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrConfigMissing
	}
	return pump.DecodeConfig(info.Data)
}

// Configure applies mutate to the current config and submits it as admin.
func (r *Runner) Configure(ctx context.Context, mutate func(*pump.Config) error) (*pump.Config, error) {
	cfg, err := r.GlobalConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := mutate(cfg); err != nil {
		return nil, err
	}
	admin, err := r.wallets.Get(AdminWallet)
	if err != nil {
		return nil, err
	}
	if _, err := r.submitConfig(ctx, admin, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Runner) submitConfig(ctx context.Context, admin *wallet.Wallet, cfg *pump.Config) (*transaction.Result, error) {
	ix, err := pump.NewConfigureInstruction(r.programID, admin.PublicKey, cfg)
	if err != nil {
		return nil, err
	}
	return r.submitter.Submit(ctx, pump.InstructionConfigure, admin, []solana.Instruction{ix})
}

// LaunchResult identifies a freshly launched mint.
type LaunchResult struct {
	Accounts  *pump.CurveAccounts
	Signature solana.Signature
}

// Launch creates a new mint and its bonding curve paid by the creator wallet.
func (r *Runner) Launch(ctx context.Context, creator string, args pump.LaunchArgs) (*LaunchResult, error) {
	w, err := r.wallets.Get(creator)
	if err != nil {
		return nil, err
	}
	mint, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	ix, err := pump.NewLaunchInstruction(r.programID, w.PublicKey, mint.PublicKey(), args)
	if err != nil {
		return nil, err
	}
	res, err := r.submitter.Submit(ctx, pump.InstructionLaunch, w, []solana.Instruction{ix}, mint)
	if err != nil {
		return nil, err
	}
	accounts, err := pump.DeriveCurveAccounts(r.programID, mint.PublicKey())
	if err != nil {
		return nil, err
	}
	logger.WithOperation(r.logger, "launch").Info("Token launched",
		zap.String("mint", mint.PublicKey().String()),
		zap.String("symbol", args.Symbol),
		zap.String("creator", creator))
	return &LaunchResult{Accounts: accounts, Signature: res.Signature}, nil
}

// SwapResult pairs the client quote with the committed trade.
type SwapResult struct {
	Quote        *transaction.Quote
	Signature    solana.Signature
	Trade        *pump.Trade
	TokenBalance uint64
}

// Swap quotes a trade against the current curve and submits it with the
// quote's minimum output.
func (r *Runner) Swap(ctx context.Context, user string, mint solana.PublicKey, amount uint64, dir pump.Direction, slippageBps uint32) (*SwapResult, error) {
	w, err := r.wallets.Get(user)
	if err != nil {
		return nil, err
	}
	cfg, err := r.GlobalConfig(ctx)
	if err != nil {
		return nil, err
	}
	state, err := r.CurveState(ctx, mint)
	if err != nil {
		return nil, err
	}
	quote, err := transaction.QuoteSwap(cfg, state.Curve, amount, dir, slippageBps)
	if err != nil {
		return nil, err
	}
	ix, err := pump.NewSwapInstruction(r.programID, w.PublicKey, cfg.FeeRecipient, mint, amount, dir, quote.MinOut)
	if err != nil {
		return nil, err
	}
	res, err := r.submitter.Submit(ctx, pump.InstructionSwap, w, []solana.Instruction{ix})
	if err != nil {
		return nil, err
	}

	out := &SwapResult{Quote: quote, Signature: res.Signature}
	parsed, err := pump.ParseEvents(res.Status.Logs)
	if err != nil {
		return nil, err
	}
	for _, ev := range parsed {
		if trade, ok := ev.(*pump.Trade); ok {
			out.Trade = trade
		}
	}
	ata, err := w.GetATA(mint)
	if err != nil {
		return nil, err
	}
	if out.TokenBalance, err = r.tokenBalance(ctx, ata); err != nil {
		return nil, err
	}
	return out, nil
}

// MigrationResult is a committed migration and the pool it seeded, if any.
type MigrationResult struct {
	Signature solana.Signature
	Adapter   solana.PublicKey
	Pool      *amm.PoolState
}

// Migrate moves a completed curve to the configured adapter, paid by the
// admin wallet.
func (r *Runner) Migrate(ctx context.Context, mint solana.PublicKey, nonce uint8) (*MigrationResult, error) {
	admin, err := r.wallets.Get(AdminWallet)
	if err != nil {
		return nil, err
	}
	adapter := r.AdapterProgram()

	var (
		remaining []*solana.AccountMeta
		pool      solana.PublicKey
	)
	if r.cfg.AdapterKind() != pump.AdapterNone {
		addrs, err := amm.DerivePoolAddresses(adapter, mint)
		if err != nil {
			return nil, err
		}
		remaining = addrs.Metas()
		pool = addrs.Pool
	}

	ix, err := pump.NewMigrateInstruction(r.programID, admin.PublicKey, mint, adapter, nonce, remaining...)
	if err != nil {
		return nil, err
	}
	res, err := r.submitter.Submit(ctx, pump.InstructionMigrate, admin, []solana.Instruction{ix})
	if err != nil {
		return nil, err
	}

	if accs, err := pump.DeriveCurveAccounts(r.programID, mint); err == nil {
		logger.WithMint(r.logger, mint, accs.BondingCurve).Info("Curve migrated",
			zap.String("adapter", adapter.String()),
			zap.String("signature", res.Signature.String()))
	}

	out := &MigrationResult{Signature: res.Signature, Adapter: adapter}
	if !pool.IsZero() {
		info, err := r.ledger.GetAccountInfo(ctx, pool)
		if err != nil {
			return nil, err
		}
		if info != nil {
			if out.Pool, err = amm.DecodePoolState(info.Data); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (r *Runner) sweeper(ctx context.Context, workers int) (*transaction.Sweeper, error) {
	admin, err := r.wallets.Get(AdminWallet)
	if err != nil {
		return nil, err
	}
	cfg, err := r.GlobalConfig(ctx)
	if err != nil {
		return nil, err
	}
	feeRecipient := cfg.FeeRecipient
	return transaction.NewSweeper(r.submitter, r.programID, admin, &feeRecipient, workers, r.logger), nil
}

// Release sweeps the reserves of one curve to recipient.
func (r *Runner) Release(ctx context.Context, mint, recipient solana.PublicKey) (*transaction.SweepResult, error) {
	s, err := r.sweeper(ctx, 1)
	if err != nil {
		return nil, err
	}
	results, err := s.Sweep(ctx, recipient, []solana.PublicKey{mint})
	if err != nil {
		return nil, err
	}
	return results[0], results[0].Err
}

// SweepReport is the outcome of a multi-mint release.
type SweepReport struct {
	Results    []*transaction.SweepResult
	Summary    export.ReleaseSummary
	ReportPath string
}

// Sweep releases every mint concurrently and exports a report. With no
// mints it sweeps every completed curve on the ledger.
func (r *Runner) Sweep(ctx context.Context, recipient solana.PublicKey, mints []solana.PublicKey, opts export.ExportOptions) (*SweepReport, error) {
	log := logger.WithOperation(r.logger, "sweep")
	if len(mints) == 0 {
		curves, err := r.Curves(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range curves {
			if c.IsCompleted {
				mints = append(mints, c.TokenMint)
			}
		}
	}

	s, err := r.sweeper(ctx, r.cfg.Workers)
	if err != nil {
		return nil, err
	}
	results, err := s.Sweep(ctx, recipient, mints)
	if err != nil {
		return nil, err
	}

	rows := make([]export.ReleaseRow, len(results))
	for i, res := range results {
		rows[i] = res.Row()
	}
	report := &SweepReport{Results: results, Summary: export.Summarize(rows)}

	if len(rows) == 0 {
		log.Info("Nothing to sweep")
		return report, nil
	}
	if opts.OutputDir == "" {
		opts.OutputDir = r.cfg.ExportDir
	}
	if opts.Format == "" {
		opts.Format = export.FormatCSV
	}
	if report.ReportPath, err = export.NewReleaseExporter(r.logger).ExportReleases(rows, opts); err != nil {
		return report, err
	}
	log.Info("Sweep reported",
		zap.Int("mints", len(mints)),
		zap.String("report", report.ReportPath))
	return report, nil
}

// CurveState is a read-only view of one curve and the accounts it owns.
type CurveState struct {
	Accounts     *pump.CurveAccounts
	Curve        *pump.BondingCurve
	Lamports     uint64
	RentMinimum  uint64
	TokenBalance uint64
	WSOLBalance  uint64
	Decimals     uint8
	Supply       uint64
	Price        sdkmath.LegacyDec
	Plan         pump.ReleasePlan
	Pool         *amm.PoolState
}

// CurveState reads a curve, its balances and what a release would move now.
func (r *Runner) CurveState(ctx context.Context, mint solana.PublicKey) (*CurveState, error) {
	accounts, err := pump.DeriveCurveAccounts(r.programID, mint)
	if err != nil {
		return nil, err
	}
	info, err := r.ledger.GetAccountInfo(ctx, accounts.BondingCurve)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrCurveMissing, mint)
	}
	curve, err := pump.DecodeBondingCurve(info.Data)
	if err != nil {
		return nil, err
	}

	state := &CurveState{
		Accounts:    accounts,
		Curve:       curve,
		Lamports:    info.Lamports,
		RentMinimum: r.ledger.Rent().MinimumBalance(len(info.Data)),
		Price:       transaction.SpotPrice(curve),
	}
	if state.TokenBalance, err = r.tokenBalance(ctx, accounts.TokenAccount); err != nil {
		return nil, err
	}
	if state.WSOLBalance, err = r.tokenBalance(ctx, accounts.WSOLAccount); err != nil {
		return nil, err
	}
	mintState, err := r.ledger.GetMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if mintState != nil {
		state.Decimals, state.Supply = mintState.Decimals, mintState.Supply
	}
	state.Plan = pump.PlanRelease(state.Lamports, state.RentMinimum, state.TokenBalance)

	if curve.MigrationCompleted {
		if adapter, ok := r.adapters[r.cfg.AdapterKind()]; ok {
			addrs, err := amm.DerivePoolAddresses(adapter, mint)
			if err != nil {
				return nil, err
			}
			if pool, err := r.ledger.GetAccountInfo(ctx, addrs.Pool); err == nil && pool != nil {
				state.Pool, _ = amm.DecodePoolState(pool.Data)
			}
		}
	}
	return state, nil
}

func (r *Runner) tokenBalance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acc, err := r.ledger.GetTokenAccount(ctx, key)
	if err != nil || acc == nil {
		return 0, err
	}
	return acc.Amount, nil
}

// HolderBalance returns owner's associated token account for mint and the
// amount it holds, zero when the account does not exist yet.
func (r *Runner) HolderBalance(ctx context.Context, mint, owner solana.PublicKey) (solana.PublicKey, uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	amount, err := r.tokenBalance(ctx, ata)
	return ata, amount, err
}

// Curves lists every bonding curve owned by the program, ordered by mint.
func (r *Runner) Curves(ctx context.Context) ([]*pump.BondingCurve, error) {
	var out []*pump.BondingCurve
	for _, key := range r.ledger.Accounts() {
		info, err := r.ledger.GetAccountInfo(ctx, key)
		if err != nil {
			return nil, err
		}
		if info == nil || !info.Owner.Equals(r.programID) || len(info.Data) != pump.BondingCurveAccountSize {
			continue
		}
		curve, err := pump.DecodeBondingCurve(info.Data)
		if err != nil {
			continue
		}
		out = append(out, curve)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TokenMint.String() < out[j].TokenMint.String()
	})
	return out, nil
}
