package pump

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

const migrateFixedAccounts = 11

// Accounts: payer (signer, writable), global_config (writable), token_mint,
// bonding_curve (writable), curve_token_account (writable),
// curve_wsol_account (writable), wsol_mint, adapter_program, token_program,
// associated_token_program, system_program, then the adapter's accounts.
func (p *Program) migrate(ctx *ledger.InvokeContext, data []byte) error {
	keys, err := accountKeys(ctx, migrateFixedAccounts)
	if err != nil {
		return err
	}
	payer, configKey, mint, curveKey, curveATA, curveWSOL, wsolMint, adapter :=
		keys[0], keys[1], keys[2], keys[3], keys[4], keys[5], keys[6], keys[7]
	if len(data) < 1 {
		return withDetail(ErrInvalidArgument, "missing nonce")
	}
	nonce := data[0]

	cfg, err := p.loadConfig(ctx, configKey)
	if err != nil {
		return err
	}
	curve, err := p.loadCurve(ctx, curveKey, mint)
	if err != nil {
		return err
	}
	if err := Check(
		func() error { return EnsureNotPaused(cfg) },
		func() error { return EnsureNotCompleted(cfg) },
		func() error { return EnsureAdmin(cfg, payer) },
		func() error { return requireSigner(ctx, payer, "payer") },
		func() error { return EnsureCurveCompleted(curve) },
		func() error { return EnsureNotMigrated(curve) },
		func() error { return p.checkAdapter(cfg, adapter) },
	); err != nil {
		return err
	}

	accts, err := DeriveCurveAccounts(p.id, mint)
	if err != nil {
		return err
	}
	if err := expectKey(curveATA, accts.TokenAccount, "curve_token_account"); err != nil {
		return err
	}
	if err := expectKey(curveWSOL, accts.WSOLAccount, "curve_wsol_account"); err != nil {
		return err
	}
	if err := expectKey(wsolMint, solana.SolMint, "wsol_mint"); err != nil {
		return err
	}
	ctx.Log("migrate %s via %s, nonce %d", mint, p.pools.Kind(), nonce)

	if p.pools.WrapsNative() {
		wrapped, err := p.wrapCurveLamports(ctx, payer, curveKey, curveWSOL)
		if err != nil {
			return err
		}
		ctx.Log("wrapped %d lamports", wrapped)
		curve.RealSolReserves = 0
	}

	remaining := make([]solana.PublicKey, 0, ctx.NumAccounts()-migrateFixedAccounts)
	for i := migrateFixedAccounts; i < ctx.NumAccounts(); i++ {
		key, err := ctx.Key(i)
		if err != nil {
			return err
		}
		remaining = append(remaining, key)
	}
	result, err := p.pools.CreatePool(ctx, &PoolRequest{
		Payer:             payer,
		Mint:              mint,
		Curve:             curveKey,
		CurveTokenAccount: curveATA,
		CurveWSOLAccount:  curveWSOL,
		AdapterProgram:    adapter,
		Remaining:         remaining,
		CurveSeeds:        curveSignerSeeds(mint, curve.Bump),
	})
	if err != nil {
		return err
	}
	if result != nil {
		if result.AmountToken >= curve.RealTokenReserves {
			curve.RealTokenReserves = 0
		} else {
			curve.RealTokenReserves -= result.AmountToken
		}
	}

	curve.MigrationCompleted = true
	if err := storeRecord(ctx, curveKey, curve); err != nil {
		return err
	}
	if p.scope != ScopePerCurve {
		cfg.IsCompleted = true
		if err := storeRecord(ctx, configKey, cfg); err != nil {
			return err
		}
	}

	if result != nil && p.pools.Kind() == AdapterRaydium {
		if err := emit(ctx, MigratedToRaydium{
			Pool:        result.Pool,
			LpMint:      result.LpMint,
			AmountToken: result.AmountToken,
			AmountWsol:  result.AmountWsol,
		}); err != nil {
			return err
		}
	}
	p.logger.Debug("Curve migrated",
		zap.String("mint", mint.String()),
		zap.String("adapter", string(p.pools.Kind())),
		zap.String("scope", string(p.scope)))
	return emit(ctx, MigrationCompleted{Mint: mint, AdapterProgram: adapter})
}

func (p *Program) checkAdapter(cfg *Config, adapter solana.PublicKey) error {
	switch p.pools.Kind() {
	case AdapterRaydium:
		return EnsureExpectedProgram(cfg.ExpectedRaydiumProgram, adapter)
	case AdapterMeteora:
		return EnsureExpectedProgram(cfg.ExpectedMeteoraProgram, adapter)
	default:
		return nil
	}
}

// wrapCurveLamports moves everything above the curve's rent minimum into
// its WSOL account and syncs the token balance.
func (p *Program) wrapCurveLamports(ctx *ledger.InvokeContext, payer, curveKey, curveWSOL solana.PublicKey) (uint64, error) {
	acc, err := ctx.Account(curveKey)
	if err != nil {
		return 0, err
	}
	toWrap := PlanWrap(acc.Lamports, ctx.Rent().MinimumBalance(len(acc.Data)))

	if err := ctx.Invoke(ledger.NewCreateIdempotentATAInstruction(payer, curveKey, solana.SolMint)); err != nil {
		return 0, err
	}
	if err := ctx.MoveLamports(curveKey, curveWSOL, toWrap); err != nil {
		return 0, err
	}
	if err := ctx.Invoke(token.NewSyncNativeInstruction(curveWSOL).Build()); err != nil {
		return 0, err
	}
	return toWrap, nil
}

// PlanWrap returns the lamports a curve can wrap: max(0, balance - rentMin).
func PlanWrap(balance, rentMin uint64) uint64 {
	if balance <= rentMin {
		return 0
	}
	return balance - rentMin
}
