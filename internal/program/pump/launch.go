package pump

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// LaunchArgs are the arguments of the launch instruction.
type LaunchArgs struct {
	Name   string
	Symbol string
	URI    string
}

func (a LaunchArgs) validate() error {
	switch {
	case len(a.Name) == 0 || len(a.Name) > MaxNameLen:
		return withDetail(ErrInvalidArgument, "name must be 1..%d bytes", MaxNameLen)
	case len(a.Symbol) == 0 || len(a.Symbol) > MaxSymbolLen:
		return withDetail(ErrInvalidArgument, "symbol must be 1..%d bytes", MaxSymbolLen)
	case len(a.URI) > MaxURILen:
		return withDetail(ErrInvalidArgument, "uri must be at most %d bytes", MaxURILen)
	}
	return nil
}

// Accounts: creator (signer, writable), global_config, mint (signer, writable),
// bonding_curve (writable), curve_token_account (writable), system_program,
// token_program, associated_token_program.
func (p *Program) launch(ctx *ledger.InvokeContext, data []byte) error {
	keys, err := accountKeys(ctx, 8)
	if err != nil {
		return err
	}
	creator, configKey, mint, curveKey, curveATA := keys[0], keys[1], keys[2], keys[3], keys[4]

	var args LaunchArgs
	if err := bin.NewBorshDecoder(data).Decode(&args); err != nil {
		return withDetail(ErrInvalidArgument, "launch args: %v", err)
	}

	cfg, err := p.loadConfig(ctx, configKey)
	if err != nil {
		return err
	}
	if err := Check(
		func() error { return EnsureNotPaused(cfg) },
		func() error { return EnsureNotCompleted(cfg) },
		func() error { return EnsureLaunchAllowed(cfg) },
		func() error { return requireSigner(ctx, creator, "creator") },
		func() error { return requireSigner(ctx, mint, "mint") },
		args.validate,
	); err != nil {
		return err
	}

	accts, err := DeriveCurveAccounts(p.id, mint)
	if err != nil {
		return err
	}
	if err := expectKey(curveKey, accts.BondingCurve, "bonding_curve"); err != nil {
		return err
	}
	if err := expectKey(curveATA, accts.TokenAccount, "curve_token_account"); err != nil {
		return err
	}
	seeds := curveSignerSeeds(mint, accts.Bump)
	rent := ctx.Rent()

	createMint := system.NewCreateAccountInstruction(
		rent.MinimumBalance(ledger.MintSize), ledger.MintSize, solana.TokenProgramID, creator, mint,
	).Build()
	if err := ctx.Invoke(createMint); err != nil {
		return err
	}
	if err := ctx.Invoke(ledger.NewInitializeMint2Instruction(mint, curveKey, TokenDecimals)); err != nil {
		return err
	}

	if err := ledger.CreateProgramAccount(ctx, creator, curveKey, BondingCurveAccountSize, p.id, seeds); err != nil {
		return err
	}
	curve := &BondingCurve{
		TokenMint:            mint,
		Creator:              creator,
		VirtualTokenReserves: cfg.InitialVirtualTokenReserves,
		VirtualSolReserves:   cfg.InitialVirtualSolReserves,
		RealTokenReserves:    cfg.InitialRealTokenReserves,
		TokenTotalSupply:     cfg.TotalTokenSupply,
		Bump:                 accts.Bump,
	}
	if err := storeRecord(ctx, curveKey, curve); err != nil {
		return err
	}

	if err := ctx.Invoke(ledger.NewCreateIdempotentATAInstruction(creator, curveKey, mint)); err != nil {
		return err
	}
	if cfg.TotalTokenSupply > 0 {
		mintTo := token.NewMintToInstruction(cfg.TotalTokenSupply, mint, curveATA, curveKey, nil).Build()
		if err := ctx.InvokeSigned(mintTo, seeds); err != nil {
			return err
		}
	}

	ctx.Log("launched %s (%s) on curve %s", args.Name, args.Symbol, curveKey)
	return emit(ctx, TokenLaunched{
		Mint:    mint,
		Creator: creator,
		Name:    args.Name,
		Symbol:  args.Symbol,
		URI:     args.URI,
	})
}
