package pump

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

const releaseFixedAccounts = 10

// ReleasePlan is what a release will move, computed before any write.
type ReleasePlan struct {
	LamportsSent      uint64
	TokensSent        uint64
	CloseTokenAccount bool
}

// PlanRelease sweeps every lamport above the rent minimum and the whole
// token balance. The curve account itself always stays rent exempt.
func PlanRelease(curveLamports, rentMin, tokenAmount uint64) ReleasePlan {
	return ReleasePlan{
		LamportsSent:      PlanWrap(curveLamports, rentMin),
		TokensSent:        tokenAmount,
		CloseTokenAccount: tokenAmount > 0,
	}
}

// ReleaseResult is the return data of release_reserves.
type ReleaseResult struct {
	LamportsSent uint64
	TokensSent   uint64
}

// DecodeReleaseResult parses release_reserves return data.
func DecodeReleaseResult(data []byte) (*ReleaseResult, error) {
	r := new(ReleaseResult)
	if err := bin.NewBorshDecoder(data).Decode(r); err != nil {
		return nil, fmt.Errorf("decode release result: %w", err)
	}
	return r, nil
}

// Accounts: admin (signer, writable), global_config, token_mint,
// bonding_curve (writable), curve_token_account (writable), recipient
// (writable), recipient_token_account (writable), token_program,
// associated_token_program, system_program, optional fee_recipient.
func (p *Program) releaseReserves(ctx *ledger.InvokeContext, _ []byte) error {
	keys, err := accountKeys(ctx, releaseFixedAccounts)
	if err != nil {
		return err
	}
	admin, configKey, mint, curveKey, curveATA, recipient, recipientATA :=
		keys[0], keys[1], keys[2], keys[3], keys[4], keys[5], keys[6]

	cfg, err := p.loadConfig(ctx, configKey)
	if err != nil {
		return err
	}
	curve, err := p.loadCurve(ctx, curveKey, mint)
	if err != nil {
		return err
	}
	checks := make([]func() error, 0, 6)
	if p.release.GateOnPause {
		checks = append(checks, func() error { return EnsureNotPaused(cfg) })
	}
	checks = append(checks,
		func() error { return EnsureAdmin(cfg, admin) },
		func() error { return requireSigner(ctx, admin, "admin") },
		func() error { return EnsureCurveCompleted(curve) },
	)
	if p.release.RequireMigration {
		checks = append(checks, func() error { return EnsureMigrated(curve) })
	}
	if ctx.NumAccounts() > releaseFixedAccounts {
		feeRecipient, err := ctx.Key(releaseFixedAccounts)
		if err != nil {
			return err
		}
		checks = append(checks, func() error { return EnsureFeeRecipient(cfg, feeRecipient) })
	}
	if err := Check(checks...); err != nil {
		return err
	}

	accts, err := DeriveCurveAccounts(p.id, mint)
	if err != nil {
		return err
	}
	if err := expectKey(curveATA, accts.TokenAccount, "curve_token_account"); err != nil {
		return err
	}
	expectedRecipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return err
	}
	if err := expectKey(recipientATA, expectedRecipientATA, "recipient_token_account"); err != nil {
		return err
	}

	curveAcc, err := ctx.Account(curveKey)
	if err != nil {
		return err
	}
	held, _, err := tokenAmount(ctx, curveATA)
	if err != nil {
		return err
	}
	plan := PlanRelease(curveAcc.Lamports, ctx.Rent().MinimumBalance(len(curveAcc.Data)), held)

	if err := ctx.MoveLamports(curveKey, recipient, plan.LamportsSent); err != nil {
		return err
	}
	if plan.TokensSent > 0 {
		decimals, err := mintDecimals(ctx, mint)
		if err != nil {
			return err
		}
		seeds := curveSignerSeeds(mint, curve.Bump)
		if err := ctx.Invoke(ledger.NewCreateIdempotentATAInstruction(admin, recipient, mint)); err != nil {
			return err
		}
		transfer := token.NewTransferCheckedInstruction(plan.TokensSent, decimals, curveATA, mint, recipientATA, curveKey, nil).Build()
		if err := ctx.InvokeSigned(transfer, seeds); err != nil {
			return err
		}
	}
	if plan.CloseTokenAccount {
		closeIx := token.NewCloseAccountInstruction(curveATA, recipient, curveKey, nil).Build()
		if err := ctx.InvokeSigned(closeIx, curveSignerSeeds(mint, curve.Bump)); err != nil {
			return err
		}
	}

	curve.RealSolReserves = 0
	curve.RealTokenReserves = 0
	if err := storeRecord(ctx, curveKey, curve); err != nil {
		return err
	}

	result := ReleaseResult{LamportsSent: plan.LamportsSent, TokensSent: plan.TokensSent}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(&result); err != nil {
		return err
	}
	ctx.SetReturnData(buf.Bytes())

	p.logger.Debug("Reserves released",
		zap.String("mint", mint.String()),
		zap.String("recipient", recipient.String()),
		zap.Uint64("lamports", plan.LamportsSent),
		zap.Uint64("tokens", plan.TokensSent))
	return emit(ctx, ReservesReleased{
		Mint:         mint,
		Recipient:    recipient,
		LamportsSent: plan.LamportsSent,
		TokensSent:   plan.TokensSent,
	})
}
