package pump

import (
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// SwapArgs are the arguments of the swap instruction.
type SwapArgs struct {
	Amount    uint64
	Direction uint8
	MinOut    uint64
}

func decodeSwapArgs(data []byte) (*SwapArgs, error) {
	dec := bin.NewBinDecoder(data)
	amount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, withDetail(ErrInvalidArgument, "amount: %v", err)
	}
	direction, err := dec.ReadUint8()
	if err != nil {
		return nil, withDetail(ErrInvalidArgument, "direction: %v", err)
	}
	minOut, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, withDetail(ErrInvalidArgument, "min_out: %v", err)
	}
	return &SwapArgs{Amount: amount, Direction: direction, MinOut: minOut}, nil
}

// Accounts: user (signer, writable), global_config, fee_recipient (writable),
// token_mint, bonding_curve (writable), curve_token_account (writable),
// user_token_account (writable), token_program, associated_token_program,
// system_program.
func (p *Program) swap(ctx *ledger.InvokeContext, data []byte) error {
	keys, err := accountKeys(ctx, 10)
	if err != nil {
		return err
	}
	user, configKey, feeRecipient, mint, curveKey, curveATA, userATA := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5], keys[6]

	args, err := decodeSwapArgs(data)
	if err != nil {
		return err
	}
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
		func() error { return EnsureSwapAllowed(cfg) },
		func() error { return requireSigner(ctx, user, "user") },
		func() error { return EnsureFeeRecipient(cfg, feeRecipient) },
		func() error { return EnsureCurveActive(curve) },
	); err != nil {
		return err
	}
	if args.Amount == 0 {
		return ErrInvalidAmount
	}

	accts, err := DeriveCurveAccounts(p.id, mint)
	if err != nil {
		return err
	}
	if err := expectKey(curveATA, accts.TokenAccount, "curve_token_account"); err != nil {
		return err
	}
	expectedUserATA, _, err := solana.FindAssociatedTokenAddress(user, mint)
	if err != nil {
		return err
	}
	if err := expectKey(userATA, expectedUserATA, "user_token_account"); err != nil {
		return err
	}
	decimals, err := mintDecimals(ctx, mint)
	if err != nil {
		return err
	}
	seeds := curveSignerSeeds(mint, curve.Bump)

	trade := Trade{Mint: mint, User: user, Direction: args.Direction, AmountIn: args.Amount}
	switch Direction(args.Direction) {
	case DirectionBuy:
		fee := FeeOf(args.Amount, cfg.BuyFeePercent)
		net := args.Amount - fee
		out, err := p.pricer.BuyQuote(curve, net)
		if err != nil {
			return err
		}
		if out > curve.RealTokenReserves {
			out = curve.RealTokenReserves
		}
		if out == 0 {
			return withDetail(ErrInvalidAmount, "buy of %d lamports yields no tokens", args.Amount)
		}
		if out < args.MinOut {
			return withDetail(ErrSlippageExceeded, "out %d < min %d", out, args.MinOut)
		}

		if err := ctx.Invoke(system.NewTransferInstruction(net, user, curveKey).Build()); err != nil {
			return err
		}
		if fee > 0 {
			if err := ctx.Invoke(system.NewTransferInstruction(fee, user, feeRecipient).Build()); err != nil {
				return err
			}
		}
		if err := ctx.Invoke(ledger.NewCreateIdempotentATAInstruction(user, user, mint)); err != nil {
			return err
		}
		transfer := token.NewTransferCheckedInstruction(out, decimals, curveATA, mint, userATA, curveKey, nil).Build()
		if err := ctx.InvokeSigned(transfer, seeds); err != nil {
			return err
		}

		if curve.VirtualSolReserves+net < curve.VirtualSolReserves || curve.RealSolReserves+net < curve.RealSolReserves {
			return ErrMathOverflow
		}
		curve.VirtualSolReserves += net
		curve.VirtualTokenReserves -= out
		curve.RealSolReserves += net
		curve.RealTokenReserves -= out
		trade.AmountOut, trade.Fee = out, fee

	case DirectionSell:
		gross, err := p.pricer.SellQuote(curve, args.Amount)
		if err != nil {
			return err
		}
		if gross > curve.RealSolReserves {
			gross = curve.RealSolReserves
		}
		fee := FeeOf(gross, cfg.SellFeePercent)
		net := gross - fee
		if net == 0 {
			return withDetail(ErrInvalidAmount, "sell of %d tokens yields no lamports", args.Amount)
		}
		if net < args.MinOut {
			return withDetail(ErrSlippageExceeded, "out %d < min %d", net, args.MinOut)
		}

		transfer := token.NewTransferCheckedInstruction(args.Amount, decimals, userATA, mint, curveATA, user, nil).Build()
		if err := ctx.Invoke(transfer); err != nil {
			return err
		}
		if err := ctx.MoveLamports(curveKey, user, net); err != nil {
			return err
		}
		if err := ctx.MoveLamports(curveKey, feeRecipient, fee); err != nil {
			return err
		}

		if curve.VirtualTokenReserves+args.Amount < curve.VirtualTokenReserves {
			return ErrMathOverflow
		}
		curve.VirtualTokenReserves += args.Amount
		curve.VirtualSolReserves -= gross
		curve.RealSolReserves -= gross
		curve.RealTokenReserves += args.Amount
		trade.AmountOut, trade.Fee = net, fee

	default:
		return withDetail(ErrInvalidDirection, "%d", args.Direction)
	}

	completed := curve.RealSolReserves >= cfg.CurveLimit
	if completed {
		curve.IsCompleted = true
	}
	if err := storeRecord(ctx, curveKey, curve); err != nil {
		return err
	}

	trade.VirtualSolReserves = curve.VirtualSolReserves
	trade.VirtualTokenReserves = curve.VirtualTokenReserves
	trade.RealSolReserves = curve.RealSolReserves
	trade.RealTokenReserves = curve.RealTokenReserves
	if err := emit(ctx, trade); err != nil {
		return err
	}
	if completed {
		ctx.Log("curve %s reached its limit", curveKey)
		return emit(ctx, CurveCompleted{Mint: mint, RealSolReserves: curve.RealSolReserves})
	}
	return nil
}
