package transaction

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

const bpsDenominator = 10_000

// ErrEmptyQuote is returned when a trade would pay out nothing.
var ErrEmptyQuote = errors.New("trade pays out nothing")

// Quote предсказывает результат swap по текущему состоянию кривой.
type Quote struct {
	Direction      pump.Direction
	AmountIn       uint64
	Fee            uint64
	AmountOut      uint64
	MinOut         uint64
	PriceImpactBps int64
}

// QuoteSwap mirrors the program's swap arithmetic and derives min_out for
// the given slippage tolerance in basis points.
func QuoteSwap(cfg *pump.Config, curve *pump.BondingCurve, amount uint64, dir pump.Direction, slippageBps uint32) (*Quote, error) {
	if slippageBps > bpsDenominator {
		return nil, fmt.Errorf("slippage %d bps exceeds 100%%", slippageBps)
	}
	if amount == 0 {
		return nil, ErrEmptyQuote
	}
	var pricer pump.ConstantProduct
	q := &Quote{Direction: dir, AmountIn: amount}

	var lamports, tokens uint64
	switch dir {
	case pump.DirectionBuy:
		q.Fee = pump.FeeOf(amount, cfg.BuyFeePercent)
		net := amount - q.Fee
		out, err := pricer.BuyQuote(curve, net)
		if err != nil {
			return nil, err
		}
		if out > curve.RealTokenReserves {
			out = curve.RealTokenReserves
		}
		q.AmountOut = out
		lamports, tokens = net, out
	case pump.DirectionSell:
		gross, err := pricer.SellQuote(curve, amount)
		if err != nil {
			return nil, err
		}
		if gross > curve.RealSolReserves {
			gross = curve.RealSolReserves
		}
		q.Fee = pump.FeeOf(gross, cfg.SellFeePercent)
		q.AmountOut = gross - q.Fee
		lamports, tokens = gross, amount
	default:
		return nil, fmt.Errorf("unknown direction %d", dir)
	}
	if q.AmountOut == 0 {
		return nil, ErrEmptyQuote
	}

	q.MinOut = ApplySlippage(q.AmountOut, slippageBps)
	q.PriceImpactBps = priceImpactBps(curve, lamports, tokens)
	return q, nil
}

// ApplySlippage returns amount reduced by bps basis points, rounded down.
func ApplySlippage(amount uint64, bps uint32) uint64 {
	if bps >= bpsDenominator {
		return 0
	}
	return sdkmath.NewIntFromUint64(amount).
		MulRaw(int64(bpsDenominator - bps)).
		QuoRaw(bpsDenominator).
		Uint64()
}

// SpotPrice returns lamports per token base unit from the virtual reserves.
func SpotPrice(curve *pump.BondingCurve) sdkmath.LegacyDec {
	if curve.VirtualTokenReserves == 0 {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(curve.VirtualSolReserves)).
		QuoInt(sdkmath.NewIntFromUint64(curve.VirtualTokenReserves))
}

// priceImpactBps compares the execution price with the spot price. Buys
// report a positive impact, sells a negative one.
func priceImpactBps(curve *pump.BondingCurve, lamports, tokens uint64) int64 {
	spot := SpotPrice(curve)
	if spot.IsZero() || tokens == 0 {
		return 0
	}
	exec := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(lamports)).
		QuoInt(sdkmath.NewIntFromUint64(tokens))
	return exec.Sub(spot).Quo(spot).MulInt64(bpsDenominator).TruncateInt64()
}
