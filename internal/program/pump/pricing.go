package pump

import (
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"
)

// Direction of a swap.
type Direction uint8

const (
	DirectionBuy  Direction = 0
	DirectionSell Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Pricer prices swaps against a curve's virtual reserves. Implementations
// must be pure: the handler applies the result to the curve.
type Pricer interface {
	// BuyQuote returns the tokens paid out for lamportsIn (fee already taken).
	BuyQuote(curve *BondingCurve, lamportsIn uint64) (uint64, error)
	// SellQuote returns the lamports paid out for tokensIn, before fees.
	SellQuote(curve *BondingCurve, tokensIn uint64) (uint64, error)
}

// ConstantProduct prices along x*y=k over the virtual reserves.
type ConstantProduct struct{}

var _ Pricer = ConstantProduct{}

// BuyQuote returns vT*in/(vS+in), rounded down.
func (ConstantProduct) BuyQuote(curve *BondingCurve, lamportsIn uint64) (uint64, error) {
	return constantProductOut(curve.VirtualSolReserves, curve.VirtualTokenReserves, lamportsIn)
}

// SellQuote returns vS*in/(vT+in), rounded down.
func (ConstantProduct) SellQuote(curve *BondingCurve, tokensIn uint64) (uint64, error) {
	return constantProductOut(curve.VirtualTokenReserves, curve.VirtualSolReserves, tokensIn)
}

func constantProductOut(reserveIn, reserveOut, amountIn uint64) (uint64, error) {
	denom := uint128.From64(reserveIn).Add64(amountIn)
	if denom.IsZero() {
		return 0, withDetail(ErrMathOverflow, "empty reserves")
	}
	out := uint128.From64(reserveOut).Mul64(amountIn).Div(denom)
	if out.Hi != 0 {
		return 0, ErrMathOverflow
	}
	return out.Lo, nil
}

// FeeOf returns amount*percent/100 rounded down.
func FeeOf(amount uint64, percent float64) uint64 {
	if percent <= 0 {
		return 0
	}
	fee := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Floor()
	if fee.BigInt().Cmp(new(big.Int).SetUint64(amount)) > 0 {
		return amount
	}
	return fee.BigInt().Uint64()
}
