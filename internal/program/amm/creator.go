package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// CPICreator creates pools by invoking an adapter program with the curve
// PDA as signer.
type CPICreator struct {
	kind pump.AdapterKind
}

var _ pump.PoolCreator = (*CPICreator)(nil)

// NewCPICreator returns a creator for a Raydium or Meteora adapter.
func NewCPICreator(kind pump.AdapterKind) (*CPICreator, error) {
	if kind != pump.AdapterRaydium && kind != pump.AdapterMeteora {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return &CPICreator{kind: kind}, nil
}

// NewPoolCreator picks the creator for a configured adapter kind.
func NewPoolCreator(kind pump.AdapterKind) (pump.PoolCreator, error) {
	if kind == pump.AdapterNone {
		return pump.NoopPoolCreator{}, nil
	}
	return NewCPICreator(kind)
}

func (c *CPICreator) Kind() pump.AdapterKind { return c.kind }

// WrapsNative is true for Raydium, whose pools pair against WSOL.
func (c *CPICreator) WrapsNative() bool { return c.kind == pump.AdapterRaydium }

// CreatePool invokes create_pool and decodes the adapter's return data.
func (c *CPICreator) CreatePool(ctx *ledger.InvokeContext, req *pump.PoolRequest) (*pump.PoolResult, error) {
	ix, err := NewCreatePoolInstruction(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.InvokeSigned(ix, req.CurveSeeds); err != nil {
		return nil, err
	}
	rd := ctx.ReturnData()
	if rd == nil || !rd.ProgramID.Equals(req.AdapterProgram) {
		return nil, ErrNoReturnData
	}
	return pump.DecodePoolResult(rd.Data)
}

// NewCreatePoolInstruction builds the adapter's create_pool instruction from
// the accounts the migration controller already resolved.
func NewCreatePoolInstruction(req *pump.PoolRequest) (solana.Instruction, error) {
	if len(req.Remaining) < 4 {
		return nil, fmt.Errorf("%w: have %d, need pool, lp_mint, token_vault, wsol_vault", ErrMissingAccounts, len(req.Remaining))
	}
	return solana.NewInstruction(req.AdapterProgram, solana.AccountMetaSlice{
		{PublicKey: req.Payer, IsSigner: true, IsWritable: true},
		{PublicKey: req.Mint},
		{PublicKey: solana.SolMint},
		{PublicKey: req.Curve, IsSigner: true},
		{PublicKey: req.CurveTokenAccount, IsWritable: true},
		{PublicKey: req.CurveWSOLAccount, IsWritable: true},
		{PublicKey: req.Remaining[0], IsWritable: true},
		{PublicKey: req.Remaining[1], IsWritable: true},
		{PublicKey: req.Remaining[2], IsWritable: true},
		{PublicKey: req.Remaining[3], IsWritable: true},
		{PublicKey: solana.SystemProgramID},
		{PublicKey: solana.TokenProgramID},
	}, append([]byte(nil), CreatePoolDiscriminator[:]...)), nil
}
