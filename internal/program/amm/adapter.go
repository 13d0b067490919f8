package amm

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// PoolState is the pool record an adapter keeps at its pool PDA.
type PoolState struct {
	Kind        string           `json:"kind"`
	Mint        solana.PublicKey `json:"mint"`
	Curve       solana.PublicKey `json:"curve"`
	LpMint      solana.PublicKey `json:"lp_mint"`
	TokenVault  solana.PublicKey `json:"token_vault"`
	WSOLVault   solana.PublicKey `json:"wsol_vault"`
	AmountToken uint64           `json:"amount_token"`
	AmountWsol  uint64           `json:"amount_wsol"`
	Bump        uint8            `json:"bump"`
}

var poolStateDiscriminator = pump.AccountDiscriminator("PoolState")

// PoolStateSize is the account size reserved for a pool record.
const PoolStateSize = 8 + 4 + 16 + 5*32 + 2*8 + 1

// DecodePoolState parses a pool account.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], poolStateDiscriminator[:]) {
		return nil, fmt.Errorf("pool state: discriminator mismatch")
	}
	s := new(PoolState)
	if err := bin.NewBorshDecoder(data[8:]).Decode(s); err != nil {
		return nil, fmt.Errorf("pool state: %w", err)
	}
	return s, nil
}

func (s *PoolState) marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(poolStateDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(s); err != nil {
		return nil, err
	}
	out := make([]byte, PoolStateSize)
	if buf.Len() > len(out) {
		return nil, fmt.Errorf("pool state: %d bytes exceed %d", buf.Len(), PoolStateSize)
	}
	copy(out, buf.Bytes())
	return out, nil
}

// Adapter is a minimal AMM program: create_pool records a pool, creates
// its LP mint and vaults and moves the curve's token and WSOL balances in.
type Adapter struct {
	kind   pump.AdapterKind
	logger *zap.Logger
}

var _ ledger.Program = (*Adapter)(nil)

// NewAdapter returns the adapter program of kind.
func NewAdapter(kind pump.AdapterKind, logger *zap.Logger) *Adapter {
	return &Adapter{kind: kind, logger: logger.Named(string(kind) + "_adapter")}
}

// Accounts: payer (signer, writable), token_mint, wsol_mint, curve_pda
// (signer), curve_token_account (writable), curve_wsol_account (writable),
// pool, lp_mint, token_vault, wsol_vault (all writable), system_program,
// token_program.
func (a *Adapter) Process(ctx *ledger.InvokeContext, data []byte) error {
	if len(data) < 8 || !bytes.Equal(data[:8], CreatePoolDiscriminator[:]) {
		return ErrUnknownInstruction
	}
	ctx.Log("[%s_adapter] create_pool called", a.kind)

	keys := make([]solana.PublicKey, 12)
	for i := range keys {
		key, err := ctx.Key(i)
		if err != nil {
			return err
		}
		keys[i] = key
	}
	payer, mint, wsolMint, curve := keys[0], keys[1], keys[2], keys[3]
	curveATA, curveWSOL := keys[4], keys[5]
	if !ctx.IsSigner(curve) || !ctx.IsSigner(payer) {
		return ledger.ErrMissingRequiredSignature
	}
	if !wsolMint.Equals(solana.SolMint) {
		return fmt.Errorf("%w: wsol mint %s", ErrMissingAccounts, wsolMint)
	}

	addrs, err := DerivePoolAddresses(ctx.ProgramID(), mint)
	if err != nil {
		return err
	}
	expected := []solana.PublicKey{addrs.Pool, addrs.LpMint, addrs.TokenVault, addrs.WSOLVault}
	for i, want := range expected {
		if !keys[6+i].Equals(want) {
			return fmt.Errorf("%w: %s is not a pool address of %s", ledger.ErrInvalidSeeds, keys[6+i], mint)
		}
	}
	existing, err := ctx.Account(addrs.Pool)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrPoolExists, addrs.Pool)
	}

	poolSeeds := [][]byte{[]byte(PoolSeed), mint[:], {addrs.PoolBump}}
	if err := ledger.CreateProgramAccount(ctx, payer, addrs.Pool, PoolStateSize, ctx.ProgramID(), poolSeeds); err != nil {
		return err
	}

	lpSeeds := [][]byte{[]byte(LpMintSeed), addrs.Pool[:], {addrs.LpBump}}
	if err := ledger.CreateProgramAccount(ctx, payer, addrs.LpMint, ledger.MintSize, solana.TokenProgramID, lpSeeds); err != nil {
		return err
	}
	if err := ctx.Invoke(ledger.NewInitializeMint2Instruction(addrs.LpMint, addrs.Pool, LpDecimals)); err != nil {
		return err
	}

	if err := a.createVault(ctx, payer, addrs.TokenVault, mint, addrs.Pool,
		[][]byte{[]byte(PoolVaultSeed), addrs.Pool[:], mint[:], {addrs.TokenBump}}); err != nil {
		return err
	}
	if err := a.createVault(ctx, payer, addrs.WSOLVault, solana.SolMint, addrs.Pool,
		[][]byte{[]byte(PoolVaultSeed), addrs.Pool[:], solana.SolMint[:], {addrs.WSOLBump}}); err != nil {
		return err
	}

	amountToken, err := a.drain(ctx, curveATA, mint, addrs.TokenVault, curve)
	if err != nil {
		return err
	}
	amountWsol, err := a.drain(ctx, curveWSOL, solana.SolMint, addrs.WSOLVault, curve)
	if err != nil {
		return err
	}

	state := &PoolState{
		Kind:        string(a.kind),
		Mint:        mint,
		Curve:       curve,
		LpMint:      addrs.LpMint,
		TokenVault:  addrs.TokenVault,
		WSOLVault:   addrs.WSOLVault,
		AmountToken: amountToken,
		AmountWsol:  amountWsol,
		Bump:        addrs.PoolBump,
	}
	raw, err := state.marshal()
	if err != nil {
		return err
	}
	poolAcc, err := ctx.Account(addrs.Pool)
	if err != nil {
		return err
	}
	poolAcc.Data = raw
	if err := ctx.SetAccount(addrs.Pool, poolAcc); err != nil {
		return err
	}

	result := &pump.PoolResult{Pool: addrs.Pool, LpMint: addrs.LpMint, AmountToken: amountToken, AmountWsol: amountWsol}
	rd, err := result.Marshal()
	if err != nil {
		return err
	}
	ctx.SetReturnData(rd)
	ctx.Log("pool %s seeded with %d tokens and %d wsol", addrs.Pool, amountToken, amountWsol)
	return nil
}

func (a *Adapter) createVault(ctx *ledger.InvokeContext, payer, vault, mint, owner solana.PublicKey, seeds [][]byte) error {
	if err := ledger.CreateProgramAccount(ctx, payer, vault, ledger.TokenAccountSize, solana.TokenProgramID, seeds); err != nil {
		return err
	}
	return ctx.Invoke(ledger.NewInitializeAccount3Instruction(vault, mint, owner))
}

// drain moves the whole balance of a curve token account into a vault.
// A missing source account drains nothing.
func (a *Adapter) drain(ctx *ledger.InvokeContext, src, mint, vault, authority solana.PublicKey) (uint64, error) {
	acc, err := ctx.Account(src)
	if err != nil {
		return 0, err
	}
	if acc.IsEmpty() || !acc.Owner.Equals(solana.TokenProgramID) {
		return 0, nil
	}
	state, err := ledger.UnpackTokenAccount(acc.Data)
	if err != nil {
		return 0, err
	}
	if state.Amount == 0 {
		return 0, nil
	}
	mintAcc, err := ctx.Account(mint)
	if err != nil {
		return 0, err
	}
	mintState, err := ledger.UnpackMint(mintAcc.Data)
	if err != nil {
		return 0, err
	}
	ix := token.NewTransferCheckedInstruction(state.Amount, mintState.Decimals, src, mint, vault, authority, nil).Build()
	if err := ctx.Invoke(ix); err != nil {
		return 0, err
	}
	a.logger.Debug("Drained curve account",
		zap.String("source", src.String()),
		zap.Uint64("amount", state.Amount))
	return state.Amount, nil
}
