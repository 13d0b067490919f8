package pump

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

const testSOL = 1_000_000_000

type harness struct {
	t            *testing.T
	l            *ledger.Ledger
	prog         *Program
	admin        solana.PrivateKey
	feeRecipient solana.PublicKey
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	l := ledger.New(zap.NewNop())
	prog := New(DefaultProgramID, zap.NewNop(), opts...)
	l.RegisterProgram(prog.ID(), prog)
	h := &harness{t: t, l: l, prog: prog, feeRecipient: solana.NewWallet().PublicKey()}
	h.admin = h.fund(100 * testSOL)
	return h
}

func (h *harness) fund(lamports uint64) solana.PrivateKey {
	h.t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(h.t, err)
	require.NoError(h.t, h.l.Airdrop(context.Background(), key.PublicKey(), lamports))
	return key
}

// send signs with payer plus extra and returns the committed status, which
// exists for failed transactions too.
func (h *harness) send(payer solana.PrivateKey, ixs []solana.Instruction, extra ...solana.PrivateKey) (*blockchain.TransactionStatus, error) {
	h.t.Helper()
	ctx := context.Background()
	hash, err := h.l.GetRecentBlockhash(ctx)
	require.NoError(h.t, err)
	tx, err := solana.NewTransaction(ixs, hash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(h.t, err)
	keys := append([]solana.PrivateKey{payer}, extra...)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pk) {
				return &keys[i]
			}
		}
		return nil
	})
	require.NoError(h.t, err)

	sig, sendErr := h.l.SendTransaction(ctx, tx)
	status, err := h.l.GetTransaction(ctx, sig)
	require.NoError(h.t, err)
	return status, sendErr
}

func (h *harness) events(status *blockchain.TransactionStatus) []Event {
	h.t.Helper()
	evs, err := ParseEvents(status.Logs)
	require.NoError(h.t, err)
	return evs
}

func testConfig(admin, feeRecipient solana.PublicKey) *Config {
	return &Config{
		Authority:                   admin,
		FeeRecipient:                feeRecipient,
		CurveLimit:                  2 * testSOL,
		InitialVirtualTokenReserves: 1_000_000_000_000,
		InitialVirtualSolReserves:   30 * testSOL,
		InitialRealTokenReserves:    800_000_000_000,
		TotalTokenSupply:            1_000_000_000_000,
		BuyFeePercent:               1,
		SellFeePercent:              1,
	}
}

func (h *harness) configure(cfg *Config) {
	h.t.Helper()
	ix, err := NewConfigureInstruction(h.prog.ID(), h.admin.PublicKey(), cfg)
	require.NoError(h.t, err)
	_, err = h.send(h.admin, []solana.Instruction{ix})
	require.NoError(h.t, err)
}

func (h *harness) setup(mutate ...func(*Config)) *Config {
	h.t.Helper()
	cfg := testConfig(h.admin.PublicKey(), h.feeRecipient)
	for _, m := range mutate {
		m(cfg)
	}
	h.configure(cfg)
	return cfg
}

func (h *harness) launch(creator solana.PrivateKey) solana.PublicKey {
	h.t.Helper()
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(h.t, err)
	ix, err := NewLaunchInstruction(h.prog.ID(), creator.PublicKey(), mint.PublicKey(), LaunchArgs{Name: "Test", Symbol: "TST", URI: "https://example.com/t.json"})
	require.NoError(h.t, err)
	_, err = h.send(creator, []solana.Instruction{ix}, mint)
	require.NoError(h.t, err)
	return mint.PublicKey()
}

func (h *harness) accounts(mint solana.PublicKey) *CurveAccounts {
	h.t.Helper()
	accts, err := DeriveCurveAccounts(h.prog.ID(), mint)
	require.NoError(h.t, err)
	return accts
}

func (h *harness) curve(mint solana.PublicKey) *BondingCurve {
	h.t.Helper()
	info, err := h.l.GetAccountInfo(context.Background(), h.accounts(mint).BondingCurve)
	require.NoError(h.t, err)
	require.NotNil(h.t, info)
	curve, err := DecodeBondingCurve(info.Data)
	require.NoError(h.t, err)
	return curve
}

func (h *harness) config() *Config {
	h.t.Helper()
	key, _, err := FindGlobalConfigAddress(h.prog.ID())
	require.NoError(h.t, err)
	info, err := h.l.GetAccountInfo(context.Background(), key)
	require.NoError(h.t, err)
	require.NotNil(h.t, info)
	cfg, err := DecodeConfig(info.Data)
	require.NoError(h.t, err)
	return cfg
}

// forceCurve rewrites the curve record directly, for states that would
// otherwise take many trades to reach.
func (h *harness) forceCurve(mint solana.PublicKey, mutate func(*BondingCurve), lamports ...uint64) {
	h.t.Helper()
	key := h.accounts(mint).BondingCurve
	info, err := h.l.GetAccountInfo(context.Background(), key)
	require.NoError(h.t, err)
	curve, err := DecodeBondingCurve(info.Data)
	require.NoError(h.t, err)
	mutate(curve)
	data, err := curve.MarshalAccount()
	require.NoError(h.t, err)
	acc := &ledger.Account{Lamports: info.Lamports, Owner: info.Owner, Data: data}
	if len(lamports) > 0 {
		acc.Lamports = lamports[0]
	}
	h.l.SetAccount(key, acc)
}

func (h *harness) balance(key solana.PublicKey) uint64 {
	h.t.Helper()
	b, err := h.l.GetBalance(context.Background(), key)
	require.NoError(h.t, err)
	return b
}

func (h *harness) tokenBalance(key solana.PublicKey) uint64 {
	h.t.Helper()
	acc, err := h.l.GetTokenAccount(context.Background(), key)
	require.NoError(h.t, err)
	if acc == nil {
		return 0
	}
	return acc.Amount
}

func (h *harness) rentMin(dataLen int) uint64 {
	return h.l.Rent().MinimumBalance(dataLen)
}

func (h *harness) swap(user solana.PrivateKey, mint solana.PublicKey, amount uint64, dir Direction, minOut uint64) (*blockchain.TransactionStatus, error) {
	h.t.Helper()
	ix, err := NewSwapInstruction(h.prog.ID(), user.PublicKey(), h.feeRecipient, mint, amount, dir, minOut)
	require.NoError(h.t, err)
	return h.send(user, []solana.Instruction{ix})
}

func (h *harness) migrate(payer solana.PrivateKey, mint solana.PublicKey) (*blockchain.TransactionStatus, error) {
	h.t.Helper()
	ix, err := NewMigrateInstruction(h.prog.ID(), payer.PublicKey(), mint, solana.SystemProgramID, 0)
	require.NoError(h.t, err)
	return h.send(payer, []solana.Instruction{ix})
}

func (h *harness) release(admin solana.PrivateKey, mint, recipient solana.PublicKey, feeRecipient *solana.PublicKey) (*blockchain.TransactionStatus, error) {
	h.t.Helper()
	ix, err := NewReleaseReservesInstruction(h.prog.ID(), admin.PublicKey(), mint, recipient, feeRecipient)
	require.NoError(h.t, err)
	return h.send(admin, []solana.Instruction{ix})
}
