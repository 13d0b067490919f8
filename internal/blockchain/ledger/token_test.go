package ledger

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMint(t *testing.T, l *Ledger, payer solana.PrivateKey, authority solana.PublicKey, decimals uint8) solana.PublicKey {
	t.Helper()
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ixs := []solana.Instruction{
		system.NewCreateAccountInstruction(l.Rent().MinimumBalance(MintSize), MintSize, solana.TokenProgramID, payer.PublicKey(), mint.PublicKey()).Build(),
		token.NewInitializeMintInstruction(decimals, authority, authority, mint.PublicKey(), solana.SysVarRentPubkey).Build(),
	}
	require.NoError(t, send(t, l, payer, ixs, mint))
	return mint.PublicKey()
}

func tokenBalance(t *testing.T, l *Ledger, key solana.PublicKey) uint64 {
	t.Helper()
	acc, err := l.GetTokenAccount(context.Background(), key)
	require.NoError(t, err)
	if acc == nil {
		return 0
	}
	return acc.Amount
}

func TestTokenLayoutSizes(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	reserve := uint64(2_039_280)
	acc := &TokenAccount{
		Mint:           solana.SolMint,
		Owner:          owner,
		Amount:         5,
		State:          TokenAccountInitialized,
		IsNative:       &reserve,
		CloseAuthority: &owner,
	}
	data, err := acc.Pack()
	require.NoError(t, err)
	require.Len(t, data, TokenAccountSize)

	decoded, err := UnpackTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, acc.Owner, decoded.Owner)
	require.NotNil(t, decoded.IsNative)
	assert.Equal(t, reserve, *decoded.IsNative)
	assert.Nil(t, decoded.Delegate)
	require.NotNil(t, decoded.CloseAuthority)

	mint := &Mint{MintAuthority: &owner, Supply: 10, Decimals: 6, IsInitialized: true}
	data, err = mint.Pack()
	require.NoError(t, err)
	require.Len(t, data, MintSize)
	decodedMint, err := UnpackMint(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decodedMint.Decimals)
	assert.Nil(t, decodedMint.FreezeAuthority)

	_, err = UnpackMint(data[:10])
	assert.ErrorIs(t, err, ErrTokenUninitialized)
}

func TestTokenLifecycle(t *testing.T) {
	l := newTestLedger(t)
	payer := fundedKey(t, l, 10*testSOL)
	alice := solana.NewWallet().PublicKey()
	mint := createMint(t, l, payer, payer.PublicKey(), 6)

	payerATA, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), mint)
	require.NoError(t, err)
	aliceATA, _, err := solana.FindAssociatedTokenAddress(alice, mint)
	require.NoError(t, err)

	require.NoError(t, send(t, l, payer, []solana.Instruction{
		NewCreateIdempotentATAInstruction(payer.PublicKey(), payer.PublicKey(), mint),
		NewCreateIdempotentATAInstruction(payer.PublicKey(), alice, mint),
		token.NewMintToInstruction(1_000_000, mint, payerATA, payer.PublicKey(), nil).Build(),
	}))
	assert.Equal(t, uint64(1_000_000), tokenBalance(t, l, payerATA))
	assert.Equal(t, l.Rent().MinimumBalance(TokenAccountSize), balance(t, l, aliceATA))

	t.Run("idempotent create", func(t *testing.T) {
		require.NoError(t, send(t, l, payer, []solana.Instruction{
			NewCreateIdempotentATAInstruction(payer.PublicKey(), alice, mint),
		}))
	})

	t.Run("transfer checked", func(t *testing.T) {
		ix := token.NewTransferCheckedInstruction(400_000, 6, payerATA, mint, aliceATA, payer.PublicKey(), nil).Build()
		require.NoError(t, send(t, l, payer, []solana.Instruction{ix}))
		assert.Equal(t, uint64(600_000), tokenBalance(t, l, payerATA))
		assert.Equal(t, uint64(400_000), tokenBalance(t, l, aliceATA))
	})

	t.Run("wrong decimals", func(t *testing.T) {
		ix := token.NewTransferCheckedInstruction(1, 9, payerATA, mint, aliceATA, payer.PublicKey(), nil).Build()
		err := send(t, l, payer, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrTokenDecimalsMismatch)
	})

	t.Run("insufficient", func(t *testing.T) {
		ix := token.NewTransferCheckedInstruction(700_000, 6, payerATA, mint, aliceATA, payer.PublicKey(), nil).Build()
		err := send(t, l, payer, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrTokenInsufficientFunds)
		assert.Equal(t, uint64(600_000), tokenBalance(t, l, payerATA))
	})

	t.Run("close requires zero balance", func(t *testing.T) {
		ix := token.NewCloseAccountInstruction(payerATA, payer.PublicKey(), payer.PublicKey(), nil).Build()
		err := send(t, l, payer, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrTokenNonNativeBalance)
	})

	t.Run("close after emptying", func(t *testing.T) {
		before := balance(t, l, payer.PublicKey())
		rentReserve := balance(t, l, payerATA)
		ixs := []solana.Instruction{
			token.NewTransferCheckedInstruction(600_000, 6, payerATA, mint, aliceATA, payer.PublicKey(), nil).Build(),
			token.NewCloseAccountInstruction(payerATA, payer.PublicKey(), payer.PublicKey(), nil).Build(),
		}
		require.NoError(t, send(t, l, payer, ixs))
		info, err := l.GetAccountInfo(context.Background(), payerATA)
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Equal(t, before+rentReserve-DefaultLamportsPerSignature, balance(t, l, payer.PublicKey()))
		assert.Equal(t, uint64(1_000_000), tokenBalance(t, l, aliceATA))
	})

	mintState, err := l.GetMint(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), mintState.Supply)
}

func TestWrappedSolSync(t *testing.T) {
	l := newTestLedger(t)
	payer := fundedKey(t, l, 10*testSOL)
	wsol, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), solana.SolMint)
	require.NoError(t, err)

	require.NoError(t, send(t, l, payer, []solana.Instruction{
		NewCreateIdempotentATAInstruction(payer.PublicKey(), payer.PublicKey(), solana.SolMint),
		system.NewTransferInstruction(3*testSOL, payer.PublicKey(), wsol).Build(),
		token.NewSyncNativeInstruction(wsol).Build(),
	}))
	assert.Equal(t, uint64(3*testSOL), tokenBalance(t, l, wsol))

	// Closing a native account returns every lamport, balance included.
	before := balance(t, l, payer.PublicKey())
	held := balance(t, l, wsol)
	require.NoError(t, send(t, l, payer, []solana.Instruction{
		token.NewCloseAccountInstruction(wsol, payer.PublicKey(), payer.PublicKey(), nil).Build(),
	}))
	assert.Equal(t, before+held-DefaultLamportsPerSignature, balance(t, l, payer.PublicKey()))
}

func TestCreateATARejectsWrongAddress(t *testing.T) {
	l := newTestLedger(t)
	payer := fundedKey(t, l, testSOL)
	mint := createMint(t, l, payer, payer.PublicKey(), 6)

	ix := NewCreateIdempotentATAInstruction(payer.PublicKey(), payer.PublicKey(), mint)
	ix.(*solana.GenericInstruction).AccountValues[1].PublicKey = solana.NewWallet().PublicKey()
	err := send(t, l, payer, []solana.Instruction{ix})
	require.ErrorIs(t, err, ErrInvalidSeeds)
}

func TestCreateATAAfterPrefund(t *testing.T) {
	l := newTestLedger(t)
	payer := fundedKey(t, l, testSOL)
	stranger := fundedKey(t, l, testSOL)
	mint := createMint(t, l, payer, payer.PublicKey(), 6)
	ata, _, err := solana.FindAssociatedTokenAddress(payer.PublicKey(), mint)
	require.NoError(t, err)

	// Любой может перевести лампорты на предсказуемый адрес заранее.
	require.NoError(t, send(t, l, stranger, []solana.Instruction{
		system.NewTransferInstruction(1, stranger.PublicKey(), ata).Build(),
	}))

	ix := NewCreateIdempotentATAInstruction(payer.PublicKey(), payer.PublicKey(), mint)
	require.NoError(t, send(t, l, payer, []solana.Instruction{ix}))

	acc, err := l.GetTokenAccount(context.Background(), ata)
	require.NoError(t, err)
	assert.Equal(t, payer.PublicKey(), acc.Owner)
	assert.Equal(t, mint, acc.Mint)
	assert.Equal(t, l.Rent().MinimumBalance(TokenAccountSize), balance(t, l, ata))
}
