package pump

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

func TestConfigureBootstrapAndAdminOnly(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig(h.admin.PublicKey(), h.feeRecipient)

	ix, err := NewConfigureInstruction(h.prog.ID(), h.admin.PublicKey(), cfg)
	require.NoError(t, err)
	status, err := h.send(h.admin, []solana.Instruction{ix})
	require.NoError(t, err)
	events := h.events(status)
	require.Len(t, events, 1)
	assert.Equal(t, &ConfigUpdated{Authority: h.admin.PublicKey()}, events[0])
	assert.Equal(t, cfg, h.config())

	configKey, _, err := FindGlobalConfigAddress(h.prog.ID())
	require.NoError(t, err)
	assert.Equal(t, h.rentMin(ConfigAccountSize), h.balance(configKey))

	t.Run("stranger cannot replace", func(t *testing.T) {
		stranger := h.fund(testSOL)
		takeover := testConfig(stranger.PublicKey(), stranger.PublicKey())
		ix, err := NewConfigureInstruction(h.prog.ID(), stranger.PublicKey(), takeover)
		require.NoError(t, err)
		_, err = h.send(stranger, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrNotAuthorized)
		assert.Equal(t, 0, ledger.InstructionIndex(err))
		assert.Equal(t, h.admin.PublicKey(), h.config().Authority)
	})

	t.Run("invalid fee", func(t *testing.T) {
		bad := testConfig(h.admin.PublicKey(), h.feeRecipient)
		bad.BuyFeePercent = 101
		ix, err := NewConfigureInstruction(h.prog.ID(), h.admin.PublicKey(), bad)
		require.NoError(t, err)
		_, err = h.send(h.admin, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("authority handover", func(t *testing.T) {
		next := h.fund(testSOL)
		handover := testConfig(next.PublicKey(), h.feeRecipient)
		h.configure(handover)

		ix, err := NewConfigureInstruction(h.prog.ID(), h.admin.PublicKey(), cfg)
		require.NoError(t, err)
		_, err = h.send(h.admin, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrNotAuthorized)
		assert.Equal(t, next.PublicKey(), h.config().Authority)
	})
}

// A lamport sent to the config address ahead of time must not block bootstrap.
func TestConfigureBootstrapAfterPrefund(t *testing.T) {
	h := newHarness(t)
	configKey, _, err := FindGlobalConfigAddress(h.prog.ID())
	require.NoError(t, err)

	griefer := h.fund(testSOL)
	_, err = h.send(griefer, []solana.Instruction{system.NewTransferInstruction(1, griefer.PublicKey(), configKey).Build()})
	require.NoError(t, err)
	require.Equal(t, uint64(1), h.balance(configKey))

	cfg := h.setup()
	assert.Equal(t, cfg, h.config())
	assert.Equal(t, h.rentMin(ConfigAccountSize), h.balance(configKey))

	t.Run("already rent exempt", func(t *testing.T) {
		h := newHarness(t)
		configKey, _, err := FindGlobalConfigAddress(h.prog.ID())
		require.NoError(t, err)
		_, err = h.send(h.admin, []solana.Instruction{
			system.NewTransferInstruction(h.rentMin(ConfigAccountSize)+5, h.admin.PublicKey(), configKey).Build(),
		})
		require.NoError(t, err)

		cfg := h.setup()
		assert.Equal(t, cfg, h.config())
		assert.Equal(t, h.rentMin(ConfigAccountSize)+5, h.balance(configKey))
	})
}

func TestLaunchAfterCurvePrefund(t *testing.T) {
	h := newHarness(t)
	cfg := h.setup()
	creator := h.fund(10 * testSOL)
	mint, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	accts := h.accounts(mint.PublicKey())

	griefer := h.fund(testSOL)
	_, err = h.send(griefer, []solana.Instruction{
		system.NewTransferInstruction(1, griefer.PublicKey(), accts.BondingCurve).Build(),
		system.NewTransferInstruction(1, griefer.PublicKey(), accts.TokenAccount).Build(),
	})
	require.NoError(t, err)

	ix, err := NewLaunchInstruction(h.prog.ID(), creator.PublicKey(), mint.PublicKey(), LaunchArgs{Name: "Test", Symbol: "TST"})
	require.NoError(t, err)
	_, err = h.send(creator, []solana.Instruction{ix}, mint)
	require.NoError(t, err)

	curve := h.curve(mint.PublicKey())
	assert.Equal(t, creator.PublicKey(), curve.Creator)
	assert.Equal(t, h.rentMin(BondingCurveAccountSize), h.balance(accts.BondingCurve))
	assert.Equal(t, cfg.TotalTokenSupply, h.tokenBalance(accts.TokenAccount))
}

func TestLaunch(t *testing.T) {
	h := newHarness(t)
	cfg := h.setup()
	creator := h.fund(10 * testSOL)
	mint := h.launch(creator)
	accts := h.accounts(mint)

	curve := h.curve(mint)
	assert.Equal(t, mint, curve.TokenMint)
	assert.Equal(t, creator.PublicKey(), curve.Creator)
	assert.Equal(t, cfg.InitialVirtualTokenReserves, curve.VirtualTokenReserves)
	assert.Equal(t, cfg.InitialVirtualSolReserves, curve.VirtualSolReserves)
	assert.Equal(t, cfg.InitialRealTokenReserves, curve.RealTokenReserves)
	assert.Equal(t, cfg.TotalTokenSupply, curve.TokenTotalSupply)
	assert.Equal(t, accts.Bump, curve.Bump)
	assert.False(t, curve.IsCompleted)

	assert.Equal(t, cfg.TotalTokenSupply, h.tokenBalance(accts.TokenAccount))
	assert.Equal(t, h.rentMin(BondingCurveAccountSize), h.balance(accts.BondingCurve))

	mintState, err := h.l.GetMint(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, mintState.MintAuthority)
	assert.Equal(t, accts.BondingCurve, *mintState.MintAuthority)
	assert.Equal(t, uint8(TokenDecimals), mintState.Decimals)
	assert.Nil(t, mintState.FreezeAuthority)

	t.Run("launch paused", func(t *testing.T) {
		h.setup(func(c *Config) { c.PauseLaunch = true })
		m, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		ix, err := NewLaunchInstruction(h.prog.ID(), creator.PublicKey(), m.PublicKey(), LaunchArgs{Name: "X", Symbol: "X"})
		require.NoError(t, err)
		_, err = h.send(creator, []solana.Instruction{ix}, m)
		require.ErrorIs(t, err, ErrLaunchPaused)
		h.setup()
	})

	t.Run("name too long", func(t *testing.T) {
		m, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		ix, err := NewLaunchInstruction(h.prog.ID(), creator.PublicKey(), m.PublicKey(), LaunchArgs{Name: strings.Repeat("n", MaxNameLen+1), Symbol: "X"})
		require.NoError(t, err)
		_, err = h.send(creator, []solana.Instruction{ix}, m)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestSwapBuyCompletesCurve(t *testing.T) {
	h := newHarness(t)
	cfg := h.setup()
	mint := h.launch(h.fund(10 * testSOL))
	accts := h.accounts(mint)
	user := h.fund(10 * testSOL)

	before := h.curve(mint)
	amount := uint64(3 * testSOL)
	fee := FeeOf(amount, cfg.BuyFeePercent)
	net := amount - fee
	want, err := ConstantProduct{}.BuyQuote(before, net)
	require.NoError(t, err)

	status, err := h.swap(user, mint, amount, DirectionBuy, want)
	require.NoError(t, err)

	userATA, _, err := solana.FindAssociatedTokenAddress(user.PublicKey(), mint)
	require.NoError(t, err)
	assert.Equal(t, want, h.tokenBalance(userATA))
	assert.Equal(t, cfg.TotalTokenSupply-want, h.tokenBalance(accts.TokenAccount))
	assert.Equal(t, fee, h.balance(h.feeRecipient))
	assert.Equal(t, h.rentMin(BondingCurveAccountSize)+net, h.balance(accts.BondingCurve))

	after := h.curve(mint)
	assert.True(t, after.IsCompleted)
	assert.Equal(t, net, after.RealSolReserves)
	assert.Equal(t, before.VirtualSolReserves+net, after.VirtualSolReserves)
	assert.Equal(t, before.VirtualTokenReserves-want, after.VirtualTokenReserves)

	events := h.events(status)
	require.Len(t, events, 2)
	trade, ok := events[0].(*Trade)
	require.True(t, ok)
	assert.Equal(t, want, trade.AmountOut)
	assert.Equal(t, fee, trade.Fee)
	assert.Equal(t, &CurveCompleted{Mint: mint, RealSolReserves: net}, events[1])

	_, err = h.swap(user, mint, testSOL, DirectionBuy, 0)
	require.ErrorIs(t, err, ErrCurveAlreadyCompleted)
}

func TestSwapSellAndSlippage(t *testing.T) {
	h := newHarness(t)
	cfg := h.setup(func(c *Config) { c.CurveLimit = 100 * testSOL })
	mint := h.launch(h.fund(10 * testSOL))
	user := h.fund(10 * testSOL)
	userATA, _, err := solana.FindAssociatedTokenAddress(user.PublicKey(), mint)
	require.NoError(t, err)

	_, err = h.swap(user, mint, testSOL, DirectionBuy, 0)
	require.NoError(t, err)
	bought := h.tokenBalance(userATA)
	require.NotZero(t, bought)

	t.Run("slippage", func(t *testing.T) {
		_, err := h.swap(user, mint, bought/2, DirectionSell, math.MaxUint64)
		require.ErrorIs(t, err, ErrSlippageExceeded)
		assert.True(t, IsSlippageExceededError(err))
		assert.Equal(t, bought, h.tokenBalance(userATA))
	})

	t.Run("sell", func(t *testing.T) {
		curve := h.curve(mint)
		gross, err := ConstantProduct{}.SellQuote(curve, bought/2)
		require.NoError(t, err)
		fee := FeeOf(gross, cfg.SellFeePercent)
		lamportsBefore := h.balance(user.PublicKey())
		feeBefore := h.balance(h.feeRecipient)

		_, err = h.swap(user, mint, bought/2, DirectionSell, gross-fee)
		require.NoError(t, err)
		assert.Equal(t, bought-bought/2, h.tokenBalance(userATA))
		assert.Equal(t, lamportsBefore+gross-fee-ledger.DefaultLamportsPerSignature, h.balance(user.PublicKey()))
		assert.Equal(t, feeBefore+fee, h.balance(h.feeRecipient))
		assert.Equal(t, curve.RealSolReserves-gross, h.curve(mint).RealSolReserves)
	})

	t.Run("bad arguments", func(t *testing.T) {
		_, err := h.swap(user, mint, 0, DirectionBuy, 0)
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = h.swap(user, mint, 10, Direction(7), 0)
		require.ErrorIs(t, err, ErrInvalidDirection)
	})

	t.Run("wrong fee recipient", func(t *testing.T) {
		ix, err := NewSwapInstruction(h.prog.ID(), user.PublicKey(), solana.NewWallet().PublicKey(), mint, testSOL, DirectionBuy, 0)
		require.NoError(t, err)
		_, err = h.send(user, []solana.Instruction{ix})
		require.ErrorIs(t, err, ErrIncorrectFeeRecipient)
	})

	t.Run("swap paused", func(t *testing.T) {
		h.setup(func(c *Config) { c.CurveLimit = 100 * testSOL; c.PauseSwap = true })
		_, err := h.swap(user, mint, testSOL, DirectionBuy, 0)
		require.ErrorIs(t, err, ErrSwapPaused)
	})
}

func TestMigrateFailsWhilePaused(t *testing.T) {
	h := newHarness(t)
	h.setup()
	mint := h.launch(h.fund(10 * testSOL))
	h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
	h.setup(func(c *Config) { c.Paused = true })

	configKey, _, err := FindGlobalConfigAddress(h.prog.ID())
	require.NoError(t, err)
	curveBefore, err := h.l.GetAccountInfo(context.Background(), h.accounts(mint).BondingCurve)
	require.NoError(t, err)
	configBefore, err := h.l.GetAccountInfo(context.Background(), configKey)
	require.NoError(t, err)

	_, err = h.migrate(h.admin, mint)
	require.ErrorIs(t, err, ErrProgramPaused)

	curveAfter, err := h.l.GetAccountInfo(context.Background(), h.accounts(mint).BondingCurve)
	require.NoError(t, err)
	configAfter, err := h.l.GetAccountInfo(context.Background(), configKey)
	require.NoError(t, err)
	assert.Equal(t, curveBefore, curveAfter)
	assert.Equal(t, configBefore, configAfter)
}

func TestMigratePreconditions(t *testing.T) {
	h := newHarness(t)
	h.setup()
	mint := h.launch(h.fund(10 * testSOL))

	_, err := h.migrate(h.admin, mint)
	require.ErrorIs(t, err, ErrCurveNotCompleted)

	h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
	stranger := h.fund(testSOL)
	_, err = h.migrate(stranger, mint)
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestMigrateIsOneWay(t *testing.T) {
	for _, tt := range []struct {
		scope   MigrationScope
		wantErr error
	}{
		{ScopeGlobal, ErrProgramCompleted},
		{ScopePerCurve, ErrCurveAlreadyMigrated},
	} {
		t.Run(string(tt.scope), func(t *testing.T) {
			h := newHarness(t, WithMigrationScope(tt.scope))
			h.setup()
			mint := h.launch(h.fund(10 * testSOL))
			accts := h.accounts(mint)
			h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true }, h.rentMin(BondingCurveAccountSize)+testSOL)

			status, err := h.migrate(h.admin, mint)
			require.NoError(t, err)
			events := h.events(status)
			require.Len(t, events, 1)
			assert.Equal(t, &MigrationCompleted{Mint: mint, AdapterProgram: solana.SystemProgramID}, events[0])
			assert.True(t, h.curve(mint).MigrationCompleted)
			assert.Equal(t, tt.scope == ScopeGlobal, h.config().IsCompleted)

			curveLamports := h.balance(accts.BondingCurve)
			curveTokens := h.tokenBalance(accts.TokenAccount)
			curveState := h.curve(mint)

			status, err = h.migrate(h.admin, mint)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsAlreadyMigratedError(err))
			assert.Empty(t, h.events(status))
			assert.Equal(t, curveLamports, h.balance(accts.BondingCurve))
			assert.Equal(t, curveTokens, h.tokenBalance(accts.TokenAccount))
			assert.Equal(t, curveState, h.curve(mint))
		})
	}
}

func TestConfigureKeepsCompletion(t *testing.T) {
	h := newHarness(t)
	h.setup()
	mint := h.launch(h.fund(10 * testSOL))
	h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
	_, err := h.migrate(h.admin, mint)
	require.NoError(t, err)
	require.True(t, h.config().IsCompleted)

	h.setup(func(c *Config) { c.IsCompleted = false })
	assert.True(t, h.config().IsCompleted)
}

func TestReleaseRequiresCompletedCurve(t *testing.T) {
	h := newHarness(t)
	h.setup()
	mint := h.launch(h.fund(10 * testSOL))

	_, err := h.release(h.admin, mint, solana.NewWallet().PublicKey(), nil)
	require.ErrorIs(t, err, ErrCurveNotCompleted)
}

func TestReleaseSweepsReserves(t *testing.T) {
	h := newHarness(t)
	h.setup(func(c *Config) {
		c.TotalTokenSupply = 1_000
		c.InitialRealTokenReserves = 1_000
	})
	mint := h.launch(h.fund(10 * testSOL))
	accts := h.accounts(mint)
	rentMin := h.rentMin(BondingCurveAccountSize)
	h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true }, rentMin+4_109_120)

	recipient := solana.NewWallet().PublicKey()
	recipientATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	require.NoError(t, err)
	curveATARent := h.balance(accts.TokenAccount)

	status, err := h.release(h.admin, mint, recipient, nil)
	require.NoError(t, err)

	assert.Equal(t, rentMin, h.balance(accts.BondingCurve))
	assert.Equal(t, uint64(4_109_120)+curveATARent, h.balance(recipient))
	assert.Equal(t, uint64(1_000), h.tokenBalance(recipientATA))
	info, err := h.l.GetAccountInfo(context.Background(), accts.TokenAccount)
	require.NoError(t, err)
	assert.Nil(t, info, "curve token account should be closed")

	events := h.events(status)
	require.Len(t, events, 1)
	assert.Equal(t, &ReservesReleased{Mint: mint, Recipient: recipient, LamportsSent: 4_109_120, TokensSent: 1_000}, events[0])
	require.NotNil(t, status.ReturnData)
	result, err := DecodeReleaseResult(status.ReturnData.Data)
	require.NoError(t, err)
	assert.Equal(t, &ReleaseResult{LamportsSent: 4_109_120, TokensSent: 1_000}, result)

	mintState, err := h.l.GetMint(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), mintState.Supply)

	t.Run("second release sweeps nothing", func(t *testing.T) {
		status, err := h.release(h.admin, mint, recipient, nil)
		require.NoError(t, err)
		events := h.events(status)
		require.Len(t, events, 1)
		assert.Equal(t, &ReservesReleased{Mint: mint, Recipient: recipient}, events[0])
		assert.Equal(t, rentMin, h.balance(accts.BondingCurve))
	})
}

func TestReleaseAtRentMinimum(t *testing.T) {
	h := newHarness(t)
	cfg := h.setup()
	mint := h.launch(h.fund(10 * testSOL))
	accts := h.accounts(mint)
	h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
	recipient := solana.NewWallet().PublicKey()

	status, err := h.release(h.admin, mint, recipient, &h.feeRecipient)
	require.NoError(t, err)
	events := h.events(status)
	require.Len(t, events, 1)
	released := events[0].(*ReservesReleased)
	assert.Zero(t, released.LamportsSent)
	assert.Equal(t, cfg.TotalTokenSupply, released.TokensSent)
	assert.Equal(t, h.rentMin(BondingCurveAccountSize), h.balance(accts.BondingCurve))
}

func TestReleaseGates(t *testing.T) {
	t.Run("non admin", func(t *testing.T) {
		h := newHarness(t)
		h.setup()
		mint := h.launch(h.fund(10 * testSOL))
		h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
		stranger := h.fund(testSOL)
		_, err := h.release(stranger, mint, stranger.PublicKey(), nil)
		require.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("fee recipient mismatch", func(t *testing.T) {
		h := newHarness(t)
		h.setup()
		mint := h.launch(h.fund(10 * testSOL))
		h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
		wrong := solana.NewWallet().PublicKey()
		_, err := h.release(h.admin, mint, solana.NewWallet().PublicKey(), &wrong)
		require.ErrorIs(t, err, ErrIncorrectFeeRecipient)
	})

	t.Run("paused is ignored by default", func(t *testing.T) {
		h := newHarness(t)
		h.setup()
		mint := h.launch(h.fund(10 * testSOL))
		h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
		h.setup(func(c *Config) { c.Paused = true })
		_, err := h.release(h.admin, mint, solana.NewWallet().PublicKey(), nil)
		require.NoError(t, err)
	})

	t.Run("gate on pause", func(t *testing.T) {
		h := newHarness(t, WithReleasePolicy(ReleasePolicy{GateOnPause: true}))
		h.setup()
		mint := h.launch(h.fund(10 * testSOL))
		h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
		h.setup(func(c *Config) { c.Paused = true })
		_, err := h.release(h.admin, mint, solana.NewWallet().PublicKey(), nil)
		require.ErrorIs(t, err, ErrProgramPaused)
	})

	t.Run("require migration", func(t *testing.T) {
		h := newHarness(t, WithReleasePolicy(ReleasePolicy{RequireMigration: true}))
		h.setup()
		mint := h.launch(h.fund(10 * testSOL))
		h.forceCurve(mint, func(c *BondingCurve) { c.IsCompleted = true })
		recipient := solana.NewWallet().PublicKey()
		_, err := h.release(h.admin, mint, recipient, nil)
		require.ErrorIs(t, err, ErrCurveNotMigrated)

		_, err = h.migrate(h.admin, mint)
		require.NoError(t, err)
		_, err = h.release(h.admin, mint, recipient, nil)
		require.NoError(t, err)
	})
}

func TestUnknownInstruction(t *testing.T) {
	h := newHarness(t)
	ix := solana.NewInstruction(h.prog.ID(), solana.AccountMetaSlice{}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	_, err := h.send(h.admin, []solana.Instruction{ix})
	require.ErrorIs(t, err, ErrUnknownInstruction)
}
