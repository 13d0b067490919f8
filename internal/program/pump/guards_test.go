package pump

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigGuards(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	for _, paused := range []bool{false, true} {
		for _, completed := range []bool{false, true} {
			cfg := &Config{Authority: admin, Paused: paused, IsCompleted: completed}

			err := EnsureNotPaused(cfg)
			assert.Equal(t, paused, err != nil)
			if paused {
				assert.ErrorIs(t, err, ErrProgramPaused)
			}

			err = EnsureNotCompleted(cfg)
			assert.Equal(t, completed, err != nil)
			if completed {
				assert.ErrorIs(t, err, ErrProgramCompleted)
			}

			assert.NoError(t, EnsureAdmin(cfg, admin))
			assert.ErrorIs(t, EnsureAdmin(cfg, other), ErrNotAuthorized)
		}
	}
}

func TestOperationGates(t *testing.T) {
	cfg := &Config{PauseLaunch: true}
	assert.ErrorIs(t, EnsureLaunchAllowed(cfg), ErrLaunchPaused)
	assert.NoError(t, EnsureSwapAllowed(cfg))

	cfg = &Config{PauseSwap: true}
	assert.NoError(t, EnsureLaunchAllowed(cfg))
	assert.ErrorIs(t, EnsureSwapAllowed(cfg), ErrSwapPaused)
	assert.True(t, IsPausedError(EnsureSwapAllowed(cfg)))
}

func TestEnsureExpectedProgram(t *testing.T) {
	expected := solana.NewWallet().PublicKey()

	// A zero expected identity never restricts.
	for i := 0; i < 16; i++ {
		assert.NoError(t, EnsureExpectedProgram(solana.PublicKey{}, solana.NewWallet().PublicKey()))
	}
	assert.NoError(t, EnsureExpectedProgram(expected, expected))

	err := EnsureExpectedProgram(expected, solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedProgramID)
}

func TestCurveGuards(t *testing.T) {
	active := &BondingCurve{}
	done := &BondingCurve{IsCompleted: true}
	migrated := &BondingCurve{IsCompleted: true, MigrationCompleted: true}

	assert.ErrorIs(t, EnsureCurveCompleted(active), ErrCurveNotCompleted)
	assert.NoError(t, EnsureCurveCompleted(done))
	assert.NoError(t, EnsureCurveActive(active))
	assert.ErrorIs(t, EnsureCurveActive(done), ErrCurveAlreadyCompleted)
	assert.NoError(t, EnsureNotMigrated(done))
	assert.ErrorIs(t, EnsureNotMigrated(migrated), ErrCurveAlreadyMigrated)
	assert.ErrorIs(t, EnsureMigrated(done), ErrCurveNotMigrated)
	assert.NoError(t, EnsureMigrated(migrated))

	fee := solana.NewWallet().PublicKey()
	cfg := &Config{FeeRecipient: fee}
	assert.NoError(t, EnsureFeeRecipient(cfg, fee))
	assert.ErrorIs(t, EnsureFeeRecipient(cfg, solana.NewWallet().PublicKey()), ErrIncorrectFeeRecipient)
}

func TestCheckStopsAtFirstFailure(t *testing.T) {
	cfg := &Config{Paused: true, IsCompleted: true}
	var reached bool
	err := Check(
		func() error { return EnsureNotPaused(cfg) },
		func() error { return EnsureNotCompleted(cfg) },
		func() error { reached = true; return nil },
	)
	assert.ErrorIs(t, err, ErrProgramPaused)
	assert.NotErrorIs(t, err, ErrProgramCompleted)
	assert.False(t, reached)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, uint32(6000), ErrProgramPaused.Code)
	assert.Equal(t, uint32(6001), ErrProgramCompleted.Code)
	assert.Equal(t, uint32(6002), ErrNotAuthorized.Code)

	wrapped := withDetail(ErrSlippageExceeded, "out %d", 1)
	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrSlippageExceeded.Code, code)
	assert.True(t, IsSlippageExceededError(wrapped))

	byCode, ok := ErrorByCode(code)
	require.True(t, ok)
	assert.Equal(t, "SlippageExceeded", byCode.Name)
	_, ok = ErrorByCode(5999)
	assert.False(t, ok)

	seen := make(map[uint32]bool)
	for _, e := range Errors() {
		assert.False(t, seen[e.Code], e.Name)
		seen[e.Code] = true
	}
}
