package pump

import "github.com/gagliardetto/solana-go"

// Guards are pure predicates over the config and curve records. Handlers
// run them before their first write, in the order pause, completion,
// authority, then the operation-specific checks.

// EnsureNotPaused fails with ErrProgramPaused while the program is paused.
func EnsureNotPaused(cfg *Config) error {
	if cfg.Paused {
		return ErrProgramPaused
	}
	return nil
}

// EnsureNotCompleted fails with ErrProgramCompleted once the program completed.
func EnsureNotCompleted(cfg *Config) error {
	if cfg.IsCompleted {
		return ErrProgramCompleted
	}
	return nil
}

// EnsureAdmin fails with ErrNotAuthorized unless signer is the config authority.
func EnsureAdmin(cfg *Config, signer solana.PublicKey) error {
	if !cfg.Authority.Equals(signer) {
		return withDetail(ErrNotAuthorized, "signer %s", signer)
	}
	return nil
}

// EnsureLaunchAllowed fails with ErrLaunchPaused while launches are paused.
func EnsureLaunchAllowed(cfg *Config) error {
	if cfg.PauseLaunch {
		return ErrLaunchPaused
	}
	return nil
}

// EnsureSwapAllowed fails with ErrSwapPaused while swaps are paused.
func EnsureSwapAllowed(cfg *Config) error {
	if cfg.PauseSwap {
		return ErrSwapPaused
	}
	return nil
}

// EnsureExpectedProgram checks an adapter program against the configured
// identity. A zero expected key places no restriction.
func EnsureExpectedProgram(expected, actual solana.PublicKey) error {
	if expected.IsZero() || expected.Equals(actual) {
		return nil
	}
	return withDetail(ErrUnexpectedProgramID, "expected %s, got %s", expected, actual)
}

// EnsureFeeRecipient checks a fee recipient account against the config.
func EnsureFeeRecipient(cfg *Config, recipient solana.PublicKey) error {
	if !cfg.FeeRecipient.Equals(recipient) {
		return withDetail(ErrIncorrectFeeRecipient, "expected %s, got %s", cfg.FeeRecipient, recipient)
	}
	return nil
}

// EnsureCurveCompleted fails with ErrCurveNotCompleted until the curve hit its limit.
func EnsureCurveCompleted(curve *BondingCurve) error {
	if !curve.IsCompleted {
		return ErrCurveNotCompleted
	}
	return nil
}

// EnsureCurveActive fails with ErrCurveAlreadyCompleted once trading closed.
func EnsureCurveActive(curve *BondingCurve) error {
	if curve.IsCompleted {
		return ErrCurveAlreadyCompleted
	}
	return nil
}

// EnsureNotMigrated fails with ErrCurveAlreadyMigrated after a migration.
func EnsureNotMigrated(curve *BondingCurve) error {
	if curve.MigrationCompleted {
		return ErrCurveAlreadyMigrated
	}
	return nil
}

// EnsureMigrated fails with ErrCurveNotMigrated before a migration.
func EnsureMigrated(curve *BondingCurve) error {
	if !curve.MigrationCompleted {
		return ErrCurveNotMigrated
	}
	return nil
}

// Check runs checks in order and returns the first failure.
func Check(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
