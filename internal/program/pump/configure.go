package pump

import (
	bin "github.com/gagliardetto/binary"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// Accounts: admin (signer, writable), global_config (writable), system_program.
func (p *Program) configure(ctx *ledger.InvokeContext, args []byte) error {
	keys, err := accountKeys(ctx, 3)
	if err != nil {
		return err
	}
	admin, configKey := keys[0], keys[1]
	if err := requireSigner(ctx, admin, "admin"); err != nil {
		return err
	}

	var next Config
	if err := bin.NewBorshDecoder(args).Decode(&next); err != nil {
		return withDetail(ErrInvalidArgument, "config: %v", err)
	}

	expected, bump, err := FindGlobalConfigAddress(p.id)
	if err != nil {
		return err
	}
	if err := expectKey(configKey, expected, "global_config"); err != nil {
		return err
	}
	acc, err := ctx.Account(configKey)
	if err != nil {
		return err
	}

	initialized := acc.Owner.Equals(p.id)
	current := &Config{}
	if initialized {
		if current, err = DecodeConfig(acc.Data); err != nil {
			return err
		}
	}
	// The first configure claims the record; after that only the
	// authority may replace it.
	if !current.Authority.IsZero() {
		if err := EnsureAdmin(current, admin); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if current.IsCompleted {
		next.IsCompleted = true
	}

	if !initialized {
		seeds := [][]byte{[]byte(GlobalConfigSeed), {bump}}
		if err := ledger.CreateProgramAccount(ctx, admin, configKey, ConfigAccountSize, p.id, seeds); err != nil {
			return err
		}
	}
	if err := storeRecord(ctx, configKey, &next); err != nil {
		return err
	}
	ctx.Log("config updated, authority %s, paused %t", next.Authority, next.Paused)
	return emit(ctx, ConfigUpdated{Authority: next.Authority})
}
