package pump

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// MigrationScope decides what a migration completes.
type MigrationScope string

const (
	// ScopeGlobal completes the whole program with the first migration.
	ScopeGlobal MigrationScope = "global"
	// ScopePerCurve completes only the migrated curve.
	ScopePerCurve MigrationScope = "per_curve"
)

// ReleasePolicy holds the optional release gates of a deployment.
type ReleasePolicy struct {
	GateOnPause      bool `mapstructure:"gate_on_pause" yaml:"gate_on_pause"`
	RequireMigration bool `mapstructure:"require_migration" yaml:"require_migration"`
}

// Program is the bonding-curve program. It is stateless between
// instructions; all state lives in ledger accounts.
type Program struct {
	id      solana.PublicKey
	logger  *zap.Logger
	pools   PoolCreator
	scope   MigrationScope
	release ReleasePolicy
	pricer  Pricer
}

var _ ledger.Program = (*Program)(nil)

// Option configures a Program.
type Option func(*Program)

// WithPoolCreator sets the migration collaborator. Defaults to NoopPoolCreator.
func WithPoolCreator(pc PoolCreator) Option {
	return func(p *Program) {
		p.pools = pc
	}
}

// WithMigrationScope sets the migration scope. Defaults to ScopeGlobal.
func WithMigrationScope(scope MigrationScope) Option {
	return func(p *Program) {
		p.scope = scope
	}
}

// WithReleasePolicy sets the release gates.
func WithReleasePolicy(policy ReleasePolicy) Option {
	return func(p *Program) {
		p.release = policy
	}
}

// WithPricer replaces the constant-product pricer.
func WithPricer(pricer Pricer) Option {
	return func(p *Program) {
		p.pricer = pricer
	}
}

// New creates the program for deployment at id.
func New(id solana.PublicKey, logger *zap.Logger, opts ...Option) *Program {
	p := &Program{
		id:     id,
		logger: logger.Named("pump"),
		pools:  NoopPoolCreator{},
		scope:  ScopeGlobal,
		pricer: ConstantProduct{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the program address.
func (p *Program) ID() solana.PublicKey {
	return p.id
}

// Process dispatches an instruction by its Anchor discriminator.
func (p *Program) Process(ctx *ledger.InvokeContext, data []byte) error {
	if len(data) < len(Discriminator{}) {
		return withDetail(ErrUnknownInstruction, "instruction data too short")
	}
	var d Discriminator
	copy(d[:], data)
	args := data[len(d):]

	switch d {
	case configureDiscriminator:
		ctx.Log("Instruction: Configure")
		return p.configure(ctx, args)
	case launchDiscriminator:
		ctx.Log("Instruction: Launch")
		return p.launch(ctx, args)
	case swapDiscriminator:
		ctx.Log("Instruction: Swap")
		return p.swap(ctx, args)
	case migrateDiscriminator:
		ctx.Log("Instruction: Migrate")
		return p.migrate(ctx, args)
	case releaseReservesDiscriminator:
		ctx.Log("Instruction: ReleaseReserves")
		return p.releaseReserves(ctx, args)
	default:
		return withDetail(ErrUnknownInstruction, "%x", d[:])
	}
}

// accountKeys reads the first n account keys of the instruction.
func accountKeys(ctx *ledger.InvokeContext, n int) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		key, err := ctx.Key(i)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

func requireSigner(ctx *ledger.InvokeContext, key solana.PublicKey, what string) error {
	if !ctx.IsSigner(key) {
		return fmt.Errorf("%w: %s %s", ledger.ErrMissingRequiredSignature, what, key)
	}
	return nil
}

func expectKey(actual, expected solana.PublicKey, what string) error {
	if !actual.Equals(expected) {
		return withDetail(ErrInvalidAccount, "%s: expected %s, got %s", what, expected, actual)
	}
	return nil
}

func (p *Program) loadConfig(ctx *ledger.InvokeContext, key solana.PublicKey) (*Config, error) {
	expected, _, err := FindGlobalConfigAddress(p.id)
	if err != nil {
		return nil, err
	}
	if err := expectKey(key, expected, "global_config"); err != nil {
		return nil, err
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(p.id) {
		return nil, withDetail(ErrInvalidAccount, "global_config not initialized")
	}
	return DecodeConfig(acc.Data)
}

func (p *Program) loadCurve(ctx *ledger.InvokeContext, key, mint solana.PublicKey) (*BondingCurve, error) {
	expected, _, err := FindBondingCurveAddress(p.id, mint)
	if err != nil {
		return nil, err
	}
	if err := expectKey(key, expected, "bonding_curve"); err != nil {
		return nil, err
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(p.id) {
		return nil, withDetail(ErrInvalidAccount, "bonding_curve for %s not initialized", mint)
	}
	curve, err := DecodeBondingCurve(acc.Data)
	if err != nil {
		return nil, err
	}
	if !curve.TokenMint.Equals(mint) {
		return nil, withDetail(ErrInvalidAccount, "bonding_curve mint %s", curve.TokenMint)
	}
	return curve, nil
}

// storeRecord re-serializes a record into an existing program account.
func storeRecord(ctx *ledger.InvokeContext, key solana.PublicKey, record interface{ MarshalAccount() ([]byte, error) }) error {
	data, err := record.MarshalAccount()
	if err != nil {
		return err
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return err
	}
	if len(acc.Data) != len(data) {
		return withDetail(ErrInvalidAccount, "%s has %d bytes, record needs %d", key, len(acc.Data), len(data))
	}
	if bytes.Equal(acc.Data, data) {
		return nil
	}
	acc.Data = data
	return ctx.SetAccount(key, acc)
}

// tokenAmount returns the balance of a token account, 0 when it does not exist.
func tokenAmount(ctx *ledger.InvokeContext, key solana.PublicKey) (uint64, bool, error) {
	acc, err := ctx.Account(key)
	if err != nil {
		return 0, false, err
	}
	if acc.IsEmpty() || !acc.Owner.Equals(solana.TokenProgramID) {
		return 0, false, nil
	}
	state, err := ledger.UnpackTokenAccount(acc.Data)
	if err != nil {
		return 0, false, err
	}
	return state.Amount, true, nil
}

func mintDecimals(ctx *ledger.InvokeContext, key solana.PublicKey) (uint8, error) {
	acc, err := ctx.Account(key)
	if err != nil {
		return 0, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return 0, withDetail(ErrInvalidAccount, "mint %s owned by %s", key, acc.Owner)
	}
	mint, err := ledger.UnpackMint(acc.Data)
	if err != nil {
		return 0, err
	}
	return mint.Decimals, nil
}
