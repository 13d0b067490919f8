// Package amm holds the migration venues of the pump program: the
// PoolCreator strategies and the adapter programs they call into.
package amm

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// Adapter program addresses.
var (
	RaydiumProgramID = solana.MustPublicKeyFromBase58("2q8EXsQ99V7F3pQq8gGjt6o3vijqjCEYazA2Yh4S4ray")
	MeteoraProgramID = solana.MustPublicKeyFromBase58("cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG")
)

// PDA seeds of adapter-owned accounts.
const (
	PoolSeed      = "pool"
	LpMintSeed    = "lp_mint"
	PoolVaultSeed = "pool_vault"

	LpDecimals = 9
)

var (
	ErrUnknownInstruction = errors.New("amm: unknown instruction")
	ErrPoolExists         = errors.New("amm: pool already exists")
	ErrMissingAccounts    = errors.New("amm: missing pool accounts")
	ErrNoReturnData       = errors.New("amm: adapter returned no pool result")
	ErrUnsupportedKind    = errors.New("amm: unsupported adapter kind")
)

// CreatePoolDiscriminator tags the adapters' create_pool instruction.
var CreatePoolDiscriminator = pump.InstructionDiscriminator("create_pool")

// DefaultProgramID returns the well-known adapter address of kind.
func DefaultProgramID(kind pump.AdapterKind) (solana.PublicKey, error) {
	switch kind {
	case pump.AdapterRaydium:
		return RaydiumProgramID, nil
	case pump.AdapterMeteora:
		return MeteoraProgramID, nil
	default:
		return solana.PublicKey{}, ErrUnsupportedKind
	}
}

// PoolAddresses are the adapter-owned accounts of a mint's pool.
type PoolAddresses struct {
	Pool       solana.PublicKey
	PoolBump   uint8
	LpMint     solana.PublicKey
	LpBump     uint8
	TokenVault solana.PublicKey
	TokenBump  uint8
	WSOLVault  solana.PublicKey
	WSOLBump   uint8
}

// DerivePoolAddresses derives the pool PDAs of mint under adapterID.
func DerivePoolAddresses(adapterID, mint solana.PublicKey) (*PoolAddresses, error) {
	var (
		a   PoolAddresses
		err error
	)
	if a.Pool, a.PoolBump, err = solana.FindProgramAddress([][]byte{[]byte(PoolSeed), mint[:]}, adapterID); err != nil {
		return nil, err
	}
	if a.LpMint, a.LpBump, err = solana.FindProgramAddress([][]byte{[]byte(LpMintSeed), a.Pool[:]}, adapterID); err != nil {
		return nil, err
	}
	if a.TokenVault, a.TokenBump, err = solana.FindProgramAddress([][]byte{[]byte(PoolVaultSeed), a.Pool[:], mint[:]}, adapterID); err != nil {
		return nil, err
	}
	if a.WSOLVault, a.WSOLBump, err = solana.FindProgramAddress([][]byte{[]byte(PoolVaultSeed), a.Pool[:], solana.SolMint[:]}, adapterID); err != nil {
		return nil, err
	}
	return &a, nil
}

// Metas returns the pool accounts in the order migrate passes them on.
func (a *PoolAddresses) Metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: a.Pool, IsWritable: true},
		{PublicKey: a.LpMint, IsWritable: true},
		{PublicKey: a.TokenVault, IsWritable: true},
		{PublicKey: a.WSOLVault, IsWritable: true},
	}
}
