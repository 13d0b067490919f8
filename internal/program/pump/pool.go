package pump

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// AdapterKind names the AMM venue a deployment migrates to.
type AdapterKind string

const (
	AdapterNone    AdapterKind = "none"
	AdapterRaydium AdapterKind = "raydium"
	AdapterMeteora AdapterKind = "meteora"
)

// ParseAdapterKind validates a configured adapter name.
func ParseAdapterKind(s string) (AdapterKind, error) {
	switch kind := AdapterKind(s); kind {
	case AdapterNone, AdapterRaydium, AdapterMeteora:
		return kind, nil
	case "":
		return AdapterNone, nil
	default:
		return "", fmt.Errorf("unknown migration adapter %q", s)
	}
}

// PoolRequest is what the migration controller hands to a PoolCreator.
type PoolRequest struct {
	Payer             solana.PublicKey
	Mint              solana.PublicKey
	Curve             solana.PublicKey
	CurveTokenAccount solana.PublicKey
	CurveWSOLAccount  solana.PublicKey
	AdapterProgram    solana.PublicKey
	// Remaining are the adapter-specific accounts passed after the fixed
	// migrate accounts.
	Remaining []solana.PublicKey
	// CurveSeeds sign for the curve PDA inside the adapter call.
	CurveSeeds [][]byte
}

// PoolResult is the adapter's return data.
type PoolResult struct {
	Pool        solana.PublicKey
	LpMint      solana.PublicKey
	AmountToken uint64
	AmountWsol  uint64
}

// Marshal encodes the result as Borsh.
func (r *PoolResult) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePoolResult parses adapter return data.
func DecodePoolResult(data []byte) (*PoolResult, error) {
	r := new(PoolResult)
	if err := bin.NewBorshDecoder(data).Decode(r); err != nil {
		return nil, fmt.Errorf("decode pool result: %w", err)
	}
	return r, nil
}

// PoolCreator is the migration collaborator chosen at deployment time.
type PoolCreator interface {
	Kind() AdapterKind
	// WrapsNative reports whether the curve's spare lamports are wrapped
	// into its WSOL account before the pool is created.
	WrapsNative() bool
	// CreatePool creates and seeds the pool. A nil result means no pool
	// was created.
	CreatePool(ctx *ledger.InvokeContext, req *PoolRequest) (*PoolResult, error)
}

// NoopPoolCreator completes migrations without an external call.
type NoopPoolCreator struct{}

func (NoopPoolCreator) Kind() AdapterKind { return AdapterNone }

func (NoopPoolCreator) WrapsNative() bool { return false }

func (NoopPoolCreator) CreatePool(*ledger.InvokeContext, *PoolRequest) (*PoolResult, error) {
	return nil, nil
}
