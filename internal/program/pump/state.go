package pump

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Config is the program-wide settings record stored at the global config PDA.
type Config struct {
	Authority                   solana.PublicKey `json:"authority"`
	FeeRecipient                solana.PublicKey `json:"fee_recipient"`
	CurveLimit                  uint64           `json:"curve_limit"`
	InitialVirtualTokenReserves uint64           `json:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64           `json:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64           `json:"initial_real_token_reserves"`
	TotalTokenSupply            uint64           `json:"total_token_supply"`
	BuyFeePercent               float64          `json:"buy_fee_percent"`
	SellFeePercent              float64          `json:"sell_fee_percent"`
	MigrationFeePercent         float64          `json:"migration_fee_percent"`
	Paused                      bool             `json:"paused"`
	IsCompleted                 bool             `json:"is_completed"`
	PauseLaunch                 bool             `json:"pause_launch"`
	PauseSwap                   bool             `json:"pause_swap"`
	ExpectedRaydiumProgram      solana.PublicKey `json:"expected_raydium_program"`
	ExpectedMeteoraProgram      solana.PublicKey `json:"expected_meteora_program"`
}

// ConfigAccountSize is the on-ledger size of a Config account, discriminator included.
const ConfigAccountSize = 8 + 32 + 32 + 5*8 + 3*8 + 4 + 32 + 32

// BondingCurve is the per-mint pricing and lifecycle record.
type BondingCurve struct {
	TokenMint            solana.PublicKey `json:"token_mint"`
	Creator              solana.PublicKey `json:"creator"`
	VirtualTokenReserves uint64           `json:"virtual_token_reserves"`
	VirtualSolReserves   uint64           `json:"virtual_sol_reserves"`
	RealTokenReserves    uint64           `json:"real_token_reserves"`
	RealSolReserves      uint64           `json:"real_sol_reserves"`
	TokenTotalSupply     uint64           `json:"token_total_supply"`
	IsCompleted          bool             `json:"is_completed"`
	MigrationCompleted   bool             `json:"migration_completed"`
	Bump                 uint8            `json:"bump"`
}

// BondingCurveAccountSize is the on-ledger size of a BondingCurve account.
const BondingCurveAccountSize = 8 + 32 + 32 + 5*8 + 1 + 1 + 1

// Validate checks the fields a configure call may not set freely.
func (c *Config) Validate() error {
	fees := []struct {
		name string
		v    float64
	}{
		{"buy_fee_percent", c.BuyFeePercent},
		{"sell_fee_percent", c.SellFeePercent},
		{"migration_fee_percent", c.MigrationFeePercent},
	}
	for _, f := range fees {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 100 {
			return withDetail(ErrInvalidArgument, "%s must be within [0, 100], got %v", f.name, f.v)
		}
	}
	if c.Authority.IsZero() {
		return withDetail(ErrInvalidArgument, "authority must be set")
	}
	return nil
}

func marshalAccount(d Discriminator, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalAccount(d Discriminator, data []byte, v interface{}) error {
	if len(data) < len(d) || !bytes.Equal(data[:len(d)], d[:]) {
		return withDetail(ErrInvalidAccount, "account discriminator mismatch")
	}
	if err := bin.NewBorshDecoder(data[len(d):]).Decode(v); err != nil {
		return withDetail(ErrInvalidAccount, "decode: %v", err)
	}
	return nil
}

// MarshalAccount encodes the config with its account discriminator.
func (c *Config) MarshalAccount() ([]byte, error) {
	return marshalAccount(configDiscriminator, c)
}

// DecodeConfig parses a Config account.
func DecodeConfig(data []byte) (*Config, error) {
	c := new(Config)
	if err := unmarshalAccount(configDiscriminator, data, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// MarshalAccount encodes the curve with its account discriminator.
func (b *BondingCurve) MarshalAccount() ([]byte, error) {
	return marshalAccount(bondingCurveDiscriminator, b)
}

// DecodeBondingCurve parses a BondingCurve account.
func DecodeBondingCurve(data []byte) (*BondingCurve, error) {
	b := new(BondingCurve)
	if err := unmarshalAccount(bondingCurveDiscriminator, data, b); err != nil {
		return nil, fmt.Errorf("bonding curve: %w", err)
	}
	return b, nil
}
