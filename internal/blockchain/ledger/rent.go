package ledger

const (
	// AccountStorageOverhead is the per-account byte overhead charged on top of data length.
	AccountStorageOverhead = 128

	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
)

// Rent mirrors the rent sysvar.
type Rent struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year" mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold" mapstructure:"exemption_threshold"`
}

// DefaultRent returns the mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the rent-exempt minimum for an account holding dataLen bytes.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the rent-exempt minimum for dataLen.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
