// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/program/amm"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
	"github.com/rovshanmuradov/pump-curve/internal/utils/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. PUMP_RETRIES.
const EnvPrefix = "PUMP"

type Config struct {
	ProgramID    string `mapstructure:"program_id"`
	SnapshotPath string `mapstructure:"snapshot_path"`
	JournalPath  string `mapstructure:"journal_path"`
	WalletsPath  string `mapstructure:"wallets_path"`
	ExportDir    string `mapstructure:"export_dir"`
	Retries      int    `mapstructure:"retries"`
	Workers      int    `mapstructure:"workers"`
	DebugLogging bool   `mapstructure:"debug_logging"`

	// SubmitRate ограничивает отправку транзакций (tx/s), 0 = без лимита.
	SubmitRate  float64 `mapstructure:"submit_rate"`
	SubmitBurst int     `mapstructure:"submit_burst"`

	Migration MigrationConfig    `mapstructure:"migration"`
	Release   pump.ReleasePolicy `mapstructure:"release"`
	Rent      ledger.Rent        `mapstructure:"rent"`
	Log       logger.Config      `mapstructure:"log"`
	Curve     CurveConfig        `mapstructure:"curve"`
}

// MigrationConfig selects the pool adapter compiled into the program.
type MigrationConfig struct {
	Adapter        string `mapstructure:"adapter"`
	Scope          string `mapstructure:"scope"`
	RaydiumProgram string `mapstructure:"raydium_program"`
	MeteoraProgram string `mapstructure:"meteora_program"`
}

// CurveConfig holds the economic parameters written by genesis.
type CurveConfig struct {
	CurveLimit                  uint64  `mapstructure:"curve_limit"`
	InitialVirtualTokenReserves uint64  `mapstructure:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64  `mapstructure:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64  `mapstructure:"initial_real_token_reserves"`
	TotalTokenSupply            uint64  `mapstructure:"total_token_supply"`
	BuyFeePercent               float64 `mapstructure:"buy_fee_percent"`
	SellFeePercent              float64 `mapstructure:"sell_fee_percent"`
	MigrationFeePercent         float64 `mapstructure:"migration_fee_percent"`
}

const (
	DefaultSnapshotPath = "state/ledger.yaml"
	DefaultJournalPath  = "state/events.jsonl"
	DefaultWalletsPath  = "state/wallets.yaml"
	DefaultExportDir    = "reports"
	DefaultRetries      = 5
	DefaultWorkers      = 4
)

func defaults() map[string]interface{} {
	log := logger.DefaultConfig()
	return map[string]interface{}{
		"program_id":                           pump.DefaultProgramID.String(),
		"snapshot_path":                        DefaultSnapshotPath,
		"journal_path":                         DefaultJournalPath,
		"wallets_path":                         DefaultWalletsPath,
		"export_dir":                           DefaultExportDir,
		"retries":                              DefaultRetries,
		"workers":                              DefaultWorkers,
		"submit_rate":                          0.0,
		"submit_burst":                         1,
		"debug_logging":                        false,
		"migration.adapter":                    string(pump.AdapterRaydium),
		"migration.scope":                      string(pump.ScopeGlobal),
		"migration.raydium_program":            amm.RaydiumProgramID.String(),
		"migration.meteora_program":            amm.MeteoraProgramID.String(),
		"release.gate_on_pause":                false,
		"release.require_migration":            false,
		"rent.lamports_per_byte_year":          ledger.DefaultLamportsPerByteYear,
		"rent.exemption_threshold":             ledger.DefaultExemptionThreshold,
		"log.file":                             log.LogFile,
		"log.level":                            log.Level,
		"log.max_size":                         log.MaxSize,
		"log.max_age":                          log.MaxAge,
		"log.max_backups":                      log.MaxBackups,
		"log.compress":                         log.Compress,
		"log.development":                      log.Development,
		"log.console":                          log.Console,
		"curve.curve_limit":                    uint64(85_000_000_000),
		"curve.initial_virtual_token_reserves": uint64(1_073_000_000_000_000),
		"curve.initial_virtual_sol_reserves":   uint64(30_000_000_000),
		"curve.initial_real_token_reserves":    uint64(793_100_000_000_000),
		"curve.total_token_supply":             uint64(1_000_000_000_000_000),
		"curve.buy_fee_percent":                1.0,
		"curve.sell_fee_percent":               1.0,
		"curve.migration_fee_percent":          0.0,
	}
}

// LoadConfig reads the deployment file at path. An empty path loads the
// defaults and environment overrides only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DebugLogging {
		cfg.Log.Development = true
	}
	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.ProgramKey(); err != nil {
		return err
	}
	if cfg.SnapshotPath == "" {
		return errors.New("snapshot_path is empty")
	}
	if cfg.WalletsPath == "" {
		return errors.New("wallets_path is empty")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.SubmitRate < 0 || cfg.SubmitBurst < 0 {
		return errors.New("invalid submit rate limit")
	}
	if _, err := pump.ParseAdapterKind(cfg.Migration.Adapter); err != nil {
		return fmt.Errorf("migration.adapter: %w", err)
	}
	switch pump.MigrationScope(cfg.Migration.Scope) {
	case pump.ScopeGlobal, pump.ScopePerCurve:
	default:
		return fmt.Errorf("migration.scope: unknown scope %q", cfg.Migration.Scope)
	}
	for name, key := range map[string]string{
		"migration.raydium_program": cfg.Migration.RaydiumProgram,
		"migration.meteora_program": cfg.Migration.MeteoraProgram,
	} {
		if key == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.Rent.LamportsPerByteYear == 0 || cfg.Rent.ExemptionThreshold <= 0 {
		return errors.New("invalid rent parameters")
	}
	return nil
}

// ProgramKey parses program_id.
func (c *Config) ProgramKey() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program_id: %w", err)
	}
	return key, nil
}

// AdapterKind returns the configured pool adapter.
func (c *Config) AdapterKind() pump.AdapterKind {
	kind, _ := pump.ParseAdapterKind(c.Migration.Adapter)
	return kind
}

// ProgramOptions translates the deployment settings into program options.
func (c *Config) ProgramOptions() []pump.Option {
	return []pump.Option{
		pump.WithMigrationScope(pump.MigrationScope(c.Migration.Scope)),
		pump.WithReleasePolicy(c.Release),
	}
}

// OnChain builds the GlobalConfig record written by genesis.
func (c *Config) OnChain(authority, feeRecipient solana.PublicKey) *pump.Config {
	out := &pump.Config{
		Authority:                   authority,
		FeeRecipient:                feeRecipient,
		CurveLimit:                  c.Curve.CurveLimit,
		InitialVirtualTokenReserves: c.Curve.InitialVirtualTokenReserves,
		InitialVirtualSolReserves:   c.Curve.InitialVirtualSolReserves,
		InitialRealTokenReserves:    c.Curve.InitialRealTokenReserves,
		TotalTokenSupply:            c.Curve.TotalTokenSupply,
		BuyFeePercent:               c.Curve.BuyFeePercent,
		SellFeePercent:              c.Curve.SellFeePercent,
		MigrationFeePercent:         c.Curve.MigrationFeePercent,
	}
	if key, err := solana.PublicKeyFromBase58(c.Migration.RaydiumProgram); err == nil {
		out.ExpectedRaydiumProgram = key
	}
	if key, err := solana.PublicKeyFromBase58(c.Migration.MeteoraProgram); err == nil {
		out.ExpectedMeteoraProgram = key
	}
	return out
}
