package pump

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the address the program is deployed at unless the
// deployment configuration says otherwise.
var DefaultProgramID = solana.MustPublicKeyFromBase58("CaCK9zpnvkdwmzbTX45k99kBFAb9zbAm1EU8YoVWTFcB")

// PDA seeds.
const (
	GlobalConfigSeed = "global-config"
	BondingCurveSeed = "bonding-curve"
)

// Token parameters of launched mints.
const (
	TokenDecimals = 6

	MaxNameLen   = 32
	MaxSymbolLen = 10
	MaxURILen    = 200
)

// Instruction names, as they appear in the IDL and in discriminators.
const (
	InstructionConfigure       = "configure"
	InstructionLaunch          = "launch"
	InstructionSwap            = "swap"
	InstructionMigrate         = "migrate"
	InstructionReleaseReserves = "release_reserves"
)

// Discriminator is the 8-byte Anchor type tag in front of accounts,
// instructions and events.
type Discriminator [8]byte

func discriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// AccountDiscriminator returns sha256("account:<name>")[:8].
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account", name)
}

// InstructionDiscriminator returns sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global", name)
}

// EventDiscriminator returns sha256("event:<name>")[:8].
func EventDiscriminator(name string) Discriminator {
	return discriminator("event", name)
}

var (
	configDiscriminator       = AccountDiscriminator("Config")
	bondingCurveDiscriminator = AccountDiscriminator("BondingCurve")

	configureDiscriminator       = InstructionDiscriminator(InstructionConfigure)
	launchDiscriminator          = InstructionDiscriminator(InstructionLaunch)
	swapDiscriminator            = InstructionDiscriminator(InstructionSwap)
	migrateDiscriminator         = InstructionDiscriminator(InstructionMigrate)
	releaseReservesDiscriminator = InstructionDiscriminator(InstructionReleaseReserves)
)
