package pump

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"
)

// IDL is the Anchor-style interface description of the program.
type IDL struct {
	Address      string           `json:"address"`
	Metadata     IDLMetadata      `json:"metadata"`
	Instructions []IDLInstruction `json:"instructions"`
	Accounts     []IDLNamedDisc   `json:"accounts"`
	Events       []IDLNamedDisc   `json:"events"`
	Errors       []IDLError       `json:"errors"`
	Types        []IDLTypeDef     `json:"types"`
}

type IDLMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Spec    string `json:"spec"`
}

type IDLInstruction struct {
	Name          string       `json:"name"`
	Discriminator []int        `json:"discriminator"`
	Accounts      []IDLAccount `json:"accounts"`
	Args          []IDLField   `json:"args"`
}

type IDLAccount struct {
	Name     string  `json:"name"`
	Writable bool    `json:"writable,omitempty"`
	Signer   bool    `json:"signer,omitempty"`
	Optional bool    `json:"optional,omitempty"`
	Address  string  `json:"address,omitempty"`
	PDA      *IDLPDA `json:"pda,omitempty"`
}

type IDLPDA struct {
	Seeds []IDLSeed `json:"seeds"`
}

type IDLSeed struct {
	Kind  string `json:"kind"`
	Value []int  `json:"value,omitempty"`
	Path  string `json:"path,omitempty"`
}

type IDLField struct {
	Name string      `json:"name"`
	Type interface{} `json:"type"`
}

type IDLNamedDisc struct {
	Name          string `json:"name"`
	Discriminator []int  `json:"discriminator"`
}

type IDLError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

type IDLTypeDef struct {
	Name string      `json:"name"`
	Type IDLTypeBody `json:"type"`
}

type IDLTypeBody struct {
	Kind   string     `json:"kind"`
	Fields []IDLField `json:"fields"`
}

// IDLVersion is bumped whenever the wire format changes.
const IDLVersion = "0.1.0"

func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func constSeed(s string) IDLSeed {
	return IDLSeed{Kind: "const", Value: ints([]byte(s))}
}

func globalConfigAccount(writable bool) IDLAccount {
	return IDLAccount{Name: "global_config", Writable: writable, PDA: &IDLPDA{Seeds: []IDLSeed{constSeed(GlobalConfigSeed)}}}
}

func bondingCurveAccount() IDLAccount {
	return IDLAccount{Name: "bonding_curve", Writable: true, PDA: &IDLPDA{Seeds: []IDLSeed{
		constSeed(BondingCurveSeed),
		{Kind: "account", Path: "token_mint"},
	}}}
}

func program(name string, id solana.PublicKey) IDLAccount {
	return IDLAccount{Name: name, Address: id.String()}
}

func fields(pairs ...string) []IDLField {
	out := make([]IDLField, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, IDLField{Name: pairs[i], Type: pairs[i+1]})
	}
	return out
}

// BuildIDL describes the program deployed at programID.
func BuildIDL(programID solana.PublicKey) *IDL {
	idl := &IDL{
		Address:  programID.String(),
		Metadata: IDLMetadata{Name: "pump", Version: IDLVersion, Spec: "0.1.0"},
	}

	idl.Instructions = []IDLInstruction{
		{
			Name:          InstructionConfigure,
			Discriminator: ints(configureDiscriminator[:]),
			Accounts: []IDLAccount{
				{Name: "admin", Writable: true, Signer: true},
				globalConfigAccount(true),
				program("system_program", solana.SystemProgramID),
			},
			Args: []IDLField{{Name: "new_config", Type: map[string]interface{}{"defined": map[string]string{"name": "Config"}}}},
		},
		{
			Name:          InstructionLaunch,
			Discriminator: ints(launchDiscriminator[:]),
			Accounts: []IDLAccount{
				{Name: "creator", Writable: true, Signer: true},
				globalConfigAccount(false),
				{Name: "token_mint", Writable: true, Signer: true},
				bondingCurveAccount(),
				{Name: "curve_token_account", Writable: true},
				program("system_program", solana.SystemProgramID),
				program("token_program", solana.TokenProgramID),
				program("associated_token_program", solana.SPLAssociatedTokenAccountProgramID),
			},
			Args: fields("name", "string", "symbol", "string", "uri", "string"),
		},
		{
			Name:          InstructionSwap,
			Discriminator: ints(swapDiscriminator[:]),
			Accounts: []IDLAccount{
				{Name: "user", Writable: true, Signer: true},
				globalConfigAccount(false),
				{Name: "fee_recipient", Writable: true},
				{Name: "token_mint"},
				bondingCurveAccount(),
				{Name: "curve_token_account", Writable: true},
				{Name: "user_token_account", Writable: true},
				program("token_program", solana.TokenProgramID),
				program("associated_token_program", solana.SPLAssociatedTokenAccountProgramID),
				program("system_program", solana.SystemProgramID),
			},
			Args: fields("amount", "u64", "direction", "u8", "min_out", "u64"),
		},
		{
			Name:          InstructionMigrate,
			Discriminator: ints(migrateDiscriminator[:]),
			Accounts: []IDLAccount{
				{Name: "payer", Writable: true, Signer: true},
				globalConfigAccount(true),
				{Name: "token_mint"},
				bondingCurveAccount(),
				{Name: "curve_token_account", Writable: true},
				{Name: "curve_wsol_account", Writable: true},
				{Name: "wsol_mint", Address: solana.SolMint.String()},
				{Name: "adapter_program"},
				program("token_program", solana.TokenProgramID),
				program("associated_token_program", solana.SPLAssociatedTokenAccountProgramID),
				program("system_program", solana.SystemProgramID),
			},
			Args: fields("nonce", "u8"),
		},
		{
			Name:          InstructionReleaseReserves,
			Discriminator: ints(releaseReservesDiscriminator[:]),
			Accounts: []IDLAccount{
				{Name: "admin", Writable: true, Signer: true},
				globalConfigAccount(false),
				{Name: "token_mint"},
				bondingCurveAccount(),
				{Name: "curve_token_account", Writable: true},
				{Name: "recipient", Writable: true},
				{Name: "recipient_token_account", Writable: true},
				program("token_program", solana.TokenProgramID),
				program("associated_token_program", solana.SPLAssociatedTokenAccountProgramID),
				program("system_program", solana.SystemProgramID),
				{Name: "fee_recipient", Optional: true},
			},
			Args: []IDLField{},
		},
	}

	idl.Accounts = []IDLNamedDisc{
		{Name: "BondingCurve", Discriminator: ints(bondingCurveDiscriminator[:])},
		{Name: "Config", Discriminator: ints(configDiscriminator[:])},
	}
	for _, name := range []string{
		EventConfigUpdated, EventCurveCompleted, EventMigratedToRaydium,
		EventMigrationCompleted, EventReservesReleased, EventTokenLaunched, EventTrade,
	} {
		d := EventDiscriminator(name)
		idl.Events = append(idl.Events, IDLNamedDisc{Name: name, Discriminator: ints(d[:])})
	}
	for _, e := range Errors() {
		idl.Errors = append(idl.Errors, IDLError{Code: e.Code, Name: e.Name, Msg: e.Msg})
	}

	idl.Types = []IDLTypeDef{
		structType("BondingCurve", fields(
			"token_mint", "pubkey", "creator", "pubkey",
			"virtual_token_reserves", "u64", "virtual_sol_reserves", "u64",
			"real_token_reserves", "u64", "real_sol_reserves", "u64",
			"token_total_supply", "u64", "is_completed", "bool",
			"migration_completed", "bool", "bump", "u8",
		)),
		structType("Config", fields(
			"authority", "pubkey", "fee_recipient", "pubkey",
			"curve_limit", "u64", "initial_virtual_token_reserves", "u64",
			"initial_virtual_sol_reserves", "u64", "initial_real_token_reserves", "u64",
			"total_token_supply", "u64", "buy_fee_percent", "f64",
			"sell_fee_percent", "f64", "migration_fee_percent", "f64",
			"paused", "bool", "is_completed", "bool",
			"pause_launch", "bool", "pause_swap", "bool",
			"expected_raydium_program", "pubkey", "expected_meteora_program", "pubkey",
		)),
		structType(EventConfigUpdated, fields("authority", "pubkey")),
		structType(EventCurveCompleted, fields("mint", "pubkey", "real_sol_reserves", "u64")),
		structType(EventMigratedToRaydium, fields("pool", "pubkey", "lp_mint", "pubkey", "amount_token", "u64", "amount_wsol", "u64")),
		structType(EventMigrationCompleted, fields("mint", "pubkey", "adapter_program", "pubkey")),
		structType(EventReservesReleased, fields("mint", "pubkey", "recipient", "pubkey", "lamports_sent", "u64", "tokens_sent", "u64")),
		structType(EventTokenLaunched, fields("mint", "pubkey", "creator", "pubkey", "name", "string", "symbol", "string", "uri", "string")),
		structType(EventTrade, fields(
			"mint", "pubkey", "user", "pubkey", "direction", "u8",
			"amount_in", "u64", "amount_out", "u64", "fee", "u64",
			"virtual_sol_reserves", "u64", "virtual_token_reserves", "u64",
			"real_sol_reserves", "u64", "real_token_reserves", "u64",
		)),
	}
	return idl
}

func structType(name string, f []IDLField) IDLTypeDef {
	return IDLTypeDef{Name: name, Type: IDLTypeBody{Kind: "struct", Fields: f}}
}

// MarshalIDL renders the IDL as indented JSON.
func MarshalIDL(programID solana.PublicKey) ([]byte, error) {
	return json.MarshalIndent(BuildIDL(programID), "", "  ")
}
