package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	pubkeyLen = 32

	// TokenAccountSize is the packed length of an SPL token account.
	TokenAccountSize = 165
	// MintSize is the packed length of an SPL mint.
	MintSize = 82

	NativeDecimals = 9
)

// Token account states.
const (
	TokenAccountUninitialized uint8 = 0
	TokenAccountInitialized   uint8 = 1
	TokenAccountFrozen        uint8 = 2
)

// SPL Token instruction tags.
const (
	tokenInitializeMint     uint8 = 0
	tokenInitializeAccount  uint8 = 1
	tokenTransfer           uint8 = 3
	tokenMintTo             uint8 = 7
	tokenBurn               uint8 = 8
	tokenCloseAccount       uint8 = 9
	tokenTransferChecked    uint8 = 12
	tokenSyncNative         uint8 = 17
	tokenInitializeAccount3 uint8 = 18
	tokenInitializeMint2    uint8 = 20
)

// SPL Token errors.
var (
	ErrTokenInsufficientFunds  = errors.New("token: insufficient funds")
	ErrTokenOwnerMismatch      = errors.New("token: owner does not match")
	ErrTokenMintMismatch       = errors.New("token: account not associated with this mint")
	ErrTokenDecimalsMismatch   = errors.New("token: mint decimals mismatch")
	ErrTokenNonNativeBalance   = errors.New("token: non-native account can only be closed if its balance is zero")
	ErrTokenNonNativeAccount   = errors.New("token: instruction does not support non-native tokens")
	ErrTokenUninitialized      = errors.New("token: invalid or uninitialized account")
	ErrTokenAlreadyInitialized = errors.New("token: account already initialized")
	ErrTokenFixedSupply        = errors.New("token: fixed supply")
	ErrTokenAccountFrozen      = errors.New("token: account is frozen")
	ErrTokenOverflow           = errors.New("token: operation overflowed")
)

// TokenAccount is the unpacked SPL token account layout.
type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           uint8
	IsNative        *uint64 // rent-exempt reserve of a wrapped SOL account
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// Mint is the unpacked SPL mint layout.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

func writeCOptionKey(enc *bin.Encoder, key *solana.PublicKey) error {
	if key == nil {
		if err := enc.WriteUint32(0, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteBytes(make([]byte, pubkeyLen), false)
	}
	if err := enc.WriteUint32(1, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(key[:], false)
}

func readCOptionKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	raw, err := dec.ReadNBytes(pubkeyLen)
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	key := solana.PublicKeyFromBytes(raw)
	return &key, nil
}

// Pack encodes the account into its 165-byte layout.
func (a *TokenAccount) Pack() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteBytes(a.Mint[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeCOptionKey(enc, a.Delegate); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(a.State); err != nil {
		return nil, err
	}
	var native uint64
	nativeTag := uint32(0)
	if a.IsNative != nil {
		nativeTag, native = 1, *a.IsNative
	}
	if err := enc.WriteUint32(nativeTag, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(native, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.DelegatedAmount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeCOptionKey(enc, a.CloseAuthority); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnpackTokenAccount decodes a 165-byte token account.
func UnpackTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: token account length %d", ErrTokenUninitialized, len(data))
	}
	dec := bin.NewBinDecoder(data)
	var a TokenAccount

	mint, err := dec.ReadNBytes(pubkeyLen)
	if err != nil {
		return nil, err
	}
	owner, err := dec.ReadNBytes(pubkeyLen)
	if err != nil {
		return nil, err
	}
	a.Mint = solana.PublicKeyFromBytes(mint)
	a.Owner = solana.PublicKeyFromBytes(owner)
	if a.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if a.Delegate, err = readCOptionKey(dec); err != nil {
		return nil, err
	}
	if a.State, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	nativeTag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	native, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if nativeTag == 1 {
		a.IsNative = &native
	}
	if a.DelegatedAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if a.CloseAuthority, err = readCOptionKey(dec); err != nil {
		return nil, err
	}
	return &a, nil
}

// Pack encodes the mint into its 82-byte layout.
func (m *Mint) Pack() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := writeCOptionKey(enc, m.MintAuthority); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(m.Supply, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return nil, err
	}
	if err := enc.WriteBool(m.IsInitialized); err != nil {
		return nil, err
	}
	if err := writeCOptionKey(enc, m.FreezeAuthority); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnpackMint decodes an 82-byte mint.
func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint length %d", ErrTokenUninitialized, len(data))
	}
	dec := bin.NewBinDecoder(data)
	var m Mint
	var err error

	if m.MintAuthority, err = readCOptionKey(dec); err != nil {
		return nil, err
	}
	if m.Supply, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	if m.IsInitialized, err = dec.ReadBool(); err != nil {
		return nil, err
	}
	if m.FreezeAuthority, err = readCOptionKey(dec); err != nil {
		return nil, err
	}
	return &m, nil
}

type tokenProgram struct{}

func (tokenProgram) Process(ctx *InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return fmt.Errorf("%w: token tag: %v", ErrInvalidInstructionData, err)
	}

	switch tag {
	case tokenInitializeMint, tokenInitializeMint2:
		decimals, err := dec.ReadUint8()
		if err != nil {
			return fmt.Errorf("%w: decimals: %v", ErrInvalidInstructionData, err)
		}
		authority, err := readPublicKey(dec)
		if err != nil {
			return err
		}
		var freeze *solana.PublicKey
		if dec.Remaining() > 0 {
			has, err := dec.ReadUint8()
			if err != nil {
				return fmt.Errorf("%w: freeze authority: %v", ErrInvalidInstructionData, err)
			}
			if has == 1 {
				key, err := readPublicKey(dec)
				if err != nil {
					return err
				}
				freeze = &key
			}
		}
		ctx.Log("Instruction: InitializeMint")
		return tokenInitMint(ctx, decimals, authority, freeze)
	case tokenInitializeAccount:
		owner, err := ctx.Key(2)
		if err != nil {
			return err
		}
		ctx.Log("Instruction: InitializeAccount")
		return tokenInitAccount(ctx, owner)
	case tokenInitializeAccount3:
		owner, err := readPublicKey(dec)
		if err != nil {
			return err
		}
		ctx.Log("Instruction: InitializeAccount3")
		return tokenInitAccount(ctx, owner)
	case tokenTransfer:
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidInstructionData, err)
		}
		ctx.Log("Instruction: Transfer")
		return tokenTransferAmount(ctx, amount, nil)
	case tokenTransferChecked:
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidInstructionData, err)
		}
		decimals, err := dec.ReadUint8()
		if err != nil {
			return fmt.Errorf("%w: decimals: %v", ErrInvalidInstructionData, err)
		}
		ctx.Log("Instruction: TransferChecked")
		return tokenTransferAmount(ctx, amount, &decimals)
	case tokenMintTo:
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidInstructionData, err)
		}
		ctx.Log("Instruction: MintTo")
		return tokenMintAmount(ctx, amount)
	case tokenBurn:
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: amount: %v", ErrInvalidInstructionData, err)
		}
		ctx.Log("Instruction: Burn")
		return tokenBurnAmount(ctx, amount)
	case tokenCloseAccount:
		ctx.Log("Instruction: CloseAccount")
		return tokenClose(ctx)
	case tokenSyncNative:
		ctx.Log("Instruction: SyncNative")
		return tokenSync(ctx)
	default:
		return fmt.Errorf("%w: unsupported token instruction %d", ErrInvalidInstructionData, tag)
	}
}

// loadTokenAccount reads a token-program-owned, initialized token account.
func loadTokenAccount(ctx *InvokeContext, key solana.PublicKey) (*Account, *TokenAccount, error) {
	acc, err := ctx.Account(key)
	if err != nil {
		return nil, nil, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil, fmt.Errorf("%w: %s owned by %s", ErrInvalidAccountOwner, key, acc.Owner)
	}
	state, err := UnpackTokenAccount(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	if state.State == TokenAccountUninitialized {
		return nil, nil, fmt.Errorf("%w: %s", ErrTokenUninitialized, key)
	}
	return acc, state, nil
}

func loadMint(ctx *InvokeContext, key solana.PublicKey) (*Account, *Mint, error) {
	acc, err := ctx.Account(key)
	if err != nil {
		return nil, nil, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil, fmt.Errorf("%w: mint %s owned by %s", ErrInvalidAccountOwner, key, acc.Owner)
	}
	mint, err := UnpackMint(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	if !mint.IsInitialized {
		return nil, nil, fmt.Errorf("%w: mint %s", ErrTokenUninitialized, key)
	}
	return acc, mint, nil
}

func storeTokenAccount(ctx *InvokeContext, key solana.PublicKey, acc *Account, state *TokenAccount) error {
	data, err := state.Pack()
	if err != nil {
		return err
	}
	acc.Data = data
	return ctx.SetAccount(key, acc)
}

func storeMint(ctx *InvokeContext, key solana.PublicKey, acc *Account, mint *Mint) error {
	data, err := mint.Pack()
	if err != nil {
		return err
	}
	acc.Data = data
	return ctx.SetAccount(key, acc)
}

func tokenInitMint(ctx *InvokeContext, decimals uint8, authority solana.PublicKey, freeze *solana.PublicKey) error {
	key, err := ctx.Key(0)
	if err != nil {
		return err
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) || len(acc.Data) != MintSize {
		return fmt.Errorf("%w: mint %s", ErrInvalidAccountOwner, key)
	}
	if current, err := UnpackMint(acc.Data); err == nil && current.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrTokenAlreadyInitialized, key)
	}
	if !ctx.Rent().IsExempt(acc.Lamports, len(acc.Data)) {
		return fmt.Errorf("%w: mint %s", ErrRentNotExempt, key)
	}
	return storeMint(ctx, key, acc, &Mint{
		MintAuthority:   &authority,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freeze,
	})
}

func tokenInitAccount(ctx *InvokeContext, owner solana.PublicKey) error {
	key, err := ctx.Key(0)
	if err != nil {
		return err
	}
	mintKey, err := ctx.Key(1)
	if err != nil {
		return err
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) || len(acc.Data) != TokenAccountSize {
		return fmt.Errorf("%w: token account %s", ErrInvalidAccountOwner, key)
	}
	if current, err := UnpackTokenAccount(acc.Data); err == nil && current.State != TokenAccountUninitialized {
		return fmt.Errorf("%w: %s", ErrTokenAlreadyInitialized, key)
	}
	reserve := ctx.Rent().MinimumBalance(TokenAccountSize)
	if acc.Lamports < reserve {
		return fmt.Errorf("%w: token account %s", ErrRentNotExempt, key)
	}
	if _, _, err := loadMint(ctx, mintKey); err != nil {
		return err
	}

	state := &TokenAccount{
		Mint:  mintKey,
		Owner: owner,
		State: TokenAccountInitialized,
	}
	if mintKey.Equals(solana.SolMint) {
		state.IsNative = &reserve
		state.Amount = acc.Lamports - reserve
	}
	return storeTokenAccount(ctx, key, acc, state)
}

func checkOwner(ctx *InvokeContext, state *TokenAccount, authority solana.PublicKey) error {
	if !state.Owner.Equals(authority) {
		return fmt.Errorf("%w: expected %s, got %s", ErrTokenOwnerMismatch, state.Owner, authority)
	}
	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, authority)
	}
	return nil
}

func tokenTransferAmount(ctx *InvokeContext, amount uint64, decimals *uint8) error {
	var srcKey, mintKey, dstKey, authority solana.PublicKey
	var err error
	if decimals == nil {
		keys := make([]solana.PublicKey, 3)
		for i := range keys {
			if keys[i], err = ctx.Key(i); err != nil {
				return err
			}
		}
		srcKey, dstKey, authority = keys[0], keys[1], keys[2]
	} else {
		keys := make([]solana.PublicKey, 4)
		for i := range keys {
			if keys[i], err = ctx.Key(i); err != nil {
				return err
			}
		}
		srcKey, mintKey, dstKey, authority = keys[0], keys[1], keys[2], keys[3]
	}

	srcAcc, src, err := loadTokenAccount(ctx, srcKey)
	if err != nil {
		return err
	}
	if src.State == TokenAccountFrozen {
		return ErrTokenAccountFrozen
	}
	if err := checkOwner(ctx, src, authority); err != nil {
		return err
	}
	if decimals != nil {
		if !src.Mint.Equals(mintKey) {
			return ErrTokenMintMismatch
		}
		_, mint, err := loadMint(ctx, mintKey)
		if err != nil {
			return err
		}
		if mint.Decimals != *decimals {
			return fmt.Errorf("%w: expected %d, got %d", ErrTokenDecimalsMismatch, mint.Decimals, *decimals)
		}
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrTokenInsufficientFunds, src.Amount, amount)
	}
	if srcKey.Equals(dstKey) {
		return nil
	}

	src.Amount -= amount
	if err := storeTokenAccount(ctx, srcKey, srcAcc, src); err != nil {
		return err
	}

	dstAcc, dst, err := loadTokenAccount(ctx, dstKey)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(src.Mint) {
		return ErrTokenMintMismatch
	}
	if dst.State == TokenAccountFrozen {
		return ErrTokenAccountFrozen
	}
	if dst.Amount+amount < dst.Amount {
		return ErrTokenOverflow
	}
	dst.Amount += amount
	if err := storeTokenAccount(ctx, dstKey, dstAcc, dst); err != nil {
		return err
	}

	if src.IsNative != nil {
		return ctx.MoveLamports(srcKey, dstKey, amount)
	}
	return nil
}

func tokenMintAmount(ctx *InvokeContext, amount uint64) error {
	mintKey, err := ctx.Key(0)
	if err != nil {
		return err
	}
	dstKey, err := ctx.Key(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Key(2)
	if err != nil {
		return err
	}

	mintAcc, mint, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return ErrTokenFixedSupply
	}
	if !mint.MintAuthority.Equals(authority) {
		return fmt.Errorf("%w: mint authority", ErrTokenOwnerMismatch)
	}
	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, authority)
	}
	if mint.Supply+amount < mint.Supply {
		return ErrTokenOverflow
	}

	dstAcc, dst, err := loadTokenAccount(ctx, dstKey)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(mintKey) {
		return ErrTokenMintMismatch
	}
	if dst.IsNative != nil {
		return ErrTokenNonNativeAccount
	}

	mint.Supply += amount
	if err := storeMint(ctx, mintKey, mintAcc, mint); err != nil {
		return err
	}
	dst.Amount += amount
	return storeTokenAccount(ctx, dstKey, dstAcc, dst)
}

func tokenBurnAmount(ctx *InvokeContext, amount uint64) error {
	accKey, err := ctx.Key(0)
	if err != nil {
		return err
	}
	mintKey, err := ctx.Key(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Key(2)
	if err != nil {
		return err
	}

	acc, state, err := loadTokenAccount(ctx, accKey)
	if err != nil {
		return err
	}
	if state.IsNative != nil {
		return ErrTokenNonNativeAccount
	}
	if !state.Mint.Equals(mintKey) {
		return ErrTokenMintMismatch
	}
	if err := checkOwner(ctx, state, authority); err != nil {
		return err
	}
	if state.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrTokenInsufficientFunds, state.Amount, amount)
	}
	mintAcc, mint, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}

	state.Amount -= amount
	if err := storeTokenAccount(ctx, accKey, acc, state); err != nil {
		return err
	}
	mint.Supply -= amount
	return storeMint(ctx, mintKey, mintAcc, mint)
}

func tokenClose(ctx *InvokeContext) error {
	accKey, err := ctx.Key(0)
	if err != nil {
		return err
	}
	dstKey, err := ctx.Key(1)
	if err != nil {
		return err
	}
	authority, err := ctx.Key(2)
	if err != nil {
		return err
	}

	acc, state, err := loadTokenAccount(ctx, accKey)
	if err != nil {
		return err
	}
	if state.IsNative == nil && state.Amount != 0 {
		return fmt.Errorf("%w: %d remaining", ErrTokenNonNativeBalance, state.Amount)
	}
	closer := state.Owner
	if state.CloseAuthority != nil {
		closer = *state.CloseAuthority
	}
	if !closer.Equals(authority) {
		return fmt.Errorf("%w: close authority", ErrTokenOwnerMismatch)
	}
	if !ctx.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, authority)
	}
	if accKey.Equals(dstKey) {
		return fmt.Errorf("%w: close destination is the account itself", ErrInvalidInstructionData)
	}

	if err := ctx.MoveLamports(accKey, dstKey, acc.Lamports); err != nil {
		return err
	}
	acc, err = ctx.Account(accKey)
	if err != nil {
		return err
	}
	acc.Data = nil
	acc.Owner = solana.SystemProgramID
	return ctx.SetAccount(accKey, acc)
}

func tokenSync(ctx *InvokeContext) error {
	key, err := ctx.Key(0)
	if err != nil {
		return err
	}
	acc, state, err := loadTokenAccount(ctx, key)
	if err != nil {
		return err
	}
	if state.IsNative == nil {
		return ErrTokenNonNativeAccount
	}
	if acc.Lamports < *state.IsNative {
		return ErrTokenInsufficientFunds
	}
	state.Amount = acc.Lamports - *state.IsNative
	return storeTokenAccount(ctx, key, acc, state)
}
