package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Associated token account instruction tags.
const (
	ataCreate           uint8 = 0
	ataCreateIdempotent uint8 = 1
)

type associatedTokenProgram struct{}

// Accounts: payer, associated account, wallet, mint, system program, token program.
func (associatedTokenProgram) Process(ctx *InvokeContext, data []byte) error {
	idempotent := false
	if len(data) > 0 {
		switch data[0] {
		case ataCreate:
		case ataCreateIdempotent:
			idempotent = true
		default:
			return fmt.Errorf("%w: unsupported associated token instruction %d", ErrInvalidInstructionData, data[0])
		}
	}

	keys := make([]solana.PublicKey, 6)
	for i := range keys {
		key, err := ctx.Key(i)
		if err != nil {
			return err
		}
		keys[i] = key
	}
	payer, ata, wallet, mint, tokenProgramID := keys[0], keys[1], keys[2], keys[3], keys[5]

	expected, bump, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
	}
	if !expected.Equals(ata) {
		return fmt.Errorf("%w: associated address does not match seed derivation", ErrInvalidSeeds)
	}
	if !tokenProgramID.Equals(solana.TokenProgramID) {
		return fmt.Errorf("%w: token program %s", ErrInvalidInstructionData, tokenProgramID)
	}

	existing, err := ctx.Account(ata)
	if err != nil {
		return err
	}
	if existing.Owner.Equals(solana.TokenProgramID) {
		if !idempotent {
			return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, ata)
		}
		state, err := UnpackTokenAccount(existing.Data)
		if err != nil {
			return err
		}
		if !state.Owner.Equals(wallet) || !state.Mint.Equals(mint) {
			return fmt.Errorf("%w: existing associated account %s", ErrTokenOwnerMismatch, ata)
		}
		return nil
	}

	ctx.Log("Create")
	seeds := [][]byte{wallet[:], tokenProgramID[:], mint[:], {bump}}
	if err := CreateProgramAccount(ctx, payer, ata, TokenAccountSize, solana.TokenProgramID, seeds); err != nil {
		return err
	}

	return ctx.Invoke(NewInitializeAccount3Instruction(ata, mint, wallet))
}

func encodeSystemU64(tag uint32, v uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	binary.LittleEndian.PutUint64(buf[4:12], v)
	return buf
}

// NewInitializeAccount3Instruction builds the SPL InitializeAccount3 instruction.
func NewInitializeAccount3Instruction(account, mint, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 0, 1+pubkeyLen)
	data = append(data, tokenInitializeAccount3)
	data = append(data, owner[:]...)
	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			{PublicKey: account, IsWritable: true},
			{PublicKey: mint},
		},
		data,
	)
}

// NewCreateIdempotentATAInstruction builds the associated token program's
// CreateIdempotent instruction without the legacy rent sysvar account.
// A failed derivation leaves the zero key in the account list; the program
// re-derives the address and rejects it with ErrInvalidSeeds.
func NewCreateIdempotentATAInstruction(payer, wallet, mint solana.PublicKey) solana.Instruction {
	ata, _, _ := solana.FindAssociatedTokenAddress(wallet, mint)
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true},
			{PublicKey: wallet},
			{PublicKey: mint},
			{PublicKey: solana.SystemProgramID},
			{PublicKey: solana.TokenProgramID},
		},
		[]byte{ataCreateIdempotent},
	)
}

// NewInitializeMint2Instruction builds the SPL InitializeMint2 instruction
// for a mint without a freeze authority.
func NewInitializeMint2Instruction(mint, authority solana.PublicKey, decimals uint8) solana.Instruction {
	data := make([]byte, 0, 3+pubkeyLen)
	data = append(data, tokenInitializeMint2, decimals)
	data = append(data, authority[:]...)
	data = append(data, 0)
	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{{PublicKey: mint, IsWritable: true}},
		data,
	)
}
