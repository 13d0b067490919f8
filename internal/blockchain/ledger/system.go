package ledger

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// System program instruction tags (u32 little endian).
const (
	systemCreateAccount uint32 = 0
	systemAssign        uint32 = 1
	systemTransfer      uint32 = 2
	systemAllocate      uint32 = 8
)

// MaxPermittedDataLength caps account allocations.
const MaxPermittedDataLength = 10 * 1024 * 1024

type systemProgram struct{}

func (systemProgram) Process(ctx *InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: system tag: %v", ErrInvalidInstructionData, err)
	}

	switch tag {
	case systemCreateAccount:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: lamports: %v", ErrInvalidInstructionData, err)
		}
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: space: %v", ErrInvalidInstructionData, err)
		}
		owner, err := readPublicKey(dec)
		if err != nil {
			return err
		}
		return systemCreate(ctx, lamports, space, owner)
	case systemAssign:
		owner, err := readPublicKey(dec)
		if err != nil {
			return err
		}
		return systemAssignOwner(ctx, owner)
	case systemTransfer:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: lamports: %v", ErrInvalidInstructionData, err)
		}
		return systemTransferLamports(ctx, lamports)
	case systemAllocate:
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: space: %v", ErrInvalidInstructionData, err)
		}
		return systemAllocateSpace(ctx, space)
	default:
		return fmt.Errorf("%w: unsupported system instruction %d", ErrInvalidInstructionData, tag)
	}
}

func systemCreate(ctx *InvokeContext, lamports, space uint64, owner solana.PublicKey) error {
	from, err := ctx.Key(0)
	if err != nil {
		return err
	}
	to, err := ctx.Key(1)
	if err != nil {
		return err
	}
	if !ctx.IsSigner(from) || !ctx.IsSigner(to) {
		return ErrMissingRequiredSignature
	}
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: space %d", ErrInvalidInstructionData, space)
	}

	target, err := ctx.Account(to)
	if err != nil {
		return err
	}
	if target.Lamports > 0 || len(target.Data) > 0 || !target.Owner.Equals(solana.SystemProgramID) {
		ctx.Log("Create Account: account %s already in use", to)
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, to)
	}
	if err := debitSystemAccount(ctx, from, to, lamports); err != nil {
		return err
	}

	target, err = ctx.Account(to)
	if err != nil {
		return err
	}
	target.Data = make([]byte, space)
	target.Owner = owner
	return ctx.SetAccount(to, target)
}

func systemAssignOwner(ctx *InvokeContext, owner solana.PublicKey) error {
	key, err := ctx.Key(0)
	if err != nil {
		return err
	}
	if !ctx.IsSigner(key) {
		return ErrMissingRequiredSignature
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return err
	}
	acc.Owner = owner
	return ctx.SetAccount(key, acc)
}

func systemAllocateSpace(ctx *InvokeContext, space uint64) error {
	key, err := ctx.Key(0)
	if err != nil {
		return err
	}
	if !ctx.IsSigner(key) {
		return ErrMissingRequiredSignature
	}
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: space %d", ErrInvalidInstructionData, space)
	}
	acc, err := ctx.Account(key)
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 || !acc.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyExists, key)
	}
	acc.Data = make([]byte, space)
	return ctx.SetAccount(key, acc)
}

func systemTransferLamports(ctx *InvokeContext, lamports uint64) error {
	from, err := ctx.Key(0)
	if err != nil {
		return err
	}
	to, err := ctx.Key(1)
	if err != nil {
		return err
	}
	if !ctx.IsSigner(from) {
		return ErrMissingRequiredSignature
	}
	return debitSystemAccount(ctx, from, to, lamports)
}

func debitSystemAccount(ctx *InvokeContext, from, to solana.PublicKey, lamports uint64) error {
	src, err := ctx.Account(from)
	if err != nil {
		return err
	}
	if len(src.Data) > 0 {
		return fmt.Errorf("%w: transfer from %s which carries data", ErrInvalidAccountOwner, from)
	}
	if !src.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, from)
	}
	if src.Lamports < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", src.Lamports, lamports)
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, from)
	}
	return ctx.MoveLamports(from, to, lamports)
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(pubkeyLen)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: pubkey: %v", ErrInvalidInstructionData, err)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// CreateProgramAccount creates a rent-exempt account of space bytes owned by
// owner at an address the calling program signs for with seeds. An address
// that already holds lamports is topped up from payer, then allocated and
// assigned, so a transfer to a predictable address cannot block creation.
func CreateProgramAccount(ctx *InvokeContext, payer, target solana.PublicKey, space uint64, owner solana.PublicKey, seeds [][]byte) error {
	existing, err := ctx.Account(target)
	if err != nil {
		return err
	}
	lamports := ctx.Rent().MinimumBalance(int(space))
	if existing.Lamports == 0 {
		create := system.NewCreateAccountInstruction(lamports, space, owner, payer, target).Build()
		return ctx.InvokeSigned(create, seeds)
	}

	if existing.Lamports < lamports {
		top := system.NewTransferInstruction(lamports-existing.Lamports, payer, target).Build()
		if err := ctx.Invoke(top); err != nil {
			return err
		}
	}
	alloc := solana.NewInstruction(solana.SystemProgramID,
		solana.AccountMetaSlice{{PublicKey: target, IsWritable: true, IsSigner: true}},
		encodeSystemU64(systemAllocate, space))
	if err := ctx.InvokeSigned(alloc, seeds); err != nil {
		return err
	}
	return ctx.InvokeSigned(system.NewAssignInstruction(owner, target).Build(), seeds)
}
