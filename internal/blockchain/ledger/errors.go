package ledger

import (
	"errors"
	"fmt"
)

// Runtime errors. Program-specific failures are returned by the programs
// themselves and wrapped in a TransactionError.
var (
	ErrAccountInUse              = errors.New("account in use")
	ErrBlockhashNotFound         = errors.New("blockhash not found")
	ErrAlreadyProcessed          = errors.New("transaction already processed")
	ErrSignatureFailure          = errors.New("transaction signature verification failure")
	ErrMissingRequiredSignature  = errors.New("missing required signature for instruction")
	ErrAccountNotDeclared        = errors.New("account not declared in transaction")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInsufficientFundsForFee   = errors.New("insufficient funds for fee")
	ErrInvalidAccountOwner       = errors.New("invalid account owner")
	ErrReadonlyAccount           = errors.New("instruction modified a readonly account")
	ErrExternalLamportSpend      = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalDataModified      = errors.New("instruction modified data of an account it does not own")
	ErrUnbalancedInstruction     = errors.New("sum of account balances before and after instruction do not match")
	ErrRentNotExempt             = errors.New("account would not be rent exempt")
	ErrProgramNotFound           = errors.New("program not found")
	ErrInvalidSeeds              = errors.New("invalid seeds for program address")
	ErrAccountAlreadyExists      = errors.New("account already exists")
	ErrInvalidInstructionData    = errors.New("invalid instruction data")
	ErrNotEnoughAccountKeys      = errors.New("not enough account keys")
	ErrCallDepthExceeded         = errors.New("cross-program invocation call depth too deep")
	ErrEmptyTransaction          = errors.New("transaction has no instructions")
	ErrTransactionNotFound       = errors.New("transaction not found")
	ErrInvalidTransactionMessage = errors.New("invalid transaction message")
	ErrPrivilegeEscalation       = errors.New("cross-program invocation with unauthorized signer or writable account")
)

// TransactionError reports the failing instruction of a transaction.
type TransactionError struct {
	Index int
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", e.Index, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// InstructionIndex returns the failing instruction index, or -1 when the
// error did not come from an instruction.
func InstructionIndex(err error) int {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr.Index
	}
	return -1
}

// IsAccountInUseError проверяет, был ли отказ вызван конфликтом блокировок.
func IsAccountInUseError(err error) bool {
	return errors.Is(err, ErrAccountInUse)
}

// IsBlockhashNotFoundError проверяет, устарел ли blockhash транзакции.
func IsBlockhashNotFoundError(err error) bool {
	return errors.Is(err, ErrBlockhashNotFound)
}
