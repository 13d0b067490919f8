package pump

import (
	"errors"
	"fmt"
)

// ErrorCodeOffset is the first custom error code of the program.
const ErrorCodeOffset = 6000

// Error is a program error with a stable Anchor custom code. Two errors
// match under errors.Is when their codes are equal, so wrapped values with
// extra context still compare against the package vars below.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("custom program error: 0x%x %s: %s", e.Code, e.Name, e.Msg)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var registry []*Error

func newError(name, msg string) *Error {
	e := &Error{Code: ErrorCodeOffset + uint32(len(registry)), Name: name, Msg: msg}
	registry = append(registry, e)
	return e
}

// Program errors. The declaration order fixes the codes; append only.
var (
	ErrProgramPaused         = newError("ProgramPaused", "Program is paused")
	ErrProgramCompleted      = newError("ProgramCompleted", "Program is completed")
	ErrNotAuthorized         = newError("NotAuthorized", "Signer is not the config authority")
	ErrUnexpectedProgramID   = newError("UnexpectedProgramId", "Adapter program does not match the configured program")
	ErrCurveNotCompleted     = newError("CurveNotCompleted", "Bonding curve has not reached its limit")
	ErrCurveAlreadyCompleted = newError("CurveAlreadyCompleted", "Bonding curve is already completed")
	ErrCurveAlreadyMigrated  = newError("CurveAlreadyMigrated", "Bonding curve is already migrated")
	ErrIncorrectFeeRecipient = newError("IncorrectFeeRecipient", "Fee recipient does not match the config")
	ErrSlippageExceeded      = newError("SlippageExceeded", "Output is below the requested minimum")
	ErrInvalidAmount         = newError("InvalidAmount", "Amount must be positive")
	ErrInvalidDirection      = newError("InvalidDirection", "Direction must be 0 (buy) or 1 (sell)")
	ErrInvalidAccount        = newError("InvalidAccount", "Account does not match the expected address or layout")
	ErrMathOverflow          = newError("MathOverflow", "Arithmetic overflow")
	ErrLaunchPaused          = newError("LaunchPaused", "Launches are paused")
	ErrSwapPaused            = newError("SwapPaused", "Swaps are paused")
	ErrCurveNotMigrated      = newError("CurveNotMigrated", "Bonding curve has not been migrated")
	ErrInvalidArgument       = newError("InvalidArgument", "Instruction argument out of range")
	ErrUnknownInstruction    = newError("UnknownInstruction", "Instruction discriminator not recognized")
)

// Errors returns every program error in code order.
func Errors() []*Error {
	out := make([]*Error, len(registry))
	copy(out, registry)
	return out
}

// CodeOf extracts the custom code from a program error anywhere in err's chain.
func CodeOf(err error) (uint32, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// ErrorByCode looks up a program error by its custom code.
func ErrorByCode(code uint32) (*Error, bool) {
	if code < ErrorCodeOffset || int(code-ErrorCodeOffset) >= len(registry) {
		return nil, false
	}
	return registry[code-ErrorCodeOffset], true
}

// IsPausedError reports whether err is one of the pause gates.
func IsPausedError(err error) bool {
	return errors.Is(err, ErrProgramPaused) || errors.Is(err, ErrLaunchPaused) || errors.Is(err, ErrSwapPaused)
}

// IsSlippageExceededError reports whether err is a slippage failure.
func IsSlippageExceededError(err error) bool {
	return errors.Is(err, ErrSlippageExceeded)
}

// IsAlreadyMigratedError reports whether err means the migration already
// happened, either for the curve or for the whole program.
func IsAlreadyMigratedError(err error) bool {
	return errors.Is(err, ErrCurveAlreadyMigrated) || errors.Is(err, ErrProgramCompleted)
}

func withDetail(base *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
