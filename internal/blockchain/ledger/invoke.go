package ledger

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
)

// MaxInvokeDepth bounds the instruction stack, top-level instruction included.
const MaxInvokeDepth = 5

// Program executes instructions addressed to its id.
type Program interface {
	Process(ctx *InvokeContext, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx *InvokeContext, data []byte) error

func (f ProgramFunc) Process(ctx *InvokeContext, data []byte) error {
	return f(ctx, data)
}

// txContext is shared by every invocation of one transaction.
type txContext struct {
	view       *view
	programs   map[solana.PublicKey]Program
	rent       Rent
	logs       []string
	returnData *blockchain.ReturnData
}

func (tx *txContext) logf(format string, args ...interface{}) {
	tx.logs = append(tx.logs, fmt.Sprintf(format, args...))
}

func (tx *txContext) process(programID solana.PublicKey, metas []*solana.AccountMeta, data []byte, depth int) error {
	prog, ok := tx.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	tx.logf("Program %s invoke [%d]", programID, depth)
	ic := &InvokeContext{
		tx:        tx,
		programID: programID,
		accounts:  metas,
		depth:     depth,
	}
	if err := prog.Process(ic, data); err != nil {
		tx.logf("Program %s failed: %v", programID, err)
		return err
	}
	tx.logf("Program %s success", programID)
	return nil
}

// InvokeContext is the per-instruction handle a program works through.
// Account access is limited to the instruction's own account list.
type InvokeContext struct {
	tx        *txContext
	programID solana.PublicKey
	accounts  []*solana.AccountMeta
	depth     int
}

// ProgramID returns the id of the executing program.
func (c *InvokeContext) ProgramID() solana.PublicKey {
	return c.programID
}

// Depth returns the instruction stack height, 1 for top-level instructions.
func (c *InvokeContext) Depth() int {
	return c.depth
}

// NumAccounts returns the number of accounts passed to the instruction.
func (c *InvokeContext) NumAccounts() int {
	return len(c.accounts)
}

// Key returns the i-th account key of the instruction.
func (c *InvokeContext) Key(i int) (solana.PublicKey, error) {
	if i < 0 || i >= len(c.accounts) {
		return solana.PublicKey{}, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughAccountKeys, i+1, len(c.accounts))
	}
	return c.accounts[i].PublicKey, nil
}

func (c *InvokeContext) meta(key solana.PublicKey) (signer, writable, found bool) {
	for _, m := range c.accounts {
		if m.PublicKey.Equals(key) {
			found = true
			signer = signer || m.IsSigner
			writable = writable || m.IsWritable
		}
	}
	return signer, writable, found
}

// IsSigner reports whether key signed this instruction.
func (c *InvokeContext) IsSigner(key solana.PublicKey) bool {
	signer, _, _ := c.meta(key)
	return signer
}

// IsWritable reports whether key is writable in this instruction.
func (c *InvokeContext) IsWritable(key solana.PublicKey) bool {
	_, writable, _ := c.meta(key)
	return writable
}

// Account returns a copy of the account stored at key.
func (c *InvokeContext) Account(key solana.PublicKey) (*Account, error) {
	if _, _, ok := c.meta(key); !ok && !key.Equals(c.programID) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, key)
	}
	return c.tx.view.get(key)
}

// SetAccount replaces the account at key, enforcing the ownership rules:
// only the owner may debit lamports, change data or reassign the account.
func (c *InvokeContext) SetAccount(key solana.PublicKey, next *Account) error {
	_, writable, ok := c.meta(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotDeclared, key)
	}
	if !writable {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, key)
	}
	cur, err := c.tx.view.get(key)
	if err != nil {
		return err
	}
	if cur.Executable {
		return fmt.Errorf("%w: %s is executable", ErrReadonlyAccount, key)
	}

	owned := cur.Owner.Equals(c.programID)
	if next.Lamports < cur.Lamports && !owned {
		return fmt.Errorf("%w: %s", ErrExternalLamportSpend, key)
	}
	if !bytes.Equal(next.Data, cur.Data) && !owned {
		return fmt.Errorf("%w: %s", ErrExternalDataModified, key)
	}
	if !next.Owner.Equals(cur.Owner) && !owned {
		return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, key)
	}
	return c.tx.view.set(key, next)
}

// MoveLamports debits from and credits to. from must be owned by the program.
func (c *InvokeContext) MoveLamports(from, to solana.PublicKey, lamports uint64) error {
	if lamports == 0 {
		return nil
	}
	src, err := c.Account(from)
	if err != nil {
		return err
	}
	if src.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, from, src.Lamports, lamports)
	}
	src.Lamports -= lamports
	if err := c.SetAccount(from, src); err != nil {
		return err
	}

	dst, err := c.Account(to)
	if err != nil {
		return err
	}
	dst.Lamports += lamports
	return c.SetAccount(to, dst)
}

// Rent returns the rent parameters of the ledger.
func (c *InvokeContext) Rent() Rent {
	return c.tx.rent
}

// Log appends a program log line.
func (c *InvokeContext) Log(format string, args ...interface{}) {
	c.tx.logf("Program log: "+format, args...)
}

// LogData appends a "Program data:" line, the carrier of encoded events.
func (c *InvokeContext) LogData(chunks ...[]byte) {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, base64.StdEncoding.EncodeToString(chunk))
	}
	c.tx.logf("%s%s", ProgramDataPrefix, strings.Join(parts, " "))
}

// SetReturnData records data as the return value of the executing program.
func (c *InvokeContext) SetReturnData(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.tx.returnData = &blockchain.ReturnData{ProgramID: c.programID, Data: buf}
}

// ReturnData returns the last return data set in this transaction.
func (c *InvokeContext) ReturnData() *blockchain.ReturnData {
	return c.tx.returnData
}

// Invoke executes a cross-program instruction with the caller's privileges.
func (c *InvokeContext) Invoke(ix solana.Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned executes a cross-program instruction. Each seed set is turned
// into a program address of the calling program that counts as a signer for
// this invocation and the calls nested in it.
func (c *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if c.depth+1 > MaxInvokeDepth {
		return ErrCallDepthExceeded
	}

	pdaSigners := make(map[solana.PublicKey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		pda, err := solana.CreateProgramAddress(seeds, c.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		pdaSigners[pda] = struct{}{}
	}

	programID := ix.ProgramID()
	if _, _, ok := c.meta(programID); !ok {
		return fmt.Errorf("%w: program %s", ErrAccountNotDeclared, programID)
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
	}

	metas := make([]*solana.AccountMeta, 0, len(ix.Accounts()))
	for _, m := range ix.Accounts() {
		signer, writable, ok := c.meta(m.PublicKey)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotDeclared, m.PublicKey)
		}
		if m.IsWritable && !writable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, m.PublicKey)
		}
		if m.IsSigner {
			if _, pda := pdaSigners[m.PublicKey]; !signer && !pda {
				return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, m.PublicKey)
			}
		}
		cp := *m
		metas = append(metas, &cp)
	}

	return c.tx.process(programID, metas, data, c.depth+1)
}
