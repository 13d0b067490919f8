// Package ledger is a deterministic in-process runtime for Solana-style
// transactions. It verifies signatures, enforces recent blockhashes and
// account locks, executes instructions against a scoped view of the account
// store and commits the view only when every instruction succeeds.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
)

const (
	// MaxProcessingAge is the number of slots a blockhash stays valid.
	MaxProcessingAge = 150

	DefaultLamportsPerSignature = 5000

	ProgramDataPrefix   = "Program data: "
	ProgramReturnPrefix = "Program return: "
)

// CommitHook observes every processed transaction after it is recorded.
type CommitHook func(status *blockchain.TransactionStatus)

// Option configures a Ledger.
type Option func(*Ledger)

// WithRent overrides the rent parameters.
func WithRent(rent Rent) Option {
	return func(l *Ledger) { l.rent = rent }
}

// WithLamportsPerSignature overrides the signature fee.
func WithLamportsPerSignature(fee uint64) Option {
	return func(l *Ledger) { l.feePerSignature = fee }
}

// WithCommitHook registers a hook called after each processed transaction.
func WithCommitHook(hook CommitHook) Option {
	return func(l *Ledger) { l.hooks = append(l.hooks, hook) }
}

// Ledger is the in-process runtime. It implements blockchain.Client.
type Ledger struct {
	logger          *zap.Logger
	rent            Rent
	feePerSignature uint64

	progMu   sync.RWMutex
	programs map[solana.PublicKey]Program

	store *store
	locks *accountLocks

	mu          sync.Mutex
	slot        uint64
	blockhashes map[solana.Hash]uint64
	statuses    map[solana.Signature]*blockchain.TransactionStatus
	inflight    map[solana.Signature]struct{}
	hooks       []CommitHook
}

var _ blockchain.Client = (*Ledger)(nil)

// New creates a ledger at slot 0 with the built-in System, SPL Token and
// Associated Token Account programs and the native mint.
func New(logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		logger:          logger.Named("ledger"),
		rent:            DefaultRent(),
		feePerSignature: DefaultLamportsPerSignature,
		programs:        make(map[solana.PublicKey]Program),
		store:           newStore(),
		locks:           newAccountLocks(),
		blockhashes:     make(map[solana.Hash]uint64),
		statuses:        make(map[solana.Signature]*blockchain.TransactionStatus),
		inflight:        make(map[solana.Signature]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.blockhashes[blockhashForSlot(0)] = 0
	l.registerBuiltin(solana.SystemProgramID, systemProgram{})
	l.registerBuiltin(solana.TokenProgramID, tokenProgram{})
	l.registerBuiltin(solana.SPLAssociatedTokenAccountProgramID, associatedTokenProgram{})
	l.initNativeMint()

	return l
}

func (l *Ledger) registerBuiltin(id solana.PublicKey, p Program) {
	l.programs[id] = p
	l.store.put(id, &Account{Lamports: 1, Owner: NativeLoaderID, Executable: true})
}

func (l *Ledger) initNativeMint() {
	mint := &Mint{Decimals: NativeDecimals, IsInitialized: true}
	data, _ := mint.Pack()
	l.store.put(solana.SolMint, &Account{
		Lamports: l.rent.MinimumBalance(MintSize),
		Owner:    solana.TokenProgramID,
		Data:     data,
	})
}

// RegisterProgram deploys p at id.
func (l *Ledger) RegisterProgram(id solana.PublicKey, p Program) {
	l.progMu.Lock()
	l.programs[id] = p
	l.progMu.Unlock()

	if acc := l.store.get(id); acc == nil || !acc.Executable {
		l.store.put(id, &Account{Lamports: 1, Owner: BPFLoaderID, Executable: true})
	}
	l.logger.Debug("Program registered", zap.String("program_id", id.String()))
}

// Rent returns the rent parameters in force.
func (l *Ledger) Rent() Rent {
	return l.rent
}

// Slot returns the current slot.
func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

func blockhashForSlot(slot uint64) solana.Hash {
	var buf [16]byte
	copy(buf[:8], "slothash")
	binary.LittleEndian.PutUint64(buf[8:], slot)
	return solana.Hash(sha256.Sum256(buf[:]))
}

// GetRecentBlockhash returns the blockhash of the current slot.
func (l *Ledger) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return blockhashForSlot(l.slot), nil
}

// GetAccountInfo returns the committed account at pubkey, or nil when none exists.
func (l *Ledger) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*blockchain.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc := l.store.get(pubkey)
	if acc == nil {
		return nil, nil
	}
	return acc.info(), nil
}

// GetBalance returns the committed lamport balance of pubkey.
func (l *Ledger) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if acc := l.store.get(pubkey); acc != nil {
		return acc.Lamports, nil
	}
	return 0, nil
}

// GetTokenAccount returns the decoded token account at pubkey.
func (l *Ledger) GetTokenAccount(ctx context.Context, pubkey solana.PublicKey) (*TokenAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc := l.store.get(pubkey)
	if acc == nil || !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil
	}
	return UnpackTokenAccount(acc.Data)
}

// GetMint returns the decoded mint at pubkey.
func (l *Ledger) GetMint(ctx context.Context, pubkey solana.PublicKey) (*Mint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc := l.store.get(pubkey)
	if acc == nil || !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil
	}
	return UnpackMint(acc.Data)
}

// GetTransaction returns the recorded status of a processed transaction.
func (l *Ledger) GetTransaction(ctx context.Context, signature solana.Signature) (*blockchain.TransactionStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	status, ok := l.statuses[signature]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *status
	cp.Logs = append([]string(nil), status.Logs...)
	return &cp, nil
}

// Airdrop credits lamports to key outside of any transaction.
func (l *Ledger) Airdrop(ctx context.Context, key solana.PublicKey, lamports uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.locks.lock([]solana.PublicKey{key}, nil); err != nil {
		return err
	}
	defer l.locks.unlock([]solana.PublicKey{key}, nil)

	acc := l.store.get(key)
	if acc == nil {
		acc = emptyAccount()
	}
	acc.Lamports += lamports
	l.store.put(key, acc)
	l.logger.Debug("Airdrop", zap.String("account", key.String()), zap.Uint64("lamports", lamports))
	return nil
}

// SetAccount writes an account directly, bypassing programs. Used for
// genesis state and fixtures.
func (l *Ledger) SetAccount(key solana.PublicKey, acc *Account) {
	l.store.put(key, acc)
}

// message is a sanitized transaction message.
type message struct {
	signature solana.Signature
	keys      []solana.PublicKey
	signers   map[solana.PublicKey]bool
	writable  map[solana.PublicKey]bool
	tx        *solana.Transaction
}

func (m *message) lockSets() (writable, readonly []solana.PublicKey) {
	for _, key := range m.keys {
		if m.writable[key] {
			writable = append(writable, key)
		} else {
			readonly = append(readonly, key)
		}
	}
	return writable, readonly
}

func sanitize(tx *solana.Transaction, verify bool) (*message, error) {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	header := tx.Message.Header
	keys := []solana.PublicKey(tx.Message.AccountKeys)
	numSigners := int(header.NumRequiredSignatures)
	if numSigners == 0 || numSigners > len(keys) ||
		int(header.NumReadonlySignedAccounts) >= numSigners ||
		numSigners+int(header.NumReadonlyUnsignedAccounts) > len(keys) {
		return nil, ErrInvalidTransactionMessage
	}
	if len(tx.Signatures) != numSigners {
		return nil, fmt.Errorf("%w: have %d signatures, need %d", ErrMissingRequiredSignature, len(tx.Signatures), numSigners)
	}

	if verify {
		payload, err := tx.Message.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransactionMessage, err)
		}
		for i, sig := range tx.Signatures {
			if !sig.Verify(keys[i], payload) {
				return nil, fmt.Errorf("%w: %s", ErrSignatureFailure, keys[i])
			}
		}
	}

	m := &message{
		signature: tx.Signatures[0],
		keys:      keys,
		signers:   make(map[solana.PublicKey]bool, numSigners),
		writable:  make(map[solana.PublicKey]bool, len(keys)),
		tx:        tx,
	}
	writableSigned := numSigners - int(header.NumReadonlySignedAccounts)
	writableUnsigned := len(keys) - int(header.NumReadonlyUnsignedAccounts)
	for i, key := range keys {
		if i < numSigners {
			m.signers[key] = true
			m.writable[key] = i < writableSigned
			continue
		}
		m.writable[key] = i < writableUnsigned
	}
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, ErrInvalidTransactionMessage
		}
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				return nil, ErrInvalidTransactionMessage
			}
		}
	}
	return m, nil
}

// outcome is the result of running a message against a view.
type outcome struct {
	changes    map[solana.PublicKey]*Account
	logs       []string
	returnData *blockchain.ReturnData
	fee        uint64
	err        error
}

func (l *Ledger) programSnapshot() map[solana.PublicKey]Program {
	l.progMu.RLock()
	defer l.progMu.RUnlock()
	programs := make(map[solana.PublicKey]Program, len(l.programs))
	for id, p := range l.programs {
		programs[id] = p
	}
	return programs
}

// run executes every instruction of m in a fresh view. The fee is charged to
// the fee payer whether or not the instructions succeed.
func (l *Ledger) run(m *message) (*outcome, error) {
	payer := m.keys[0]
	fee := l.feePerSignature * uint64(len(m.tx.Signatures))
	payerAcc := l.store.get(payer)
	if payerAcc == nil || payerAcc.Lamports < fee {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientFundsForFee, payer)
	}
	if !m.writable[payer] {
		return nil, fmt.Errorf("%w: fee payer must be writable", ErrInvalidTransactionMessage)
	}
	payerAcc.Lamports -= fee

	v := newView(l.store, m.writable)
	v.pending[payer] = payerAcc.Clone()
	tx := &txContext{
		view:     v,
		programs: l.programSnapshot(),
		rent:     l.rent,
	}

	err := l.runInstructions(tx, m)
	if err == nil {
		err = l.checkRent(v)
	}
	if err != nil {
		return &outcome{
			changes: map[solana.PublicKey]*Account{payer: payerAcc},
			logs:    tx.logs,
			fee:     fee,
			err:     err,
		}, nil
	}
	if tx.returnData != nil {
		tx.logf("%s%s %s", ProgramReturnPrefix, tx.returnData.ProgramID, base64.StdEncoding.EncodeToString(tx.returnData.Data))
	}
	return &outcome{
		changes:    v.changes(),
		logs:       tx.logs,
		returnData: tx.returnData,
		fee:        fee,
	}, nil
}

func (l *Ledger) runInstructions(tx *txContext, m *message) error {
	for i, cix := range m.tx.Message.Instructions {
		programID := m.keys[cix.ProgramIDIndex]
		metas := make([]*solana.AccountMeta, 0, len(cix.Accounts))
		for _, idx := range cix.Accounts {
			key := m.keys[idx]
			metas = append(metas, &solana.AccountMeta{
				PublicKey:  key,
				IsSigner:   m.signers[key],
				IsWritable: m.writable[key],
			})
		}

		before := tx.view.totalLamports()
		if err := tx.process(programID, metas, cix.Data, 1); err != nil {
			return &TransactionError{Index: i, Err: err}
		}
		if !tx.view.totalLamports().Equals(before) {
			return &TransactionError{Index: i, Err: ErrUnbalancedInstruction}
		}
	}
	return nil
}

func (l *Ledger) checkRent(v *view) error {
	for key, acc := range v.changes() {
		if acc.Executable || len(acc.Data) == 0 || acc.Lamports == 0 {
			continue
		}
		if !l.rent.IsExempt(acc.Lamports, len(acc.Data)) {
			return fmt.Errorf("%w: %s holds %d, needs %d", ErrRentNotExempt, key, acc.Lamports, l.rent.MinimumBalance(len(acc.Data)))
		}
	}
	return nil
}

// admit checks the blockhash and replay status and marks the signature in flight.
func (l *Ledger) admit(m *message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.blockhashes[m.tx.Message.RecentBlockhash]
	if !ok || l.slot-slot > MaxProcessingAge {
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, m.tx.Message.RecentBlockhash)
	}
	if _, done := l.statuses[m.signature]; done {
		return ErrAlreadyProcessed
	}
	if _, busy := l.inflight[m.signature]; busy {
		return ErrAlreadyProcessed
	}
	l.inflight[m.signature] = struct{}{}
	return nil
}

// SendTransaction verifies, executes and commits tx. The returned error is
// nil only when every instruction succeeded; instruction failures are
// reported as *TransactionError and still charge the fee.
func (l *Ledger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	m, err := sanitize(tx, true)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := l.admit(m); err != nil {
		return m.signature, err
	}
	defer func() {
		l.mu.Lock()
		delete(l.inflight, m.signature)
		l.mu.Unlock()
	}()

	writable, readonly := m.lockSets()
	if err := l.locks.lock(writable, readonly); err != nil {
		l.logger.Debug("Lock conflict", zap.String("signature", m.signature.String()), zap.Error(err))
		return m.signature, err
	}
	defer l.locks.unlock(writable, readonly)

	out, err := l.run(m)
	if err != nil {
		return m.signature, err
	}
	status := l.commit(m.signature, out)

	for _, hook := range l.hooks {
		hook(status)
	}
	return m.signature, out.err
}

func (l *Ledger) commit(sig solana.Signature, out *outcome) *blockchain.TransactionStatus {
	l.store.apply(out.changes)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	l.blockhashes[blockhashForSlot(l.slot)] = l.slot
	if l.slot > MaxProcessingAge {
		delete(l.blockhashes, blockhashForSlot(l.slot-MaxProcessingAge-1))
	}
	status := &blockchain.TransactionStatus{
		Signature:  sig,
		Slot:       l.slot,
		Err:        out.err,
		Logs:       out.logs,
		ReturnData: out.returnData,
		Fee:        out.fee,
	}
	l.statuses[sig] = status

	if out.err != nil {
		l.logger.Debug("Transaction failed",
			zap.String("signature", sig.String()),
			zap.Uint64("slot", l.slot),
			zap.Error(out.err))
	} else {
		l.logger.Debug("Transaction committed",
			zap.String("signature", sig.String()),
			zap.Uint64("slot", l.slot),
			zap.Int("accounts", len(out.changes)))
	}
	cp := *status
	return &cp
}

// SimulateTransaction executes tx against the current state without
// committing. Signatures are not verified.
func (l *Ledger) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := sanitize(tx, false)
	if err != nil {
		return nil, err
	}
	out, err := l.run(m)
	if err != nil {
		return nil, err
	}
	return &blockchain.SimulationResult{
		Err:        out.err,
		Logs:       out.logs,
		ReturnData: out.returnData,
	}, nil
}

// ProgramData extracts the base64 payloads of "Program data:" log lines.
func ProgramData(logs []string) ([][]byte, error) {
	var out [][]byte
	for _, line := range logs {
		if !strings.HasPrefix(line, ProgramDataPrefix) {
			continue
		}
		for _, part := range strings.Fields(strings.TrimPrefix(line, ProgramDataPrefix)) {
			raw, err := base64.StdEncoding.DecodeString(part)
			if err != nil {
				return nil, fmt.Errorf("decode program data: %w", err)
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// Accounts returns the committed account keys in a stable order.
func (l *Ledger) Accounts() []solana.PublicKey {
	l.store.mu.RLock()
	keys := make([]solana.PublicKey, 0, len(l.store.accounts))
	for key := range l.store.accounts {
		keys = append(keys, key)
	}
	l.store.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// IsProgramError reports whether err came from an instruction rather than
// from transaction admission.
func IsProgramError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}
