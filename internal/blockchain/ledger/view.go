package ledger

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// store holds committed accounts.
type store struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

func newStore() *store {
	return &store{accounts: make(map[solana.PublicKey]*Account)}
}

func (s *store) get(key solana.PublicKey) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[key]
	if !ok {
		return nil
	}
	return acc.Clone()
}

func (s *store) put(key solana.PublicKey, acc *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(key, acc)
}

func (s *store) putLocked(key solana.PublicKey, acc *Account) {
	if acc.IsEmpty() {
		delete(s.accounts, key)
		return
	}
	s.accounts[key] = acc.Clone()
}

func (s *store) apply(changes map[solana.PublicKey]*Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, acc := range changes {
		s.putLocked(key, acc)
	}
}

// view is a transaction-scoped overlay over the store. Reads and writes are
// limited to the keys the transaction declared; nothing reaches the store
// until the caller applies changes().
type view struct {
	base    *store
	scope   map[solana.PublicKey]bool // key -> writable
	pending map[solana.PublicKey]*Account
}

func newView(base *store, scope map[solana.PublicKey]bool) *view {
	return &view{
		base:    base,
		scope:   scope,
		pending: make(map[solana.PublicKey]*Account, len(scope)),
	}
}

func (v *view) inScope(key solana.PublicKey) bool {
	_, ok := v.scope[key]
	return ok
}

func (v *view) writable(key solana.PublicKey) bool {
	return v.scope[key]
}

func (v *view) get(key solana.PublicKey) (*Account, error) {
	if !v.inScope(key) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, key)
	}
	if acc, ok := v.pending[key]; ok {
		return acc.Clone(), nil
	}
	if acc := v.base.get(key); acc != nil {
		return acc, nil
	}
	return emptyAccount(), nil
}

func (v *view) set(key solana.PublicKey, acc *Account) error {
	if !v.inScope(key) {
		return fmt.Errorf("%w: %s", ErrAccountNotDeclared, key)
	}
	if !v.writable(key) {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, key)
	}
	v.pending[key] = acc.Clone()
	return nil
}

// totalLamports sums balances over the declared keys.
func (v *view) totalLamports() uint128.Uint128 {
	total := uint128.Zero
	for key := range v.scope {
		acc, _ := v.get(key)
		total = total.Add64(acc.Lamports)
	}
	return total
}

func (v *view) changes() map[solana.PublicKey]*Account {
	return v.pending
}
