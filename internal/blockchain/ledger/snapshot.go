package ledger

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
)

// Snapshot is a serializable copy of the committed state.
type Snapshot struct {
	Slot     uint64
	Accounts map[solana.PublicKey]*Account
}

// Snapshot copies the committed state. Program accounts are included;
// program code is not.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	slot := l.slot
	l.mu.Unlock()

	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	accounts := make(map[solana.PublicKey]*Account, len(l.store.accounts))
	for key, acc := range l.store.accounts {
		accounts[key] = acc.Clone()
	}
	return &Snapshot{Slot: slot, Accounts: accounts}
}

// Restore replaces the committed state with s. Registered programs stay in
// place; the blockhash window restarts at s.Slot.
func (l *Ledger) Restore(s *Snapshot) {
	l.store.mu.Lock()
	for key, acc := range l.store.accounts {
		if acc.Executable {
			continue
		}
		delete(l.store.accounts, key)
	}
	for key, acc := range s.Accounts {
		l.store.putLocked(key, acc)
	}
	l.store.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot = s.Slot
	l.blockhashes = map[solana.Hash]uint64{blockhashForSlot(s.Slot): s.Slot}
	l.statuses = make(map[solana.Signature]*blockchain.TransactionStatus)
}
