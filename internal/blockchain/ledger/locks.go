package ledger

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// accountLocks is the in-flight lock table. A transaction takes write locks on
// its writable accounts and read locks on the rest; any conflict rejects the
// whole set.
type accountLocks struct {
	mu    sync.Mutex
	write map[solana.PublicKey]struct{}
	read  map[solana.PublicKey]int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		write: make(map[solana.PublicKey]struct{}),
		read:  make(map[solana.PublicKey]int),
	}
}

func (l *accountLocks) lock(writable, readonly []solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range writable {
		if _, ok := l.write[key]; ok {
			return fmt.Errorf("%w: %s", ErrAccountInUse, key)
		}
		if l.read[key] > 0 {
			return fmt.Errorf("%w: %s", ErrAccountInUse, key)
		}
	}
	for _, key := range readonly {
		if _, ok := l.write[key]; ok {
			return fmt.Errorf("%w: %s", ErrAccountInUse, key)
		}
	}

	for _, key := range writable {
		l.write[key] = struct{}{}
	}
	for _, key := range readonly {
		l.read[key]++
	}
	return nil
}

func (l *accountLocks) unlock(writable, readonly []solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, key := range writable {
		delete(l.write, key)
	}
	for _, key := range readonly {
		if l.read[key] <= 1 {
			delete(l.read, key)
			continue
		}
		l.read[key]--
	}
}

func (l *accountLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.write) + len(l.read)
}
