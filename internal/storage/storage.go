// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

// ErrNoSnapshot is returned when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("snapshot not found")

// SnapshotStore определяет интерфейс хранилища состояния леджера
type SnapshotStore interface {
	Load(ctx context.Context) (*ledger.Snapshot, error)
	Save(ctx context.Context, snap *ledger.Snapshot) error
}

// Journal определяет интерфейс журнала событий программы
type Journal interface {
	Append(ctx context.Context, rec *Record) error
	Records(ctx context.Context) ([]*Record, error)
}
