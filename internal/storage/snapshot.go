// internal/storage/snapshot.go
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
)

type snapshotFile struct {
	Slot     uint64        `yaml:"slot"`
	Accounts []accountFile `yaml:"accounts"`
}

type accountFile struct {
	Pubkey     string `yaml:"pubkey"`
	Lamports   uint64 `yaml:"lamports"`
	Owner      string `yaml:"owner"`
	Executable bool   `yaml:"executable,omitempty"`
	Data       string `yaml:"data,omitempty"`
}

// YAMLSnapshotStore keeps a ledger snapshot in a single YAML file.
// Keys are base58, account data is base64.
type YAMLSnapshotStore struct {
	path   string
	logger *zap.Logger
}

var _ SnapshotStore = (*YAMLSnapshotStore)(nil)

func NewYAMLSnapshotStore(path string, logger *zap.Logger) *YAMLSnapshotStore {
	return &YAMLSnapshotStore{path: path, logger: logger.Named("snapshot_store")}
}

// Load reads the snapshot. A missing file yields ErrNoSnapshot.
func (s *YAMLSnapshotStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	snap := &ledger.Snapshot{Slot: file.Slot, Accounts: make(map[solana.PublicKey]*ledger.Account, len(file.Accounts))}
	for _, a := range file.Accounts {
		key, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Pubkey, err)
		}
		owner, err := solana.PublicKeyFromBase58(a.Owner)
		if err != nil {
			return nil, fmt.Errorf("owner of %s: %w", a.Pubkey, err)
		}
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return nil, fmt.Errorf("data of %s: %w", a.Pubkey, err)
		}
		snap.Accounts[key] = &ledger.Account{
			Lamports:   a.Lamports,
			Owner:      owner,
			Data:       data,
			Executable: a.Executable,
		}
	}

	s.logger.Debug("Snapshot loaded",
		zap.String("path", s.path),
		zap.Uint64("slot", snap.Slot),
		zap.Int("accounts", len(snap.Accounts)))
	return snap, nil
}

// Save writes the snapshot through a temporary file and a rename.
// Executable accounts are skipped: programs are registered at startup.
func (s *YAMLSnapshotStore) Save(ctx context.Context, snap *ledger.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file := snapshotFile{Slot: snap.Slot}
	for key, acc := range snap.Accounts {
		if acc.Executable {
			continue
		}
		file.Accounts = append(file.Accounts, accountFile{
			Pubkey:   key.String(),
			Lamports: acc.Lamports,
			Owner:    acc.Owner.String(),
			Data:     base64.StdEncoding.EncodeToString(acc.Data),
		})
	}
	sort.Slice(file.Accounts, func(i, j int) bool { return file.Accounts[i].Pubkey < file.Accounts[j].Pubkey })

	raw, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Debug("Snapshot saved",
		zap.String("path", s.path),
		zap.Uint64("slot", snap.Slot),
		zap.Int("accounts", len(file.Accounts)))
	return nil
}
