// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// ErrWalletNotFound возвращается, когда имени нет в связке ключей.
var ErrWalletNotFound = errors.New("wallet not found")

// Wallet представляет именованный кошелёк Solana.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
	ATACache   map[solana.PublicKey]solana.PublicKey // mint -> ATA
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key of %q: %w", name, err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length for %q: expected 64 bytes, got %d", name, len(privateKeyBytes))
	}
	return fromKey(name, solana.PrivateKey(privateKeyBytes)), nil
}

// Generate создаёт кошелёк со случайным ключом.
func Generate(name string) (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key for %q: %w", name, err)
	}
	return fromKey(name, key), nil
}

func fromKey(name string, key solana.PrivateKey) *Wallet {
	return &Wallet{
		Name:       name,
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ATACache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// SignTransaction подписывает транзакцию ключом кошелька и дополнительными
// ключами (например, ключом нового mint).
func (w *Wallet) SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		for i := range extra {
			if extra[i].PublicKey().Equals(key) {
				return &extra[i]
			}
		}
		return nil
	})
	return err
}

// GetATA возвращает адрес ассоциированного токен-аккаунта для mint.
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	if ata, ok := w.ATACache[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ATACache[mint] = ata
	return ata, nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// Keyring хранит кошельки по имени.
type Keyring map[string]*Wallet

type keyringFile struct {
	Wallets []walletEntry `yaml:"wallets"`
}

type walletEntry struct {
	Name       string `yaml:"name"`
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
}

// Get возвращает кошелёк по имени.
func (k Keyring) Get(name string) (*Wallet, error) {
	w, ok := k[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
	}
	return w, nil
}

// Add кладёт кошелёк в связку, заменяя одноимённый.
func (k Keyring) Add(w *Wallet) {
	k[w.Name] = w
}

// Names возвращает имена кошельков по алфавиту.
func (k Keyring) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadWallets загружает кошельки из YAML-файла со списком wallets.
func LoadWallets(path string) (Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	var file keyringFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wallets: %w", err)
	}

	k := make(Keyring, len(file.Wallets))
	for _, entry := range file.Wallets {
		w, err := NewWallet(entry.Name, entry.PrivateKey)
		if err != nil {
			return nil, err
		}
		if entry.PublicKey != "" && entry.PublicKey != w.PublicKey.String() {
			return nil, fmt.Errorf("wallet %q: public key %s does not match private key", entry.Name, entry.PublicKey)
		}
		k.Add(w)
	}
	return k, nil
}

// SaveWallets пишет связку ключей в YAML с правами 0600.
func SaveWallets(path string, k Keyring) error {
	var file keyringFile
	for _, name := range k.Names() {
		w := k[name]
		file.Wallets = append(file.Wallets, walletEntry{
			Name:       name,
			PublicKey:  w.PublicKey.String(),
			PrivateKey: base58.Encode(w.PrivateKey),
		})
	}
	raw, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode wallets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create wallets dir: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}
