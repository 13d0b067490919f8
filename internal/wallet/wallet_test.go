package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWallet("admin", base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
	assert.Equal(t, "admin", w.Name)

	_, err = NewWallet("short", base58.Encode(key[:32]))
	assert.Error(t, err)
	_, err = NewWallet("garbage", "0OIl")
	assert.Error(t, err)
}

func TestGetATACaches(t *testing.T) {
	w, err := Generate("user")
	require.NoError(t, err)
	mint := solana.NewWallet().PublicKey()

	ata, err := w.GetATA(mint)
	require.NoError(t, err)
	want, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)
	assert.Equal(t, want, ata)
	assert.Equal(t, want, w.ATACache[mint])
}

func TestKeyringRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	k := make(Keyring)
	for _, name := range []string{"creator", "admin"} {
		w, err := Generate(name)
		require.NoError(t, err)
		k.Add(w)
	}
	require.NoError(t, SaveWallets(path, k))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadWallets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "creator"}, loaded.Names())
	admin, err := loaded.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, k["admin"].PublicKey, admin.PublicKey)

	_, err = loaded.Get("nobody")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestLoadWalletsRejectsMismatchedPublicKey(t *testing.T) {
	w, err := Generate("admin")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	body := "wallets:\n  - name: admin\n    public_key: " + solana.NewWallet().PublicKey().String() +
		"\n    private_key: " + base58.Encode(w.PrivateKey) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err = LoadWallets(path)
	assert.Error(t, err)
}
