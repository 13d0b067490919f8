package ledger

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
)

var (
	NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")
	BPFLoaderID    = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
)

// Account is the stored state of a single address.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

func emptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return emptyAccount()
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       data,
		Executable: a.Executable,
	}
}

// IsEmpty reports whether the account holds nothing and would be purged.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && len(a.Data) == 0 && !a.Executable)
}

func (a *Account) equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner.Equals(b.Owner) &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

func (a *Account) info() *blockchain.AccountInfo {
	c := a.Clone()
	return &blockchain.AccountInfo{
		Lamports:   c.Lamports,
		Owner:      c.Owner,
		Data:       c.Data,
		Executable: c.Executable,
	}
}
