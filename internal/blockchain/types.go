// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// AccountInfo представляет снимок аккаунта, возвращаемый клиентом.
type AccountInfo struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

// ReturnData содержит данные, установленные программой через set_return_data.
type ReturnData struct {
	ProgramID solana.PublicKey
	Data      []byte
}

// TransactionStatus описывает результат обработанной транзакции.
type TransactionStatus struct {
	Signature  solana.Signature
	Slot       uint64
	Err        error
	Logs       []string
	ReturnData *ReturnData
	Fee        uint64
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err        error
	Logs       []string
	ReturnData *ReturnData
}

// Client определяет общий интерфейс для взаимодействия с леджером.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Отправить транзакцию.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// Симулировать транзакцию без фиксации изменений.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Получить информацию об аккаунте.
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*AccountInfo, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	// Получить статус обработанной транзакции.
	GetTransaction(ctx context.Context, signature solana.Signature) (*TransactionStatus, error)
}
