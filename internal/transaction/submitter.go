package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/wallet"
)

const DefaultMaxTries = 5

// Recorder receives submission metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordTransaction(ctx context.Context, instruction string, duration time.Duration, success bool)
	RecordLockConflict()
	RecordRetry()
}

type nopRecorder struct{}

func (nopRecorder) RecordTransaction(context.Context, string, time.Duration, bool) {}
func (nopRecorder) RecordLockConflict()                                             {}
func (nopRecorder) RecordRetry()                                                    {}

// Result describes a submitted transaction. Status is set whenever the
// transaction was committed, including when its instructions failed.
type Result struct {
	Signature solana.Signature
	Status    *blockchain.TransactionStatus
	Attempts  int
}

// Submitter builds, signs and sends transactions, resubmitting those
// rejected for account lock conflicts or an expired blockhash.
type Submitter struct {
	client     blockchain.Client
	logger     *zap.Logger
	recorder   Recorder
	maxTries   uint
	newBackOff func() backoff.BackOff
	limiter    *rate.Limiter
}

type Option func(*Submitter)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Submitter) { s.recorder = r }
}

// WithMaxTries caps the number of attempts per transaction.
func WithMaxTries(n uint) Option {
	return func(s *Submitter) { s.maxTries = n }
}

// WithBackOff sets the retry policy factory; each Submit gets a fresh policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Submitter) { s.newBackOff = f }
}

// WithRateLimit caps sends at perSecond with the given burst. Retries
// count against the same budget. perSecond <= 0 disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Submitter) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewSubmitter(client blockchain.Client, logger *zap.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		client:   client,
		logger:   logger.Named("submitter"),
		recorder: nopRecorder{},
		maxTries: DefaultMaxTries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxTries == 0 {
		s.maxTries = 1
	}
	return s
}

// Submit sends ixs paid and signed by payer plus any extra signers. name
// labels metrics and logs. A transaction committed with a failed
// instruction returns both its Result and the instruction error.
func (s *Submitter) Submit(ctx context.Context, name string, payer *wallet.Wallet, ixs []solana.Instruction, signers ...solana.PrivateKey) (*Result, error) {
	start := time.Now()
	res := &Result{}

	op := func() (*Result, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return res, backoff.Permanent(fmt.Errorf("rate limit: %w", err))
			}
		}
		res.Attempts++
		hash, err := s.client.GetRecentBlockhash(ctx)
		if err != nil {
			return res, backoff.Permanent(fmt.Errorf("failed to get recent blockhash: %w", err))
		}
		tx, err := solana.NewTransaction(ixs, hash, solana.TransactionPayer(payer.PublicKey))
		if err != nil {
			return res, backoff.Permanent(fmt.Errorf("failed to create transaction: %w", err))
		}
		if err := payer.SignTransaction(tx, signers...); err != nil {
			return res, backoff.Permanent(fmt.Errorf("failed to sign transaction: %w", err))
		}

		sig, sendErr := s.client.SendTransaction(ctx, tx)
		switch {
		case sendErr == nil:
		case ledger.IsAccountInUseError(sendErr):
			s.recorder.RecordLockConflict()
			return res, sendErr
		case ledger.IsBlockhashNotFoundError(sendErr):
			return res, sendErr
		case !ledger.IsProgramError(sendErr):
			return res, backoff.Permanent(fmt.Errorf("transaction rejected: %w", sendErr))
		}

		status, err := s.client.GetTransaction(ctx, sig)
		if err != nil {
			return res, backoff.Permanent(fmt.Errorf("failed to fetch status of %s: %w", sig, err))
		}
		res.Signature = sig
		res.Status = status
		if sendErr != nil {
			return res, backoff.Permanent(sendErr)
		}
		return res, nil
	}

	notify := func(err error, d time.Duration) {
		s.recorder.RecordRetry()
		s.logger.Debug("Resubmitting transaction",
			zap.String("instruction", name),
			zap.Int("attempt", res.Attempts),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(notify))

	s.recorder.RecordTransaction(ctx, name, time.Since(start), err == nil)
	if err != nil {
		s.logger.Debug("Transaction failed",
			zap.String("instruction", name),
			zap.Int("attempts", res.Attempts),
			zap.Error(err))
		return res, err
	}
	s.logger.Debug("Transaction committed",
		zap.String("instruction", name),
		zap.String("signature", res.Signature.String()),
		zap.Int("attempts", res.Attempts))
	return res, nil
}
