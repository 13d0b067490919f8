package transaction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/export"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
	"github.com/rovshanmuradov/pump-curve/internal/wallet"
)

// SweepResult is the outcome of releasing one mint.
type SweepResult struct {
	Mint         solana.PublicKey
	Recipient    solana.PublicKey
	Signature    solana.Signature
	Slot         uint64
	LamportsSent uint64
	TokensSent   uint64
	Attempts     int
	Err          error
}

// Row converts the result into a report row.
func (r *SweepResult) Row() export.ReleaseRow {
	row := export.ReleaseRow{
		Mint:         r.Mint.String(),
		Recipient:    r.Recipient.String(),
		LamportsSent: r.LamportsSent,
		TokensSent:   r.TokensSent,
		Attempts:     r.Attempts,
	}
	if r.Signature != (solana.Signature{}) {
		row.Signature = r.Signature.String()
		row.Slot = r.Slot
	}
	if r.Err != nil {
		row.Error = r.Err.Error()
	}
	return row
}

// Sweeper releases the reserves of many mints concurrently.
type Sweeper struct {
	submitter    *Submitter
	programID    solana.PublicKey
	admin        *wallet.Wallet
	feeRecipient *solana.PublicKey
	workers      int
	logger       *zap.Logger
}

// NewSweeper creates a sweeper. feeRecipient is passed to every release
// when set; workers bounds the number of in-flight releases.
func NewSweeper(submitter *Submitter, programID solana.PublicKey, admin *wallet.Wallet, feeRecipient *solana.PublicKey, workers int, logger *zap.Logger) *Sweeper {
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{
		submitter:    submitter,
		programID:    programID,
		admin:        admin,
		feeRecipient: feeRecipient,
		workers:      workers,
		logger:       logger.Named("sweeper"),
	}
}

// Sweep releases every mint to recipient. Program failures are recorded
// per mint; any other failure cancels the sweep. Results keep the order
// of mints.
func (s *Sweeper) Sweep(ctx context.Context, recipient solana.PublicKey, mints []solana.PublicKey) ([]*SweepResult, error) {
	results := make([]*SweepResult, len(mints))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, mint := range mints {
		i, mint := i, mint
		results[i] = &SweepResult{Mint: mint, Recipient: recipient}
		g.Go(func() error {
			return s.release(gCtx, recipient, results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var lamports, tokens uint64
	for _, r := range results {
		lamports += r.LamportsSent
		tokens += r.TokensSent
	}
	s.logger.Info("Sweep finished",
		zap.Int("mints", len(mints)),
		zap.Uint64("lamports", lamports),
		zap.Uint64("tokens", tokens))
	return results, nil
}

func (s *Sweeper) release(ctx context.Context, recipient solana.PublicKey, out *SweepResult) error {
	ix, err := pump.NewReleaseReservesInstruction(s.programID, s.admin.PublicKey, out.Mint, recipient, s.feeRecipient)
	if err != nil {
		return fmt.Errorf("build release for %s: %w", out.Mint, err)
	}
	res, err := s.submitter.Submit(ctx, pump.InstructionReleaseReserves, s.admin, []solana.Instruction{ix})
	out.Attempts = res.Attempts
	if res.Status != nil {
		out.Signature = res.Signature
		out.Slot = res.Status.Slot
	}
	if err != nil {
		if ledger.IsProgramError(err) {
			out.Err = err
			s.logger.Warn("Release failed", zap.String("mint", out.Mint.String()), zap.Error(err))
			return nil
		}
		return fmt.Errorf("release %s: %w", out.Mint, err)
	}

	if res.Status.ReturnData == nil {
		return fmt.Errorf("release %s: no return data", out.Mint)
	}
	released, err := pump.DecodeReleaseResult(res.Status.ReturnData.Data)
	if err != nil {
		return fmt.Errorf("release %s: %w", out.Mint, err)
	}
	out.LamportsSent = released.LamportsSent
	out.TokensSent = released.TokensSent
	return nil
}
