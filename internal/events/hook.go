// internal/events/hook.go
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-curve/internal/blockchain"
	"github.com/rovshanmuradov/pump-curve/internal/blockchain/ledger"
	"github.com/rovshanmuradov/pump-curve/internal/program/pump"
)

// LedgerHook returns a commit hook that decodes program events from the
// transaction logs and delivers them synchronously, in log order.
func LedgerHook(bus *Bus, logger *zap.Logger) ledger.CommitHook {
	logger = logger.Named("ledger_hook")
	return func(status *blockchain.TransactionStatus) {
		ctx := context.Background()
		now := time.Now().UTC()

		if status.Err != nil {
			ev := &TransactionFailedEvent{
				BaseEvent: BaseEvent{EventType: TransactionFailed, EventTime: now},
				Signature: status.Signature,
				Slot:      status.Slot,
				Error:     status.Err,
			}
			if err := bus.PublishSync(ctx, ev); err != nil {
				logger.Warn("Failed to deliver transaction failure", zap.Error(err))
			}
			return
		}

		parsed, err := pump.ParseEvents(status.Logs)
		if err != nil {
			logger.Warn("Failed to parse program events",
				zap.String("signature", status.Signature.String()),
				zap.Error(err))
			return
		}
		for _, payload := range parsed {
			typ, ok := TypeOf(payload.EventName())
			if !ok {
				continue
			}
			ev := &ProgramEvent{
				BaseEvent: BaseEvent{EventType: typ, EventTime: now},
				Signature: status.Signature,
				Slot:      status.Slot,
				Payload:   payload,
			}
			if err := bus.PublishSync(ctx, ev); err != nil {
				logger.Warn("Failed to deliver program event",
					zap.String("event_type", string(typ)),
					zap.Error(err))
			}
		}
	}
}
