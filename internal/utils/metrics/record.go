// internal/utils/metrics/record.go
package metrics

import (
	"context"
	"time"
)

const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// RecordTransaction записывает метрики транзакции с учетом контекста
func (c *Collector) RecordTransaction(ctx context.Context, instruction string, duration time.Duration, success bool) {
	select {
	case <-ctx.Done():
		c.transactions.WithLabelValues(instruction, StatusCancelled).Inc()
		return
	default:
	}

	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	c.transactions.WithLabelValues(instruction, status).Inc()
	c.duration.WithLabelValues(instruction).Observe(duration.Seconds())
}

// RecordLockConflict учитывает отказ из-за занятого аккаунта.
func (c *Collector) RecordLockConflict() {
	c.lockConflicts.Inc()
}

// RecordRetry учитывает повторную отправку.
func (c *Collector) RecordRetry() {
	c.retries.Inc()
}

// RecordRelease учитывает выведенные из кривой резервы.
func (c *Collector) RecordRelease(lamports, tokens uint64) {
	c.lamportsReleased.Add(float64(lamports))
	c.tokensReleased.Add(float64(tokens))
}

// RecordMigration учитывает миграцию через адаптер.
func (c *Collector) RecordMigration(adapter string) {
	c.migrations.WithLabelValues(adapter).Inc()
}
