// internal/utils/metrics/collector.go
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pump_curve"

// MetricType представляет тип метрики
type MetricType string

const (
	TransactionCounterType  MetricType = "transaction_counter"
	TransactionDurationType MetricType = "transaction_duration"
	LockConflictType        MetricType = "lock_conflicts"
	RetryCounterType        MetricType = "retries"
	LamportsReleasedType    MetricType = "lamports_released"
	TokensReleasedType      MetricType = "tokens_released"
	MigrationCounterType    MetricType = "migrations"
)

// Collector владеет метриками клиента и ledger-событий.
type Collector struct {
	metrics map[MetricType]prometheus.Collector

	transactions     *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	lockConflicts    prometheus.Counter
	retries          prometheus.Counter
	lamportsReleased prometheus.Counter
	tokensReleased   prometheus.Counter
	migrations       *prometheus.CounterVec
}

// NewCollector создает метрики и регистрирует их в reg.
// nil reg означает prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions processed",
			},
			[]string{"instruction", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Transaction submit duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"instruction"},
		),
		lockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_conflicts_total",
			Help:      "Transactions rejected because an account was locked",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Transaction resubmissions",
		}),
		lamportsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lamports_released_total",
			Help:      "Lamports swept from bonding curves",
		}),
		tokensReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_released_total",
			Help:      "Base units of tokens swept from bonding curves",
		}),
		migrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_total",
				Help:      "Completed migrations by adapter program",
			},
			[]string{"adapter"},
		),
	}
	c.metrics = map[MetricType]prometheus.Collector{
		TransactionCounterType:  c.transactions,
		TransactionDurationType: c.duration,
		LockConflictType:        c.lockConflicts,
		RetryCounterType:        c.retries,
		LamportsReleasedType:    c.lamportsReleased,
		TokensReleasedType:      c.tokensReleased,
		MigrationCounterType:    c.migrations,
	}
	for metricType, metric := range c.metrics {
		if err := reg.Register(metric); err != nil {
			return nil, fmt.Errorf("register %s: %w", metricType, err)
		}
	}
	return c, nil
}

// Reset сбрасывает векторные метрики (полезно для тестирования)
func (c *Collector) Reset() {
	for _, value := range c.metrics {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
	}
}
