package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessedTotal counts jobs by outcome (completed/duplicate/failed).
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_jobs_processed_total",
			Help: "Sentiment staking jobs by outcome",
		},
		[]string{"outcome"},
	)

	StakeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_stake_operations_total",
			Help: "Stake execution requests by operation",
		},
		[]string{"operation"},
	)

	SentimentScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rebalancer_sentiment_score",
			Help:    "Distribution of sentiment scores",
			Buckets: prometheus.LinearBuckets(-100, 25, 9),
		},
	)

	// CircuitBreakerState tracks upstream breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rebalancer_circuit_breaker_state",
			Help: "Current circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)
)
