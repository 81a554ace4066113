// Package metrics exposes Prometheus metrics for the execution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "execbot"

var (
	// ChildOrdersTotal counts child orders by final classification.
	ChildOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "child_orders_total",
		Help:      "Child orders submitted, by strategy, side and status.",
	}, []string{"strategy", "side", "status"})

	// ParentOrdersTotal counts parent orders by outcome.
	ParentOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parent_orders_total",
		Help:      "Parent orders run, by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	ExecutionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "executions_active",
		Help:      "Parent orders currently executing.",
	})

	FilledQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filled_quantity_total",
		Help:      "Quantity filled, by symbol and side.",
	}, []string{"symbol", "side"})

	PenaltyQuantity = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "penalty_quantity_total",
		Help:      "Residual quantity handed to liquidation.",
	}, []string{"symbol"})

	PenaltyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "liquidation_penalty_total",
		Help:      "Liquidation penalty charged, in currency units.",
	}, []string{"symbol"})

	TradedValue = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traded_value_total",
		Help:      "Traded value, in currency units.",
	}, []string{"symbol", "side"})

	// CostPerShare is the cost of the last completed parent order. The no-fill
	// sentinel is not exported.
	CostPerShare = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cost_per_share",
		Help:      "Sign-adjusted cost per share of the last parent order.",
	}, []string{"symbol", "strategy"})

	PricingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pricing_latency_seconds",
		Help:      "Latency of ladder requests to the pricing service.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"strategy"})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "execution_duration_seconds",
		Help:      "Wall-clock duration of parent orders.",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"strategy"})

	ReadinessWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "readiness_wait_seconds",
		Help:      "Time spent waiting for the first market data snapshot.",
		Buckets:   prometheus.DefBuckets,
	})

	CollaboratorErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collaborator_errors_total",
		Help:      "Failed calls to the pricing service or provider, by operation and kind.",
	}, []string{"op", "kind"})

	ProviderConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_connected",
		Help:      "Whether the market and order state provider is connected.",
	})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heartbeat_timestamp_seconds",
		Help:      "Unix time of the last heartbeat.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors by type.",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "commit", "build_time"})
)

// SetBuildInfo publishes the build information.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
