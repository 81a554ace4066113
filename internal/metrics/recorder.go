package metrics

import (
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordChildOrder records a reconciled child order.
func (r *Recorder) RecordChildOrder(strategy, side, status string) {
	ChildOrdersTotal.WithLabelValues(strategy, side, status).Inc()
}

// RecordCollaboratorError records a failed collaborator call.
func (r *Recorder) RecordCollaboratorError(op string, retryable bool) {
	kind := "fatal"
	if retryable {
		kind = "retryable"
	}
	CollaboratorErrorsTotal.WithLabelValues(op, kind).Inc()
}

// RecordPricingLatency records the latency of one ladder request.
func (r *Recorder) RecordPricingLatency(strategy string, d time.Duration) {
	PricingLatency.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordExecutionStarted marks a parent order as running.
func (r *Recorder) RecordExecutionStarted() {
	ExecutionsActive.Inc()
}

// RecordExecution records a completed parent order.
func (r *Recorder) RecordExecution(report *types.ExecutionReport) {
	ExecutionsActive.Dec()

	outcome := "completed"
	switch {
	case report.Degraded:
		outcome = "degraded"
	case report.PenaltyQty > 0:
		outcome = "liquidated"
	}
	ParentOrdersTotal.WithLabelValues(report.Strategy, outcome).Inc()

	side := report.Side.String()
	FilledQuantity.WithLabelValues(report.Symbol, side).Add(float64(report.FilledQty))
	TradedValue.WithLabelValues(report.Symbol, side).Add(report.TradedValue.InexactFloat64())
	PenaltyQuantity.WithLabelValues(report.Symbol).Add(float64(report.PenaltyQty))
	PenaltyTotal.WithLabelValues(report.Symbol).Add(report.Penalty.InexactFloat64())
	ExecutionDuration.WithLabelValues(report.Strategy).Observe(report.Elapsed.Seconds())

	if report.FilledQty > 0 {
		r.RecordCost(report.Symbol, report.Strategy, report.CostPerShare)
	}
}

// RecordCost sets the cost-per-share gauge.
func (r *Recorder) RecordCost(symbol, strategy string, cost decimal.Decimal) {
	CostPerShare.WithLabelValues(symbol, strategy).Set(cost.InexactFloat64())
}

// RecordReadinessWait records how long the provider took to become ready.
func (r *Recorder) RecordReadinessWait(d time.Duration) {
	ReadinessWait.Observe(d.Seconds())
}

// RecordProviderStatus records provider connection status.
func (r *Recorder) RecordProviderStatus(connected bool) {
	if connected {
		ProviderConnected.Set(1)
	} else {
		ProviderConnected.Set(0)
	}
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveReadiness observes the elapsed time as readiness wait.
func (t *Timer) ObserveReadiness() {
	ReadinessWait.Observe(t.Elapsed().Seconds())
}
