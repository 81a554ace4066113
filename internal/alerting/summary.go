package alerting

import (
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// ExecutionSummary is the operator view of one finished parent order.
type ExecutionSummary struct {
	ParentID       string
	BotID          string
	Strategy       string
	Symbol         string
	Side           string
	TargetQty      int64
	FilledQty      int64
	FillRatePct    decimal.Decimal
	PenaltyQty     int64
	Penalty        decimal.Decimal
	TradedValue    decimal.Decimal
	AvgPrice       decimal.Decimal
	BenchmarkPrice decimal.Decimal
	CostPerShare   decimal.Decimal
	Elapsed        time.Duration
	ChildOrders    int
	Degraded       bool
	Err            string
}

// NewExecutionSummary derives a summary from a report.
func NewExecutionSummary(r *types.ExecutionReport) ExecutionSummary {
	s := ExecutionSummary{
		ParentID:       r.ParentID,
		BotID:          r.BotID,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		Side:           r.Side.String(),
		TargetQty:      r.TargetQty,
		FilledQty:      r.FilledQty,
		PenaltyQty:     r.PenaltyQty,
		Penalty:        r.Penalty,
		TradedValue:    r.TradedValue,
		BenchmarkPrice: r.BenchmarkPrice,
		CostPerShare:   r.CostPerShare,
		Elapsed:        r.Elapsed,
		ChildOrders:    r.ChildOrders,
		Degraded:       r.Degraded,
		Err:            r.Err,
	}

	if r.TargetQty > 0 {
		s.FillRatePct = decimal.NewFromInt(r.FilledQty).
			Div(decimal.NewFromInt(r.TargetQty)).
			Mul(decimal.NewFromInt(100))
	}
	if r.FilledQty > 0 {
		s.AvgPrice = r.TradedValue.Div(decimal.NewFromInt(r.FilledQty))
	}

	return s
}

// Fields returns the summary as alert key/value pairs.
func (s ExecutionSummary) Fields() []any {
	fields := []any{
		"parent_id", s.ParentID,
		"strategy", s.Strategy,
		"symbol", s.Symbol,
		"side", s.Side,
		"filled", s.FilledQty,
		"target", s.TargetQty,
		"fill_rate", s.FillRatePct.StringFixed(1) + "%",
		"avg_price", s.AvgPrice.StringFixed(4),
		"benchmark", s.BenchmarkPrice.StringFixed(4),
		"cost_per_share", s.CostPerShare.StringFixed(4),
		"penalty", s.Penalty.StringFixed(3),
		"elapsed", s.Elapsed.Round(time.Millisecond).String(),
	}
	if s.Err != "" {
		fields = append(fields, "error", s.Err)
	}
	return fields
}
