// Package cost computes execution cost against the benchmark captured when
// a parent order starts.
//
// Cost per share is value/qty - benchmark. A buy pays more when it trades
// above the benchmark, so buy-side cost is negated: a positive number is
// always a saving and a negative number a slippage.
package cost

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Sentinel stands in for both cost and benchmark when nothing traded.
var Sentinel = decimal.RequireFromString("999.99")

// PerShare returns the sign-adjusted cost per share and the benchmark to
// report with it. With qty <= 0 the cost is undefined and both values are
// Sentinel.
func PerShare(value decimal.Decimal, qty int64, benchmark decimal.Decimal, side types.Side) (decimal.Decimal, decimal.Decimal) {
	if qty <= 0 {
		return Sentinel, Sentinel
	}
	raw := value.Div(decimal.NewFromInt(qty)).Sub(benchmark)
	if side == types.SideBuy {
		raw = raw.Neg()
	}
	return raw, benchmark
}

// Accountant holds the benchmark of one parent order.
type Accountant struct {
	logger *slog.Logger

	symbol    string
	side      types.Side
	target    int64
	benchmark decimal.Decimal
	vwap      decimal.Decimal
	captured  bool
}

// NewAccountant creates an accountant for a parent order.
func NewAccountant(symbol string, side types.Side, target int64, logger *slog.Logger) *Accountant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accountant{
		logger: logger,
		symbol: symbol,
		side:   side,
		target: target,
	}
}

// Capture reads the benchmark mid price and VWAP. Only the first call reads
// the market; later calls return the captured values.
func (a *Accountant) Capture(md broker.MarketData) (decimal.Decimal, decimal.Decimal, error) {
	if a.captured {
		return a.benchmark, a.vwap, nil
	}

	mid, err := md.MidPrice(a.symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, types.NewRetryable("broker.mid_price", err)
	}

	vwap, err := md.VWAP(a.symbol)
	if err != nil {
		if !errors.Is(err, types.ErrDataUnavailable) {
			return decimal.Zero, decimal.Zero, types.NewRetryable("broker.vwap", err)
		}
		a.logger.Warn("vwap unavailable, using mid price", "symbol", a.symbol)
		vwap = mid
	}

	a.benchmark = mid
	a.vwap = vwap
	a.captured = true

	a.logger.Info("benchmark captured",
		"symbol", a.symbol,
		"side", a.side,
		"target", a.target,
		"benchmark", a.benchmark,
		"vwap", a.vwap,
	)

	return a.benchmark, a.vwap, nil
}

// Benchmark returns the captured benchmark price and VWAP.
func (a *Accountant) Benchmark() (decimal.Decimal, decimal.Decimal) {
	return a.benchmark, a.vwap
}

// Summarize fills in the cost fields of one strategy invocation and logs it.
func (a *Accountant) Summarize(s *types.StrategySummary) {
	s.CostPerShare, s.Benchmark = PerShare(s.TradedValue, s.FilledQty, a.benchmark, s.Side)
	s.BenchmarkVWAP = a.vwap
	if s.FilledQty <= 0 {
		s.BenchmarkVWAP = Sentinel
	}

	a.logger.Info("strategy complete",
		"strategy", s.Strategy,
		"symbol", s.Symbol,
		"side", s.Side,
		"target", s.TargetQty,
		"qty", s.FilledQty,
		"residual", s.ResidualQty,
		"pv", s.TradedValue,
		"elapsed", s.Elapsed,
		"slices", len(s.Slices),
		"cost", s.CostPerShare,
		"benchmark", s.Benchmark,
		"vwap", s.BenchmarkVWAP,
	)
}

// Final returns the parent-order cost per share: total traded value over
// the target quantity, against the benchmark. When nothing traded at all it
// returns Sentinel for both values.
func (a *Accountant) Final(strategyValue, liquidationValue decimal.Decimal, filled int64) (decimal.Decimal, decimal.Decimal) {
	if filled <= 0 {
		return Sentinel, Sentinel
	}
	return PerShare(strategyValue.Add(liquidationValue), a.target, a.benchmark, a.side)
}

// Outcome is what the controller knows once liquidation returns.
type Outcome struct {
	Parent      types.ParentOrder
	Strategy    types.StrategySummary
	Liquidation types.StrategySummary
	Penalty     decimal.Decimal
	PenaltyQty  int64
	ChildOrders int
	CompletedAt time.Time
	Err         error
}

// Report builds the final execution report and logs it as one record.
func (a *Accountant) Report(o Outcome) *types.ExecutionReport {
	p := o.Parent
	filled := o.Strategy.FilledQty + o.Liquidation.FilledQty
	costPerShare, benchmark := a.Final(o.Strategy.TradedValue, o.Liquidation.TradedValue, filled)

	r := &types.ExecutionReport{
		ParentID:         p.ID,
		BotID:            p.BotID,
		Strategy:         p.Strategy,
		Symbol:           p.Symbol,
		Side:             p.Side,
		TargetQty:        p.TargetQty,
		StrategyValue:    o.Strategy.TradedValue,
		LiquidationValue: o.Liquidation.TradedValue,
		TradedValue:      o.Strategy.TradedValue.Add(o.Liquidation.TradedValue),
		FilledQty:        filled,
		PenaltyQty:       o.PenaltyQty,
		Penalty:          o.Penalty,
		UnfilledQty:      max(p.TargetQty-filled, 0),
		Elapsed:          o.CompletedAt.Sub(p.StartedAt),
		CostPerShare:     costPerShare,
		BenchmarkPrice:   benchmark,
		BenchmarkVWAP:    p.BenchmarkVWAP,
		ChildOrders:      o.ChildOrders,
		StartedAt:        p.StartedAt,
		CompletedAt:      o.CompletedAt,
	}
	if filled <= 0 {
		r.BenchmarkVWAP = Sentinel
	}

	if o.Strategy.Strategy != "" {
		r.Summaries = append(r.Summaries, o.Strategy)
	}
	if o.Liquidation.Strategy != "" {
		r.Summaries = append(r.Summaries, o.Liquidation)
	}

	if o.Err != nil {
		r.Degraded = true
		r.Err = o.Err.Error()
	}

	attrs := []any{
		"parent_id", r.ParentID,
		"bot_id", r.BotID,
		"strategy", r.Strategy,
		"symbol", r.Symbol,
		"action", r.Side,
		"target", r.TargetQty,
		"benchmark", r.BenchmarkPrice,
		"vwap", r.BenchmarkVWAP,
		"pv", r.TradedValue,
		"qty", r.FilledQty,
		"penalty_qty", r.PenaltyQty,
		"penalty", r.Penalty,
		"unfilled", r.UnfilledQty,
		"elapsed", r.Elapsed,
		"cost", r.CostPerShare,
		"child_orders", r.ChildOrders,
	}
	if r.Degraded {
		a.logger.Warn("execution complete (degraded)", append(attrs, "err", r.Err)...)
	} else {
		a.logger.Info("execution complete", attrs...)
	}

	return r
}

// String renders a cost for logs and terminals.
func String(c decimal.Decimal) string {
	if c.Equal(Sentinel) {
		return fmt.Sprintf("%s (no fills)", Sentinel.StringFixed(2))
	}
	return c.StringFixed(4)
}
