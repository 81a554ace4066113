package execution

import (
	"context"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultEscalationThreshold is the time left before the overall deadline
// under which a sliced run hands its residual to the aggressive executor.
const DefaultEscalationThreshold = time.Second

// TWAPConfig configures a sliced run.
type TWAPConfig struct {
	Slices              int
	EscalationThreshold time.Duration
	EscalationDeadline  time.Duration // Deadline for the aggressive run; 0 uses its default
}

// TWAP splits a quantity across equal time slices. Each slice asks for a
// ladder sized from the residual, submits and reconciles it like the
// aggressive executor, then waits for its window to close.
type TWAP struct {
	deps     *Deps
	cfg      TWAPConfig
	escalate Strategy
}

// NewTWAP creates a sliced executor that escalates to escalate.
func NewTWAP(deps *Deps, cfg TWAPConfig, escalate Strategy) *TWAP {
	deps.withDefaults()
	if cfg.Slices < 1 {
		cfg.Slices = 1
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = DefaultEscalationThreshold
	}
	return &TWAP{deps: deps, cfg: cfg, escalate: escalate}
}

// Name returns the strategy name.
func (t *TWAP) Name() string {
	return types.StrategyTWAP
}

// Execute runs the slices within deadline, the overall budget. Each slice
// owns deadline/Slices of it.
func (t *TWAP) Execute(ctx context.Context, qty int64, side types.Side, deadline time.Duration) (types.StrategySummary, error) {
	if err := validate(qty, side); err != nil {
		return types.StrategySummary{}, err
	}
	if deadline <= 0 {
		return types.StrategySummary{}, types.ErrInvalidDeadline
	}

	d := t.deps
	n := t.cfg.Slices
	window := deadline / time.Duration(n)

	summary := types.StrategySummary{
		Strategy:  types.StrategyTWAP,
		Symbol:    d.Symbol,
		Side:      side,
		TargetQty: qty,
		Slices:    make([]types.ExecutionSlice, 0, n),
	}

	start := d.Clock.Now()
	end := start.Add(deadline)
	residual := qty
	value := decimal.Zero
	preVWAP := t.startVWAP()
	var runErr error

	for i := 0; i < n && residual > 0; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		slice := types.ExecutionSlice{
			Index:       i,
			WindowStart: start.Add(time.Duration(i) * window),
			WindowEnd:   start.Add(time.Duration(i+1) * window),
			TradedValue: decimal.Zero,
		}

		sw, err := d.runLadder(ctx, residual, side, ladderParams{
			strategy:   types.StrategyTWAP,
			slice:      i,
			sliceCount: n,
			preVWAP:    preVWAP,
		})
		slice.AllottedQty = sw.ladder.TargetSize
		slice.LadderSize = sw.ladder.Size
		slice.FilledQty = sw.filled
		slice.TradedValue = sw.value
		summary.Slices = append(summary.Slices, slice)
		summary.ChildOrders += sw.submitted

		residual -= sw.filled
		value = value.Add(sw.value)
		if filled := qty - residual; filled > 0 {
			preVWAP = value.Div(decimal.NewFromInt(filled))
		}

		d.Logger.Info("slice complete",
			"slice", i,
			"slices", n,
			"allotted", slice.AllottedQty,
			"filled", slice.FilledQty,
			"residual", residual,
			"pre_vwap", preVWAP,
		)

		if err != nil {
			if err = d.handleErr(ctx, types.StrategyTWAP, err); err != nil {
				runErr = err
				break
			}
		}

		if residual <= 0 {
			break
		}

		if err := d.Clock.Sleep(ctx, slice.WindowEnd.Sub(d.Clock.Now())); err != nil {
			runErr = err
			break
		}

		if end.Sub(d.Clock.Now()) < t.cfg.EscalationThreshold {
			residual, value = t.escalateResidual(ctx, &summary, residual, value, side, &runErr)
			break
		}
	}

	d.finish(&summary, residual, value, d.Clock.Now().Sub(start))
	return summary, runErr
}

// escalateResidual runs the aggressive executor on what is left and folds
// its result into the sliced totals.
func (t *TWAP) escalateResidual(ctx context.Context, s *types.StrategySummary, residual int64, value decimal.Decimal, side types.Side, runErr *error) (int64, decimal.Decimal) {
	if t.escalate == nil {
		return residual, value
	}

	t.deps.Logger.Info("escalating to aggressive",
		"symbol", t.deps.Symbol,
		"residual", residual,
		"slices_run", len(s.Slices),
	)

	sub, err := t.escalate.Execute(ctx, residual, side, t.cfg.EscalationDeadline)
	s.Escalated = true
	s.Escalation = &sub
	s.ChildOrders += sub.ChildOrders
	if err != nil {
		*runErr = err
	}

	return residual - sub.FilledQty, value.Add(sub.TradedValue)
}

// startVWAP is the running VWAP the first slice reports: the benchmark VWAP
// if one was captured, else the market's.
func (t *TWAP) startVWAP() decimal.Decimal {
	if t.deps.Costs != nil {
		if _, vwap := t.deps.Costs.Benchmark(); !vwap.IsZero() {
			return vwap
		}
	}
	vwap, err := t.deps.Market.VWAP(t.deps.Symbol)
	if err != nil {
		return decimal.Zero
	}
	return vwap
}

// Ensure TWAP implements Strategy
var _ Strategy = (*TWAP)(nil)
