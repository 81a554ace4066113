package execution

import (
	"context"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultAggressiveDeadline bounds an aggressive run when no deadline is given.
const DefaultAggressiveDeadline = 2 * time.Second

// Aggressive takes liquidity from the opposing side of the book until the
// quantity is done or the deadline passes.
type Aggressive struct {
	deps *Deps
}

// NewAggressive creates an aggressive executor.
func NewAggressive(deps *Deps) *Aggressive {
	deps.withDefaults()
	return &Aggressive{deps: deps}
}

// Name returns the strategy name.
func (a *Aggressive) Name() string {
	return types.StrategyAggressive
}

// Execute sweeps the book repeatedly. A deadline of zero or less uses
// DefaultAggressiveDeadline.
func (a *Aggressive) Execute(ctx context.Context, qty int64, side types.Side, deadline time.Duration) (types.StrategySummary, error) {
	return a.run(ctx, qty, side, deadline, types.StrategyAggressive)
}

// run executes under the given strategy label so liquidation children are
// tagged as such.
func (a *Aggressive) run(ctx context.Context, qty int64, side types.Side, deadline time.Duration, label string) (types.StrategySummary, error) {
	if err := validate(qty, side); err != nil {
		return types.StrategySummary{}, err
	}
	if deadline <= 0 {
		deadline = DefaultAggressiveDeadline
	}

	d := a.deps
	summary := types.StrategySummary{
		Strategy:  label,
		Symbol:    d.Symbol,
		Side:      side,
		TargetQty: qty,
	}

	start := d.Clock.Now()
	residual := qty
	value := decimal.Zero
	var runErr error

	for residual > 0 && d.Clock.Now().Sub(start) < deadline {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		sw, err := d.runLadder(ctx, residual, side, ladderParams{
			strategy:   label,
			aggressive: true,
		})
		residual -= sw.filled
		value = value.Add(sw.value)
		summary.ChildOrders += sw.submitted

		if err != nil {
			if err = d.handleErr(ctx, label, err); err != nil {
				runErr = err
				break
			}
			continue
		}

		// Nothing to take right now.
		if sw.submitted == 0 {
			if err := d.Clock.Sleep(ctx, d.RetryBackoff); err != nil {
				runErr = err
				break
			}
		}
	}

	d.finish(&summary, residual, value, d.Clock.Now().Sub(start))
	return summary, runErr
}

// Ensure Aggressive implements Strategy
var _ Strategy = (*Aggressive)(nil)
