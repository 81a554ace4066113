package execution

import (
	"context"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultLiquidationDeadline is the extended window liquidation gets.
const DefaultLiquidationDeadline = 30 * time.Second

// DefaultPenaltyRate is charged per unit of residual handed to liquidation.
var DefaultPenaltyRate = decimal.RequireFromString("0.125")

// Liquidation forces completion of a residual through the aggressive
// executor and charges a fixed penalty on the residual, filled or not.
type Liquidation struct {
	aggressive *Aggressive
	rate       decimal.Decimal
	deadline   time.Duration
}

// NewLiquidation creates a liquidation fallback. A non-positive rate or
// deadline falls back to the defaults.
func NewLiquidation(deps *Deps, rate decimal.Decimal, deadline time.Duration) *Liquidation {
	if !rate.IsPositive() {
		rate = DefaultPenaltyRate
	}
	if deadline <= 0 {
		deadline = DefaultLiquidationDeadline
	}
	return &Liquidation{
		aggressive: NewAggressive(deps),
		rate:       rate,
		deadline:   deadline,
	}
}

// Name returns the strategy name.
func (l *Liquidation) Name() string {
	return types.StrategyLiquidate
}

// Rate returns the penalty per unit of residual.
func (l *Liquidation) Rate() decimal.Decimal {
	return l.rate
}

// Liquidate completes residual. With nothing left it does nothing and
// returns a zero penalty and an empty summary.
func (l *Liquidation) Liquidate(ctx context.Context, residual int64, side types.Side) (decimal.Decimal, types.StrategySummary, error) {
	if residual <= 0 {
		return decimal.Zero, types.StrategySummary{TradedValue: decimal.Zero}, nil
	}

	penalty := l.rate.Mul(decimal.NewFromInt(residual))
	l.aggressive.deps.Logger.Warn("liquidation triggered",
		"symbol", l.aggressive.deps.Symbol,
		"side", side,
		"residual", residual,
		"penalty", penalty,
		"deadline", l.deadline,
	)

	summary, err := l.aggressive.run(ctx, residual, side, l.deadline, types.StrategyLiquidate)
	return penalty, summary, err
}

// Execute liquidates qty as a standalone strategy. A deadline of zero or
// less uses the liquidation deadline. The penalty is not part of the
// summary; callers that need it use Liquidate.
func (l *Liquidation) Execute(ctx context.Context, qty int64, side types.Side, deadline time.Duration) (types.StrategySummary, error) {
	if deadline <= 0 {
		deadline = l.deadline
	}
	return l.aggressive.run(ctx, qty, side, deadline, types.StrategyLiquidate)
}

// Ensure Liquidation implements Strategy
var _ Strategy = (*Liquidation)(nil)
