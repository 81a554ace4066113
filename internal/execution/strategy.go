// Package execution implements the strategies that turn a parent quantity
// into child orders: aggressive liquidity taking, time slicing, and the
// liquidation fallback that completes whatever is left.
//
// Every strategy runs on the caller's goroutine. Within one iteration the
// order is fixed: ask the pricer for a ladder, submit each rung in ladder
// order, reconcile each child right after its submit, cancel what rests.
package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/cost"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/lifecycle"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/pricing"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Strategy executes a quantity within a deadline. The summary reports the
// traded value and the residual left; residual is always in [0, qty].
type Strategy interface {
	Name() string
	Execute(ctx context.Context, qty int64, side types.Side, deadline time.Duration) (types.StrategySummary, error)
}

// Recorder receives execution events.
type Recorder interface {
	RecordChildOrder(strategy, side, status string)
	RecordCollaboratorError(op string, retryable bool)
	RecordPricingLatency(strategy string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordChildOrder(string, string, string)    {}
func (nopRecorder) RecordCollaboratorError(string, bool)       {}
func (nopRecorder) RecordPricingLatency(string, time.Duration) {}

// Deps are the collaborators shared by the strategies of one parent order.
type Deps struct {
	Symbol   string
	Market   broker.MarketData
	Tracker  *lifecycle.Tracker
	Pricer   pricing.Pricer
	Costs    *cost.Accountant // Optional; summaries carry no cost without it
	Clock    Clock
	Recorder Recorder
	Logger   *slog.Logger

	// RetryBackoff is the pause after a retryable collaborator failure.
	RetryBackoff time.Duration
}

// DefaultRetryBackoff is used when Deps.RetryBackoff is zero.
const DefaultRetryBackoff = 100 * time.Millisecond

func (d *Deps) withDefaults() {
	if d.Clock == nil {
		d.Clock = RealClock{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = DefaultRetryBackoff
	}
}

// sweep is the outcome of submitting one ladder.
type sweep struct {
	filled    int64
	value     decimal.Decimal
	submitted int
	ladder    pricing.Ladder
}

// ladderParams describe one pricing request beyond the residual.
type ladderParams struct {
	strategy   string
	aggressive bool
	slice      int
	sliceCount int
	preVWAP    decimal.Decimal
}

// runLadder performs one iteration: snapshot, price, submit, reconcile and
// cancel. Quantity from cancelled children stays in the caller's residual.
func (d *Deps) runLadder(ctx context.Context, residual int64, side types.Side, p ladderParams) (sweep, error) {
	out := sweep{value: decimal.Zero}

	levels := d.Market.BookLevels()
	depth, err := d.Market.Depth(d.Symbol)
	if err != nil {
		return out, classify("broker.depth", err)
	}
	vwap, err := d.Market.VWAP(d.Symbol)
	if err != nil {
		return out, classify("broker.vwap", err)
	}

	req := pricing.Request{
		Residual:   residual,
		Side:       side,
		Symbol:     d.Symbol,
		BookLevels: levels,
		Depth:      depth,
		VWAP:       vwap,
		PreVWAP:    p.preVWAP,
		Strategy:   p.strategy,
		InternalID: d.Tracker.PeekID(),
		Aggressive: p.aggressive,
		Slice:      p.slice,
		SliceCount: p.sliceCount,
	}

	started := time.Now()
	ladder, err := d.Pricer.Ladder(ctx, req)
	d.Recorder.RecordPricingLatency(p.strategy, time.Since(started))
	if err != nil {
		return out, classify("pricing.ladder", err)
	}
	ladder = pricing.Validate(ladder, residual, d.Logger)
	out.ladder = ladder

	sliceIndex := -1
	if !p.aggressive {
		sliceIndex = p.slice
	}

	for _, rung := range ladder.Rungs {
		child, err := d.Tracker.Submit(ctx, types.ChildOrder{
			Symbol:     d.Symbol,
			Side:       side,
			Price:      rung.Price,
			OrigQty:    rung.Qty,
			Strategy:   p.strategy,
			SliceIndex: sliceIndex,
		})
		if err != nil {
			return out, classify("broker.submit", err)
		}
		out.submitted++

		child = d.Tracker.Reconcile(child)
		if child.Status != types.ChildFullyFilled {
			child, err = d.Tracker.Cancel(ctx, child)
			if err != nil {
				// Credit what is known to have filled; the rest stays in residual.
				out.filled += child.FilledQty()
				out.value = out.value.Add(child.FilledValue())
				return out, classify("broker.cancel", err)
			}
		}
		d.Recorder.RecordChildOrder(p.strategy, side.String(), child.Status.String())

		out.filled += child.FilledQty()
		out.value = out.value.Add(child.FilledValue())
	}

	return out, nil
}

// handleErr decides whether a strategy loop may continue after err. It
// returns nil for retryable failures after logging and backing off.
func (d *Deps) handleErr(ctx context.Context, strategy string, err error) error {
	var ce *types.CollaboratorError
	if !errors.As(err, &ce) {
		return err
	}
	d.Recorder.RecordCollaboratorError(ce.Op, ce.Retryable)
	if !ce.Retryable {
		d.Logger.Error("collaborator failed", "strategy", strategy, "op", ce.Op, "err", ce.Err)
		return err
	}

	d.Logger.Warn("collaborator unavailable, retrying",
		"strategy", strategy,
		"op", ce.Op,
		"backoff", d.RetryBackoff,
		"err", ce.Err,
	)
	return d.Clock.Sleep(ctx, d.RetryBackoff)
}

// finish completes a summary and hands it to the accountant.
func (d *Deps) finish(s *types.StrategySummary, residual int64, value decimal.Decimal, elapsed time.Duration) {
	s.ResidualQty = residual
	s.FilledQty = s.TargetQty - residual
	s.TradedValue = value
	s.Elapsed = elapsed
	if d.Costs != nil {
		d.Costs.Summarize(s)
	}
}

// classify turns a collaborator failure into a CollaboratorError. Context
// errors pass through untouched. A lost connection is fatal; anything else
// is assumed transient.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ce *types.CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, broker.ErrNotConnected),
		errors.Is(err, broker.ErrUnknownSymbol),
		errors.Is(err, broker.ErrDuplicateOrder),
		errors.Is(err, types.ErrUnknownExchangeID):
		return types.NewFatal(op, err)
	default:
		return types.NewRetryable(op, err)
	}
}

func validate(qty int64, side types.Side) error {
	if qty <= 0 {
		return types.ErrInvalidQuantity
	}
	if !side.Valid() {
		return types.ErrInvalidSide
	}
	return nil
}
