// Package engine runs parent orders: readiness, benchmark capture, strategy,
// liquidation and the final report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/alerting"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/cost"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/execution"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/lifecycle"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/metrics"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/pricing"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Config holds controller configuration.
type Config struct {
	BotID               string
	AggressiveDeadline  time.Duration
	LiquidationDeadline time.Duration
	PenaltyRate         decimal.Decimal
	EscalationThreshold time.Duration
	ReadinessTimeout    time.Duration
	RetryBackoff        time.Duration
}

// DefaultConfig returns default controller config.
func DefaultConfig() Config {
	return Config{
		AggressiveDeadline:  execution.DefaultAggressiveDeadline,
		LiquidationDeadline: execution.DefaultLiquidationDeadline,
		PenaltyRate:         execution.DefaultPenaltyRate,
		EscalationThreshold: execution.DefaultEscalationThreshold,
		ReadinessTimeout:    30 * time.Second,
		RetryBackoff:        execution.DefaultRetryBackoff,
	}
}

// ParentRequest describes one parent order.
type ParentRequest struct {
	Strategy   string
	Symbol     string
	Side       types.Side
	Qty        int64
	TimeBudget time.Duration
	Slices     int // TWAP only
}

// Validate checks the request.
func (r ParentRequest) Validate() error {
	var err error
	if strings.TrimSpace(r.Symbol) == "" {
		err = multierr.Append(err, types.ErrInvalidSymbol)
	}
	if !r.Side.Valid() {
		err = multierr.Append(err, types.ErrInvalidSide)
	}
	if r.Qty <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %d", types.ErrInvalidQuantity, r.Qty))
	}
	if r.TimeBudget < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: %s", types.ErrInvalidDeadline, r.TimeBudget))
	}

	switch strings.ToUpper(r.Strategy) {
	case types.StrategyTWAP:
		if r.TimeBudget <= 0 {
			err = multierr.Append(err, fmt.Errorf("%w: TWAP needs a time budget", types.ErrInvalidDeadline))
		}
		if r.Slices < 1 {
			err = multierr.Append(err, fmt.Errorf("%w: TWAP needs at least one slice", types.ErrInvalidQuantity))
		}
	case types.StrategyAggressive, types.StrategyLiquidate:
	default:
		err = multierr.Append(err, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, r.Strategy))
	}

	return err
}

// Journal records finished parent orders.
type Journal interface {
	Record(ctx context.Context, report *types.ExecutionReport, children []types.ChildOrder) error
}

// Controller runs parent orders one at a time against one provider. Its
// child-order ids are unique for the life of the controller.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	provider broker.Provider
	pricer   pricing.Pricer
	tracker  *lifecycle.Tracker
	alerter  alerting.Alerter
	journal  Journal
	recorder *metrics.Recorder
	clock    execution.Clock

	mu sync.Mutex
}

// NewController creates a controller. alerter and journal may be nil.
func NewController(
	cfg Config,
	provider broker.Provider,
	pricer pricing.Pricer,
	alerter alerting.Alerter,
	journal Journal,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = def.ReadinessTimeout
	}
	if !cfg.PenaltyRate.IsPositive() {
		cfg.PenaltyRate = def.PenaltyRate
	}

	return &Controller{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		pricer:   pricer,
		tracker:  lifecycle.NewTracker(provider, logger),
		alerter:  alerter,
		journal:  journal,
		recorder: metrics.NewRecorder(),
		clock:    execution.RealClock{},
	}
}

// SetClock replaces the clock strategies use for deadlines.
func (c *Controller) SetClock(clock execution.Clock) {
	c.clock = clock
}

// Tracker returns the controller's child-order tracker.
func (c *Controller) Tracker() *lifecycle.Tracker {
	return c.tracker
}

// Run executes one parent order to completion. A report is returned whenever
// the order started; on a fatal collaborator failure it is marked degraded
// and the error wraps types.ErrCollaboratorUnavailable.
func (c *Controller) Run(ctx context.Context, req ParentRequest) (*types.ExecutionReport, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parent order: %w", err)
	}
	req.Strategy = strings.ToUpper(req.Strategy)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}

	// start
	accountant := cost.NewAccountant(req.Symbol, req.Side, req.Qty, c.logger)
	benchmark, vwap, err := accountant.Capture(c.provider)
	if err != nil {
		c.notify(ctx, alerting.EventCollaboratorUnavailable, "Benchmark capture failed",
			"symbol", req.Symbol, "err", err)
		return nil, fmt.Errorf("capture benchmark: %w", err)
	}

	parent := types.ParentOrder{
		ID:             uuid.NewString(),
		BotID:          c.cfg.BotID,
		Strategy:       req.Strategy,
		Symbol:         req.Symbol,
		Side:           req.Side,
		TargetQty:      req.Qty,
		TimeBudget:     req.TimeBudget,
		BenchmarkPrice: benchmark,
		BenchmarkVWAP:  vwap,
		StartedAt:      c.clock.Now(),
	}
	firstID := c.tracker.PeekID()

	c.logger.Info("execution started",
		"parent_id", parent.ID,
		"bot_id", parent.BotID,
		"strategy", parent.Strategy,
		"symbol", parent.Symbol,
		"action", parent.Side,
		"target", parent.TargetQty,
		"budget", parent.TimeBudget,
		"slices", req.Slices,
		"benchmark", parent.BenchmarkPrice,
		"vwap", parent.BenchmarkVWAP,
	)
	c.recorder.RecordExecutionStarted()
	c.notify(ctx, alerting.EventExecutionStarted, "Execution started",
		"parent_id", parent.ID,
		"strategy", parent.Strategy,
		"symbol", parent.Symbol,
		"side", parent.Side.String(),
		"target", parent.TargetQty,
	)

	deps := &execution.Deps{
		Symbol:       req.Symbol,
		Market:       c.provider,
		Tracker:      c.tracker,
		Pricer:       c.pricer,
		Costs:        accountant,
		Clock:        c.clock,
		Recorder:     c.recorder,
		Logger:       c.logger.With("parent_id", parent.ID),
		RetryBackoff: c.cfg.RetryBackoff,
	}
	liquidation := execution.NewLiquidation(deps, c.cfg.PenaltyRate, c.cfg.LiquidationDeadline)

	// strategy
	strategy := c.strategyFor(deps, req, liquidation)
	budget := req.TimeBudget
	if budget <= 0 && req.Strategy == types.StrategyAggressive {
		budget = c.cfg.AggressiveDeadline
	}
	summary, runErr := strategy.Execute(ctx, req.Qty, req.Side, budget)

	// liquidation
	residual := summary.ResidualQty
	var (
		penalty decimal.Decimal
		liqSum  types.StrategySummary
		liqErr  error
	)
	switch {
	case residual <= 0:
		penalty = decimal.Zero
	case ctx.Err() != nil:
		// Nothing can be sent any more; the residual stays unfilled.
		penalty = decimal.Zero
		residual = 0
	default:
		c.notify(ctx, alerting.EventLiquidationTriggered, "Liquidating residual",
			"parent_id", parent.ID,
			"symbol", parent.Symbol,
			"residual", residual,
		)
		penalty, liqSum, liqErr = liquidation.Liquidate(ctx, residual, req.Side)
	}

	// report
	runErr = multierr.Append(runErr, liqErr)
	children := c.childrenSince(firstID)
	report := accountant.Report(cost.Outcome{
		Parent:      parent,
		Strategy:    summary,
		Liquidation: liqSum,
		Penalty:     penalty,
		PenaltyQty:  residual,
		ChildOrders: len(children),
		CompletedAt: c.clock.Now(),
		Err:         runErr,
	})
	c.recorder.RecordExecution(report)

	c.record(ctx, report, children)
	c.notifyCompletion(ctx, report, runErr)

	if runErr != nil {
		return report, fmt.Errorf("execution %s: %w", parent.ID, runErr)
	}
	return report, nil
}

// strategyFor selects the primary strategy by name.
func (c *Controller) strategyFor(deps *execution.Deps, req ParentRequest, liquidation *execution.Liquidation) execution.Strategy {
	aggressive := execution.NewAggressive(deps)

	switch req.Strategy {
	case types.StrategyTWAP:
		return execution.NewTWAP(deps, execution.TWAPConfig{
			Slices:              req.Slices,
			EscalationThreshold: c.cfg.EscalationThreshold,
			EscalationDeadline:  c.cfg.AggressiveDeadline,
		}, aggressive)
	case types.StrategyLiquidate:
		return liquidation
	default:
		return aggressive
	}
}

// waitReady blocks until the provider has its first market data snapshot.
func (c *Controller) waitReady(ctx context.Context) error {
	ready := c.provider.Ready()
	select {
	case <-ready:
		return nil
	default:
	}

	timer := metrics.NewTimer()
	c.logger.Info("waiting for market data", "timeout", c.cfg.ReadinessTimeout)

	wait := time.NewTimer(c.cfg.ReadinessTimeout)
	defer wait.Stop()

	select {
	case <-ready:
		timer.ObserveReadiness()
		c.logger.Info("market data ready", "waited", timer.Elapsed())
		return nil
	case <-wait.C:
		c.notify(ctx, alerting.EventProviderNotReady, "Market data not ready",
			"timeout", c.cfg.ReadinessTimeout.String())
		return fmt.Errorf("%w after %s", types.ErrProviderNotReady, c.cfg.ReadinessTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// childrenSince returns the children submitted from firstID on.
func (c *Controller) childrenSince(firstID int64) []types.ChildOrder {
	all := c.tracker.Orders()
	out := make([]types.ChildOrder, 0, len(all))
	for _, o := range all {
		if o.InternalID >= firstID {
			out = append(out, o)
		}
	}
	return out
}

// record journals the report. The write is not tied to ctx so a cancelled
// run still leaves its report behind.
func (c *Controller) record(ctx context.Context, report *types.ExecutionReport, children []types.ChildOrder) {
	if c.journal == nil {
		return
	}

	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.journal.Record(jctx, report, children); err != nil {
		c.logger.Error("failed to journal execution", "parent_id", report.ParentID, "err", err)
		c.recorder.RecordError("journal")
	}
}

func (c *Controller) notifyCompletion(ctx context.Context, report *types.ExecutionReport, runErr error) {
	summary := alerting.NewExecutionSummary(report)

	if errors.Is(runErr, types.ErrCollaboratorUnavailable) && !types.IsRetryable(runErr) {
		c.notify(ctx, alerting.EventCollaboratorUnavailable, "Collaborator unavailable", summary.Fields()...)
	}

	event, message := alerting.EventExecutionCompleted, "Execution completed"
	if report.Degraded {
		event, message = alerting.EventExecutionDegraded, "Execution completed (degraded)"
	}
	c.notify(ctx, event, message, summary.Fields()...)
}

func (c *Controller) notify(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if c.alerter == nil {
		return
	}
	actx := context.WithoutCancel(ctx)
	if err := alerting.Notify(actx, c.alerter, event, message, fields...); err != nil {
		c.logger.Warn("failed to send alert", "event", event, "err", err)
	}
}
