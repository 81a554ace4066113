package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker/brokertest"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/cost"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/pricing"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

func newTWAP(deps *Deps, slices int) *TWAP {
	return NewTWAP(deps, TWAPConfig{Slices: slices}, NewAggressive(deps))
}

func TestTWAP_FirstSliceFillsEverything(t *testing.T) {
	venue := brokertest.NewVenue(d("99"), brokertest.FillAll)
	deps := newDeps(venue, fullLadder("100", 25))
	deps.Costs = cost.NewAccountant(testSymbol, types.SideSell, 100, nil)
	if _, _, err := deps.Costs.Capture(venue); err != nil {
		t.Fatal(err)
	}
	twap := newTWAP(deps, 10)

	s, err := twap.Execute(context.Background(), 100, types.SideSell, 30*time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !s.TradedValue.Equal(d("10000")) {
		t.Errorf("TradedValue = %s, want 10000", s.TradedValue)
	}
	if s.ResidualQty != 0 {
		t.Errorf("ResidualQty = %d, want 0", s.ResidualQty)
	}
	if len(s.Slices) != 1 {
		t.Errorf("slices run = %d, want 1", len(s.Slices))
	}
	if s.Escalated {
		t.Error("Escalated = true, want false")
	}
	if s.ChildOrders != 4 {
		t.Errorf("ChildOrders = %d, want 4", s.ChildOrders)
	}

	liq := NewLiquidation(deps, decimal.Zero, 0)
	penalty, ls, err := liq.Liquidate(context.Background(), s.ResidualQty, types.SideSell)
	if err != nil {
		t.Fatal(err)
	}
	if !penalty.IsZero() || !ls.TradedValue.IsZero() {
		t.Errorf("Liquidate(0) = %s/%s, want 0/0", penalty, ls.TradedValue)
	}

	// 10000/100 - 99, not negated for a sell.
	if !s.CostPerShare.Equal(d("1")) {
		t.Errorf("CostPerShare = %s, want 1", s.CostPerShare)
	}
}

func TestTWAP_NothingFillsEscalatesThenLiquidates(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillNone)
	deps := newDeps(venue, fullLadder("99", 50))
	twap := newTWAP(deps, 10)

	s, err := twap.Execute(context.Background(), 100, types.SideSell, 30*time.Second)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(s.Slices) != 10 {
		t.Errorf("slices run = %d, want 10", len(s.Slices))
	}
	for _, sl := range s.Slices {
		if sl.FilledQty != 0 {
			t.Errorf("slice %d filled %d, want 0", sl.Index, sl.FilledQty)
		}
	}
	if !s.Escalated || s.Escalation == nil {
		t.Fatal("Escalated = false, want escalation to aggressive")
	}
	if s.Escalation.TargetQty != 100 || s.Escalation.Strategy != types.StrategyAggressive {
		t.Errorf("escalation = %s of %d, want AGGRESSIVE of 100", s.Escalation.Strategy, s.Escalation.TargetQty)
	}
	if s.ResidualQty != 100 {
		t.Errorf("ResidualQty = %d, want 100", s.ResidualQty)
	}

	liq := NewLiquidation(deps, DefaultPenaltyRate, DefaultLiquidationDeadline)
	penalty, ls, err := liq.Liquidate(context.Background(), s.ResidualQty, types.SideSell)
	if err != nil {
		t.Fatal(err)
	}
	if !penalty.Equal(d("12.5")) {
		t.Errorf("penalty = %s, want 12.5", penalty)
	}
	if ls.ResidualQty != 100 {
		t.Errorf("liquidation residual = %d, want 100", ls.ResidualQty)
	}
}

func TestTWAP_SliceFillsPlusResidualEqualTarget(t *testing.T) {
	fills := []brokertest.FillFunc{brokertest.FillAll, brokertest.FillNone, brokertest.FillHalf}

	for _, fill := range fills {
		for _, n := range []int{1, 3, 7, 10} {
			venue := brokertest.NewVenue(d("100"), fill)
			deps := newDeps(venue, pricing.NewDepthWalker())
			twap := newTWAP(deps, n)

			s, err := twap.Execute(context.Background(), 100, types.SideBuy, 10*time.Second)
			if err != nil {
				t.Fatalf("n=%d: Execute() error = %v", n, err)
			}

			var sum int64
			for _, sl := range s.Slices {
				sum += sl.FilledQty
			}
			if s.Escalation != nil {
				sum += s.Escalation.FilledQty
			}
			if sum+s.ResidualQty != 100 {
				t.Errorf("n=%d: fills %d + residual %d != 100", n, sum, s.ResidualQty)
			}
			if s.ResidualQty < 0 || s.ResidualQty > 100 {
				t.Errorf("n=%d: residual %d outside [0, 100]", n, s.ResidualQty)
			}
		}
	}
}

func TestTWAP_RequestsCarrySliceAndRunningVWAP(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	pricer := &mockPricer{fn: func(req pricing.Request) (pricing.Ladder, error) {
		price := d("100").Add(decimal.NewFromInt(int64(req.Slice)))
		q := min(req.Residual, 10)
		return pricing.Ladder{
			Rungs:      []pricing.Rung{{Price: price, Qty: q}},
			Size:       q,
			TargetSize: q,
		}, nil
	}}
	deps := newDeps(venue, pricer)
	twap := newTWAP(deps, 3)

	s, err := twap.Execute(context.Background(), 30, types.SideBuy, 9*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if s.ResidualQty != 0 {
		t.Fatalf("ResidualQty = %d, want 0", s.ResidualQty)
	}

	reqs := pricer.Requests()
	if len(reqs) != 3 {
		t.Fatalf("pricing calls = %d, want 3", len(reqs))
	}
	wantPre := []string{"100", "100", "100.5"}
	wantResidual := []int64{30, 20, 10}
	for i, req := range reqs {
		if req.Aggressive || req.Slice != i || req.SliceCount != 3 {
			t.Errorf("request %d: aggressive=%v slice=%d/%d", i, req.Aggressive, req.Slice, req.SliceCount)
		}
		if req.Residual != wantResidual[i] {
			t.Errorf("request %d: residual = %d, want %d", i, req.Residual, wantResidual[i])
		}
		if !req.PreVWAP.Equal(d(wantPre[i])) {
			t.Errorf("request %d: PreVWAP = %s, want %s", i, req.PreVWAP, wantPre[i])
		}
	}

	for i, o := range venue.Submitted() {
		if o.SliceIndex != i || o.Strategy != types.StrategyTWAP {
			t.Errorf("child %d: slice %d strategy %s", i, o.SliceIndex, o.Strategy)
		}
	}
}

func TestTWAP_SliceWindows(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillNone)
	deps := newDeps(venue, fullLadder("101", 100))
	start := deps.Clock.(*ManualClock).Peek()
	twap := newTWAP(deps, 4)

	s, err := twap.Execute(context.Background(), 40, types.SideBuy, 8*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Slices) != 4 {
		t.Fatalf("slices = %d, want 4", len(s.Slices))
	}
	for i, sl := range s.Slices {
		wantStart := start.Add(time.Duration(i) * 2 * time.Second)
		if !sl.WindowStart.Equal(wantStart) || !sl.WindowEnd.Equal(wantStart.Add(2*time.Second)) {
			t.Errorf("slice %d window = [%v, %v]", i, sl.WindowStart, sl.WindowEnd)
		}
	}
	if s.Elapsed < 8*time.Second {
		t.Errorf("Elapsed = %v, want at least the budget", s.Elapsed)
	}
}

func TestTWAP_EscalatesEarlyWhenWindowsAreShort(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillNone)
	deps := newDeps(venue, fullLadder("101", 100))
	twap := newTWAP(deps, 10)

	s, err := twap.Execute(context.Background(), 100, types.SideBuy, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Escalated {
		t.Fatal("Escalated = false, want true")
	}
	if len(s.Slices) >= 10 {
		t.Errorf("slices run = %d, want slicing to stop once under a second remains", len(s.Slices))
	}
}

func TestTWAP_InvalidInput(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	twap := newTWAP(newDeps(venue, fullLadder("101", 100)), 5)

	if _, err := twap.Execute(context.Background(), 100, types.SideBuy, 0); !errors.Is(err, types.ErrInvalidDeadline) {
		t.Errorf("deadline 0 error = %v, want ErrInvalidDeadline", err)
	}
	if _, err := twap.Execute(context.Background(), -5, types.SideBuy, time.Second); !errors.Is(err, types.ErrInvalidQuantity) {
		t.Errorf("qty -5 error = %v, want ErrInvalidQuantity", err)
	}
}

func TestTWAP_FatalErrorReturnsPartialSummary(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	calls := 0
	pricer := &mockPricer{fn: func(req pricing.Request) (pricing.Ladder, error) {
		calls++
		if calls > 1 {
			return pricing.Ladder{}, types.NewFatal("pricing.ladder", errors.New("malformed response"))
		}
		return pricing.Ladder{Rungs: []pricing.Rung{{Price: d("101"), Qty: 10}}, Size: 10, TargetSize: 10}, nil
	}}
	twap := newTWAP(newDeps(venue, pricer), 5)

	s, err := twap.Execute(context.Background(), 50, types.SideBuy, 10*time.Second)
	if !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrCollaboratorUnavailable", err)
	}
	if s.FilledQty != 10 || s.ResidualQty != 40 {
		t.Errorf("FilledQty/ResidualQty = %d/%d, want 10/40", s.FilledQty, s.ResidualQty)
	}
	if s.Escalated {
		t.Error("Escalated = true, want a fatal error to stop slicing")
	}
}
