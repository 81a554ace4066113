package cost

import (
	"errors"
	"testing"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker/brokertest"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPerShare(t *testing.T) {
	tests := []struct {
		name          string
		value         string
		qty           int64
		benchmark     string
		side          types.Side
		wantCost      string
		wantBenchmark string
	}{
		{"sell above benchmark", "10100", 100, "100", types.SideSell, "1", "100"},
		{"sell below benchmark", "9950", 100, "100", types.SideSell, "-0.5", "100"},
		{"buy above benchmark", "10100", 100, "100", types.SideBuy, "-1", "100"},
		{"buy below benchmark", "9950", 100, "100", types.SideBuy, "0.5", "100"},
		{"zero qty", "0", 0, "100", types.SideBuy, "999.99", "999.99"},
		{"zero qty with value", "500", 0, "100", types.SideSell, "999.99", "999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := PerShare(d(tt.value), tt.qty, d(tt.benchmark), tt.side)
			if !c.Equal(d(tt.wantCost)) {
				t.Errorf("cost = %s, want %s", c, tt.wantCost)
			}
			if !b.Equal(d(tt.wantBenchmark)) {
				t.Errorf("benchmark = %s, want %s", b, tt.wantBenchmark)
			}
		})
	}
}

func TestPerShare_BuyNegatesSell(t *testing.T) {
	cases := []struct {
		value     string
		qty       int64
		benchmark string
	}{
		{"10037.5", 100, "100.25"},
		{"1", 3, "0.5"},
		{"99999", 7, "12345.6789"},
	}

	for _, c := range cases {
		buy, _ := PerShare(d(c.value), c.qty, d(c.benchmark), types.SideBuy)
		sell, _ := PerShare(d(c.value), c.qty, d(c.benchmark), types.SideSell)
		if !buy.Equal(sell.Neg()) {
			t.Errorf("value=%s qty=%d: buy %s != -sell %s", c.value, c.qty, buy, sell)
		}
	}
}

func TestAccountant_CaptureOnce(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	venue.VWAPPx = d("99.5")
	a := NewAccountant("ZBH0:MBO", types.SideBuy, 100, nil)

	price, vwap, err := a.Capture(venue)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if !price.Equal(d("100")) || !vwap.Equal(d("99.5")) {
		t.Errorf("Capture() = %s/%s, want 100/99.5", price, vwap)
	}

	venue.Mid = d("150")
	venue.VWAPPx = d("150")
	price, vwap, _ = a.Capture(venue)
	if !price.Equal(d("100")) || !vwap.Equal(d("99.5")) {
		t.Errorf("second Capture() = %s/%s, want benchmark unchanged", price, vwap)
	}
}

func TestAccountant_CaptureError(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	venue.MidErr = errors.New("no quote")
	a := NewAccountant("ZBH0:MBO", types.SideBuy, 100, nil)

	_, _, err := a.Capture(venue)
	if !errors.Is(err, types.ErrCollaboratorUnavailable) {
		t.Errorf("Capture() error = %v, want ErrCollaboratorUnavailable", err)
	}
}

func TestAccountant_Summarize(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	a := NewAccountant("ZBH0:MBO", types.SideSell, 100, nil)
	if _, _, err := a.Capture(venue); err != nil {
		t.Fatal(err)
	}

	s := types.StrategySummary{
		Strategy:    types.StrategyTWAP,
		Side:        types.SideSell,
		TargetQty:   100,
		FilledQty:   40,
		ResidualQty: 60,
		TradedValue: d("4020"),
	}
	a.Summarize(&s)

	if !s.CostPerShare.Equal(d("0.5")) {
		t.Errorf("CostPerShare = %s, want 0.5", s.CostPerShare)
	}
	if !s.Benchmark.Equal(d("100")) {
		t.Errorf("Benchmark = %s, want 100", s.Benchmark)
	}

	empty := types.StrategySummary{Strategy: types.StrategyAggressive, Side: types.SideSell, TargetQty: 100, ResidualQty: 100}
	a.Summarize(&empty)
	if !empty.CostPerShare.Equal(Sentinel) || !empty.Benchmark.Equal(Sentinel) {
		t.Errorf("zero fill summary = %s/%s, want sentinels", empty.CostPerShare, empty.Benchmark)
	}
}

func TestAccountant_Report(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	a := NewAccountant("ZBH0:MBO", types.SideBuy, 100, nil)
	price, vwap, _ := a.Capture(venue)

	start := time.Date(2024, 11, 1, 14, 0, 0, 0, time.UTC)
	parent := types.ParentOrder{
		ID:             "p-1",
		BotID:          "bot",
		Strategy:       types.StrategyTWAP,
		Symbol:         "ZBH0:MBO",
		Side:           types.SideBuy,
		TargetQty:      100,
		BenchmarkPrice: price,
		BenchmarkVWAP:  vwap,
		StartedAt:      start,
	}

	r := a.Report(Outcome{
		Parent:      parent,
		Strategy:    types.StrategySummary{Strategy: types.StrategyTWAP, FilledQty: 80, TradedValue: d("8040")},
		Liquidation: types.StrategySummary{Strategy: types.StrategyLiquidate, FilledQty: 20, TradedValue: d("2020")},
		Penalty:     d("2.5"),
		PenaltyQty:  20,
		ChildOrders: 12,
		CompletedAt: start.Add(31 * time.Second),
	})

	// (8040 + 2020) / 100 - 100 = 0.6, negated for a buy.
	if !r.CostPerShare.Equal(d("-0.6")) {
		t.Errorf("CostPerShare = %s, want -0.6", r.CostPerShare)
	}
	if !r.TradedValue.Equal(d("10060")) {
		t.Errorf("TradedValue = %s, want 10060", r.TradedValue)
	}
	if r.FilledQty != 100 || r.UnfilledQty != 0 {
		t.Errorf("FilledQty/UnfilledQty = %d/%d, want 100/0", r.FilledQty, r.UnfilledQty)
	}
	if r.Elapsed != 31*time.Second {
		t.Errorf("Elapsed = %v, want 31s", r.Elapsed)
	}
	if len(r.Summaries) != 2 {
		t.Errorf("Summaries = %d, want 2", len(r.Summaries))
	}
	if r.Degraded {
		t.Error("Degraded = true, want false")
	}
}

func TestAccountant_ReportNothingFilled(t *testing.T) {
	venue := brokertest.NewVenue(d("100"), brokertest.FillAll)
	a := NewAccountant("ZBH0:MBO", types.SideSell, 100, nil)
	a.Capture(venue)

	r := a.Report(Outcome{
		Parent:      types.ParentOrder{TargetQty: 100, Side: types.SideSell},
		Penalty:     d("12.5"),
		PenaltyQty:  100,
		Err:         errors.New("boom"),
		CompletedAt: time.Now(),
	})

	if !r.CostPerShare.Equal(Sentinel) || !r.BenchmarkPrice.Equal(Sentinel) {
		t.Errorf("report = %s/%s, want sentinels", r.CostPerShare, r.BenchmarkPrice)
	}
	if r.UnfilledQty != 100 {
		t.Errorf("UnfilledQty = %d, want 100", r.UnfilledQty)
	}
	if !r.Degraded || r.Err != "boom" {
		t.Errorf("Degraded/Err = %v/%q, want true/boom", r.Degraded, r.Err)
	}
}

func TestString(t *testing.T) {
	if got := String(Sentinel); got != "999.99 (no fills)" {
		t.Errorf("String(Sentinel) = %q", got)
	}
	if got := String(d("-0.125")); got != "-0.1250" {
		t.Errorf("String(-0.125) = %q", got)
	}
}
