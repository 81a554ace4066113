package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/cost"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

func TestReportPrinter_Print(t *testing.T) {
	start := time.Date(2024, 11, 1, 14, 0, 0, 0, time.UTC)
	escalation := &types.StrategySummary{
		Strategy:     types.StrategyAggressive,
		TargetQty:    20,
		FilledQty:    20,
		TradedValue:  decimal.NewFromInt(1960),
		CostPerShare: decimal.NewFromInt(-2),
	}
	report := &types.ExecutionReport{
		ParentID:       "parent-1",
		Strategy:       types.StrategyTWAP,
		Symbol:         "ZBH0:MBO",
		Side:           types.SideSell,
		TargetQty:      100,
		FilledQty:      100,
		TradedValue:    decimal.NewFromInt(9880),
		StrategyValue:  decimal.NewFromInt(9880),
		CostPerShare:   decimal.RequireFromString("-1.2"),
		BenchmarkPrice: decimal.NewFromInt(100),
		BenchmarkVWAP:  decimal.NewFromInt(100),
		Penalty:        decimal.Zero,
		ChildOrders:    3,
		Elapsed:        2 * time.Second,
		Summaries: []types.StrategySummary{{
			Strategy:    types.StrategyTWAP,
			TargetQty:   100,
			FilledQty:   100,
			TradedValue: decimal.NewFromInt(9880),
			Slices: []types.ExecutionSlice{
				{Index: 0, AllottedQty: 80, LadderSize: 80, FilledQty: 80, WindowStart: start, WindowEnd: start.Add(time.Second), TradedValue: decimal.NewFromInt(7920)},
			},
			Escalated:  true,
			Escalation: escalation,
		}},
	}

	var buf bytes.Buffer
	NewReportPrinter(&buf).Print(report)
	out := buf.String()

	for _, want := range []string{
		"TWAP ZBH0:MBO SELL 100",
		"COMPLETED",
		"100 / 100",
		"9880.00",
		"-1.2000",
		"slice  0",
		"escalated",
		"AGGRESSIVE",
		"100.0%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colors written to a non-terminal")
	}
}

func TestReportPrinter_DegradedSentinel(t *testing.T) {
	report := &types.ExecutionReport{
		ParentID:       "parent-2",
		Strategy:       types.StrategyAggressive,
		Symbol:         "ZBH0:MBO",
		Side:           types.SideBuy,
		TargetQty:      10,
		CostPerShare:   cost.Sentinel,
		BenchmarkPrice: cost.Sentinel,
		BenchmarkVWAP:  cost.Sentinel,
		PenaltyQty:     10,
		Penalty:        decimal.RequireFromString("1.25"),
		Degraded:       true,
		Err:            "broker not connected",
	}

	var buf bytes.Buffer
	NewReportPrinter(&buf).Print(report)
	out := buf.String()

	for _, want := range []string{"DEGRADED", "999.99 (no fills)", "1.250 on 10", "broker not connected", "0.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFillBar(t *testing.T) {
	p := &ReportPrinter{width: 80}

	tests := []struct {
		filled, target int64
		want           string
	}{
		{0, 100, "0.0%"},
		{50, 100, "50.0%"},
		{100, 100, "100.0%"},
		{5, 0, "0.0%"},
	}

	for _, tt := range tests {
		if got := p.fillBar(tt.filled, tt.target); !strings.HasSuffix(got, tt.want) {
			t.Errorf("fillBar(%d, %d) = %q, want suffix %q", tt.filled, tt.target, got, tt.want)
		}
	}
}
