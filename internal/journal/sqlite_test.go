package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *SQLiteJournal {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal-test.db")
	j, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func testReport(parentID string, completed time.Time) *types.ExecutionReport {
	return &types.ExecutionReport{
		ParentID:         parentID,
		BotID:            "bot-1",
		Strategy:         types.StrategyTWAP,
		Symbol:           "ZBH0:MBO",
		Side:             types.SideSell,
		TargetQty:        100,
		StrategyValue:    decimal.RequireFromString("7920"),
		LiquidationValue: decimal.RequireFromString("1960"),
		TradedValue:      decimal.RequireFromString("9880"),
		FilledQty:        100,
		PenaltyQty:       20,
		Penalty:          decimal.RequireFromString("2.5"),
		Elapsed:          31500 * time.Millisecond,
		CostPerShare:     decimal.RequireFromString("-1.2"),
		BenchmarkPrice:   decimal.RequireFromString("100"),
		BenchmarkVWAP:    decimal.RequireFromString("99.95"),
		ChildOrders:      2,
		StartedAt:        completed.Add(-31500 * time.Millisecond),
		CompletedAt:      completed,
	}
}

func testChildren(at time.Time) []types.ChildOrder {
	return []types.ChildOrder{
		{
			InternalID: 7, ExchangeID: "EX-1", Symbol: "ZBH0:MBO", Side: types.SideSell,
			Price: decimal.RequireFromString("99"), OrigQty: 80, RemainingQty: 0,
			Status: types.ChildFullyFilled, Strategy: types.StrategyTWAP, SliceIndex: 0,
			SubmittedAt: at, UpdatedAt: at,
		},
		{
			InternalID: 8, ExchangeID: "EX-2", Symbol: "ZBH0:MBO", Side: types.SideSell,
			Price: decimal.RequireFromString("98"), OrigQty: 20, RemainingQty: 0,
			Status: types.ChildFullyFilled, Strategy: types.StrategyLiquidate, SliceIndex: -1,
			SubmittedAt: at, UpdatedAt: at,
		},
	}
}

func TestSQLiteJournal_RecordAndGet(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	report := testReport("parent-1", now)
	if err := j.Record(ctx, report, testChildren(now)); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := j.GetReport(ctx, "parent-1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got == nil {
		t.Fatal("expected report, got nil")
	}

	if got.BotID != "bot-1" || got.Strategy != types.StrategyTWAP || got.Side != types.SideSell {
		t.Errorf("identity = %s/%s/%s", got.BotID, got.Strategy, got.Side)
	}
	if got.FilledQty != 100 || got.PenaltyQty != 20 {
		t.Errorf("filled/penalty qty = %d/%d, want 100/20", got.FilledQty, got.PenaltyQty)
	}
	if !got.TradedValue.Equal(report.TradedValue) {
		t.Errorf("traded value = %s, want %s", got.TradedValue, report.TradedValue)
	}
	if !got.CostPerShare.Equal(report.CostPerShare) {
		t.Errorf("cost = %s, want %s", got.CostPerShare, report.CostPerShare)
	}
	if !got.Penalty.Equal(report.Penalty) {
		t.Errorf("penalty = %s, want %s", got.Penalty, report.Penalty)
	}
	if got.Elapsed != report.Elapsed {
		t.Errorf("elapsed = %v, want %v", got.Elapsed, report.Elapsed)
	}
	if !got.CompletedAt.Equal(now) {
		t.Errorf("completed = %v, want %v", got.CompletedAt, now)
	}
	if got.Degraded {
		t.Error("degraded = true, want false")
	}

	children, err := j.GetChildOrders(ctx, "parent-1")
	if err != nil {
		t.Fatalf("get child orders: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[0].InternalID != 7 || children[1].InternalID != 8 {
		t.Errorf("ids = %d,%d, want 7,8", children[0].InternalID, children[1].InternalID)
	}
	if children[1].Strategy != types.StrategyLiquidate || children[1].SliceIndex != -1 {
		t.Errorf("second child = %s slice %d, want LIQUIDATE slice -1", children[1].Strategy, children[1].SliceIndex)
	}
	if children[0].Status != types.ChildFullyFilled || !children[0].Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("first child = %s @ %s", children[0].Status, children[0].Price)
	}
}

func TestSQLiteJournal_GetMissing(t *testing.T) {
	j := setupTestDB(t)

	got, err := j.GetReport(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestSQLiteJournal_DegradedSentinelReport(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	report := testReport("parent-degraded", now)
	report.FilledQty = 0
	report.TradedValue = decimal.Zero
	report.CostPerShare = decimal.RequireFromString("999.99")
	report.BenchmarkPrice = decimal.RequireFromString("999.99")
	report.Degraded = true
	report.Err = "collaborator unavailable: broker.submit (fatal): broker not connected"

	if err := j.Record(ctx, report, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := j.GetReport(ctx, "parent-degraded")
	if err != nil || got == nil {
		t.Fatalf("get report: %v, %v", got, err)
	}
	if !got.Degraded || got.Err != report.Err {
		t.Errorf("degraded/err = %v/%q", got.Degraded, got.Err)
	}
	if !got.CostPerShare.Equal(report.CostPerShare) {
		t.Errorf("cost = %s, want 999.99", got.CostPerShare)
	}
}

func TestSQLiteJournal_AppendOnly(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := j.Record(ctx, testReport("parent-dup", now), testChildren(now)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, testReport("parent-dup", now), testChildren(now)); err == nil {
		t.Error("second record of the same parent succeeded, want error")
	}

	children, err := j.GetChildOrders(ctx, "parent-dup")
	if err != nil {
		t.Fatalf("get child orders: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("children = %d, want 2 (failed record rolled back)", len(children))
	}
}

func TestSQLiteJournal_ListReports(t *testing.T) {
	j := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"p1", "p2", "p3"} {
		if err := j.Record(ctx, testReport(id, base.Add(time.Duration(i)*time.Minute)), nil); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	reports, err := j.ListReports(ctx, 2)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[0].ParentID != "p3" || reports[1].ParentID != "p2" {
		t.Errorf("order = %s,%s, want p3,p2", reports[0].ParentID, reports[1].ParentID)
	}
}

func TestSQLiteJournal_RecordNil(t *testing.T) {
	j := setupTestDB(t)

	if err := j.Record(context.Background(), nil, nil); err == nil {
		t.Error("Record(nil) error = nil, want error")
	}
}

func TestSQLiteJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	j, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	if err := j.Record(ctx, testReport("persisted", now), testChildren(now)); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = j.Close()

	j, err = NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j.Close()

	got, err := j.GetReport(ctx, "persisted")
	if err != nil || got == nil {
		t.Fatalf("get report after reopen: %v, %v", got, err)
	}
}
