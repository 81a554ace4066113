package observer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

type recordingSink struct {
	mu     sync.Mutex
	depths []types.DepthSnapshot
	trades []decimal.Decimal
}

func (s *recordingSink) SimulateDepth(_ string, depth types.DepthSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depths = append(s.depths, depth)
}

func (s *recordingSink) SimulateTrade(_ string, price decimal.Decimal, _ int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, price)
}

const sampleCSV = `timestamp,symbol,level,bid_price,bid_size,ask_price,ask_size,trade_price,trade_size
2024-11-01 14:00:00,TSE:7203,L1,99.9,100,100.1,100,100.0,50
2024-11-01 14:00:00,TSE:7203,L2,99.8,200,100.2,200,,
2024-11-01 14:00:01,TSE:7203,L1,99.95,100,100.15,100,,
2024-11-01 14:00:01,OTHER,L1,10,1,11,1,,
bad,TSE:7203,L1,1,1,1,1,,
2024-11-01 14:00:02,,L1,100,100,100.2,100,,
`

func TestParseCSV(t *testing.T) {
	events, err := ParseCSV(strings.NewReader(sampleCSV), "TSE:7203")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}

	first := events[0]
	if len(first.Depth) != 2 {
		t.Errorf("first depth levels = %d, want 2", len(first.Depth))
	}
	if !first.Depth["L2"].AskPrice.Equal(decimal.RequireFromString("100.2")) {
		t.Errorf("L2 ask = %s, want 100.2", first.Depth["L2"].AskPrice)
	}
	if !first.HasTrade() || first.TradeSize != 50 {
		t.Errorf("first trade = %s x %d, want 100 x 50", first.TradePrice, first.TradeSize)
	}

	if events[1].HasTrade() {
		t.Error("second snapshot should have no trade")
	}
	if events[2].Symbol != "OTHER" {
		t.Errorf("third symbol = %s, want OTHER", events[2].Symbol)
	}
	if events[3].Symbol != "TSE:7203" {
		t.Errorf("empty symbol column = %q, want default TSE:7203", events[3].Symbol)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"1730469600", false},
		{"2024-11-01 14:00:00", false},
		{"2024-11-01 14:00:00.250", false},
		{"2024-11-01T14:00:00Z", false},
		{"yesterday", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestReplayFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	feed := NewReplayFeed(path, "TSE:7203")
	ch, err := feed.Subscribe(context.Background(), "TSE:7203")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	count := 0
	for range ch {
		count++
	}
	if count != 3 {
		t.Errorf("received = %d, want 3", count)
	}
	if feed.EventCount() != 4 {
		t.Errorf("EventCount() = %d, want 4", feed.EventCount())
	}
	if feed.Name() != "replay" {
		t.Errorf("Name() = %s, want replay", feed.Name())
	}
}

func TestReplayFeed_MissingFile(t *testing.T) {
	feed := NewReplayFeed(filepath.Join(t.TempDir(), "missing.csv"), "TSE:7203")
	if _, err := feed.Subscribe(context.Background(), "TSE:7203"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestObserver_Run(t *testing.T) {
	base := time.Date(2024, 11, 1, 14, 0, 0, 0, time.UTC)
	depth := types.DepthSnapshot{"L1": {
		BidPrice: decimal.NewFromInt(99), BidSize: 10,
		AskPrice: decimal.NewFromInt(101), AskSize: 10,
	}}

	feed := NewMemoryFeed(
		Snapshot{Timestamp: base, Symbol: "TSE:7203", Depth: depth, TradePrice: decimal.NewFromInt(100), TradeSize: 5},
		Snapshot{Timestamp: base.Add(time.Second), Symbol: "OTHER", Depth: depth},
	)
	feed.AddEvent(Snapshot{Timestamp: base.Add(2 * time.Second), Symbol: "TSE:7203", Depth: depth})

	sink := &recordingSink{}
	obs := NewObserver(feed, sink, 0, nil)

	applied, err := obs.Run(context.Background(), "TSE:7203")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	if len(sink.depths) != 2 {
		t.Errorf("depths = %d, want 2", len(sink.depths))
	}
	if len(sink.trades) != 1 {
		t.Errorf("trades = %d, want 1", len(sink.trades))
	}
	if err := obs.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestObserver_RunPacedCancel(t *testing.T) {
	base := time.Date(2024, 11, 1, 14, 0, 0, 0, time.UTC)
	feed := NewMemoryFeed(
		Snapshot{Timestamp: base, Symbol: "TSE:7203"},
		Snapshot{Timestamp: base.Add(time.Hour), Symbol: "TSE:7203"},
	)

	sink := &recordingSink{}
	obs := NewObserver(feed, sink, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	applied, err := obs.Run(ctx, "TSE:7203")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}
