package observer

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// ReplayFeed provides recorded book snapshots from a CSV file.
type ReplayFeed struct {
	filePath string
	symbol   string
	events   []Snapshot
	loaded   bool
}

// NewReplayFeed creates a new replay feed from a CSV file.
// CSV format: timestamp,symbol,level,bid_price,bid_size,ask_price,ask_size[,trade_price,trade_size]
// Consecutive rows with the same timestamp and symbol form one snapshot. An
// empty symbol column uses symbol.
func NewReplayFeed(filePath, symbol string) *ReplayFeed {
	return &ReplayFeed{
		filePath: filePath,
		symbol:   symbol,
	}
}

// Subscribe starts sending recorded snapshots.
// The channel will close when all data has been sent or context is cancelled.
func (f *ReplayFeed) Subscribe(ctx context.Context, symbol string) (<-chan Snapshot, error) {
	if !f.loaded {
		if err := f.load(); err != nil {
			return nil, err
		}
	}

	return stream(ctx, f.events, symbol), nil
}

// Close releases resources.
func (f *ReplayFeed) Close() error {
	f.events = nil
	f.loaded = false
	return nil
}

// Name returns the feed identifier.
func (f *ReplayFeed) Name() string {
	return "replay"
}

// EventCount returns the number of loaded snapshots.
func (f *ReplayFeed) EventCount() int {
	return len(f.events)
}

func (f *ReplayFeed) load() error {
	file, err := os.Open(f.filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	events, err := ParseCSV(file, f.symbol)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}

	f.events = events
	f.loaded = true
	return nil
}

func stream(ctx context.Context, events []Snapshot, symbol string) <-chan Snapshot {
	ch := make(chan Snapshot, 100)

	go func() {
		defer close(ch)
		for _, event := range events {
			if event.Symbol != symbol {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- event:
			}
		}
	}()

	return ch
}

// ParseCSV parses recorded book rows into snapshots. Rows that do not parse
// are skipped.
func ParseCSV(r io.Reader, symbol string) ([]Snapshot, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var (
		events  []Snapshot
		current *Snapshot
	)
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lineNum++

		// Skip header row
		if lineNum == 1 && isHeader(record) {
			continue
		}

		if len(record) < 7 {
			continue // Skip invalid rows
		}

		row, err := parseRecord(record, symbol)
		if err != nil {
			continue
		}

		if current == nil || !current.Timestamp.Equal(row.ts) || current.Symbol != row.symbol {
			events = append(events, Snapshot{
				Timestamp: row.ts,
				Symbol:    row.symbol,
				Depth:     make(types.DepthSnapshot),
			})
			current = &events[len(events)-1]
		}

		current.Depth[row.level] = row.book
		if row.tradeSize > 0 {
			current.TradePrice = row.tradePrice
			current.TradeSize = row.tradeSize
		}
	}

	return events, nil
}

type csvRow struct {
	ts         time.Time
	symbol     string
	level      string
	book       types.Level
	tradePrice decimal.Decimal
	tradeSize  int64
}

// parseRecord parses a single CSV record.
func parseRecord(record []string, symbol string) (csvRow, error) {
	var row csvRow

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return row, fmt.Errorf("parse timestamp: %w", err)
	}
	row.ts = ts

	row.symbol = strings.TrimSpace(record[1])
	if row.symbol == "" {
		row.symbol = symbol
	}
	row.level = strings.TrimSpace(record[2])
	if row.level == "" {
		return row, fmt.Errorf("empty level")
	}

	if row.book.BidPrice, err = decimal.NewFromString(record[3]); err != nil {
		return row, fmt.Errorf("parse bid price: %w", err)
	}
	if row.book.BidSize, err = strconv.ParseInt(record[4], 10, 64); err != nil {
		return row, fmt.Errorf("parse bid size: %w", err)
	}
	if row.book.AskPrice, err = decimal.NewFromString(record[5]); err != nil {
		return row, fmt.Errorf("parse ask price: %w", err)
	}
	if row.book.AskSize, err = strconv.ParseInt(record[6], 10, 64); err != nil {
		return row, fmt.Errorf("parse ask size: %w", err)
	}

	// Trade print (optional)
	if len(record) > 8 && record[7] != "" && record[8] != "" {
		price, perr := decimal.NewFromString(record[7])
		size, serr := strconv.ParseInt(record[8], 10, 64)
		if perr == nil && serr == nil {
			row.tradePrice = price
			row.tradeSize = size
		}
	}

	return row, nil
}

// parseTimestamp tries multiple timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	// Try Unix timestamp first
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}

	// Try common date formats
	formats := []string{
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unknown timestamp format: %s", s)
}

// isHeader checks if a record looks like a header row.
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "timestamp", "time", "ts", "datetime":
		return true
	}
	return false
}

// MemoryFeed provides snapshots from an in-memory slice.
// Useful for testing.
type MemoryFeed struct {
	events []Snapshot
}

// NewMemoryFeed creates a feed from pre-loaded snapshots.
func NewMemoryFeed(events ...Snapshot) *MemoryFeed {
	return &MemoryFeed{events: events}
}

// Subscribe starts sending snapshots from memory.
func (f *MemoryFeed) Subscribe(ctx context.Context, symbol string) (<-chan Snapshot, error) {
	return stream(ctx, f.events, symbol), nil
}

// Close is a no-op for memory feed.
func (f *MemoryFeed) Close() error {
	return nil
}

// Name returns the feed identifier.
func (f *MemoryFeed) Name() string {
	return "memory"
}

// AddEvent adds a snapshot to the feed.
func (f *MemoryFeed) AddEvent(event Snapshot) {
	f.events = append(f.events, event)
}

// Ensure feeds implement MarketDataFeed
var (
	_ MarketDataFeed = (*ReplayFeed)(nil)
	_ MarketDataFeed = (*MemoryFeed)(nil)
)
