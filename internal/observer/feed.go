// Package observer replays recorded market data into a venue.
package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Snapshot is the book of one symbol at one instant, with the trade print
// seen at that instant if any.
type Snapshot struct {
	Timestamp  time.Time
	Symbol     string
	Depth      types.DepthSnapshot
	TradePrice decimal.Decimal
	TradeSize  int64
}

// HasTrade reports whether the snapshot carries a trade print.
func (s Snapshot) HasTrade() bool {
	return s.TradeSize > 0 && s.TradePrice.IsPositive()
}

// MarketDataFeed defines the interface for market data sources.
type MarketDataFeed interface {
	// Subscribe starts receiving snapshots for a symbol. The channel is
	// closed when the context is cancelled or the feed ends.
	Subscribe(ctx context.Context, symbol string) (<-chan Snapshot, error)

	// Close shuts down the feed and releases resources.
	Close() error

	// Name returns the feed identifier (e.g., "replay", "memory").
	Name() string
}

// Sink receives market data. paper.Broker is one.
type Sink interface {
	SimulateDepth(symbol string, depth types.DepthSnapshot)
	SimulateTrade(symbol string, price decimal.Decimal, volume int64)
}

// Observer pumps a feed into a sink.
type Observer struct {
	feed   MarketDataFeed
	sink   Sink
	speed  float64
	logger *slog.Logger
}

// NewObserver creates an observer. speed scales the recorded gaps between
// snapshots: 1 replays in real time, 10 ten times faster, zero or less
// applies snapshots back to back.
func NewObserver(feed MarketDataFeed, sink Sink, speed float64, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		feed:   feed,
		sink:   sink,
		speed:  speed,
		logger: logger,
	}
}

// Run replays symbol into the sink until the feed ends or ctx is done and
// returns the number of snapshots applied.
func (o *Observer) Run(ctx context.Context, symbol string) (int, error) {
	events, err := o.feed.Subscribe(ctx, symbol)
	if err != nil {
		return 0, err
	}

	var (
		applied int
		last    time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		case snap, ok := <-events:
			if !ok {
				o.logger.Info("market data replay finished", "feed", o.feed.Name(), "symbol", symbol, "snapshots", applied)
				return applied, nil
			}

			if applied > 0 {
				if err := o.wait(ctx, snap.Timestamp.Sub(last)); err != nil {
					return applied, err
				}
			}
			last = snap.Timestamp

			o.sink.SimulateDepth(snap.Symbol, snap.Depth)
			if snap.HasTrade() {
				o.sink.SimulateTrade(snap.Symbol, snap.TradePrice, snap.TradeSize)
			}
			applied++
		}
	}
}

// wait sleeps for the scaled gap.
func (o *Observer) wait(ctx context.Context, gap time.Duration) error {
	if o.speed <= 0 || gap <= 0 {
		return nil
	}

	t := time.NewTimer(time.Duration(float64(gap) / o.speed))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close shuts down the observer.
func (o *Observer) Close() error {
	return o.feed.Close()
}
