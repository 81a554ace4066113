// Package paper provides a simulated venue for paper trading.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/pkg/indicator"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Config holds paper venue configuration.
type Config struct {
	BookLevels        []string
	ConfirmDelay      time.Duration // Zero confirms synchronously inside Submit
	ReplenishInterval time.Duration // Zero disables depth replenishment
	SubmitsPerSecond  int           // Zero disables throttling
	VWAPWindow        int           // Zero accumulates for the session
}

// DefaultConfig returns default paper venue config.
func DefaultConfig() Config {
	return Config{
		BookLevels:        []string{"L1", "L2", "L3", "L4", "L5"},
		ConfirmDelay:      0,
		ReplenishInterval: 500 * time.Millisecond,
		SubmitsPerSecond:  0,
		VWAPWindow:        0,
	}
}

// Fill records one simulated execution.
type Fill struct {
	InternalID int64
	Symbol     string
	Side       types.Side
	Price      decimal.Decimal
	Qty        int64
	Level      string
	At         time.Time
}

type book struct {
	depth types.DepthSnapshot
	seed  types.DepthSnapshot
	vwap  *indicator.VWAP
}

// Broker implements broker.Provider for paper trading.
type Broker struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter

	// State
	state atomic.Int32

	// Market data simulation
	booksMu   sync.RWMutex
	books     map[string]*book
	ready     chan struct{}
	readyOnce sync.Once

	// Orders
	ordersMu   sync.RWMutex
	seen       map[int64]bool
	confirmed  map[int64]types.ConfirmedOrder
	exchangeID map[int64]string
	byExchange map[string]int64
	fills      []Fill

	// Shutdown
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// NewBroker creates a new paper venue.
func NewBroker(cfg Config, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.BookLevels) == 0 {
		cfg.BookLevels = DefaultConfig().BookLevels
	}

	b := &Broker{
		cfg:        cfg,
		logger:     logger,
		books:      make(map[string]*book),
		ready:      make(chan struct{}),
		seen:       make(map[int64]bool),
		confirmed:  make(map[int64]types.ConfirmedOrder),
		exchangeID: make(map[int64]string),
		byExchange: make(map[string]int64),
		done:       make(chan struct{}),
	}

	if cfg.SubmitsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitsPerSecond), cfg.SubmitsPerSecond)
	}

	b.state.Store(int32(broker.StateDisconnected))

	return b
}

// Connect simulates connecting to the venue.
func (b *Broker) Connect(ctx context.Context) error {
	if b.IsConnected() {
		return nil
	}
	b.state.Store(int32(broker.StateConnected))

	if b.cfg.ReplenishInterval > 0 {
		b.wg.Add(1)
		go b.replenishLoop()
	}

	b.logger.Info("paper broker connected",
		"levels", len(b.cfg.BookLevels),
		"confirm_delay", b.cfg.ConfirmDelay,
	)
	return nil
}

// Disconnect simulates disconnecting from the venue.
func (b *Broker) Disconnect() error {
	b.state.Store(int32(broker.StateDisconnected))
	b.doneOnce.Do(func() { close(b.done) })
	b.wg.Wait()
	b.logger.Info("paper broker disconnected")
	return nil
}

// State returns connection state.
func (b *Broker) State() broker.ConnectionState {
	return broker.ConnectionState(b.state.Load())
}

// IsConnected returns true if connected.
func (b *Broker) IsConnected() bool {
	return b.State() == broker.StateConnected
}

// Ready is closed once the first depth snapshot has been received.
func (b *Broker) Ready() <-chan struct{} {
	return b.ready
}

// BookLevels returns the ordered book level identifiers.
func (b *Broker) BookLevels() []string {
	levels := make([]string, len(b.cfg.BookLevels))
	copy(levels, b.cfg.BookLevels)
	return levels
}

// SimulateDepth replaces the book for a symbol. The snapshot also becomes the
// level the book is replenished back to.
func (b *Broker) SimulateDepth(symbol string, depth types.DepthSnapshot) {
	b.booksMu.Lock()
	bk, ok := b.books[symbol]
	if !ok {
		bk = &book{vwap: indicator.NewVWAP(b.cfg.VWAPWindow)}
		b.books[symbol] = bk
	}
	bk.depth = depth.Clone()
	bk.seed = depth.Clone()
	b.booksMu.Unlock()

	b.readyOnce.Do(func() {
		close(b.ready)
		b.logger.Info("first depth snapshot received", "symbol", symbol)
	})
}

// SimulateTrade records a market print that feeds the VWAP.
func (b *Broker) SimulateTrade(symbol string, price decimal.Decimal, volume int64) {
	b.booksMu.Lock()
	defer b.booksMu.Unlock()

	bk, ok := b.books[symbol]
	if !ok {
		bk = &book{vwap: indicator.NewVWAP(b.cfg.VWAPWindow)}
		b.books[symbol] = bk
	}
	bk.vwap.Update(price, volume)
}

// replenishLoop restores consumed depth back to the seeded snapshot.
func (b *Broker) replenishLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.ReplenishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.booksMu.Lock()
			for _, bk := range b.books {
				if bk.seed != nil {
					bk.depth = bk.seed.Clone()
				}
			}
			b.booksMu.Unlock()
		}
	}
}

// MidPrice returns the mid of the top level.
func (b *Broker) MidPrice(symbol string) (decimal.Decimal, error) {
	b.booksMu.RLock()
	defer b.booksMu.RUnlock()

	bk, ok := b.books[symbol]
	if !ok || len(b.cfg.BookLevels) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, symbol)
	}
	top, ok := bk.seedOrDepth()[b.cfg.BookLevels[0]]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no top level for %s", types.ErrDataUnavailable, symbol)
	}

	return top.BidPrice.Add(top.AskPrice).Div(decimal.NewFromInt(2)), nil
}

// seedOrDepth prefers the seeded snapshot so consumed liquidity does not
// move the quoted mid.
func (bk *book) seedOrDepth() types.DepthSnapshot {
	if bk.seed != nil {
		return bk.seed
	}
	return bk.depth
}

// VWAP returns the VWAP of prints and simulated fills. Before anything has
// traded it falls back to the mid price.
func (b *Broker) VWAP(symbol string) (decimal.Decimal, error) {
	b.booksMu.RLock()
	bk, ok := b.books[symbol]
	var vwap decimal.Decimal
	var traded bool
	if ok {
		vwap = bk.vwap.Current()
		traded = bk.vwap.Ready()
	}
	b.booksMu.RUnlock()

	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, symbol)
	}
	if !traded {
		return b.MidPrice(symbol)
	}
	return vwap, nil
}

// Depth returns a copy of the current depth.
func (b *Broker) Depth(symbol string) (types.DepthSnapshot, error) {
	b.booksMu.RLock()
	defer b.booksMu.RUnlock()

	bk, ok := b.books[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, symbol)
	}
	return bk.depth.Clone(), nil
}

// Submit matches a child order against the book. Whatever does not match
// rests as a confirmed order with open quantity.
func (b *Broker) Submit(ctx context.Context, order types.ChildOrder) error {
	if !b.IsConnected() {
		return broker.ErrNotConnected
	}
	if order.OrigQty <= 0 {
		return fmt.Errorf("%w: quantity %d", broker.ErrOrderRejected, order.OrigQty)
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("submit throttle: %w", err)
		}
	}

	b.ordersMu.Lock()
	if b.seen[order.InternalID] {
		b.ordersMu.Unlock()
		return fmt.Errorf("%w: %d", broker.ErrDuplicateOrder, order.InternalID)
	}
	b.seen[order.InternalID] = true
	b.ordersMu.Unlock()

	b.booksMu.RLock()
	_, known := b.books[order.Symbol]
	b.booksMu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, order.Symbol)
	}

	if b.cfg.ConfirmDelay <= 0 {
		b.process(order)
		return nil
	}

	// Confirmation lands later; until then the order is absent from the
	// confirmed map.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-b.done:
			return
		case <-time.After(b.cfg.ConfirmDelay):
		}
		b.process(order)
	}()

	return nil
}

// process matches and, if needed, confirms the order.
func (b *Broker) process(order types.ChildOrder) {
	remaining := b.match(order)

	if remaining == 0 {
		return
	}

	exID := "PAPER-" + uuid.New().String()

	b.ordersMu.Lock()
	b.confirmed[order.InternalID] = types.ConfirmedOrder{
		InternalID:   order.InternalID,
		ExchangeID:   exID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Price:        order.Price,
		OrigQty:      order.OrigQty,
		RemainingQty: remaining,
	}
	b.exchangeID[order.InternalID] = exID
	b.byExchange[exID] = order.InternalID
	b.ordersMu.Unlock()

	b.logger.Debug("paper order resting",
		"internal_id", order.InternalID,
		"exchange_id", exID,
		"remaining", remaining,
	)
}

// match consumes opposing depth at or better than the limit price, in level
// order, and returns the unmatched quantity.
func (b *Broker) match(order types.ChildOrder) int64 {
	bookSide := order.Side.BookSide()
	remaining := order.OrigQty

	b.booksMu.Lock()
	defer b.booksMu.Unlock()

	bk := b.books[order.Symbol]
	for _, lvl := range b.cfg.BookLevels {
		if remaining == 0 {
			break
		}
		level, ok := bk.depth[lvl]
		if !ok {
			continue
		}

		price := level.Price(bookSide)
		size := level.Size(bookSide)
		if size <= 0 || !crosses(order.Side, order.Price, price) {
			continue
		}

		qty := min(remaining, size)
		remaining -= qty

		if bookSide == "Ask" {
			level.AskSize -= qty
		} else {
			level.BidSize -= qty
		}
		bk.depth[lvl] = level
		bk.vwap.Update(price, qty)

		b.ordersMu.Lock()
		b.fills = append(b.fills, Fill{
			InternalID: order.InternalID,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      price,
			Qty:        qty,
			Level:      lvl,
			At:         time.Now(),
		})
		b.ordersMu.Unlock()
	}

	return remaining
}

// crosses reports whether a limit order at limit can trade at price.
func crosses(side types.Side, limit, price decimal.Decimal) bool {
	if side == types.SideBuy {
		return price.LessThanOrEqual(limit)
	}
	return price.GreaterThanOrEqual(limit)
}

// Cancel removes a confirmed order by exchange id.
func (b *Broker) Cancel(ctx context.Context, exchangeID string) error {
	if !b.IsConnected() {
		return broker.ErrNotConnected
	}

	b.ordersMu.Lock()
	defer b.ordersMu.Unlock()

	internalID, ok := b.byExchange[exchangeID]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrUnknownExchange, exchangeID)
	}

	delete(b.confirmed, internalID)
	delete(b.byExchange, exchangeID)

	b.logger.Debug("paper order cancelled",
		"internal_id", internalID,
		"exchange_id", exchangeID,
	)
	return nil
}

// ConfirmedUnfilled returns a copy of the confirmed orders with open quantity.
func (b *Broker) ConfirmedUnfilled() map[int64]types.ConfirmedOrder {
	b.ordersMu.RLock()
	defer b.ordersMu.RUnlock()

	out := make(map[int64]types.ConfirmedOrder, len(b.confirmed))
	for k, v := range b.confirmed {
		out[k] = v
	}
	return out
}

// ExchangeID maps an internal id to its exchange id.
func (b *Broker) ExchangeID(internalID int64) (string, bool) {
	b.ordersMu.RLock()
	defer b.ordersMu.RUnlock()

	id, ok := b.exchangeID[internalID]
	return id, ok
}

// Fills returns all simulated executions so far.
func (b *Broker) Fills() []Fill {
	b.ordersMu.RLock()
	defer b.ordersMu.RUnlock()

	fills := make([]Fill, len(b.fills))
	copy(fills, b.fills)
	return fills
}

// Shutdown shuts down the venue.
func (b *Broker) Shutdown(ctx context.Context) error {
	return b.Disconnect()
}

// Ensure Broker implements broker.Provider
var _ broker.Provider = (*Broker)(nil)
