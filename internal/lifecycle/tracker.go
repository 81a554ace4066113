// Package lifecycle tracks child orders from submission to a terminal state.
//
// A child order is classified by a single look at the venue's confirmed
// unfilled map right after submission. Presence means the order rests with
// open quantity; absence is taken as a full fill. There is no retry when a
// confirmation has not landed yet, so a slow confirmation reads as a fill.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
)

// Tracker owns the internal id sequence of one controller and the state of
// every child order it submitted.
type Tracker struct {
	entry  broker.OrderEntry
	logger *slog.Logger
	now    func() time.Time

	nextID atomic.Int64

	mu     sync.RWMutex
	orders map[int64]*types.ChildOrder
	seq    []int64
}

// NewTracker creates a tracker whose first internal id is 1.
func NewTracker(entry broker.OrderEntry, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		entry:  entry,
		logger: logger,
		now:    time.Now,
		orders: make(map[int64]*types.ChildOrder),
	}
	t.nextID.Store(1)
	return t
}

// PeekID returns the id the next submitted child will get.
func (t *Tracker) PeekID() int64 {
	return t.nextID.Load()
}

// Submit assigns the next internal id and sends the order. The id is
// consumed even if the venue rejects the order.
func (t *Tracker) Submit(ctx context.Context, order types.ChildOrder) (types.ChildOrder, error) {
	order.InternalID = t.nextID.Add(1) - 1
	order.RemainingQty = order.OrigQty
	order.Status = types.ChildActive
	order.SubmittedAt = t.now()
	order.UpdatedAt = order.SubmittedAt

	if err := t.entry.Submit(ctx, order); err != nil {
		return order, fmt.Errorf("submit order %d: %w", order.InternalID, err)
	}

	t.mu.Lock()
	stored := order
	t.orders[order.InternalID] = &stored
	t.seq = append(t.seq, order.InternalID)
	t.mu.Unlock()

	t.logger.Info("child order sent",
		"strategy", order.Strategy,
		"slice", order.SliceIndex,
		"symbol", order.Symbol,
		"internal_id", order.InternalID,
		"side", order.Side.Code(),
		"orig_qty", order.OrigQty,
		"remaining_qty", order.RemainingQty,
		"price", order.Price,
	)

	return order, nil
}

// Reconcile classifies a submitted order from the venue's confirmed map.
// The map is read once. An order missing from it is taken as fully filled,
// even if its confirmation simply has not arrived yet.
func (t *Tracker) Reconcile(order types.ChildOrder) types.ChildOrder {
	rec, resting := t.entry.ConfirmedUnfilled()[order.InternalID]

	if resting {
		order.RemainingQty = min(max(rec.RemainingQty, 0), order.OrigQty)
		order.ExchangeID = rec.ExchangeID
		if order.RemainingQty < order.OrigQty {
			order.Status = types.ChildPartiallyFilled
		} else {
			order.Status = types.ChildConfirmedUnfilled
		}
	} else {
		order.RemainingQty = 0
		order.Status = types.ChildFullyFilled
		t.logger.Info("child order fully filled",
			"strategy", order.Strategy,
			"symbol", order.Symbol,
			"internal_id", order.InternalID,
			"side", order.Side.Code(),
			"qty", order.OrigQty,
			"price", order.Price,
		)
	}

	t.store(order)
	return order
}

// Cancel cancels a resting order by its exchange id and marks it cancelled.
// Remaining quantity is kept as it was at reconciliation.
func (t *Tracker) Cancel(ctx context.Context, order types.ChildOrder) (types.ChildOrder, error) {
	exID := order.ExchangeID
	if id, ok := t.entry.ExchangeID(order.InternalID); ok {
		exID = id
	}
	if exID == "" {
		return order, fmt.Errorf("%w: %d", types.ErrUnknownExchangeID, order.InternalID)
	}
	order.ExchangeID = exID

	if err := t.entry.Cancel(ctx, exID); err != nil {
		return order, fmt.Errorf("cancel order %d (%s): %w", order.InternalID, exID, err)
	}

	order.Status = types.ChildCancelled
	t.store(order)

	t.logger.Info("child order cancelled",
		"strategy", order.Strategy,
		"symbol", order.Symbol,
		"internal_id", order.InternalID,
		"exchange_id", exID,
		"side", order.Side.Code(),
		"filled_qty", order.FilledQty(),
		"remaining_qty", order.RemainingQty,
		"orig_qty", order.OrigQty,
		"price", order.Price,
	)

	return order, nil
}

// store records the latest state of an order.
func (t *Tracker) store(order types.ChildOrder) {
	order.UpdatedAt = t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[order.InternalID]; !ok {
		t.seq = append(t.seq, order.InternalID)
	}
	stored := order
	t.orders[order.InternalID] = &stored
}

// Order returns the tracked state of one order.
func (t *Tracker) Order(internalID int64) (types.ChildOrder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.orders[internalID]
	if !ok {
		return types.ChildOrder{}, false
	}
	return *o, true
}

// Orders returns all tracked orders in submission order.
func (t *Tracker) Orders() []types.ChildOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.ChildOrder, 0, len(t.seq))
	for _, id := range t.seq {
		out = append(out, *t.orders[id])
	}
	return out
}

// Stats returns the number of tracked orders per status.
func (t *Tracker) Stats() map[types.ChildStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[types.ChildStatus]int)
	for _, o := range t.orders {
		stats[o.Status]++
	}
	return stats
}
