// Package brokertest provides a scriptable provider for tests.
package brokertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/broker"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// FillFunc decides how much of a submitted order stays open. Returning 0
// fills it completely; returning OrigQty leaves it confirmed and unfilled.
type FillFunc func(order types.ChildOrder) (remaining int64)

// FillAll fills every order.
func FillAll(types.ChildOrder) int64 { return 0 }

// FillNone confirms every order with nothing filled.
func FillNone(order types.ChildOrder) int64 { return order.OrigQty }

// FillHalf fills the lower half of every order.
func FillHalf(order types.ChildOrder) int64 { return order.OrigQty - order.OrigQty/2 }

// Venue is an in-memory broker.Provider whose fills are scripted.
type Venue struct {
	mu sync.Mutex

	Mid    decimal.Decimal
	VWAPPx decimal.Decimal
	Book   types.DepthSnapshot
	Levels []string
	Fill   FillFunc

	SubmitErr error
	CancelErr error
	MidErr    error

	// HideConfirmations keeps resting orders out of ConfirmedUnfilled,
	// modelling confirmations that have not landed yet.
	HideConfirmations bool

	ready     chan struct{}
	readyOnce sync.Once
	state     broker.ConnectionState

	submitted []types.ChildOrder
	cancelled []string
	confirmed map[int64]types.ConfirmedOrder
	exIDs     map[int64]string
	byEx      map[string]int64
	nextEx    int
}

// NewVenue creates a connected, ready venue quoting mid with one level of
// depth each side.
func NewVenue(mid decimal.Decimal, fill FillFunc) *Venue {
	v := NewUnreadyVenue(mid, fill)
	v.MarkReady()
	return v
}

// NewUnreadyVenue creates a venue whose Ready channel is still open.
func NewUnreadyVenue(mid decimal.Decimal, fill FillFunc) *Venue {
	return &Venue{
		Mid:    mid,
		VWAPPx: mid,
		Levels: []string{"L1", "L2", "L3", "L4", "L5"},
		Book: types.DepthSnapshot{
			"L1": {BidPrice: mid.Sub(decimal.NewFromInt(1)), BidSize: 1000, AskPrice: mid.Add(decimal.NewFromInt(1)), AskSize: 1000},
		},
		Fill:      fill,
		ready:     make(chan struct{}),
		state:     broker.StateConnected,
		confirmed: make(map[int64]types.ConfirmedOrder),
		exIDs:     make(map[int64]string),
		byEx:      make(map[string]int64),
	}
}

// MarkReady closes the Ready channel.
func (v *Venue) MarkReady() {
	v.readyOnce.Do(func() { close(v.ready) })
}

func (v *Venue) Connect(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = broker.StateConnected
	return nil
}

func (v *Venue) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = broker.StateDisconnected
	return nil
}

func (v *Venue) State() broker.ConnectionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Venue) IsConnected() bool {
	return v.State() == broker.StateConnected
}

func (v *Venue) Shutdown(ctx context.Context) error {
	return v.Disconnect()
}

func (v *Venue) Ready() <-chan struct{} {
	return v.ready
}

func (v *Venue) BookLevels() []string {
	return append([]string(nil), v.Levels...)
}

func (v *Venue) MidPrice(symbol string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.MidErr != nil {
		return decimal.Zero, v.MidErr
	}
	return v.Mid, nil
}

func (v *Venue) VWAP(symbol string) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.VWAPPx, nil
}

func (v *Venue) Depth(symbol string) (types.DepthSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Book.Clone(), nil
}

func (v *Venue) Submit(ctx context.Context, order types.ChildOrder) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.SubmitErr != nil {
		return v.SubmitErr
	}

	v.submitted = append(v.submitted, order)

	remaining := int64(0)
	if v.Fill != nil {
		remaining = v.Fill(order)
	}
	if remaining <= 0 || v.HideConfirmations {
		return nil
	}

	v.nextEx++
	exID := fmt.Sprintf("EX-%d", v.nextEx)
	v.confirmed[order.InternalID] = types.ConfirmedOrder{
		InternalID:   order.InternalID,
		ExchangeID:   exID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Price:        order.Price,
		OrigQty:      order.OrigQty,
		RemainingQty: remaining,
	}
	v.exIDs[order.InternalID] = exID
	v.byEx[exID] = order.InternalID
	return nil
}

func (v *Venue) Cancel(ctx context.Context, exchangeID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.CancelErr != nil {
		return v.CancelErr
	}
	id, ok := v.byEx[exchangeID]
	if !ok {
		return fmt.Errorf("%w: %s", broker.ErrUnknownExchange, exchangeID)
	}
	delete(v.confirmed, id)
	delete(v.byEx, exchangeID)
	v.cancelled = append(v.cancelled, exchangeID)
	return nil
}

func (v *Venue) ConfirmedUnfilled() map[int64]types.ConfirmedOrder {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(map[int64]types.ConfirmedOrder, len(v.confirmed))
	for k, c := range v.confirmed {
		out[k] = c
	}
	return out
}

func (v *Venue) ExchangeID(internalID int64) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, ok := v.exIDs[internalID]
	return id, ok
}

// Submitted returns every order the venue accepted, in order.
func (v *Venue) Submitted() []types.ChildOrder {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]types.ChildOrder(nil), v.submitted...)
}

// Cancelled returns the exchange ids cancelled so far.
func (v *Venue) Cancelled() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.cancelled...)
}

// Ensure Venue implements broker.Provider
var _ broker.Provider = (*Venue)(nil)
