// Package broker defines the market and order state provider the execution
// engine trades through.
package broker

import (
	"context"
	"errors"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Common broker errors.
var (
	ErrNotConnected    = errors.New("broker not connected")
	ErrOrderRejected   = errors.New("order rejected by broker")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrDuplicateOrder  = errors.New("duplicate internal order id")
	ErrUnknownExchange = errors.New("unknown exchange order id")
)

// ConnectionState represents the broker connection state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarketData is the read side of the provider.
type MarketData interface {
	// MidPrice returns the current mid-market price.
	MidPrice(symbol string) (decimal.Decimal, error)
	// VWAP returns the session volume-weighted average price.
	VWAP(symbol string) (decimal.Decimal, error)
	// Depth returns a copy of the current per-level depth.
	Depth(symbol string) (types.DepthSnapshot, error)
	// BookLevels returns the ordered book level identifiers (L1, L2, ...).
	BookLevels() []string
	// Ready is closed once the first depth snapshot has been received.
	Ready() <-chan struct{}
}

// OrderEntry is the order side of the provider.
type OrderEntry interface {
	// Submit sends a child order keyed by its internal id.
	Submit(ctx context.Context, order types.ChildOrder) error
	// Cancel cancels a confirmed order by its exchange id.
	Cancel(ctx context.Context, exchangeID string) error
	// ConfirmedUnfilled returns internal id -> record for every order that is
	// confirmed and still has open quantity.
	ConfirmedUnfilled() map[int64]types.ConfirmedOrder
	// ExchangeID maps an internal id to the exchange id assigned on confirmation.
	ExchangeID(internalID int64) (string, bool)
}

// Provider is the full market and order state provider.
type Provider interface {
	MarketData
	OrderEntry

	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	State() ConnectionState
	IsConnected() bool

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
