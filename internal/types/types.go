// Package types defines shared types used across the execution engine.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a parent or child order.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Code returns the single-letter side code used on child orders.
func (s Side) Code() string {
	if s == SideBuy {
		return "B"
	}
	return "S"
}

// BookSide returns the opposing book side an order of this side consumes.
func (s Side) BookSide() string {
	if s == SideBuy {
		return "Ask"
	}
	return "Bid"
}

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide parses "buy"/"sell" (also "B"/"S"), case-insensitive.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "buy", "b":
		return SideBuy, nil
	case "sell", "s":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, v)
	}
}

// ChildStatus represents the lifecycle state of a child order.
type ChildStatus int

const (
	ChildActive ChildStatus = iota
	ChildConfirmedUnfilled
	ChildPartiallyFilled
	ChildFullyFilled
	ChildCancelled
)

func (s ChildStatus) String() string {
	switch s {
	case ChildActive:
		return "ACTIVE"
	case ChildConfirmedUnfilled:
		return "CONFIRMED_UNFILLED"
	case ChildPartiallyFilled:
		return "PARTIALLY_FILLED"
	case ChildFullyFilled:
		return "FULLY_FILLED"
	case ChildCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the child order is in a terminal state.
func (s ChildStatus) IsFinal() bool {
	return s == ChildFullyFilled || s == ChildCancelled
}

// Strategy names accepted by the controller.
const (
	StrategyTWAP       = "TWAP"
	StrategyAggressive = "AGGRESSIVE"
	StrategyLiquidate  = "LIQUIDATE"
)

// ParentOrder is one unit of work for the controller.
type ParentOrder struct {
	ID             string
	BotID          string
	Strategy       string
	Symbol         string
	Side           Side
	TargetQty      int64
	TimeBudget     time.Duration
	BenchmarkPrice decimal.Decimal // Mid price at start
	BenchmarkVWAP  decimal.Decimal // VWAP at start
	StartedAt      time.Time
}

// ChildOrder is a limit order submitted on behalf of a parent order.
type ChildOrder struct {
	InternalID   int64
	ExchangeID   string // Assigned once the venue confirms
	Symbol       string
	Side         Side
	Price        decimal.Decimal
	OrigQty      int64
	RemainingQty int64
	Status       ChildStatus
	Strategy     string
	SliceIndex   int // -1 outside a sliced strategy
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}

// FilledQty returns the quantity filled so far.
func (o ChildOrder) FilledQty() int64 {
	return o.OrigQty - o.RemainingQty
}

// FilledValue returns price times filled quantity.
func (o ChildOrder) FilledValue() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.FilledQty()))
}

// ConfirmedOrder is the venue's record of a confirmed order with open quantity.
type ConfirmedOrder struct {
	InternalID   int64
	ExchangeID   string
	Symbol       string
	Side         Side
	Price        decimal.Decimal
	OrigQty      int64
	RemainingQty int64
}

// Level is one price level of the book, both sides.
type Level struct {
	BidPrice decimal.Decimal
	BidSize  int64
	AskPrice decimal.Decimal
	AskSize  int64
}

// Price returns the price on the given book side ("Bid" or "Ask").
func (l Level) Price(bookSide string) decimal.Decimal {
	if bookSide == "Ask" {
		return l.AskPrice
	}
	return l.BidPrice
}

// Size returns the size on the given book side ("Bid" or "Ask").
func (l Level) Size(bookSide string) int64 {
	if bookSide == "Ask" {
		return l.AskSize
	}
	return l.BidSize
}

// DepthSnapshot maps a book level identifier (L1, L2, ...) to its level.
type DepthSnapshot map[string]Level

// Clone returns an independent copy of the snapshot.
func (d DepthSnapshot) Clone() DepthSnapshot {
	out := make(DepthSnapshot, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ExecutionSlice records one iteration of a sliced strategy.
type ExecutionSlice struct {
	Index       int
	AllottedQty int64 // Quantity the pricing service targeted for this slice
	LadderSize  int64 // Quantity actually laddered
	WindowStart time.Time
	WindowEnd   time.Time
	FilledQty   int64
	TradedValue decimal.Decimal
}

// StrategySummary describes one strategy invocation.
type StrategySummary struct {
	Strategy      string
	Symbol        string
	Side          Side
	TargetQty     int64
	FilledQty     int64
	ResidualQty   int64
	TradedValue   decimal.Decimal
	Elapsed       time.Duration
	CostPerShare  decimal.Decimal
	Benchmark     decimal.Decimal
	BenchmarkVWAP decimal.Decimal
	ChildOrders   int
	Slices        []ExecutionSlice
	Escalated     bool             // Sliced strategy handed its residual to the aggressive executor
	Escalation    *StrategySummary // The aggressive run after escalation, if any
}

// ExecutionReport is the final result for one parent order.
type ExecutionReport struct {
	ParentID         string
	BotID            string
	Strategy         string
	Symbol           string
	Side             Side
	TargetQty        int64
	StrategyValue    decimal.Decimal
	LiquidationValue decimal.Decimal
	TradedValue      decimal.Decimal
	FilledQty        int64
	PenaltyQty       int64 // Residual handed to liquidation
	Penalty          decimal.Decimal
	UnfilledQty      int64 // Still open after liquidation
	Elapsed          time.Duration
	CostPerShare     decimal.Decimal
	BenchmarkPrice   decimal.Decimal
	BenchmarkVWAP    decimal.Decimal
	ChildOrders      int
	Summaries        []StrategySummary
	StartedAt        time.Time
	CompletedAt      time.Time
	Degraded         bool
	Err              string
}
