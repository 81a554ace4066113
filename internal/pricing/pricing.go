// Package pricing defines the pricing and sizing decision service the
// strategies ask for order ladders.
package pricing

import (
	"context"
	"log/slog"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// Request carries everything the service needs to build a ladder.
type Request struct {
	Residual   int64
	Side       types.Side
	Symbol     string
	BookLevels []string
	Depth      types.DepthSnapshot
	VWAP       decimal.Decimal // Current market VWAP
	PreVWAP    decimal.Decimal // Running VWAP of this execution, sliced only
	Strategy   string
	InternalID int64 // Next internal id the engine will assign
	Aggressive bool
	Slice      int // Slice index, sliced only
	SliceCount int
}

// Rung is one (price, quantity) step of a ladder.
type Rung struct {
	Price decimal.Decimal
	Qty   int64
}

// Ladder is the ordered list of child orders to submit.
type Ladder struct {
	Rungs      []Rung
	Size       int64 // Quantity the rungs represent
	TargetSize int64 // Quantity the service aimed for
}

// Total returns the sum of rung quantities.
func (l Ladder) Total() int64 {
	var total int64
	for _, r := range l.Rungs {
		total += r.Qty
	}
	return total
}

// Pricer returns a ladder for a request.
type Pricer interface {
	Ladder(ctx context.Context, req Request) (Ladder, error)
}

// Validate drops non-positive rungs and trims the ladder so its total does
// not exceed the residual.
func Validate(l Ladder, residual int64, logger *slog.Logger) Ladder {
	if logger == nil {
		logger = slog.Default()
	}

	out := Ladder{TargetSize: l.TargetSize}
	left := residual
	trimmed := false

	for _, r := range l.Rungs {
		if r.Qty <= 0 || !r.Price.IsPositive() {
			trimmed = true
			continue
		}
		if left <= 0 {
			trimmed = true
			break
		}
		if r.Qty > left {
			r.Qty = left
			trimmed = true
		}
		out.Rungs = append(out.Rungs, r)
		left -= r.Qty
	}

	out.Size = out.Total()
	if out.TargetSize <= 0 || out.TargetSize > residual {
		out.TargetSize = min(max(out.Size, l.TargetSize), residual)
	}

	if trimmed {
		logger.Warn("ladder trimmed to residual",
			"residual", residual,
			"requested", l.Total(),
			"kept", out.Size,
		)
	}

	return out
}
