package pricing

import (
	"context"
)

// DepthWalker builds ladders locally by walking the opposing side of the
// depth snapshot level by level. It stands in for the remote service in
// paper runs and tests.
type DepthWalker struct{}

// NewDepthWalker creates a local ladder builder.
func NewDepthWalker() *DepthWalker {
	return &DepthWalker{}
}

// Ladder walks the book levels in order, taking min(remaining, level size)
// from each. Sliced requests are capped at an even share of the residual
// over the slices left.
func (w *DepthWalker) Ladder(ctx context.Context, req Request) (Ladder, error) {
	if err := ctx.Err(); err != nil {
		return Ladder{}, err
	}

	target := req.Residual
	if !req.Aggressive && req.SliceCount > 0 {
		target = sliceTarget(req.Residual, req.Slice, req.SliceCount)
	}

	bookSide := req.Side.BookSide()
	ladder := Ladder{TargetSize: target}

	for _, name := range req.BookLevels {
		if ladder.Size >= target {
			break
		}
		level, ok := req.Depth[name]
		if !ok {
			continue
		}
		size := level.Size(bookSide)
		if size <= 0 {
			continue
		}

		qty := min(target-ladder.Size, size)
		ladder.Rungs = append(ladder.Rungs, Rung{Price: level.Price(bookSide), Qty: qty})
		ladder.Size += qty
	}

	return ladder, nil
}

// Ensure DepthWalker implements Pricer
var _ Pricer = (*DepthWalker)(nil)

// sliceTarget is ceil(residual / slices left).
func sliceTarget(residual int64, slice, count int) int64 {
	left := int64(count - slice)
	if left < 1 {
		left = 1
	}
	return (residual + left - 1) / left
}
