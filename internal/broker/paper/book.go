package paper

import (
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
)

// SyntheticDepth builds a symmetric book around mid: level i sits i+1 ticks
// away on each side with size units.
func SyntheticDepth(levels []string, mid, tick decimal.Decimal, size int64) types.DepthSnapshot {
	depth := make(types.DepthSnapshot, len(levels))
	for i, id := range levels {
		offset := tick.Mul(decimal.NewFromInt(int64(i + 1)))
		depth[id] = types.Level{
			BidPrice: mid.Sub(offset),
			BidSize:  size,
			AskPrice: mid.Add(offset),
			AskSize:  size,
		}
	}
	return depth
}
