// Package indicator provides market statistic calculations.
package indicator

import (
	"github.com/shopspring/decimal"
)

// VWAP calculates a volume-weighted average price.
// With a positive window only the most recent window trades count;
// a zero window accumulates for the whole session.
type VWAP struct {
	window  int
	prices  []decimal.Decimal
	volumes []int64
	pv      decimal.Decimal
	volume  int64
}

// NewVWAP creates a new VWAP calculator.
func NewVWAP(window int) *VWAP {
	if window < 0 {
		window = 0
	}
	return &VWAP{
		window: window,
		pv:     decimal.Zero,
	}
}

// Update adds a trade and returns the current VWAP.
// Trades with non-positive volume are ignored.
func (v *VWAP) Update(price decimal.Decimal, volume int64) decimal.Decimal {
	if volume <= 0 {
		return v.Current()
	}

	v.pv = v.pv.Add(price.Mul(decimal.NewFromInt(volume)))
	v.volume += volume

	if v.window > 0 {
		v.prices = append(v.prices, price)
		v.volumes = append(v.volumes, volume)

		if len(v.prices) > v.window {
			// Remove oldest trade
			v.pv = v.pv.Sub(v.prices[0].Mul(decimal.NewFromInt(v.volumes[0])))
			v.volume -= v.volumes[0]
			v.prices = v.prices[1:]
			v.volumes = v.volumes[1:]
		}
	}

	return v.Current()
}

// Current returns the current VWAP, or zero if nothing has traded.
func (v *VWAP) Current() decimal.Decimal {
	if v.volume == 0 {
		return decimal.Zero
	}
	return v.pv.Div(decimal.NewFromInt(v.volume))
}

// Volume returns the volume currently included.
func (v *VWAP) Volume() int64 {
	return v.volume
}

// Ready returns true once at least one trade has been seen.
func (v *VWAP) Ready() bool {
	return v.volume > 0
}

// Reset clears all trades.
func (v *VWAP) Reset() {
	v.prices = nil
	v.volumes = nil
	v.pv = decimal.Zero
	v.volume = 0
}
