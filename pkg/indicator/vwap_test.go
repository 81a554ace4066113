package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestVWAP_Session(t *testing.T) {
	v := NewVWAP(0)

	if v.Ready() {
		t.Error("VWAP should not be ready with no trades")
	}
	if !v.Current().IsZero() {
		t.Errorf("VWAP = %s, want 0 with no trades", v.Current())
	}

	// 10 @ 100, 30 @ 104 => (1000 + 3120) / 40 = 103
	v.Update(decimal.NewFromInt(100), 10)
	result := v.Update(decimal.NewFromInt(104), 30)

	expected := decimal.NewFromInt(103)
	if !result.Equal(expected) {
		t.Errorf("VWAP = %s, want %s", result, expected)
	}
	if v.Volume() != 40 {
		t.Errorf("Volume = %d, want 40", v.Volume())
	}
}

func TestVWAP_Rolling(t *testing.T) {
	v := NewVWAP(2)

	v.Update(decimal.NewFromInt(100), 10)
	v.Update(decimal.NewFromInt(110), 10)
	result := v.Update(decimal.NewFromInt(120), 10)

	// Window of 2 keeps [110, 120]
	expected := decimal.NewFromInt(115)
	if !result.Equal(expected) {
		t.Errorf("VWAP = %s, want %s", result, expected)
	}
	if v.Volume() != 20 {
		t.Errorf("Volume = %d, want 20", v.Volume())
	}
}

func TestVWAP_IgnoresEmptyTrades(t *testing.T) {
	v := NewVWAP(0)

	v.Update(decimal.NewFromInt(100), 5)
	result := v.Update(decimal.NewFromInt(500), 0)

	if !result.Equal(decimal.NewFromInt(100)) {
		t.Errorf("VWAP = %s, want 100", result)
	}
}

func TestVWAP_Reset(t *testing.T) {
	v := NewVWAP(3)
	v.Update(decimal.NewFromInt(100), 5)
	v.Reset()

	if v.Ready() {
		t.Error("VWAP should not be ready after reset")
	}
}
