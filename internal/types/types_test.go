package types

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// TestSide_String tests Side string conversion.
func TestSide_String(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideBuy, "buy"},
		{SideSell, "sell"},
		{Side(99), "unknown"},
	}

	for _, tt := range tests {
		got := tt.side.String()
		if got != tt.want {
			t.Errorf("Side(%d).String() = %s, want %s", tt.side, got, tt.want)
		}
	}
}

// TestSide_BookSide tests that orders consume the opposing side.
func TestSide_BookSide(t *testing.T) {
	if got := SideBuy.BookSide(); got != "Ask" {
		t.Errorf("SideBuy.BookSide() = %s, want Ask", got)
	}
	if got := SideSell.BookSide(); got != "Bid" {
		t.Errorf("SideSell.BookSide() = %s, want Bid", got)
	}
	if SideBuy.Code() != "B" || SideSell.Code() != "S" {
		t.Errorf("unexpected side codes %s/%s", SideBuy.Code(), SideSell.Code())
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"buy", SideBuy, false},
		{"BUY", SideBuy, false},
		{"B", SideBuy, false},
		{"sell", SideSell, false},
		{" Sell ", SideSell, false},
		{"short", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSide) {
				t.Errorf("ParseSide(%q) error = %v, want ErrInvalidSide", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSide(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSide(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestChildStatus_IsFinal tests terminal state detection.
func TestChildStatus_IsFinal(t *testing.T) {
	tests := []struct {
		status ChildStatus
		want   bool
	}{
		{ChildActive, false},
		{ChildConfirmedUnfilled, false},
		{ChildPartiallyFilled, false},
		{ChildFullyFilled, true},
		{ChildCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsFinal(); got != tt.want {
			t.Errorf("%s.IsFinal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestChildOrder_Filled(t *testing.T) {
	o := ChildOrder{
		Price:        decimal.RequireFromString("101.5"),
		OrigQty:      10,
		RemainingQty: 4,
	}

	if o.FilledQty() != 6 {
		t.Errorf("FilledQty() = %d, want 6", o.FilledQty())
	}
	want := decimal.RequireFromString("609")
	if !o.FilledValue().Equal(want) {
		t.Errorf("FilledValue() = %s, want %s", o.FilledValue(), want)
	}
}

func TestLevel_SideAccessors(t *testing.T) {
	l := Level{
		BidPrice: decimal.NewFromInt(99),
		BidSize:  5,
		AskPrice: decimal.NewFromInt(101),
		AskSize:  7,
	}

	if !l.Price("Ask").Equal(decimal.NewFromInt(101)) || l.Size("Ask") != 7 {
		t.Errorf("ask accessors = %s/%d", l.Price("Ask"), l.Size("Ask"))
	}
	if !l.Price("Bid").Equal(decimal.NewFromInt(99)) || l.Size("Bid") != 5 {
		t.Errorf("bid accessors = %s/%d", l.Price("Bid"), l.Size("Bid"))
	}
}

func TestDepthSnapshot_Clone(t *testing.T) {
	d := DepthSnapshot{"L1": {AskSize: 10}}
	c := d.Clone()
	c["L1"] = Level{AskSize: 1}

	if d["L1"].AskSize != 10 {
		t.Error("Clone() shares storage with the original")
	}
}

func TestCollaboratorError(t *testing.T) {
	cause := errors.New("connection refused")

	retryable := NewRetryable("pricing.ladder", cause)
	if !errors.Is(retryable, ErrCollaboratorUnavailable) {
		t.Error("retryable error should match ErrCollaboratorUnavailable")
	}
	if !errors.Is(retryable, cause) {
		t.Error("retryable error should match its cause")
	}
	if !IsRetryable(retryable) {
		t.Error("IsRetryable() = false, want true")
	}

	fatal := NewFatal("broker.submit", cause)
	if IsRetryable(fatal) {
		t.Error("IsRetryable(fatal) = true, want false")
	}
	if IsRetryable(cause) {
		t.Error("IsRetryable(plain error) = true, want false")
	}
}
