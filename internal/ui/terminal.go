// Package ui renders execution reports for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/cost"
	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// ANSI escape codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorDim    = "\033[2m"
	ColorBold   = "\033[1m"
)

// ReportPrinter writes execution reports. Colors are used only when the
// output is a terminal.
type ReportPrinter struct {
	w     io.Writer
	color bool
	width int
}

// NewReportPrinter creates a printer for w.
func NewReportPrinter(w io.Writer) *ReportPrinter {
	p := &ReportPrinter{w: w, width: 80}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.color = true
		p.width = terminalWidth(f)
	}
	return p
}

// NewStdoutPrinter creates a printer for standard output.
func NewStdoutPrinter() *ReportPrinter {
	return NewReportPrinter(os.Stdout)
}

func (p *ReportPrinter) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + ColorReset
}

// Print writes the full report: header, totals, fill bar and the
// per-strategy breakdown.
func (p *ReportPrinter) Print(r *types.ExecutionReport) {
	var sb strings.Builder

	status := p.paint(ColorGreen, "COMPLETED")
	if r.Degraded {
		status = p.paint(ColorRed, "DEGRADED")
	} else if r.PenaltyQty > 0 {
		status = p.paint(ColorYellow, "LIQUIDATED")
	}

	fmt.Fprintf(&sb, "%s %s %s %d %s  %s\n",
		p.paint(ColorBold, r.Strategy), r.Symbol, strings.ToUpper(r.Side.String()), r.TargetQty,
		p.paint(ColorDim, r.ParentID), status)
	fmt.Fprintln(&sb, p.paint(ColorDim, strings.Repeat("─", min(p.width, 72))))

	p.row(&sb, "Filled", fmt.Sprintf("%d / %d", r.FilledQty, r.TargetQty))
	p.row(&sb, "Traded value", r.TradedValue.StringFixed(2))
	p.row(&sb, "  strategy", r.StrategyValue.StringFixed(2))
	p.row(&sb, "  liquidation", r.LiquidationValue.StringFixed(2))
	p.row(&sb, "Benchmark", priceString(r.BenchmarkPrice))
	p.row(&sb, "VWAP", priceString(r.BenchmarkVWAP))
	p.row(&sb, "Cost/share", p.costString(r.CostPerShare))
	p.row(&sb, "Penalty", fmt.Sprintf("%s on %d", r.Penalty.StringFixed(3), r.PenaltyQty))
	p.row(&sb, "Child orders", fmt.Sprintf("%d", r.ChildOrders))
	p.row(&sb, "Elapsed", r.Elapsed.Round(1e6).String())
	if r.Err != "" {
		p.row(&sb, "Error", p.paint(ColorRed, r.Err))
	}

	fmt.Fprintln(&sb, p.fillBar(r.FilledQty, r.TargetQty))

	for _, s := range r.Summaries {
		p.summary(&sb, s, "")
	}

	_, _ = io.WriteString(p.w, sb.String())
}

func (p *ReportPrinter) row(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "%-14s %s\n", label+":", value)
}

func (p *ReportPrinter) summary(sb *strings.Builder, s types.StrategySummary, indent string) {
	fmt.Fprintf(sb, "\n%s%s  filled %d/%d  pv %s  cost %s  children %d  %s\n",
		indent, p.paint(ColorCyan, s.Strategy), s.FilledQty, s.TargetQty,
		s.TradedValue.StringFixed(2), p.costString(s.CostPerShare), s.ChildOrders,
		s.Elapsed.Round(1e6))

	for _, sl := range s.Slices {
		fmt.Fprintf(sb, "%s  slice %2d  %s-%s  target %4d  ladder %4d  filled %4d  %s\n",
			indent, sl.Index,
			sl.WindowStart.Format("15:04:05.000"), sl.WindowEnd.Format("15:04:05.000"),
			sl.AllottedQty, sl.LadderSize, sl.FilledQty, sl.TradedValue.StringFixed(2))
	}

	if s.Escalation != nil {
		fmt.Fprintf(sb, "%s  %s\n", indent, p.paint(ColorYellow, "escalated"))
		p.summary(sb, *s.Escalation, indent+"  ")
	}
}

// fillBar draws filled versus target quantity.
func (p *ReportPrinter) fillBar(filled, target int64) string {
	width := max(min(p.width-30, 50), 20)

	ratio := 0.0
	if target > 0 {
		ratio = float64(filled) / float64(target)
	}
	ratio = min(max(ratio, 0), 1)
	n := int(ratio * float64(width))

	bar := strings.Repeat("█", n) + strings.Repeat("░", width-n)
	return fmt.Sprintf("%s %.1f%%", p.paint(ColorCyan, bar), ratio*100)
}

func (p *ReportPrinter) costString(c decimal.Decimal) string {
	s := cost.String(c)
	switch {
	case c.Equal(cost.Sentinel):
		return p.paint(ColorDim, s)
	case c.IsNegative():
		return p.paint(ColorRed, s)
	default:
		return p.paint(ColorGreen, s)
	}
}

func priceString(d decimal.Decimal) string {
	if d.Equal(cost.Sentinel) {
		return cost.String(d)
	}
	return d.StringFixed(4)
}

// terminalWidth returns the terminal width, or 80 when unknown.
func terminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default
	}
	return width
}
