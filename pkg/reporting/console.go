package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vuphan-dev/crypto-risk-engine/internal/risk"
)

// ConsoleReporter renders risk decisions as tables on a writer
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// PrintValidation renders the per-check breakdown of one validation verdict
func (r *ConsoleReporter) PrintValidation(symbol string, result risk.RiskValidationResult) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(fmt.Sprintf("VALIDATION %s — %s", symbol, verdictString(result.Valid)))
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Check", "Passed", "Score", "Detail"})
	for _, c := range result.Checks() {
		t.AppendRow(table.Row{c.Name, passString(c.Passed), fmt.Sprintf("%.1f", c.Score), c.Message})
	}

	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Risk score", "", fmt.Sprintf("%.1f", result.RiskScore), result.Level.String()},
		{"Max size", "", fmt.Sprintf("%.6f", result.MaxPositionSize), ""},
		{"Confidence", "", fmt.Sprintf("%.1f%%", result.Confidence), ""},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 4, WidthMax: 60, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintSizing renders a position size result with its R-multiple table
func (r *ConsoleReporter) PrintSizing(symbol string, result risk.PositionSizeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(fmt.Sprintf("POSITION SIZE %s", symbol))
	t.SetStyle(table.StyleRounded)

	if !result.Valid {
		t.AppendRow(table.Row{"Invalid", result.InvalidReason})
		t.Render()
		fmt.Fprintln(r.out)
		return
	}

	t.AppendRows([]table.Row{
		{"Quantity", fmt.Sprintf("%.6f", result.Quantity)},
		{"Risk amount", fmt.Sprintf("$%.2f", result.RiskAmount)},
		{"Risk percent", fmt.Sprintf("%.2f%%", result.RiskPercent*100)},
		{"Kelly optimal", fmt.Sprintf("%.4f", result.KellyOptimalPct)},
		{"Volatility mult", fmt.Sprintf("x%.2f", result.VolatilityMult)},
		{"Drawdown mult", fmt.Sprintf("x%.2f", result.DrawdownMult)},
	})

	if len(result.RMultipleTargets) > 0 {
		t.AppendSeparator()
		for _, target := range result.RMultipleTargets {
			t.AppendRow(table.Row{
				fmt.Sprintf("%.0fR target", target.Multiple),
				fmt.Sprintf("%.4f (+$%.2f)", target.TargetPrice, target.ExpectedProfit),
			})
		}
	}

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintBreaker renders a circuit breaker evaluation
func (r *ConsoleReporter) PrintBreaker(result risk.CircuitBreakerResult) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(fmt.Sprintf("CIRCUIT BREAKER — %s", result.State))
	t.SetStyle(table.StyleRounded)

	if !result.Triggered && len(result.Triggers) == 0 {
		t.AppendRow(table.Row{"No triggers", ""})
	} else {
		t.AppendHeader(table.Row{"Trigger", "Severity", "Value", "Threshold"})
		for _, trig := range result.Triggers {
			t.AppendRow(table.Row{
				trig.Name,
				trig.Severity.String(),
				fmt.Sprintf("%.4f", trig.TriggerValue),
				fmt.Sprintf("%.4f", trig.ThresholdValue),
			})
		}
		if !result.ResetTime.IsZero() {
			t.AppendSeparator()
			t.AppendRow(table.Row{"Resets", result.ResetTime.Format("15:04:05"), "", ""})
		}
	}

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintHistory renders a summary table of every recorded decision
func (r *ConsoleReporter) PrintHistory(history *History) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("DECISION HISTORY")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Time", "Symbol", "Side", "Verdict", "Score", "Quantity"})
	for _, rec := range history.Decisions {
		quantity := "-"
		if rec.Sizing != nil && rec.Sizing.Valid {
			quantity = fmt.Sprintf("%.6f", rec.Sizing.Quantity)
		}
		t.AppendRow(table.Row{
			rec.Timestamp.Format("15:04:05"),
			rec.Symbol,
			string(rec.Side),
			verdictString(rec.Validation.Valid),
			fmt.Sprintf("%.1f", rec.Validation.RiskScore),
			quantity,
		})
	}

	t.Render()
	fmt.Fprintln(r.out)
}

func verdictString(valid bool) string {
	if valid {
		return "APPROVED"
	}
	return "REJECTED"
}

func passString(passed bool) string {
	if passed {
		return "✅"
	}
	return "❌"
}
