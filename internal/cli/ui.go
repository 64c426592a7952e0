package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"backtest-core/internal/backtest"
	"backtest-core/pkg/fixed"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6"))

	headerCellStyle = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
		Padding(0, 1)

	profitStyle = cellStyle.
		Foreground(lipgloss.Color("#10B981"))

	lossStyle = cellStyle.
		Foreground(lipgloss.Color("#EF4444"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	summaryStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#10B981")).
		Padding(0, 1)
)

var resultHeaders = []string{"Strategy", "Invested", "Final total", "Profit", "Relative", "Yearly", "Ops"}

const profitColumn = 3

// renderResults formats one batch as a titled table plus a summary box.
func renderResults(req backtest.Request, results []backtest.Result, summary backtest.Summary, took time.Duration) string {
	var b strings.Builder
	title := fmt.Sprintf("📊 %s  %s → %s", req.Ticker, req.From.Format(time.RFC3339), req.To.Format(time.RFC3339))
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	rows := make([][]string, 0, len(results))
	sign := make([]int, 0, len(results))
	var failures []string
	for _, r := range results {
		if r.Failed() {
		failures = append(failures, fmt.Sprintf("%s: %s", r.Strategy, r.Error))
		rows = append(rows, []string{r.Strategy, "-", "-", "-", "-", "-", "-"})
		sign = append(sign, 0)
		continue
		}
		rows = append(rows, []string{
		r.Strategy,
		r.TotalInvestment.StringFixed(2),
		r.FinalTotalBalance.StringFixed(2),
		r.AbsoluteProfit.StringFixed(2),
		percent(r.RelativeProfit),
		percent(r.RelativeYearProfit),
		strconv.Itoa(len(r.Operations)),
		})
		sign = append(sign, r.AbsoluteProfit.Sign())
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(resultHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerCellStyle
		}
		if col == profitColumn && row >= 0 && row < len(sign) {
			switch {
			case sign[row] > 0:
				return profitStyle
			case sign[row] < 0:
				return lossStyle
			}
		}
		return cellStyle
		})
	b.WriteString(t.String())
	b.WriteString("\n")

	for _, f := range failures {
		b.WriteString(errorStyle.Render("❌ " + f))
		b.WriteString("\n")
	}

	lines := []string{
		fmt.Sprintf("Runs: %d  Failed: %d  Operations: %d", summary.Runs, summary.Failed, summary.Operations),
		fmt.Sprintf("Mean yearly: %.2f%%  Std dev: %.2f%%", summary.MeanRelativeYearProfit*100, summary.StdDevRelativeYear*100),
	}
	if summary.BestStrategy != "" {
		lines = append(lines, fmt.Sprintf("Best: %s (%s yearly)", summary.BestStrategy, percent(summary.BestRelativeYearProfit)))
	}
	lines = append(lines, fmt.Sprintf("Took: %s", took.Round(time.Millisecond)))
	b.WriteString(summaryStyle.Render(strings.Join(lines, "\n")))
	return b.String()
}

func percent(p fixed.Price) string {
	return p.MulInt(100).StringFixed(2) + "%"
}
