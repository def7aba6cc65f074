package report

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run summary as a Markdown string.
func RenderMarkdown(s *Summary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Run Report: %s\n\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Symbol: %s\n\n", s.Symbol))
	if s.FirstTransitionMs > 0 {
		sb.WriteString(fmt.Sprintf("Span: %s .. %s\n\n",
			formatMs(s.FirstTransitionMs), formatMs(s.LastTransitionMs)))
	}

	sb.WriteString("## Trades\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Transitions | %d |\n", s.Transitions))
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", s.ClosedTrades))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", s.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", s.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", s.WinRate))
	sb.WriteString("\n")

	sb.WriteString("## PnL\n\n")
	if s.ClosedTrades > 0 {
		sb.WriteString("| Total | Mean | Median | P10 | P90 | Min | Max | Stddev | MaxDD | MaxLossStreak |\n")
		sb.WriteString("|-------|------|--------|-----|-----|-----|-----|--------|-------|---------------|\n")
		sb.WriteString(fmt.Sprintf("| %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %d |\n",
			s.TotalRealizedPnL, s.PnLMean, s.PnLMedian, s.PnLP10, s.PnLP90,
			s.PnLMin, s.PnLMax, s.PnLStddev, s.MaxDrawdown, s.MaxConsecutiveLosses))
	} else {
		sb.WriteString("No closed trades in this run.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Exit Reasons\n\n")
	if len(s.ExitReasons) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, row := range s.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Reason, row.Count))
		}
	} else {
		sb.WriteString("No exits recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
