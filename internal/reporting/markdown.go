package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Sweep Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Sweep: %s | Runs: %d | Ranked by: %s\n\n", r.SweepID, r.RunCount, r.RankedBy))

	// Overview
	o := r.Overview
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Profitable Runs | %d |\n", o.ProfitableRuns))
	sb.WriteString(fmt.Sprintf("| Kill-Switch Runs | %d |\n", o.KillSwitchRuns))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", o.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Best Profit Rate | %.4f |\n", o.BestProfitRate))
	sb.WriteString(fmt.Sprintf("| Worst Profit Rate | %.4f |\n", o.WorstProfitRate))
	sb.WriteString(fmt.Sprintf("| Mean Profit Rate | %.4f |\n", o.MeanProfitRate))
	sb.WriteString("\n")

	// Ranked runs
	sb.WriteString("## Runs\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No runs available.\n\n")
		return sb.String()
	}

	sb.WriteString("| # | Config | Side | Lev | Lookback | MaxHold | SL | Trades | WinRate | Final | Peak | MaxDD | PF | KS |\n")
	sb.WriteString("|---|--------|------|-----|----------|---------|----|--------|---------|-------|------|-------|----|----|\n")
	for _, row := range r.Rows {
		c, s := row.Config, row.Summary
		ks := ""
		if s.KillSwitchTriggered {
			ks = "yes"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %d | %d | %.4f | %d | %s | %.4f | %.4f | %.4f | %s | %s |\n",
			row.Rank, row.ConfigID, c.Side, c.Leverage, c.LookbackTicks, c.MaxHoldTicks, c.StopLossRate,
			s.TradeCount, orDash(s.WinRate), s.FinalProfitRate, s.ProfitRatePeak, s.MaxDrawdown,
			orDash(s.ProfitFactor), ks))
	}
	sb.WriteString("\n")

	// Trade distribution
	sb.WriteString("## Trade Distribution\n\n")
	sb.WriteString("| # | Config | Mean | Median | P10 | P90 | Stddev | AvgHold | Symbols | ScaledIn |\n")
	sb.WriteString("|---|--------|------|--------|-----|-----|--------|---------|---------|----------|\n")
	for _, row := range r.Rows {
		d := row.Trades
		sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.1f | %d | %d |\n",
			row.Rank, row.ConfigID, d.Mean, d.Median, d.P10, d.P90, d.Stddev, d.AvgHoldTicks, d.SymbolsTraded, d.ScaledIn))
	}
	sb.WriteString("\n")

	// Best run by symbol
	sb.WriteString("## Best Run by Symbol\n\n")
	if len(r.TopSymbols) > 0 {
		sb.WriteString("| Symbol | Trades | Wins | PnL | MeanRate |\n")
		sb.WriteString("|--------|--------|------|-----|----------|\n")
		for _, s := range r.TopSymbols {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %.4f |\n",
				s.Symbol, s.Trades, s.Wins, s.RealizedPnL, s.MeanRate))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func orDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
