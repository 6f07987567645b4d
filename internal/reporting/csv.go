package reporting

import (
	"fmt"
	"strings"

	"momentum-lab/internal/domain"
)

// RenderCSV renders the ranked rows as CSV string.
// Undefined rates render as empty cells.
func RenderCSV(rows []RunRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,config_id,side,leverage,lookback_ticks,max_hold_ticks,stop_loss_rate,")
	sb.WriteString("trade_count,win_rate,final_profit_rate,profit_rate_peak,max_drawdown,")
	sb.WriteString("profit_factor,max_streak,max_loss_streak,lowest_value,final_value,kill_switch\n")

	// Rows
	for _, r := range rows {
		c, s := r.Config, r.Summary
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%.2f,%d,%d,%.4f,%d,%s,%.6f,%.6f,%.6f,%s,%d,%d,%.2f,%.2f,%t\n",
			r.Rank,
			r.ConfigID,
			c.Side,
			c.Leverage,
			c.LookbackTicks,
			c.MaxHoldTicks,
			c.StopLossRate,
			s.TradeCount,
			optional(s.WinRate, "%.6f"),
			s.FinalProfitRate,
			s.ProfitRatePeak,
			s.MaxDrawdown,
			optional(s.ProfitFactor, "%.6f"),
			s.MaxStreak,
			s.MaxLossStreak,
			s.LowestValue,
			s.FinalValue,
			s.KillSwitchTriggered,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders a run's trade-history log as tick,profit_rate rows.
func RenderEquityCSV(history []domain.HistoryPoint) string {
	var sb strings.Builder
	sb.WriteString("tick,profit_rate\n")
	for _, h := range history {
		sb.WriteString(fmt.Sprintf("%d,%.6f\n", h.Tick, h.ProfitRate))
	}
	return sb.String()
}

func optional(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}
