package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/ledger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// RenderSummary форматирует итоги бэктеста
func RenderSummary(key models.Key, timeframe config.Timeframe, candles int, stats ledger.Stats) string {
	label := lipgloss.NewStyle().Foreground(mutedColor).Width(18)
	row := func(name, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, label.Render(name), value)
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(fmt.Sprintf("БЭКТЕСТ %s %s", key, timeframe)),
		row("Свечей", fmt.Sprintf("%d", candles)),
		row("Сделок", fmt.Sprintf("%d", stats.Trades)),
		row("Доля прибыльных", fmt.Sprintf("%.2f%%", stats.WinRate*100)),
		row("Итоговый P&L", formatPnL(stats.TotalPnL)),
		row("Итоговый капитал", fmt.Sprintf("%.2f", stats.FinalEquity)),
		row("Макс. просадка", fmt.Sprintf("%.2f%%", stats.MaxDrawdown*100)),
	))
}
