package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/live"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(secondaryColor).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222"))
)

// recentTrades сколько последних сделок показывать
const recentTrades = 10

// TermUI терминальная панель режима live. Получает отчеты цикла через Report.
type TermUI struct {
	log     *zap.Logger
	config  config.UIConfig
	logFile string

	mu       sync.RWMutex
	report   live.Report
	trades   []models.Trade
	logs     []string
	selected int
	program  *tea.Program
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает панель. logFile - JSON-файл логов, хвост которого выводится
// в нижней секции; пустая строка отключает секцию логов.
func NewTermUI(cfg config.UIConfig, logFile string, log *zap.Logger) *TermUI {
	return &TermUI{
		log:     logger.OrNop(log).Named("ui"),
		config:  cfg,
		logFile: logFile,
		logs:    []string{"Hypetrader запущен. Ожидание первого цикла..."},
	}
}

// Report сохраняет отчет цикла и перерисовывает экран
func (ui *TermUI) Report(r live.Report) {
	ui.mu.Lock()
	ui.report = r
	ui.trades = append(ui.trades, r.Trades...)
	if len(ui.trades) > recentTrades {
		ui.trades = ui.trades[len(ui.trades)-recentTrades:]
	}
	if ui.selected >= len(r.Signals) {
		ui.selected = max(0, len(r.Signals)-1)
	}
	program := ui.program
	ui.mu.Unlock()

	if program != nil {
		program.Send(refreshMsg{})
	}
}

// Run показывает панель до выхода пользователя или отмены ctx
func (ui *TermUI) Run(ctx context.Context) error {
	program := tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))

	ui.mu.Lock()
	ui.program = program
	ui.mu.Unlock()

	defer func() {
		ui.mu.Lock()
		ui.program = nil
		ui.mu.Unlock()
	}()

	if ui.logFile != "" {
		go ui.tailLogs(ctx, program)
	}

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка работы UI: %w", err)
	}
	return nil
}

// tailLogs периодически перечитывает файл логов
func (ui *TermUI) tailLogs(ctx context.Context, program *tea.Program) {
	ticker := time.NewTicker(time.Duration(ui.config.RefreshRate) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logs, err := readLogTail(ui.logFile, ui.config.MaxLogLines)
			if err != nil {
				ui.log.Debug("Ошибка загрузки логов", zap.Error(err))
				continue
			}
			if len(logs) == 0 {
				continue
			}
			ui.mu.Lock()
			ui.logs = logs
			ui.mu.Unlock()
			program.Send(refreshMsg{})
		}
	}
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.ui.mu.Lock()
			m.ui.selected = max(0, m.ui.selected-1)
			m.ui.mu.Unlock()
		case "down":
			m.ui.mu.Lock()
			m.ui.selected = max(0, min(len(m.ui.report.Signals)-1, m.ui.selected+1))
			m.ui.mu.Unlock()
		}
	case refreshMsg:
		// Просто обновляем UI
	}

	return m, nil
}

func (m bubbleModel) View() string {
	return m.ui.render()
}

func (ui *TermUI) render() string {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	r := ui.report
	status := "Ожидание первого цикла"
	if r.Cycle > 0 {
		status = fmt.Sprintf("Цикл %d в %s | капитал %.2f | пропущено %d",
			r.Cycle, r.At.Format("15:04:05"), r.Equity, r.Skipped)
	}

	sections := []string{
		titleStyle.Render("HYPETRADER - бумажная торговля по упоминаниям"),
		footerStyle.Render(status),
		lipgloss.JoinHorizontal(lipgloss.Top,
			renderSection("СПИСОК НАБЛЮДЕНИЯ", watchlistLines(r.Watchlist, r.At)),
			renderSection("СИГНАЛЫ", signalLines(r.Signals, ui.selected)),
		),
		lipgloss.JoinHorizontal(lipgloss.Top,
			renderSection("ПОРТФЕЛИ", venueLines(r.Venues)),
			renderSection("СДЕЛКИ", tradeLines(ui.trades)),
		),
	}
	if ui.logFile != "" {
		sections = append(sections, renderSection("ЛОГИ", logLines(ui.logs, ui.config.MaxLogLines)))
	}
	sections = append(sections, footerStyle.Render("Клавиши: ↑/↓ - навигация по сигналам, Q - выход"))

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func renderSection(title string, lines []string) string {
	if len(lines) == 0 {
		lines = []string{lipgloss.NewStyle().Foreground(mutedColor).Render("нет данных")}
	}
	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render(title),
			strings.Join(lines, "\n"),
		),
	)
}

func watchlistLines(items []models.WatchItem, at time.Time) []string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		age := at.Sub(item.LastSeen).Truncate(time.Second)
		lines = append(lines, fmt.Sprintf("%-10s %-12s %s назад", item.Venue, item.Pair, age))
	}
	return lines
}

func signalLines(signals []models.SignalResult, selected int) []string {
	lines := make([]string, 0, len(signals))
	for i, s := range signals {
		line := fmt.Sprintf("%-22s %s z=%6.2f mom=%8.4f цена=%.4f",
			s.Key, formatSignal(s.Signal), s.VolZ, s.Momentum, s.Price)
		if i == selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return lines
}

func venueLines(venues []live.VenueReport) []string {
	var lines []string
	for _, v := range venues {
		lines = append(lines, fmt.Sprintf("%-10s деньги=%.2f капитал=%.2f", v.Venue, v.Cash, v.Equity))
		for _, p := range v.Positions {
			lines = append(lines, fmt.Sprintf("  %-12s %-5s %.6f @ %.4f -> %.4f %s",
				p.Key.Instrument, p.Position.Side, p.Position.Quantity, p.Position.Entry, p.Mark,
				formatPnL(p.Position.Unrealized(p.Mark))))
		}
	}
	return lines
}

func tradeLines(trades []models.Trade) []string {
	lines := make([]string, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		lines = append(lines, fmt.Sprintf("%s %-20s %-5s %.4f -> %.4f %s",
			t.ClosedAt.Format("15:04"), t.Key(), t.Side, t.Entry, t.Exit, formatPnL(t.PnL)))
	}
	return lines
}

func logLines(logs []string, limit int) []string {
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(l, "[ERROR]"):
			l = lipgloss.NewStyle().Foreground(errorColor).Render(l)
		case strings.Contains(l, "[WARN]"):
			l = lipgloss.NewStyle().Foreground(warningColor).Render(l)
		case strings.Contains(l, "[DEBUG]"):
			l = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(l)
		}
		lines = append(lines, l)
	}
	return lines
}

func formatSignal(s models.Signal) string {
	var style lipgloss.Style
	switch s {
	case models.Buy:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.Sell:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}
	return style.Render(fmt.Sprintf("%-4s", s))
}

func formatPnL(v float64) string {
	style := lipgloss.NewStyle().Foreground(successColor)
	if v < 0 {
		style = lipgloss.NewStyle().Foreground(errorColor)
	}
	return style.Render(fmt.Sprintf("%+.2f", v))
}
