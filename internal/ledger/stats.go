package ledger

import "github.com/skalibog/hypetrader/pkg/models"

// Stats итоги по закрытым сделкам
type Stats struct {
	Trades      int
	Wins        int
	WinRate     float64
	TotalPnL    float64
	FinalCash   float64
	FinalEquity float64
	MaxDrawdown float64
}

// Stats рассчитывает итоги портфеля
func (p *Portfolio) Stats() Stats {
	s := Stats{
		Trades:      len(p.trades),
		FinalCash:   p.cash,
		FinalEquity: p.Equity(),
	}

	s.MaxDrawdown = MaxDrawdown(p.initial, p.trades)
	for _, t := range p.trades {
		s.TotalPnL += t.PnL
		if t.PnL > 0 {
			s.Wins++
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}

	return s
}

// MaxDrawdown максимальная относительная просадка реализованной кривой капитала
func MaxDrawdown(initial float64, trades []models.Trade) float64 {
	peak := initial
	equity := initial
	var worst float64
	for _, t := range trades {
		equity += t.PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
