package risk

import (
	"math"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

// Sizer рассчитывает размер позиции и уровни выхода по оценке волатильности
type Sizer struct {
	config config.RiskConfig
}

// NewSizer создает расчетчик размера позиции
func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{config: cfg}
}

// RiskFraction доля капитала, которой рискуем в одной сделке
func (s *Sizer) RiskFraction() float64 {
	return s.config.RiskFraction
}

// StopDistance расстояние до стопа, ограниченное снизу долей цены,
// чтобы почти нулевая волатильность не давала огромную позицию
func (s *Sizer) StopDistance(price, proxy float64) float64 {
	return math.Max(proxy, price*s.config.MinStopFrac)
}

// PositionSize возвращает количество, при котором срабатывание стопа стоит
// equity*fraction. Результат никогда не отрицателен.
func (s *Sizer) PositionSize(equity, price, proxy, fraction float64) float64 {
	stop := s.StopDistance(price, proxy)
	if stop <= 0 || math.IsNaN(stop) {
		return 0
	}

	qty := equity * fraction / stop
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0
	}
	return qty
}

// Levels возвращает уровни стопа и тейк-профита для позиции
func (s *Sizer) Levels(side models.Side, entry, proxy float64) (stop, take float64) {
	if side == models.Short {
		return entry + s.config.KStop*proxy, entry - s.config.KTake*proxy
	}
	return entry - s.config.KStop*proxy, entry + s.config.KTake*proxy
}
