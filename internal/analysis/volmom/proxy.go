package volmom

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/hypetrader/pkg/models"
)

// RangeProxy рассчитывает вспомогательную оценку волатильности на баре idx как
// среднее (high-low) за window баров. Если истории недостаточно или значение
// не определено, возвращается fallback от цены закрытия.
func RangeProxy(candles []*models.Candle, idx, window int, fallback float64) float64 {
	if idx < 0 || idx >= len(candles) {
		return 0
	}
	price := candles[idx].Close
	if window < 1 || idx+1 < window {
		return price * fallback
	}

	ranges := make([]float64, window)
	for i, c := range candles[idx+1-window : idx+1] {
		ranges[i] = c.High - c.Low
	}

	var proxy float64
	if window == 1 {
		proxy = ranges[0]
	} else {
		out := talib.Sma(ranges, window)
		proxy = out[window-1]
	}

	if math.IsNaN(proxy) || proxy <= 0 {
		return price * fallback
	}
	return proxy
}
