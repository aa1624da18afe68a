package volmom

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

// epsilon защищает z-оценку от деления на ноль
const epsilon = 1e-9

// Engine реализует генератор сигналов по всплеску волатильности и моментуму.
// Состояния между вызовами нет: результат зависит только от переданных свечей.
type Engine struct {
	config config.SignalConfig
}

// NewEngine создает новый генератор сигналов
func NewEngine(cfg config.SignalConfig) *Engine {
	return &Engine{
		config: cfg,
	}
}

// Snapshot значения индикаторов на баре принятия решения
type Snapshot struct {
	Index      int
	Close      float64
	Volatility float64
	VolZ       float64
	MovingAvg  float64
	Momentum   float64
}

// Warmup возвращает минимальное число свечей для расчета сигнала
func (e *Engine) Warmup() int {
	return e.config.Warmup()
}

// Generate возвращает сигнал для серии свечей
func (e *Engine) Generate(candles []*models.Candle) models.Signal {
	snap, ok := e.Indicators(candles)
	if !ok {
		return models.Hold
	}
	return e.decide(snap)
}

// Indicators рассчитывает индикаторы на предпоследнем баре серии.
// Последний бар не используется: решение принимается сейчас, исполнение на следующем баре.
func (e *Engine) Indicators(candles []*models.Candle) (Snapshot, bool) {
	n := len(candles)
	if n < e.Warmup() {
		return Snapshot{}, false
	}

	wv, wm := e.config.VolWindow, e.config.MAWindow

	closes := make([]float64, n)
	for i, c := range candles {
		if c.Close <= 0 {
			return Snapshot{}, false
		}
		closes[i] = c.Close
	}

	// Логарифмические доходности: returns[i-1] соответствует бару i
	logs := talib.Ln(closes)
	returns := make([]float64, n-1)
	for i := 1; i < n; i++ {
		returns[i-1] = logs[i] - logs[i-1]
	}

	// Скользящая волатильность, валидна начиная с индекса wv-1
	vol := sampleStdDev(returns, wv)[wv-1:]
	volMean := talib.Sma(vol, wv)
	volStd := sampleStdDev(vol, wv)

	sma := talib.Sma(closes, wm)
	roc := talib.Roc(closes, wm)

	idx := n - 2
	v := idx - 1 - (wv - 1)
	if v < wv-1 || idx < wm {
		return Snapshot{}, false
	}

	return Snapshot{
		Index:      idx,
		Close:      closes[idx],
		Volatility: vol[v],
		VolZ:       (vol[v] - volMean[v]) / (volStd[v] + epsilon),
		MovingAvg:  sma[idx],
		Momentum:   roc[idx],
	}, true
}

func (e *Engine) decide(s Snapshot) models.Signal {
	if s.VolZ <= e.config.ZThreshold {
		return models.Hold
	}
	switch {
	case s.Momentum > 0 && s.Close > s.MovingAvg:
		return models.Buy
	case s.Momentum < 0 && s.Close < s.MovingAvg:
		return models.Sell
	default:
		return models.Hold
	}
}

// sampleStdDev выборочное стандартное отклонение (n-1) в скользящем окне.
// talib считает генеральное, поэтому результат масштабируется.
func sampleStdDev(in []float64, period int) []float64 {
	out := talib.StdDev(in, period, 1)
	scale := math.Sqrt(float64(period) / float64(period-1))
	for i := range out {
		out[i] *= scale
	}
	return out
}
