package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/analysis/volmom"
	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/ledger"
	"github.com/skalibog/hypetrader/internal/risk"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// ErrNotEnoughCandles истории не хватает даже на один шаг после прогрева
var ErrNotEnoughCandles = errors.New("недостаточно свечей для прогона")

// Simulator прогоняет историю свечей бар за баром с исполнением по открытию следующего бара
type Simulator struct {
	log    *zap.Logger
	engine *volmom.Engine
	sizer  *risk.Sizer
	signal config.SignalConfig
	warmup int
}

// NewSimulator создает симулятор. warmup число начальных баров, на которых
// решения не принимаются; они участвуют только в расчете скользящих окон.
func NewSimulator(signalCfg config.SignalConfig, riskCfg config.RiskConfig, warmup int, log *zap.Logger) *Simulator {
	return &Simulator{
		log:    logger.OrNop(log).Named("backtest"),
		engine: volmom.NewEngine(signalCfg),
		sizer:  risk.NewSizer(riskCfg),
		signal: signalCfg,
		warmup: warmup,
	}
}

// Run прогоняет свечи по ключу key и возвращает итоговый портфель.
// Для одинаковых свечей и параметров результат побитово совпадает.
func (s *Simulator) Run(key models.Key, candles []*models.Candle, initialCash float64) (*ledger.Portfolio, error) {
	if len(candles) < s.warmup+2 {
		return nil, fmt.Errorf("%w: %d свечей, нужно не меньше %d", ErrNotEnoughCandles, len(candles), s.warmup+2)
	}
	if err := checkOrder(candles); err != nil {
		return nil, err
	}

	portfolio := ledger.NewPortfolio(initialCash)
	l := ledger.New(portfolio, s.sizer, s.log)

	signals := make(map[models.Signal]int)
	for i := s.warmup; i <= len(candles)-2; i++ {
		sig := s.engine.Generate(candles[:i+1])
		signals[sig]++

		proxy := volmom.RangeProxy(candles, i, s.signal.RangeWindow, s.signal.RangeFallback)

		// Решение на баре i исполняется по открытию бара i+1
		next := candles[i+1]
		l.Evaluate(key, next.Open, next.OpenTime, sig, proxy)
	}

	st := portfolio.Stats()
	s.log.Info("Прогон завершен",
		zap.String("key", key.String()),
		zap.Int("bars", len(candles)),
		zap.Int("buy_signals", signals[models.Buy]),
		zap.Int("sell_signals", signals[models.Sell]),
		zap.Int("trades", st.Trades),
		zap.Float64("pnl", st.TotalPnL),
		zap.Float64("cash", portfolio.Cash()))

	return portfolio, nil
}

// checkOrder проверяет строгое возрастание времени свечей
func checkOrder(candles []*models.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return fmt.Errorf("свечи не упорядочены по времени: позиция %d (%s после %s)",
				i, candles[i].OpenTime, candles[i-1].OpenTime)
		}
	}
	return nil
}
