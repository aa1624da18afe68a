package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/risk"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// Ledger применяет сигналы к портфелю: сначала проверка выхода, затем вход
type Ledger struct {
	log       *zap.Logger
	portfolio *Portfolio
	sizer     *risk.Sizer
}

// New создает журнал позиций поверх портфеля
func New(portfolio *Portfolio, sizer *risk.Sizer, log *zap.Logger) *Ledger {
	return &Ledger{
		log:       logger.OrNop(log).Named("ledger"),
		portfolio: portfolio,
		sizer:     sizer,
	}
}

// Portfolio возвращает портфель журнала
func (l *Ledger) Portfolio() *Portfolio {
	return l.portfolio
}

// Evaluate обрабатывает бар или тик по ключу. price служит одновременно ценой
// переоценки, триггером выхода и ценой исполнения. Возвращает сделку, если позиция закрылась.
func (l *Ledger) Evaluate(key models.Key, price float64, at time.Time, signal models.Signal, proxy float64) *models.Trade {
	p := l.portfolio
	p.Mark(key, price)

	if pos, ok := p.Position(key); ok {
		if !pos.ShouldExit(price) {
			// Пока позиция открыта, новые входы игнорируются
			return nil
		}
		trade, err := p.Close(key, price, at)
		if err != nil {
			l.log.Error("Ошибка закрытия позиции", zap.String("key", key.String()), zap.Error(err))
			return nil
		}
		l.log.Info("Позиция закрыта",
			zap.String("key", key.String()),
			zap.String("side", string(trade.Side)),
			zap.Float64("entry", trade.Entry),
			zap.Float64("exit", trade.Exit),
			zap.Float64("pnl", trade.PnL))
		// Повторный вход возможен только в следующем цикле
		return &trade
	}

	side, ok := signal.Side()
	if !ok {
		return nil
	}

	qty := l.sizer.PositionSize(p.Equity(), price, proxy, l.sizer.RiskFraction())
	if qty <= 0 {
		l.log.Debug("Нулевой размер позиции, вход пропущен", zap.String("key", key.String()))
		return nil
	}

	stop, take := l.sizer.Levels(side, price, proxy)
	pos := Position{
		Side:     side,
		Quantity: qty,
		Entry:    price,
		Stop:     stop,
		Take:     take,
		OpenedAt: at,
	}
	if err := p.Open(key, pos); err != nil {
		l.log.Error("Ошибка открытия позиции", zap.String("key", key.String()), zap.Error(err))
		return nil
	}

	l.log.Info("Позиция открыта",
		zap.String("key", key.String()),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.Float64("entry", price),
		zap.Float64("stop", stop),
		zap.Float64("take", take))

	return nil
}
