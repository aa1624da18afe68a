package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skalibog/hypetrader/pkg/models"
)

var (
	// ErrPositionOpen позиция по ключу уже открыта
	ErrPositionOpen = errors.New("позиция уже открыта")
	// ErrNoPosition позиции по ключу нет
	ErrNoPosition = errors.New("позиция не найдена")
)

// Position открытая позиция
type Position struct {
	Side     models.Side
	Quantity float64
	Entry    float64
	Stop     float64
	Take     float64
	OpenedAt time.Time
}

// Unrealized возвращает нереализованный результат позиции по цене mark
func (p Position) Unrealized(mark float64) float64 {
	return p.Side.Sign() * p.Quantity * (mark - p.Entry)
}

// ShouldExit проверяет достижение стопа или тейк-профита
func (p Position) ShouldExit(mark float64) bool {
	if p.Side == models.Short {
		return mark >= p.Stop || mark <= p.Take
	}
	return mark <= p.Stop || mark >= p.Take
}

// Portfolio денежный баланс, открытые позиции и история сделок.
// Изменяется только одним управляющим потоком.
type Portfolio struct {
	cash      float64
	initial   float64
	positions map[models.Key]*Position
	trades    []models.Trade
	marks     map[models.Key]float64
}

// NewPortfolio создает портфель с начальным балансом
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		cash:      cash,
		initial:   cash,
		positions: make(map[models.Key]*Position),
		marks:     make(map[models.Key]float64),
	}
}

// Cash текущий денежный баланс
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// InitialCash начальный баланс
func (p *Portfolio) InitialCash() float64 {
	return p.initial
}

// Position возвращает копию открытой позиции по ключу
func (p *Portfolio) Position(key models.Key) (Position, bool) {
	pos, ok := p.positions[key]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// OpenKeys возвращает ключи открытых позиций в детерминированном порядке
func (p *Portfolio) OpenKeys() []models.Key {
	keys := make([]models.Key, 0, len(p.positions))
	for k := range p.positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Trades возвращает копию истории сделок в порядке закрытия
func (p *Portfolio) Trades() []models.Trade {
	out := make([]models.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Mark запоминает последнюю наблюдаемую цену инструмента
func (p *Portfolio) Mark(key models.Key, price float64) {
	p.marks[key] = price
}

// LastMark возвращает последнюю наблюдаемую цену инструмента
func (p *Portfolio) LastMark(key models.Key) (float64, bool) {
	price, ok := p.marks[key]
	return price, ok
}

// Equity баланс плюс переоценка открытых позиций по последним ценам.
// Суммирование идет в порядке ключей, чтобы результат не зависел от обхода map.
func (p *Portfolio) Equity() float64 {
	equity := p.cash
	for _, k := range p.OpenKeys() {
		pos := p.positions[k]
		mark, ok := p.marks[k]
		if !ok {
			mark = pos.Entry
		}
		equity += pos.Unrealized(mark)
	}
	return equity
}

// Open открывает позицию. Вторая позиция по тому же ключу запрещена.
func (p *Portfolio) Open(key models.Key, pos Position) error {
	if _, ok := p.positions[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrPositionOpen)
	}
	if pos.Quantity <= 0 {
		return fmt.Errorf("%s: некорректное количество %f", key, pos.Quantity)
	}
	p.positions[key] = &pos
	return nil
}

// Close закрывает позицию по цене exit, зачисляет результат и добавляет сделку в историю
func (p *Portfolio) Close(key models.Key, exit float64, at time.Time) (models.Trade, error) {
	pos, ok := p.positions[key]
	if !ok {
		return models.Trade{}, fmt.Errorf("%s: %w", key, ErrNoPosition)
	}

	pnl := pos.Unrealized(exit)
	trade := models.Trade{
		ID:         tradeID(key, pos.OpenedAt, at),
		Instrument: key.Instrument,
		Venue:      key.Venue,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		Entry:      pos.Entry,
		Exit:       exit,
		PnL:        pnl,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   at,
	}

	p.cash += pnl
	p.trades = append(p.trades, trade)
	delete(p.positions, key)

	return trade, nil
}

// Snapshot оценка капитала на момент at
func (p *Portfolio) Snapshot(at time.Time) models.EquitySnapshot {
	return models.EquitySnapshot{
		Timestamp:     at,
		Cash:          p.cash,
		Equity:        p.Equity(),
		OpenPositions: len(p.positions),
	}
}

// tradeID детерминированный идентификатор сделки, одинаковый при повторных прогонах
func tradeID(key models.Key, opened, closed time.Time) string {
	name := fmt.Sprintf("%s|%d|%d", key, opened.UnixNano(), closed.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
