package models

import "time"

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Key идентифицирует инструмент на конкретной бирже
type Key struct {
	Venue      string
	Instrument string
}

// String возвращает ключ в виде "venue:instrument"
func (k Key) String() string {
	return k.Venue + ":" + k.Instrument
}

// Less задает порядок ключей: сначала биржа, затем инструмент
func (k Key) Less(other Key) bool {
	if k.Venue != other.Venue {
		return k.Venue < other.Venue
	}
	return k.Instrument < other.Instrument
}

// Side направление позиции
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Sign возвращает +1 для длинной позиции и -1 для короткой
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Signal торговый сигнал
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Side возвращает направление позиции для сигнала входа
func (s Signal) Side() (Side, bool) {
	switch s {
	case Buy:
		return Long, true
	case Sell:
		return Short, true
	default:
		return "", false
	}
}

// WatchItem элемент списка наблюдения
type WatchItem struct {
	Venue    string
	Pair     string
	LastSeen time.Time
}

// Key возвращает ключ инструмента элемента
func (w WatchItem) Key() Key {
	return Key{Venue: w.Venue, Instrument: w.Pair}
}

// Trade представляет закрытую сделку
type Trade struct {
	ID         string
	Instrument string
	Venue      string
	Side       Side
	Quantity   float64
	Entry      float64
	Exit       float64
	PnL        float64
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Key возвращает ключ инструмента сделки
func (t Trade) Key() Key {
	return Key{Venue: t.Venue, Instrument: t.Instrument}
}

// SignalResult представляет результат расчета сигнала для инструмента
type SignalResult struct {
	Key        Key
	Timestamp  time.Time
	Signal     Signal
	Volatility float64
	VolZ       float64
	Momentum   float64
	MovingAvg  float64
	Price      float64
	Proxy      float64
}

// EquitySnapshot представляет оценку капитала в момент времени
type EquitySnapshot struct {
	Timestamp     time.Time
	Cash          float64
	Equity        float64
	OpenPositions int
}
