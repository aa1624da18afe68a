package live

import (
	"time"

	"github.com/skalibog/hypetrader/internal/ledger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// Report итог одного цикла опроса
type Report struct {
	Cycle     int
	At        time.Time
	Watchlist []models.WatchItem
	Venues    []VenueReport
	Signals   []models.SignalResult
	Trades    []models.Trade
	Skipped   int
	Equity    float64
}

// VenueReport состояние портфеля одной биржи
type VenueReport struct {
	Venue     string
	Cash      float64
	Equity    float64
	Positions []PositionView
}

// PositionView открытая позиция с последней ценой
type PositionView struct {
	Key      models.Key
	Position ledger.Position
	Mark     float64
}

// Reporter получает отчет после каждого цикла
type Reporter interface {
	Report(r Report)
}

// ReporterFunc адаптер функции к Reporter
type ReporterFunc func(r Report)

func (f ReporterFunc) Report(r Report) { f(r) }
