package storage

import (
	"context"
	"errors"

	"github.com/skalibog/hypetrader/pkg/models"
)

// Recorder сохраняет данные работы: свечи, сигналы, сделки и оценки капитала
type Recorder interface {
	SaveCandles(ctx context.Context, venue string, candles []*models.Candle) error
	SaveSignal(ctx context.Context, signal *models.SignalResult) error
	SaveTrade(ctx context.Context, trade models.Trade) error
	SaveEquity(ctx context.Context, venue string, snapshot models.EquitySnapshot) error
	Close()
}

// CandleSource отдает сохраненные свечи в порядке возрастания времени
type CandleSource interface {
	GetCandles(ctx context.Context, venue, symbol, interval string, limit int) ([]*models.Candle, error)
}

// Nop ничего не сохраняет
type Nop struct{}

func (Nop) SaveCandles(context.Context, string, []*models.Candle) error { return nil }
func (Nop) SaveSignal(context.Context, *models.SignalResult) error { return nil }
func (Nop) SaveTrade(context.Context, models.Trade) error { return nil }
func (Nop) SaveEquity(context.Context, string, models.EquitySnapshot) error { return nil }
func (Nop) Close() {}

// Multi передает запись всем хранилищам и собирает ошибки
type Multi []Recorder

func (m Multi) SaveCandles(ctx context.Context, venue string, candles []*models.Candle) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveCandles(ctx, venue, candles))
	}
	return errors.Join(errs...)
}

func (m Multi) SaveSignal(ctx context.Context, signal *models.SignalResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveSignal(ctx, signal))
	}
	return errors.Join(errs...)
}

func (m Multi) SaveTrade(ctx context.Context, trade models.Trade) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveTrade(ctx, trade))
	}
	return errors.Join(errs...)
}

func (m Multi) SaveEquity(ctx context.Context, venue string, snapshot models.EquitySnapshot) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.SaveEquity(ctx, venue, snapshot))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() {
	for _, r := range m {
		r.Close()
	}
}
