package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

// fakeSource хранилище свечей в памяти с записью запросов
type fakeSource struct {
	candles []*models.Candle
	err     error
	query   []any
}

func (f *fakeSource) GetCandles(_ context.Context, venue, symbol, interval string, limit int) ([]*models.Candle, error) {
	f.query = []any{venue, symbol, interval, limit}
	return f.candles, f.err
}

func TestStoredHistory(t *testing.T) {
	bt := config.Default().Backtest
	src := &fakeSource{candles: []*models.Candle{
		{Symbol: "BTC/USDT", OpenTime: time.Unix(0, 0), Close: 100},
		{Symbol: "BTC/USDT", OpenTime: time.Unix(3600, 0), Close: 101},
	}}

	key, candles, err := storedHistory(context.Background(), src, bt, 720)
	require.NoError(t, err)

	assert.Equal(t, models.Key{Venue: "binance", Instrument: "BTC/USDT"}, key)
	assert.Len(t, candles, 2)
	assert.Equal(t, []any{"binance", "BTC/USDT", "1h", 720}, src.query)
}

func TestStoredHistoryErrors(t *testing.T) {
	bt := config.Default().Backtest

	_, _, err := storedHistory(context.Background(), &fakeSource{}, bt, 720)
	assert.Error(t, err)

	boom := errors.New("influx down")
	_, _, err = storedHistory(context.Background(), &fakeSource{err: boom}, bt, 720)
	assert.ErrorIs(t, err, boom)
}
