package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/hypetrader/pkg/models"
)

// mockRecorder считает вызовы и возвращает заданную ошибку
type mockRecorder struct {
	err          error
	candleCalls  int
	signalCalls  int
	tradeCalls   int
	equityCalls  int
	closed       bool
	lastEquityOn string
}

func (m *mockRecorder) SaveCandles(context.Context, string, []*models.Candle) error {
	m.candleCalls++
	return m.err
}

func (m *mockRecorder) SaveSignal(context.Context, *models.SignalResult) error {
	m.signalCalls++
	return m.err
}

func (m *mockRecorder) SaveTrade(context.Context, models.Trade) error {
	m.tradeCalls++
	return m.err
}

func (m *mockRecorder) SaveEquity(_ context.Context, venue string, _ models.EquitySnapshot) error {
	m.equityCalls++
	m.lastEquityOn = venue
	return m.err
}

func (m *mockRecorder) Close() { m.closed = true }

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	ok := &mockRecorder{}
	failing := &mockRecorder{err: errors.New("disk full")}
	m := Multi{ok, failing}
	ctx := context.Background()

	assert.Error(t, m.SaveTrade(ctx, models.Trade{}))
	assert.Error(t, m.SaveCandles(ctx, "binance", nil))
	assert.Error(t, m.SaveSignal(ctx, &models.SignalResult{}))
	assert.Error(t, m.SaveEquity(ctx, "kraken", models.EquitySnapshot{}))
	m.Close()

	for _, r := range []*mockRecorder{ok, failing} {
		assert.Equal(t, 1, r.tradeCalls)
		assert.Equal(t, 1, r.candleCalls)
		assert.Equal(t, 1, r.signalCalls)
		assert.Equal(t, 1, r.equityCalls)
		assert.Equal(t, "kraken", r.lastEquityOn)
		assert.True(t, r.closed)
	}

	assert.NoError(t, Multi{ok}.SaveTrade(ctx, models.Trade{}))
}

func TestTradeRowMapping(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	trade := models.Trade{
		ID:         "7d1c",
		Instrument: "BTC/USDT",
		Venue:      "binance",
		Side:       models.Short,
		Quantity:   0.5,
		Entry:      42000,
		Exit:       41000,
		PnL:        500,
		OpenedAt:   time.Date(2024, 1, 1, 3, 0, 0, 0, msk),
		ClosedAt:   time.Date(2024, 1, 1, 9, 0, 0, 0, msk),
	}

	row := NewTradeRow(trade)
	assert.Equal(t, "short", row.Side)
	assert.Equal(t, time.UTC, row.OpenedAt.Location())

	require.True(t, row.OpenedAt.Equal(trade.OpenedAt))
	require.True(t, row.ClosedAt.Equal(trade.ClosedAt))
	assert.Equal(t, "binance", row.Venue)
	assert.Equal(t, trade.PnL, row.PnL)
}

func TestCandlePointTags(t *testing.T) {
	c := &models.Candle{Symbol: "ETH/USDT", Interval: "5m", OpenTime: time.Unix(0, 0), Close: 10}
	p := candlePoint("binance", c)

	assert.Equal(t, "candles", p.Name())
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"venue": "binance", "symbol": "ETH/USDT", "interval": "5m"}, tags)
}
