package live

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/exchange"
	"github.com/skalibog/hypetrader/internal/feed"
	"github.com/skalibog/hypetrader/internal/storage"
	"github.com/skalibog/hypetrader/internal/watchlist"
	"github.com/skalibog/hypetrader/pkg/models"
)

var btc = models.Key{Venue: "binance", Instrument: "BTC/USDT"}

// fakeClock часы без реального ожидания
type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.sleeps++
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// fakeMarket рыночные данные из памяти
type fakeMarket struct {
	listed  map[string]bool
	aliases map[string]string
	candles map[models.Key][]*models.Candle
	errs    map[models.Key]error
	fetches []models.Key
}

func (m *fakeMarket) ResolveInstrument(_ context.Context, venue, pair string) (string, error) {
	if venue != "binance" {
		return "", fmt.Errorf("%s: %w", venue, exchange.ErrVenueUnsupported)
	}
	if alias, ok := m.aliases[pair]; ok {
		pair = alias
	}
	if !m.listed[pair] {
		return "", exchange.ErrNotFound
	}
	return pair, nil
}

func (m *fakeMarket) FetchCandles(_ context.Context, venue, pair string, _ config.Timeframe, _ int) ([]*models.Candle, error) {
	k := models.Key{Venue: venue, Instrument: pair}
	m.fetches = append(m.fetches, k)
	if err := m.errs[k]; err != nil {
		return nil, err
	}
	return m.candles[k], nil
}

// tradeRecorder запоминает сохраненные сделки
type tradeRecorder struct {
	storage.Nop
	trades []models.Trade
	equity map[string]int
}

func (r *tradeRecorder) SaveTrade(_ context.Context, t models.Trade) error {
	r.trades = append(r.trades, t)
	return nil
}

func (r *tradeRecorder) SaveEquity(_ context.Context, venue string, _ models.EquitySnapshot) error {
	if r.equity == nil {
		r.equity = make(map[string]int)
	}
	r.equity[venue]++
	return nil
}

func burstCandles(extra ...float64) []*models.Candle {
	var closes []float64
	for i := 0; i < 80; i++ {
		if i%2 == 0 {
			closes = append(closes, 100)
		} else {
			closes = append(closes, 100.1)
		}
	}
	for i := 0; i < 5; i++ {
		closes = append(closes, closes[len(closes)-1]*1.05)
	}
	closes = append(closes, extra...)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]*models.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		candles[i] = &models.Candle{
			Symbol:   "BTC/USDT",
			Interval: "5m",
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     open,
			High:     max(open, c) * 1.001,
			Low:      min(open, c) * 0.999,
			Close:    c,
		}
	}
	return candles
}

type fixture struct {
	loop     *Loop
	clock    *fakeClock
	market   *fakeMarket
	recorder *tradeRecorder
	reports  []Report
}

func newFixture(batches ...[]string) *fixture {
	cfg := config.Default()
	cfg.Watchlist.TTLMinutes = 60

	f := &fixture{
		clock: &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		market: &fakeMarket{
			listed:  map[string]bool{"BTC/USDT": true, "ETH/USDT": true},
			candles: map[models.Key][]*models.Candle{btc: burstCandles()},
			errs:    map[models.Key]error{{Venue: "binance", Instrument: "ETH/USDT"}: errors.New("502 bad gateway")},
		},
		recorder: &tradeRecorder{},
	}

	f.loop = NewLoop(cfg, Deps{
		Feed:     feed.NewStatic(batches...),
		Tracker:  watchlist.NewTracker(cfg.Watchlist, nil, nil, f.clock.Now),
		Market:   f.market,
		Recorder: f.recorder,
		Reporter: ReporterFunc(func(r Report) { f.reports = append(f.reports, r) }),
		Clock:    f.clock,
	})
	return f
}

func TestStepOpensPositionAndSkipsFailures(t *testing.T) {
	f := newFixture([]string{
		"Just bought some BTC on Binance!",
		"ETH on binance looks weak",
		"XRP on kraken",
	})

	report := f.loop.Step(context.Background())

	require.Len(t, report.Watchlist, 3)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Signals, 1)
	assert.Equal(t, models.Buy, report.Signals[0].Signal)

	p, ok := f.loop.Portfolio("binance")
	require.True(t, ok)
	pos, ok := p.Position(btc)
	require.True(t, ok)
	assert.Equal(t, models.Long, pos.Side)

	candles := burstCandles()
	assert.Equal(t, candles[len(candles)-1].Close, pos.Entry)

	// Портфели создаются для каждой упомянутой биржи
	require.Len(t, report.Venues, 2)
	assert.Equal(t, "binance", report.Venues[0].Venue)
	assert.Equal(t, "kraken", report.Venues[1].Venue)
	assert.InDelta(t, 20000.0, report.Equity, 1e-9)
	assert.Equal(t, map[string]int{"binance": 1, "kraken": 1}, f.recorder.equity)
	require.Len(t, f.reports, 1)
}

func TestStepClosesPositionAfterWatchExpiry(t *testing.T) {
	f := newFixture([]string{"Just bought some BTC on Binance!"})
	f.loop.Step(context.Background())

	entry := burstCandles()
	last := entry[len(entry)-1].Close

	// Упоминание устарело, но открытая позиция продолжает проверяться
	f.clock.now = f.clock.now.Add(2 * time.Hour)
	f.market.candles[btc] = burstCandles(last * 1.2)

	report := f.loop.Step(context.Background())

	assert.Empty(t, report.Watchlist)
	require.Len(t, report.Trades, 1)
	trade := report.Trades[0]
	assert.Equal(t, last, trade.Entry)
	assert.Equal(t, last*1.2, trade.Exit)
	assert.Greater(t, trade.PnL, 0.0)
	require.Len(t, f.recorder.trades, 1)

	p, _ := f.loop.Portfolio("binance")
	assert.Empty(t, p.OpenKeys())
	assert.InDelta(t, 10000+trade.PnL, f.loop.Equity(), 1e-9)
}

func TestStepProcessesVenueInWatchOrder(t *testing.T) {
	f := newFixture(
		[]string{"ETH on binance"},
		[]string{"BTC on binance"},
	)
	f.loop.Step(context.Background())
	f.clock.now = f.clock.now.Add(time.Minute)
	f.market.fetches = nil

	f.loop.Step(context.Background())

	// Сначала самый свежий элемент списка
	assert.Equal(t, []models.Key{btc, {Venue: "binance", Instrument: "ETH/USDT"}}, f.market.fetches)
}

func TestStepEvaluatesResolvedListingOnce(t *testing.T) {
	f := newFixture([]string{"BTC/USD and BTC on binance"})
	f.market.aliases = map[string]string{"BTC/USD": "BTC/USDT"}

	report := f.loop.Step(context.Background())

	require.Len(t, report.Watchlist, 2)
	assert.Equal(t, []models.Key{btc}, f.market.fetches)
	assert.Len(t, report.Signals, 1)
	assert.Zero(t, report.Skipped)

	// Выход по тейку не открывает позицию заново в том же цикле
	candles := burstCandles()
	last := candles[len(candles)-1].Close
	f.clock.now = f.clock.now.Add(time.Minute)
	f.market.candles[btc] = burstCandles(last * 1.2)
	f.market.fetches = nil

	report = f.loop.Step(context.Background())

	assert.Equal(t, []models.Key{btc}, f.market.fetches)
	require.Len(t, report.Trades, 1)
	p, ok := f.loop.Portfolio("binance")
	require.True(t, ok)
	_, open := p.Position(btc)
	assert.False(t, open)
}

func TestRunStopsAfterCancel(t *testing.T) {
	f := newFixture([]string{"BTC on binance"})
	ctx, cancel := context.WithCancel(context.Background())

	f.loop.reporter = ReporterFunc(func(r Report) {
		f.reports = append(f.reports, r)
		if r.Cycle == 3 {
			cancel()
		}
	})

	require.NoError(t, f.loop.Run(ctx))
	assert.Len(t, f.reports, 3)
	assert.GreaterOrEqual(t, f.clock.sleeps, 2)
}

func TestRunDoesNothingWhenAlreadyCanceled(t *testing.T) {
	f := newFixture([]string{"BTC on binance"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.loop.Run(ctx))
	assert.Empty(t, f.reports)
}
