package exchange

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpot подставной REST API с учетом вызовов
type fakeSpot struct {
	symbols     []binance.Symbol
	symbolsErr  error
	total       int
	start       time.Time
	klineCalls  int
	symbolCalls int
}

func (f *fakeSpot) Klines(_ context.Context, _ string, _ string, limit int, start int64) ([]*binance.Kline, error) {
	f.klineCalls++
	from := 0
	if start > 0 {
		from = int((start - f.start.UnixMilli() + 59_999) / 60_000)
	} else {
		from = max(f.total-limit, 0)
	}
	var out []*binance.Kline
	for i := from; i < f.total && len(out) < limit; i++ {
		open := f.start.Add(time.Duration(i) * time.Minute)
		price := strconv.Itoa(100 + i)
		out = append(out, &binance.Kline{
			OpenTime:  open.UnixMilli(),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    "1.5",
			CloseTime: open.Add(time.Minute).UnixMilli() - 1,
		})
	}
	return out, nil
}

func (f *fakeSpot) Symbols(context.Context) ([]binance.Symbol, error) {
	f.symbolCalls++
	return f.symbols, f.symbolsErr
}

func TestResolveInstrumentFallsBackToOtherQuotes(t *testing.T) {
	api := &fakeSpot{symbols: []binance.Symbol{
		{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT"},
		{Symbol: "WIFUSDC", Status: "TRADING", BaseAsset: "WIF", QuoteAsset: "USDC"},
		{Symbol: "OLDUSDT", Status: "BREAK", BaseAsset: "OLD", QuoteAsset: "USDT"},
	}}
	c := newBinanceClient(api)
	ctx := context.Background()

	got, err := c.ResolveInstrument(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", got)

	got, err = c.ResolveInstrument(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", got)

	got, err = c.ResolveInstrument(ctx, "wif/usdt")
	require.NoError(t, err)
	assert.Equal(t, "WIF/USDC", got)

	_, err = c.ResolveInstrument(ctx, "OLD/USDT")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.ResolveInstrument(ctx, "garbage")
	assert.Error(t, err)

	// Список символов загружается один раз
	assert.Equal(t, 1, api.symbolCalls)
}

func TestResolveInstrumentSymbolsError(t *testing.T) {
	c := newBinanceClient(&fakeSpot{symbolsErr: errors.New("timeout")})

	_, err := c.ResolveInstrument(context.Background(), "BTC/USDT")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolveInstrumentRefreshesListings(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeSpot{symbols: []binance.Symbol{
		{Symbol: "BTCUSDT", Status: "TRADING", BaseAsset: "BTC", QuoteAsset: "USDT"},
	}}
	c := newBinanceClient(api)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.ResolveInstrument(ctx, "PEPE/USDT")
	assert.ErrorIs(t, err, ErrNotFound)

	// Новый листинг появляется только после истечения кэша
	api.symbols = append(api.symbols, binance.Symbol{Symbol: "PEPEUSDT", Status: "TRADING", BaseAsset: "PEPE", QuoteAsset: "USDT"})
	now = now.Add(symbolsTTL / 2)
	_, err = c.ResolveInstrument(ctx, "PEPE/USDT")
	assert.ErrorIs(t, err, ErrNotFound)

	now = now.Add(symbolsTTL)
	got, err := c.ResolveInstrument(ctx, "PEPE/USDT")
	require.NoError(t, err)
	assert.Equal(t, "PEPE/USDT", got)
	assert.Equal(t, 2, api.symbolCalls)

	// Ошибка обновления не теряет загруженный список
	api.symbolsErr = errors.New("timeout")
	now = now.Add(2 * symbolsTTL)
	got, err = c.ResolveInstrument(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", got)
	assert.Equal(t, 3, api.symbolCalls)
}

func TestFetchCandlesSinglePage(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeSpot{total: 50, start: start}
	c := newBinanceClient(api)

	candles, err := c.FetchCandles(context.Background(), "ETH/USDT", "1m", 10)
	require.NoError(t, err)
	require.Len(t, candles, 10)
	assert.Equal(t, 1, api.klineCalls)
	assert.Equal(t, "ETH/USDT", candles[0].Symbol)
	assert.Equal(t, 140.0, candles[0].Close)
	assert.Equal(t, 1.5, candles[0].Volume)
	assert.Equal(t, start.Add(49*time.Minute), candles[9].OpenTime)
}

func TestFetchCandlesPaginates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeSpot{total: 2500, start: start}
	c := newBinanceClient(api)
	c.now = func() time.Time { return start.Add(2500 * time.Minute) }

	candles, err := c.FetchCandles(context.Background(), "ETH/USDT", "1m", 2200)
	require.NoError(t, err)
	require.Len(t, candles, 2200)
	assert.Equal(t, 3, api.klineCalls)

	for i := 1; i < len(candles); i++ {
		require.True(t, candles[i].OpenTime.After(candles[i-1].OpenTime))
	}
	assert.Equal(t, start.Add(2499*time.Minute), candles[len(candles)-1].OpenTime)
}

func TestSplitPair(t *testing.T) {
	base, quote, err := SplitPair(" btc/usdt ")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, err = SplitPair("BTCUSDT")
	assert.Error(t, err)

	assert.Equal(t, []string{"USD", "USDT", "USDC", "BUSD", "BTC"}, QuoteCandidates("USD"))
}
