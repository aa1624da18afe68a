package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

const (
	// maxKlinesPerRequest ограничение Binance на число свечей в одном запросе
	maxKlinesPerRequest = 1000
	// symbolsTTL время, после которого список торгуемых символов перечитывается
	symbolsTTL = time.Hour
)

// spotAPI подмножество REST API Binance, используемое клиентом
type spotAPI interface {
	Klines(ctx context.Context, symbol, interval string, limit int, start int64) ([]*binance.Kline, error)
	Symbols(ctx context.Context) ([]binance.Symbol, error)
}

// BinanceClient клиент рыночных данных спотового рынка Binance
type BinanceClient struct {
	api      spotAPI
	listed   map[string]struct{}
	listedAt time.Time
	now      func() time.Time
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	return newBinanceClient(&spotService{client: binance.NewClient(cfg.APIKey, cfg.APISecret)})
}

func newBinanceClient(api spotAPI) *BinanceClient {
	return &BinanceClient{api: api, now: time.Now}
}

// FetchCandles получает последние limit свечей пары. Запросы больше лимита
// Binance разбиваются на страницы от расчетного начала истории.
func (c *BinanceClient) FetchCandles(ctx context.Context, pair string, timeframe config.Timeframe, limit int) ([]*models.Candle, error) {
	symbol, err := toBinanceSymbol(pair)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	interval := string(timeframe)
	if limit <= maxKlinesPerRequest {
		klines, err := c.api.Klines(ctx, symbol, interval, limit, 0)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения свечей %s: %w", pair, err)
		}
		return convertKlines(pair, interval, klines)
	}

	start := c.now().Add(-time.Duration(limit) * timeframe.Duration()).UnixMilli()
	var all []*binance.Kline
	for len(all) < limit {
		batch, err := c.api.Klines(ctx, symbol, interval, maxKlinesPerRequest, start)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения свечей %s: %w", pair, err)
		}
		all = append(all, batch...)
		if len(batch) < maxKlinesPerRequest {
			break
		}
		start = batch[len(batch)-1].OpenTime + 1
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	return convertKlines(pair, interval, all)
}

// ResolveInstrument проверяет листинг пары, перебирая запрошенный и резервные котируемые активы
func (c *BinanceClient) ResolveInstrument(ctx context.Context, pair string) (string, error) {
	base, quote, err := SplitPair(pair)
	if err != nil {
		return "", err
	}

	if c.listed == nil || c.now().Sub(c.listedAt) >= symbolsTTL {
		// При ошибке обновления продолжаем со старым списком, если он есть
		if err := c.loadSymbols(ctx); err != nil && c.listed == nil {
			return "", err
		}
	}

	for _, q := range QuoteCandidates(quote) {
		if _, ok := c.listed[base+q]; ok {
			return base + "/" + q, nil
		}
	}

	return "", fmt.Errorf("%s на binance: %w", pair, ErrNotFound)
}

// loadSymbols загружает список торгуемых символов биржи
func (c *BinanceClient) loadSymbols(ctx context.Context) error {
	symbols, err := c.api.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения списка символов: %w", err)
	}

	listed := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s.Status != "TRADING" {
			continue
		}
		listed[s.BaseAsset+s.QuoteAsset] = struct{}{}
	}
	c.listed = listed
	c.listedAt = c.now()
	return nil
}

// toBinanceSymbol переводит "BTC/USDT" в "BTCUSDT"
func toBinanceSymbol(pair string) (string, error) {
	base, quote, err := SplitPair(pair)
	if err != nil {
		return "", err
	}
	return base + quote, nil
}

func convertKlines(pair, interval string, klines []*binance.Kline) ([]*models.Candle, error) {
	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		candle := &models.Candle{
			Symbol:    pair,
			Interval:  interval,
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		}

		fields := []struct {
			raw string
			dst *float64
		}{
			{k.Open, &candle.Open},
			{k.High, &candle.High},
			{k.Low, &candle.Low},
			{k.Close, &candle.Close},
			{k.Volume, &candle.Volume},
		}
		for _, f := range fields {
			d, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, fmt.Errorf("ошибка разбора свечи %s: %w", pair, err)
			}
			*f.dst = d.InexactFloat64()
		}

		candles = append(candles, candle)
	}
	return candles, nil
}

// spotService реализует spotAPI поверх go-binance
type spotService struct {
	client *binance.Client
}

func (s *spotService) Klines(ctx context.Context, symbol, interval string, limit int, start int64) ([]*binance.Kline, error) {
	svc := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if start > 0 {
		svc = svc.StartTime(start)
	}
	return svc.Do(ctx)
}

func (s *spotService) Symbols(ctx context.Context) ([]binance.Symbol, error) {
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	return info.Symbols, nil
}
