package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

// InfluxDBStorage реализует Recorder и CandleSource с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(ctx context.Context, cfg config.InfluxConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveCandles сохраняет множество свечей
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, venue string, candles []*models.Candle) error {
	points := make([]*write.Point, 0, len(candles))
	for _, candle := range candles {
		points = append(points, candlePoint(venue, candle))
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// GetCandles получает исторические свечи в порядке возрастания времени
func (s *InfluxDBStorage) GetCandles(ctx context.Context, venue, symbol, interval string, limit int) ([]*models.Candle, error) {
	tf := config.Timeframe(interval)
	lookback := time.Duration(limit+1) * tf.Duration()
	if lookback <= 0 {
		return nil, fmt.Errorf("неизвестный интервал %q", interval)
	}

	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -%ds)
			|> filter(fn: (r) => r._measurement == "candles")
			|> filter(fn: (r) => r.venue == "%s")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, int64(lookback.Seconds()), venue, symbol, interval, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	var candles []*models.Candle
	for result.Next() {
		record := result.Record()

		timestamp := record.Time().UTC()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		close, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: timestamp.Add(tf.Duration()),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// Запрос отдает свечи от новых к старым
	slices.Reverse(candles)
	return candles, nil
}

// SaveSignal сохраняет сигнал
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.SignalResult) error {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"venue":  signal.Key.Venue,
			"symbol": signal.Key.Instrument,
		},
		map[string]interface{}{
			"signal":     signal.Signal.String(),
			"volatility": signal.Volatility,
			"vol_z":      signal.VolZ,
			"momentum":   signal.Momentum,
			"moving_avg": signal.MovingAvg,
			"price":      signal.Price,
			"proxy":      signal.Proxy,
		},
		signal.Timestamp,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи сигнала: %w", err)
	}
	return nil
}

// SaveTrade сохраняет закрытую сделку
func (s *InfluxDBStorage) SaveTrade(ctx context.Context, trade models.Trade) error {
	point := influxdb2.NewPoint(
		"trades",
		map[string]string{
			"venue":  trade.Venue,
			"symbol": trade.Instrument,
			"side":   string(trade.Side),
		},
		map[string]interface{}{
			"id":        trade.ID,
			"quantity":  trade.Quantity,
			"entry":     trade.Entry,
			"exit":      trade.Exit,
			"pnl":       trade.PnL,
			"opened_at": trade.OpenedAt.UnixMilli(),
		},
		trade.ClosedAt,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи сделки: %w", err)
	}
	return nil
}

// SaveEquity сохраняет оценку капитала портфеля биржи
func (s *InfluxDBStorage) SaveEquity(ctx context.Context, venue string, snapshot models.EquitySnapshot) error {
	point := influxdb2.NewPoint(
		"equity",
		map[string]string{
			"venue": venue,
		},
		map[string]interface{}{
			"cash":           snapshot.Cash,
			"equity":         snapshot.Equity,
			"open_positions": snapshot.OpenPositions,
		},
		snapshot.Timestamp,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("ошибка записи капитала: %w", err)
	}
	return nil
}

func candlePoint(venue string, candle *models.Candle) *write.Point {
	return influxdb2.NewPoint(
		"candles",
		map[string]string{
			"venue":    venue,
			"symbol":   candle.Symbol,
			"interval": candle.Interval,
		},
		map[string]interface{}{
			"open":   candle.Open,
			"high":   candle.High,
			"low":    candle.Low,
			"close":  candle.Close,
			"volume": candle.Volume,
		},
		candle.OpenTime,
	)
}
