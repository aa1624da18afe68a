package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/backtest"
	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/export"
	"github.com/skalibog/hypetrader/internal/storage"
	"github.com/skalibog/hypetrader/internal/ui"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

func runBacktest(args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	configPath := fs.String("config", "", "путь к файлу конфигурации")
	venue := fs.String("exchange", "", "биржа")
	symbol := fs.String("symbol", "", "пара BASE/QUOTE")
	timeframe := fs.String("timeframe", "", "таймфрейм свечей")
	days := fs.Int("days", 0, "глубина истории в днях")
	out := fs.String("out", "", "файл выгрузки сделок (.csv или .json)")
	source := fs.String("source", "", "источник свечей: exchange или influx")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, *configPath, map[string]func(*config.Config){
		"exchange":  func(c *config.Config) { c.Backtest.Exchange = strings.ToLower(*venue) },
		"symbol":    func(c *config.Config) { c.Backtest.Symbol = strings.ToUpper(*symbol) },
		"timeframe": func(c *config.Config) { c.Backtest.Timeframe = config.Timeframe(*timeframe) },
		"days":      func(c *config.Config) { c.Backtest.Days = *days },
		"out":       func(c *config.Config) { c.Backtest.Export = *out },
		"source":    func(c *config.Config) { c.Backtest.Source = *source },
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Backtest.Export != "" {
		if _, err := export.FormatFor(cfg.Backtest.Export); err != nil {
			return err
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	bt := cfg.Backtest
	bars := int(time.Duration(bt.Days) * 24 * time.Hour / bt.Timeframe.Duration())

	log.Info("Загрузка истории",
		zap.String("exchange", bt.Exchange),
		zap.String("symbol", bt.Symbol),
		zap.String("timeframe", string(bt.Timeframe)),
		zap.Int("bars", bars),
		zap.String("source", bt.Source))

	key, candles, err := loadHistory(ctx, cfg, bars, log)
	if err != nil {
		return err
	}

	sim := backtest.NewSimulator(cfg.Signal, cfg.Risk, bt.WarmupBars, log)
	portfolio, err := sim.Run(key, candles, bt.InitialCash)
	if err != nil {
		return fmt.Errorf("бэктест прерван: %w", err)
	}

	trades := portfolio.Trades()
	fmt.Println(ui.RenderSummary(key, bt.Timeframe, len(candles), portfolio.Stats()))

	if cfg.Storage.Postgres.Enabled {
		journalTrades(ctx, cfg.Storage.Postgres, trades, log)
	}

	if bt.Export != "" {
		if err := export.WriteFile(bt.Export, trades); err != nil {
			return err
		}
		log.Info("Сделки выгружены", zap.String("path", bt.Export), zap.Int("trades", len(trades)))
	}

	return nil
}

// loadHistory загружает свечи с биржи или из InfluxDB
func loadHistory(ctx context.Context, cfg config.Config, bars int, log *zap.Logger) (models.Key, []*models.Candle, error) {
	bt := cfg.Backtest

	if bt.Source == "influx" {
		store, err := storage.NewInfluxDBStorage(ctx, cfg.Storage.Influx)
		if err != nil {
			return models.Key{}, nil, err
		}
		defer store.Close()

		return storedHistory(ctx, store, bt, bars)
	}

	registry := newRegistry(cfg)
	pair, err := registry.ResolveInstrument(ctx, bt.Exchange, bt.Symbol)
	if err != nil {
		return models.Key{}, nil, err
	}
	if pair != bt.Symbol {
		log.Info("Пара найдена с другим котируемым активом",
			zap.String("requested", bt.Symbol), zap.String("resolved", pair))
	}

	candles, err := registry.FetchCandles(ctx, bt.Exchange, pair, bt.Timeframe, bars)
	if err != nil {
		return models.Key{}, nil, err
	}

	// Загруженная история сохраняется для повторных прогонов с source=influx
	if cfg.Storage.Influx.Enabled {
		if store, err := storage.NewInfluxDBStorage(ctx, cfg.Storage.Influx); err != nil {
			log.Warn("InfluxDB недоступна, история не сохранена", zap.Error(err))
		} else {
			if err := store.SaveCandles(ctx, bt.Exchange, candles); err != nil {
				log.Warn("Ошибка сохранения истории", zap.Error(err))
			}
			store.Close()
		}
	}

	return models.Key{Venue: bt.Exchange, Instrument: pair}, candles, nil
}

// storedHistory читает ранее сохраненную историю инструмента
func storedHistory(ctx context.Context, src storage.CandleSource, bt config.BacktestConfig, bars int) (models.Key, []*models.Candle, error) {
	candles, err := src.GetCandles(ctx, bt.Exchange, bt.Symbol, string(bt.Timeframe), bars)
	if err != nil {
		return models.Key{}, nil, err
	}
	if len(candles) == 0 {
		return models.Key{}, nil, fmt.Errorf("в хранилище нет свечей %s %s %s", bt.Exchange, bt.Symbol, bt.Timeframe)
	}
	return models.Key{Venue: bt.Exchange, Instrument: bt.Symbol}, candles, nil
}

func journalTrades(ctx context.Context, cfg config.PostgresConfig, trades []models.Trade, log *zap.Logger) {
	journal, err := storage.NewPostgresJournal(cfg)
	if err != nil {
		log.Warn("PostgreSQL недоступен, журнал сделок не сохранен", zap.Error(err))
		return
	}
	defer journal.Close()

	for _, t := range trades {
		if err := journal.SaveTrade(ctx, t); err != nil {
			log.Warn("Ошибка записи сделки в журнал", zap.String("id", t.ID), zap.Error(err))
		}
	}
}
