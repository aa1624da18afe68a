package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/exchange"
	"github.com/skalibog/hypetrader/internal/storage"
)

const usage = `Использование:
  hypetrader backtest [флаги]   исторический прогон стратегии
  hypetrader live [флаги]       бумажная торговля по упоминаниям

Флаги подкоманды: hypetrader <команда> -h`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "backtest":
		err = runBacktest(os.Args[2:])
	case "live":
		err = runLive(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "неизвестная команда %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig загружает конфигурацию и применяет явно заданные флаги
func loadConfig(fs *flag.FlagSet, path string, overrides map[string]func(cfg *config.Config)) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(&cfg)
		}
	})
	return cfg, nil
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newRegistry регистрирует поддерживаемые биржи
func newRegistry(cfg config.Config) *exchange.Registry {
	registry := exchange.NewRegistry()
	registry.Register("binance", exchange.NewBinanceClient(cfg.Binance))
	return registry
}

// openRecorders подключает включенные хранилища. Ошибка подключения не
// останавливает работу, данные просто не сохраняются.
func openRecorders(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) storage.Recorder {
	var recorders storage.Multi

	if cfg.Influx.Enabled {
		influx, err := storage.NewInfluxDBStorage(ctx, cfg.Influx)
		if err != nil {
			log.Warn("InfluxDB недоступна, запись отключена", zap.Error(err))
		} else {
			recorders = append(recorders, influx)
		}
	}

	if cfg.Postgres.Enabled {
		journal, err := storage.NewPostgresJournal(cfg.Postgres)
		if err != nil {
			log.Warn("PostgreSQL недоступен, журнал сделок отключен", zap.Error(err))
		} else {
			recorders = append(recorders, journal)
		}
	}

	if len(recorders) == 0 {
		return storage.Nop{}
	}
	return recorders
}
