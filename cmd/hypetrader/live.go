package main

import (
	"context"
	"errors"
	"flag"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/feed"
	"github.com/skalibog/hypetrader/internal/live"
	"github.com/skalibog/hypetrader/internal/storage"
	"github.com/skalibog/hypetrader/internal/ui"
	"github.com/skalibog/hypetrader/internal/watchlist"
	"github.com/skalibog/hypetrader/pkg/logger"
)

// Файл логов панели, если в конфигурации не задан другой
const defaultLogFile = "app.json.log"

func runLive(args []string) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	configPath := fs.String("config", "", "путь к файлу конфигурации")
	subreddit := fs.String("subreddit", "", "сабреддит для поиска упоминаний")
	pollSeconds := fs.Int("poll-seconds", 0, "интервал опроса в секундах")
	timeframe := fs.String("timeframe", "", "таймфрейм свечей")
	ttl := fs.Int("watch-ttl-minutes", 0, "время жизни упоминания в минутах")
	maxPairs := fs.Int("max-pairs", 0, "максимальный размер списка наблюдения")
	withUI := fs.Bool("ui", false, "терминальная панель")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, *configPath, map[string]func(*config.Config){
		"subreddit":         func(c *config.Config) { c.Feed.Subreddit = *subreddit },
		"poll-seconds":      func(c *config.Config) { c.Live.PollSeconds = *pollSeconds },
		"timeframe":         func(c *config.Config) { c.Live.Timeframe = config.Timeframe(*timeframe) },
		"watch-ttl-minutes": func(c *config.Config) { c.Watchlist.TTLMinutes = *ttl },
		"max-pairs":         func(c *config.Config) { c.Watchlist.MaxPairs = *maxPairs },
		"ui":                func(c *config.Config) { c.UI.Enabled = *withUI },
	})
	if err != nil {
		return err
	}
	if cfg.UI.Enabled {
		// Экран занят панелью, логи идут только в файл
		cfg.Log.Quiet = true
		if cfg.Log.File == "" {
			cfg.Log.File = defaultLogFile
		}
	}
	if err := cfg.ValidateLive(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	source, err := feed.NewReddit(cfg.Feed, log)
	if err != nil {
		return err
	}

	recorder := openRecorders(ctx, cfg.Storage, log)
	defer recorder.Close()

	deps := liveDeps(cfg, source, recorder, live.SystemClock{}, log)

	log.Info("Запуск бумажной торговли",
		zap.String("subreddit", cfg.Feed.Subreddit),
		zap.Int("poll_seconds", cfg.Live.PollSeconds),
		zap.Int("max_pairs", cfg.Watchlist.MaxPairs))

	if !cfg.UI.Enabled {
		return live.NewLoop(cfg, deps).Run(ctx)
	}

	termUI := ui.NewTermUI(cfg.UI, cfg.Log.File, log)
	deps.Reporter = termUI
	loop := live.NewLoop(cfg, deps)

	// Выход из панели останавливает цикл
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	uiErr := termUI.Run(ctx)
	cancel()
	return errors.Join(uiErr, <-done)
}

// liveDeps собирает зависимости цикла. Возраст упоминаний и время циклов
// считаются по одним часам.
func liveDeps(cfg config.Config, source feed.Feed, recorder storage.Recorder, clock live.Clock, log *zap.Logger) live.Deps {
	return live.Deps{
		Feed:     source,
		Tracker:  watchlist.NewTracker(cfg.Watchlist, watchlist.DefaultVenues, log, clock.Now),
		Market:   newRegistry(cfg),
		Recorder: recorder,
		Clock:    clock,
		Log:      log,
	}
}
