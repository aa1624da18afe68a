package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

// ErrInvalid возвращается при ошибке валидации конфигурации
var ErrInvalid = errors.New("некорректная конфигурация")

// Timeframe таймфрейм свечей
type Timeframe string

// Timeframes перечень поддерживаемых таймфреймов
var Timeframes = []Timeframe{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d"}

// Duration возвращает длительность одной свечи
func (t Timeframe) Duration() time.Duration {
	switch t {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

// Config представляет полную конфигурацию приложения
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Binance   BinanceConfig   `yaml:"binance"`
	Feed      FeedConfig      `yaml:"feed"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	Signal    SignalConfig    `yaml:"signal"`
	Risk      RiskConfig      `yaml:"risk"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Live      LiveConfig      `yaml:"live"`
	Storage   StorageConfig   `yaml:"storage"`
	UI        UIConfig        `yaml:"ui"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	File     string `yaml:"file"`
	Truncate bool   `yaml:"truncate"`

	// Quiet отключает вывод в консоль, например когда экран занят интерфейсом
	Quiet bool `yaml:"quiet"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// FeedConfig настройки текстового источника упоминаний (Reddit)
type FeedConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAgent    string `yaml:"user_agent"`
	Subreddit    string `yaml:"subreddit"`
	Limit        int    `yaml:"limit" validate:"gte=1,lte=100"`
	Comments     bool   `yaml:"comments"`
}

// Available сообщает, достаточно ли настроек для запуска источника
func (f FeedConfig) Available() bool {
	return f.ClientID != "" && f.ClientSecret != "" && f.UserAgent != "" && f.Subreddit != ""
}

// WatchlistConfig настройки списка наблюдения
type WatchlistConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" validate:"gte=1,lte=1440"`
	MaxPairs   int `yaml:"max_pairs" validate:"gte=1,lte=200"`
}

// TTL возвращает время жизни элемента списка наблюдения
func (w WatchlistConfig) TTL() time.Duration {
	return time.Duration(w.TTLMinutes) * time.Minute
}

// SignalConfig настройки генератора сигналов
type SignalConfig struct {
	VolWindow     int     `yaml:"vol_window" validate:"gte=2,lte=500"`
	MAWindow      int     `yaml:"ma_window" validate:"gte=2,lte=500"`
	ZThreshold    float64 `yaml:"z_threshold" validate:"gt=0"`
	RangeWindow   int     `yaml:"range_window" validate:"gte=1,lte=500"`
	RangeFallback float64 `yaml:"range_fallback" validate:"gt=0,lt=1"`
}

// Warmup возвращает минимальное число свечей для расчета сигнала
func (s SignalConfig) Warmup() int {
	return max(2*s.VolWindow, s.MAWindow) + 2
}

// RiskConfig настройки управления риском
type RiskConfig struct {
	RiskFraction float64 `yaml:"risk_fraction" validate:"gt=0,lte=0.2"`
	KStop        float64 `yaml:"k_stop" validate:"gt=0"`
	KTake        float64 `yaml:"k_take" validate:"gt=0"`
	MinStopFrac  float64 `yaml:"min_stop_fraction" validate:"gt=0,lt=1"`
}

// BacktestConfig настройки исторического прогона
type BacktestConfig struct {
	Exchange    string    `yaml:"exchange" validate:"required"`
	Symbol      string    `yaml:"symbol" validate:"required"`
	Timeframe   Timeframe `yaml:"timeframe" validate:"timeframe"`
	Days        int       `yaml:"days" validate:"gte=1,lte=365"`
	WarmupBars  int       `yaml:"warmup_bars" validate:"gte=1"`
	InitialCash float64   `yaml:"initial_cash" validate:"gt=0"`
	Source      string    `yaml:"source" validate:"oneof=exchange influx"`
	Export      string    `yaml:"export"`
}

// LiveConfig настройки бумажной торговли
type LiveConfig struct {
	PollSeconds  int       `yaml:"poll_seconds" validate:"gte=5,lte=3600"`
	Timeframe    Timeframe `yaml:"timeframe" validate:"timeframe"`
	CandleLimit  int       `yaml:"candle_limit" validate:"gte=10,lte=1000"`
	InitialCash  float64   `yaml:"initial_cash" validate:"gt=0"`
	FetchTimeout int       `yaml:"fetch_timeout_seconds" validate:"gte=1,lte=120"`
}

// PollInterval возвращает интервал опроса
func (l LiveConfig) PollInterval() time.Duration {
	return time.Duration(l.PollSeconds) * time.Second
}

// Timeout возвращает ограничение времени на один запрос свечей
func (l LiveConfig) Timeout() time.Duration {
	return time.Duration(l.FetchTimeout) * time.Second
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Influx   InfluxConfig   `yaml:"influx"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// InfluxConfig настройки InfluxDB
type InfluxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url" validate:"required_if=Enabled true"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization" validate:"required_if=Enabled true"`
	Bucket       string `yaml:"bucket" validate:"required_if=Enabled true"`
}

// PostgresConfig настройки журнала сделок в PostgreSQL
type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" validate:"required_if=Enabled true"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms" validate:"gte=50,lte=10000"`
	MaxLogLines int  `yaml:"max_log_lines" validate:"gte=1,lte=1000"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Feed: FeedConfig{
			UserAgent: "hypetrader/0.1",
			Subreddit: "CryptoCurrency",
			Limit:     50,
		},
		Watchlist: WatchlistConfig{TTLMinutes: 120, MaxPairs: 20},
		Signal: SignalConfig{
			VolWindow:     20,
			MAWindow:      20,
			ZThreshold:    1.0,
			RangeWindow:   14,
			RangeFallback: 0.01,
		},
		Risk: RiskConfig{
			RiskFraction: 0.01,
			KStop:        1.5,
			KTake:        3.0,
			MinStopFrac:  0.002,
		},
		Backtest: BacktestConfig{
			Exchange:    "binance",
			Symbol:      "BTC/USDT",
			Timeframe:   "1h",
			Days:        30,
			WarmupBars:  60,
			InitialCash: 10000,
			Source:      "exchange",
			Export:      "trades.csv",
		},
		Live: LiveConfig{
			PollSeconds:  60,
			Timeframe:    "5m",
			CandleLimit:  200,
			InitialCash:  10000,
			FetchTimeout: 15,
		},
		UI: UIConfig{RefreshRate: 500, MaxLogLines: 200},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию.
// Пустой путь означает конфигурацию по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	// Секреты можно задавать ссылками на переменные окружения: ${REDDIT_SECRET}
	cfg.Binance.APIKey = os.ExpandEnv(cfg.Binance.APIKey)
	cfg.Binance.APISecret = os.ExpandEnv(cfg.Binance.APISecret)
	cfg.Feed.ClientID = os.ExpandEnv(cfg.Feed.ClientID)
	cfg.Feed.ClientSecret = os.ExpandEnv(cfg.Feed.ClientSecret)
	cfg.Storage.Influx.Token = os.ExpandEnv(cfg.Storage.Influx.Token)
	cfg.Storage.Postgres.DSN = os.ExpandEnv(cfg.Storage.Postgres.DSN)

	return cfg, nil
}

// Validate проверяет общие параметры конфигурации
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Backtest.WarmupBars < c.Signal.Warmup() {
		return fmt.Errorf("%w: warmup_bars=%d меньше требуемой истории сигнала %d",
			ErrInvalid, c.Backtest.WarmupBars, c.Signal.Warmup())
	}
	return nil
}

// ValidateLive дополнительно проверяет параметры режима live
func (c Config) ValidateLive() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.Feed.Available() {
		return fmt.Errorf("%w: для режима live нужны client_id, client_secret, user_agent и subreddit источника", ErrInvalid)
	}
	if c.Live.CandleLimit < c.Signal.Warmup() {
		return fmt.Errorf("%w: candle_limit=%d меньше требуемой истории сигнала %d",
			ErrInvalid, c.Live.CandleLimit, c.Signal.Warmup())
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
		return Timeframe(fl.Field().String()).Duration() > 0
	})
	return v
}
