package live

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/analysis/volmom"
	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/internal/feed"
	"github.com/skalibog/hypetrader/internal/ledger"
	"github.com/skalibog/hypetrader/internal/risk"
	"github.com/skalibog/hypetrader/internal/storage"
	"github.com/skalibog/hypetrader/internal/watchlist"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// MarketData рыночные данные по биржам (exchange.Registry)
type MarketData interface {
	FetchCandles(ctx context.Context, venue, pair string, timeframe config.Timeframe, limit int) ([]*models.Candle, error)
	ResolveInstrument(ctx context.Context, venue, pair string) (string, error)
}

// Deps зависимости цикла
type Deps struct {
	Feed     feed.Feed
	Tracker  *watchlist.Tracker
	Market   MarketData
	Recorder storage.Recorder
	Reporter Reporter
	Clock    Clock
	Log      *zap.Logger
}

// Loop цикл бумажной торговли: опрос упоминаний, свечей и применение сигналов
type Loop struct {
	log      *zap.Logger
	cfg      config.LiveConfig
	signal   config.SignalConfig
	feed     feed.Feed
	tracker  *watchlist.Tracker
	market   MarketData
	recorder storage.Recorder
	reporter Reporter
	clock    Clock
	engine   *volmom.Engine
	sizer    *risk.Sizer
	ledgers  map[string]*ledger.Ledger
	cycle    int
}

// NewLoop создает цикл. Портфель каждой биржи создается при первом упоминании.
func NewLoop(cfg config.Config, deps Deps) *Loop {
	if deps.Recorder == nil {
		deps.Recorder = storage.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &Loop{
		log:      logger.OrNop(deps.Log).Named("live"),
		cfg:      cfg.Live,
		signal:   cfg.Signal,
		feed:     deps.Feed,
		tracker:  deps.Tracker,
		market:   deps.Market,
		recorder: deps.Recorder,
		reporter: deps.Reporter,
		clock:    deps.Clock,
		engine:   volmom.NewEngine(cfg.Signal),
		sizer:    risk.NewSizer(cfg.Risk),
		ledgers:  make(map[string]*ledger.Ledger),
	}
}

// Run повторяет Step до отмены ctx. Начатый цикл всегда доводится до конца,
// отмена проверяется только между циклами.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("Цикл запущен",
		zap.Duration("interval", l.cfg.PollInterval()),
		zap.String("timeframe", string(l.cfg.Timeframe)))

	for ctx.Err() == nil {
		l.Step(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
		case <-l.clock.After(l.cfg.PollInterval()):
		}
	}

	l.log.Info("Цикл остановлен", zap.Int("cycles", l.cycle))
	return nil
}

// Step выполняет один цикл опроса
func (l *Loop) Step(ctx context.Context) Report {
	l.cycle++
	report := Report{Cycle: l.cycle, At: l.clock.Now()}

	texts, err := l.feed.Fetch(ctx)
	if err != nil {
		// Устаревшие элементы все равно удаляются
		l.log.Warn("Ошибка опроса текстового источника", zap.Error(err))
	}
	report.Watchlist = l.tracker.Refresh(texts)

	// Разные пары из списка могут указывать на один листинг после подбора
	// котируемого актива: каждый ключ портфеля оценивается не больше раза за цикл
	evaluated := make(map[models.Key]struct{})

	venues, pairs := l.plan(report.Watchlist)
	for _, venue := range venues {
		lg := l.ledgerFor(venue)
		for _, pair := range pairs[venue] {
			if !l.evaluate(ctx, lg, venue, pair, evaluated, &report) {
				report.Skipped++
			}
		}
	}

	report.Venues, report.Equity = l.summarize()
	l.persistEquity(ctx, report.At)

	l.log.Info("Цикл завершен",
		zap.Int("cycle", report.Cycle),
		zap.Int("watchlist", len(report.Watchlist)),
		zap.Int("skipped", report.Skipped),
		zap.Int("closed_trades", len(report.Trades)),
		zap.Float64("equity", report.Equity))

	if l.reporter != nil {
		l.reporter.Report(report)
	}
	return report
}

// Equity суммарный капитал всех портфелей по последним ценам
func (l *Loop) Equity() float64 {
	_, total := l.summarize()
	return total
}

// Portfolio возвращает портфель биржи, если он создан
func (l *Loop) Portfolio(venue string) (*ledger.Portfolio, bool) {
	lg, ok := l.ledgers[venue]
	if !ok {
		return nil, false
	}
	return lg.Portfolio(), true
}

// plan группирует инструменты по биржам в порядке списка наблюдения.
// Открытые позиции, выпавшие из списка, добавляются в конец, чтобы не потерять выход.
func (l *Loop) plan(items []models.WatchItem) ([]string, map[string][]string) {
	var venues []string
	pairs := make(map[string][]string)
	seen := make(map[models.Key]struct{})

	add := func(k models.Key) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		if _, ok := pairs[k.Venue]; !ok {
			venues = append(venues, k.Venue)
		}
		pairs[k.Venue] = append(pairs[k.Venue], k.Instrument)
	}

	for _, item := range items {
		add(item.Key())
	}
	for _, venue := range l.venueNames() {
		for _, k := range l.ledgers[venue].Portfolio().OpenKeys() {
			add(k)
		}
	}

	return venues, pairs
}

// evaluate обрабатывает один инструмент. Ошибки данных приводят к пропуску
// инструмента в текущем цикле.
func (l *Loop) evaluate(ctx context.Context, lg *ledger.Ledger, venue, pair string, evaluated map[models.Key]struct{}, report *Report) bool {
	log := l.log.With(zap.String("venue", venue), zap.String("pair", pair))

	resolved, err := l.market.ResolveInstrument(ctx, venue, pair)
	if err != nil {
		log.Warn("Инструмент пропущен: не удалось найти листинг", zap.Error(err))
		return false
	}

	key := models.Key{Venue: venue, Instrument: resolved}
	if _, ok := evaluated[key]; ok {
		log.Debug("Листинг уже оценен в этом цикле", zap.String("resolved", resolved))
		return true
	}
	evaluated[key] = struct{}{}

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout())
	candles, err := l.market.FetchCandles(fetchCtx, venue, resolved, l.cfg.Timeframe, l.cfg.CandleLimit)
	cancel()
	if err != nil {
		log.Warn("Инструмент пропущен: ошибка получения свечей", zap.Error(err))
		return false
	}
	if len(candles) == 0 {
		log.Warn("Инструмент пропущен: пустой ответ биржи")
		return false
	}

	last := candles[len(candles)-1]
	now := l.clock.Now()

	sig := l.engine.Generate(candles)
	proxy := volmom.RangeProxy(candles, len(candles)-1, l.signal.RangeWindow, l.signal.RangeFallback)

	result := models.SignalResult{
		Key:       key,
		Timestamp: now,
		Signal:    sig,
		Price:     last.Close,
		Proxy:     proxy,
	}
	if snap, ok := l.engine.Indicators(candles); ok {
		result.Volatility = snap.Volatility
		result.VolZ = snap.VolZ
		result.Momentum = snap.Momentum
		result.MovingAvg = snap.MovingAvg
	}
	report.Signals = append(report.Signals, result)

	// Цена исполнения в live: последняя цена закрытия
	if trade := lg.Evaluate(key, last.Close, now, sig, proxy); trade != nil {
		report.Trades = append(report.Trades, *trade)
		if err := l.recorder.SaveTrade(ctx, *trade); err != nil {
			log.Warn("Не удалось сохранить сделку", zap.Error(err))
		}
	}

	if err := l.recorder.SaveCandles(ctx, venue, candles[len(candles)-1:]); err != nil {
		log.Debug("Не удалось сохранить свечу", zap.Error(err))
	}
	if err := l.recorder.SaveSignal(ctx, &result); err != nil {
		log.Debug("Не удалось сохранить сигнал", zap.Error(err))
	}

	return true
}

// summarize собирает состояние портфелей бирж
func (l *Loop) summarize() ([]VenueReport, float64) {
	var total float64
	var reports []VenueReport

	for _, venue := range l.venueNames() {
		p := l.ledgers[venue].Portfolio()
		vr := VenueReport{Venue: venue, Cash: p.Cash(), Equity: p.Equity()}
		for _, k := range p.OpenKeys() {
			pos, _ := p.Position(k)
			mark, _ := p.LastMark(k)
			vr.Positions = append(vr.Positions, PositionView{Key: k, Position: pos, Mark: mark})
		}
		reports = append(reports, vr)
		total += vr.Equity
	}

	return reports, total
}

func (l *Loop) persistEquity(ctx context.Context, at time.Time) {
	for _, venue := range l.venueNames() {
		snap := l.ledgers[venue].Portfolio().Snapshot(at)
		if err := l.recorder.SaveEquity(ctx, venue, snap); err != nil {
			l.log.Debug("Не удалось сохранить капитал", zap.String("venue", venue), zap.Error(err))
		}
	}
}

func (l *Loop) ledgerFor(venue string) *ledger.Ledger {
	lg, ok := l.ledgers[venue]
	if !ok {
		lg = ledger.New(ledger.NewPortfolio(l.cfg.InitialCash), l.sizer, l.log)
		l.ledgers[venue] = lg
	}
	return lg
}

func (l *Loop) venueNames() []string {
	names := make([]string, 0, len(l.ledgers))
	for v := range l.ledgers {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}
