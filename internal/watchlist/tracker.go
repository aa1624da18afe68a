package watchlist

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/logger"
	"github.com/skalibog/hypetrader/pkg/models"
)

// Tracker поддерживает ограниченный по размеру и времени жизни список инструментов,
// упомянутых в тексте
type Tracker struct {
	log    *zap.Logger
	venues []Venue
	ttl    time.Duration
	max    int
	now    func() time.Time
	items  map[models.Key]models.WatchItem
}

// NewTracker создает список наблюдения. now может быть nil, тогда используется time.Now.
func NewTracker(cfg config.WatchlistConfig, venues []Venue, log *zap.Logger, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	if venues == nil {
		venues = DefaultVenues
	}
	return &Tracker{
		log:    logger.OrNop(log).Named("watchlist"),
		venues: venues,
		ttl:    cfg.TTL(),
		max:    cfg.MaxPairs,
		now:    now,
		items:  make(map[models.Key]models.WatchItem),
	}
}

// Ingest обрабатывает один текст как отдельный пакет и возвращает найденные ключи
func (t *Tracker) Ingest(text string) []models.Key {
	keys := t.upsert(text, t.now())
	t.enforceCapacity()
	return keys
}

// Refresh выполняет один цикл опроса: удаляет устаревшие элементы, добавляет
// упоминания из пакета текстов и только затем применяет ограничение размера
func (t *Tracker) Refresh(texts []string) []models.WatchItem {
	now := t.now()
	pruned := t.prune(now)

	var found int
	for _, text := range texts {
		found += len(t.upsert(text, now))
	}
	evicted := t.enforceCapacity()

	t.log.Debug("Список наблюдения обновлен",
		zap.Int("texts", len(texts)),
		zap.Int("mentions", found),
		zap.Int("expired", pruned),
		zap.Int("evicted", evicted),
		zap.Int("size", len(t.items)))

	return t.Snapshot()
}

// Snapshot возвращает элементы от самого свежего к самому старому
func (t *Tracker) Snapshot() []models.WatchItem {
	items := make([]models.WatchItem, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].LastSeen.Equal(items[j].LastSeen) {
			return items[i].LastSeen.After(items[j].LastSeen)
		}
		return items[i].Key().Less(items[j].Key())
	})
	return items
}

func (t *Tracker) upsert(text string, now time.Time) []models.Key {
	keys := Extract(t.venues, text)
	for _, k := range keys {
		t.items[k] = models.WatchItem{Venue: k.Venue, Pair: k.Instrument, LastSeen: now}
	}
	return keys
}

// prune удаляет элементы старше ttl независимо от размера списка
func (t *Tracker) prune(now time.Time) int {
	var removed int
	for k, item := range t.items {
		if now.Sub(item.LastSeen) > t.ttl {
			delete(t.items, k)
			removed++
		}
	}
	return removed
}

// enforceCapacity оставляет max самых свежих элементов
func (t *Tracker) enforceCapacity() int {
	if len(t.items) <= t.max {
		return 0
	}
	items := t.Snapshot()
	for _, item := range items[t.max:] {
		delete(t.items, item.Key())
	}
	return len(items) - t.max
}
