package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

var (
	// ErrNotFound инструмент не торгуется на бирже ни с одним котируемым активом
	ErrNotFound = errors.New("инструмент не найден")
	// ErrVenueUnsupported для биржи нет клиента рыночных данных
	ErrVenueUnsupported = errors.New("биржа не поддерживается")
)

// FallbackQuotes котируемые активы, которые пробуются после запрошенного
var FallbackQuotes = []string{"USDT", "USDC", "USD", "BUSD", "BTC"}

// MarketData клиент рыночных данных одной биржи.
// Ограничение частоты запросов остается на стороне клиента.
type MarketData interface {
	FetchCandles(ctx context.Context, pair string, timeframe config.Timeframe, limit int) ([]*models.Candle, error)
	ResolveInstrument(ctx context.Context, pair string) (string, error)
}

// Registry сопоставляет биржам клиентов рыночных данных
type Registry struct {
	venues map[string]MarketData
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{venues: make(map[string]MarketData)}
}

// Register регистрирует клиента для биржи
func (r *Registry) Register(venue string, md MarketData) {
	r.venues[venue] = md
}

// Venue возвращает клиента биржи
func (r *Registry) Venue(venue string) (MarketData, error) {
	md, ok := r.venues[venue]
	if !ok {
		return nil, fmt.Errorf("%s: %w", venue, ErrVenueUnsupported)
	}
	return md, nil
}

// FetchCandles получает свечи инструмента на бирже
func (r *Registry) FetchCandles(ctx context.Context, venue, pair string, timeframe config.Timeframe, limit int) ([]*models.Candle, error) {
	md, err := r.Venue(venue)
	if err != nil {
		return nil, err
	}
	return md.FetchCandles(ctx, pair, timeframe, limit)
}

// ResolveInstrument находит листинг пары на бирже
func (r *Registry) ResolveInstrument(ctx context.Context, venue, pair string) (string, error) {
	md, err := r.Venue(venue)
	if err != nil {
		return "", err
	}
	return md.ResolveInstrument(ctx, pair)
}

// SplitPair разбирает "BASE/QUOTE"
func SplitPair(pair string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("некорректная пара %q, ожидается BASE/QUOTE", pair)
	}
	return base, quote, nil
}

// QuoteCandidates возвращает запрошенный котируемый актив и затем резервные без повторов
func QuoteCandidates(quote string) []string {
	out := []string{quote}
	for _, q := range FallbackQuotes {
		if q != quote {
			out = append(out, q)
		}
	}
	return out
}
