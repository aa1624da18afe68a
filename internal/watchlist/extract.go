package watchlist

import (
	"regexp"
	"strings"

	"github.com/skalibog/hypetrader/pkg/models"
)

// Venue описывает биржу: каноническое имя, псевдонимы и котируемый актив по умолчанию
type Venue struct {
	Name         string
	Aliases      []string
	DefaultQuote string
}

// DefaultVenues таблица распознаваемых бирж. Порядок важен: побеждает первое совпадение.
var DefaultVenues = []Venue{
	{Name: "binance", Aliases: []string{"binance"}, DefaultQuote: "USDT"},
	{Name: "coinbase", Aliases: []string{"coinbase", "gdax"}, DefaultQuote: "USD"},
	{Name: "kraken", Aliases: []string{"kraken"}, DefaultQuote: "USD"},
	{Name: "kucoin", Aliases: []string{"kucoin"}, DefaultQuote: "USDT"},
	{Name: "bybit", Aliases: []string{"bybit"}, DefaultQuote: "USDT"},
	{Name: "okx", Aliases: []string{"okx", "okex"}, DefaultQuote: "USDT"},
}

// QuoteAssets котируемые активы, распознаваемые в тексте
var QuoteAssets = []string{"USD", "USDT", "USDC"}

var symbolPattern = regexp.MustCompile(`\b([A-Z]{2,6})(?:/(USDT|USDC|USD))?\b`)

// MatchVenue возвращает первую биржу, псевдоним которой встречается в тексте
func MatchVenue(venues []Venue, text string) (Venue, bool) {
	lower := strings.ToLower(text)
	for _, v := range venues {
		for _, alias := range v.Aliases {
			if strings.Contains(lower, alias) {
				return v, true
			}
		}
	}
	return Venue{}, false
}

// ExtractPairs находит торговые пары в тексте. Одиночный базовый актив
// дополняется котируемым активом биржи, полная пара сохраняется как есть.
func ExtractPairs(text, defaultQuote string) []string {
	var pairs []string
	seen := make(map[string]struct{})

	for _, m := range symbolPattern.FindAllStringSubmatch(text, -1) {
		base, quote := m[1], m[2]
		if isQuoteAsset(base) {
			// "USDT" сам по себе не инструмент
			continue
		}
		if quote == "" {
			quote = defaultQuote
		}
		pair := base + "/" + quote
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}

	return pairs
}

// Extract возвращает ключи (биржа, пара), упомянутые в тексте
func Extract(venues []Venue, text string) []models.Key {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	venue, ok := MatchVenue(venues, text)
	if !ok {
		return nil
	}

	pairs := ExtractPairs(text, venue.DefaultQuote)
	keys := make([]models.Key, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, models.Key{Venue: venue.Name, Instrument: p})
	}
	return keys
}

func isQuoteAsset(s string) bool {
	for _, q := range QuoteAssets {
		if s == q {
			return true
		}
	}
	return false
}
