// Package marketdata provides cached access to historical daily bars, both
// to accelerate live lookups and to supply backtests with frozen,
// reproducible price history.
package marketdata

import (
	"sort"
	"sync"
	"time"

	"stock-trader/internal/models"
)

type slotKey struct {
	symbol models.Symbol
	day    int64 // unix seconds of midnight UTC
}

func keyFor(symbol models.Symbol, day time.Time) slotKey {
	return slotKey{symbol: symbol, day: models.Day(day).Unix()}
}

// Cache is a thread-safe per-(symbol, day) store of daily bars plus the
// cached universe of tradable symbols.
//
// A slot holds either a bar or an explicit "no trading occurred" marker;
// both count as resolved. A missing slot means the day has not been fetched.
type Cache struct {
	mu      sync.RWMutex
	slots   map[slotKey]*models.DailyBar // nil value marks a no-trading day
	symbols []models.Symbol              // nil until CacheValidSymbols
}

// NewCache creates an empty market data cache.
func NewCache() *Cache {
	return &Cache{
		slots: make(map[slotKey]*models.DailyBar),
	}
}

// TryGetRange returns the cached bars for every day in [start, end].
//
// The contract is all-or-nothing: unless every day in the range has a
// resolved slot, it reports a miss. Partial ranges are useless to callers
// that need contiguous history, so a single missing day forces a full
// re-fetch of the whole range. No-trading days count as resolved but are
// omitted from the returned list.
func (c *Cache) TryGetRange(symbol models.Symbol, start, end time.Time) ([]models.DailyBar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var bars []models.DailyBar
	for day := models.Day(start); !day.After(models.Day(end)); day = day.AddDate(0, 0, 1) {
		bar, ok := c.slots[keyFor(symbol, day)]
		if !ok {
			return nil, false
		}
		if bar != nil {
			bars = append(bars, *bar)
		}
	}
	return bars, true
}

// PutRange writes one slot per day in [start, end]. Days without a bar in
// bars are written as explicit no-trading markers so future range queries
// see them as resolved. Re-writing a slot is idempotent.
func (c *Cache) PutRange(symbol models.Symbol, bars []models.DailyBar, start, end time.Time) {
	byDay := make(map[int64]models.DailyBar, len(bars))
	for _, bar := range bars {
		byDay[models.Day(bar.Date).Unix()] = bar
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for day := models.Day(start); !day.After(models.Day(end)); day = day.AddDate(0, 0, 1) {
		key := keyFor(symbol, day)
		if bar, ok := byDay[day.Unix()]; ok {
			b := bar
			c.slots[key] = &b
		} else {
			c.slots[key] = nil
		}
	}
}

// CacheValidSymbols caches the tradable universe. There is no expiry policy;
// re-populating is the only invalidation path.
func (c *Cache) CacheValidSymbols(symbols []models.Symbol) {
	copied := make([]models.Symbol, len(symbols))
	copy(copied, symbols)

	c.mu.Lock()
	c.symbols = copied
	c.mu.Unlock()
}

// TryGetValidSymbols returns the cached tradable universe, reporting a miss
// if it was never populated.
func (c *Cache) TryGetValidSymbols() ([]models.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.symbols == nil {
		return nil, false
	}
	out := make([]models.Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out, true
}

// MostActiveSymbolsForDay returns the symbols from the cached universe that
// have a cached bar for day, ordered by descending volume. Symbols without a
// resolved bar for the day are skipped; no venue call is made.
func (c *Cache) MostActiveSymbolsForDay(day time.Time) []models.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type active struct {
		symbol models.Symbol
		volume int64
	}
	var actives []active
	for _, symbol := range c.symbols {
		if bar := c.slots[keyFor(symbol, day)]; bar != nil {
			actives = append(actives, active{symbol: symbol, volume: bar.Volume})
		}
	}
	sort.Slice(actives, func(i, j int) bool {
		if actives[i].volume != actives[j].volume {
			return actives[i].volume > actives[j].volume
		}
		return actives[i].symbol < actives[j].symbol
	})

	symbols := make([]models.Symbol, len(actives))
	for i, a := range actives {
		symbols[i] = a.symbol
	}
	return symbols
}

// LastPriceAsOf walks backward day by day from day until it finds a cached
// bar, skipping no-trading markers, and returns that bar's close. It reports
// a miss as soon as it walks off cached history.
func (c *Cache) LastPriceAsOf(symbol models.Symbol, day time.Time) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for d := models.Day(day); ; d = d.AddDate(0, 0, -1) {
		bar, ok := c.slots[keyFor(symbol, d)]
		if !ok {
			return 0, false
		}
		if bar != nil {
			return bar.Close, true
		}
	}
}
