package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol models.Symbol, d int, close float64, volume int64) models.DailyBar {
	return models.DailyBar{
		Date:   day(d),
		Open:   close - 1,
		High:   close + 1,
		Low:    close - 2,
		Close:  close,
		Volume: volume,
	}
}

func TestTryGetRangeMissesUntilEveryDayResolved(t *testing.T) {
	c := NewCache()

	_, ok := c.TryGetRange("AAPL", day(1), day(3))
	assert.False(t, ok, "empty cache must miss")

	// Only days 1 and 2 resolved; day 3 missing.
	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 10, 100)}, day(1), day(2))
	_, ok = c.TryGetRange("AAPL", day(1), day(3))
	assert.False(t, ok, "one unresolved day must fail the whole range")

	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 3, 11, 200)}, day(3), day(3))
	bars, ok := c.TryGetRange("AAPL", day(1), day(3))
	require.True(t, ok)
	// Day 2 was written as a no-trading marker: resolved but omitted.
	require.Len(t, bars, 2)
	assert.Equal(t, 10.0, bars[0].Close)
	assert.Equal(t, 11.0, bars[1].Close)
}

func TestNoTradingMarkersSatisfyRangeQueries(t *testing.T) {
	c := NewCache()
	c.PutRange("MSFT", nil, day(1), day(5))

	bars, ok := c.TryGetRange("MSFT", day(1), day(5))
	require.True(t, ok, "marker-only range still counts as resolved")
	assert.Empty(t, bars)
}

func TestPutRangeIsIdempotent(t *testing.T) {
	c := NewCache()
	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 10, 100)}, day(1), day(1))
	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 10, 100)}, day(1), day(1))

	bars, ok := c.TryGetRange("AAPL", day(1), day(1))
	require.True(t, ok)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.0, bars[0].Close)
}

func TestRangesAreIsolatedPerSymbol(t *testing.T) {
	c := NewCache()
	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 10, 100)}, day(1), day(1))

	_, ok := c.TryGetRange("MSFT", day(1), day(1))
	assert.False(t, ok, "one symbol's slots must not satisfy another's")
}

func TestValidSymbolsRoundTrip(t *testing.T) {
	c := NewCache()

	_, ok := c.TryGetValidSymbols()
	assert.False(t, ok, "universe starts unpopulated")

	c.CacheValidSymbols([]models.Symbol{"AAPL", "MSFT"})
	symbols, ok := c.TryGetValidSymbols()
	require.True(t, ok)
	assert.Equal(t, []models.Symbol{"AAPL", "MSFT"}, symbols)

	// The cached copy must not alias the caller's slice.
	symbols[0] = "XXXX"
	fresh, _ := c.TryGetValidSymbols()
	assert.Equal(t, models.Symbol("AAPL"), fresh[0])
}

func TestMostActiveSymbolsForDay(t *testing.T) {
	c := NewCache()
	c.CacheValidSymbols([]models.Symbol{"AAPL", "MSFT", "GOOG", "TSLA"})

	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 10, 500)}, day(1), day(1))
	c.PutRange("MSFT", []models.DailyBar{bar("MSFT", 1, 20, 900)}, day(1), day(1))
	c.PutRange("GOOG", []models.DailyBar{bar("GOOG", 1, 30, 500)}, day(1), day(1))
	// TSLA has a no-trading marker for the day: excluded.
	c.PutRange("TSLA", nil, day(1), day(1))

	got := c.MostActiveSymbolsForDay(day(1))
	// Descending volume, symbol name breaking the AAPL/GOOG tie.
	assert.Equal(t, []models.Symbol{"MSFT", "AAPL", "GOOG"}, got)

	assert.Empty(t, c.MostActiveSymbolsForDay(day(2)), "unfetched day has no actives")
}

func TestLastPriceAsOfWalksBackOverMarkers(t *testing.T) {
	c := NewCache()
	c.PutRange("AAPL", []models.DailyBar{bar("AAPL", 1, 42, 100)}, day(1), day(4))

	// Days 2-4 are markers; the walk lands on day 1's close.
	price, ok := c.LastPriceAsOf("AAPL", day(4))
	require.True(t, ok)
	assert.Equal(t, 42.0, price)

	// Walking off cached history is a miss, not an error.
	_, ok = c.LastPriceAsOf("MSFT", day(4))
	assert.False(t, ok)
}
