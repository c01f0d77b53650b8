package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-trader/internal/marketdata"
	"stock-trader/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func putBar(c *marketdata.Cache, symbol models.Symbol, d int, close float64, volume int64) {
	c.PutRange(symbol, []models.DailyBar{{
		Date: day(d), Open: close, High: close, Low: close, Close: close, Volume: volume,
	}}, day(d), day(d))
}

func TestGetIntentsBuysTopVolumeSymbols(t *testing.T) {
	cache := marketdata.NewCache()
	cache.CacheValidSymbols([]models.Symbol{"AAPL", "MSFT", "GOOG"})
	putBar(cache, "AAPL", 3, 10, 300)
	putBar(cache, "MSFT", 3, 20, 900)
	putBar(cache, "GOOG", 3, 40, 600)

	s := NewMostActive(cache, MostActiveConfig{Top: 2, Allocation: 100})
	intents, err := s.GetIntents(context.Background(), day(3))
	require.NoError(t, err)
	require.Len(t, intents, 2)

	assert.Equal(t, models.Symbol("MSFT"), intents[0].Symbol)
	assert.Equal(t, models.Symbol("GOOG"), intents[1].Symbol)
	for _, intent := range intents {
		assert.Equal(t, models.OrderTypeMarketBuy, intent.OrderType)
		assert.NotEmpty(t, intent.ID)
	}
	// Sized at the last close: 100/20 and 100/40 shares.
	assert.InDelta(t, 5.0, intents[0].Quantity, 1e-9)
	assert.InDelta(t, 2.5, intents[1].Quantity, 1e-9)
}

func TestGetIntentsEmptyOnColdCache(t *testing.T) {
	s := NewMostActive(marketdata.NewCache(), MostActiveConfig{})
	intents, err := s.GetIntents(context.Background(), day(3))
	require.NoError(t, err)
	assert.Empty(t, intents, "no cached universe means no intents")
}

func TestConfigDefaultsApplied(t *testing.T) {
	cache := marketdata.NewCache()
	cache.CacheValidSymbols([]models.Symbol{"A", "B", "C", "D"})
	for i, symbol := range []models.Symbol{"A", "B", "C", "D"} {
		putBar(cache, symbol, 3, 10, int64(1000-i))
	}

	s := NewMostActive(cache, MostActiveConfig{})
	intents, err := s.GetIntents(context.Background(), day(3))
	require.NoError(t, err)
	// Zero config falls back to the default top of 3.
	assert.Len(t, intents, 3)
	// Allocation 1000 at a price of 10.
	assert.InDelta(t, 100.0, intents[0].Quantity, 1e-9)
}
