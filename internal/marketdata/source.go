package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/models"
	"stock-trader/internal/resilience"
)

// BarSource supplies daily bars to consumers such as the backtest ledger.
// GetBar returns nil without error when no trading occurred on day.
type BarSource interface {
	GetBar(ctx context.Context, symbol models.Symbol, day time.Time) (*models.DailyBar, error)
	GetBarRange(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, error)
}

// VenueBars is the slice of the venue client the source needs.
type VenueBars interface {
	GetDailyBars(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, error)
	GetTradableSymbols(ctx context.Context) ([]models.Symbol, error)
}

// Source serves bar lookups from the cache, fetching missing ranges from the
// venue through the call queue and freezing them in the cache afterwards.
type Source struct {
	venue VenueBars
	cache *Cache
	queue *resilience.CallQueue
	log   zerolog.Logger
}

// NewSource creates a cache-backed bar source.
func NewSource(venue VenueBars, cache *Cache, queue *resilience.CallQueue, log zerolog.Logger) *Source {
	return &Source{
		venue: venue,
		cache: cache,
		queue: queue,
		log:   log.With().Str("component", "marketdata").Logger(),
	}
}

// Cache exposes the underlying cache for read-side consumers (strategies,
// cache warm-up).
func (s *Source) Cache() *Cache {
	return s.cache
}

// GetBarRange returns the bars for [start, end], fetching the whole range
// from the venue on a cache miss.
func (s *Source) GetBarRange(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, error) {
	if bars, ok := s.cache.TryGetRange(symbol, start, end); ok {
		return bars, nil
	}

	bars, err := resilience.Do(ctx, s.queue, func() ([]models.DailyBar, error) {
		return s.venue.GetDailyBars(ctx, symbol, start, end)
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, "fetching bars for %s", symbol)
	}

	s.cache.PutRange(symbol, bars, start, end)
	s.log.Debug().
		Str("symbol", symbol.String()).
		Time("start", start).
		Time("end", end).
		Int("bars", len(bars)).
		Msg("bar range fetched and cached")
	return bars, nil
}

// GetBar returns the bar for a single day, or nil if no trading occurred.
func (s *Source) GetBar(ctx context.Context, symbol models.Symbol, day time.Time) (*models.DailyBar, error) {
	day = models.Day(day)
	bars, err := s.GetBarRange(ctx, symbol, day, day)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	bar := bars[0]
	return &bar, nil
}

// TradableSymbols returns the venue's tradable universe, cached after the
// first fetch.
func (s *Source) TradableSymbols(ctx context.Context) ([]models.Symbol, error) {
	if symbols, ok := s.cache.TryGetValidSymbols(); ok {
		return symbols, nil
	}

	symbols, err := resilience.Do(ctx, s.queue, func() ([]models.Symbol, error) {
		return s.venue.GetTradableSymbols(ctx)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching tradable symbols")
	}

	s.cache.CacheValidSymbols(symbols)
	s.log.Debug().Int("symbols", len(symbols)).Msg("tradable universe cached")
	return symbols, nil
}

var _ BarSource = (*Source)(nil)
