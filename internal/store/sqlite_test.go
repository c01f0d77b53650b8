package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/marketdata"
	"stock-trader/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func sampleBar(d int, close float64) models.DailyBar {
	return models.DailyBar{
		Date: day(d), Open: close - 1, High: close + 1, Low: close - 2,
		Close: close, Volume: int64(d) * 100,
	}
}

func TestSaveAndLoadBarRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bars := []models.DailyBar{sampleBar(1, 10), sampleBar(3, 12)}
	require.NoError(t, s.SaveBarRange(ctx, "AAPL", bars, day(1), day(3)))

	loaded, complete, err := s.LoadBarRange(ctx, "AAPL", day(1), day(3))
	require.NoError(t, err)
	assert.True(t, complete, "day 2 is persisted as a marker, so the range is complete")
	require.Len(t, loaded, 2)
	assert.Equal(t, 10.0, loaded[0].Close)
	assert.Equal(t, 12.0, loaded[1].Close)
	assert.Equal(t, day(1), loaded[0].Date)

	// A wider range has unpersisted days and reports incomplete.
	_, complete, err = s.LoadBarRange(ctx, "AAPL", day(1), day(4))
	require.NoError(t, err)
	assert.False(t, complete)

	// Re-saving the same range is an upsert, not an error.
	require.NoError(t, s.SaveBarRange(ctx, "AAPL", bars, day(1), day(3)))
	loaded, complete, err = s.LoadBarRange(ctx, "AAPL", day(1), day(3))
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Len(t, loaded, 2)
}

func TestWarmCacheOnlyOnCompleteRanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cache := marketdata.NewCache()

	warmed, err := s.WarmCache(ctx, cache, "AAPL", day(1), day(3))
	require.NoError(t, err)
	assert.False(t, warmed, "nothing persisted yet")

	require.NoError(t, s.SaveBarRange(ctx, "AAPL", []models.DailyBar{sampleBar(1, 10)}, day(1), day(3)))

	warmed, err = s.WarmCache(ctx, cache, "AAPL", day(1), day(3))
	require.NoError(t, err)
	require.True(t, warmed)

	bars, ok := cache.TryGetRange("AAPL", day(1), day(3))
	require.True(t, ok, "warmed range must resolve in the cache")
	require.Len(t, bars, 1)
	assert.Equal(t, 10.0, bars[0].Close)

	// A partial warm-up must leave the cache untouched.
	warmed, err = s.WarmCache(ctx, cache, "AAPL", day(1), day(5))
	require.NoError(t, err)
	assert.False(t, warmed)
	_, ok = cache.TryGetRange("AAPL", day(4), day(5))
	assert.False(t, ok)
}

func TestExecutionStateJournalFirstReportWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.ReportExecutionState("a1", models.Filled(12.5))
	s.ReportExecutionState("a1", models.Expired()) // ignored

	state, err := s.ExecutionState(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFilled, state.Status)
	assert.Equal(t, 12.5, state.FillPrice)

	s.ReportExecutionState("a2", models.Expired())
	state, err = s.ExecutionState(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionExpired, state.Status)
	assert.Zero(t, state.FillPrice)

	_, err = s.ExecutionState(ctx, "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrDataNotFound))
}
