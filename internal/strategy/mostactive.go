// Package strategy provides reference intent producers for the backtest
// driver. Strategies only decide what to trade; admission, reservation, and
// execution are the backtest core's job.
package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stock-trader/internal/marketdata"
	"stock-trader/internal/models"
)

// MostActiveConfig holds configuration for the most-active strategy.
type MostActiveConfig struct {
	// Top is how many of the day's most active symbols to buy.
	Top int
	// Allocation is the cash to commit per symbol per day.
	Allocation float64
}

// DefaultMostActiveConfig returns sensible defaults.
func DefaultMostActiveConfig() MostActiveConfig {
	return MostActiveConfig{
		Top:        3,
		Allocation: 1000,
	}
}

// MostActive buys a fixed cash amount of the day's highest-volume symbols.
// It reads only from the market data cache, so a warmed cache is a
// prerequisite for it to produce any intents.
type MostActive struct {
	cache *marketdata.Cache
	cfg   MostActiveConfig
}

// NewMostActive creates a most-active strategy over the given cache.
func NewMostActive(cache *marketdata.Cache, cfg MostActiveConfig) *MostActive {
	if cfg.Top <= 0 {
		cfg.Top = DefaultMostActiveConfig().Top
	}
	if cfg.Allocation <= 0 {
		cfg.Allocation = DefaultMostActiveConfig().Allocation
	}
	return &MostActive{cache: cache, cfg: cfg}
}

// GetIntents emits a fractional market buy per top-volume symbol, sized so
// each intent commits roughly the configured allocation at the last known
// price.
func (s *MostActive) GetIntents(_ context.Context, day time.Time) ([]models.TradingAction, error) {
	symbols := s.cache.MostActiveSymbolsForDay(day)
	if len(symbols) > s.cfg.Top {
		symbols = symbols[:s.cfg.Top]
	}

	var intents []models.TradingAction
	for _, symbol := range symbols {
		price, ok := s.cache.LastPriceAsOf(symbol, day)
		if !ok || price <= 0 {
			continue
		}
		intents = append(intents, models.TradingAction{
			ID:        uuid.NewString(),
			Symbol:    symbol,
			OrderType: models.OrderTypeMarketBuy,
			Quantity:  s.cfg.Allocation / price,
			CreatedAt: day,
		})
	}
	return intents, nil
}
