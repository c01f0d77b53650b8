// Package venue provides integration with the external brokerage venue.
package venue

import (
	"context"
	"time"

	"stock-trader/internal/models"
)

// Client defines the operations the application needs from the venue.
// Every implementation is expected to surface throttling as
// errors.ErrRateLimited so the call queue can contain it.
type Client interface {
	// Market data
	GetDailyBars(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, error)
	GetTradableSymbols(ctx context.Context) ([]models.Symbol, error)

	// Orders (live trading path)
	PlaceOrder(ctx context.Context, action models.TradingAction) (*OrderResult, error)
}

// OrderResult represents the venue's acknowledgement of an order.
type OrderResult struct {
	OrderID  string
	Status   string
	PlacedAt time.Time
}
