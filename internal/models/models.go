// Package models provides domain models for the trading application.
package models

import (
	"time"
)

// Symbol identifies a tradable instrument. Symbols are value-equal and
// used as map keys throughout the application.
type Symbol string

func (s Symbol) String() string {
	return string(s)
}

// DailyBar represents one trading day's OHLCV data for a symbol.
// All prices are positive and Low <= Open, Close <= High.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Position represents shares held in a single symbol.
// AvailableQuantity is the portion not reserved by a pending sell order,
// so 0 <= AvailableQuantity <= Quantity at all times.
type Position struct {
	Symbol            Symbol
	Quantity          float64
	AvailableQuantity float64
	AverageEntryPrice float64
	MarketValue       float64
}

// Cash represents an account's cash balance. BuyingPower is
// AvailableAmount minus the reservations held by pending buy orders,
// so 0 <= BuyingPower <= AvailableAmount at all times.
type Cash struct {
	Currency        string
	AvailableAmount float64
	BuyingPower     float64
}

// Account is a snapshot of cash plus open positions.
// EquityValue == Cash.AvailableAmount + sum of position market values.
type Account struct {
	EquityValue float64
	Cash        Cash
	Positions   map[Symbol]Position
}

// Day truncates t to midnight UTC. All per-day keying (cache slots,
// order execution days) uses this normalization.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the calendar day after t, normalized to midnight UTC.
func NextDay(t time.Time) time.Time {
	return Day(t).AddDate(0, 0, 1)
}
