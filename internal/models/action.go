package models

import (
	"math"
	"time"
)

// OrderType represents the type of a trading action.
type OrderType string

const (
	OrderTypeMarketBuy  OrderType = "MARKET_BUY"
	OrderTypeMarketSell OrderType = "MARKET_SELL"
	OrderTypeLimitBuy   OrderType = "LIMIT_BUY"
	OrderTypeLimitSell  OrderType = "LIMIT_SELL"
)

// IsBuy reports whether the order adds shares to a position.
func (t OrderType) IsBuy() bool {
	return t == OrderTypeMarketBuy || t == OrderTypeLimitBuy
}

// IsSell reports whether the order removes shares from a position.
func (t OrderType) IsSell() bool {
	return t == OrderTypeMarketSell || t == OrderTypeLimitSell
}

// IsLimit reports whether the order carries a limit price.
func (t OrderType) IsLimit() bool {
	return t == OrderTypeLimitBuy || t == OrderTypeLimitSell
}

// TradingAction is an order intent produced by a strategy. The core never
// mutates an action after admission; execution results are tracked
// externally via ExecutionState.
type TradingAction struct {
	ID         string
	Symbol     Symbol
	OrderType  OrderType
	Quantity   float64
	LimitPrice float64 // set iff OrderType.IsLimit()
	CreatedAt  time.Time
}

// WholeShares reports whether the action's quantity is a whole number.
// Limit orders must be whole-share; market orders may be fractional.
func (a TradingAction) WholeShares() bool {
	return a.Quantity == math.Trunc(a.Quantity)
}

// ExecutionStatus is the lifecycle state of a trading action.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "PENDING"
	ExecutionFilled  ExecutionStatus = "FILLED"
	ExecutionExpired ExecutionStatus = "EXPIRED"
)

// ExecutionState records the outcome of a trading action. An action is
// created Pending and transitions exactly once to Filled or Expired.
type ExecutionState struct {
	Status    ExecutionStatus
	FillPrice float64 // set iff Status == ExecutionFilled
}

// Filled returns a terminal Filled state at the given price.
func Filled(price float64) ExecutionState {
	return ExecutionState{Status: ExecutionFilled, FillPrice: price}
}

// Expired returns a terminal Expired state.
func Expired() ExecutionState {
	return ExecutionState{Status: ExecutionExpired}
}
