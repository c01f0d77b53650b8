package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-trader/internal/models"
)

const priceEpsilon = 1e-6

var propertySymbols = []models.Symbol{"AAA", "BBB", "CCC"}

// buildRandomMarket fills a fake source with plausible bars: per-symbol base
// prices, low <= open/close <= high, and occasional no-trading gaps.
func buildRandomMarket(rng *rand.Rand, source *fakeSource, numDays int) {
	for _, symbol := range propertySymbols {
		base := 5 + rng.Float64()*95
		for d := 1; d <= numDays; d++ {
			if rng.Float64() < 0.15 {
				continue // gap day
			}
			open := base * (0.9 + rng.Float64()*0.2)
			close := base * (0.9 + rng.Float64()*0.2)
			high := math.Max(open, close) * (1 + rng.Float64()*0.05)
			low := math.Min(open, close) * (1 - rng.Float64()*0.05)
			source.put(symbol, simDay(d), models.DailyBar{
				Open: open, High: high, Low: low, Close: close,
				Volume: 100 + rng.Int63n(10000),
			})
		}
	}
}

// randomAction draws an order intent. Limit orders get whole-share
// quantities; market orders may be fractional.
func randomAction(rng *rand.Rand, id string) models.TradingAction {
	symbol := propertySymbols[rng.Intn(len(propertySymbols))]
	quantity := float64(1 + rng.Intn(3))
	switch rng.Intn(4) {
	case 0:
		return marketBuy(id, symbol, quantity+rng.Float64())
	case 1:
		return marketSell(id, symbol, quantity)
	case 2:
		return limitBuy(id, symbol, quantity, 5+rng.Float64()*100)
	default:
		return limitSell(id, symbol, quantity, 5+rng.Float64()*100)
	}
}

func accountInvariantsHold(account models.Account) bool {
	if account.Cash.BuyingPower < -priceEpsilon {
		return false
	}
	if account.Cash.BuyingPower > account.Cash.AvailableAmount+priceEpsilon {
		return false
	}
	equity := account.Cash.AvailableAmount
	for _, pos := range account.Positions {
		if pos.Quantity <= 0 {
			return false
		}
		if pos.AvailableQuantity < -priceEpsilon || pos.AvailableQuantity > pos.Quantity+priceEpsilon {
			return false
		}
		equity += pos.MarketValue
	}
	return math.Abs(equity-account.EquityValue) < priceEpsilon
}

func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("account invariants hold under random trading", prop.ForAll(
		func(seed int64, numDays int) bool {
			rng := rand.New(rand.NewSource(seed))
			source := newFakeSource()
			buildRandomMarket(rng, source, numDays)

			l, recorder := newTestLedger(source)
			ctx := context.Background()
			initialCash := 1000 + rng.Float64()*9000
			if err := l.Initialize("P", initialCash); err != nil {
				return false
			}

			posted := make(map[string]models.TradingAction)
			nextID := 0
			for d := 0; d < numDays; d++ {
				for i := 0; i < rng.Intn(4); i++ {
					nextID++
					action := randomAction(rng, fmt.Sprintf("act-%d", nextID))
					if err := l.PostAction(ctx, "P", action, simDay(d)); err != nil {
						if isAdmissionReject(err) {
							continue
						}
						return false
					}
					posted[action.ID] = action
				}
				if err := l.ExecuteQueuedActions(ctx, "P", simDay(d+1)); err != nil {
					return false
				}
				account, err := l.GetAccount("P")
				if err != nil {
					return false
				}
				if !accountInvariantsHold(account) {
					return false
				}
			}

			// Every admitted action reaches exactly one terminal state.
			if pending, _ := l.PendingCount("P"); pending != 0 {
				return false
			}
			if recorder.Len() != len(posted) {
				return false
			}

			// Cash moves only through fills: replaying the recorded fills
			// from the initial balance must land on the final balance.
			expected := initialCash
			for id, action := range posted {
				state, ok := recorder.State(id)
				if !ok {
					return false
				}
				if state.Status != models.ExecutionFilled {
					continue
				}
				if action.OrderType.IsBuy() {
					expected -= action.Quantity * state.FillPrice
				} else {
					expected += action.Quantity * state.FillPrice
				}
			}
			account, _ := l.GetAccount("P")
			return math.Abs(account.Cash.AvailableAmount-expected) < priceEpsilon
		},
		gen.Int64(),
		gen.IntRange(1, 6),
	))

	properties.Property("limit buys never fill above their limit price", prop.ForAll(
		func(seed int64, quantity int, limit float64) bool {
			rng := rand.New(rand.NewSource(seed))
			source := newFakeSource()
			buildRandomMarket(rng, source, 1)

			l, recorder := newTestLedger(source)
			ctx := context.Background()
			if err := l.Initialize("P", 1e9); err != nil {
				return false
			}

			action := limitBuy("lb", propertySymbols[0], float64(quantity), limit)
			if err := l.PostAction(ctx, "P", action, simDay(0)); err != nil {
				return isAdmissionReject(err)
			}
			if err := l.ExecuteQueuedActions(ctx, "P", simDay(1)); err != nil {
				return false
			}

			state, ok := recorder.State("lb")
			if !ok {
				return false
			}
			if state.Status != models.ExecutionFilled {
				return true
			}
			bar, _ := source.GetBar(ctx, propertySymbols[0], simDay(1))
			return state.FillPrice == limit && bar != nil && bar.Low <= limit
		},
		gen.Int64(),
		gen.IntRange(1, 10),
		gen.Float64Range(1, 200),
	))

	properties.Property("expiry restores the account exactly", prop.ForAll(
		func(seed int64, quantity int) bool {
			rng := rand.New(rand.NewSource(seed))
			source := newFakeSource()
			buildRandomMarket(rng, source, 1)
			ctx := context.Background()

			l, recorder := newTestLedger(source)
			initialCash := 1000 + rng.Float64()*9000
			if err := l.Initialize("P", initialCash); err != nil {
				return false
			}

			// A limit far below any generated low can only expire.
			action := limitBuy("lb", propertySymbols[0], float64(quantity), 0.01)
			if err := l.PostAction(ctx, "P", action, simDay(0)); err != nil {
				return false
			}
			if err := l.ExecuteQueuedActions(ctx, "P", simDay(1)); err != nil {
				return false
			}

			if state, ok := recorder.State("lb"); !ok || state.Status != models.ExecutionExpired {
				return false
			}
			account, _ := l.GetAccount("P")
			return math.Abs(account.Cash.BuyingPower-initialCash) < priceEpsilon &&
				account.Cash.AvailableAmount == initialCash &&
				len(account.Positions) == 0 &&
				math.Abs(account.EquityValue-initialCash) < priceEpsilon
		},
		gen.Int64(),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
