package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/marketdata"
	"stock-trader/internal/models"
)

// pendingAction is an admitted order waiting for its execution day.
type pendingAction struct {
	action         models.TradingAction
	executeOn      time.Time
	reservedCash   float64 // buying power set aside for a buy
	reservedShares float64 // shares set aside for a sell
}

// accountState is one simulation's ledger. It must only be mutated by the
// single driver goroutine owning the simulation id.
type accountState struct {
	cash      models.Cash
	positions map[models.Symbol]*models.Position
	equity    float64
	pending   []*pendingAction
}

func (st *accountState) recomputeEquity() {
	equity := st.cash.AvailableAmount
	for _, pos := range st.positions {
		equity += pos.MarketValue
	}
	st.equity = equity
}

// Ledger simulates per-account order admission and fills for any number of
// independent simulations, keyed by simulation id. Different ids are fully
// independent and safe to drive in parallel; calls for the same id must be
// issued sequentially by its owning driver.
type Ledger struct {
	source   marketdata.BarSource
	recorder ActionRecorder
	log      zerolog.Logger

	mu       sync.RWMutex
	accounts map[string]*accountState
}

// NewLedger creates a ledger backed by the given bar source. Terminal
// execution states are reported to recorder exactly once per action.
func NewLedger(source marketdata.BarSource, recorder ActionRecorder, log zerolog.Logger) *Ledger {
	if recorder == nil {
		recorder = NewMemoryRecorder()
	}
	return &Ledger{
		source:   source,
		recorder: recorder,
		log:      log.With().Str("component", "ledger").Logger(),
		accounts: make(map[string]*accountState),
	}
}

// Initialize creates the account for a simulation id with cash, buying
// power, and equity all equal to initialCash and no positions.
func (l *Ledger) Initialize(simID string, initialCash float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[simID]; ok {
		return apperrors.ErrAlreadyInitialized
	}
	l.accounts[simID] = &accountState{
		cash: models.Cash{
			Currency:        "USD",
			AvailableAmount: initialCash,
			BuyingPower:     initialCash,
		},
		positions: make(map[models.Symbol]*models.Position),
		equity:    initialCash,
	}
	return nil
}

func (l *Ledger) account(simID string) (*accountState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.accounts[simID]
	if !ok {
		return nil, apperrors.ErrNotInitialized
	}
	return st, nil
}

// PostAction validates an order intent against the simulation's account as
// of currentDay and, on success, reserves against it and queues it for
// execution on the following day.
//
// Validation rejections are synchronous and leave the account untouched.
// A missing next-day bar for a buy is not an error: the reservation is
// skipped and the order will expire at execution, keeping posting robust to
// data gaps such as holidays and delistings.
func (l *Ledger) PostAction(ctx context.Context, simID string, action models.TradingAction, currentDay time.Time) error {
	st, err := l.account(simID)
	if err != nil {
		return err
	}

	if action.Quantity <= 0 {
		return apperrors.NewOrderError(action.ID, action.Symbol.String(), apperrors.ErrInvalidQuantity)
	}
	if action.OrderType.IsLimit() && !action.WholeShares() {
		return apperrors.NewOrderError(action.ID, action.Symbol.String(), apperrors.ErrFractionalLimitOrder)
	}

	pending := &pendingAction{
		action:    action,
		executeOn: models.NextDay(currentDay),
	}

	if action.OrderType.IsSell() {
		pos, ok := st.positions[action.Symbol]
		if !ok || pos.AvailableQuantity < action.Quantity {
			return apperrors.NewOrderError(action.ID, action.Symbol.String(), apperrors.ErrInsufficientAssets)
		}
		pos.AvailableQuantity -= action.Quantity
		pending.reservedShares = action.Quantity
	} else {
		bar, err := l.source.GetBar(ctx, action.Symbol, pending.executeOn)
		if err != nil {
			return apperrors.Wrapf(err, "posting %s", action.Symbol)
		}
		if bar != nil {
			referencePrice := bar.Open
			if action.OrderType.IsLimit() {
				referencePrice = action.LimitPrice
			}
			cost := action.Quantity * referencePrice
			if cost > st.cash.BuyingPower {
				return apperrors.NewOrderError(action.ID, action.Symbol.String(), apperrors.ErrInsufficientFunds)
			}
			st.cash.BuyingPower -= cost
			pending.reservedCash = cost
		}
	}

	st.pending = append(st.pending, pending)
	l.log.Debug().
		Str("sim_id", simID).
		Str("action_id", action.ID).
		Str("symbol", action.Symbol.String()).
		Str("type", string(action.OrderType)).
		Float64("quantity", action.Quantity).
		Time("execute_on", pending.executeOn).
		Msg("action queued")
	return nil
}

// ExecuteQueuedActions resolves every pending action targeting executionDay
// against that day's bar. Each resolved action reaches exactly one terminal
// state, reported once to the recorder. Actions targeting other days are
// left queued.
func (l *Ledger) ExecuteQueuedActions(ctx context.Context, simID string, executionDay time.Time) error {
	st, err := l.account(simID)
	if err != nil {
		return err
	}

	day := models.Day(executionDay)
	remaining := st.pending[:0]
	for i, pending := range st.pending {
		if !pending.executeOn.Equal(day) {
			remaining = append(remaining, pending)
			continue
		}

		bar, err := l.source.GetBar(ctx, pending.action.Symbol, day)
		if err != nil {
			// Keep this and all unprocessed actions queued so the caller
			// can retry the day.
			remaining = append(remaining, st.pending[i:]...)
			st.pending = remaining
			return apperrors.Wrapf(err, "executing %s", pending.action.Symbol)
		}

		state := l.resolve(st, pending, bar)
		l.recorder.ReportExecutionState(pending.action.ID, state)
		l.log.Debug().
			Str("sim_id", simID).
			Str("action_id", pending.action.ID).
			Str("status", string(state.Status)).
			Float64("fill_price", state.FillPrice).
			Msg("action resolved")
	}
	st.pending = remaining
	st.recomputeEquity()
	return nil
}

// resolve fills or expires a single pending action against the day's bar.
func (l *Ledger) resolve(st *accountState, pending *pendingAction, bar *models.DailyBar) models.ExecutionState {
	action := pending.action
	if bar == nil {
		l.release(st, pending)
		return models.Expired()
	}

	var fillPrice float64
	switch action.OrderType {
	case models.OrderTypeMarketBuy, models.OrderTypeMarketSell:
		fillPrice = bar.Open
	case models.OrderTypeLimitBuy:
		if bar.Low > action.LimitPrice {
			l.release(st, pending)
			return models.Expired()
		}
		fillPrice = action.LimitPrice
	case models.OrderTypeLimitSell:
		if bar.High < action.LimitPrice {
			l.release(st, pending)
			return models.Expired()
		}
		fillPrice = action.LimitPrice
	}

	if action.OrderType.IsBuy() {
		st.applyBuy(action, fillPrice, pending.reservedCash)
	} else {
		st.applySell(action, fillPrice)
	}
	st.recomputeEquity()
	return models.Filled(fillPrice)
}

// release returns an expired action's reservation without any other effect
// on cash or positions.
func (l *Ledger) release(st *accountState, pending *pendingAction) {
	if pending.reservedCash > 0 {
		st.cash.BuyingPower += pending.reservedCash
	}
	if pending.reservedShares > 0 {
		if pos, ok := st.positions[pending.action.Symbol]; ok {
			pos.AvailableQuantity += pending.reservedShares
		}
	}
}

func (st *accountState) applyBuy(action models.TradingAction, fillPrice, reservedCash float64) {
	cost := action.Quantity * fillPrice
	st.cash.AvailableAmount -= cost
	st.cash.BuyingPower += reservedCash - cost

	pos, ok := st.positions[action.Symbol]
	if !ok {
		pos = &models.Position{Symbol: action.Symbol}
		st.positions[action.Symbol] = pos
	}
	newQuantity := pos.Quantity + action.Quantity
	pos.AverageEntryPrice = (pos.Quantity*pos.AverageEntryPrice + action.Quantity*fillPrice) / newQuantity
	pos.Quantity = newQuantity
	pos.AvailableQuantity += action.Quantity
	pos.MarketValue = pos.Quantity * fillPrice
}

func (st *accountState) applySell(action models.TradingAction, fillPrice float64) {
	proceeds := action.Quantity * fillPrice
	st.cash.AvailableAmount += proceeds
	st.cash.BuyingPower += proceeds

	// Shares were reserved at admission, so AvailableQuantity is already
	// net of this sale.
	pos := st.positions[action.Symbol]
	pos.Quantity -= action.Quantity
	if pos.Quantity <= 1e-9 {
		delete(st.positions, action.Symbol)
		return
	}
	pos.MarketValue = pos.Quantity * fillPrice
}

// GetAccount returns a snapshot of the simulation's account.
func (l *Ledger) GetAccount(simID string) (models.Account, error) {
	st, err := l.account(simID)
	if err != nil {
		return models.Account{}, err
	}

	positions := make(map[models.Symbol]models.Position, len(st.positions))
	for symbol, pos := range st.positions {
		positions[symbol] = *pos
	}
	return models.Account{
		EquityValue: st.equity,
		Cash:        st.cash,
		Positions:   positions,
	}, nil
}

// PendingCount returns the number of actions still queued for a simulation.
func (l *Ledger) PendingCount(simID string) (int, error) {
	st, err := l.account(simID)
	if err != nil {
		return 0, err
	}
	return len(st.pending), nil
}
