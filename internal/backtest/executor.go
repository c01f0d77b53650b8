package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/models"
)

// Strategy produces trading intents for a simulated day. The core only
// admits, reserves against, executes, or expires those intents; what to
// trade is entirely the strategy's business.
type Strategy interface {
	GetIntents(ctx context.Context, day time.Time) ([]models.TradingAction, error)
}

// RunConfig describes one backtest run.
type RunConfig struct {
	Start       time.Time
	End         time.Time
	InitialCash float64
	Strategy    Strategy
}

func (cfg RunConfig) validate() error {
	if cfg.Start.IsZero() || cfg.End.IsZero() {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "start and end dates are required")
	}
	if models.Day(cfg.End).Before(models.Day(cfg.Start)) {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "end date before start date")
	}
	if cfg.InitialCash <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "initial cash must be positive")
	}
	if cfg.Strategy == nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "strategy is required")
	}
	return nil
}

// DailySnapshot is the account state after one fully-resolved simulated day.
type DailySnapshot struct {
	Day     time.Time
	Account models.Account
}

// Result summarizes a finished (or cancelled) backtest run.
type Result struct {
	SimulationID string
	InitialCash  float64
	FinalEquity  float64
	TotalReturn  float64 // percent
	MaxDrawdown  float64 // percent
	Cancelled    bool
	Snapshots    []DailySnapshot
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// Executor owns the day-stepping loop for backtest runs. Each run gets its
// own simulation id and goroutine; a single run's steps are strictly
// sequential, so the ledger sees one writer per id.
type Executor struct {
	ledger *Ledger
	log    zerolog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewExecutor creates a backtest executor over the given ledger.
func NewExecutor(ledger *Ledger, log zerolog.Logger) *Executor {
	return &Executor{
		ledger: ledger,
		log:    log.With().Str("component", "executor").Logger(),
		runs:   make(map[string]*run),
	}
}

// Start begins a backtest run and returns its simulation id. The run
// proceeds on its own goroutine; use Wait to collect the result and Cancel
// to abort it between days.
func (e *Executor) Start(ctx context.Context, cfg RunConfig) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	simID := uuid.NewString()
	if err := e.ledger.Initialize(simID, cfg.InitialCash); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.runs[simID] = r
	e.mu.Unlock()

	e.log.Info().
		Str("sim_id", simID).
		Time("start", cfg.Start).
		Time("end", cfg.End).
		Float64("initial_cash", cfg.InitialCash).
		Msg("backtest started")

	go e.execute(runCtx, simID, cfg, r)
	return simID, nil
}

func (e *Executor) execute(ctx context.Context, simID string, cfg RunConfig, r *run) {
	defer close(r.done)
	defer r.cancel()

	result := &Result{SimulationID: simID, InitialCash: cfg.InitialCash}

	for day := models.Day(cfg.Start); !day.After(models.Day(cfg.End)); day = day.AddDate(0, 0, 1) {
		// Cancellation aborts between days, never mid-day, so the ledger is
		// always left in the last fully-resolved state.
		select {
		case <-ctx.Done():
			result.Cancelled = true
			e.finish(simID, r, result, nil)
			return
		default:
		}

		intents, err := cfg.Strategy.GetIntents(ctx, day)
		if err != nil {
			e.finish(simID, r, result, apperrors.Wrapf(err, "strategy intents for %s", day.Format("2006-01-02")))
			return
		}

		for _, action := range intents {
			if err := e.ledger.PostAction(ctx, simID, action, day); err != nil {
				if isAdmissionReject(err) {
					// Admission rejects are the strategy's concern; the run
					// continues.
					e.log.Debug().Err(err).Str("sim_id", simID).Msg("action rejected")
					continue
				}
				e.finish(simID, r, result, err)
				return
			}
		}

		if err := e.ledger.ExecuteQueuedActions(ctx, simID, day.AddDate(0, 0, 1)); err != nil {
			e.finish(simID, r, result, err)
			return
		}

		account, err := e.ledger.GetAccount(simID)
		if err != nil {
			e.finish(simID, r, result, err)
			return
		}
		result.Snapshots = append(result.Snapshots, DailySnapshot{Day: day, Account: account})
	}

	e.finish(simID, r, result, nil)
}

func (e *Executor) finish(simID string, r *run, result *Result, err error) {
	computeMetrics(result)
	r.result = result
	r.err = err

	event := e.log.Info()
	if err != nil {
		event = e.log.Error().Err(err)
	}
	event.
		Str("sim_id", simID).
		Bool("cancelled", result.Cancelled).
		Float64("final_equity", result.FinalEquity).
		Float64("total_return", result.TotalReturn).
		Msg("backtest finished")
}

func isAdmissionReject(err error) bool {
	return apperrors.Is(err, apperrors.ErrInvalidQuantity) ||
		apperrors.Is(err, apperrors.ErrFractionalLimitOrder) ||
		apperrors.Is(err, apperrors.ErrInsufficientFunds) ||
		apperrors.Is(err, apperrors.ErrInsufficientAssets)
}

// Cancel aborts a running simulation between days.
func (e *Executor) Cancel(simID string) error {
	e.mu.Lock()
	r, ok := e.runs[simID]
	e.mu.Unlock()
	if !ok {
		return apperrors.ErrUnknownSimulation
	}
	r.cancel()
	return nil
}

// Wait blocks until the simulation finishes and returns its result.
func (e *Executor) Wait(simID string) (*Result, error) {
	e.mu.Lock()
	r, ok := e.runs[simID]
	e.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrUnknownSimulation
	}
	<-r.done
	return r.result, r.err
}
