// Package backtest replays an account's cash, buying power, and positions
// day by day, applying order-matching rules against historical daily bars.
package backtest

import (
	"sync"

	"stock-trader/internal/models"
)

// ActionRecorder receives the terminal execution state of every trading
// action exactly once. It is the only way execution results leave the
// backtest core; persistence is the implementation's concern.
type ActionRecorder interface {
	ReportExecutionState(actionID string, state models.ExecutionState)
}

// MemoryRecorder keeps execution states in memory.
type MemoryRecorder struct {
	mu     sync.RWMutex
	states map[string]models.ExecutionState
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		states: make(map[string]models.ExecutionState),
	}
}

// ReportExecutionState stores the terminal state for an action. The first
// report wins; the ledger never reports twice for the same action.
func (r *MemoryRecorder) ReportExecutionState(actionID string, state models.ExecutionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[actionID]; ok {
		return
	}
	r.states[actionID] = state
}

// State returns the recorded state for an action.
func (r *MemoryRecorder) State(actionID string) (models.ExecutionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[actionID]
	return state, ok
}

// Len returns the number of recorded terminal states.
func (r *MemoryRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

var _ ActionRecorder = (*MemoryRecorder)(nil)
