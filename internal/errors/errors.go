// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// Admission validation errors, returned synchronously from order posting.
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrFractionalLimitOrder = errors.New("limit orders require a whole-share quantity")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientAssets   = errors.New("insufficient assets")

	// Simulation lifecycle contract violations. These indicate a caller bug,
	// not a runtime condition to recover from.
	ErrAlreadyInitialized = errors.New("simulation already initialized")
	ErrNotInitialized     = errors.New("simulation not initialized")
	ErrSimulationRunning  = errors.New("simulation already running")
	ErrUnknownSimulation  = errors.New("unknown simulation id")

	// Venue and infrastructure errors.
	ErrRateLimited    = errors.New("rate limited")
	ErrQueueClosed    = errors.New("call queue closed")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrDataNotFound   = errors.New("data not found")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// VenueError represents an error from the venue API.
type VenueError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *VenueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("venue error [%d] %s: %s: %v", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("venue error [%d] %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// NewVenueError creates a new VenueError.
func NewVenueError(statusCode int, endpoint, message string, err error) *VenueError {
	return &VenueError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Err:        err,
	}
}

// OrderError represents a rejected trading action with its admission reason.
type OrderError struct {
	ActionID string
	Symbol   string
	Reason   error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order rejected [%s] %s: %v", e.ActionID, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Reason
}

// NewOrderError creates a new OrderError.
func NewOrderError(actionID, symbol string, reason error) *OrderError {
	return &OrderError{
		ActionID: actionID,
		Symbol:   symbol,
		Reason:   reason,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
