// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDataUnavailable      = errors.New("market data unavailable")
	ErrBrokerFailure        = errors.New("broker call failed")
	ErrTrainingFailure      = errors.New("model training failed")
	ErrInsufficientEvidence = errors.New("insufficient accuracy samples")
	ErrTradingHalted        = errors.New("trading halted")
	ErrDrawdownBreach       = errors.New("maximum drawdown breached")
	ErrNoActiveVersion      = errors.New("no active model version")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrOrderRejected        = errors.New("order rejected")
	ErrPositionNotFound     = errors.New("position not found")
)

// BrokerError represents an error from the broker collaborator.
type BrokerError struct {
	Op      string
	Symbol  string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s] %s: %s: %v", e.Op, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s] %s: %s", e.Op, e.Symbol, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, symbol, message string, err error) *BrokerError {
	return &BrokerError{
		Op:      op,
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// TrainingError represents a failure of the training collaborator. A failed
// retrain is non-fatal: the controller logs it and keeps the active version.
type TrainingError struct {
	Stage   string
	Samples int
	Err     error
}

func (e *TrainingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("training error [%s] (%d samples): %v", e.Stage, e.Samples, e.Err)
	}
	return fmt.Sprintf("training error [%s] (%d samples)", e.Stage, e.Samples)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// NewTrainingError creates a new TrainingError.
func NewTrainingError(stage string, samples int, err error) *TrainingError {
	return &TrainingError{
		Stage:   stage,
		Samples: samples,
		Err:     err,
	}
}

// RiskError represents a breach of a capital-preservation rule.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.4f, limit: %.4f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
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
