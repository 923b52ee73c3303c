package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies a ledger failure. The protocol layer maps several kinds onto one wire code.
type ErrorKind int

const (
	ErrorKindFormat ErrorKind = iota + 1
	ErrorKindUnknownCommand
	ErrorKindInvalidArgument
	ErrorKindUserNotFound
	ErrorKindInsufficientFunds
	ErrorKindInsufficientHoldings
	ErrorKindStoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindFormat:
		return "format_error"
	case ErrorKindUnknownCommand:
		return "unknown_command"
	case ErrorKindInvalidArgument:
		return "invalid_argument"
	case ErrorKindUserNotFound:
		return "user_not_found"
	case ErrorKindInsufficientFunds:
		return "insufficient_funds"
	case ErrorKindInsufficientHoldings:
		return "insufficient_holdings"
	case ErrorKindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A *LedgerError matches the sentinel of its kind.
var (
	ErrFormat               = errors.New("message format error")
	ErrUnknownCommand       = errors.New("invalid command")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrUserNotFound         = errors.New("user not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrStoreFailure         = errors.New("store failure")
)

var sentinels = map[ErrorKind]error{
	ErrorKindFormat:               ErrFormat,
	ErrorKindUnknownCommand:       ErrUnknownCommand,
	ErrorKindInvalidArgument:      ErrInvalidArgument,
	ErrorKindUserNotFound:         ErrUserNotFound,
	ErrorKindInsufficientFunds:    ErrInsufficientFunds,
	ErrorKindInsufficientHoldings: ErrInsufficientHoldings,
	ErrorKindStoreFailure:         ErrStoreFailure,
}

// LedgerError represents a structured error with a client-facing message
type LedgerError struct {
	Kind    ErrorKind
	Message string // Detail line sent to the client
	Err     error  // Underlying error, if any
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind
func (e *LedgerError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the kind of err. Errors that are not ledger errors count as store failures.
func KindOf(err error) ErrorKind {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Kind
	}
	return ErrorKindStoreFailure
}

// NewFormatError creates an error for a request line that does not match its command grammar
func NewFormatError(message string) *LedgerError {
	return &LedgerError{Kind: ErrorKindFormat, Message: message}
}

// NewUnknownCommandError creates an error for an unrecognized command token
func NewUnknownCommandError(token string) *LedgerError {
	return &LedgerError{Kind: ErrorKindUnknownCommand, Message: fmt.Sprintf("Unknown command %q", token)}
}

// NewInvalidArgumentError creates an error for well-formed but unacceptable arguments
func NewInvalidArgumentError(message string) *LedgerError {
	return &LedgerError{Kind: ErrorKindInvalidArgument, Message: message}
}

// NewUserNotFoundError creates an error for a user id with no row
func NewUserNotFoundError(userID int64) *LedgerError {
	return &LedgerError{Kind: ErrorKindUserNotFound, Message: fmt.Sprintf("User %d doesn't exist", userID)}
}

// NewInsufficientFundsError creates an error for a BUY the user cannot afford
func NewInsufficientFundsError(balance, required decimal.Decimal) *LedgerError {
	return &LedgerError{
		Kind:    ErrorKindInsufficientFunds,
		Message: fmt.Sprintf("Not enough USD balance. Current balance: $%s, Required: $%s", balance.StringFixed(2), required.StringFixed(2)),
	}
}

// NewInsufficientHoldingsError creates an error for a SELL larger than the holding
func NewInsufficientHoldingsError(symbol string, current, requested decimal.Decimal) *LedgerError {
	return &LedgerError{
		Kind:    ErrorKindInsufficientHoldings,
		Message: fmt.Sprintf("Not enough %s stock balance. Current: %s, Requested: %s", symbol, current.StringFixed(2), requested.StringFixed(2)),
	}
}

// NewNoHoldingError creates an error for a SELL of a symbol the user never bought
func NewNoHoldingError(symbol string, userID int64) *LedgerError {
	return &LedgerError{
		Kind:    ErrorKindInsufficientHoldings,
		Message: fmt.Sprintf("No %s stock found for user %d", symbol, userID),
	}
}

// NewStoreFailure wraps an unexpected persistence error
func NewStoreFailure(err error) *LedgerError {
	return &LedgerError{Kind: ErrorKindStoreFailure, Message: "Database error", Err: err}
}

// asLedgerError keeps ledger errors as they are and wraps everything else as a store failure
func asLedgerError(err error) error {
	var ledgerErr *LedgerError
	if errors.As(err, &ledgerErr) {
		return err
	}
	return NewStoreFailure(err)
}
