package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of failure categories the ledger returns.
// Callers branch on Code, never on message text.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeAlreadyVoided     ErrorCode = "ALREADY_VOIDED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeUnknown           ErrorCode = "UNKNOWN"
)

// StockViolation describes one (location, item, condition) key that a
// strict-stock posting would have driven negative.
type StockViolation struct {
	LocationID   int       `json:"location_id"`
	LinenItemID  int       `json:"linen_item_id"`
	Condition    Condition `json:"condition"`
	CurrentQty   int64     `json:"current_qty"`
	AttemptedQty int64     `json:"attempted_qty"`
	ResultingQty int64     `json:"resulting_qty"`
}

// LedgerError is the tagged result returned across the core boundary.
// Violations is populated only for CodeInsufficientStock.
type LedgerError struct {
	Code       ErrorCode
	Message    string
	Violations []StockViolation
	cause      error
}

func (e *LedgerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error { return e.cause }

// CodeOf returns the ledger error code carried by err, or CodeUnknown for
// any error that did not originate from the ledger.
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeUnknown
}

// ForbiddenErr is constructed by the identity layer when a caller lacks a
// property grant. The ledger core itself never generates it.
func ForbiddenErr(format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func validationErr(format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func alreadyVoidedErr(format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeAlreadyVoided, Message: fmt.Sprintf(format, args...)}
}

func insufficientStockErr(violations []StockViolation) *LedgerError {
	return &LedgerError{
		Code:       CodeInsufficientStock,
		Message:    fmt.Sprintf("%d balance key(s) would go negative", len(violations)),
		Violations: violations,
	}
}

func unknownErr(cause error, format string, args ...any) *LedgerError {
	return &LedgerError{Code: CodeUnknown, Message: fmt.Sprintf(format, args...), cause: cause}
}
