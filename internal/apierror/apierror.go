// Package apierror provides standardized error response structures for the API
// plus the typed business errors the transaction engine returns as values.
// All errors surfaced to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func New(kind, msg string) *APIError {
	return &APIError{Kind: kind, Detail: msg}
}

// ValidationError wraps multiple field errors (422 responses).
type ValidationError struct {
	Kind   string            `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Kind: "validation_error", Detail: "validation failed", Fields: fields}
}

func (e *ValidationError) Error() string {
	for field, msg := range e.Fields {
		return fmt.Sprintf("%s: %s: %s", e.Detail, field, msg)
	}
	return e.Detail
}

// ── Business error taxonomy ──────────────────────────────────────────────────
// Returned as values through the service layer so that transaction closures
// can decide rollback vs commit deterministically.

var (
	ErrAlreadyOpen     = errors.New("operator already has an open shift")
	ErrAlreadyClosed   = errors.New("shift is already closed")
	ErrNoOpenShift     = errors.New("no open shift")
	ErrSaleAlreadyOpen = errors.New("operator already has an open sale on this shift")
)

// NotFoundError identifies a missing entity (404).
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func NotFound(entity string) *NotFoundError { return &NotFoundError{Entity: entity} }

// InvalidStateError is returned when an operation is attempted on a sale or
// shift whose status does not allow it.
type InvalidStateError struct {
	Entity string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is in status %s and cannot be modified", e.Entity, e.Status)
}

// InsufficientStockError names the shortfall so clients can display it.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d requested, %d available", e.Requested, e.Available)
}

// InsufficientBalanceError is returned when a BLEED or EXPENSE would drive the
// shift balance below zero.
type InsufficientBalanceError struct {
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s available", e.Available.StringFixed(2))
}

// InsufficientPaymentError names the missing amount.
type InsufficientPaymentError struct {
	Missing decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: %s missing", e.Missing.StringFixed(2))
}

// GatewayError wraps an upstream payment-provider failure (500 on sync calls).
type GatewayError struct {
	Gateway string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Gateway, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// StatusAndKind maps a business error to its HTTP status and stable kind.
// Unknown errors map to 500; the handler logs the detail and returns a safe
// message instead of the raw error.
func StatusAndKind(err error) (int, string) {
	var (
		nf  *NotFoundError
		is  *InvalidStateError
		stk *InsufficientStockError
		bal *InsufficientBalanceError
		pay *InsufficientPaymentError
		gw  *GatewayError
		val *ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &val):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.As(err, &is):
		return http.StatusBadRequest, "invalid_state"
	case errors.As(err, &stk):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.As(err, &bal):
		return http.StatusBadRequest, "insufficient_balance"
	case errors.As(err, &pay):
		return http.StatusBadRequest, "insufficient_payment"
	case errors.As(err, &gw):
		return http.StatusInternalServerError, "gateway_error"
	case errors.Is(err, ErrAlreadyOpen):
		return http.StatusBadRequest, "already_open"
	case errors.Is(err, ErrAlreadyClosed):
		return http.StatusBadRequest, "already_closed"
	case errors.Is(err, ErrNoOpenShift):
		return http.StatusBadRequest, "no_open_shift"
	case errors.Is(err, ErrSaleAlreadyOpen):
		return http.StatusBadRequest, "sale_already_open"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
