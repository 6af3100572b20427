package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes returned to callers of the ledger.
const (
	CodeValidation          = "LED_001"
	CodeNotFound            = "LED_002"
	CodeDuplicate           = "LED_003"
	CodeAuthorizationDenied = "LED_004"
	CodeInvalidAmount       = "LED_005"
	CodeInsufficientBalance = "LED_006"

	CodeInvalidToken = "AUTH_003"
	CodeActorBlocked = "AUTH_005"

	CodeRateLimit = "RATE_001"

	CodeRequestInFlight = "IDEM_001"

	CodeInternal    = "SYS_001"
	CodePersistence = "SYS_010"
	CodeEmptyStore  = "SYS_011"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AppError carrying the same code, so
// errors.Is(err, apperror.ErrNotFound("wallet")) matches any not-found error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetail returns the error with key set in its client-visible details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HasCode reports whether err (or anything it wraps) is an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// ---- Ledger (LED) ----

// Validation reports malformed input on an operation that requires strict input.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicate(field string) *AppError {
	return New(CodeDuplicate, fmt.Sprintf("a wallet with that %s already exists", field), http.StatusConflict).
		WithDetail("field", field)
}

// ErrAuthorizationDenied is returned when a non-owner acts without force.
// hint tells the caller how to proceed; shared flags wallets that have sharing
// enabled, because sharing does not grant destructive permission by itself.
func ErrAuthorizationDenied(hint string, shared bool) *AppError {
	return New(CodeAuthorizationDenied, "You do not own this wallet", http.StatusForbidden).
		WithDetail("hint", hint).
		WithDetail("force_required", true).
		WithDetail("shared", shared)
}

func ErrInvalidAmount(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}

func ErrInsufficientBalance(balance, requested int64) *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired).
		WithDetail("balance", balance).
		WithDetail("requested", requested)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrActorBlocked() *AppError {
	return New(CodeActorBlocked, "You are banned from using the ledger", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Idempotency (IDEM) ----

// ErrRequestInFlight is returned when a request reuses the Idempotency-Key of
// one that has not finished yet.
func ErrRequestInFlight() *AppError {
	return New(CodeRequestInFlight, "A request with this Idempotency-Key is still in progress", http.StatusConflict)
}

// ---- System & Infrastructure (SYS) ----

// ErrPersistence reports that durable storage could not be read or written.
func ErrPersistence(err error) *AppError {
	return Wrap(CodePersistence, "Ledger storage unavailable", http.StatusInternalServerError, err)
}

// ErrEmptyStore reports that durable storage decoded with no records. An empty
// ledger is indistinguishable from a corrupt one and must not be served.
func ErrEmptyStore(location string) *AppError {
	return New(CodeEmptyStore, fmt.Sprintf("ledger storage %q contains no wallets", location), http.StatusInternalServerError)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
