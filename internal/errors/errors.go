package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrorCode represents a category of client-side error.
type ErrorCode string

const (
	// ErrCodeAuthentication indicates rejected credentials on login.
	ErrCodeAuthentication ErrorCode = "authentication"
	// ErrCodeSessionExpired indicates an authenticated call came back unauthorized.
	ErrCodeSessionExpired ErrorCode = "session_expired"
	// ErrCodeValidation indicates invalid input, usually with field-level messages.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeServer covers 5xx responses, network failures and malformed bodies.
	ErrCodeServer ErrorCode = "server"
	// ErrCodeRequest covers the remaining 4xx responses the backend rejected.
	ErrCodeRequest ErrorCode = "request"
	// ErrCodeNotFound indicates the backend reported a missing resource.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates the backend reported a conflicting state.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeDuplicateCartItem indicates a bill is already in the cart.
	ErrCodeDuplicateCartItem ErrorCode = "duplicate_cart_item"
	// ErrCodeEmptyCart indicates checkout was attempted with nothing selected.
	ErrCodeEmptyCart ErrorCode = "empty_cart"
	// ErrCodeInFlight indicates the same operation is already running.
	ErrCodeInFlight ErrorCode = "in_flight"
	// ErrCodeInternal indicates a local failure (storage, encoding).
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message, usually supplied by the backend
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the first offending field for validation errors (optional)
	Field string
	// Fields holds every field-level message reported by the backend (optional)
	Fields map[string][]string
	// Status is the HTTP status of the originating response, zero when none
	Status int
	// Body is the raw response body of the originating response (optional)
	Body []byte
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.describe()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// describe names an error that carries no message of its own.
func (e *AppError) describe() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d %s)", e.Code, e.Status, http.StatusText(e.Status))
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Authentication creates a new Authentication error.
func Authentication(message string) *AppError {
	return &AppError{
		Code:    ErrCodeAuthentication,
		Message: message,
	}
}

// SessionExpired creates a new SessionExpired error.
func SessionExpired(message string) *AppError {
	return &AppError{
		Code:    ErrCodeSessionExpired,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
		Fields:  map[string][]string{field: {message}},
	}
}

// ValidationFields creates a Validation error carrying every field message.
// Field is set to the alphabetically first field so callers get a stable pick.
func ValidationFields(message string, fields map[string][]string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   firstField(fields),
		Fields:  fields,
	}
}

// Server creates a new Server error.
func Server(message string) *AppError {
	return &AppError{
		Code:    ErrCodeServer,
		Message: message,
	}
}

// DuplicateCartItem creates the error returned when a bill is already selected.
func DuplicateCartItem(billID string) *AppError {
	return &AppError{
		Code:    ErrCodeDuplicateCartItem,
		Message: "Tagihan ini sudah ada di keranjang.",
		Field:   billID,
	}
}

// EmptyCart creates the error returned when checkout has nothing to submit.
func EmptyCart() *AppError {
	return &AppError{
		Code:    ErrCodeEmptyCart,
		Message: "Keranjang kosong.",
	}
}

// InFlight creates the error returned when an operation is already running.
func InFlight(operation string) *AppError {
	return &AppError{
		Code:    ErrCodeInFlight,
		Message: operation + " sedang diproses",
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
// HTTP metadata from a wrapped AppError is carried over so callers can
// still inspect the original status and body.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	wrapped := &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
	var inner *AppError
	if errors.As(err, &inner) {
		wrapped.Status = inner.Status
		wrapped.Body = inner.Body
		wrapped.Fields = inner.Fields
		wrapped.Field = inner.Field
	}
	return wrapped
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsAuthentication checks if an error is an Authentication error.
func IsAuthentication(err error) bool {
	return isCode(err, ErrCodeAuthentication)
}

// IsSessionExpired checks if an error is a SessionExpired error.
func IsSessionExpired(err error) bool {
	return isCode(err, ErrCodeSessionExpired)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsServer checks if an error is a Server error.
func IsServer(err error) bool {
	return isCode(err, ErrCodeServer)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsDuplicateCartItem checks if an error is a DuplicateCartItem error.
func IsDuplicateCartItem(err error) bool {
	return isCode(err, ErrCodeDuplicateCartItem)
}

// IsEmptyCart checks if an error is an EmptyCart error.
func IsEmptyCart(err error) bool {
	return isCode(err, ErrCodeEmptyCart)
}

// IsInFlight checks if an error is an InFlight error.
func IsInFlight(err error) bool {
	return isCode(err, ErrCodeInFlight)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// GetFields returns the field-level messages carried by an error, if any.
func GetFields(err error) map[string][]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}

// StatusOf returns the HTTP status recorded on the outermost AppError that has one.
func StatusOf(err error) int {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return 0
		}
		if appErr.Status != 0 {
			return appErr.Status
		}
		err = appErr.Cause
	}
	return 0
}

// UserMessage returns the message to surface to a user, falling back when
// the error carries none (network failures, local errors).
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// FirstFieldMessage returns the first message of the first field, or "".
func FirstFieldMessage(err error) string {
	fields := GetFields(err)
	if msgs := fields[firstField(fields)]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func firstField(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
