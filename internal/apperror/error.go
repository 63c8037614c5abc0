package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind groups codes by how a caller should react to them.
type Kind uint8

const (
	KindInternal    Kind = iota
	KindValidation       // bad input; retrying the same call fails again
	KindNotFound
	KindUnavailable // an upstream is down; retrying later may succeed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// AppError is the error type returned across the engine. Callers branch on
// Code; errors.Is matches any two AppErrors with the same code.
type AppError struct {
	Code    Code
	Kind    Kind
	Message string
	Context string
	cause   error
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Context)
		sb.WriteString(")")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// LogValue renders the error as a group so slog handlers emit code and
// context as separate fields.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("kind", e.Kind.String()),
		slog.String("message", e.Message),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Option is a functional option for AppError.
type Option func(*AppError)

// New creates an AppError. Message defaults to the code's entry in the
// message table.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:    code,
		Kind:    kindOf(code),
		Message: messages[code],
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

// WithMessage overrides the table message.
func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext adds context information.
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithCause wraps an underlying error.
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// NotFound creates a not-found error.
func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context))
}

// Validation creates a validation error.
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context))
}

// Validationf creates a validation error with a formatted context.
func Validationf(code Code, format string, args ...any) *AppError {
	return Validation(code, fmt.Sprintf(format, args...))
}

// Sentinel returns a bare error carrying only code, for use with errors.Is.
func Sentinel(code Code) *AppError {
	return &AppError{Code: code, Kind: kindOf(code), Message: messages[code]}
}

// IsAppError reports whether err wraps an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts the error code, or CodeUnknownError.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// IsRetryable reports whether err came from an unavailable upstream. Plain
// errors are treated as retryable since their cause is unknown.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == KindUnavailable
	}
	return true
}

func kindOf(code Code) Kind {
	s := string(code)
	switch {
	case strings.Contains(s, "NOT_FOUND"):
		return KindNotFound
	case strings.HasPrefix(s, "INVALID"),
		code == CodeRequiredField,
		code == CodeValidationError,
		code == CodeDivisionByZero,
		code == CodeInsufficientBalance,
		code == CodeAmountOverflow:
		return KindValidation
	case strings.Contains(s, "CONNECTION"),
		strings.Contains(s, "TIMEOUT"),
		strings.HasPrefix(s, "WEBSOCKET"),
		code == CodeOracleSnapshotFailed,
		code == CodeExternalServiceError,
		code == CodeServiceUnavailable,
		code == CodeRateLimitExceeded,
		code == CodeCircuitOpen:
		return KindUnavailable
	default:
		return KindInternal
	}
}
