package domain

import "github.com/fd1az/autosave-engine/internal/apperror"

// Sentinels for errors.Is. Calculators return fresh *apperror.AppError values
// carrying context; they compare equal to these by code.
var (
	ErrInvalidPercentage   = apperror.Sentinel(apperror.CodeInvalidPercentage)
	ErrInvalidRange        = apperror.Sentinel(apperror.CodeInvalidRange)
	ErrDivisionByZero      = apperror.Sentinel(apperror.CodeDivisionByZero)
	ErrInsufficientBalance = apperror.Sentinel(apperror.CodeInsufficientBalance)
	ErrInvalidComparison   = apperror.Sentinel(apperror.CodeInvalidComparison)
	ErrAmountOverflow      = apperror.Sentinel(apperror.CodeAmountOverflow)
)

func invalidPercentage(field string, bps BasisPoints) error {
	return apperror.Validationf(apperror.CodeInvalidPercentage, "%s=%d bps exceeds %d", field, bps, MaxBps)
}

func invalidRange(format string, args ...any) error {
	return apperror.Validationf(apperror.CodeInvalidRange, format, args...)
}

func divisionByZero(what string) error {
	return apperror.Validation(apperror.CodeDivisionByZero, what)
}

func insufficientBalance(format string, args ...any) error {
	return apperror.Validationf(apperror.CodeInsufficientBalance, format, args...)
}

func invalidComparison(format string, args ...any) error {
	return apperror.Validationf(apperror.CodeInvalidComparison, format, args...)
}
