package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Policy engine
	CodeInvalidPercentage:   "Basis points must be within [0, 10000]",
	CodeInvalidRange:        "Invalid range for policy parameters",
	CodeDivisionByZero:      "Division by zero",
	CodeInsufficientBalance: "Withdrawal exceeds available balance",
	CodeInvalidComparison:   "Amounts cannot be compared",
	CodeAmountOverflow:      "Amount does not fit in 256 bits",

	// Market data
	CodeOracleConnectionFailed: "Failed to connect to tick oracle",
	CodeOracleSnapshotFailed:   "Failed to fetch tick snapshot",
	CodeInvalidSnapshot:        "Invalid tick snapshot",
	CodeSnapshotNotFound:       "No tick snapshot for pool",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Circuit breaker errors
	CodeCircuitOpen: "Circuit breaker is open",
}
