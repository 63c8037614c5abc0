package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Policy engine error codes
const (
	CodeInvalidPercentage   Code = "INVALID_PERCENTAGE"
	CodeInvalidRange        Code = "INVALID_RANGE"
	CodeDivisionByZero      Code = "DIVISION_BY_ZERO"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeInvalidComparison   Code = "INVALID_COMPARISON"
	CodeAmountOverflow      Code = "AMOUNT_OVERFLOW"
)

// Market data error codes
const (
	CodeOracleConnectionFailed Code = "ORACLE_CONNECTION_FAILED"
	CodeOracleSnapshotFailed   Code = "ORACLE_SNAPSHOT_FAILED"
	CodeInvalidSnapshot        Code = "INVALID_SNAPSHOT"
	CodeSnapshotNotFound       Code = "SNAPSHOT_NOT_FOUND"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
