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

	// Oracle errors
	CodeOracleSourceError: "Oracle source request failed",
	CodeOracleParseError:  "Oracle source response could not be parsed",
	CodeOracleUnavailable: "No oracle price available from any source or cache",

	// Pool data errors
	CodePoolFetchFailed:    "Failed to fetch pool snapshot",
	CodeDataValidation:     "Pool record failed validation",
	CodeInvalidPoolRecord:  "Invalid pool record",
	CodeStreamDisconnected: "Pool update stream disconnected",

	// Conversion errors
	CodeConversionOutOfRange: "Decimal conversion out of range",

	// Graph / discovery errors
	CodeGraphNotReady:    "Liquidity graph has not been built yet",
	CodeGraphBuildFailed: "Liquidity graph rebuild failed",
	CodeTokenNotPriced:   "Token has no anchor-connected price",
	CodeNoPathFound:      "No path to the anchor token",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
