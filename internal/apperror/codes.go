package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Price-discovery error codes
const (
	// Oracle errors
	CodeOracleSourceError Code = "ORACLE_SOURCE_ERROR"
	CodeOracleParseError  Code = "ORACLE_PARSE_ERROR"
	CodeOracleUnavailable Code = "ORACLE_UNAVAILABLE"

	// Pool data errors
	CodePoolFetchFailed    Code = "POOL_FETCH_FAILED"
	CodeDataValidation     Code = "DATA_VALIDATION_ERROR"
	CodeInvalidPoolRecord  Code = "INVALID_POOL_RECORD"
	CodeStreamDisconnected Code = "STREAM_DISCONNECTED"

	// Conversion errors
	CodeConversionOutOfRange Code = "CONVERSION_OUT_OF_RANGE"

	// Graph / discovery errors
	CodeGraphNotReady    Code = "GRAPH_NOT_READY"
	CodeGraphBuildFailed Code = "GRAPH_BUILD_FAILED"
	CodeTokenNotPriced   Code = "TOKEN_NOT_PRICED"
	CodeNoPathFound      Code = "NO_PATH_FOUND"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
