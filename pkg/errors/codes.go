package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeUnknown            ErrorCode = "COMMON_999"
)

// Annexure core error codes. These are the five failure kinds surfaced by the
// schema-evolution, record-store and reporting components.
const (
	ErrCodeAnnexureValidation     ErrorCode = "ANX_001"
	ErrCodeAnnexureNotFound       ErrorCode = "ANX_002"
	ErrCodeAnnexureSchemaConflict ErrorCode = "ANX_003"
	ErrCodeAnnexureComputation    ErrorCode = "ANX_004"
	ErrCodeAnnexureStorage        ErrorCode = "ANX_005"
)

// Short aliases used at call sites.
const (
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrCodeUnknown
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeCacheError     = ErrCodeCacheError
	CodeMessageQueue   = ErrCodeExternalService
	CodeValidation     = ErrCodeAnnexureValidation
	CodeRecordNotFound = ErrCodeAnnexureNotFound
	CodeSchemaConflict = ErrCodeAnnexureSchemaConflict
	CodeComputation    = ErrCodeAnnexureComputation
	CodeStorage        = ErrCodeAnnexureStorage
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeAnnexureValidation:     http.StatusUnprocessableEntity,
	ErrCodeAnnexureNotFound:       http.StatusNotFound,
	ErrCodeAnnexureSchemaConflict: http.StatusConflict,
	ErrCodeAnnexureComputation:    http.StatusUnprocessableEntity,
	ErrCodeAnnexureStorage:        http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeAnnexureValidation:     "invalid identifier or form definition",
	ErrCodeAnnexureNotFound:       "schema, case or table not found",
	ErrCodeAnnexureSchemaConflict: "concurrent schema migration collision",
	ErrCodeAnnexureComputation:    "turnaround computation failed",
	ErrCodeAnnexureStorage:        "storage unavailable",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
