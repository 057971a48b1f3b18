package dto

import (
	"net/http"

	"github.com/medistore/backend/internal/domain/shared"
)

// Error codes returned in ErrorInfo.Code
const (
	ErrCodeInternal      = "ERR_INTERNAL"
	ErrCodeValidation    = "ERR_VALIDATION"
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeUnauthorized  = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired  = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenRevoked  = "ERR_TOKEN_REVOKED"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeUnavailable   = "ERR_UNAVAILABLE"
	ErrCodeRateLimited   = "ERR_RATE_LIMITED"
	ErrCodeTooLarge      = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeValidation:    http.StatusBadRequest,
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeTokenExpired:  http.StatusUnauthorized,
	ErrCodeTokenRevoked:  http.StatusUnauthorized,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
	ErrCodeRateLimited:   http.StatusTooManyRequests,
	ErrCodeTooLarge:      http.StatusRequestEntityTooLarge,
}

// domainCodes maps shared.DomainError codes to API error codes
var domainCodes = map[string]string{
	shared.CodeAuth:          ErrCodeUnauthorized,
	shared.CodeNotFound:      ErrCodeNotFound,
	shared.CodeUnavailable:   ErrCodeUnavailable,
	shared.CodeInvalidInput:  ErrCodeInvalidInput,
	shared.CodeAlreadyExists: ErrCodeAlreadyExists,
	shared.CodeRateLimited:   ErrCodeRateLimited,
	shared.CodeInvalidState:  ErrCodeInvalidState,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromDomainCode converts a domain error code to the API code, or ErrCodeInternal
func FromDomainCode(code string) string {
	if c, ok := domainCodes[code]; ok {
		return c
	}
	return ErrCodeInternal
}

// ToDomainCode converts an API error code back to a domain code. Token
// failures collapse to the auth code; unknown codes map to "".
func ToDomainCode(code string) string {
	switch code {
	case ErrCodeTokenExpired, ErrCodeTokenRevoked:
		return shared.CodeAuth
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeTooLarge:
		return shared.CodeInvalidInput
	}
	for domain, api := range domainCodes {
		if api == code {
			return domain
		}
	}
	return ""
}
