package dto

import (
	"net/http"
	"time"
)

const (
	// ErrCodeInvalidRequest indicates an invalid request.
	ErrCodeInvalidRequest = "invalid_request"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"
	// ErrCodeRateLimit indicates rate limit exceeded.
	ErrCodeRateLimit = "rate_limit_exceeded"
	// ErrCodeConflict indicates a conflict with current state.
	ErrCodeConflict = "conflict"
	// ErrCodeTimeout indicates a request timeout.
	ErrCodeTimeout = "timeout"
	// ErrCodeOffline indicates neither the network nor the cache could answer.
	ErrCodeOffline = "offline"
	// ErrCodeUpstream indicates the upstream answered with an error.
	ErrCodeUpstream = "upstream_error"
)

// OfflineMessage is the message of offline placeholder responses.
const OfflineMessage = "Offline - cached data not available"

// SuccessResponse wraps successful API responses with metadata.
type SuccessResponse struct {
	Data      any       `json:"data"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents a standardized error response for the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Details contains additional error details (optional)
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewSuccess wraps data.
func NewSuccess(data any) SuccessResponse {
	return SuccessResponse{Data: data, Timestamp: time.Now()}
}

// WithRequestID adds a request ID to the response.
func (s SuccessResponse) WithRequestID(requestID string) SuccessResponse {
	s.RequestID = requestID
	return s
}

// NewError creates a new ErrorResponse with the given code and message.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewOfflineError is the body of offline API placeholders.
func NewOfflineError() ErrorResponse {
	return NewError(ErrCodeOffline, OfflineMessage)
}

// WithRequestID adds a request ID to the error response.
func (e ErrorResponse) WithRequestID(requestID string) ErrorResponse {
	e.RequestID = requestID
	return e
}

// ErrCodeFromStatus returns the appropriate error code for an HTTP status.
func ErrCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrCodeTimeout
	case http.StatusServiceUnavailable:
		return ErrCodeOffline
	case http.StatusBadGateway:
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}
