// gemini_errors.go - Categorisation of Gemini API failures for logs and results

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Error categories attached to failed pair results.
const (
	CategoryBadRequest      = "bad_request"
	CategoryUnauthorized    = "unauthorized"
	CategoryForbidden       = "forbidden"
	CategoryNotFound        = "not_found"
	CategoryPayloadTooLarge = "payload_too_large"
	CategoryRateLimit       = "rate_limit"
	CategoryServerError     = "server_error"
	CategoryUnknownAPIError = "unknown_api_error"
	CategoryTimeout         = "timeout"
	CategoryCanceled        = "canceled"
	CategoryQuotaExceeded   = "quota_exceeded"
	CategoryNetworkError    = "network_error"
	CategoryPromptNotLoaded = "prompt_not_loaded"
	CategoryEmptyResponse   = "empty_response"
	CategoryUnknown         = "unknown"
)

// GeminiError represents a categorized Gemini API error. It wraps the
// original error, so errors.Is/As still see the upstream cause.
type GeminiError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
}

func (e *GeminiError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d)", e.Category, e.Message, e.StatusCode)
}

func (e *GeminiError) Unwrap() error {
	return e.OriginalError
}

// CategorizeError classifies a failure from Evaluate. It returns nil for nil.
func CategorizeError(err error) *GeminiError {
	if err == nil {
		return nil
	}

	geminiErr := &GeminiError{
		OriginalError: err,
		Category:      CategoryUnknown,
		Message:       err.Error(),
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		geminiErr.StatusCode = apiErr.Code

		switch apiErr.Code {
		case http.StatusBadRequest:
			geminiErr.Category = CategoryBadRequest
			geminiErr.Message = "Invalid request format or parameters"
		case http.StatusUnauthorized:
			geminiErr.Category = CategoryUnauthorized
			geminiErr.Message = "Invalid API key or authentication failed"
		case http.StatusForbidden:
			geminiErr.Category = CategoryForbidden
			geminiErr.Message = "API key lacks required permissions"
		case http.StatusNotFound:
			geminiErr.Category = CategoryNotFound
			geminiErr.Message = "Model not found or invalid endpoint"
		case http.StatusRequestEntityTooLarge:
			geminiErr.Category = CategoryPayloadTooLarge
			geminiErr.Message = "Request size exceeds limit (reduce image size)"
		case http.StatusTooManyRequests:
			geminiErr.Category = CategoryRateLimit
			geminiErr.Message = "Rate limit exceeded - too many requests"
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			geminiErr.Category = CategoryServerError
			geminiErr.Message = fmt.Sprintf("Gemini server error (%d)", apiErr.Code)
		default:
			geminiErr.Category = CategoryUnknownAPIError
			geminiErr.Message = fmt.Sprintf("API error: %s", apiErr.Message)
		}
		return geminiErr
	}

	switch {
	case errors.Is(err, ErrPromptNotLoaded):
		geminiErr.Category = CategoryPromptNotLoaded
		return geminiErr
	case errors.Is(err, ErrEmptyResponse):
		geminiErr.Category = CategoryEmptyResponse
		return geminiErr
	case errors.Is(err, context.DeadlineExceeded):
		geminiErr.Category = CategoryTimeout
		geminiErr.Message = "Request timeout - processing took too long"
		return geminiErr
	case errors.Is(err, context.Canceled):
		geminiErr.Category = CategoryCanceled
		geminiErr.Message = "Request was canceled"
		return geminiErr
	}

	// Check error message for common patterns
	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "resource_exhausted"):
		geminiErr.Category = CategoryQuotaExceeded
		geminiErr.Message = "API quota exceeded"
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		geminiErr.Category = CategoryTimeout
		geminiErr.Message = "Request timeout"
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network"):
		geminiErr.Category = CategoryNetworkError
		geminiErr.Message = "Network connection error"
	}
	return geminiErr
}
