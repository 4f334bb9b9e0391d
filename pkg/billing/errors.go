package billing

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses. Not retried: the request
	// itself is wrong (bad identifiers, expired credentials).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a non-2xx response from the billing API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("billing API %s error: %d - %s", e.Class, e.StatusCode, e.Body)
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// errorClass determines the class of any error produced by a request.
func errorClass(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ErrorClassNetwork
}

// shouldRetry reports whether an error class is worth retrying.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassClient:
		// 4xx will fail identically on retry
		return false
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// truncate limits response bodies embedded in error messages.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
