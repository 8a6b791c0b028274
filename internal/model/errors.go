package model

import (
	"errors"
	"fmt"
)

// ErrFieldUnsupported is returned by stores when the host schema lacks a
// field. The reconciler tolerates it and moves on to the next write.
var ErrFieldUnsupported = errors.New("field not supported by host schema")

// ConfigError represents missing or invalid bridge configuration.
// It is raised before any network call is attempted.
type ConfigError struct {
	Setting string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Setting, e.Message)
}

// NewConfigError creates a new config error
func NewConfigError(setting, message string) *ConfigError {
	return &ConfigError{Setting: setting, Message: message}
}

// TransformError represents a failure to build the UBL document.
type TransformError struct {
	InvoiceID string
	Message   string
	Cause     error
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transform %s: %s (%v)", e.InvoiceID, e.Message, e.Cause)
	}
	return fmt.Sprintf("transform %s: %s", e.InvoiceID, e.Message)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// NewTransformError creates a new transform error
func NewTransformError(invoiceID, message string, cause error) *TransformError {
	return &TransformError{InvoiceID: invoiceID, Message: message, Cause: cause}
}

// TransportError represents a network-level submission failure (connection
// refused, timeout). No response body exists when this is returned.
type TransportError struct {
	URL     string
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport %s: %s (%v)", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("transport %s: %s", e.URL, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new transport error
func NewTransportError(url, message string, cause error) *TransportError {
	return &TransportError{URL: url, Message: message, Cause: cause}
}

// APIError represents an HTTP error status from the authority. The parsed
// response body travels with it so the caller can inspect the rejection.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jofotara HTTP %d: %s", e.StatusCode, e.Body)
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, body string) *APIError {
	return &APIError{StatusCode: statusCode, Body: body}
}
