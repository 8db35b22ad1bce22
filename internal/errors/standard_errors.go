// Package errors provides a uniform error taxonomy for the knowledge store:
// Validation, Transient, Fetcher, integrity conflicts (AlreadyExists,
// NotFound, Unauthorized), Internal, and Fatal, surfaced at public
// boundaries as a single StandardError envelope. A language skip has no
// error code; the Ingestion Pipeline reports it as a skipped result.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fredcamaral/gomcp-sdk/protocol"
)

// ErrorCode classifies a StandardError for programmatic handling.
type ErrorCode string

const (
	// ErrorCodeValidation rejects a request at the boundary; user-visible.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrorCodeRequiredField ErrorCode = "REQUIRED_FIELD"
	ErrorCodeInvalidValue  ErrorCode = "INVALID_VALUE"

	// ErrorCodeTransient marks a retried storage-busy condition that
	// exhausted its retry budget.
	ErrorCodeTransient ErrorCode = "TRANSIENT_BUSY"

	// ErrorCodeFetcher marks a per-URL fetch failure; never fatal to a crawl.
	ErrorCodeFetcher ErrorCode = "FETCHER_ERROR"

	// ErrorCodeAlreadyExists marks an integrity conflict, e.g. a duplicate
	// blocklist pattern.
	ErrorCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"

	// ErrorCodeInternal is a catch-all for unexpected failures that are not
	// one of the above.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeFatal marks schema/extension/configuration failures at
	// startup; the process exits.
	ErrorCodeFatal ErrorCode = "FATAL_ERROR"
)

// StandardError is the unified error envelope returned at all public
// boundaries: {success:false, error:...} wraps ErrorInfo.Message.
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
}

func (e *StandardError) Error() string {
	return e.ErrorInfo.Message
}

// ErrorDetails is the body of a StandardError.
type ErrorDetails struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ValidationDetail names the offending field.
type ValidationDetail struct {
	Field  string      `json:"field"`
	Reason string      `json:"reason"`
	Value  interface{} `json:"value,omitempty"`
}

func NewStandardError(code ErrorCode, message string, details interface{}) *StandardError {
	return &StandardError{ErrorInfo: ErrorDetails{Code: code, Message: message, Details: details}}
}

func NewValidationError(field, reason string, value interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeValidation,
			Message: fmt.Sprintf("validation failed for field %q: %s", field, reason),
			Details: ValidationDetail{Field: field, Reason: reason, Value: value},
		},
	}
}

func NewRequiredFieldError(field string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeRequiredField,
			Message: fmt.Sprintf("required field %q is missing", field),
			Details: ValidationDetail{Field: field, Reason: "missing_required_field"},
		},
	}
}

// NewTransientError wraps a storage-busy failure that exhausted retries.
func NewTransientError(op string, cause error) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeTransient,
			Message: fmt.Sprintf("%s: storage busy after retries: %v", op, cause),
		},
	}
}

// NewFetcherError wraps a per-URL fetch failure; callers append it to a
// failed-URL list rather than aborting.
func NewFetcherError(url string, cause error) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeFetcher,
			Message: fmt.Sprintf("fetch %s: %v", url, cause),
			Details: map[string]string{"url": url},
		},
	}
}

func NewAlreadyExistsError(what string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{Code: ErrorCodeAlreadyExists, Message: fmt.Sprintf("%s already exists", what)},
	}
}

func NewNotFoundError(what string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{Code: ErrorCodeNotFound, Message: fmt.Sprintf("%s not found", what)},
	}
}

func NewUnauthorizedError(reason string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{Code: ErrorCodeUnauthorized, Message: "unauthorized", Details: map[string]string{"reason": reason}},
	}
}

func NewInternalError(message string, cause error) *StandardError {
	details := map[string]interface{}{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	if cause != nil {
		details["original_error"] = cause.Error()
	}
	return &StandardError{ErrorInfo: ErrorDetails{Code: ErrorCodeInternal, Message: message, Details: details}}
}

// NewFatalError marks a schema/extension/config failure. Callers at
// startup should log it and exit with a non-zero status.
func NewFatalError(message string, cause error) *StandardError {
	details := map[string]interface{}{}
	if cause != nil {
		details["original_error"] = cause.Error()
	}
	return &StandardError{ErrorInfo: ErrorDetails{Code: ErrorCodeFatal, Message: message, Details: details}}
}

func (e *StandardError) WithTraceID(traceID string) *StandardError {
	e.ErrorInfo.TraceID = traceID
	return e
}

// ToJSONRPCError maps a StandardError onto the JSON-RPC error codes used by
// the tool front-end; unexpected internal failures map to -32603.
func (e *StandardError) ToJSONRPCError(id interface{}) *protocol.JSONRPCResponse {
	var rpcCode int
	switch e.ErrorInfo.Code {
	case ErrorCodeValidation, ErrorCodeRequiredField, ErrorCodeInvalidValue:
		rpcCode = -32602
	case ErrorCodeNotFound:
		rpcCode = -32601
	case ErrorCodeUnauthorized:
		rpcCode = -32000
	case ErrorCodeAlreadyExists:
		rpcCode = -32001
	case ErrorCodeTransient, ErrorCodeFetcher:
		rpcCode = -32002
	default:
		rpcCode = -32603
	}
	return &protocol.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &protocol.JSONRPCError{
			Code:    rpcCode,
			Message: e.ErrorInfo.Message,
			Data:    e,
		},
	}
}

func (e *StandardError) ToHTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeValidation, ErrorCodeRequiredField, ErrorCodeInvalidValue:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeAlreadyExists:
		return http.StatusConflict
	case ErrorCodeTransient:
		return http.StatusServiceUnavailable
	case ErrorCodeFetcher:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *StandardError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *StandardError) WriteHTTPError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if e.ErrorInfo.TraceID != "" {
		w.Header().Set("X-Trace-ID", e.ErrorInfo.TraceID)
	}
	w.WriteHeader(e.ToHTTPStatus())
	b, _ := e.ToJSON()
	_, _ = w.Write(b)
}

func IsValidationError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeValidation ||
		err.ErrorInfo.Code == ErrorCodeRequiredField ||
		err.ErrorInfo.Code == ErrorCodeInvalidValue
}

func IsTransientError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeTransient
}

func IsFatalError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeFatal
}
