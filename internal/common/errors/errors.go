// Package errors provides the structured error type shared by the HTTP API and
// the job worker, plus its mapping onto HTTP statuses and BPMN errors.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeMalformedBody    ErrorCode = "MALFORMED_BODY"
	ErrCodeUnseenCategory   ErrorCode = "UNSEEN_CATEGORY"
	ErrCodeBatchTooLarge    ErrorCode = "BATCH_TOO_LARGE"
	ErrCodeEmptyBatch       ErrorCode = "EMPTY_BATCH"
	ErrCodeModelNotLoaded   ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeModelLoadFailed  ErrorCode = "MODEL_LOAD_FAILED"
	ErrCodeInferenceFailed  ErrorCode = "INFERENCE_FAILED"
	ErrCodePredictTimeout   ErrorCode = "PREDICTION_TIMEOUT"
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeAuditFailed      ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// BPMNError represents an error thrown back to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for Camunda job variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError reports a record that failed schema validation.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Input validation failed", details, false)
}

// NewMalformedBodyError reports a body that is not parseable JSON.
func NewMalformedBodyError(err error) *StandardError {
	return newError(ErrCodeMalformedBody, "Request body is not valid JSON", err.Error(), false)
}

// NewUnseenCategoryError reports a categorical label outside the model vocabulary.
func NewUnseenCategoryError(column, value string) *StandardError {
	return newError(ErrCodeUnseenCategory, "Categorical value not known to the model",
		fmt.Sprintf("column: %s, value: %q", column, value), false).
		WithMetadata("column", column)
}

func NewBatchTooLargeError(size, limit int) *StandardError {
	return newError(ErrCodeBatchTooLarge, "Batch exceeds the configured limit",
		fmt.Sprintf("size: %d, limit: %d", size, limit), false)
}

func NewEmptyBatchError() *StandardError {
	return newError(ErrCodeEmptyBatch, "Batch contains no records", "", false)
}

func NewModelNotLoadedError() *StandardError {
	return newError(ErrCodeModelNotLoaded, "Model is not loaded", "", true)
}

func NewModelLoadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeModelLoadFailed, "Model artifact could not be loaded",
		fmt.Sprintf("path: %s, error: %s", path, err.Error()), false)
}

func NewInferenceFailedError(err error) *StandardError {
	return newError(ErrCodeInferenceFailed, "Model inference failed", err.Error(), false)
}

func NewPredictTimeoutError() *StandardError {
	return newError(ErrCodePredictTimeout, "Prediction timed out", "", true)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Prediction cache unavailable", err.Error(), true)
}

func NewAuditFailedError(sink string, err error) *StandardError {
	return newError(ErrCodeAuditFailed, fmt.Sprintf("Audit sink '%s' write failed", sink), err.Error(), true)
}

// Normalize converts any error into a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// HTTPStatus maps an error code to the response status of the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMalformedBody:
		return http.StatusBadRequest
	case ErrCodeInvalidInput, ErrCodeUnseenCategory, ErrCodeEmptyBatch:
		return http.StatusUnprocessableEntity
	case ErrCodeBatchTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeModelNotLoaded, ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodePredictTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelNotLoaded, ErrCodeCacheUnavailable, ErrCodeAuditFailed:
		return 3
	case ErrCodePredictTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "BODY") ||
		strings.Contains(codeStr, "CATEGORY") || strings.Contains(codeStr, "BATCH"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "INFERENCE") ||
		strings.Contains(codeStr, "PREDICTION"):
		return "MODEL"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}
