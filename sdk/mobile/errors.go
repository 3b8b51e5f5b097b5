package mobile

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/creative"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/transport"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity int

const (
	// SeverityDebug is informational, logged in debug mode only.
	SeverityDebug ErrorSeverity = iota
	// SeverityWarning is non-critical, SDK continues operating.
	SeverityWarning
	// SeverityCritical is a serious issue, app should handle.
	SeverityCritical
	// SeverityFatal means SDK cannot operate, requires reinitialization.
	SeverityFatal
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	case SeverityFatal:
		return "fatal"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Error codes for categorization.
const (
	ErrCodeNotInitialized = "NOT_INITIALIZED"
	ErrCodeInvalidConfig  = "INVALID_CONFIG"
	ErrCodeInvalidJSON    = "INVALID_JSON"
	ErrCodeNetworkError   = "NETWORK_ERROR"
	ErrCodeAuthFailed     = "AUTH_FAILED"
	ErrCodeDiskError      = "DISK_ERROR"
	ErrCodeQueueFull      = "QUEUE_FULL"
	ErrCodeServerError    = "SERVER_ERROR"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeNoFill         = "NO_FILL"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodeInvalidAdUnit  = "INVALID_AD_UNIT"
	ErrCodeAlreadyLoading = "ALREADY_LOADING"
)

// SDKError represents a structured error with severity and code.
type SDKError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Severity ErrorSeverity `json:"severity"`

	err error
}

// Error implements the error interface.
func (e *SDKError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *SDKError) Unwrap() error { return e.err }

// ToJSON serializes the error for native wrappers.
func (e *SDKError) ToJSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

func newWarningError(code, message string) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityWarning}
}

func newCriticalError(code, message string) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityCritical}
}

func newFatalError(code, message string) *SDKError {
	return &SDKError{Code: code, Message: message, Severity: SeverityFatal}
}

// classify maps an internal failure onto a host-facing SDKError.
func classify(err error) *SDKError {
	if err == nil {
		return nil
	}
	var sdkErr *SDKError
	if errors.As(err, &sdkErr) {
		return sdkErr
	}

	out := newCriticalError(ErrCodeNetworkError, err.Error())
	var status *transport.StatusError
	switch {
	case errors.Is(err, creative.ErrNoFill), errors.Is(err, creative.ErrEmptyCreative):
		out = newWarningError(ErrCodeNoFill, err.Error())
	case errors.Is(err, creative.ErrInvalidRequest):
		out = newCriticalError(ErrCodeInvalidAdUnit, err.Error())
	case errors.Is(err, creative.ErrMalformed), errors.Is(err, transport.ErrDecode):
		out = newCriticalError(ErrCodeServerError, err.Error())
	case errors.As(err, &status):
		switch {
		case status.StatusCode == 401 || status.StatusCode == 403:
			out = newCriticalError(ErrCodeAuthFailed, err.Error())
		case status.StatusCode == 429:
			out = newWarningError(ErrCodeRateLimited, err.Error())
		case status.StatusCode >= 500:
			out = newCriticalError(ErrCodeServerError, err.Error())
		}
	}
	out.err = err
	return out
}

// wrapError returns empty string for nil, error message otherwise.
// Used by exported functions that return string instead of error.
func wrapError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func invalidConfig(err error) *SDKError {
	e := newFatalError(ErrCodeInvalidConfig, fmt.Sprintf("invalid config: %v", err))
	e.err = err
	return e
}
