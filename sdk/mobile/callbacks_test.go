package mobile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/creative"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/transport"
)

// mockCallback implements ErrorCallback for testing.
type mockCallback struct {
	mu       sync.Mutex
	calls    []mockCallbackCall
	received chan struct{}
}

type mockCallbackCall struct {
	Code     string
	Message  string
	Severity int
}

func newMockCallback() *mockCallback {
	return &mockCallback{
		received: make(chan struct{}, 10),
	}
}

func (m *mockCallback) OnError(code string, message string, severity int) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCallbackCall{
		Code:     code,
		Message:  message,
		Severity: severity,
	})
	m.mu.Unlock()
	m.received <- struct{}{}
}

func (m *mockCallback) waitForCalls(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-m.received:
		case <-deadline:
			return false
		}
	}
	return true
}

func (m *mockCallback) getCalls() []mockCallbackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]mockCallbackCall, len(m.calls))
	copy(result, m.calls)
	return result
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorHub_ReceivesCritical(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)

	hub.notify(newCriticalError(ErrCodeAuthFailed, "authentication failed: invalid API key"))

	if !cb.waitForCalls(1, time.Second) {
		t.Fatal("callback not invoked within timeout")
	}

	calls := cb.getCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Code != ErrCodeAuthFailed {
		t.Errorf("Code = %q, want %q", calls[0].Code, ErrCodeAuthFailed)
	}
	if calls[0].Message != "authentication failed: invalid API key" {
		t.Errorf("Message = %q, want %q", calls[0].Message, "authentication failed: invalid API key")
	}
	if calls[0].Severity != int(SeverityCritical) {
		t.Errorf("Severity = %d, want %d", calls[0].Severity, int(SeverityCritical))
	}
}

func TestErrorHub_ReceivesFatal(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)

	hub.notify(newFatalError(ErrCodeDiskError, "cannot open storage"))

	if !cb.waitForCalls(1, time.Second) {
		t.Fatal("callback not invoked within timeout")
	}
	calls := cb.getCalls()
	if calls[0].Severity != int(SeverityFatal) {
		t.Errorf("Severity = %d, want %d", calls[0].Severity, int(SeverityFatal))
	}
}

func TestErrorHub_NotifyDeliversWarning(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)

	hub.notify(newWarningError(ErrCodeNoFill, "no creative returned"))

	if !cb.waitForCalls(1, time.Second) {
		t.Fatal("callback not invoked within timeout for warning")
	}
}

func TestErrorHub_IgnoresDebug(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)

	hub.notify(&SDKError{Code: "DEBUG_INFO", Message: "debug message", Severity: SeverityDebug})
	hub.wait()

	if calls := cb.getCalls(); len(calls) != 0 {
		t.Errorf("expected 0 calls for debug severity, got %d", len(calls))
	}
}

func TestErrorHub_MultipleCallbacksAllNotified(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cbs := []*mockCallback{newMockCallback(), newMockCallback(), newMockCallback()}
	for _, cb := range cbs {
		hub.register(cb)
	}

	hub.notify(newCriticalError(ErrCodeServerError, "server returned 500"))

	for i, cb := range cbs {
		if !cb.waitForCalls(1, time.Second) {
			t.Fatalf("callback %d not invoked within timeout", i+1)
		}
		if calls := cb.getCalls(); calls[0].Code != ErrCodeServerError {
			t.Errorf("callback %d: Code = %q, want %q", i+1, calls[0].Code, ErrCodeServerError)
		}
	}
}

func TestErrorHub_ClearRemovesAll(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)
	hub.clear()

	hub.notify(newCriticalError(ErrCodeAuthFailed, "should not be received"))
	hub.wait()

	if calls := cb.getCalls(); len(calls) != 0 {
		t.Errorf("expected 0 calls after clear, got %d", len(calls))
	}
}

func TestErrorHub_InstancesAreIsolated(t *testing.T) {
	a := newErrorHub(discardLogger())
	b := newErrorHub(discardLogger())
	cbA := newMockCallback()
	cbB := newMockCallback()
	a.register(cbA)
	b.register(cbB)

	a.notify(newCriticalError(ErrCodeServerError, "only a"))
	a.wait()
	b.wait()

	if len(cbA.getCalls()) != 1 {
		t.Errorf("hub a callback calls = %d, want 1", len(cbA.getCalls()))
	}
	if len(cbB.getCalls()) != 0 {
		t.Errorf("hub b callback calls = %d, want 0", len(cbB.getCalls()))
	}
}

// slowCallback simulates a slow callback handler.
type slowCallback struct {
	callCount *atomic.Int32
}

func (s *slowCallback) OnError(code string, message string, severity int) {
	time.Sleep(100 * time.Millisecond)
	s.callCount.Add(1)
}

func TestErrorHub_CallbackDoesNotBlock(t *testing.T) {
	hub := newErrorHub(discardLogger())
	var callCount atomic.Int32
	hub.register(&slowCallback{callCount: &callCount})

	start := time.Now()
	hub.notify(newCriticalError(ErrCodeNetworkError, "network timeout"))
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("notify blocked for %v, should return immediately", elapsed)
	}

	hub.wait()
	if callCount.Load() != 1 {
		t.Errorf("slow callback invocation count = %d, want 1", callCount.Load())
	}
}

func TestErrorHub_NilInputsNoOp(t *testing.T) {
	hub := newErrorHub(discardLogger())
	hub.register(nil)
	cb := newMockCallback()
	hub.register(cb)

	hub.notify(nil)
	hub.log(nil)
	hub.wait()

	if calls := cb.getCalls(); len(calls) != 0 {
		t.Errorf("expected 0 calls for nil error, got %d", len(calls))
	}
}

func TestErrorHub_LogOnlyEscalatesCritical(t *testing.T) {
	hub := newErrorHub(discardLogger())
	cb := newMockCallback()
	hub.register(cb)

	hub.log(newWarningError(ErrCodeNoFill, "logged only"))
	hub.log(&SDKError{Code: "DEBUG", Message: "debug", Severity: SeverityDebug})
	hub.log(newCriticalError(ErrCodeAuthFailed, "escalated"))
	hub.wait()

	calls := cb.getCalls()
	if len(calls) != 1 || calls[0].Code != ErrCodeAuthFailed {
		t.Errorf("calls = %+v, want a single %s", calls, ErrCodeAuthFailed)
	}
}

func TestErrorSeverity_String(t *testing.T) {
	tests := []struct {
		severity ErrorSeverity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityWarning, "warning"},
		{SeverityCritical, "critical"},
		{SeverityFatal, "fatal"},
		{ErrorSeverity(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSDKError_ToJSON(t *testing.T) {
	err := &SDKError{Code: ErrCodeAuthFailed, Message: "auth failed", Severity: SeverityCritical}

	var parsed SDKError
	if unmarshalErr := json.Unmarshal([]byte(err.ToJSON()), &parsed); unmarshalErr != nil {
		t.Fatalf("ToJSON produced invalid JSON: %v", unmarshalErr)
	}
	if parsed.Code != ErrCodeAuthFailed || parsed.Message != "auth failed" || parsed.Severity != SeverityCritical {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestWrapError(t *testing.T) {
	if got := wrapError(nil); got != "" {
		t.Errorf("wrapError(nil) = %q, want empty", got)
	}
	if got := wrapError(&SDKError{Message: "test error"}); got != "test error" {
		t.Errorf("wrapError(err) = %q, want %q", got, "test error")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantSev  ErrorSeverity
	}{
		{"no fill", fmt.Errorf("fetch: %w", creative.ErrNoFill), ErrCodeNoFill, SeverityWarning},
		{"empty creative", creative.ErrEmptyCreative, ErrCodeNoFill, SeverityWarning},
		{"invalid request", creative.ErrInvalidRequest, ErrCodeInvalidAdUnit, SeverityCritical},
		{"malformed", creative.ErrMalformed, ErrCodeServerError, SeverityCritical},
		{"unauthorized", fmt.Errorf("non-retryable error: %w", &transport.StatusError{StatusCode: 401}), ErrCodeAuthFailed, SeverityCritical},
		{"rate limited", &transport.StatusError{StatusCode: 429}, ErrCodeRateLimited, SeverityWarning},
		{"server", &transport.StatusError{StatusCode: 503}, ErrCodeServerError, SeverityCritical},
		{"network", errors.New("dial tcp: connection refused"), ErrCodeNetworkError, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Severity != tt.wantSev {
				t.Errorf("Severity = %v, want %v", got.Severity, tt.wantSev)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should unwrap to its cause")
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
	sdkErr := newWarningError(ErrCodeQueueFull, "full")
	if classify(sdkErr) != sdkErr {
		t.Error("classify should pass SDKErrors through")
	}
}
