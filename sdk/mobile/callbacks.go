package mobile

import (
	"log/slog"
	"sync"
)

// ErrorCallback is invoked when errors occur in the SDK.
// This interface is gomobile-compatible (single method with basic types).
//
// Parameters:
//   - code: Error code (e.g., "NO_FILL", "AUTH_FAILED")
//   - message: Human-readable error message
//   - severity: 0=debug, 1=warning, 2=critical, 3=fatal
type ErrorCallback interface {
	OnError(code string, message string, severity int)
}

// errorHub fans SDK errors out to the callbacks one Kit has registered.
type errorHub struct {
	mu        sync.RWMutex
	callbacks []ErrorCallback
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func newErrorHub(logger *slog.Logger) *errorHub {
	return &errorHub{logger: logger}
}

func (h *errorHub) register(cb ErrorCallback) {
	if cb == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

func (h *errorHub) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = nil
}

// notify dispatches err to all registered callbacks. Only Warning+ severity
// is delivered. Callbacks run on their own goroutine so a slow host cannot
// stall the SDK.
func (h *errorHub) notify(err *SDKError) {
	if err == nil || err.Severity < SeverityWarning {
		return
	}

	h.mu.RLock()
	callbacks := make([]ErrorCallback, len(h.callbacks))
	copy(callbacks, h.callbacks)
	h.mu.RUnlock()

	for _, cb := range callbacks {
		h.wg.Add(1)
		go func(cb ErrorCallback) {
			defer h.wg.Done()
			cb.OnError(err.Code, err.Message, int(err.Severity))
		}(cb)
	}
}

// log records err at a level matching its severity and notifies callbacks
// for critical and fatal errors.
func (h *errorHub) log(err *SDKError) {
	if err == nil {
		return
	}
	attrs := []any{"code", err.Code, "severity", err.Severity.String()}
	switch err.Severity {
	case SeverityDebug:
		h.logger.Debug(err.Message, attrs...)
	case SeverityWarning:
		h.logger.Warn(err.Message, attrs...)
	case SeverityCritical, SeverityFatal:
		h.logger.Error(err.Message, attrs...)
		h.notify(err)
	}
}

// wait blocks until in-flight callbacks return.
func (h *errorHub) wait() { h.wg.Wait() }
