package lifecycle

import "github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"

// Effect is an instruction produced by Reduce for the Controller to carry out.
type Effect interface {
	effect()
}

// Callback names a host listener method.
type Callback int

const (
	CallbackLoaded Callback = iota
	CallbackImpression
	CallbackClicked
	CallbackFailed
	CallbackClosed
)

func (c Callback) String() string {
	switch c {
	case CallbackLoaded:
		return "loaded"
	case CallbackImpression:
		return "impression"
	case CallbackClicked:
		return "clicked"
	case CallbackFailed:
		return "failed"
	case CallbackClosed:
		return "closed"
	}
	return "unknown"
}

type (
	// Emit sends an analytics event.
	Emit struct{ Event analytics.Event }
	// StartTicker begins periodic Tick delivery.
	StartTicker struct{}
	// StopTicker ends periodic Tick delivery.
	StopTicker struct{}
	// PauseRenderer suspends the renderer (and its video) while off screen.
	PauseRenderer struct{}
	// ResumeRenderer resumes a paused renderer.
	ResumeRenderer struct{}
	// ReleaseRenderer frees the renderer. Always the last renderer effect.
	ReleaseRenderer struct{}
	// Notify invokes a host listener callback.
	Notify struct {
		Callback Callback
		Reason   string // CallbackFailed only
	}
)

func (Emit) effect()            {}
func (StartTicker) effect()     {}
func (StopTicker) effect()      {}
func (PauseRenderer) effect()   {}
func (ResumeRenderer) effect()  {}
func (ReleaseRenderer) effect() {}
func (Notify) effect()          {}
