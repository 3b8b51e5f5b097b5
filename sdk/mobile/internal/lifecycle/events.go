package lifecycle

import (
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewability"
)

// Event is an input to Reduce. Every event carries the instant it happened.
type Event interface {
	at() time.Time
}

type (
	// RenderSucceeded: the renderer reported the creative drawn.
	RenderSucceeded struct{ At time.Time }
	// RenderFailed: the renderer could not draw the creative.
	RenderFailed struct {
		At     time.Time
		Reason string
	}
	// VisibilityChanged: a fresh geometry measurement after scroll or layout.
	VisibilityChanged struct {
		At    time.Time
		State viewability.State
	}
	// FocusChanged: the hosting window gained or lost focus.
	FocusChanged struct {
		At      time.Time
		Focused bool
	}
	// Tick: periodic re-measurement while waiting for the viewable impression.
	Tick struct {
		At    time.Time
		State viewability.State
	}
	// Clicked: the user tapped the creative.
	Clicked struct{ At time.Time }
	// VideoPlayed, VideoPaused, VideoEnded: player status from the renderer.
	VideoPlayed struct{ At time.Time }
	VideoPaused struct{ At time.Time }
	VideoEnded  struct{ At time.Time }
	// VideoProgressed: fraction of the video played, in [0,1].
	VideoProgressed struct {
		At       time.Time
		Fraction float64
	}
	// Destroyed: the surface is being torn down.
	Destroyed struct{ At time.Time }
)

func (e RenderSucceeded) at() time.Time   { return e.At }
func (e RenderFailed) at() time.Time      { return e.At }
func (e VisibilityChanged) at() time.Time { return e.At }
func (e FocusChanged) at() time.Time      { return e.At }
func (e Tick) at() time.Time              { return e.At }
func (e Clicked) at() time.Time           { return e.At }
func (e VideoPlayed) at() time.Time       { return e.At }
func (e VideoPaused) at() time.Time       { return e.At }
func (e VideoEnded) at() time.Time        { return e.At }
func (e VideoProgressed) at() time.Time   { return e.At }
func (e Destroyed) at() time.Time         { return e.At }
