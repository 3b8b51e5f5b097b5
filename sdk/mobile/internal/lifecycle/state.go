// Package lifecycle decides, for one ad load, when the ad is rendered,
// viewable, clicked and torn down, and which analytics and host callbacks
// each of those moments produces.
//
// The decision logic is a pure reducer: Reduce(State, Event) returns the next
// State and a list of Effects. Controller drives the reducer from host input
// and a ticker and executes the effects.
package lifecycle

import (
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewtime"
)

// Phase is the coarse state of one ad load.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseRendered
	PhaseViewable
	PhaseNotViewable
	PhaseDestroyed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseRendered:
		return "rendered"
	case PhaseViewable:
		return "viewable"
	case PhaseNotViewable:
		return "not_viewable"
	case PhaseDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// live reports whether the creative is on the surface.
func (p Phase) live() bool {
	return p == PhaseRendered || p == PhaseViewable || p == PhaseNotViewable
}

// Media distinguishes display creatives from video.
type Media int

const (
	MediaDisplay Media = iota
	MediaVideo
)

// Playback is the video sub-state.
type Playback int

const (
	NotPlaying Playback = iota
	Playing
	Ended
)

// Defaults for Config.
const (
	DefaultMinViewTime  = time.Second
	DefaultTickInterval = 100 * time.Millisecond
)

// Config holds timing thresholds.
type Config struct {
	MinViewTime  time.Duration
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinViewTime < 0 {
		c.MinViewTime = 0
	}
	if c.MinViewTime == 0 {
		c.MinViewTime = DefaultMinViewTime
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	return c
}

// Flags record one-time facts. Each flips from false to true at most once.
type Flags struct {
	Impression         bool
	ViewableImpression bool
	Ended              bool
	SentPlaybackTotal  bool
	Quartiles          [4]bool // 25, 50, 75, 100
}

// State is everything the reducer knows about one ad load.
type State struct {
	Phase    Phase
	Media    Media
	Playback Playback
	Flags    Flags
	Time     viewtime.Accumulator

	Config Config

	// RenderStart is when the creative was handed to the renderer.
	RenderStart time.Time
	Geometry    viewability.State
	Focused     bool
	Ticking     bool

	// resumePlayback is set when playback was cut short by the ad leaving
	// the screen, so it resumes when the ad returns.
	resumePlayback bool
}

// NewState returns the initial state for a load whose render started at
// renderStart. The window is assumed focused until told otherwise.
func NewState(media Media, renderStart time.Time, cfg Config) State {
	return State{
		Phase:       PhaseLoading,
		Media:       media,
		Time:        viewtime.New(media == MediaVideo),
		Config:      cfg.withDefaults(),
		RenderStart: renderStart,
		Focused:     true,
	}
}

// EffectivelyVisible is geometric visibility gated by window focus.
func (s State) EffectivelyVisible() bool {
	return s.Geometry.Visible && s.Focused
}
