// Package viewtime accumulates on-screen time and video playback time for one
// ad across any number of visibility and playback transitions.
package viewtime

import "time"

// Totals are accumulated durations.
type Totals struct {
	View     time.Duration
	Playback time.Duration
}

// Accumulator is a value type. The zero value tracks view time only; use New
// to also track playback.
type Accumulator struct {
	video bool

	viewOpen  bool
	viewStart time.Time
	view      time.Duration

	playOpen  bool
	playStart time.Time
	play      time.Duration
}

// New returns an Accumulator. Playback is tracked only when video is true.
func New(video bool) Accumulator {
	return Accumulator{video: video}
}

// Video reports whether playback is tracked.
func (a Accumulator) Video() bool { return a.video }

// OnVisibilityChanged opens a view interval on a transition to visible and
// commits it on a transition to hidden. Repeating the current value is a
// no-op. It reports whether an interval was opened or closed.
func (a *Accumulator) OnVisibilityChanged(visible bool, at time.Time) bool {
	if visible == a.viewOpen {
		return false
	}
	if visible {
		a.viewOpen, a.viewStart = true, at
		return true
	}
	a.view += elapsed(a.viewStart, at)
	a.viewOpen, a.viewStart = false, time.Time{}
	return true
}

// OnPlaybackChanged is OnVisibilityChanged for playback. It is ignored for
// non-video media.
func (a *Accumulator) OnPlaybackChanged(playing bool, at time.Time) bool {
	if !a.video || playing == a.playOpen {
		return false
	}
	if playing {
		a.playOpen, a.playStart = true, at
		return true
	}
	a.play += elapsed(a.playStart, at)
	a.playOpen, a.playStart = false, time.Time{}
	return true
}

// CloseAll commits any open interval. Calling it again is a no-op.
func (a *Accumulator) CloseAll(at time.Time) {
	a.OnVisibilityChanged(false, at)
	a.OnPlaybackChanged(false, at)
}

// ViewOpen reports whether a view interval is open.
func (a Accumulator) ViewOpen() bool { return a.viewOpen }

// PlaybackOpen reports whether a playback interval is open.
func (a Accumulator) PlaybackOpen() bool { return a.playOpen }

// CurrentView is the length of the open view interval at now, or 0.
func (a Accumulator) CurrentView(now time.Time) time.Duration {
	if !a.viewOpen {
		return 0
	}
	return elapsed(a.viewStart, now)
}

// Totals returns committed durations only.
func (a Accumulator) Totals() Totals {
	return Totals{View: a.view, Playback: a.play}
}

// Snapshot returns totals as if every open interval closed at now, without
// closing them.
func (a Accumulator) Snapshot(now time.Time) Totals {
	a.CloseAll(now)
	return a.Totals()
}

// elapsed clamps a backwards clock to zero.
func elapsed(from, to time.Time) time.Duration {
	if d := to.Sub(from); d > 0 {
		return d
	}
	return 0
}
