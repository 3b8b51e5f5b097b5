// Package viewability measures how much of a mounted ad is on screen and how
// far the user scrolled to reach it.
//
// The tracker is pure: it reads a Surface and returns a State. Callers
// re-invoke it on every scroll, layout, focus change and periodic tick.
package viewability

// DefaultThreshold is the visible fraction at which an ad counts as viewable.
const DefaultThreshold = 0.5

// State is the outcome of one visibility measurement.
type State struct {
	Ratio       float64 // visible area / total area, in [0,1]
	Visible     bool    // Ratio >= threshold
	ScrollDepth float64 // in [0,1]
}

// Tracker computes State against a fixed threshold.
type Tracker struct {
	threshold float64
}

// NewTracker returns a Tracker. Thresholds outside (0,1] fall back to
// DefaultThreshold.
func NewTracker(threshold float64) Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return Tracker{threshold: threshold}
}

// Threshold returns the configured viewability threshold.
func (t Tracker) Threshold() float64 {
	if t.threshold == 0 {
		return DefaultThreshold
	}
	return t.threshold
}

// Recompute measures s. A detached, hidden, zero-sized or fully clipped
// surface reports Ratio 0 and not visible. A nil surface is treated the same.
func (t Tracker) Recompute(s Surface) State {
	if s == nil {
		return State{}
	}
	st := State{ScrollDepth: ScrollDepth(s)}
	if !s.Attached() || !s.Shown() {
		return st
	}

	total := s.Bounds().Area()
	if total <= 0 {
		return st
	}
	vis, ok := s.VisibleBounds()
	if !ok {
		return st
	}
	// The visible rect can never exceed the frame, whatever the host reports.
	vis = vis.Intersect(s.Bounds())

	st.Ratio = clamp01(vis.Area() / total)
	st.Visible = st.Ratio >= t.Threshold()
	return st
}

// ScrollDepth reports how far the nearest scrollable ancestor has scrolled
// toward the ad: 1 when there is no scrollable ancestor or the ad needs no
// scrolling to reach, otherwise offset/required clamped to [0,1].
func ScrollDepth(s Surface) float64 {
	if s == nil {
		return 1
	}
	var scroller Container
	for c := s.Parent(); c != nil; c = c.Parent() {
		if c.Scrollable() {
			scroller = c
			break
		}
	}
	if scroller == nil {
		return 1
	}

	required := s.Bounds().Top - scroller.Bounds().Top
	if required <= 0 {
		return 1
	}
	return clamp01(scroller.ScrollOffset() / required)
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
