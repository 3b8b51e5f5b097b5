package lifecycle

import (
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"
)

var quartileMarks = [4]int{25, 50, 75, 100}

// Reduce applies ev to s. It never mutates shared data: State is a value and
// the returned effects are new. Events that do not apply in the current phase
// return s unchanged and no effects.
func Reduce(s State, ev Event) (State, []Effect) {
	if s.Phase == PhaseDestroyed {
		return s, nil
	}

	var fx []Effect
	switch e := ev.(type) {
	case RenderSucceeded:
		if s.Phase != PhaseLoading || s.Flags.Impression {
			return s, nil
		}
		s.Flags.Impression = true
		s.Phase = PhaseRendered
		fx = append(fx,
			Emit{analytics.Impression{RenderTime: since(s.RenderStart, e.At)}},
			Notify{Callback: CallbackLoaded},
		)
		fx = s.settle(e.At, fx)

	case RenderFailed:
		if s.Phase != PhaseLoading {
			return s, nil
		}
		s.Phase = PhaseDestroyed
		fx = append(fx, ReleaseRenderer{}, Notify{Callback: CallbackFailed, Reason: e.Reason})

	case VisibilityChanged:
		s.Geometry = e.State
		if s.Phase.live() {
			fx = s.settle(e.At, fx)
		}

	case Tick:
		if !s.Ticking {
			return s, nil
		}
		s.Geometry = e.State
		fx = s.settle(e.At, fx)

	case FocusChanged:
		s.Focused = e.Focused
		if s.Phase.live() {
			fx = s.settle(e.At, fx)
			if !e.Focused && s.Playback == Playing {
				fx = s.pausePlayback(e.At, fx)
			}
		}

	case Clicked:
		if !s.Phase.live() {
			return s, nil
		}
		fx = append(fx, Emit{analytics.Click{}}, Notify{Callback: CallbackClicked})

	case VideoPlayed:
		if s.Media != MediaVideo || s.Phase == PhaseLoading || s.Flags.Ended {
			return s, nil
		}
		s.Playback = Playing
		s.resumePlayback = false
		s.Time.OnPlaybackChanged(true, e.At)

	case VideoPaused:
		if s.Media != MediaVideo || s.Playback != Playing {
			return s, nil
		}
		s.Playback = NotPlaying
		s.resumePlayback = false
		s.Time.OnPlaybackChanged(false, e.At)

	case VideoEnded:
		if s.Media != MediaVideo || s.Flags.Ended {
			return s, nil
		}
		s.Flags.Ended = true
		s.Playback = Ended
		s.resumePlayback = false
		s.Time.OnPlaybackChanged(false, e.At)

	case VideoProgressed:
		if s.Media != MediaVideo || !s.Phase.live() {
			return s, nil
		}
		pct := e.Fraction * 100
		for i, mark := range quartileMarks {
			if pct >= float64(mark) && !s.Flags.Quartiles[i] {
				s.Flags.Quartiles[i] = true
				fx = append(fx, Emit{analytics.VideoQuartile{Quartile: mark}})
			}
		}

	case Destroyed:
		fx = s.destroy(e.At)
	}

	return s, fx
}

// settle reconciles the open view interval with effective visibility, then
// checks whether the viewable impression is due.
func (s *State) settle(at time.Time, fx []Effect) []Effect {
	visible := s.EffectivelyVisible()

	switch {
	case visible && !s.Time.ViewOpen():
		s.Time.OnVisibilityChanged(true, at)
		s.Phase = PhaseViewable
		if !s.Flags.ViewableImpression && !s.Ticking {
			s.Ticking = true
			fx = append(fx, StartTicker{})
		}
		if s.Media == MediaVideo && !s.Flags.Ended {
			fx = append(fx, ResumeRenderer{})
			if s.resumePlayback {
				s.resumePlayback = false
				s.Playback = Playing
				s.Time.OnPlaybackChanged(true, at)
			}
		}

	case !visible && s.Time.ViewOpen():
		s.Time.OnVisibilityChanged(false, at)
		s.Phase = PhaseNotViewable
		if s.Ticking {
			s.Ticking = false
			fx = append(fx, StopTicker{})
		}
		fx = s.pausePlayback(at, fx)
	}

	if s.Time.ViewOpen() && !s.Flags.ViewableImpression {
		dwell := s.Time.CurrentView(at)
		if dwell >= s.Config.MinViewTime {
			s.Flags.ViewableImpression = true
			fx = append(fx,
				Emit{analytics.View{
					TimeToVisible:   since(s.RenderStart, at),
					ScrollDepth:     s.Geometry.ScrollDepth,
					VisibilityRatio: s.Geometry.Ratio,
					ViewTime:        dwell,
				}},
				Notify{Callback: CallbackImpression},
			)
			if s.Ticking {
				s.Ticking = false
				fx = append(fx, StopTicker{})
			}
		}
	}
	return fx
}

// pausePlayback tells the renderer to pause a video that is still running
// and closes the playback interval. Playback cut this way resumes on the
// next visible transition.
func (s *State) pausePlayback(at time.Time, fx []Effect) []Effect {
	if s.Media != MediaVideo || s.Flags.Ended {
		return fx
	}
	fx = append(fx, PauseRenderer{})
	if s.Playback == Playing {
		s.Playback = NotPlaying
		s.resumePlayback = true
		s.Time.OnPlaybackChanged(false, at)
	}
	return fx
}

// destroy closes intervals, flushes totals, then releases the renderer.
func (s *State) destroy(at time.Time) []Effect {
	wasLive := s.Phase.live()

	s.Time.CloseAll(at)
	s.Phase = PhaseDestroyed
	s.Playback = NotPlaying
	s.resumePlayback = false

	var fx []Effect
	if s.Ticking {
		s.Ticking = false
		fx = append(fx, StopTicker{})
	}

	totals := s.Time.Totals()
	if s.Flags.Impression && totals.View > 0 {
		fx = append(fx, Emit{analytics.TotalViewTime{Total: totals.View}})
	}
	if s.Media == MediaVideo && totals.Playback > 0 && !s.Flags.SentPlaybackTotal {
		s.Flags.SentPlaybackTotal = true
		fx = append(fx, Emit{analytics.TotalPlaybackTime{Total: totals.Playback}})
	}

	fx = append(fx, ReleaseRenderer{})
	if wasLive {
		fx = append(fx, Notify{Callback: CallbackClosed})
	}
	return fx
}

func since(from, to time.Time) time.Duration {
	if d := to.Sub(from); d > 0 {
		return d
	}
	return 0
}
