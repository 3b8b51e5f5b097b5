package lifecycle

import (
	"testing"
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewability"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func ms(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

var (
	onScreen  = viewability.State{Ratio: 0.9, Visible: true, ScrollDepth: 1}
	offScreen = viewability.State{Ratio: 0.1, Visible: false, ScrollDepth: 1}
)

// run feeds events in order and collects every effect.
func run(s State, evs ...Event) (State, []Effect) {
	var all []Effect
	for _, ev := range evs {
		var fx []Effect
		s, fx = Reduce(s, ev)
		all = append(all, fx...)
	}
	return s, all
}

func emitted(fx []Effect) []analytics.Event {
	var out []analytics.Event
	for _, f := range fx {
		if e, ok := f.(Emit); ok {
			out = append(out, e.Event)
		}
	}
	return out
}

func countType(fx []Effect, typ analytics.Type) int {
	n := 0
	for _, ev := range emitted(fx) {
		if ev.Type() == typ {
			n++
		}
	}
	return n
}

func notified(fx []Effect, cb Callback) []Notify {
	var out []Notify
	for _, f := range fx {
		if n, ok := f.(Notify); ok && n.Callback == cb {
			out = append(out, n)
		}
	}
	return out
}

func display() State { return NewState(MediaDisplay, t0, Config{}) }
func video() State   { return NewState(MediaVideo, t0, Config{}) }

func TestRenderSucceeded_ImpressionOnce(t *testing.T) {
	s, fx := run(display(),
		RenderSucceeded{At: ms(250)},
		RenderSucceeded{At: ms(400)},
	)

	if got := countType(fx, analytics.TypeImpression); got != 1 {
		t.Fatalf("IMPRESSION emitted %d times, want 1", got)
	}
	imp := emitted(fx)[0].(analytics.Impression)
	if imp.RenderTime != 250*time.Millisecond {
		t.Errorf("RenderTime = %v, want 250ms", imp.RenderTime)
	}
	if len(notified(fx, CallbackLoaded)) != 1 {
		t.Error("OnAdLoaded should fire exactly once")
	}
	if !s.Flags.Impression || s.Phase != PhaseRendered {
		t.Errorf("state after render: %+v", s)
	}
}

func TestViewableImpression_AtMostOnce(t *testing.T) {
	_, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		Tick{At: ms(1000), State: onScreen},
		VisibilityChanged{At: ms(1500), State: offScreen},
		VisibilityChanged{At: ms(2000), State: onScreen},
		Tick{At: ms(3100), State: onScreen},
		VisibilityChanged{At: ms(3200), State: onScreen},
	)

	if got := countType(fx, analytics.TypeView); got != 1 {
		t.Fatalf("VIEW emitted %d times, want 1", got)
	}
	if len(notified(fx, CallbackImpression)) != 1 {
		t.Fatal("OnAdImpression should fire exactly once")
	}
}

func TestDwellRestartsAfterHide(t *testing.T) {
	s, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		Tick{At: ms(600), State: onScreen},
		VisibilityChanged{At: ms(600), State: offScreen},
		VisibilityChanged{At: ms(700), State: onScreen},
		Tick{At: ms(1600), State: onScreen},
	)
	if countType(fx, analytics.TypeView) != 0 {
		t.Fatal("VIEW fired on 600ms + 900ms of split dwell")
	}

	_, fx = run(s, Tick{At: ms(1700), State: onScreen})
	views := emitted(fx)
	if len(views) != 1 {
		t.Fatalf("expected VIEW after 1000ms continuous dwell, got %v", views)
	}
	if v := views[0].(analytics.View); v.ViewTime != time.Second {
		t.Errorf("ViewTime = %v, want 1s", v.ViewTime)
	}
}

func TestTotalViewTime_SumsIntervals(t *testing.T) {
	_, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VisibilityChanged{At: ms(500), State: offScreen},
		VisibilityChanged{At: ms(800), State: onScreen},
		VisibilityChanged{At: ms(1300), State: offScreen},
		Destroyed{At: ms(5000)},
	)

	var total analytics.TotalViewTime
	for _, ev := range emitted(fx) {
		if tv, ok := ev.(analytics.TotalViewTime); ok {
			total = tv
		}
	}
	if total.Total != time.Second {
		t.Fatalf("TotalViewTime = %v, want 1s", total.Total)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	base, _ := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
	)

	_, once := run(base, Destroyed{At: ms(2000)})
	_, twice := run(base, Destroyed{At: ms(2000)}, Destroyed{At: ms(3000)})

	if len(once) != len(twice) {
		t.Fatalf("second destroy produced effects: once=%d twice=%d", len(once), len(twice))
	}
	if countType(twice, analytics.TypeTotalViewTime) != 1 || countType(twice, analytics.TypeTotalPlaybackTime) != 1 {
		t.Fatalf("expected one of each total, got %v", emitted(twice))
	}
	if len(notified(twice, CallbackClosed)) != 1 {
		t.Fatal("OnAdClosed should fire once")
	}
}

func TestDestroy_EffectOrder(t *testing.T) {
	base, _ := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
	)
	_, fx := run(base, Destroyed{At: ms(500)})

	var order []string
	for _, f := range fx {
		switch e := f.(type) {
		case StopTicker:
			order = append(order, "stop")
		case Emit:
			order = append(order, string(e.Event.Type()))
		case ReleaseRenderer:
			order = append(order, "release")
		case Notify:
			order = append(order, e.Callback.String())
		}
	}
	want := []string{"stop", "TOTAL_VIEW_TIME", "TOTAL_PLAYBACK_TIME", "release", "closed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestScenario_ContinuousHighRatioView(t *testing.T) {
	_, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		Tick{At: ms(1200), State: onScreen},
	)

	views := emitted(fx)
	var v analytics.View
	n := 0
	for _, ev := range views {
		if vv, ok := ev.(analytics.View); ok {
			v = vv
			n++
		}
	}
	if n != 1 {
		t.Fatalf("VIEW emitted %d times, want 1", n)
	}
	if v.ViewTime != 1200*time.Millisecond || v.VisibilityRatio != 0.9 {
		t.Fatalf("VIEW = %+v", v)
	}
	if v.TimeToVisible != 1200*time.Millisecond || v.ScrollDepth != 1 {
		t.Fatalf("VIEW = %+v", v)
	}
}

func TestScenario_NeverViewable(t *testing.T) {
	low := viewability.State{Ratio: 0.49, ScrollDepth: 0.2}
	evs := []Event{RenderSucceeded{At: ms(0)}}
	for i := 0; i < 100; i++ {
		evs = append(evs, VisibilityChanged{At: ms(i * 100), State: low})
	}
	evs = append(evs, Destroyed{At: ms(60_000)})

	_, fx := run(display(), evs...)

	if countType(fx, analytics.TypeView) != 0 {
		t.Fatal("VIEW emitted for an ad that never reached the threshold")
	}
	if countType(fx, analytics.TypeTotalViewTime) != 0 {
		t.Fatal("TOTAL_VIEW_TIME should be skipped when nothing was viewed")
	}
	for _, f := range fx {
		if _, ok := f.(StartTicker); ok {
			t.Fatal("ticker started for an ad that was never visible")
		}
	}
}

func TestScenario_VideoPlaybackTotal(t *testing.T) {
	_, fx := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
		VideoPaused{At: ms(3000)},
		VideoPlayed{At: ms(4000)},
		VideoPaused{At: ms(6000)},
		Destroyed{At: ms(7000)},
		Destroyed{At: ms(8000)},
	)

	var totals []analytics.TotalPlaybackTime
	for _, ev := range emitted(fx) {
		if tp, ok := ev.(analytics.TotalPlaybackTime); ok {
			totals = append(totals, tp)
		}
	}
	if len(totals) != 1 {
		t.Fatalf("TOTAL_PLAYBACK_TIME emitted %d times, want 1", len(totals))
	}
	if totals[0].Total != 5*time.Second {
		t.Fatalf("TotalPlaybackTime = %v, want 5s", totals[0].Total)
	}
}

func TestScenario_RenderFailure(t *testing.T) {
	s, fx := run(display(),
		RenderFailed{At: ms(100), Reason: "net::ERR_NAME_NOT_RESOLVED"},
		RenderFailed{At: ms(200), Reason: "again"},
		RenderSucceeded{At: ms(300)},
		VisibilityChanged{At: ms(300), State: onScreen},
		Clicked{At: ms(400)},
		Destroyed{At: ms(500)},
	)

	if got := emitted(fx); len(got) != 0 {
		t.Fatalf("analytics emitted after a render failure: %v", got)
	}
	failed := notified(fx, CallbackFailed)
	if len(failed) != 1 || failed[0].Reason != "net::ERR_NAME_NOT_RESOLVED" {
		t.Fatalf("failure callbacks = %+v", failed)
	}
	if len(notified(fx, CallbackClosed)) != 0 {
		t.Fatal("a failed load is not closed")
	}
	if s.Phase != PhaseDestroyed {
		t.Fatalf("phase = %v, want destroyed", s.Phase)
	}
}

func TestRenderFailure_AfterRenderIgnored(t *testing.T) {
	s, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		RenderFailed{At: ms(50), Reason: "late"},
	)
	if len(notified(fx, CallbackFailed)) != 0 || s.Phase == PhaseDestroyed {
		t.Fatal("a failure after render must be ignored")
	}
}

func TestFocusGatesVisibility(t *testing.T) {
	s, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		FocusChanged{At: ms(400), Focused: false},
		Tick{At: ms(1200), State: onScreen},
	)
	if countType(fx, analytics.TypeView) != 0 {
		t.Fatal("VIEW fired while the window had no focus")
	}
	if s.Ticking || s.Time.ViewOpen() {
		t.Fatal("losing focus should close the interval and stop ticking")
	}

	s, fx = run(s,
		FocusChanged{At: ms(2000), Focused: true},
		Tick{At: ms(3000), State: onScreen},
	)
	if countType(fx, analytics.TypeView) != 1 {
		t.Fatal("VIEW should fire after 1000ms of focused visibility")
	}

	_, fx = run(s, Destroyed{At: ms(3500)})
	for _, ev := range emitted(fx) {
		if tv, ok := ev.(analytics.TotalViewTime); ok && tv.Total != 1900*time.Millisecond {
			t.Fatalf("TotalViewTime = %v, want 1.9s", tv.Total)
		}
	}
}

func TestVisibleDuringLoading_IntervalStartsAtRender(t *testing.T) {
	s, fx := run(display(),
		VisibilityChanged{At: ms(0), State: onScreen},
		RenderSucceeded{At: ms(300)},
	)
	if !s.Time.ViewOpen() || s.Phase != PhaseViewable {
		t.Fatalf("interval should open at render: %+v", s)
	}
	started := false
	for _, f := range fx {
		if _, ok := f.(StartTicker); ok {
			started = true
		}
	}
	if !started {
		t.Fatal("ticker should start when the interval opens")
	}

	_, fx = run(s, Destroyed{At: ms(800)})
	for _, ev := range emitted(fx) {
		if tv, ok := ev.(analytics.TotalViewTime); ok && tv.Total != 500*time.Millisecond {
			t.Fatalf("TotalViewTime = %v, want 500ms", tv.Total)
		}
	}
}

func TestVideoPausesOffScreenAndResumes(t *testing.T) {
	s, fx := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
		VisibilityChanged{At: ms(2000), State: offScreen},
	)
	paused := false
	for _, f := range fx {
		if _, ok := f.(PauseRenderer); ok {
			paused = true
		}
	}
	if !paused || s.Playback != NotPlaying {
		t.Fatal("video should pause when scrolled out")
	}

	s, fx = run(s, VisibilityChanged{At: ms(5000), State: onScreen})
	resumed := false
	for _, f := range fx {
		if _, ok := f.(ResumeRenderer); ok {
			resumed = true
		}
	}
	if !resumed || s.Playback != Playing {
		t.Fatal("video should resume when back on screen")
	}

	_, fx = run(s, Destroyed{At: ms(6000)})
	for _, ev := range emitted(fx) {
		if tp, ok := ev.(analytics.TotalPlaybackTime); ok && tp.Total != 3*time.Second {
			t.Fatalf("TotalPlaybackTime = %v, want 3s (hidden time excluded)", tp.Total)
		}
	}
}

func TestVideoPausesOnFocusLossWhileNotViewable(t *testing.T) {
	s, fx := run(video(),
		VisibilityChanged{At: ms(0), State: offScreen},
		RenderSucceeded{At: ms(0)},
		VideoPlayed{At: ms(0)},
		FocusChanged{At: ms(1000), Focused: false},
	)
	pauses := 0
	for _, f := range fx {
		if _, ok := f.(PauseRenderer); ok {
			pauses++
		}
	}
	if pauses != 1 || s.Playback != NotPlaying {
		t.Fatalf("PauseRenderer effects = %d, playback = %v; want 1 pause and not playing", pauses, s.Playback)
	}

	_, fx = run(s, Destroyed{At: ms(5000)})
	var totals []analytics.TotalPlaybackTime
	for _, ev := range emitted(fx) {
		if tp, ok := ev.(analytics.TotalPlaybackTime); ok {
			totals = append(totals, tp)
		}
	}
	if len(totals) != 1 || totals[0].Total != time.Second {
		t.Fatalf("TotalPlaybackTime = %v, want one 1s total", totals)
	}
}

func TestVideoFocusLossWhileViewable_PausesOnce(t *testing.T) {
	s, fx := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
		FocusChanged{At: ms(400), Focused: false},
	)
	pauses := 0
	for _, f := range fx {
		if _, ok := f.(PauseRenderer); ok {
			pauses++
		}
	}
	if pauses != 1 {
		t.Fatalf("PauseRenderer effects = %d, want 1", pauses)
	}

	s, _ = run(s, FocusChanged{At: ms(900), Focused: true})
	if s.Playback != Playing {
		t.Fatal("video cut by focus loss should resume when the ad is visible again")
	}
	if got := s.Time.Totals().Playback; got != 400*time.Millisecond {
		t.Fatalf("Playback = %v, want 400ms", got)
	}
}

func TestVideoEnded_NoResume(t *testing.T) {
	s, _ := run(video(),
		RenderSucceeded{At: ms(0)},
		VisibilityChanged{At: ms(0), State: onScreen},
		VideoPlayed{At: ms(0)},
		VideoEnded{At: ms(1000)},
		VideoEnded{At: ms(1100)},
		VideoPlayed{At: ms(1200)},
		VisibilityChanged{At: ms(1500), State: offScreen},
	)
	_, fx := run(s, VisibilityChanged{At: ms(2000), State: onScreen})
	for _, f := range fx {
		if _, ok := f.(ResumeRenderer); ok {
			t.Fatal("ended video must not resume")
		}
	}
	if s.Time.Totals().Playback != time.Second {
		t.Fatalf("Playback = %v, want 1s", s.Time.Totals().Playback)
	}
}

func TestVideoQuartiles_EachOnce(t *testing.T) {
	_, fx := run(video(),
		RenderSucceeded{At: ms(0)},
		VideoProgressed{At: ms(100), Fraction: 0.3},
		VideoProgressed{At: ms(200), Fraction: 0.8},
		VideoProgressed{At: ms(300), Fraction: 0.8},
		VideoProgressed{At: ms(400), Fraction: 1},
	)

	var got []int
	for _, ev := range emitted(fx) {
		if q, ok := ev.(analytics.VideoQuartile); ok {
			got = append(got, q.Quartile)
		}
	}
	want := []int{25, 50, 75, 100}
	if len(got) != len(want) {
		t.Fatalf("quartiles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("quartiles = %v, want %v", got, want)
		}
	}
}

func TestDisplayIgnoresVideoEvents(t *testing.T) {
	s, fx := run(display(),
		RenderSucceeded{At: ms(0)},
		VideoPlayed{At: ms(0)},
		VideoProgressed{At: ms(10), Fraction: 1},
		Destroyed{At: ms(1000)},
	)
	if countType(fx, analytics.TypeVideoQuartile) != 0 || countType(fx, analytics.TypeTotalPlaybackTime) != 0 {
		t.Fatal("display ads must not report video analytics")
	}
	if s.Time.Totals().Playback != 0 {
		t.Fatal("display ads must not accumulate playback")
	}
}

func TestClicks(t *testing.T) {
	_, fx := run(display(),
		Clicked{At: ms(0)},
		RenderSucceeded{At: ms(100)},
		Clicked{At: ms(200)},
		Clicked{At: ms(300)},
	)
	if got := countType(fx, analytics.TypeClick); got != 2 {
		t.Fatalf("CLICK emitted %d times, want 2 (clicks before render are ignored)", got)
	}
	if len(notified(fx, CallbackClicked)) != 2 {
		t.Fatal("OnAdClicked should fire per click")
	}
}

func TestTickWithoutTickerIgnored(t *testing.T) {
	s, _ := run(display(), RenderSucceeded{At: ms(0)})
	next, fx := Reduce(s, Tick{At: ms(5000), State: onScreen})
	if len(fx) != 0 || next.Time.ViewOpen() {
		t.Fatal("a stray tick must not change state")
	}
}
