package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewability"
)

// Renderer is the host component drawing the creative.
type Renderer interface {
	Pause()
	Resume()
	Release()
}

// Emitter accepts analytics events without blocking.
type Emitter interface {
	Emit(a analytics.Ambient, ev analytics.Event)
}

// Options configure a Controller. Renderer, Emitter and Notify may be nil.
type Options struct {
	Media    Media
	Config   Config
	Tracker  viewability.Tracker
	Clock    Clock
	Renderer Renderer
	Emitter  Emitter
	Ambient  analytics.Ambient
	Notify   func(Notify)
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Controller owns the State of one ad load. Events are reduced one at a time
// in arrival order; effects run outside the lock, so a listener may call back
// into the Controller without deadlocking. Such re-entrant events are queued
// and reduced after the current event's effects.
type Controller struct {
	clock    Clock
	tracker  viewability.Tracker
	renderer Renderer
	emitter  Emitter
	ambient  analytics.Ambient
	notify   func(Notify)
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	pending  []Event
	draining bool
	stopTick func()

	surfMu  sync.RWMutex
	surface viewability.Surface
}

// NewController starts tracking a load whose render begins now.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.Discard()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		clock:    opts.Clock,
		tracker:  opts.Tracker,
		renderer: opts.Renderer,
		emitter:  opts.Emitter,
		ambient:  opts.Ambient,
		notify:   opts.Notify,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "lifecycle", "ad_space_id", opts.Ambient.AdSpaceID),
		state:    NewState(opts.Media, opts.Clock.Now(), opts.Config),
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispatch reduces ev and applies its effects.
func (c *Controller) Dispatch(ev Event) {
	c.mu.Lock()
	c.pending = append(c.pending, ev)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		next := c.pending[0]
		c.pending = c.pending[1:]

		before := c.state.Phase
		var fx []Effect
		c.state, fx = Reduce(c.state, next)
		after := c.state.Phase

		c.mu.Unlock()
		if before != after {
			c.logger.Debug("ad phase changed", "from", before, "to", after)
		}
		c.apply(fx)
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

// SetSurface replaces the measured surface and re-measures it.
func (c *Controller) SetSurface(s viewability.Surface) {
	c.surfMu.Lock()
	c.surface = s
	c.surfMu.Unlock()
	c.CheckVisibility()
}

// CheckVisibility re-measures the current surface.
func (c *Controller) CheckVisibility() {
	c.Dispatch(VisibilityChanged{At: c.clock.Now(), State: c.measure()})
}

// RenderSucceeded reports the creative drawn.
func (c *Controller) RenderSucceeded() { c.Dispatch(RenderSucceeded{At: c.clock.Now()}) }

// RenderFailed reports the creative could not be drawn.
func (c *Controller) RenderFailed(reason string) {
	c.Dispatch(RenderFailed{At: c.clock.Now(), Reason: reason})
}

// FocusChanged reports window focus.
func (c *Controller) FocusChanged(focused bool) {
	c.Dispatch(FocusChanged{At: c.clock.Now(), Focused: focused})
}

// Clicked reports a tap on the creative.
func (c *Controller) Clicked() { c.Dispatch(Clicked{At: c.clock.Now()}) }

// VideoPlayed, VideoPaused, VideoEnded and VideoProgressed report player status.
func (c *Controller) VideoPlayed() { c.Dispatch(VideoPlayed{At: c.clock.Now()}) }
func (c *Controller) VideoPaused() { c.Dispatch(VideoPaused{At: c.clock.Now()}) }
func (c *Controller) VideoEnded()  { c.Dispatch(VideoEnded{At: c.clock.Now()}) }
func (c *Controller) VideoProgressed(fraction float64) {
	c.Dispatch(VideoProgressed{At: c.clock.Now(), Fraction: fraction})
}

// Destroy tears the load down. Later calls are no-ops.
func (c *Controller) Destroy() { c.Dispatch(Destroyed{At: c.clock.Now()}) }

func (c *Controller) measure() viewability.State {
	c.surfMu.RLock()
	s := c.surface
	c.surfMu.RUnlock()
	return c.tracker.Recompute(s)
}

func (c *Controller) tick() {
	c.Dispatch(Tick{At: c.clock.Now(), State: c.measure()})
}

func (c *Controller) apply(fx []Effect) {
	for _, f := range fx {
		switch e := f.(type) {
		case Emit:
			if imp, ok := e.Event.(analytics.Impression); ok {
				c.metrics.RenderLatency.Record(context.Background(), float64(imp.RenderTime.Milliseconds()))
			}
			if c.emitter != nil {
				c.emitter.Emit(c.ambient, e.Event)
			}
		case StartTicker:
			c.startTicker()
		case StopTicker:
			c.stopTicker()
		case PauseRenderer:
			if c.renderer != nil {
				c.renderer.Pause()
			}
		case ResumeRenderer:
			if c.renderer != nil {
				c.renderer.Resume()
			}
		case ReleaseRenderer:
			c.stopTicker()
			if c.renderer != nil {
				c.renderer.Release()
			}
		case Notify:
			if c.notify != nil {
				c.notify(e)
			}
		}
	}
}

func (c *Controller) startTicker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopTick != nil {
		return
	}
	c.stopTick = c.clock.Every(c.state.Config.TickInterval, c.tick)
}

func (c *Controller) stopTicker() {
	c.mu.Lock()
	stop := c.stopTick
	c.stopTick = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}
