package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/sdk/mobile"
)

const (
	renderDelay   = 150 * time.Millisecond
	layoutTimeout = 15 * time.Second
)

// runScenario plays each ad unit through a scripted session: load, render,
// scroll into view, dwell, click, scroll away and close.
func runScenario(ctx context.Context, kit *mobile.Kit, cfg Config, slots otelmetric.Int64Counter, logger *slog.Logger) {
	kit.SetDeviceInfo(`{"os":"Android","os_version":"14","brand":"Google","model":"Pixel 8",` +
		`"device_type":"phone","screen_width":1080,"screen_height":2400,"density":2.625,"touch_screen":true}`)
	kit.SetNetwork("wifi", "", "")

	for round := 1; round <= cfg.Rounds; round++ {
		for _, unit := range cfg.AdUnitIDs {
			if ctx.Err() != nil {
				return
			}
			outcome := "filled"
			if !playSlot(ctx, kit, unit, cfg, logger.With("round", round, "ad_unit_id", unit)) {
				outcome = "unfilled"
			}
			slots.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}
}

// playSlot reports whether a creative was loaded.
func playSlot(ctx context.Context, kit *mobile.Kit, unit string, cfg Config, logger *slog.Logger) bool {
	events := make(chan string, 16)
	r := &scriptedRenderer{logger: logger, video: cfg.Video}
	view := kit.NewAdView(unit, mobile.AdSizeMediumRectangle, "banner", r)
	r.view = view
	view.SetAdListener(&chanListener{events: events, logger: logger})
	defer view.Destroy()

	if msg := view.LoadAd(cfg.TestMode); msg != "" {
		logger.Warn("load refused", "error", msg)
		return false
	}
	if !await(ctx, events, "loaded") {
		return false
	}

	view.UpdateGeometry(geometry(true))
	if sleep(ctx, cfg.Dwell) {
		view.OnClick()
		view.UpdateGeometry(geometry(false))
		view.OnScrollChanged()
	}
	return true
}

// await blocks until want arrives or the load fails.
func await(ctx context.Context, events <-chan string, want string) bool {
	timer := time.NewTimer(layoutTimeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-events:
			switch ev {
			case want:
				return true
			case "failed":
				return false
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// geometry describes a 300x250 slot either on screen or scrolled below the fold.
func geometry(onScreen bool) string {
	top := 900.0
	scroll := 400.0
	if !onScreen {
		top, scroll = 2600, 0
	}
	frame := rect{Left: 0, Top: top, Right: 300, Bottom: top + 250}
	snap := map[string]any{
		"attached": true,
		"shown":    true,
		"frame":    frame,
		"ancestors": []map[string]any{
			{"frame": rect{Right: 1080, Bottom: 2400}, "scrollable": true, "scroll_y": scroll},
		},
	}
	if onScreen {
		snap["visible"] = frame
	}
	data, _ := json.Marshal(snap)
	return string(data)
}

// scriptedRenderer stands in for the web view. It reports the creative drawn
// shortly after it receives it.
type scriptedRenderer struct {
	view   *mobile.AdView
	logger *slog.Logger
	video  bool
}

func (r *scriptedRenderer) Render(payloadJSON string) {
	var p struct {
		AdElementID string `json:"adElementId"`
		Type        string `json:"type"`
		FileURL     string `json:"fileUrl"`
	}
	_ = json.Unmarshal([]byte(payloadJSON), &p)
	r.logger.Info("rendering creative", "element", p.AdElementID, "type", p.Type, "file_url", p.FileURL)

	time.AfterFunc(renderDelay, func() {
		r.view.OnRenderMessage(`{"type":"RENDER_STATUS","message":"Success"}`)
		if r.video && p.Type == "video" {
			r.view.OnVideoStatus(`{"type":"PLAY"}`)
			r.view.OnVideoStatus(`{"type":"PROGRESS","progress":0.5}`)
		}
	})
}

func (r *scriptedRenderer) Pause()   { r.logger.Debug("renderer paused") }
func (r *scriptedRenderer) Resume()  { r.logger.Debug("renderer resumed") }
func (r *scriptedRenderer) Release() { r.logger.Debug("renderer released") }

type chanListener struct {
	events chan<- string
	logger *slog.Logger
}

func (l *chanListener) OnAdLoaded()     { l.send("loaded") }
func (l *chanListener) OnAdOpened()     { l.send("opened") }
func (l *chanListener) OnAdImpression() { l.send("impression") }
func (l *chanListener) OnAdClicked()    { l.send("clicked") }
func (l *chanListener) OnAdClosed()     { l.send("closed") }
func (l *chanListener) OnAdFailedToLoad(reason string) {
	l.logger.Warn("ad failed to load", "reason", reason)
	l.send("failed")
}

func (l *chanListener) send(ev string) {
	l.logger.Info("ad event", "event", ev)
	select {
	case l.events <- ev:
	default:
	}
}
