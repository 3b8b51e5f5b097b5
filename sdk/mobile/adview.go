package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/creative"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/lifecycle"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/viewability"
)

// AdView is one ad slot. It fetches a creative, hands it to the Renderer,
// and tracks the load until Destroy or the next LoadAd. All methods are safe
// to call from any goroutine.
type AdView struct {
	kit         *Kit
	adUnitID    string
	adspaceType string
	renderer    Renderer
	logger      *slog.Logger

	mu         sync.Mutex
	size       AdSize
	buyType    creative.BuyType
	listener   AdListener
	loading    bool
	destroyed  bool
	generation uint64
	cancel     context.CancelFunc
	ctrl       *lifecycle.Controller
	surface    *viewability.Snapshot
}

// NewAdView creates a slot for adUnitID drawn by renderer. adspaceType is
// passed through to the creative template (e.g. "banner").
func (k *Kit) NewAdView(adUnitID string, size AdSize, adspaceType string, renderer Renderer) *AdView {
	return &AdView{
		kit:         k,
		adUnitID:    strings.TrimSpace(adUnitID),
		adspaceType: adspaceType,
		renderer:    renderer,
		logger:      k.logger.With("component", "adview", "ad_unit_id", adUnitID),
		size:        size,
		buyType:     creative.BuyTypeFixed,
	}
}

// SetAdListener replaces the listener. nil removes it.
func (v *AdView) SetAdListener(l AdListener) {
	v.mu.Lock()
	v.listener = l
	v.mu.Unlock()
}

// SetAdSize changes the slot size used by the next load.
func (v *AdView) SetAdSize(size AdSize) {
	v.mu.Lock()
	v.size = size
	v.mu.Unlock()
}

// SetBuyType selects "FIXED" (default) or "CPM" for the next load. Returns
// empty string on success, or an error message on failure.
func (v *AdView) SetBuyType(buyType string) string {
	bt := creative.BuyType(strings.ToUpper(strings.TrimSpace(buyType)))
	if bt != creative.BuyTypeFixed && bt != creative.BuyTypeCPM {
		return newWarningError(ErrCodeInvalidConfig, fmt.Sprintf("unknown buy type %q", buyType)).Error()
	}
	v.mu.Lock()
	v.buyType = bt
	v.mu.Unlock()
	return ""
}

// AdUnitID returns the slot's ad unit.
func (v *AdView) AdUnitID() string { return v.adUnitID }

// IsLoading reports whether a fetch is in flight.
func (v *AdView) IsLoading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

// Phase returns the current load phase ("loading", "rendered", "viewable",
// "not_viewable", "destroyed"), or "" before the first creative arrives.
func (v *AdView) Phase() string {
	ctrl := v.controller()
	if ctrl == nil {
		return ""
	}
	return ctrl.State().Phase.String()
}

// LoadAd requests a creative and renders it. Any previous load is torn down
// first. The result is reported through the AdListener. Returns empty string
// when the load started, or an error message when it was refused.
func (v *AdView) LoadAd(testMode bool) string {
	if v.kit.isClosed() {
		return ErrClosed.Error()
	}
	if v.adUnitID == "" {
		sdkErr := newCriticalError(ErrCodeInvalidAdUnit, "ad unit id is empty")
		v.kit.errors.log(sdkErr)
		return sdkErr.Error()
	}

	v.mu.Lock()
	if v.loading {
		v.mu.Unlock()
		v.logger.Warn("ad is already loading")
		return newWarningError(ErrCodeAlreadyLoading, "ad is already loading").Error()
	}
	v.destroyed = false
	v.loading = true
	v.generation++
	gen := v.generation
	prev := v.ctrl
	v.ctrl = nil
	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := context.WithCancel(v.kit.ctx)
	v.cancel = cancel
	buyType := v.buyType
	v.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}

	go v.load(ctx, gen, testMode, buyType)
	return ""
}

// load runs off the caller's goroutine: building the request may touch the
// install id store.
func (v *AdView) load(ctx context.Context, gen uint64, testMode bool, buyType creative.BuyType) {
	req := v.kit.deviceRequest(ctx, v.adUnitID, testMode, buyType)
	if d := v.kit.cfg.loadDelay(); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			v.finish(gen, req, nil, ctx.Err())
			return
		}
	}

	start := time.Now()
	ad, err := v.kit.fetcher.Fetch(ctx, req)
	v.logger.Debug("creative fetch finished",
		"buy_type", req.BuyType,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err,
	)
	v.finish(gen, req, ad, err)
}

// finish installs a fetched creative, unless the view was destroyed or
// reloaded while the fetch was in flight.
func (v *AdView) finish(gen uint64, req creative.Request, ad *creative.Ad, err error) {
	v.mu.Lock()
	if gen != v.generation || v.destroyed {
		v.mu.Unlock()
		v.logger.Debug("discarding stale ad load", "generation", gen)
		return
	}
	v.loading = false
	listener := v.listener

	var payloadJSON string
	if err == nil {
		payloadJSON, err = creative.BuildPayload(ad, creative.Slot{
			AdUnitID:    v.adUnitID,
			Width:       v.size.Width,
			Height:      v.size.Height,
			AdspaceType: v.adspaceType,
		}).JSON()
	}
	if err != nil {
		v.mu.Unlock()
		v.failLoad(listener, err)
		return
	}

	ctrl := v.newController(ad, req.TestMode)
	v.ctrl = ctrl
	surface := v.surface
	v.mu.Unlock()

	v.kit.metrics.AdLoads.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("buy_type", string(ad.BuyType)),
		attribute.String("media", ad.Type),
	))
	v.logger.Info("ad loaded", "campaign_id", ad.CampaignID, "type", ad.Type)

	if v.renderer != nil {
		v.renderer.Render(payloadJSON)
	}
	if listener != nil {
		listener.OnAdOpened()
	}
	if surface != nil {
		ctrl.SetSurface(*surface)
	}
}

func (v *AdView) failLoad(listener AdListener, err error) {
	sdkErr := classify(err)
	v.kit.metrics.AdLoadErrors.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("code", sdkErr.Code)))
	v.kit.errors.log(sdkErr)
	if listener != nil {
		listener.OnAdFailedToLoad(sdkErr.Message)
	}
}

func (v *AdView) newController(ad *creative.Ad, testMode bool) *lifecycle.Controller {
	media := lifecycle.MediaDisplay
	if ad.IsVideo() {
		media = lifecycle.MediaVideo
	}
	cfg := v.kit.cfg
	var renderer lifecycle.Renderer
	if v.renderer != nil {
		renderer = v.renderer
	}
	return lifecycle.NewController(lifecycle.Options{
		Media: media,
		Config: lifecycle.Config{
			MinViewTime:  ms(cfg.MinViewTimeMs),
			TickInterval: ms(cfg.VisibilityCheckIntervalMs),
		},
		Tracker:  viewability.NewTracker(cfg.VisibilityThreshold),
		Clock:    v.kit.clock,
		Renderer: renderer,
		Emitter:  v.kit.emitter,
		Ambient: analytics.Ambient{
			AdSpaceID:  v.adUnitID,
			LoadID:     uuid.NewString(),
			CampaignID: ad.CampaignID,
			BidID:      ad.BidID,
			BuyType:    string(ad.BuyType),
			MetaData:   ad.MetaData,
			TestMode:   testMode,
		},
		Notify:  v.notify,
		Metrics: v.kit.metrics,
		Logger:  v.kit.logger,
	})
}

func (v *AdView) notify(n lifecycle.Notify) {
	v.mu.Lock()
	l := v.listener
	v.mu.Unlock()

	if n.Callback == lifecycle.CallbackFailed {
		v.kit.metrics.AdLoadErrors.Add(context.Background(), 1,
			otelmetric.WithAttributes(attribute.String("code", ErrCodeRenderFailed)))
		v.kit.errors.log(newWarningError(ErrCodeRenderFailed, n.Reason))
	}
	if l == nil {
		return
	}
	switch n.Callback {
	case lifecycle.CallbackLoaded:
		l.OnAdLoaded()
	case lifecycle.CallbackImpression:
		l.OnAdImpression()
	case lifecycle.CallbackClicked:
		l.OnAdClicked()
	case lifecycle.CallbackFailed:
		l.OnAdFailedToLoad(n.Reason)
	case lifecycle.CallbackClosed:
		l.OnAdClosed()
	}
}

func (v *AdView) controller() *lifecycle.Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl
}

// OnRenderMessage handles a message posted by the creative, e.g.
// {"type":"RENDER_STATUS","message":"Success"}. Malformed or unknown
// messages are logged and ignored.
func (v *AdView) OnRenderMessage(messageJSON string) {
	status, err := parseRenderStatus(messageJSON)
	if err != nil {
		v.logger.Debug("ignoring render message", "error", err)
		return
	}
	ctrl := v.controller()
	if ctrl == nil {
		return
	}
	if status.OK {
		ctrl.RenderSucceeded()
		return
	}
	ctrl.RenderFailed(status.Reason)
}

// OnConsoleError reports a JavaScript error raised while drawing the creative.
func (v *AdView) OnConsoleError(message string) {
	if ctrl := v.controller(); ctrl != nil {
		ctrl.RenderFailed(message)
	}
}

// OnVideoStatus handles a player status message:
// {"type":"PLAY"}, {"type":"PAUSE"}, {"type":"ENDED"} or
// {"type":"PROGRESS","progress":0.5}.
func (v *AdView) OnVideoStatus(statusJSON string) {
	status, err := parseVideoStatus(statusJSON)
	if err != nil {
		v.logger.Debug("ignoring video status", "error", err)
		return
	}
	ctrl := v.controller()
	if ctrl == nil {
		return
	}
	switch status.Command {
	case videoPlay:
		ctrl.VideoPlayed()
	case videoPause:
		ctrl.VideoPaused()
	case videoEnded:
		ctrl.VideoEnded()
	case videoProgress:
		ctrl.VideoProgressed(status.Fraction)
	}
}

// OnClick reports a tap that navigated to the advertiser.
func (v *AdView) OnClick() {
	if ctrl := v.controller(); ctrl != nil {
		ctrl.Clicked()
	}
}

// UpdateGeometry pushes the view's current layout, as a JSON
// viewability snapshot:
//
//	{"attached":true,"shown":true,
//	 "frame":{"left":0,"top":900,"right":320,"bottom":950},
//	 "visible":{"left":0,"top":900,"right":320,"bottom":950},
//	 "ancestors":[{"frame":{...},"scrollable":true,"scroll_y":400}]}
//
// Returns empty string on success, or an error message on failure.
func (v *AdView) UpdateGeometry(snapshotJSON string) string {
	var s viewability.Snapshot
	if err := json.Unmarshal([]byte(snapshotJSON), &s); err != nil {
		sdkErr := newWarningError(ErrCodeInvalidJSON, fmt.Sprintf("invalid geometry JSON: %v", err))
		v.logger.Debug(sdkErr.Message)
		return sdkErr.Error()
	}
	v.mu.Lock()
	v.surface = &s
	ctrl := v.ctrl
	v.mu.Unlock()
	if ctrl != nil {
		ctrl.SetSurface(s)
	}
	return ""
}

// OnScrollChanged re-measures the last pushed geometry.
func (v *AdView) OnScrollChanged() {
	if ctrl := v.controller(); ctrl != nil {
		ctrl.CheckVisibility()
	}
}

// OnWindowFocusChanged reports whether the host window has input focus.
func (v *AdView) OnWindowFocusChanged(hasFocus bool) {
	if ctrl := v.controller(); ctrl != nil {
		ctrl.FocusChanged(hasFocus)
	}
}

// OnWindowVisibilityChanged pauses the renderer while the window is hidden.
func (v *AdView) OnWindowVisibilityChanged(visible bool) {
	if v.controller() == nil || v.renderer == nil {
		return
	}
	if visible {
		v.renderer.Resume()
		return
	}
	v.renderer.Pause()
}

// OnAttachedToWindow resumes a renderer that was paused while detached.
func (v *AdView) OnAttachedToWindow() {
	if v.controller() != nil && v.renderer != nil {
		v.renderer.Resume()
	}
}

// OnDetachedFromWindow tears the load down.
func (v *AdView) OnDetachedFromWindow() {
	v.Destroy()
}

// Destroy cancels an in-flight fetch and tears the current load down,
// releasing the renderer. A later LoadAd starts over. Safe to call more
// than once.
func (v *AdView) Destroy() {
	v.mu.Lock()
	v.loading = false
	v.destroyed = true
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	ctrl := v.ctrl
	v.ctrl = nil
	v.mu.Unlock()

	if ctrl != nil {
		ctrl.Destroy()
	}
}
