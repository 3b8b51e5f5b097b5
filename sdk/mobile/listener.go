package mobile

// AdListener receives the lifecycle callbacks of one AdView. Every method is
// invoked at most once per load, except OnAdClicked. Methods are called on
// the goroutine that delivered the triggering input and may call back into
// the AdView.
type AdListener interface {
	// OnAdLoaded fires when the renderer reports the creative drawn.
	OnAdLoaded()
	// OnAdOpened fires when a renderer is created for a fetched creative.
	OnAdOpened()
	// OnAdImpression fires once the ad has been viewable long enough.
	OnAdImpression()
	// OnAdClicked fires on every tap that navigates to the advertiser.
	OnAdClicked()
	// OnAdFailedToLoad fires when the fetch or the render fails.
	OnAdFailedToLoad(reason string)
	// OnAdClosed fires when a rendered ad is torn down.
	OnAdClosed()
}

// Renderer is the host web view that draws a creative. The AdView owns it
// from Render until Release.
type Renderer interface {
	// Render receives the creative payload as JSON.
	Render(payloadJSON string)
	Pause()
	Resume()
	Release()
}

// NoopAdListener implements AdListener with empty methods, for embedding.
type NoopAdListener struct{}

func (NoopAdListener) OnAdLoaded()             {}
func (NoopAdListener) OnAdOpened()             {}
func (NoopAdListener) OnAdImpression()         {}
func (NoopAdListener) OnAdClicked()            {}
func (NoopAdListener) OnAdFailedToLoad(string) {}
func (NoopAdListener) OnAdClosed()             {}
