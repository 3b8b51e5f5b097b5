package mobile

import (
	"fmt"
	"math"
)

// AdSize is a slot size in density-independent pixels.
type AdSize struct {
	Width  int
	Height int
}

// Standard IAB sizes.
var (
	AdSizeBanner          = AdSize{Width: 320, Height: 50}
	AdSizeLargeBanner     = AdSize{Width: 320, Height: 100}
	AdSizeMediumRectangle = AdSize{Width: 300, Height: 250}
	AdSizeFullBanner      = AdSize{Width: 468, Height: 60}
	AdSizeLeaderboard     = AdSize{Width: 728, Height: 90}
	AdSizeWideSkyscraper  = AdSize{Width: 160, Height: 600}
	AdSizeInvalid         = AdSize{}
)

// NewAdSize returns a custom size. Non-positive dimensions yield AdSizeInvalid.
func NewAdSize(width, height int) AdSize {
	if width <= 0 || height <= 0 {
		return AdSizeInvalid
	}
	return AdSize{Width: width, Height: height}
}

// IsValid reports whether both dimensions are positive.
func (s AdSize) IsValid() bool { return s.Width > 0 && s.Height > 0 }

// WidthInPixels scales the width by the screen density.
func (s AdSize) WidthInPixels(density float64) int {
	return toPixels(s.Width, density)
}

// HeightInPixels scales the height by the screen density.
func (s AdSize) HeightInPixels(density float64) int {
	return toPixels(s.Height, density)
}

func (s AdSize) String() string {
	switch s {
	case AdSizeBanner:
		return "BANNER"
	case AdSizeLargeBanner:
		return "LARGE_BANNER"
	case AdSizeMediumRectangle:
		return "MEDIUM_RECTANGLE"
	case AdSizeFullBanner:
		return "FULL_BANNER"
	case AdSizeLeaderboard:
		return "LEADERBOARD"
	case AdSizeWideSkyscraper:
		return "WIDE_SKYSCRAPER"
	case AdSizeInvalid:
		return "INVALID"
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func toPixels(dp int, density float64) int {
	if density <= 0 {
		density = 1
	}
	return int(math.Round(float64(dp) * density))
}
