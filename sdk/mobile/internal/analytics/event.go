// Package analytics defines the ad engagement events reported to the ad
// server and the non-blocking emitter that hands them to delivery.
//
// Events are a closed set of value types. They carry only what is specific
// to the event; identity shared by every event of one ad load lives in
// Ambient and is merged at serialization time.
package analytics

import (
	"strconv"
	"time"
)

// Type is the wire name of an event.
type Type string

const (
	TypeImpression        Type = "IMPRESSION"
	TypeView              Type = "VIEW"
	TypeClick             Type = "CLICK"
	TypeTotalViewTime     Type = "TOTAL_VIEW_TIME"
	TypeTotalPlaybackTime Type = "TOTAL_PLAYBACK_TIME"
	TypeVideoQuartile     Type = "VIDEO_QUARTILE"
)

// Event is implemented only by the types in this package.
type Event interface {
	Type() Type
	// once returns a discriminator for events that may be sent at most once
	// per ad load, and false for repeatable events.
	once() (string, bool)
	fields(m map[string]any)
}

// Impression fires when the creative finished rendering.
type Impression struct {
	RenderTime time.Duration
}

// View is the viewable impression: at least half the ad on screen for the
// minimum dwell.
type View struct {
	TimeToVisible   time.Duration
	ScrollDepth     float64
	VisibilityRatio float64
	ViewTime        time.Duration
}

// Click is a user tap on the creative.
type Click struct{}

// TotalViewTime is the accumulated on-screen time, sent on teardown.
type TotalViewTime struct {
	Total time.Duration
}

// TotalPlaybackTime is the accumulated video playback, sent on teardown.
type TotalPlaybackTime struct {
	Total time.Duration
}

// VideoQuartile marks playback progress reaching 25, 50, 75 or 100 percent.
type VideoQuartile struct {
	Quartile int
}

func (Impression) Type() Type        { return TypeImpression }
func (View) Type() Type              { return TypeView }
func (Click) Type() Type             { return TypeClick }
func (TotalViewTime) Type() Type     { return TypeTotalViewTime }
func (TotalPlaybackTime) Type() Type { return TypeTotalPlaybackTime }
func (VideoQuartile) Type() Type     { return TypeVideoQuartile }

func (Impression) once() (string, bool)        { return "", true }
func (View) once() (string, bool)              { return "", true }
func (Click) once() (string, bool)             { return "", false }
func (TotalViewTime) once() (string, bool)     { return "", true }
func (TotalPlaybackTime) once() (string, bool) { return "", true }
func (q VideoQuartile) once() (string, bool)   { return strconv.Itoa(q.Quartile), true }

func (e Impression) fields(m map[string]any) {
	m["renderTime"] = e.RenderTime.Milliseconds()
}

func (e View) fields(m map[string]any) {
	m["timeToVisible"] = e.TimeToVisible.Milliseconds()
	m["scrollDepth"] = e.ScrollDepth
	m["visibilityRatio"] = e.VisibilityRatio
	m["viewTime"] = e.ViewTime.Milliseconds()
}

func (Click) fields(map[string]any) {}

func (e TotalViewTime) fields(m map[string]any) {
	m["totalViewTime"] = e.Total.Milliseconds()
}

func (e TotalPlaybackTime) fields(m map[string]any) {
	m["totalPlaybackTime"] = e.Total.Milliseconds()
}

func (e VideoQuartile) fields(m map[string]any) {
	m["quartile"] = e.Quartile
}
