// Package attribution records the marketing campaign (UTM parameters) that
// brought the user to the app and reports it to the backend.
package attribution

import (
	"net/url"
	"strings"
	"time"
)

// Query keys.
const (
	KeySource   = "utm_source"
	KeyMedium   = "utm_medium"
	KeyCampaign = "utm_campaign"
	KeyTerm     = "utm_term"
	KeyContent  = "utm_content"
	KeyXData    = "utm_x_data"
	KeyTime     = "utm_timestamp"
)

// Parameters is one attribution record.
type Parameters struct {
	Source    string `json:"utm_source,omitempty"`
	Medium    string `json:"utm_medium,omitempty"`
	Campaign  string `json:"utm_campaign,omitempty"`
	Term      string `json:"utm_term,omitempty"`
	Content   string `json:"utm_content,omitempty"`
	XData     string `json:"utm_x_data,omitempty"`
	Timestamp int64  `json:"utm_timestamp,omitempty"` // unix ms
}

// HasData reports whether any campaign field is set. Timestamp alone does not count.
func (p Parameters) HasData() bool {
	return p.Source != "" || p.Medium != "" || p.Campaign != "" ||
		p.Term != "" || p.Content != "" || p.XData != ""
}

// FromQuery extracts the UTM fields of a query string, stamping them with at.
func FromQuery(q url.Values, at time.Time) Parameters {
	p := Parameters{
		Source:   q.Get(KeySource),
		Medium:   q.Get(KeyMedium),
		Campaign: q.Get(KeyCampaign),
		Term:     q.Get(KeyTerm),
		Content:  q.Get(KeyContent),
		XData:    q.Get(KeyXData),
	}
	if p.HasData() {
		p.Timestamp = at.UnixMilli()
	}
	return p
}

// ParseDeeplink reads UTM fields from a deeplink URL.
func ParseDeeplink(raw string, at time.Time) (Parameters, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parameters{}, err
	}
	return FromQuery(u.Query(), at), nil
}

// ParseReferrer reads UTM fields from an install referrer string, which is a
// bare query such as "utm_source=google&utm_medium=cpc".
func ParseReferrer(referrer string, at time.Time) (Parameters, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(referrer, "?"))
	if err != nil {
		return Parameters{}, err
	}
	return FromQuery(q, at), nil
}
