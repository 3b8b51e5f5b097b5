// Package creative requests an ad for an ad space and turns the response
// into a renderer payload.
package creative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/transport"
)

// BuyType selects how the ad space is sold.
type BuyType string

const (
	BuyTypeFixed BuyType = "FIXED"
	BuyTypeCPM   BuyType = "CPM"
)

// Backend paths.
const (
	FixedPath = "/v2/dsp/ad/fixed"
	BidPath   = "/v1/app/ssp/bid"
)

var (
	// ErrNoFill means the backend had no campaign for the request.
	ErrNoFill = errors.New("no creative returned")
	// ErrEmptyCreative means a campaign was served without any asset.
	ErrEmptyCreative = errors.New("empty creative")
	// ErrMalformed means the response body was not a valid ad response.
	ErrMalformed = errors.New("malformed creative response")
	// ErrInvalidRequest means the request lacks an ad space or publisher.
	ErrInvalidRequest = errors.New("invalid creative request")
)

// Request identifies the slot being filled and the device asking.
type Request struct {
	AdSpaceID string
	CompanyID string
	BuyType   BuyType
	TestMode  bool
	Origin    string
	TimeZone  string
	DeviceID  string
	UserIP    string
	Device    map[string]any
	AppName   string
	AppBundle string
}

// Ad is a filled creative, whichever buy type produced it.
type Ad struct {
	BuyType        BuyType
	MetaData       string
	CampaignID     string
	BidID          string
	Price          float64
	AdvertiserName string
	Title          string
	Description    string
	CTAURL         string
	FileURL        string
	Type           string
	Display        *DisplayOptions
}

// IsVideo reports whether the creative is a video.
func (a *Ad) IsVideo() bool { return a.Type == "video" }

// Doer is the transport used to reach the backend.
type Doer interface {
	Do(ctx context.Context, req transport.Request, out any) (int, error)
}

// Fetcher requests creatives.
type Fetcher struct {
	client Doer
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. logger may be nil.
func NewFetcher(client Doer, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger.With("component", "creative")}
}

// Fetch requests an ad. It returns ErrNoFill or ErrEmptyCreative when the
// backend answers without something renderable.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Ad, error) {
	if req.AdSpaceID == "" || req.CompanyID == "" {
		return nil, ErrInvalidRequest
	}
	if req.BuyType == BuyTypeCPM {
		return f.fetchCPM(ctx, req)
	}
	return f.fetchFixed(ctx, req)
}

func (f *Fetcher) fetchFixed(ctx context.Context, req Request) (*Ad, error) {
	body := map[string]any{
		"adspaceId": req.AdSpaceID,
		"companyId": req.CompanyID,
		"timeZone":  req.TimeZone,
		"origin":    req.Origin,
		"isTest":    req.TestMode,
		"device":    deviceOrEmpty(req.Device),
	}

	var resp *FixedAdResponse
	if err := f.do(ctx, transport.Request{Path: FixedPath, Body: body}, &resp); err != nil {
		return nil, err
	}
	if resp == nil || resp.ID == "" || resp.CampaignID == "" || resp.Advertiser == nil {
		return nil, ErrNoFill
	}
	if len(resp.Creatives) == 0 {
		return nil, ErrEmptyCreative
	}

	c := resp.Creatives[0]
	f.logger.Debug("fixed creative served", "ad_space_id", req.AdSpaceID, "campaign_id", resp.CampaignID, "type", c.Type)
	return &Ad{
		BuyType:        BuyTypeFixed,
		MetaData:       resp.MetaData,
		CampaignID:     resp.CampaignID,
		AdvertiserName: resp.Advertiser.Name,
		Title:          c.Title,
		Description:    c.Description,
		CTAURL:         c.CTAURL,
		FileURL:        c.FileURL,
		Type:           c.Type,
		Display:        resp.DisplayOptions,
	}, nil
}

func (f *Fetcher) fetchCPM(ctx context.Context, req Request) (*Ad, error) {
	test := "0"
	if req.TestMode {
		test = "1"
	}
	query := url.Values{
		"adSpaceId": {req.AdSpaceID},
		"companyId": {req.CompanyID},
		"test":      {test},
	}

	userIP := req.UserIP
	if userIP == "" {
		userIP = "unknown"
	}
	header := http.Header{}
	header.Set("x-user-id", req.DeviceID)
	header.Set("x-platform", "mobile_app")
	header.Set("x-forwarded-for", userIP)
	if req.Origin != "" {
		header.Set("Origin", req.Origin)
	}

	body := map[string]any{
		"appDto": map[string]string{"name": req.AppName, "bundle": req.AppBundle},
		"origin": req.Origin,
		"isTest": req.TestMode,
		"device": deviceOrEmpty(req.Device),
	}

	var resp *CPMAdResponse
	if err := f.do(ctx, transport.Request{Path: BidPath, Query: query, Header: header, Body: body}, &resp); err != nil {
		return nil, err
	}
	if resp == nil || resp.Data == nil || len(resp.Data.SeatBid) == 0 {
		return nil, ErrNoFill
	}

	for _, seat := range resp.Data.SeatBid {
		if len(seat.Bid) == 0 {
			continue
		}
		bid := seat.Bid[0]
		f.logger.Debug("cpm bid served", "ad_space_id", req.AdSpaceID, "bid_id", resp.Data.BidID, "price", bid.Price)
		return &Ad{
			BuyType:     BuyTypeCPM,
			BidID:       resp.Data.BidID,
			Price:       bid.Price,
			Title:       bid.Ext.CreativeTitle,
			Description: bid.Ext.CreativeDescription,
			CTAURL:      bid.Ext.CTAURL,
			FileURL:     bid.Ext.CreativeURL,
		}, nil
	}
	return nil, ErrEmptyCreative
}

func (f *Fetcher) do(ctx context.Context, req transport.Request, out any) error {
	if _, err := f.client.Do(ctx, req, out); err != nil {
		if errors.Is(err, transport.ErrDecode) {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return fmt.Errorf("fetch creative: %w", err)
	}
	return nil
}

func deviceOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
