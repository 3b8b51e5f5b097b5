package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
)

// Path is the backend endpoint for attribution records.
const Path = "/v2/analytics/utm"

// Namespace is the kv namespace holding attribution state.
const Namespace = "utm"

const keyFirstLaunch = "first_launch"

// ErrNoParameters means the input carried no UTM fields.
var ErrNoParameters = errors.New("attribution: no utm parameters")

// Poster sends a JSON body to a backend path.
type Poster interface {
	PostJSON(ctx context.Context, path string, body, out any) error
}

// Tracker persists the latest attribution and reports every new one.
type Tracker struct {
	store    *storage.KV
	client   Poster
	platform string
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker creates a Tracker. platform is reported with every record
// ("android", "ios", ...).
func NewTracker(store *storage.KV, client Poster, platform string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    store,
		client:   client,
		platform: platform,
		logger:   logger.With("component", "attribution"),
		now:      time.Now,
	}
}

// TrackDeeplink records the UTM fields of a deeplink URL.
func (t *Tracker) TrackDeeplink(ctx context.Context, rawURL string) (Parameters, error) {
	p, err := ParseDeeplink(rawURL, t.now())
	if err != nil {
		return Parameters{}, fmt.Errorf("parse deeplink: %w", err)
	}
	return p, t.track(ctx, p, "deeplink")
}

// TrackInstallReferrer records the UTM fields of an install referrer.
func (t *Tracker) TrackInstallReferrer(ctx context.Context, referrer string) (Parameters, error) {
	p, err := ParseReferrer(referrer, t.now())
	if err != nil {
		return Parameters{}, fmt.Errorf("parse install referrer: %w", err)
	}
	return p, t.track(ctx, p, "install_referrer")
}

// FirstLaunch reports true exactly once per install. The host reads the
// install referrer only when it does.
func (t *Tracker) FirstLaunch() (bool, error) {
	_, seen, err := t.store.Get(keyFirstLaunch)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	if err := t.store.Set(keyFirstLaunch, "false"); err != nil {
		return false, err
	}
	return true, nil
}

// Parameters returns the stored attribution, if any.
func (t *Tracker) Parameters() (Parameters, bool, error) {
	var p Parameters
	fields := map[string]*string{
		KeySource:   &p.Source,
		KeyMedium:   &p.Medium,
		KeyCampaign: &p.Campaign,
		KeyTerm:     &p.Term,
		KeyContent:  &p.Content,
		KeyXData:    &p.XData,
	}
	for key, dst := range fields {
		v, _, err := t.store.Get(key)
		if err != nil {
			return Parameters{}, false, err
		}
		*dst = v
	}
	if ts, ok, err := t.store.Get(KeyTime); err != nil {
		return Parameters{}, false, err
	} else if ok {
		p.Timestamp, _ = strconv.ParseInt(ts, 10, 64)
	}
	return p, p.HasData(), nil
}

// Clear removes the stored attribution. The first-launch marker is kept.
func (t *Tracker) Clear() error {
	for _, key := range []string{KeySource, KeyMedium, KeyCampaign, KeyTerm, KeyContent, KeyXData, KeyTime} {
		if err := t.store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) track(ctx context.Context, p Parameters, source string) error {
	if !p.HasData() {
		return ErrNoParameters
	}
	if err := t.save(p); err != nil {
		return fmt.Errorf("save utm parameters: %w", err)
	}
	t.logger.Debug("utm parameters tracked", "source", source, "utm_source", p.Source, "utm_campaign", p.Campaign)

	if err := t.client.PostJSON(ctx, Path, t.body(p), nil); err != nil {
		t.logger.Warn("send utm parameters", "error", err)
		return fmt.Errorf("send utm parameters: %w", err)
	}
	return nil
}

// save writes only the fields that are set, keeping earlier values for the rest.
func (t *Tracker) save(p Parameters) error {
	for key, v := range map[string]string{
		KeySource:   p.Source,
		KeyMedium:   p.Medium,
		KeyCampaign: p.Campaign,
		KeyTerm:     p.Term,
		KeyContent:  p.Content,
		KeyXData:    p.XData,
	} {
		if v == "" {
			continue
		}
		if err := t.store.Set(key, v); err != nil {
			return err
		}
	}
	if p.Timestamp > 0 {
		return t.store.Set(KeyTime, strconv.FormatInt(p.Timestamp, 10))
	}
	return nil
}

type utmBody struct {
	Parameters
	Platform  string `json:"platform"`
	EventType string `json:"event_type"`
}

func (t *Tracker) body(p Parameters) utmBody {
	return utmBody{Parameters: p, Platform: t.platform, EventType: "utm_tracked"}
}
