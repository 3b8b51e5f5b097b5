package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// keySpace namespaces derived idempotency keys.
var keySpace = uuid.MustParse("6f1c1d0e-5a7b-4c1e-9a55-0b9d1f2f7a10")

// Ambient is the identity shared by every event of one ad load.
type Ambient struct {
	AdSpaceID  string
	LoadID     string // unique per load; scopes one-time events
	CampaignID string
	BidID      string
	BuyType    string
	MetaData   string // opaque server token echoed back on every event
	TestMode   bool
}

// Envelope is one event ready for delivery.
type Envelope struct {
	Ambient
	Event          Event
	IdempotencyKey string
	Timestamp      time.Time
}

// NewEnvelope stamps ev with a timestamp and an idempotency key. One-time
// events get a key derived from the load id, so a repeated emission within
// the same load collides; other events get a random key.
func NewEnvelope(a Ambient, ev Event, at time.Time) Envelope {
	return Envelope{Ambient: a, Event: ev, IdempotencyKey: idempotencyKey(a, ev), Timestamp: at}
}

func idempotencyKey(a Ambient, ev Event) string {
	suffix, once := ev.once()
	if !once || a.LoadID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(keySpace, []byte(a.LoadID+"/"+string(ev.Type())+"/"+suffix)).String()
}

// MarshalJSON renders the flat body accepted by the impression endpoint.
func (e Envelope) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"metaData":       e.MetaData,
		"isTestMode":     e.TestMode,
		"type":           e.Event.Type(),
		"adSpaceId":      e.AdSpaceID,
		"idempotencyKey": e.IdempotencyKey,
		"timestamp":      e.Timestamp.UnixMilli(),
	}
	if e.CampaignID != "" {
		m["campaignId"] = e.CampaignID
	}
	if e.BidID != "" {
		m["bidId"] = e.BidID
	}
	e.Event.fields(m)
	return json.Marshal(m)
}
