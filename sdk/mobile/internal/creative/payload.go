package creative

import "encoding/json"

// Defaults applied when the campaign or host leaves a renderer field unset.
const (
	DefaultResponsiveType = "Square"
	DefaultWidth          = 300
	DefaultHeight         = 300
	defaultAdvertiser     = "-"
	defaultMediaType      = "image"
)

// Payload is the creative handed to the renderer.
type Payload struct {
	AdElementID    string  `json:"adElementId"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Name           string  `json:"name"`
	CTAURL         string  `json:"ctaUrl"`
	FileURL        string  `json:"fileUrl"`
	Type           string  `json:"type"`
	IsResponsive   bool    `json:"isResponsive"`
	ResponsiveType string  `json:"responsiveType"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	AdspaceType    string  `json:"adspaceType"`
	Media          []Media `json:"media"`
	MediaType      string  `json:"mediaType"`
}

type Media struct {
	Src string `json:"src"`
}

// Slot describes where the creative will be drawn.
type Slot struct {
	AdUnitID    string
	Width       int
	Height      int
	AdspaceType string
}

// BuildPayload renders ad into the renderer's input for slot.
func BuildPayload(ad *Ad, slot Slot) Payload {
	p := Payload{
		AdElementID:    "adgeist_ads_iframe_" + slot.AdUnitID,
		Title:          ad.Title,
		Description:    ad.Description,
		Name:           ad.AdvertiserName,
		CTAURL:         ad.CTAURL,
		FileURL:        ad.FileURL,
		Type:           ad.Type,
		ResponsiveType: DefaultResponsiveType,
		Width:          slot.Width,
		Height:         slot.Height,
		AdspaceType:    slot.AdspaceType,
		Media:          []Media{},
		MediaType:      ad.Type,
	}
	if p.Name == "" {
		p.Name = defaultAdvertiser
	}
	if p.MediaType == "" {
		p.MediaType = defaultMediaType
	}
	if p.Width <= 0 {
		p.Width = DefaultWidth
	}
	if p.Height <= 0 {
		p.Height = DefaultHeight
	}
	if d := ad.Display; d != nil {
		p.IsResponsive = d.IsResponsive
		if d.ResponsiveType != "" {
			p.ResponsiveType = d.ResponsiveType
		}
	}
	if ad.FileURL != "" {
		p.Media = append(p.Media, Media{Src: ad.FileURL})
	}
	return p
}

// JSON encodes the payload for the renderer bridge.
func (p Payload) JSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
