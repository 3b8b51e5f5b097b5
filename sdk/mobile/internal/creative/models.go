package creative

// FixedAdResponse is the direct-sold (FIXED) campaign served for an ad space.
type FixedAdResponse struct {
	MetaData                     string                  `json:"metaData"`
	ID                           string                  `json:"id"`
	GeneratedAt                  string                  `json:"generatedAt,omitempty"`
	CampaignID                   string                  `json:"campaignId,omitempty"`
	Advertiser                   *Advertiser             `json:"advertiser,omitempty"`
	Type                         string                  `json:"type,omitempty"`
	LoadType                     string                  `json:"loadType,omitempty"`
	CampaignValidity             *CampaignValidity       `json:"campaignValidity,omitempty"`
	Creatives                    []Creative              `json:"creatives,omitempty"`
	DisplayOptions               *DisplayOptions         `json:"displayOptions,omitempty"`
	FrontendCacheDurationSeconds int                     `json:"frontendCacheDurationSeconds,omitempty"`
	ImpressionRequirements       *ImpressionRequirements `json:"impressionRequirements,omitempty"`
}

type Advertiser struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type CampaignValidity struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Creative is one asset of a FIXED campaign.
type Creative struct {
	ContentModerationResult *ObjectID  `json:"contentModerationResult,omitempty"`
	CreatedAt               *Timestamp `json:"createdAt,omitempty"`
	CTAURL                  string     `json:"ctaUrl,omitempty"`
	Description             string     `json:"description,omitempty"`
	FileName                string     `json:"fileName,omitempty"`
	FileSize                int64      `json:"fileSize,omitempty"`
	FileURL                 string     `json:"fileUrl,omitempty"`
	ThumbnailURL            string     `json:"thumbnailUrl,omitempty"`
	Title                   string     `json:"title,omitempty"`
	Type                    string     `json:"type,omitempty"`
	UpdatedAt               *Timestamp `json:"updatedAt,omitempty"`
}

// ObjectID and Timestamp mirror the extended-JSON wrappers the backend emits.
type ObjectID struct {
	OID string `json:"$oid,omitempty"`
}

type Timestamp struct {
	Date int64 `json:"$date,omitempty"` // unix ms
}

type DisplayOptions struct {
	AllowedFormats []string      `json:"allowedFormats,omitempty"`
	Dimensions     *Dimensions   `json:"dimensions,omitempty"`
	IsResponsive   bool          `json:"isResponsive,omitempty"`
	ResponsiveType string        `json:"responsiveType,omitempty"`
	StyleOptions   *StyleOptions `json:"styleOptions,omitempty"`
}

type Dimensions struct {
	Height int `json:"height,omitempty"`
	Width  int `json:"width,omitempty"`
}

type StyleOptions struct {
	FontColor  string `json:"fontColor,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
}

type ImpressionRequirements struct {
	ImpressionType         string `json:"impressionType,omitempty"`
	MinViewDurationSeconds int    `json:"minViewDurationSeconds,omitempty"`
}

// CPMAdResponse is the programmatic bid response.
type CPMAdResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Data    *BidResponseData `json:"data,omitempty"`
}

type BidResponseData struct {
	ID      string    `json:"id"`
	SeatBid []SeatBid `json:"seatBid"`
	BidID   string    `json:"bidId"`
	Cur     string    `json:"cur,omitempty"`
}

type SeatBid struct {
	BidID string `json:"bidId"`
	Bid   []Bid  `json:"bid"`
}

type Bid struct {
	ID    string       `json:"id"`
	ImpID string       `json:"impId"`
	Price float64      `json:"price"`
	Ext   BidExtension `json:"ext"`
}

type BidExtension struct {
	CreativeURL         string `json:"creativeUrl"`
	CTAURL              string `json:"ctaUrl"`
	CreativeTitle       string `json:"creativeTitle"`
	CreativeDescription string `json:"creativeDescription"`
}
