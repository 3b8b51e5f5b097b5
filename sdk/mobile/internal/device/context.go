// Package device answers the ad request's questions about the device: a stable
// identifier, a client IP for the bid request, and a metadata blob.
//
// Native wrappers (Kotlin/Swift) push what only the platform can know via
// SetPlatform and SetNetwork. Everything else is derived in Go. Values that
// cannot be determined degrade to Unknown or are omitted; nothing here fails
// an ad load.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SDKVersion is reported in device metadata.
const SDKVersion = "1.0.0"

// Unknown is returned for values the device could not provide.
const Unknown = "unknown"

// Platform holds values only the native layer can read.
type Platform struct {
	AdvertisingID   string
	LimitAdTracking bool
	PlatformID      string // ANDROID_ID / identifierForVendor
	OS              string
	OSVersion       string
	Brand           string
	Model           string
	DeviceType      string // Mobile, Tablet, TV
	CPUType         string
	Processors      int
	ScreenWidth     int
	ScreenHeight    int
	Density         float64
	Locale          string
	Timezone        string
	AppVersion      string
	TouchScreen     bool
	GPUCapable      bool
	NFCCapable      bool
	VRCapable       bool
	ScreenReader    bool
}

// Metadata is the device blob sent with fixed-ad requests.
type Metadata struct {
	DeviceType             string           `json:"deviceType,omitempty"`
	DeviceBrand            string           `json:"deviceBrand,omitempty"`
	DeviceModel            string           `json:"deviceModel,omitempty"`
	CPUType                string           `json:"cpuType,omitempty"`
	AvailableProcessors    int              `json:"availableProcessors,omitempty"`
	OperatingSystem        string           `json:"operatingSystem,omitempty"`
	OSVersion              string           `json:"osVersion,omitempty"`
	ScreenDimensions       ScreenDimensions `json:"screenDimensions"`
	NetworkType            string           `json:"networkType,omitempty"`
	NetworkProvider        string           `json:"networkProvider,omitempty"`
	IsTouchScreenAvailable bool             `json:"isTouchScreenAvailable"`
	IsGPUCapable           bool             `json:"isGpuCapable"`
	IsNFCCapable           bool             `json:"isNfcCapable"`
	IsVRCapable            bool             `json:"isVrCapable"`
	IsScreenReaderPresent  bool             `json:"isScreenReaderPresent"`
	Locale                 string           `json:"locale,omitempty"`
	Timezone               string           `json:"timezone,omitempty"`
	AppVersion             string           `json:"appVersion,omitempty"`
	SDKVersion             string           `json:"sdkVersion"`
}

// ScreenDimensions in physical pixels.
type ScreenDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type network struct {
	kind     string
	provider string
	wifiIP   string
}

// Provider is safe for concurrent use.
type Provider struct {
	ids    *IDManager
	logger *slog.Logger
	now    func() time.Time
	addrs  addrLister

	mu       sync.RWMutex
	platform Platform
	net      network
}

// NewProvider returns a Provider. ids may be nil, in which case the install
// identifier falls back to a timestamp-derived value.
func NewProvider(ids *IDManager, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		ids:    ids,
		logger: logger.With("component", "device"),
		now:    time.Now,
		addrs:  systemAddrs,
	}
}

// SetPlatform replaces the native platform snapshot.
func (p *Provider) SetPlatform(pl Platform) {
	p.mu.Lock()
	p.platform = pl
	p.mu.Unlock()
}

// SetNetwork records the current network. wifiIP is the address reported by
// the platform Wi-Fi service and is used when no interface address is found.
func (p *Provider) SetNetwork(kind, provider, wifiIP string) {
	p.mu.Lock()
	p.net = network{kind: kind, provider: provider, wifiIP: wifiIP}
	p.mu.Unlock()
}

// DeviceIdentifier resolves the device id by priority: advertising id (when
// tracking is not limited), platform id, persisted install id, then a
// timestamp fallback. ctx bounds the install id lookup.
func (p *Provider) DeviceIdentifier(ctx context.Context) string {
	p.mu.RLock()
	pl := p.platform
	p.mu.RUnlock()

	if pl.AdvertisingID != "" && !pl.LimitAdTracking {
		return pl.AdvertisingID
	}
	if pl.PlatformID != "" {
		return pl.PlatformID
	}
	if p.ids != nil && ctx.Err() == nil {
		id, err := p.ids.InstallID()
		if err == nil {
			return id
		}
		p.logger.Warn("install id unavailable", "error", err)
	}
	return fmt.Sprintf("fallback_%d", p.now().UnixMilli())
}

// LocalOrWifiIPAddress returns the first non-loopback IPv4 interface address,
// then the platform-reported Wi-Fi address, then Unknown.
func (p *Provider) LocalOrWifiIPAddress() string {
	if ip := firstIPv4(p.addrs); ip != "" {
		return ip
	}
	p.mu.RLock()
	wifi := p.net.wifiIP
	p.mu.RUnlock()
	if wifi != "" && wifi != "0.0.0.0" {
		return wifi
	}
	return Unknown
}

// Metadata snapshots the device blob.
func (p *Provider) Metadata() Metadata {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pl := p.platform
	osName := pl.OS
	if osName == "" {
		osName = Unknown
	}
	return Metadata{
		DeviceType:             pl.DeviceType,
		DeviceBrand:            pl.Brand,
		DeviceModel:            pl.Model,
		CPUType:                pl.CPUType,
		AvailableProcessors:    pl.Processors,
		OperatingSystem:        osName,
		OSVersion:              pl.OSVersion,
		ScreenDimensions:       ScreenDimensions{Width: pl.ScreenWidth, Height: pl.ScreenHeight},
		NetworkType:            p.net.kind,
		NetworkProvider:        p.net.provider,
		IsTouchScreenAvailable: pl.TouchScreen,
		IsGPUCapable:           pl.GPUCapable,
		IsNFCCapable:           pl.NFCCapable,
		IsVRCapable:            pl.VRCapable,
		IsScreenReaderPresent:  pl.ScreenReader,
		Locale:                 pl.Locale,
		Timezone:               pl.Timezone,
		AppVersion:             pl.AppVersion,
		SDKVersion:             SDKVersion,
	}
}

// Timezone returns the platform timezone, or the Go local zone name.
func (p *Provider) Timezone() string {
	p.mu.RLock()
	tz := p.platform.Timezone
	p.mu.RUnlock()
	if tz != "" {
		return tz
	}
	return time.Local.String()
}
