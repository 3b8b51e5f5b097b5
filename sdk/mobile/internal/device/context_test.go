package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func testProvider(ids *IDManager) *Provider {
	p := NewProvider(ids, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.addrs = func() ([]net.Addr, error) { return nil, nil }
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return p
}

func TestDeviceIdentifier_Priority(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		name     string
		platform Platform
		ids      *IDManager
		check    func(t *testing.T, id string)
	}{
		{
			name:     "advertising id wins",
			platform: Platform{AdvertisingID: "gaid-1", PlatformID: "android-1"},
			ids:      NewIDManager(db),
			check: func(t *testing.T, id string) {
				if id != "gaid-1" {
					t.Fatalf("got %q, want gaid-1", id)
				}
			},
		},
		{
			name:     "limited ad tracking skips advertising id",
			platform: Platform{AdvertisingID: "gaid-1", LimitAdTracking: true, PlatformID: "android-1"},
			ids:      NewIDManager(db),
			check: func(t *testing.T, id string) {
				if id != "android-1" {
					t.Fatalf("got %q, want android-1", id)
				}
			},
		},
		{
			name:     "install id when platform is silent",
			platform: Platform{},
			ids:      NewIDManager(db),
			check: func(t *testing.T, id string) {
				if len(id) != 36 {
					t.Fatalf("got %q, want install uuid", id)
				}
			},
		},
		{
			name:     "fallback without storage",
			platform: Platform{},
			ids:      nil,
			check: func(t *testing.T, id string) {
				if id != "fallback_1700000000000" {
					t.Fatalf("got %q, want fallback_1700000000000", id)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProvider(tt.ids)
			p.SetPlatform(tt.platform)
			tt.check(t, p.DeviceIdentifier(context.Background()))
		})
	}
}

func TestLocalOrWifiIPAddress(t *testing.T) {
	p := testProvider(nil)

	if got := p.LocalOrWifiIPAddress(); got != Unknown {
		t.Fatalf("no addresses: got %q, want %q", got, Unknown)
	}

	p.SetNetwork("wifi", "", "192.168.1.20")
	if got := p.LocalOrWifiIPAddress(); got != "192.168.1.20" {
		t.Fatalf("wifi fallback: got %q", got)
	}

	p.addrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1")},
			&net.IPNet{IP: net.ParseIP("fe80::1")},
			&net.IPNet{IP: net.ParseIP("10.0.0.7")},
		}, nil
	}
	if got := p.LocalOrWifiIPAddress(); got != "10.0.0.7" {
		t.Fatalf("interface address: got %q, want 10.0.0.7", got)
	}

	p.addrs = func() ([]net.Addr, error) { return nil, errors.New("denied") }
	p.SetNetwork("cellular", "", "0.0.0.0")
	if got := p.LocalOrWifiIPAddress(); got != Unknown {
		t.Fatalf("unassigned wifi: got %q, want %q", got, Unknown)
	}
}

func TestMetadata_DegradesGracefully(t *testing.T) {
	p := testProvider(nil)

	md := p.Metadata()
	if md.OperatingSystem != Unknown {
		t.Errorf("OperatingSystem = %q, want %q", md.OperatingSystem, Unknown)
	}
	if md.SDKVersion != SDKVersion {
		t.Errorf("SDKVersion = %q", md.SDKVersion)
	}

	p.SetPlatform(Platform{OS: "Android", OSVersion: "34", Brand: "Google", ScreenWidth: 1080, ScreenHeight: 2400, DeviceType: "Mobile"})
	p.SetNetwork("4G", "Jio", "")
	md = p.Metadata()
	if md.OperatingSystem != "Android" || md.DeviceBrand != "Google" || md.NetworkProvider != "Jio" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if md.ScreenDimensions.Width != 1080 || md.ScreenDimensions.Height != 2400 {
		t.Fatalf("screen = %+v", md.ScreenDimensions)
	}
}

func TestTimezone_FallsBackToLocal(t *testing.T) {
	p := testProvider(nil)
	if p.Timezone() == "" {
		t.Fatal("Timezone must not be empty")
	}
	p.SetPlatform(Platform{Timezone: "Asia/Kolkata"})
	if got := p.Timezone(); !strings.EqualFold(got, "Asia/Kolkata") {
		t.Fatalf("Timezone = %q", got)
	}
}
