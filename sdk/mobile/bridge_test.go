package mobile

import (
	"errors"
	"testing"
)

func TestParseRenderStatus(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantReason string
		wantErr    bool
	}{
		{name: "success", input: `{"type":"RENDER_STATUS","message":"Success"}`, wantOK: true},
		{name: "success lowercase", input: `{"type":"RENDER_STATUS","message":"success"}`, wantOK: true},
		{name: "failure with reason", input: `{"type":"RENDER_STATUS","message":"image 404"}`, wantReason: "image 404"},
		{name: "failure without reason", input: `{"type":"RENDER_STATUS"}`, wantReason: "render failed"},
		{name: "object message", input: `{"type":"RENDER_STATUS","message":{"code":3}}`, wantReason: `{"code":3}`},
		{name: "other type", input: `{"type":"PLAY"}`, wantErr: true},
		{name: "missing type", input: `{"message":"Success"}`, wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "invalid json", input: "{not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRenderStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v", got.OK, tt.wantOK)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestParseVideoStatus(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantCommand  videoCommand
		wantFraction float64
	}{
		{"play", `{"type":"PLAY"}`, videoPlay, 0},
		{"pause", `{"type":"PAUSE"}`, videoPause, 0},
		{"ended", `{"type":"ENDED"}`, videoEnded, 0},
		{"lowercase", `{"type":"play"}`, videoPlay, 0},
		{"progress field", `{"type":"PROGRESS","progress":0.5}`, videoProgress, 0.5},
		{"progress message", `{"type":"PROGRESS","message":"0.75"}`, videoProgress, 0.75},
		{"progress numeric message", `{"type":"PROGRESS","message":0.25}`, videoProgress, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVideoStatus(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Command != tt.wantCommand {
				t.Errorf("Command = %v, want %v", got.Command, tt.wantCommand)
			}
			if got.Fraction != tt.wantFraction {
				t.Errorf("Fraction = %v, want %v", got.Fraction, tt.wantFraction)
			}
		})
	}
}

func TestParseVideoStatus_Invalid(t *testing.T) {
	if _, err := parseVideoStatus(`{"type":"REWIND"}`); !errors.Is(err, errUnknownMessage) {
		t.Errorf("err = %v, want errUnknownMessage", err)
	}
	if _, err := parseVideoStatus(`{"type":"PROGRESS","message":"half"}`); err == nil {
		t.Error("expected error for non-numeric progress")
	}
	if _, err := parseVideoStatus(""); err == nil {
		t.Error("expected error for empty status")
	}
}

func TestParseDeviceInfo(t *testing.T) {
	info, err := parseDeviceInfo(`{
		"advertising_id": "gaid-1",
		"limit_ad_tracking": true,
		"platform_id": "android-id",
		"os": "Android",
		"screen_width": 1080,
		"screen_height": 2400,
		"density": 2.75
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.AdvertisingID != "gaid-1" || !info.LimitAdTracking || info.PlatformID != "android-id" {
		t.Errorf("ids = %+v", info)
	}
	if info.ScreenWidth != 1080 || info.ScreenHeight != 2400 || info.Density != 2.75 {
		t.Errorf("screen = %dx%d@%v", info.ScreenWidth, info.ScreenHeight, info.Density)
	}

	if _, err := parseDeviceInfo(""); err == nil {
		t.Error("expected error for empty JSON")
	}
	if _, err := parseDeviceInfo("[1,2]"); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestToMap(t *testing.T) {
	m, err := toMap(struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}{"x", 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["name"] != "x" || m["count"] != float64(3) {
		t.Errorf("map = %v", m)
	}
}
