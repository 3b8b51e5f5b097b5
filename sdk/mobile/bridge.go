package mobile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message types posted by the creative's JavaScript.
const (
	msgRenderStatus = "RENDER_STATUS"
	msgPlay         = "PLAY"
	msgPause        = "PAUSE"
	msgEnded        = "ENDED"
	msgProgress     = "PROGRESS"

	renderSuccess = "Success"
)

var errUnknownMessage = errors.New("unknown bridge message")

// bridgeMessage is the envelope every web view message uses:
// {"type":"RENDER_STATUS","message":"Success"}.
type bridgeMessage struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message,omitempty"`
	Progress *float64        `json:"progress,omitempty"`
}

func (m bridgeMessage) text() string {
	if len(m.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Message, &s); err == nil {
		return s
	}
	return string(m.Message)
}

func parseBridgeMessage(jsonStr string) (bridgeMessage, error) {
	if jsonStr == "" {
		return bridgeMessage{}, fmt.Errorf("bridge message is empty")
	}
	var m bridgeMessage
	if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		return bridgeMessage{}, fmt.Errorf("invalid bridge message JSON: %w", err)
	}
	if m.Type == "" {
		return bridgeMessage{}, fmt.Errorf("bridge message type is required")
	}
	return m, nil
}

// renderStatus is the outcome reported by a RENDER_STATUS message.
type renderStatus struct {
	OK     bool
	Reason string
}

func parseRenderStatus(jsonStr string) (renderStatus, error) {
	m, err := parseBridgeMessage(jsonStr)
	if err != nil {
		return renderStatus{}, err
	}
	if m.Type != msgRenderStatus {
		return renderStatus{}, fmt.Errorf("%w: %s", errUnknownMessage, m.Type)
	}
	text := m.text()
	if strings.EqualFold(text, renderSuccess) {
		return renderStatus{OK: true}, nil
	}
	if text == "" {
		text = "render failed"
	}
	return renderStatus{Reason: text}, nil
}

type videoCommand int

const (
	videoPlay videoCommand = iota
	videoPause
	videoEnded
	videoProgress
)

// videoStatus is a parsed player status message. Fraction is set for
// videoProgress only.
type videoStatus struct {
	Command  videoCommand
	Fraction float64
}

func parseVideoStatus(jsonStr string) (videoStatus, error) {
	m, err := parseBridgeMessage(jsonStr)
	if err != nil {
		return videoStatus{}, err
	}
	switch strings.ToUpper(m.Type) {
	case msgPlay:
		return videoStatus{Command: videoPlay}, nil
	case msgPause:
		return videoStatus{Command: videoPause}, nil
	case msgEnded:
		return videoStatus{Command: videoEnded}, nil
	case msgProgress:
		if m.Progress != nil {
			return videoStatus{Command: videoProgress, Fraction: *m.Progress}, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(m.text()), 64)
		if err != nil {
			return videoStatus{}, fmt.Errorf("invalid progress value: %w", err)
		}
		return videoStatus{Command: videoProgress, Fraction: f}, nil
	}
	return videoStatus{}, fmt.Errorf("%w: %s", errUnknownMessage, m.Type)
}

func parseDeviceInfo(jsonStr string) (*DeviceInfo, error) {
	if jsonStr == "" {
		return nil, fmt.Errorf("device JSON is empty")
	}
	var info DeviceInfo
	if err := json.Unmarshal([]byte(jsonStr), &info); err != nil {
		return nil, fmt.Errorf("invalid device JSON: %w", err)
	}
	return &info, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize: %w", err)
	}
	return string(data), nil
}

// toMap re-shapes a struct into the generic map the ad request embeds.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
