package mobile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the SDK configuration.
// All fields use gomobile-compatible types (string, int, float64, bool).
// JSON tags enable initialization from serialized config strings; env tags
// let server-side hosts configure the SDK from the environment.
type Config struct {
	// APIKey authenticates every backend request (required).
	APIKey string `json:"api_key" env:"ADGEIST_API_KEY"`

	// AppID is the publisher (company) identifier (required).
	AppID string `json:"app_id" env:"ADGEIST_APP_ID"`

	// Origin is the publisher's registered origin, sent as the Origin header.
	Origin string `json:"origin,omitempty" env:"ADGEIST_ORIGIN"`

	// PackageID is the host application's bundle id.
	PackageID string `json:"package_id,omitempty" env:"ADGEIST_PACKAGE_ID"`

	// Domain is the backend host (default: bg-services-qa-api.adgeist.ai).
	// A bare host is served over https; a full URL is used as is.
	Domain string `json:"domain,omitempty" env:"ADGEIST_DOMAIN"`

	// DataPath is the SQLite file for the analytics queue and install id.
	// Empty keeps everything in memory.
	DataPath string `json:"data_path,omitempty" env:"ADGEIST_DATA_PATH"`

	// Sink selects analytics delivery: "http" (default) or "nats".
	Sink string `json:"sink,omitempty" env:"ADGEIST_SINK"`

	// NATSURL and NATSSubjectPrefix configure the "nats" sink.
	NATSURL           string `json:"nats_url,omitempty" env:"ADGEIST_NATS_URL"`
	NATSSubjectPrefix string `json:"nats_subject_prefix,omitempty" env:"ADGEIST_NATS_SUBJECT_PREFIX"`

	// BatchSize is the maximum number of events per flush (default: 10).
	BatchSize int `json:"batch_size,omitempty" env:"ADGEIST_BATCH_SIZE"`

	// FlushIntervalMs is the maximum time between flushes in milliseconds (default: 5000).
	FlushIntervalMs int `json:"flush_interval_ms,omitempty" env:"ADGEIST_FLUSH_INTERVAL_MS"`

	// MaxQueueSize caps the persisted queue; the oldest events are evicted (default: 1000).
	MaxQueueSize int `json:"max_queue_size,omitempty" env:"ADGEIST_MAX_QUEUE_SIZE"`

	// MaxRetries is how many failed flushes an event survives (default: 10).
	MaxRetries int `json:"max_retries,omitempty" env:"ADGEIST_MAX_RETRIES"`

	// RequestTimeoutMs bounds a single HTTP request (default: 10000).
	RequestTimeoutMs int `json:"request_timeout_ms,omitempty" env:"ADGEIST_REQUEST_TIMEOUT_MS"`

	// MaxRequestsPerSecond caps outgoing requests. Zero means unlimited.
	MaxRequestsPerSecond float64 `json:"max_requests_per_second,omitempty" env:"ADGEIST_MAX_REQUESTS_PER_SECOND"`

	// VisibilityThreshold is the visible area ratio counted as viewable (default: 0.5).
	VisibilityThreshold float64 `json:"visibility_threshold,omitempty" env:"ADGEIST_VISIBILITY_THRESHOLD"`

	// MinViewTimeMs is the continuous dwell needed for a viewable impression (default: 1000).
	MinViewTimeMs int `json:"min_view_time_ms,omitempty" env:"ADGEIST_MIN_VIEW_TIME_MS"`

	// VisibilityCheckIntervalMs is the dwell ticker period (default: 100).
	VisibilityCheckIntervalMs int `json:"visibility_check_interval_ms,omitempty" env:"ADGEIST_VISIBILITY_CHECK_INTERVAL_MS"`

	// LoadDelayMs is waited before each creative fetch (default: 400). Negative disables it.
	LoadDelayMs int `json:"load_delay_ms,omitempty" env:"ADGEIST_LOAD_DELAY_MS"`

	// DebugMode enables verbose logging (default: false).
	DebugMode bool `json:"debug_mode,omitempty" env:"ADGEIST_DEBUG_MODE"`

	// LogLevel is debug, info, warn or error (default: warn, or debug in DebugMode).
	LogLevel string `json:"log_level,omitempty" env:"ADGEIST_LOG_LEVEL"`
}

// Default configuration values.
const (
	DefaultDomain                    = "bg-services-qa-api.adgeist.ai"
	DefaultSink                      = SinkHTTP
	DefaultNATSURL                   = "nats://localhost:4222"
	DefaultNATSSubjectPrefix         = "adgeist.analytics"
	DefaultBatchSize                 = 10
	DefaultFlushIntervalMs           = 5000
	DefaultMaxQueueSize              = 1000
	DefaultMaxRetries                = 10
	DefaultRequestTimeoutMs          = 10000
	DefaultVisibilityThreshold       = 0.5
	DefaultMinViewTimeMs             = 1000
	DefaultVisibilityCheckIntervalMs = 100
	DefaultLoadDelayMs               = 400

	MinFlushIntervalMs = 100
	MinQueueSize       = 10
)

// Analytics sinks.
const (
	SinkHTTP = "http"
	SinkNATS = "nats"
)

// validate checks that required fields are set and values are valid.
// Returns empty string on success, error message on failure.
func (c *Config) validate() string {
	if strings.TrimSpace(c.APIKey) == "" {
		return "api_key is required"
	}
	if strings.TrimSpace(c.AppID) == "" {
		return "app_id is required"
	}

	if strings.Contains(c.Domain, "://") {
		parsed, err := url.Parse(c.Domain)
		if err != nil {
			return fmt.Sprintf("domain is not a valid URL: %s", err.Error())
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return "domain must be a host or include scheme and host"
		}
	}

	switch c.Sink {
	case "", SinkHTTP, SinkNATS:
	default:
		return fmt.Sprintf("sink must be %q or %q", SinkHTTP, SinkNATS)
	}

	if c.BatchSize < 0 {
		return "batch_size must be non-negative"
	}
	if c.FlushIntervalMs < 0 {
		return "flush_interval_ms must be non-negative"
	}
	if c.FlushIntervalMs > 0 && c.FlushIntervalMs < MinFlushIntervalMs {
		return fmt.Sprintf("flush_interval_ms must be at least %d", MinFlushIntervalMs)
	}
	if c.MaxQueueSize < 0 {
		return "max_queue_size must be non-negative"
	}
	if c.MaxQueueSize > 0 && c.MaxQueueSize < MinQueueSize {
		return fmt.Sprintf("max_queue_size must be at least %d", MinQueueSize)
	}
	if c.MaxRetries < 0 {
		return "max_retries must be non-negative"
	}
	if c.RequestTimeoutMs < 0 {
		return "request_timeout_ms must be non-negative"
	}
	if c.MaxRequestsPerSecond < 0 {
		return "max_requests_per_second must be non-negative"
	}
	if c.VisibilityThreshold < 0 || c.VisibilityThreshold > 1 {
		return "visibility_threshold must be between 0 and 1"
	}
	if c.MinViewTimeMs < 0 {
		return "min_view_time_ms must be non-negative"
	}
	if c.VisibilityCheckIntervalMs < 0 {
		return "visibility_check_interval_ms must be non-negative"
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return "log_level must be one of debug, info, warn, error"
	}

	return ""
}

// applyDefaults fills in default values for unset optional fields.
func (c *Config) applyDefaults() {
	c.Domain = strings.TrimSuffix(strings.TrimSpace(c.Domain), "/")
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Sink == "" {
		c.Sink = DefaultSink
	}
	if c.NATSURL == "" {
		c.NATSURL = DefaultNATSURL
	}
	if c.NATSSubjectPrefix == "" {
		c.NATSSubjectPrefix = DefaultNATSSubjectPrefix
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushIntervalMs == 0 {
		c.FlushIntervalMs = DefaultFlushIntervalMs
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RequestTimeoutMs == 0 {
		c.RequestTimeoutMs = DefaultRequestTimeoutMs
	}
	if c.VisibilityThreshold == 0 {
		c.VisibilityThreshold = DefaultVisibilityThreshold
	}
	if c.MinViewTimeMs == 0 {
		c.MinViewTimeMs = DefaultMinViewTimeMs
	}
	if c.VisibilityCheckIntervalMs == 0 {
		c.VisibilityCheckIntervalMs = DefaultVisibilityCheckIntervalMs
	}
	if c.LoadDelayMs == 0 {
		c.LoadDelayMs = DefaultLoadDelayMs
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
		if c.DebugMode {
			c.LogLevel = "debug"
		}
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// BaseURL is the backend root every request is resolved against.
func (c *Config) BaseURL() string {
	if strings.Contains(c.Domain, "://") {
		return c.Domain
	}
	return "https://" + c.Domain
}

func (c *Config) loadDelay() time.Duration {
	if c.LoadDelayMs < 0 {
		return 0
	}
	return time.Duration(c.LoadDelayMs) * time.Millisecond
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// configFromJSON parses a JSON config string and returns a validated Config.
func configFromJSON(jsonStr string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}
	return finishConfig(&cfg)
}

// ConfigFromEnv reads ADGEIST_* variables and returns a validated Config.
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	return finishConfig(&cfg)
}

func finishConfig(cfg *Config) (*Config, error) {
	if errMsg := cfg.validate(); errMsg != "" {
		return nil, fmt.Errorf("config validation failed: %s", errMsg)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// JSON serializes the config for native wrappers.
func (c *Config) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}
