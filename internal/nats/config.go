// Package nats publishes SDK analytics to NATS JetStream, for hosts that
// route ad events through their own broker instead of the HTTP backend.
package nats

import (
	"time"
)

// Config holds NATS connection and stream configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	// Name is the client connection name for monitoring
	Name string `env:"NATS_CLIENT_NAME" envDefault:"adgeistkit"`

	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"60"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
	Timeout       time.Duration `env:"NATS_TIMEOUT" envDefault:"5s"`

	// SubjectPrefix roots every analytics subject: {prefix}.{ad_space}.{type}
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"adgeist.analytics"`

	Stream StreamConfig `envPrefix:"NATS_STREAM_"`
}

// StreamConfig holds JetStream stream configuration. The stream captures
// "{SubjectPrefix}.>".
type StreamConfig struct {
	Name string `env:"NAME" envDefault:"ADGEIST_ANALYTICS"`

	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"72h"`
	MaxBytes int64         `env:"MAX_BYTES" envDefault:"268435456"` // 256MB
	Replicas int           `env:"REPLICAS" envDefault:"1"`

	// Storage is "file" or "memory"
	Storage string `env:"STORAGE" envDefault:"file"`

	// DuplicateWindow is how long JetStream remembers message IDs.
	DuplicateWindow time.Duration `env:"DUPLICATE_WINDOW" envDefault:"2h"`
}

// DefaultConfig mirrors the env defaults for callers that do not parse the
// environment.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "adgeistkit",
		MaxReconnects: 60,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		SubjectPrefix: "adgeist.analytics",
		Stream: StreamConfig{
			Name:            "ADGEIST_ANALYTICS",
			MaxAge:          72 * time.Hour,
			MaxBytes:        256 << 20,
			Replicas:        1,
			Storage:         "file",
			DuplicateWindow: 2 * time.Hour,
		},
	}
}
