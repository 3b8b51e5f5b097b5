package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// streamAdmin is the part of jetstream.JetStream the StreamManager uses.
type streamAdmin interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamManager provisions the analytics stream.
type StreamManager struct {
	js            streamAdmin
	config        StreamConfig
	subjectPrefix string
	logger        *slog.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(js streamAdmin, cfg Config, logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		js:            js,
		config:        cfg.Stream,
		subjectPrefix: cfg.SubjectPrefix,
		logger:        logger.With("component", "stream-manager"),
	}
}

// StreamConfig returns the JetStream configuration EnsureStream applies.
func (m *StreamManager) StreamConfig() jetstream.StreamConfig {
	storage := jetstream.FileStorage
	if strings.ToLower(m.config.Storage) == "memory" {
		storage = jetstream.MemoryStorage
	}
	return jetstream.StreamConfig{
		Name:       m.config.Name,
		Subjects:   []string{m.subjectPrefix + ".>"},
		Storage:    storage,
		MaxAge:     m.config.MaxAge,
		MaxBytes:   m.config.MaxBytes,
		Replicas:   m.config.Replicas,
		Retention:  jetstream.LimitsPolicy,
		Discard:    jetstream.DiscardOld,
		Duplicates: m.config.DuplicateWindow,
	}
}

// EnsureStream creates the stream, or updates it if it already exists.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := m.StreamConfig()

	if _, err := m.js.Stream(ctx, m.config.Name); err == nil {
		m.logger.Info("updating existing stream", "name", m.config.Name)
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to update stream: %w", err)
		}
		return stream, nil
	}

	m.logger.Info("creating new stream", "name", m.config.Name, "subjects", streamCfg.Subjects)
	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	m.logger.Info("stream created",
		"name", m.config.Name,
		"storage", m.config.Storage,
		"max_age", m.config.MaxAge,
	)
	return stream, nil
}
