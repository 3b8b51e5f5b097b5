package nats

import "errors"

// ErrPartialPublish is returned when a batch publish stops partway.
var ErrPartialPublish = errors.New("failed to publish some events")
