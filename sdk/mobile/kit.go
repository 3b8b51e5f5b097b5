// Package mobile is the Go core of the Adgeist mobile ad SDK.
//
// This package is designed to be compiled with gomobile bind to produce
// .aar (Android) and .xcframework (iOS) libraries. The entry point is
// NewKit, which takes the configuration as a JSON string and returns a
// caller-owned *Kit. The Kit fetches creatives, tracks the lifecycle of every
// AdView it creates, and delivers analytics in the background.
//
// Native wrappers own the web view (Renderer) and push what only the
// platform knows: view geometry, window focus, device identifiers and
// messages posted by the creative's JavaScript.
package mobile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/adgeist/adgeistkit/internal/dedup"
	"github.com/adgeist/adgeistkit/internal/nats"
	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/analytics"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/attribution"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/batch"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/creative"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/device"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/lifecycle"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/transport"
)

// MeterName is the OpenTelemetry meter the Kit reports into.
const MeterName = "adgeistkit"

// Platform is reported with attribution records.
const Platform = "android"

// ErrClosed is returned by Kit methods called after Close.
var ErrClosed = errors.New("kit is closed")

// adFetcher fills a slot with a creative.
type adFetcher interface {
	Fetch(ctx context.Context, req creative.Request) (*creative.Ad, error)
}

// Kit owns every shared SDK component. Create one per process with NewKit
// and release it with Close.
type Kit struct {
	cfg     *Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   lifecycle.Clock
	errors  *errorHub

	db      *storage.DB
	client  *transport.Client
	filter  *dedup.Filter
	emitter *analytics.Emitter
	batcher *batch.Batcher
	fetcher adFetcher
	device  *device.Provider
	utm     *attribution.Tracker
	nc      *nats.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// KitOption customizes a Kit built with NewKitWithConfig.
type KitOption func(*kitOptions)

type kitOptions struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   lifecycle.Clock
	retry   transport.RetryStrategy
	fetcher adFetcher
}

// WithLogger replaces the logger derived from Config.LogLevel.
func WithLogger(logger *slog.Logger) KitOption {
	return func(o *kitOptions) { o.logger = logger }
}

// WithMetrics replaces the instruments created from the global MeterProvider.
func WithMetrics(m *observability.Metrics) KitOption {
	return func(o *kitOptions) { o.metrics = m }
}

func withRetry(r transport.RetryStrategy) KitOption {
	return func(o *kitOptions) { o.retry = r }
}

func withClock(c lifecycle.Clock) KitOption {
	return func(o *kitOptions) { o.clock = c }
}

func withFetcher(f adFetcher) KitOption {
	return func(o *kitOptions) { o.fetcher = f }
}

// NewKit initializes the SDK with a JSON configuration string.
//
// Example config JSON:
//
//	{"api_key": "key123", "app_id": "publisher-1", "origin": "https://example.com"}
func NewKit(configJSON string) (*Kit, error) {
	cfg, err := configFromJSON(configJSON)
	if err != nil {
		return nil, invalidConfig(err)
	}
	return NewKitWithConfig(cfg)
}

// NewKitWithConfig initializes the SDK from an already validated Config, as
// returned by ConfigFromEnv.
func NewKitWithConfig(cfg *Config, opts ...KitOption) (*Kit, error) {
	if cfg == nil {
		return nil, invalidConfig(errors.New("config is nil"))
	}
	if errMsg := cfg.validate(); errMsg != "" {
		return nil, invalidConfig(errors.New(errMsg))
	}
	c := *cfg
	c.applyDefaults()

	var o kitOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = newLogger(c.LogLevel)
	}
	logger = logger.With("app_id", c.AppID)

	metrics := o.metrics
	if metrics == nil {
		m, err := observability.NewMetrics(otel.GetMeterProvider().Meter(MeterName))
		if err != nil {
			logger.Warn("metrics unavailable", "error", err)
			m = observability.Discard()
		}
		metrics = m
	}
	clock := o.clock
	if clock == nil {
		clock = lifecycle.SystemClock{}
	}

	dataPath := c.DataPath
	if dataPath == "" {
		dataPath = storage.MemoryPath
	}
	db, err := storage.NewDB(dataPath)
	if err != nil {
		sdkErr := newFatalError(ErrCodeDiskError, fmt.Sprintf("open storage: %v", err))
		sdkErr.err = err
		return nil, sdkErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &Kit{
		cfg:     &c,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		errors:  newErrorHub(logger),
		db:      db,
		ctx:     ctx,
		cancel:  cancel,
	}

	k.client = transport.NewClient(transport.Options{
		BaseURL:           c.BaseURL(),
		APIKey:            c.APIKey,
		Origin:            c.Origin,
		Timeout:           ms(c.RequestTimeoutMs),
		Retry:             o.retry,
		RequestsPerSecond: c.MaxRequestsPerSecond,
		Metrics:           metrics,
		Logger:            logger,
	})

	sender, err := k.newSender(ctx)
	if err != nil {
		cancel()
		_ = db.Close()
		sdkErr := newFatalError(ErrCodeNetworkError, fmt.Sprintf("analytics sink: %v", err))
		sdkErr.err = err
		return nil, sdkErr
	}

	k.batcher = batch.NewBatcher(storage.NewQueue(db, c.MaxQueueSize), sender, batch.Config{
		BatchSize:     c.BatchSize,
		FlushInterval: ms(c.FlushIntervalMs),
		MaxRetries:    c.MaxRetries,
	}, metrics, logger)
	k.batcher.SetOnError(func(err error) {
		k.errors.log(&SDKError{Code: ErrCodeNetworkError, Message: err.Error(), Severity: SeverityDebug, err: err})
	})
	k.batcher.StartFlushLoop(ctx)

	k.filter = dedup.New(dedup.DefaultConfig(), metrics, logger)
	k.filter.Start(ctx)

	k.emitter = analytics.NewEmitter(k.batcher, metrics, logger,
		analytics.WithDedup(k.filter),
		analytics.WithClock(clock.Now),
		analytics.WithErrorHook(func(err error) {
			code := ErrCodeDiskError
			if errors.Is(err, analytics.ErrClosed) {
				code = ErrCodeNotInitialized
			}
			k.errors.log(&SDKError{Code: code, Message: err.Error(), Severity: SeverityWarning, err: err})
		}),
	)

	k.fetcher = o.fetcher
	if k.fetcher == nil {
		k.fetcher = creative.NewFetcher(k.client, logger)
	}
	k.device = device.NewProvider(device.NewIDManager(db), logger)
	k.utm = attribution.NewTracker(storage.NewKV(db, attribution.Namespace), k.client, Platform, logger)

	logger.Info("adgeistkit initialized",
		"domain", c.Domain,
		"sink", c.Sink,
		"persistent", c.DataPath != "",
	)
	return k, nil
}

// newSender builds the delivery backend for the batcher.
func (k *Kit) newSender(ctx context.Context) (batch.Sender, error) {
	if k.cfg.Sink != SinkNATS {
		return k.client, nil
	}

	ncfg := nats.DefaultConfig()
	ncfg.URL = k.cfg.NATSURL
	ncfg.SubjectPrefix = k.cfg.NATSSubjectPrefix
	nc, err := nats.Connect(ncfg, k.logger)
	if err != nil {
		return nil, err
	}

	setupCtx, cancel := context.WithTimeout(ctx, ncfg.Timeout)
	defer cancel()
	if _, err := nats.NewStreamManager(nc.JetStream(), ncfg, k.logger).EnsureStream(setupCtx); err != nil {
		nc.Close()
		return nil, err
	}
	k.nc = nc
	return natsSender{pub: nats.NewPublisher(nc.JetStream(), ncfg.SubjectPrefix, k.metrics, k.logger)}, nil
}

// natsSender delivers queued events through JetStream instead of HTTP.
type natsSender struct {
	pub interface {
		PublishBatch(ctx context.Context, msgs []nats.Message) (int, error)
	}
}

func (s natsSender) Send(ctx context.Context, events []storage.PendingEvent) (int, error) {
	msgs := make([]nats.Message, len(events))
	for i, e := range events {
		msgs[i] = nats.Message{
			AdSpaceID: e.AdSpaceID,
			Type:      e.EventType,
			ID:        e.IdempotencyKey,
			Data:      []byte(e.Payload),
		}
	}
	return s.pub.PublishBatch(ctx, msgs)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})).With("sdk", "adgeistkit")
}

// Config returns a copy of the effective configuration.
func (k *Kit) Config() Config { return *k.cfg }

// RegisterErrorCallback adds a callback for error notifications. Multiple
// callbacks can be registered; all will be notified.
func (k *Kit) RegisterErrorCallback(callback ErrorCallback) {
	k.errors.register(callback)
}

// UnregisterErrorCallbacks clears all registered callbacks.
func (k *Kit) UnregisterErrorCallbacks() {
	k.errors.clear()
}

// Flush delivers queued analytics now. Returns empty string on success, or
// an error message on failure.
func (k *Kit) Flush() string {
	if k.isClosed() {
		return ErrClosed.Error()
	}
	return wrapError(k.batcher.Flush(k.ctx))
}

// PendingEvents returns the number of analytics events awaiting delivery.
func (k *Kit) PendingEvents() int {
	n, err := k.batcher.Pending()
	if err != nil {
		k.logger.Warn("count pending events", "error", err)
		return 0
	}
	return n
}

// DeviceInfo is what the native layer knows about the device. It crosses the
// bridge as JSON.
type DeviceInfo struct {
	AdvertisingID   string  `json:"advertising_id,omitempty"`
	LimitAdTracking bool    `json:"limit_ad_tracking,omitempty"`
	PlatformID      string  `json:"platform_id,omitempty"`
	OS              string  `json:"os,omitempty"`
	OSVersion       string  `json:"os_version,omitempty"`
	Brand           string  `json:"brand,omitempty"`
	Model           string  `json:"model,omitempty"`
	DeviceType      string  `json:"device_type,omitempty"`
	CPUType         string  `json:"cpu_type,omitempty"`
	Processors      int     `json:"processors,omitempty"`
	ScreenWidth     int     `json:"screen_width,omitempty"`
	ScreenHeight    int     `json:"screen_height,omitempty"`
	Density         float64 `json:"density,omitempty"`
	Locale          string  `json:"locale,omitempty"`
	Timezone        string  `json:"timezone,omitempty"`
	AppVersion      string  `json:"app_version,omitempty"`
	TouchScreen     bool    `json:"touch_screen,omitempty"`
	GPUCapable      bool    `json:"gpu_capable,omitempty"`
	NFCCapable      bool    `json:"nfc_capable,omitempty"`
	VRCapable       bool    `json:"vr_capable,omitempty"`
	ScreenReader    bool    `json:"screen_reader,omitempty"`
}

// SetDeviceInfo replaces the platform values. Returns empty string on
// success, or an error message on failure.
func (k *Kit) SetDeviceInfo(deviceJSON string) string {
	info, err := parseDeviceInfo(deviceJSON)
	if err != nil {
		sdkErr := newWarningError(ErrCodeInvalidJSON, err.Error())
		k.errors.log(sdkErr)
		return sdkErr.Error()
	}
	k.device.SetPlatform(device.Platform{
		AdvertisingID:   info.AdvertisingID,
		LimitAdTracking: info.LimitAdTracking,
		PlatformID:      info.PlatformID,
		OS:              info.OS,
		OSVersion:       info.OSVersion,
		Brand:           info.Brand,
		Model:           info.Model,
		DeviceType:      info.DeviceType,
		CPUType:         info.CPUType,
		Processors:      info.Processors,
		ScreenWidth:     info.ScreenWidth,
		ScreenHeight:    info.ScreenHeight,
		Density:         info.Density,
		Locale:          info.Locale,
		Timezone:        info.Timezone,
		AppVersion:      info.AppVersion,
		TouchScreen:     info.TouchScreen,
		GPUCapable:      info.GPUCapable,
		NFCCapable:      info.NFCCapable,
		VRCapable:       info.VRCapable,
		ScreenReader:    info.ScreenReader,
	})
	return ""
}

// SetNetwork records the active network. wifiIP is used when no interface
// address can be read.
func (k *Kit) SetNetwork(kind, provider, wifiIP string) {
	k.device.SetNetwork(kind, provider, wifiIP)
}

// DeviceIdentifier returns the id sent with bid requests.
func (k *Kit) DeviceIdentifier() string {
	return k.device.DeviceIdentifier(k.ctx)
}

// TrackDeeplink records UTM parameters carried by a deeplink and reports
// them to the backend. Returns empty string on success.
func (k *Kit) TrackDeeplink(rawURL string) string {
	_, err := k.utm.TrackDeeplink(k.ctx, rawURL)
	return k.attributionResult(err)
}

// TrackInstallReferrer records UTM parameters from a Play install referrer.
// Returns empty string on success.
func (k *Kit) TrackInstallReferrer(referrer string) string {
	_, err := k.utm.TrackInstallReferrer(k.ctx, referrer)
	return k.attributionResult(err)
}

func (k *Kit) attributionResult(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, attribution.ErrNoParameters) {
		k.logger.Debug("no utm parameters", "error", err)
		return err.Error()
	}
	sdkErr := classify(err)
	k.errors.log(sdkErr)
	return sdkErr.Error()
}

// UTMParameters returns the stored attribution as JSON, or "" when none has
// been recorded.
func (k *Kit) UTMParameters() string {
	p, ok, err := k.utm.Parameters()
	if err != nil {
		k.logger.Warn("read utm parameters", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	data, err := marshalJSON(p)
	if err != nil {
		return ""
	}
	return data
}

// ClearUTM forgets stored attribution. Returns empty string on success.
func (k *Kit) ClearUTM() string {
	return wrapError(k.utm.Clear())
}

// IsFirstLaunch reports whether this is the first launch since install. The
// first call records the launch.
func (k *Kit) IsFirstLaunch() bool {
	first, err := k.utm.FirstLaunch()
	if err != nil {
		k.logger.Warn("first launch check", "error", err)
		return false
	}
	return first
}

// Close stops background work, delivers what can still be delivered, and
// releases storage. AdViews created from the Kit must not be used afterward.
// Safe to call more than once.
func (k *Kit) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	k.emitter.Close()
	k.batcher.Stop()
	k.cancel()
	k.filter.Stop()
	if k.nc != nil {
		k.nc.Close()
	}
	err := k.db.Close()
	k.logger.Info("adgeistkit closed")
	return err
}

func (k *Kit) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

func (k *Kit) deviceRequest(ctx context.Context, adUnitID string, testMode bool, buyType creative.BuyType) creative.Request {
	meta := k.device.Metadata()
	devMap, err := toMap(meta)
	if err != nil {
		k.logger.Debug("encode device metadata", "error", err)
	}
	return creative.Request{
		AdSpaceID: adUnitID,
		CompanyID: k.cfg.AppID,
		BuyType:   buyType,
		TestMode:  testMode,
		Origin:    k.cfg.Origin,
		TimeZone:  k.device.Timezone(),
		DeviceID:  k.device.DeviceIdentifier(ctx),
		UserIP:    k.device.LocalOrWifiIPAddress(),
		Device:    devMap,
		AppName:   k.cfg.PackageID,
		AppBundle: k.cfg.PackageID,
	}
}
