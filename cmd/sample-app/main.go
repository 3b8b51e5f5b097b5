// Command sample-app hosts the ad SDK the way a native app would. It drives
// scripted ad slots against a live backend and exposes the SDK's metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile"
)

// Config holds the host settings. The SDK itself is configured from the
// ADGEIST_* variables.
type Config struct {
	// LogLevel is the log level (debug, info, warn, error)
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is the log format (json, text)
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsAddr serves /metrics. Empty disables it.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	AdUnitIDs []string      `env:"AD_UNIT_IDS" envSeparator:"," envDefault:"demo-banner"`
	TestMode  bool          `env:"TEST_MODE" envDefault:"true"`
	Rounds    int           `env:"ROUNDS" envDefault:"1"`
	Dwell     time.Duration `env:"DWELL" envDefault:"2s"`
	Video     bool          `env:"VIDEO" envDefault:"false"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	kitCfg, err := mobile.ConfigFromEnv()
	if err != nil {
		logger.Error("failed to parse sdk config", "error", err)
		os.Exit(1)
	}

	obs, err := observability.New("adgeist-sample-app")
	if err != nil {
		logger.Error("failed to set up metrics", "error", err)
		os.Exit(1)
	}

	kit, err := mobile.NewKitWithConfig(kitCfg, mobile.WithLogger(logger))
	if err != nil {
		logger.Error("failed to initialize sdk", "error", err)
		os.Exit(1)
	}
	kit.RegisterErrorCallback(logCallback{logger: logger})

	logger.Info("starting sample app",
		"domain", kitCfg.Domain,
		"sink", kitCfg.Sink,
		"ad_units", cfg.AdUnitIDs,
		"metrics_addr", cfg.MetricsAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var server *http.Server
	errCh := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", obs.MetricsHandler())
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	slots, err := obs.Meter().Int64Counter("sample_app.slots",
		otelmetric.WithDescription("Scripted ad slots played, by outcome"))
	if err != nil {
		logger.Error("failed to create host metrics", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runScenario(ctx, kit, cfg, slots, logger)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("metrics server error", "error", err)
	case <-done:
		logger.Info("scenario finished")
	}

	logger.Info("initiating graceful shutdown")
	cancel()
	<-done

	if msg := kit.Flush(); msg != "" {
		logger.Warn("final flush failed", "error", msg)
	}
	if err := kit.Close(); err != nil {
		logger.Error("sdk close error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}

	logger.Info("sample app stopped")
}

// setupLogger creates a logger based on configuration.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

type logCallback struct {
	logger *slog.Logger
}

func (c logCallback) OnError(code, message string, severity int) {
	c.logger.Warn("sdk error", "code", code, "message", message,
		"severity", mobile.ErrorSeverity(severity).String())
}
