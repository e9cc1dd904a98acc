package api

import (
	"log/slog"
	"time"
)

// DefaultMaxRequestBodyBytes bounds create request bodies when the config leaves it unset.
const DefaultMaxRequestBodyBytes int64 = 1024 * 1024

// HTTPServerConfig configures the collections API server.
type HTTPServerConfig struct {
	// ListenAddr serves the collections API.
	ListenAddr string

	// MetricsAddr serves Prometheus metrics. Empty disables the metrics listener.
	MetricsAddr string

	// EnablePprof mounts pprof under /debug.
	EnablePprof bool

	Log *slog.Logger

	// MaxRequestBodyBytes caps API request bodies; larger create requests are answered with 413.
	MaxRequestBodyBytes int64

	// DrainDuration is how long /readyz reports not ready before shutdown proceeds.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds waiting for in-flight API requests on shutdown.
	// Issuer completions are not covered; the dispatcher drains them separately.
	GracefulShutdownDuration time.Duration

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// BodyLimit returns MaxRequestBodyBytes or the default when unset.
func (c *HTTPServerConfig) BodyLimit() int64 {
	if c.MaxRequestBodyBytes > 0 {
		return c.MaxRequestBodyBytes
	}
	return DefaultMaxRequestBodyBytes
}
