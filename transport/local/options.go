package local

import (
	"log/slog"

	"github.com/rbaliyan/safe-event/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// options holds configuration for transport (unexported)
type options struct {
	recovery      bool
	onError       func(error)
	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// Option configures the local transport
type Option func(*options)

// WithRecovery enables/disables panic recovery around each listener.
// When enabled (default), a panicking listener is logged and reported to the
// error handler and the remaining listeners still run.
func WithRecovery(enabled bool) Option {
	return func(o *options) {
		o.recovery = enabled
	}
}

// WithErrorHandler sets the error handler callback.
// Called when a listener panics and recovery is enabled.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithLogger sets the logger for transport
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used for transport metrics.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// newOptions creates options with defaults and applies provided options
func newOptions(opts ...Option) *options {
	o := &options{
		recovery:      true,
		onError:       func(error) {}, // no-op default
		logger:        transport.Logger("transport>local"),
		meterProvider: otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}
