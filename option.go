package event

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/safe-event/payload"
	"github.com/rbaliyan/safe-event/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRequestTimeout is used by Request when neither the bus nor the call
// sets a timeout.
var DefaultRequestTimeout = 5 * time.Second

// JoinKeySeparator joins sorted event names into a join group key
const JoinKeySeparator = "|"

// busOptions holds configuration for bus (unexported)
type busOptions struct {
	transport       transport.Transport
	logger          *slog.Logger
	tracingEnabled  bool
	recoveryEnabled bool
	metricsEnabled  bool
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
	defaultTimeout  time.Duration
	strictJoins     bool
	correlationTTL  time.Duration
	contentType     string
	onError         func(error)
}

// Option option function for bus configuration
type Option func(*busOptions)

// WithTransport sets a custom dispatch table for the bus.
// Default is a local.Transport built from the bus options.
func WithTransport(t transport.Transport) Option {
	return func(o *busOptions) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithTracing enables/disables tracing for the bus
func WithTracing(enabled bool) Option {
	return func(o *busOptions) {
		o.tracingEnabled = enabled
	}
}

// WithRecovery enables/disables panic recovery around handlers.
// Only applies to the default transport.
func WithRecovery(enabled bool) Option {
	return func(o *busOptions) {
		o.recoveryEnabled = enabled
	}
}

// WithMetrics enables/disables metrics for the bus
func WithMetrics(enabled bool) Option {
	return func(o *busOptions) {
		o.metricsEnabled = enabled
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *busOptions) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *busOptions) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithLogger sets a custom logger for the bus
func WithLogger(l *slog.Logger) Option {
	return func(o *busOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultTimeout sets the timeout Request uses when the call does not set one.
// Non-positive values are ignored.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *busOptions) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithStrictJoins makes SubscribeJoin fail with ErrJoinConflict when a join
// over the same event-name set is already armed. By default the new handler
// replaces the previous one.
func WithStrictJoins(enabled bool) Option {
	return func(o *busOptions) {
		o.strictJoins = enabled
	}
}

// WithCorrelationTTL evicts partially collected join entries older than d.
// Zero (default) keeps them for the lifetime of the bus.
func WithCorrelationTTL(d time.Duration) Option {
	return func(o *busOptions) {
		if d >= 0 {
			o.correlationTTL = d
		}
	}
}

// WithPayloadContentType selects, by content type, the codec typed events on
// the bus use to convert payloads (see payload.Get). Unknown content types
// fall back to JSON. WithPayloadCodec on a single event takes precedence.
func WithPayloadContentType(contentType string) Option {
	return func(o *busOptions) {
		o.contentType = contentType
	}
}

// WithErrorHandler sets a callback for errors that cannot be returned to a
// caller: recovered handler panics, payload conversion failures and failed
// responders.
func WithErrorHandler(fn func(error)) Option {
	return func(o *busOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithConfig applies a Config
func WithConfig(c Config) Option {
	return func(o *busOptions) {
		for _, opt := range c.Options() {
			opt(o)
		}
	}
}

// newBusOptions creates options with defaults and applies provided options
func newBusOptions(opts ...Option) *busOptions {
	o := &busOptions{
		logger:          slog.Default(),
		tracingEnabled:  true,
		recoveryEnabled: true,
		metricsEnabled:  true,
		tracerProvider:  otel.GetTracerProvider(),
		meterProvider:   otel.GetMeterProvider(),
		defaultTimeout:  DefaultRequestTimeout,
		onError:         func(error) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config is the file-friendly form of the bus options
type Config struct {
	// DefaultTimeoutMillis is the Request timeout used when a call sets none
	DefaultTimeoutMillis int `json:"defaultTimeoutMillis,omitempty" yaml:"defaultTimeoutMillis,omitempty"`
	// CorrelationTTLMillis evicts incomplete join entries; 0 disables expiry
	CorrelationTTLMillis int `json:"correlationTTLMillis,omitempty" yaml:"correlationTTLMillis,omitempty"`
	// StrictJoins rejects a second join over the same event-name set
	StrictJoins bool `json:"strictJoins,omitempty" yaml:"strictJoins,omitempty"`
	// PayloadContentType picks the typed event codec, e.g. "application/msgpack"
	PayloadContentType string `json:"payloadContentType,omitempty" yaml:"payloadContentType,omitempty"`
}

// Options converts the config to bus options
func (c Config) Options() []Option {
	opts := []Option{WithStrictJoins(c.StrictJoins)}
	if c.DefaultTimeoutMillis > 0 {
		opts = append(opts, WithDefaultTimeout(time.Duration(c.DefaultTimeoutMillis)*time.Millisecond))
	}
	if c.CorrelationTTLMillis > 0 {
		opts = append(opts, WithCorrelationTTL(time.Duration(c.CorrelationTTLMillis)*time.Millisecond))
	}
	if c.PayloadContentType != "" {
		opts = append(opts, WithPayloadContentType(c.PayloadContentType))
	}
	return opts
}

// publishOptions holds per-publish settings
type publishOptions struct {
	correlationID string
	metadata      Metadata
}

// PublishOption configures a single Publish call
type PublishOption func(*publishOptions)

// WithCorrelationID tags the envelope with a correlation ID
func WithCorrelationID(id string) PublishOption {
	return func(o *publishOptions) {
		o.correlationID = id
	}
}

// WithMetadata attaches metadata to the envelope. The map is copied.
func WithMetadata(m Metadata) PublishOption {
	return func(o *publishOptions) {
		o.metadata = m.Copy()
	}
}

func newPublishOptions(opts ...PublishOption) *publishOptions {
	o := &publishOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// subscribeOptions holds per-subscription settings
type subscribeOptions struct {
	correlationID string
}

// SubscribeOption configures a single Subscribe call
type SubscribeOption func(*subscribeOptions)

// ForCorrelation only delivers envelopes carrying exactly this correlation ID.
// Envelopes without a correlation ID never match.
func ForCorrelation(id string) SubscribeOption {
	return func(o *subscribeOptions) {
		o.correlationID = id
	}
}

func newSubscribeOptions(opts ...SubscribeOption) *subscribeOptions {
	o := &subscribeOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// requestOptions holds per-request settings
type requestOptions struct {
	timeout  time.Duration
	metadata Metadata
}

// RequestOption configures a single Request call
type RequestOption func(*requestOptions)

// WithTimeout sets the reply deadline. Non-positive values keep the bus default.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRequestMetadata attaches metadata to the request envelope
func WithRequestMetadata(m Metadata) RequestOption {
	return func(o *requestOptions) {
		o.metadata = m.Copy()
	}
}

func newRequestOptions(timeout time.Duration, opts ...RequestOption) *requestOptions {
	o := &requestOptions{timeout: timeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// typedOptions holds settings for a typed event
type typedOptions struct {
	codec payload.Codec
}

// TypedOption configures a typed event created with Define
type TypedOption func(*typedOptions)

// WithPayloadCodec sets the codec used to convert incoming payloads to the
// event's type when they are not already of that type. Default is the bus
// codec (JSON unless set with WithPayloadContentType).
func WithPayloadCodec(c payload.Codec) TypedOption {
	return func(o *typedOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithContentType sets the event codec by content type from the payload
// registry, falling back to JSON when the type is not registered.
func WithContentType(contentType string) TypedOption {
	return func(o *typedOptions) {
		o.codec = payload.MustGet(contentType)
	}
}

func newTypedOptions(codec payload.Codec, opts ...TypedOption) *typedOptions {
	if codec == nil {
		codec = payload.Default()
	}
	o := &typedOptions{codec: codec}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
