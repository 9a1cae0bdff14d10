package mq

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"
)

// Compile-time-ish defaults mirroring the reference engine's configuration
// constants. These are ordinary package vars so tests can override them,
// unlike a C preprocessor's #define, but the defaults match.
var (
	// DefaultResponseWaitMs bounds how long Disconnect waits for its DISCONNECT
	// packet to reach the transport before tearing down regardless.
	DefaultResponseWaitMs = 1000 * time.Millisecond

	// DefaultRetryCeiling caps the exponential back-off of QoS 1 PUBLISH retry.
	DefaultRetryCeiling = 2 * time.Minute

	// MinKeepAlive and MaxKeepAlive clamp keepAliveSeconds in AWS mode.
	MinKeepAlive = 30 * time.Second
	MaxKeepAlive = 1200 * time.Second
)

// options holds the resolved configuration for a Connect call, built by
// applying Option values over sane defaults -- the functional-options
// pattern used throughout this client.
type options struct {
	clientID     string
	cleanSession bool
	keepAlive    time.Duration
	awsMode      bool

	username string
	password string
	hasAuth  bool

	will           *willMessage
	tlsConfig      *tls.Config
	dialer         *net.Dialer
	connectTimeout time.Duration

	retryLimit    int
	retryInterval time.Duration

	maxTopicLength int
	maxPayloadSize int

	serializer Serializer
	taskPool   TaskPool
	allocator  Allocator
	network    Network

	logger         *slog.Logger
	metricsEnabled bool

	defaultHandler MessageHandler
}

type willMessage struct {
	topic   string
	payload []byte
	qos     QoS
	retain  bool
}

func defaultOptions() *options {
	return &options{
		cleanSession:   true,
		keepAlive:      60 * time.Second,
		connectTimeout: 30 * time.Second,
		retryLimit:     0,
		retryInterval:  5 * time.Second,
		logger:         slog.Default().With("lib", "iotmqtt"),
	}
}

// Option configures a Connect call.
type Option func(*options)

// WithClientID sets the MQTT client identifier. If omitted (or empty) with
// CleanSession true, a random identifier is generated at Connect time.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
}

// WithCleanSession controls the CONNECT clean-session flag.
func WithCleanSession(clean bool) Option {
	return func(o *options) { o.cleanSession = clean }
}

// WithKeepAlive sets the keep-alive interval. Zero disables keep-alive
// entirely (no PINGREQ is ever scheduled).
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) { o.keepAlive = d }
}

// WithAWSMode clamps keep-alive to [MinKeepAlive, MaxKeepAlive] (a zero
// interval becomes MaxKeepAlive). It has no other effect: PUBLISH operations
// carry no secondary packet identifier in either mode.
func WithAWSMode(enabled bool) Option {
	return func(o *options) { o.awsMode = enabled }
}

// WithCredentials sets the CONNECT username/password.
func WithCredentials(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
		o.hasAuth = true
	}
}

// WithWill sets the CONNECT last-will-and-testament fields. The payload must
// fit in 16 bits of length (65535 bytes); longer payloads are rejected by
// Connect with ErrBadParameter.
func WithWill(topic string, payload []byte, qos QoS, retain bool) Option {
	return func(o *options) {
		o.will = &willMessage{topic: topic, payload: payload, qos: qos, retain: retain}
	}
}

// WithTLSConfig enables TLS on the default transport.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) { o.tlsConfig = cfg }
}

// WithDialer overrides the *net.Dialer used by the default transport.
func WithDialer(d *net.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithConnectTimeout bounds dialing and the CONNACK wait.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithRetryLimit sets how many times a QoS 1 PUBLISH is retransmitted before
// it completes with StatusRetryNoResponse. Zero (the default) disables retry.
func WithRetryLimit(n int) Option {
	return func(o *options) { o.retryLimit = n }
}

// WithRetryInterval sets the initial retry delay; it doubles on each
// subsequent attempt, clamped at DefaultRetryCeiling.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) { o.retryInterval = d }
}

// WithMaxTopicLength overrides DefaultMaxTopicLength.
func WithMaxTopicLength(n int) Option {
	return func(o *options) { o.maxTopicLength = n }
}

// WithMaxPayloadSize overrides DefaultMaxPayloadSize.
func WithMaxPayloadSize(n int) Option {
	return func(o *options) { o.maxPayloadSize = n }
}

// WithSerializer overrides the default MQTT 3.1.1 wire codec. Most callers
// never need this; it exists for testing and for vendors with non-standard
// wire quirks.
func WithSerializer(s Serializer) Option {
	return func(o *options) { o.serializer = s }
}

// WithTaskPool overrides the default errgroup-backed scheduler adaptor.
func WithTaskPool(p TaskPool) Option {
	return func(o *options) { o.taskPool = p }
}

// WithAllocator overrides the default packet-buffer allocator (a sync.Pool
// wrapper). A static/fixed-pool allocator can be substituted for
// memory-constrained deployments.
func WithAllocator(a Allocator) Option {
	return func(o *options) { o.allocator = a }
}

// WithNetwork overrides the default TCP/TLS transport. The supplied Network
// owns its own connect/dial semantics; WithTLSConfig/WithDialer are ignored
// when this is set.
func WithNetwork(n Network) Option {
	return func(o *options) { o.network = n }
}

// WithLogger overrides the default *slog.Logger (slog.Default(), tagged
// "lib"="iotmqtt").
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records whether connection statistics were requested. The
// counters behind GetStats are updated regardless of this setting.
func WithMetrics(enabled bool) Option {
	return func(o *options) { o.metricsEnabled = enabled }
}

// WithDefaultHandler installs a handler invoked for inbound PUBLISH messages
// that match no subscription.
func WithDefaultHandler(h MessageHandler) Option {
	return func(o *options) { o.defaultHandler = h }
}
