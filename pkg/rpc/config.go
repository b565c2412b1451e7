package rpc

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
)

// Config controls a Session. Every field can be populated from the environment
// with cleanenv.
type Config struct {
	// Endpoints are tried in order, moving to the next one on every reconnect.
	Endpoints []string `env:"BTS_ENDPOINTS" env-separator:"," env-default:"wss://node.bitshares.eu/ws" validate:"min=1,dive,url,startswith=ws"`
	Username  string   `env:"BTS_USERNAME"`
	Password  string   `env:"BTS_PASSWORD"`
	// Namespaces are resolved during the handshake. A node refusing one of
	// them fails authentication. Others are resolved lazily.
	Namespaces []string `env:"BTS_NAMESPACES" env-separator:"," env-default:"database"`

	// CallTimeout applies to calls whose context has no earlier deadline.
	// Zero disables it.
	CallTimeout      time.Duration `env:"BTS_CALL_TIMEOUT" env-default:"30s" validate:"gte=0"`
	HandshakeTimeout time.Duration `env:"BTS_HANDSHAKE_TIMEOUT" env-default:"15s" validate:"gte=0"`
	ResolveTimeout   time.Duration `env:"BTS_RESOLVE_TIMEOUT" env-default:"10s" validate:"gte=0"`

	// QueueWhileDisconnected makes calls issued outside Ready wait for the
	// next Ready. When false they fail at once with ErrConnectionLost.
	QueueWhileDisconnected bool `env:"BTS_QUEUE_WHILE_DISCONNECTED" env-default:"true"`

	// RateLimit caps outbound calls per second; zero means unlimited.
	RateLimit float64 `env:"BTS_RATE_LIMIT" env-default:"0" validate:"gte=0"`
	RateBurst int     `env:"BTS_RATE_BURST" env-default:"10" validate:"gte=1"`

	// NotificationBuffer is the queue length of each subscription listener.
	NotificationBuffer int `env:"BTS_NOTIFICATION_BUFFER" env-default:"64" validate:"gte=1"`

	Reconnect ReconnectConfig
	Transport WebsocketTransportConfig
}

// ReconnectConfig is the backoff policy applied between connection attempts.
type ReconnectConfig struct {
	// MaxRetries bounds consecutive failed attempts; -1 retries forever and 0
	// gives up after the first failure.
	MaxRetries          int           `env:"BTS_RECONNECT_MAX_RETRIES" env-default:"-1" validate:"gte=-1"`
	InitialInterval     time.Duration `env:"BTS_RECONNECT_INITIAL_INTERVAL" env-default:"500ms" validate:"gt=0"`
	MaxInterval         time.Duration `env:"BTS_RECONNECT_MAX_INTERVAL" env-default:"30s" validate:"gtefield=InitialInterval"`
	Multiplier          float64       `env:"BTS_RECONNECT_MULTIPLIER" env-default:"2" validate:"gte=1"`
	RandomizationFactor float64       `env:"BTS_RECONNECT_JITTER" env-default:"0.2" validate:"gte=0,lte=1"`
}

// DefaultConfig matches the env defaults.
func DefaultConfig() Config {
	return Config{
		Endpoints:              []string{"wss://node.bitshares.eu/ws"},
		Namespaces:             []string{"database"},
		CallTimeout:            30 * time.Second,
		HandshakeTimeout:       15 * time.Second,
		ResolveTimeout:         10 * time.Second,
		QueueWhileDisconnected: true,
		RateBurst:              10,
		NotificationBuffer:     64,
		Reconnect: ReconnectConfig{
			MaxRetries:          -1,
			InitialInterval:     500 * time.Millisecond,
			MaxInterval:         30 * time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.2,
		},
		Transport: DefaultWebsocketTransportConfig,
	}
}

var configValidator = validator.New()

func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// BackOff builds the policy. Elapsed time is never a stop condition, only
// MaxRetries is.
func (c ReconnectConfig) BackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.InitialInterval),
		backoff.WithMaxInterval(c.MaxInterval),
		backoff.WithMultiplier(c.Multiplier),
		backoff.WithRandomizationFactor(c.RandomizationFactor),
		backoff.WithMaxElapsedTime(0),
	)
	if c.MaxRetries < 0 {
		return exp
	}
	return backoff.WithMaxRetries(exp, uint64(c.MaxRetries))
}
