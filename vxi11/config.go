package vxi11

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-vxi11/logger"
	"github.com/arloliu/go-vxi11/transport"
)

// Default configuration values.
const (
	DefaultCapacity          = 256
	DefaultIOTimeout         = 10 * time.Second
	DefaultReadTimeout       = 2 * time.Second
	DefaultLockTimeout       = 10 * time.Second
	DefaultFrameLimit        = 1024
	DefaultQueryRetryLimit   = 5
	DefaultQueryRetryBackoff = time.Duration(0)
)

// Configuration limits.
const (
	MaxCapacity = 65535
	MaxTimeout  = time.Hour

	// UnboundedRetries makes a query resend forever while the instrument keeps
	// dropping read replies.
	UnboundedRetries = -1
)

// Config holds the configuration of a Registry.
type Config struct {
	// capacity is the maximum number of distinct endpoints with a live session.
	capacity int

	// device is the sub-device name passed to create_link, "inst0" by default.
	device string
	// lockDevice requests an exclusive lock when a link is created.
	lockDevice bool

	// ioTimeout bounds writes and link calls.
	ioTimeout time.Duration
	// readTimeout is used by reads issued without an explicit timeout.
	readTimeout time.Duration
	// lockTimeout is how long the instrument waits for a lock held by another link.
	lockTimeout time.Duration

	// defaultFrameLimit replaces a zero max receive size reported by the instrument.
	defaultFrameLimit int
	// maxFrameSize caps the negotiated frame limit when positive.
	maxFrameSize int

	// queryRetryLimit is the number of resends a query makes after a null read response.
	// A negative value means no bound.
	queryRetryLimit int
	// queryRetryBackoff is the pause before each resend.
	queryRetryBackoff time.Duration

	logger logger.Logger
}

// NewConfig creates a Config with default values and applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		capacity:          DefaultCapacity,
		device:            transport.DefaultDevice,
		ioTimeout:         DefaultIOTimeout,
		readTimeout:       DefaultReadTimeout,
		lockTimeout:       DefaultLockTimeout,
		defaultFrameLimit: DefaultFrameLimit,
		queryRetryLimit:   DefaultQueryRetryLimit,
		queryRetryBackoff: DefaultQueryRetryBackoff,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) Capacity() int                    { return cfg.capacity }
func (cfg *Config) Device() string                   { return cfg.device }
func (cfg *Config) LockDevice() bool                 { return cfg.lockDevice }
func (cfg *Config) IOTimeout() time.Duration         { return cfg.ioTimeout }
func (cfg *Config) ReadTimeout() time.Duration       { return cfg.readTimeout }
func (cfg *Config) LockTimeout() time.Duration       { return cfg.lockTimeout }
func (cfg *Config) DefaultFrameLimit() int           { return cfg.defaultFrameLimit }
func (cfg *Config) MaxFrameSize() int                { return cfg.maxFrameSize }
func (cfg *Config) QueryRetryLimit() int             { return cfg.queryRetryLimit }
func (cfg *Config) QueryRetryBackoff() time.Duration { return cfg.queryRetryBackoff }
func (cfg *Config) GetLogger() logger.Logger         { return cfg.logger }

// linkParams returns the create_link arguments derived from the configuration.
func (cfg *Config) linkParams() transport.LinkParams {
	return transport.LinkParams{
		Device:      cfg.device,
		Lock:        cfg.lockDevice,
		LockTimeout: cfg.lockTimeout,
	}
}

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithCapacity sets the maximum number of distinct endpoints, in [1, 65535].
func WithCapacity(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxCapacity {
			return fmt.Errorf("vxi11: capacity %d out of range [1, %d]", n, MaxCapacity)
		}
		cfg.capacity = n

		return nil
	})
}

// WithDevice sets the sub-device name used when creating links.
func WithDevice(name string) Option {
	return optFunc(func(cfg *Config) error {
		if name == "" {
			return errors.New("vxi11: device name must not be empty")
		}
		cfg.device = name

		return nil
	})
}

// WithLockDevice requests an exclusive device lock on every created link.
func WithLockDevice(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.lockDevice = enabled
		return nil
	})
}

// WithIOTimeout sets the timeout of writes and link calls, in [0, 1h].
func WithIOTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxTimeout {
			return fmt.Errorf("vxi11: io timeout %v out of range [0, %v]", d, MaxTimeout)
		}
		cfg.ioTimeout = d

		return nil
	})
}

// WithReadTimeout sets the default read timeout, in (0, 1h].
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 || d > MaxTimeout {
			return fmt.Errorf("vxi11: read timeout %v out of range (0, %v]", d, MaxTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithLockTimeout sets the lock timeout, in [0, 1h].
func WithLockTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxTimeout {
			return fmt.Errorf("vxi11: lock timeout %v out of range [0, %v]", d, MaxTimeout)
		}
		cfg.lockTimeout = d

		return nil
	})
}

// WithDefaultFrameLimit sets the frame limit used when an instrument reports a
// max receive size of zero.
func WithDefaultFrameLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 {
			return fmt.Errorf("vxi11: default frame limit %d must be >= 1", n)
		}
		cfg.defaultFrameLimit = n

		return nil
	})
}

// WithMaxFrameSize caps the size of a write fragment below the negotiated limit.
// Zero disables the cap.
func WithMaxFrameSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("vxi11: max frame size %d must be >= 0", n)
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithQueryRetryLimit sets how many times a query is resent after a null read
// response. Use UnboundedRetries to resend until the instrument answers.
func WithQueryRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			n = UnboundedRetries
		}
		cfg.queryRetryLimit = n

		return nil
	})
}

// WithQueryRetryBackoff sets the pause before a query is resent, in [0, 1h].
func WithQueryRetryBackoff(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxTimeout {
			return fmt.Errorf("vxi11: query retry backoff %v out of range [0, %v]", d, MaxTimeout)
		}
		cfg.queryRetryBackoff = d

		return nil
	})
}

// WithLogger sets the logger of the registry.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("vxi11: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
