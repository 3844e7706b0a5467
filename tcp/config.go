package tcp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

const (
	DefaultPort           = 5025
	DefaultConnectTimeout = 3 * time.Second
	DefaultWriteTimeout   = time.Second
	DefaultPacing         = 50 * time.Millisecond
	DefaultKeepAlive      = 30 * time.Second

	// LineTerminator ends every written line. Responses are framed on LF
	// with a trailing CR trimmed.
	LineTerminator = "\r\n"
)

const MaxPacing = time.Second

// Config holds the configuration of a TCP transport.
type Config struct {
	host string
	port int

	connectTimeout time.Duration
	writeTimeout   time.Duration
	pacing         time.Duration
	keepAlive      time.Duration

	logger logger.Logger
}

// NewConfig creates a TCP configuration for host:port. opts are applied in order.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	if host == "" {
		return nil, errors.New("tcp: host must not be empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("tcp: port %d out of range [1, 65535]", port)
	}

	cfg := &Config{
		host:           host,
		port:           port,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		pacing:         DefaultPacing,
		keepAlive:      DefaultKeepAlive,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Host returns the instrument host.
func (cfg *Config) Host() string { return cfg.host }

// Port returns the instrument TCP port.
func (cfg *Config) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *Config) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// ConnectTimeout returns the dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// WriteTimeout returns the bound on a single line write.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// Pacing returns the delay inserted before every write.
func (cfg *Config) Pacing() time.Duration { return cfg.pacing }

// KeepAlive returns the TCP keep-alive period.
func (cfg *Config) KeepAlive() time.Duration { return cfg.keepAlive }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("tcp: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the bound on a single line write.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("tcp: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithPacing sets the delay inserted before every write. Zero disables it.
func WithPacing(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxPacing {
			return fmt.Errorf("tcp: pacing %v out of range [0, %v]", d, MaxPacing)
		}
		cfg.pacing = d

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period. A negative value disables keep-alive.
func WithKeepAlive(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		cfg.keepAlive = d
		return nil
	})
}

// WithLogger sets the logger of the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("tcp: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
