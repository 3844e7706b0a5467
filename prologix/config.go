package prologix

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-scpi/gpib"
	"github.com/arloliu/go-scpi/logger"
)

const (
	DefaultBaudRate          = 115200
	DefaultControllerTimeout = time.Second
	DefaultReadTimeout       = 500 * time.Millisecond
	DefaultWriteTimeout      = time.Second
	DefaultInitTimeout       = 3 * time.Second

	// LineTerminator ends every line in both directions.
	LineTerminator = "\n"
)

// Read timeout range accepted by the controller's ++read_tmo_ms.
const (
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = 3 * time.Second
)

// Config holds the configuration of a Prologix bus.
type Config struct {
	portName string
	baudRate int

	controllerTimeout  time.Duration
	readTimeout        time.Duration
	writeTimeout       time.Duration
	initTimeout        time.Duration
	scanAddressTimeout time.Duration

	verifyAddress bool

	logger logger.Logger
}

// NewConfig creates a configuration for the controller on the named serial port.
func NewConfig(portName string, opts ...Option) (*Config, error) {
	if portName == "" {
		return nil, errors.New("prologix: port name must not be empty")
	}

	cfg := &Config{
		portName:           portName,
		baudRate:           DefaultBaudRate,
		controllerTimeout:  DefaultControllerTimeout,
		readTimeout:        DefaultReadTimeout,
		writeTimeout:       DefaultWriteTimeout,
		initTimeout:        DefaultInitTimeout,
		scanAddressTimeout: gpib.DefaultAddressTimeout,
		verifyAddress:      true,
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PortName returns the serial port name.
func (cfg *Config) PortName() string { return cfg.portName }

// BaudRate returns the serial line speed. USB controllers ignore it.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// ControllerTimeout returns the bound on a controller query such as ++addr.
func (cfg *Config) ControllerTimeout() time.Duration { return cfg.controllerTimeout }

// ReadTimeout returns the inter-character timeout programmed at initialization.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteTimeout returns the bound on a single line write.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// InitTimeout returns the bound on the initialization sequence run by Open.
func (cfg *Config) InitTimeout() time.Duration { return cfg.initTimeout }

// ScanAddressTimeout returns the per-address budget of ScanDevices.
func (cfg *Config) ScanAddressTimeout() time.Duration { return cfg.scanAddressTimeout }

// VerifyAddress reports whether SetAddress reads the address back.
func (cfg *Config) VerifyAddress() bool { return cfg.verifyAddress }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial line speed.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("prologix: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithControllerTimeout sets the bound on controller queries. A controller
// that does not answer in time is considered unresponsive.
func WithControllerTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("prologix: controller timeout must be positive")
		}
		cfg.controllerTimeout = d

		return nil
	})
}

// WithReadTimeout sets the inter-character timeout programmed at initialization.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkReadTimeout(d); err != nil {
			return err
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the bound on a single line write.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("prologix: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithInitTimeout sets the bound on the initialization sequence run by Open.
func WithInitTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("prologix: init timeout must be positive")
		}
		cfg.initTimeout = d

		return nil
	})
}

// WithScanAddressTimeout sets the per-address budget of ScanDevices.
func WithScanAddressTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 2*MinReadTimeout {
			return fmt.Errorf("prologix: scan address timeout %v too short", d)
		}
		cfg.scanAddressTimeout = d

		return nil
	})
}

// WithVerifyAddress enables or disables reading the address back after
// SetAddress. Enabled by default.
func WithVerifyAddress(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.verifyAddress = enabled
		return nil
	})
}

// WithLogger sets the logger of the bus.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("prologix: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

func checkReadTimeout(d time.Duration) error {
	if d < MinReadTimeout || d > MaxReadTimeout {
		return fmt.Errorf("prologix: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
	}

	return nil
}
