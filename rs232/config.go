package rs232

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-scpi/logger"
)

const (
	DefaultBaudRate      = 9600
	DefaultDataBits      = 8
	DefaultWriteTimeout  = time.Second
	DefaultBreakDuration = 250 * time.Millisecond

	// LineTerminator ends every line in both directions.
	LineTerminator = "\r\n"
)

const (
	MinBreakDuration = 10 * time.Millisecond
	MaxBreakDuration = 5 * time.Second
)

// Parity is the serial parity mode.
type Parity = serial.Parity

// StopBits is the number of serial stop bits.
type StopBits = serial.StopBits

const (
	NoParity   = serial.NoParity
	OddParity  = serial.OddParity
	EvenParity = serial.EvenParity

	OneStopBit  = serial.OneStopBit
	TwoStopBits = serial.TwoStopBits
)

// Config holds the configuration of an RS232 transport.
type Config struct {
	portName      string
	baudRate      int
	dataBits      int
	parity        Parity
	stopBits      StopBits
	writeTimeout  time.Duration
	breakDuration time.Duration
	logger        logger.Logger
}

// NewConfig creates an RS232 configuration for the named port, e.g.
// "/dev/ttyUSB0" or "COM3". opts are applied in order.
func NewConfig(portName string, opts ...Option) (*Config, error) {
	if portName == "" {
		return nil, errors.New("rs232: port name must not be empty")
	}

	cfg := &Config{
		portName:      portName,
		baudRate:      DefaultBaudRate,
		dataBits:      DefaultDataBits,
		parity:        NoParity,
		stopBits:      OneStopBit,
		writeTimeout:  DefaultWriteTimeout,
		breakDuration: DefaultBreakDuration,
		logger:        logger.GetLogger(),
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

// BaudRate returns the line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// DataBits returns the number of data bits per character.
func (cfg *Config) DataBits() int { return cfg.dataBits }

// Parity returns the parity mode.
func (cfg *Config) Parity() Parity { return cfg.parity }

// StopBits returns the number of stop bits.
func (cfg *Config) StopBits() StopBits { return cfg.stopBits }

// WriteTimeout returns the bound on a single line write.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// BreakDuration returns how long the line is held in break by AbortCommand.
func (cfg *Config) BreakDuration() time.Duration { return cfg.breakDuration }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

func (cfg *Config) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: cfg.dataBits,
		Parity:   cfg.parity,
		StopBits: cfg.stopBits,
	}
}

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("rs232: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithFraming sets data bits, parity and stop bits, e.g. 7, EvenParity, OneStopBit.
func WithFraming(dataBits int, parity Parity, stopBits StopBits) Option {
	return optFunc(func(cfg *Config) error {
		if dataBits < 5 || dataBits > 8 {
			return fmt.Errorf("rs232: data bits %d out of range [5, 8]", dataBits)
		}
		cfg.dataBits = dataBits
		cfg.parity = parity
		cfg.stopBits = stopBits

		return nil
	})
}

// WithWriteTimeout sets the bound on a single line write.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("rs232: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithBreakDuration sets how long AbortCommand holds the line in break.
func WithBreakDuration(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinBreakDuration || d > MaxBreakDuration {
			return fmt.Errorf("rs232: break duration %v out of range [%v, %v]", d, MinBreakDuration, MaxBreakDuration)
		}
		cfg.breakDuration = d

		return nil
	})
}

// WithLogger sets the logger of the transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("rs232: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
