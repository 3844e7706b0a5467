package rs232

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-scpi/transport"
)

// Port is the part of a serial port the transport uses. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	Break(d time.Duration) error
}

var openPort = func(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Transport is an RS232 link to a single instrument.
type Transport struct {
	*transport.Stream
	cfg  *Config
	port Port
}

var (
	_ transport.Transport           = (*Transport)(nil)
	_ transport.Querier             = (*Transport)(nil)
	_ transport.UnsolicitedReceiver = (*Transport)(nil)
)

// Open opens the configured serial port and starts the transport on it.
func Open(cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("rs232: nil config")
	}

	port, err := openPort(cfg.portName, cfg.mode())
	if err != nil {
		return nil, fmt.Errorf("rs232: open %s: %w", cfg.portName, err)
	}

	t, err := New(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return t, nil
}

// New starts the transport on an already opened port and takes ownership of it.
func New(port Port, cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("rs232: nil config")
	}

	stream, err := transport.NewStream(port, transport.StreamConfig{
		Name:            "rs232",
		WriteTerminator: LineTerminator,
		ReadTerminator:  LineTerminator,
		WriteTimeout:    cfg.writeTimeout,
		Logger:          cfg.logger.With("port", cfg.portName),
	})
	if err != nil {
		return nil, err
	}

	return &Transport{Stream: stream, cfg: cfg, port: port}, nil
}

// Config returns the transport configuration.
func (t *Transport) Config() *Config {
	return t.cfg
}

// AbortCommand holds the line in break for the configured duration.
func (t *Transport) AbortCommand(ctx context.Context) error {
	if !t.IsReady() {
		return transport.ErrNotReady
	}

	t.cfg.logger.Debug("rs232: sending break", "port", t.cfg.portName, "duration", t.cfg.breakDuration)

	return t.DoIOWithin(ctx, t.cfg.breakDuration+t.cfg.writeTimeout, func() error {
		return t.port.Break(t.cfg.breakDuration)
	})
}
