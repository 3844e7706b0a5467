package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/arloliu/go-scpi/internal/pool"
	"github.com/arloliu/go-scpi/transport"
)

// Transport is a TCP link to a single instrument.
type Transport struct {
	*transport.Stream
	cfg  *Config
	conn net.Conn
}

var (
	_ transport.Transport           = (*Transport)(nil)
	_ transport.Querier             = (*Transport)(nil)
	_ transport.UnsolicitedReceiver = (*Transport)(nil)
)

// Dial connects to the configured instrument. The dial is bounded by the
// connect timeout and ctx.
func Dial(ctx context.Context, cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("tcp: nil config")
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()

	dialer := &net.Dialer{KeepAlive: cfg.keepAlive}
	conn, err := dialer.DialContext(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", cfg.Addr(), err)
	}

	t, err := New(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return t, nil
}

// New starts the transport on an established connection and takes ownership of it.
func New(conn net.Conn, cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, errors.New("tcp: nil config")
	}

	t := &Transport{cfg: cfg, conn: conn}

	stream, err := transport.NewStream(conn, transport.StreamConfig{
		Name:            "tcp",
		WriteTerminator: LineTerminator,
		ReadTerminator:  "\n",
		WriteTimeout:    cfg.writeTimeout,
		BeforeWrite:     t.pace,
		Logger:          cfg.logger.With("addr", cfg.Addr()),
	})
	if err != nil {
		return nil, err
	}
	t.Stream = stream

	return t, nil
}

// Config returns the transport configuration.
func (t *Transport) Config() *Config {
	return t.cfg
}

// AbortCommand does nothing; raw sockets have no device clear.
func (t *Transport) AbortCommand(_ context.Context) error {
	t.cfg.logger.Debug("tcp: abort not supported, ignoring", "addr", t.cfg.Addr())
	return nil
}

func (t *Transport) pace(ctx context.Context) error {
	return pool.Sleep(ctx, t.cfg.pacing)
}
