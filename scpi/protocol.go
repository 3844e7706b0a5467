package scpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

// Protocol runs SCPI exchanges over one transport.
//
// A Protocol is safe for concurrent use; exchanges are serialized by the
// transport's exchange lock. Several Devices may share one Protocol.
type Protocol struct {
	transport         transport.Transport
	lock              *transport.Lock
	defaults          exchangeConfig
	errorCheckTimeout time.Duration
	logger            logger.Logger
}

// NewProtocol creates a Protocol over t.
func NewProtocol(t transport.Transport, opts ...ProtocolOption) (*Protocol, error) {
	if t == nil {
		return nil, errors.New("scpi: nil transport")
	}

	p := &Protocol{
		transport: t,
		lock:      t.ExchangeLock(),
		defaults: exchangeConfig{
			timeout:        DefaultTimeout,
			abortOnTimeout: true,
			autoCheckError: true,
		},
		errorCheckTimeout: DefaultErrorCheckTimeout,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Transport returns the underlying transport.
func (p *Protocol) Transport() transport.Transport {
	return p.transport
}

// Command sends cmd without waiting for a reply.
func (p *Protocol) Command(ctx context.Context, cmd string, opts ...ExchangeOption) error {
	_, err := p.exchange(ctx, cmd, false, p.exchangeConfig(opts))
	return err
}

// Ask sends cmd and returns the reply.
func (p *Protocol) Ask(ctx context.Context, cmd string, opts ...ExchangeOption) (string, error) {
	return p.exchange(ctx, cmd, true, p.exchangeConfig(opts))
}

// SafeCommand is Command followed by CheckError.
func (p *Protocol) SafeCommand(ctx context.Context, cmd string, opts ...ExchangeOption) error {
	if err := p.Command(ctx, cmd, opts...); err != nil {
		return err
	}

	return p.CheckError(ctx, cmd)
}

// SafeAsk is Ask followed by CheckError. The reply is discarded when the
// error queue is not empty.
func (p *Protocol) SafeAsk(ctx context.Context, cmd string, opts ...ExchangeOption) (string, error) {
	reply, err := p.Ask(ctx, cmd, opts...)
	if err != nil {
		return "", err
	}

	if err := p.CheckError(ctx, cmd); err != nil {
		return "", err
	}

	return reply, nil
}

// GetError reads one entry of the error queue. A code of 0 means the queue
// was empty.
func (p *Protocol) GetError(ctx context.Context) (code int, message string, err error) {
	if err := p.lock.Acquire(ctx); err != nil {
		return 0, "", err
	}
	defer p.lock.Release()

	return p.readErrorQueue(ctx)
}

// CheckError reads the error queue and returns a *CommandError attributed to
// prev when the entry is not zero.
func (p *Protocol) CheckError(ctx context.Context, prev string) error {
	code, message, err := p.GetError(ctx)
	if err != nil {
		return err
	}
	if code != 0 {
		return &CommandError{Command: prev, Code: code, Message: message}
	}

	return nil
}

// AbortCommand asks the transport to abort whatever the instrument is doing.
func (p *Protocol) AbortCommand(ctx context.Context) error {
	if err := p.lock.Acquire(ctx); err != nil {
		return err
	}
	defer p.lock.Release()

	return p.misuse(p.transport.AbortCommand(ctx))
}

// CanPoll reports whether the transport supports serial polls.
func (p *Protocol) CanPoll() bool {
	_, ok := p.transport.(transport.Poller)
	return ok
}

// Poll serial polls the instrument and returns its status byte.
func (p *Protocol) Poll(ctx context.Context) (int, error) {
	poller, ok := p.transport.(transport.Poller)
	if !ok {
		return 0, fmt.Errorf("%w: %w: serial poll", ErrMisuse, transport.ErrIncompatible)
	}

	if err := p.lock.Acquire(ctx); err != nil {
		return 0, err
	}
	defer p.lock.Release()

	stb, err := poller.Poll(ctx)

	return stb, p.misuse(err)
}

// Close closes the transport.
func (p *Protocol) Close() error {
	return p.transport.Close()
}

func (p *Protocol) exchangeConfig(opts []ExchangeOption) exchangeConfig {
	cfg := p.defaults
	for _, opt := range opts {
		opt.applyExchange(&cfg)
	}

	return cfg
}

func (p *Protocol) exchange(ctx context.Context, cmd string, wantReply bool, cfg exchangeConfig) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if err := p.lock.Acquire(tctx); err != nil {
		if ctx.Err() != nil {
			return "", p.cancelled(ctx, cmd)
		}

		// nothing was sent, so there is nothing to disambiguate or abort
		return "", &TimeoutError{Command: cmd, Timeout: cfg.timeout}
	}
	defer p.lock.Release()

	reply, err := p.roundTrip(tctx, cmd, wantReply)
	switch {
	case err == nil:
		return reply, nil
	case ctx.Err() != nil:
		return "", p.cancelled(ctx, cmd)
	case errors.Is(err, transport.ErrWriteTimeout),
		tctx.Err() != nil && errors.Is(err, context.DeadlineExceeded):
		return "", p.resolveTimeout(ctx, cmd, cfg)
	default:
		return "", p.misuse(err)
	}
}

// resolveTimeout runs with the exchange lock held.
func (p *Protocol) resolveTimeout(ctx context.Context, cmd string, cfg exchangeConfig) error {
	var result error = &TimeoutError{Command: cmd, Timeout: cfg.timeout}

	if cfg.autoCheckError {
		code, message, err := p.readErrorQueue(ctx)
		switch {
		case err != nil:
			p.logger.Warn("scpi: error queue read after timeout failed", "command", cmd, "error", err)
		case code != 0:
			result = &CommandError{Command: cmd, Code: code, Message: message}
		}
	}

	if cfg.abortOnTimeout {
		actx, cancel := context.WithTimeout(ctx, p.errorCheckTimeout)
		defer cancel()

		if err := p.transport.AbortCommand(actx); err != nil {
			p.logger.Warn("scpi: abort after timeout failed", "command", cmd, "error", err)
		}
	}

	return result
}

// readErrorQueue runs with the exchange lock held. It talks to the transport
// directly and never re-enters Command or Ask.
func (p *Protocol) readErrorQueue(ctx context.Context) (int, string, error) {
	qctx, cancel := context.WithTimeout(ctx, p.errorCheckTimeout)
	defer cancel()

	reply, err := p.roundTrip(qctx, ErrorQueueQuery, true)
	if err != nil {
		if ctx.Err() != nil {
			return 0, "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, "", &TimeoutError{Command: ErrorQueueQuery, Timeout: p.errorCheckTimeout}
		}

		return 0, "", p.misuse(err)
	}

	return ParseErrorReply(reply)
}

func (p *Protocol) roundTrip(ctx context.Context, cmd string, wantReply bool) (string, error) {
	if !wantReply {
		return "", p.transport.SendCommand(ctx, cmd)
	}

	if q, ok := p.transport.(transport.Querier); ok {
		return q.Query(ctx, cmd)
	}

	if err := p.transport.SendCommand(ctx, cmd); err != nil {
		return "", err
	}

	return p.transport.GetResponse(ctx)
}

func (p *Protocol) cancelled(ctx context.Context, cmd string) error {
	p.logger.Info("scpi: exchange cancelled", "command", cmd, "error", ctx.Err())
	return ctx.Err()
}

func (p *Protocol) misuse(err error) error {
	if errors.Is(err, transport.ErrNotReady) || errors.Is(err, transport.ErrIncompatible) {
		return fmt.Errorf("%w: %w", ErrMisuse, err)
	}

	return err
}
