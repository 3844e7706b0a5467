package scpi

import (
	"errors"
	"time"

	"github.com/arloliu/go-scpi/logger"
)

const (
	// DefaultTimeout bounds a single exchange.
	DefaultTimeout = time.Second
	// DefaultErrorCheckTimeout bounds the error queue read done after a timeout.
	DefaultErrorCheckTimeout = time.Second
)

type exchangeConfig struct {
	timeout        time.Duration
	abortOnTimeout bool
	autoCheckError bool
}

// ExchangeOption adjusts a single Command or Ask.
type ExchangeOption interface {
	applyExchange(*exchangeConfig)
}

type exchangeOptFunc func(*exchangeConfig)

func (f exchangeOptFunc) applyExchange(cfg *exchangeConfig) { f(cfg) }

// WithTimeout bounds the exchange. Non-positive values keep the protocol default.
func WithTimeout(d time.Duration) ExchangeOption {
	return exchangeOptFunc(func(cfg *exchangeConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	})
}

// WithAbortOnTimeout controls whether the transport is aborted after a
// timeout. Enabled by default.
func WithAbortOnTimeout(enabled bool) ExchangeOption {
	return exchangeOptFunc(func(cfg *exchangeConfig) {
		cfg.abortOnTimeout = enabled
	})
}

// WithAutoCheckError controls whether the error queue is read after a
// timeout. Enabled by default.
func WithAutoCheckError(enabled bool) ExchangeOption {
	return exchangeOptFunc(func(cfg *exchangeConfig) {
		cfg.autoCheckError = enabled
	})
}

// ProtocolOption configures a Protocol.
type ProtocolOption interface {
	apply(*Protocol) error
}

type protocolOptFunc func(*Protocol) error

func (f protocolOptFunc) apply(p *Protocol) error { return f(p) }

// WithDefaultTimeout sets the timeout of exchanges that do not pass WithTimeout.
func WithDefaultTimeout(d time.Duration) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if d <= 0 {
			return errors.New("scpi: default timeout must be positive")
		}
		p.defaults.timeout = d

		return nil
	})
}

// WithErrorCheckTimeout bounds the error queue read done after a timeout,
// and the abort that follows it.
func WithErrorCheckTimeout(d time.Duration) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if d <= 0 {
			return errors.New("scpi: error check timeout must be positive")
		}
		p.errorCheckTimeout = d

		return nil
	})
}

// WithLogger sets the logger of the protocol.
func WithLogger(l logger.Logger) ProtocolOption {
	return protocolOptFunc(func(p *Protocol) error {
		if l == nil {
			return errors.New("scpi: logger must not be nil")
		}
		p.logger = l

		return nil
	})
}
