package gpib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-scpi/internal/pool"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

const (
	// DefaultAddressTimeout bounds the serial poll of one address during a scan.
	DefaultAddressTimeout = 500 * time.Millisecond
	// DefaultIdentifyTimeout bounds the *IDN? query of one found device.
	DefaultIdentifyTimeout = time.Second
	// DefaultRestoreTimeout bounds restoring the bus state after an interrupted scan.
	DefaultRestoreTimeout = 2 * time.Second

	identifyQuery = "*IDN?"
)

type scanConfig struct {
	addressTimeout  time.Duration
	identifyTimeout time.Duration
	restoreTimeout  time.Duration
	logger          logger.Logger
}

// ScanOption is a functional option for ScanDevices.
type ScanOption interface {
	apply(*scanConfig) error
}

type scanOptFunc func(*scanConfig) error

func (f scanOptFunc) apply(cfg *scanConfig) error { return f(cfg) }

// WithAddressTimeout sets the per-address poll budget. The controller read
// timeout is lowered to half of it for the sweep.
func WithAddressTimeout(d time.Duration) ScanOption {
	return scanOptFunc(func(cfg *scanConfig) error {
		if d < 2*time.Millisecond {
			return fmt.Errorf("gpib: address timeout %v too short", d)
		}
		cfg.addressTimeout = d

		return nil
	})
}

// WithIdentifyTimeout sets the budget of each *IDN? query.
func WithIdentifyTimeout(d time.Duration) ScanOption {
	return scanOptFunc(func(cfg *scanConfig) error {
		if d <= 0 {
			return errors.New("gpib: identify timeout must be positive")
		}
		cfg.identifyTimeout = d

		return nil
	})
}

// WithScanLogger sets the logger used by the scan.
func WithScanLogger(l logger.Logger) ScanOption {
	return scanOptFunc(func(cfg *scanConfig) error {
		if l == nil {
			return errors.New("gpib: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// ScanDevices finds the devices on bus and identifies each one.
//
// It holds the bus exchange lock for the whole scan. The current address and
// read timeout are saved first; the read timeout is lowered for a sweep of
// serial polls over every primary address, each bounded by the address
// timeout. A poll that times out means nobody lives there. Afterwards the
// read timeout is restored, the bus settles for that long, every hit is asked
// for *IDN?, and the original address is selected again.
//
// The bus state is restored on every exit, including cancellation, in which
// case ctx.Err() is returned.
func ScanDevices(ctx context.Context, bus Bus, opts ...ScanOption) ([]ScanResult, error) {
	cfg := &scanConfig{
		addressTimeout:  DefaultAddressTimeout,
		identifyTimeout: DefaultIdentifyTimeout,
		restoreTimeout:  DefaultRestoreTimeout,
		logger:          logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	lock := bus.ExchangeLock()
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	s := &scanner{bus: bus, cfg: cfg}

	return s.run(ctx)
}

type scanner struct {
	bus Bus
	cfg *scanConfig

	prevAddr    Address
	prevTimeout time.Duration

	timeoutRestored bool
	addrRestored    bool
}

func (s *scanner) run(ctx context.Context) (results []ScanResult, err error) {
	if s.prevAddr, err = s.bus.QueryAddress(ctx); err != nil {
		return nil, fmt.Errorf("gpib: scan: query address: %w", err)
	}
	if s.prevTimeout, err = s.bus.ReadTimeout(ctx); err != nil {
		return nil, fmt.Errorf("gpib: scan: query read timeout: %w", err)
	}

	if err := s.bus.SetReadTimeout(ctx, s.cfg.addressTimeout/2); err != nil {
		return nil, fmt.Errorf("gpib: scan: set read timeout: %w", err)
	}
	defer s.restore(ctx)

	found, err := s.sweep(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.bus.SetReadTimeout(ctx, s.prevTimeout); err != nil {
		return nil, fmt.Errorf("gpib: scan: restore read timeout: %w", err)
	}
	s.timeoutRestored = true

	// let devices that were polled with a short timeout finish talking
	if err := pool.Sleep(ctx, s.prevTimeout); err != nil {
		return nil, err
	}

	results = make([]ScanResult, 0, len(found))
	for _, addr := range found {
		identity, err := s.identify(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.cfg.logger.Warn("gpib: scan: device did not identify", "address", addr.String(), "error", err)
		}
		results = append(results, ScanResult{Address: addr, Identity: identity})
	}

	if err := s.bus.SetAddress(ctx, s.prevAddr); err != nil {
		return nil, fmt.Errorf("gpib: scan: restore address: %w", err)
	}
	s.addrRestored = true

	return results, nil
}

func (s *scanner) sweep(ctx context.Context) ([]Address, error) {
	var found []Address

	for pad := MinPrimary; pad <= MaxPrimary; pad++ {
		addr := Primary(pad)

		ok, err := s.probe(ctx, addr)
		if err != nil {
			return nil, err
		}
		if ok {
			s.cfg.logger.Debug("gpib: scan: device found", "address", addr.String())
			found = append(found, addr)
		}
	}

	return found, nil
}

// probe reports whether a device answers a serial poll at addr.
func (s *scanner) probe(ctx context.Context, addr Address) (bool, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.addressTimeout)
	defer cancel()

	err := s.bus.SetAddress(actx, addr)
	if err == nil {
		_, err = s.bus.Poll(actx)
	}

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		s.cfg.logger.Debug("gpib: scan: no device", "address", addr.String())
		return false, nil
	default:
		return false, fmt.Errorf("gpib: scan: probe %s: %w", addr, err)
	}
}

func (s *scanner) identify(ctx context.Context, addr Address) (string, error) {
	ictx, cancel := context.WithTimeout(ctx, s.cfg.identifyTimeout)
	defer cancel()

	if err := s.bus.SetAddress(ictx, addr); err != nil {
		return "", err
	}

	var reply string
	var err error
	if q, ok := s.bus.(transport.Querier); ok {
		reply, err = q.Query(ictx, identifyQuery)
	} else if err = s.bus.SendCommand(ictx, identifyQuery); err == nil {
		reply, err = s.bus.GetResponse(ictx)
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(reply), nil
}

// restore puts back whatever run did not restore itself. It runs detached
// from ctx so an interrupted scan still leaves the bus as it found it.
func (s *scanner) restore(ctx context.Context) {
	if s.timeoutRestored && s.addrRestored {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.restoreTimeout)
	defer cancel()

	if !s.timeoutRestored {
		if err := s.bus.SetReadTimeout(rctx, s.prevTimeout); err != nil {
			s.cfg.logger.Warn("gpib: scan: failed to restore read timeout", "error", err)
		}
	}
	if !s.addrRestored {
		if err := s.bus.SetAddress(rctx, s.prevAddr); err != nil {
			s.cfg.logger.Warn("gpib: scan: failed to restore address", "address", s.prevAddr.String(), "error", err)
		}
	}
}
