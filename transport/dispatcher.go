package transport

import (
	"context"
	"sync"

	"github.com/arloliu/go-scpi/logger"
)

// Dispatcher routes framed messages from a reader to whoever is waiting.
//
// At most one Expectation is armed at a time. A delivered message goes to the
// armed expectation; without one it goes to the unsolicited handler, and
// without a handler it is dropped with an info log.
type Dispatcher struct {
	mu          sync.Mutex
	pending     *Expectation
	unsolicited UnsolicitedHandler

	closeOnce sync.Once
	closed    chan struct{}

	logger  logger.Logger
	metrics *Metrics
}

// Expectation is an armed response slot. It is resolved by one delivery,
// by Cancel, or by the dispatcher closing.
type Expectation struct {
	d  *Dispatcher
	ch chan string
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(l logger.Logger, metrics *Metrics) *Dispatcher {
	if metrics == nil {
		metrics = &Metrics{}
	}

	return &Dispatcher{
		closed:  make(chan struct{}),
		logger:  l,
		metrics: metrics,
	}
}

// SetUnsolicitedHandler sets the handler for messages nobody is waiting for.
// A nil handler restores drop-and-log.
func (d *Dispatcher) SetUnsolicitedHandler(h UnsolicitedHandler) {
	d.mu.Lock()
	d.unsolicited = h
	d.mu.Unlock()
}

// Expect arms the response slot. It fails with ErrBusy when a slot is already
// armed and with ErrClosed after Close.
func (d *Dispatcher) Expect() (*Expectation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.closed:
		return nil, ErrClosed
	default:
	}

	if d.pending != nil {
		return nil, ErrBusy
	}

	exp := &Expectation{d: d, ch: make(chan string, 1)}
	d.pending = exp

	return exp, nil
}

// Deliver routes one message.
func (d *Dispatcher) Deliver(msg string) {
	d.mu.Lock()
	if exp := d.pending; exp != nil {
		// single-shot slot with capacity one, the send never blocks
		exp.ch <- msg
		d.pending = nil
		d.mu.Unlock()
		d.metrics.incResponseRecvCount()

		return
	}
	handler := d.unsolicited
	d.mu.Unlock()

	d.route(handler, msg)
}

func (d *Dispatcher) route(handler UnsolicitedHandler, msg string) {
	switch {
	case handler != nil:
		d.metrics.incUnsolicitedCount()
		handler(msg)
	default:
		d.metrics.incDroppedCount()
		d.logger.Info("transport: dropping unsolicited message", "message", msg)
	}
}

// Close fails the armed expectation, if any, and every later Expect with ErrClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.pending = nil
		close(d.closed)
		d.mu.Unlock()
	})
}

// Wait blocks until the message arrives, ctx is done, or the dispatcher closes.
//
// A message that races with ctx expiry is still returned.
func (e *Expectation) Wait(ctx context.Context) (string, error) {
	select {
	case msg := <-e.ch:
		return msg, nil
	case <-ctx.Done():
		if msg, ok := e.cancel(); ok {
			return msg, nil
		}

		return "", ctx.Err()
	case <-e.d.closed:
		if msg, ok := e.cancel(); ok {
			return msg, nil
		}

		return "", ErrClosed
	}
}

// Cancel disarms the expectation. A message delivered before the disarm is
// routed as unsolicited.
func (e *Expectation) Cancel() {
	if msg, ok := e.cancel(); ok {
		e.d.mu.Lock()
		handler := e.d.unsolicited
		e.d.mu.Unlock()

		e.d.route(handler, msg)
	}
}

func (e *Expectation) cancel() (string, bool) {
	e.d.mu.Lock()
	if e.d.pending == e {
		e.d.pending = nil
	}
	e.d.mu.Unlock()

	select {
	case msg := <-e.ch:
		return msg, true
	default:
		return "", false
	}
}
