package transport

import "errors"

var (
	// ErrNotReady indicates the link is not open or its reader has stopped.
	ErrNotReady = errors.New("transport: not ready")

	// ErrClosed indicates the transport was closed, possibly mid-exchange.
	ErrClosed = errors.New("transport: closed")

	// ErrWriteTimeout indicates the link did not accept the bytes in time.
	ErrWriteTimeout = errors.New("transport: write timeout")

	// ErrIncompatible indicates a feature was invoked on a transport type that
	// does not support it.
	ErrIncompatible = errors.New("transport: operation not supported by this transport")

	// ErrBusy indicates a response was already expected when another
	// expectation was armed. It means the exchange lock was bypassed.
	ErrBusy = errors.New("transport: response already expected")
)
