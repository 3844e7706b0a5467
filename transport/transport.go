package transport

import "context"

// Transport is a link to one instrument (or to a bus controller).
type Transport interface {
	// SendCommand writes one command line. It fails with ErrNotReady when the
	// link is not usable.
	SendCommand(ctx context.Context, cmd string) error
	// GetResponse waits for exactly one complete framed message.
	GetResponse(ctx context.Context) (string, error)
	// AbortCommand issues a best-effort hardware abort (device clear). Links
	// without a cheap equivalent return nil.
	AbortCommand(ctx context.Context) error
	// ExchangeLock returns the lock serializing exchanges on this link.
	ExchangeLock() *Lock
	// Close stops the background reader and releases the link.
	Close() error
}

// Querier is implemented by transports that can arm the response slot before
// writing the command, so a fast reply can not slip past the waiter.
type Querier interface {
	Query(ctx context.Context, cmd string) (string, error)
}

// Poller is implemented by transports offering a serial poll, a status byte
// read that bypasses the instrument's SCPI parser.
type Poller interface {
	Poll(ctx context.Context) (int, error)
}

// UnsolicitedReceiver is implemented by transports that can hand messages
// arriving with no armed expectation to a handler.
type UnsolicitedReceiver interface {
	SetUnsolicitedHandler(h UnsolicitedHandler)
}

// UnsolicitedHandler receives a message nobody was waiting for. It is called
// on the reader goroutine and must not block.
type UnsolicitedHandler func(msg string)
