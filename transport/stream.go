package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-scpi/internal/pool"
	"github.com/arloliu/go-scpi/internal/task"
	"github.com/arloliu/go-scpi/logger"
)

const (
	DefaultWriteTimeout   = time.Second
	DefaultMaxMessageSize = 64 * 1024
	DefaultReadBufferSize = 4096
	DefaultCloseTimeout   = 3 * time.Second
)

// StreamConfig configures a Stream.
type StreamConfig struct {
	// Name prefixes log messages and names the reader task, e.g. "rs232".
	Name string
	// WriteTerminator is appended to every written line.
	WriteTerminator string
	// ReadTerminator ends every incoming message.
	ReadTerminator string
	// WriteTimeout bounds a single write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	// MaxMessageSize bounds unterminated incoming data. Zero means DefaultMaxMessageSize.
	MaxMessageSize int
	// ReadBufferSize is the size of a single read. Zero means DefaultReadBufferSize.
	ReadBufferSize int
	// BeforeWrite, when not nil, runs before every write, outside the I/O lock.
	BeforeWrite func(ctx context.Context) error
	// Logger defaults to the package default logger.
	Logger logger.Logger
}

func (cfg *StreamConfig) setDefaults() {
	if cfg.Name == "" {
		cfg.Name = "stream"
	}
	if cfg.WriteTerminator == "" {
		cfg.WriteTerminator = "\n"
	}
	if cfg.ReadTerminator == "" {
		cfg.ReadTerminator = "\n"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Stream is the line-oriented core shared by the byte-stream transports.
//
// It owns rw exclusively: a reader task frames incoming bytes and hands them
// to a Dispatcher, writes are serialized by an I/O mutex and bounded by the
// write timeout. Stream does not implement AbortCommand, the concrete
// transports do.
type Stream struct {
	cfg        StreamConfig
	rw         io.ReadWriteCloser
	framer     *LineFramer
	dispatcher *Dispatcher
	lock       *Lock
	ioMu       sync.Mutex
	taskMgr    *task.Manager
	opState    AtomicOpState
	readerDone atomic.Bool
	metrics    Metrics
	logger     logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewStream takes ownership of rw and starts the reader.
func NewStream(rw io.ReadWriteCloser, cfg StreamConfig) (*Stream, error) {
	if rw == nil {
		return nil, errors.New("transport: nil link")
	}

	cfg.setDefaults()

	s := &Stream{
		cfg:    cfg,
		rw:     rw,
		framer: NewLineFramer(cfg.ReadTerminator, cfg.MaxMessageSize),
		lock:   NewLock(),
		logger: cfg.Logger.With("transport", cfg.Name),
	}
	s.dispatcher = NewDispatcher(s.logger, &s.metrics)
	s.taskMgr = task.NewManager(context.Background(), s.logger)

	s.opState.ToOpening()
	buf := make([]byte, cfg.ReadBufferSize)
	if err := s.taskMgr.Start(cfg.Name+"-reader", func(_ context.Context) bool { return s.readOnce(buf) }, s.onReaderExit); err != nil {
		return nil, err
	}
	s.opState.ToOpened()

	return s, nil
}

// IsReady reports whether the stream is open and its reader is running.
func (s *Stream) IsReady() bool {
	return s.opState.IsOpened() && !s.readerDone.Load()
}

// State returns the lifecycle state.
func (s *Stream) State() OpState {
	return s.opState.Get()
}

// ExchangeLock returns the lock serializing exchanges on this stream.
func (s *Stream) ExchangeLock() *Lock {
	return s.lock
}

// Metrics returns the counters of this stream.
func (s *Stream) Metrics() *Metrics {
	return &s.metrics
}

// SetUnsolicitedHandler sets the receiver of messages nobody is waiting for.
func (s *Stream) SetUnsolicitedHandler(h UnsolicitedHandler) {
	s.dispatcher.SetUnsolicitedHandler(h)
}

// SendCommand writes cmd followed by the write terminator.
func (s *Stream) SendCommand(ctx context.Context, cmd string) error {
	return s.WriteLine(ctx, cmd)
}

// GetResponse waits for the next framed message.
func (s *Stream) GetResponse(ctx context.Context) (string, error) {
	if !s.IsReady() {
		return "", ErrNotReady
	}

	exp, err := s.dispatcher.Expect()
	if err != nil {
		return "", err
	}

	return exp.Wait(ctx)
}

// Query arms the response slot, writes cmd and waits for the reply.
func (s *Stream) Query(ctx context.Context, cmd string) (string, error) {
	if !s.IsReady() {
		return "", ErrNotReady
	}

	exp, err := s.dispatcher.Expect()
	if err != nil {
		return "", err
	}

	if err := s.WriteLine(ctx, cmd); err != nil {
		exp.Cancel()
		return "", err
	}

	return exp.Wait(ctx)
}

// WriteLine writes line followed by the write terminator.
func (s *Stream) WriteLine(ctx context.Context, line string) error {
	if !s.IsReady() {
		return ErrNotReady
	}

	if s.cfg.BeforeWrite != nil {
		if err := s.cfg.BeforeWrite(ctx); err != nil {
			return err
		}
	}

	s.logger.Debug("transport: write", "line", line)

	data := []byte(line + s.cfg.WriteTerminator)
	err := s.DoIO(ctx, func() error {
		_, err := s.rw.Write(data)
		return err
	})
	if err != nil {
		return err
	}

	s.metrics.incCommandSendCount()

	return nil
}

// DoIO runs fn while holding the I/O mutex, bounded by the write timeout and ctx.
//
// fn keeps running in the background when the wait is abandoned; the mutex
// stays held until it returns.
func (s *Stream) DoIO(ctx context.Context, fn func() error) error {
	return s.DoIOWithin(ctx, s.cfg.WriteTimeout, fn)
}

// DoIOWithin is DoIO with an explicit bound, for link operations slower than
// a write such as a serial break.
func (s *Stream) DoIOWithin(ctx context.Context, limit time.Duration, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		s.ioMu.Lock()
		defer s.ioMu.Unlock()

		if dl, ok := s.rw.(writeDeadliner); ok {
			_ = dl.SetWriteDeadline(time.Now().Add(limit))
		}
		done <- fn()
	}()

	timer := pool.GetTimer(limit)
	defer pool.PutTimer(timer)

	select {
	case err := <-done:
		if err != nil {
			s.metrics.incWriteErrCount()
			if isTimeout(err) {
				return ErrWriteTimeout
			}

			return fmt.Errorf("%s: write: %w", s.cfg.Name, err)
		}

		return nil

	case <-timer.C:
		s.metrics.incWriteErrCount()
		return ErrWriteTimeout

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the reader, closes the link and fails pending waiters with
// ErrClosed. Calling Close more than once is a no-op.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.opState.ToClosing()
		s.logger.Debug("transport: closing")

		s.taskMgr.Stop()
		s.closeErr = s.rw.Close()
		s.dispatcher.Close()

		waitDone := make(chan struct{})
		go func() {
			s.taskMgr.Wait()
			close(waitDone)
		}()

		timer := pool.GetTimer(DefaultCloseTimeout)
		defer pool.PutTimer(timer)

		select {
		case <-waitDone:
		case <-timer.C:
			s.logger.Warn("transport: reader did not stop in time")
		}

		s.opState.ToClosed()
		s.logger.Debug("transport: closed")
	})

	return s.closeErr
}

func (s *Stream) readOnce(buf []byte) bool {
	n, err := s.rw.Read(buf)
	if n > 0 {
		msgs, overflow := s.framer.Feed(buf[:n])
		if overflow {
			s.metrics.incOverflowCount()
			s.logger.Warn("transport: discarding oversized message", "max_size", s.cfg.MaxMessageSize)
		}

		for _, msg := range msgs {
			s.logger.Debug("transport: read", "line", msg)
			s.dispatcher.Deliver(msg)
		}
	}

	if err != nil {
		if s.opState.Get() == ClosingState || errors.Is(err, io.EOF) {
			s.logger.Debug("transport: reader stopped", "error", err)
		} else {
			s.logger.Error("transport: read failed", "error", err)
		}

		return false
	}

	return true
}

func (s *Stream) onReaderExit() {
	s.readerDone.Store(true)
	s.dispatcher.Close()
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
