package scpi

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

// reply is how the fake instrument answers one line.
type reply struct {
	text  string
	delay time.Duration
	none  bool
}

func noReply() reply { return reply{none: true} }

// fakeInstrument is an in-memory transport with a real Dispatcher, so late
// replies behave as they do on a real link.
type fakeInstrument struct {
	lock *transport.Lock
	d    *transport.Dispatcher

	mu          sync.Mutex
	sent        []string
	heldOnSend  []bool
	answer      func(cmd string) reply
	errQueue    []string
	errSilent   bool
	aborts      int
	notReady    bool
	stall       func(cmd string) bool
	unsolicited []string
}

var (
	_ transport.Transport = (*fakeInstrument)(nil)
	_ transport.Querier   = (*fakeInstrument)(nil)
)

func newFakeInstrument(answer func(cmd string) reply) *fakeInstrument {
	f := &fakeInstrument{
		lock:   transport.NewLock(),
		d:      transport.NewDispatcher(logger.GetLogger(), nil),
		answer: answer,
	}
	f.d.SetUnsolicitedHandler(func(msg string) {
		f.mu.Lock()
		f.unsolicited = append(f.unsolicited, msg)
		f.mu.Unlock()
	})

	return f
}

// answers returns a fixed table of immediate replies.
func answers(table map[string]string) func(cmd string) reply {
	return func(cmd string) reply {
		if text, ok := table[cmd]; ok {
			return reply{text: text}
		}

		return noReply()
	}
}

func (f *fakeInstrument) pushErrors(entries ...string) {
	f.mu.Lock()
	f.errQueue = append(f.errQueue, entries...)
	f.mu.Unlock()
}

func (f *fakeInstrument) sentLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.sent...)
}

func (f *fakeInstrument) lockHeldOnEverySend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, held := range f.heldOnSend {
		if !held {
			return false
		}
	}

	return true
}

func (f *fakeInstrument) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.aborts
}

func (f *fakeInstrument) unsolicitedMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.unsolicited...)
}

func (f *fakeInstrument) ExchangeLock() *transport.Lock { return f.lock }

func (f *fakeInstrument) SendCommand(ctx context.Context, cmd string) error {
	return f.send(ctx, cmd)
}

func (f *fakeInstrument) GetResponse(ctx context.Context) (string, error) {
	exp, err := f.d.Expect()
	if err != nil {
		return "", err
	}

	return exp.Wait(ctx)
}

func (f *fakeInstrument) Query(ctx context.Context, cmd string) (string, error) {
	exp, err := f.d.Expect()
	if err != nil {
		return "", err
	}

	if err := f.send(ctx, cmd); err != nil {
		exp.Cancel()
		return "", err
	}

	return exp.Wait(ctx)
}

func (f *fakeInstrument) AbortCommand(_ context.Context) error {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()

	return nil
}

func (f *fakeInstrument) Close() error {
	f.d.Close()
	return nil
}

func (f *fakeInstrument) send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.notReady {
		f.mu.Unlock()
		return transport.ErrNotReady
	}
	f.sent = append(f.sent, cmd)
	f.heldOnSend = append(f.heldOnSend, f.lock.Held())
	if f.stall != nil && f.stall(cmd) {
		f.mu.Unlock()
		<-ctx.Done()

		return ctx.Err()
	}
	r := f.replyFor(cmd)
	f.mu.Unlock()

	switch {
	case r.none:
	case r.delay == 0:
		f.d.Deliver(r.text)
	default:
		time.AfterFunc(r.delay, func() { f.d.Deliver(r.text) })
	}

	return nil
}

// replyFor runs with f.mu held.
func (f *fakeInstrument) replyFor(cmd string) reply {
	if cmd == ErrorQueueQuery {
		if f.errSilent {
			return noReply()
		}
		if len(f.errQueue) == 0 {
			return reply{text: `+0,"No error"`}
		}

		entry := f.errQueue[0]
		f.errQueue = f.errQueue[1:]

		return reply{text: entry}
	}

	if f.answer == nil {
		return noReply()
	}

	return f.answer(cmd)
}

// pollingInstrument adds a serial poll to fakeInstrument.
type pollingInstrument struct {
	*fakeInstrument
	stb int
}

var _ transport.Poller = (*pollingInstrument)(nil)

func (p *pollingInstrument) Poll(_ context.Context) (int, error) {
	p.mu.Lock()
	p.sent = append(p.sent, "<poll>")
	p.heldOnSend = append(p.heldOnSend, p.lock.Held())
	p.mu.Unlock()

	return p.stb, nil
}
