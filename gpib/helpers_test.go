package gpib

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-scpi/transport"
)

// fakeBus is an in-memory bus. Devices answer polls and *IDN?; empty
// addresses make polls hang until the context ends.
type fakeBus struct {
	mu          sync.Mutex
	lock        *transport.Lock
	devices     map[int]string // primary address → *IDN? reply, "" for no reply
	addr        Address
	readTimeout time.Duration
	lastCmd     string
	ops         []string
	pollErr     map[int]error
}

var _ Bus = (*fakeBus)(nil)

func newFakeBus(devices map[int]string) *fakeBus {
	return &fakeBus{
		lock:        transport.NewLock(),
		devices:     devices,
		readTimeout: 10 * time.Millisecond,
		pollErr:     map[int]error{},
	}
}

func (b *fakeBus) record(format string, args ...any) {
	b.mu.Lock()
	b.ops = append(b.ops, fmt.Sprintf(format, args...))
	b.mu.Unlock()
}

func (b *fakeBus) opsSnapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.ops...)
}

func (b *fakeBus) current() Address {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.addr
}

func (b *fakeBus) ExchangeLock() *transport.Lock { return b.lock }
func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) SendCommand(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.lastCmd = cmd
	addr := b.addr
	b.mu.Unlock()

	b.record("send %s %s", addr, cmd)

	return nil
}

func (b *fakeBus) GetResponse(ctx context.Context) (string, error) {
	b.mu.Lock()
	idn, ok := b.devices[b.addr.Primary]
	cmd := b.lastCmd
	b.mu.Unlock()

	if ok && idn != "" && cmd == "*IDN?" {
		return idn + "\n", nil
	}

	<-ctx.Done()

	return "", ctx.Err()
}

func (b *fakeBus) AbortCommand(_ context.Context) error {
	b.record("abort %s", b.current())
	return nil
}

func (b *fakeBus) SetAddress(ctx context.Context, addr Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.addr = addr
	b.mu.Unlock()
	b.record("addr %s", addr)

	return nil
}

func (b *fakeBus) QueryAddress(_ context.Context) (Address, error) {
	return b.current(), nil
}

func (b *fakeBus) ScanDevices(ctx context.Context) ([]ScanResult, error) {
	return ScanDevices(ctx, b)
}

func (b *fakeBus) SendSDC(_ context.Context) error {
	b.record("sdc %s", b.current())
	return nil
}

func (b *fakeBus) SendIFC(_ context.Context) error {
	b.record("ifc")
	return nil
}

func (b *fakeBus) SendLLO(_ context.Context) error {
	b.record("llo %s", b.current())
	return nil
}

func (b *fakeBus) SendLOC(_ context.Context) error {
	b.record("loc %s", b.current())
	return nil
}

func (b *fakeBus) SendGroupTrigger(_ context.Context, addrs ...int) error {
	b.record("trg %v", addrs)
	return nil
}

func (b *fakeBus) GetSRQ(_ context.Context) (bool, error) { return false, nil }

func (b *fakeBus) Poll(ctx context.Context) (int, error) {
	b.mu.Lock()
	pad := b.addr.Primary
	_, ok := b.devices[pad]
	err := b.pollErr[pad]
	b.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if ok {
		return 0x10, nil
	}

	<-ctx.Done()

	return 0, ctx.Err()
}

func (b *fakeBus) ReadTimeout(_ context.Context) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.readTimeout, nil
}

func (b *fakeBus) SetReadTimeout(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.readTimeout = d
	b.mu.Unlock()
	b.record("read_tmo %v", d)

	return nil
}
