package prologix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.bug.st/serial"

	"github.com/arloliu/go-scpi/gpib"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/transport"
)

const (
	controllerPrefix = "++"
	escapeByte       = '\x1b'
)

var openPort = func(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Bus is a GPIB bus behind a Prologix controller.
type Bus struct {
	stream  *transport.Stream
	cfg     *Config
	devices *xsync.MapOf[gpib.Address, *gpib.DeviceTransport]
	logger  logger.Logger
}

var (
	_ gpib.Bus                      = (*Bus)(nil)
	_ transport.UnsolicitedReceiver = (*Bus)(nil)
)

// Open opens the controller's serial port and initializes the controller.
func Open(ctx context.Context, cfg *Config) (*Bus, error) {
	if cfg == nil {
		return nil, errors.New("prologix: nil config")
	}

	port, err := openPort(cfg.portName, &serial.Mode{BaudRate: cfg.baudRate})
	if err != nil {
		return nil, fmt.Errorf("prologix: open %s: %w", cfg.portName, err)
	}

	bus, err := New(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.initTimeout)
	defer cancel()

	if err := bus.Initialize(initCtx); err != nil {
		_ = bus.Close()
		return nil, err
	}

	return bus, nil
}

// New starts a bus on an already opened link and takes ownership of it. The
// controller is not initialized; call Initialize.
func New(port io.ReadWriteCloser, cfg *Config) (*Bus, error) {
	if cfg == nil {
		return nil, errors.New("prologix: nil config")
	}

	l := cfg.logger.With("port", cfg.portName)
	stream, err := transport.NewStream(port, transport.StreamConfig{
		Name:            "prologix",
		WriteTerminator: LineTerminator,
		ReadTerminator:  LineTerminator,
		WriteTimeout:    cfg.writeTimeout,
		Logger:          l,
	})
	if err != nil {
		return nil, err
	}

	return &Bus{
		stream:  stream,
		cfg:     cfg,
		devices: xsync.NewMapOf[gpib.Address, *gpib.DeviceTransport](),
		logger:  l,
	}, nil
}

// Initialize puts the controller in a known state: controller mode, no
// read-after-write, EOI asserted, no EOS or EOT characters, the configured
// read timeout, and controller in charge.
func (b *Bus) Initialize(ctx context.Context) error {
	lines := []string{
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		"++eos 0",
		"++eot_enable 0",
		fmt.Sprintf("++read_tmo_ms %d", b.cfg.readTimeout.Milliseconds()),
		"++ifc",
	}

	lock := b.stream.ExchangeLock()
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	for _, line := range lines {
		if err := b.stream.WriteLine(ctx, line); err != nil {
			return fmt.Errorf("prologix: initialize: %s: %w", line, err)
		}
	}
	b.logger.Debug("prologix: controller initialized")

	return nil
}

// Config returns the bus configuration.
func (b *Bus) Config() *Config {
	return b.cfg
}

// Metrics returns the link counters.
func (b *Bus) Metrics() *transport.Metrics {
	return b.stream.Metrics()
}

// IsReady reports whether the link is open.
func (b *Bus) IsReady() bool {
	return b.stream.IsReady()
}

// ExchangeLock returns the lock shared by every device on this bus.
func (b *Bus) ExchangeLock() *transport.Lock {
	return b.stream.ExchangeLock()
}

// SetUnsolicitedHandler sets the handler of lines read with no exchange waiting.
func (b *Bus) SetUnsolicitedHandler(h transport.UnsolicitedHandler) {
	b.stream.SetUnsolicitedHandler(h)
}

// Close closes the link. Device transports of this bus become unusable.
func (b *Bus) Close() error {
	return b.stream.Close()
}

// DeviceTransport returns the transport of the device at addr. Repeated calls
// with the same address return the same transport.
func (b *Bus) DeviceTransport(addr gpib.Address) (*gpib.DeviceTransport, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	dt, _ := b.devices.LoadOrCompute(addr, func() *gpib.DeviceTransport {
		dt, _ := gpib.NewDeviceTransport(b, addr)
		return dt
	})

	return dt, nil
}

// SendCommand sends SCPI text to the addressed device.
func (b *Bus) SendCommand(ctx context.Context, cmd string) error {
	if strings.HasPrefix(cmd, controllerPrefix) {
		return fmt.Errorf("%w: controller command %q sent as device text", transport.ErrIncompatible, cmd)
	}

	return b.stream.WriteLine(ctx, escapeDeviceText(cmd))
}

// GetResponse tells the controller to read from the addressed device until EOI.
func (b *Bus) GetResponse(ctx context.Context) (string, error) {
	return b.stream.Query(ctx, "++read eoi")
}

// AbortCommand does nothing; the controller has no cheap abort.
func (b *Bus) AbortCommand(_ context.Context) error {
	b.logger.Debug("prologix: abort not supported, ignoring")
	return nil
}

// SetAddress selects addr and, unless disabled, reads it back.
func (b *Bus) SetAddress(ctx context.Context, addr gpib.Address) error {
	if err := addr.Validate(); err != nil {
		return err
	}

	if err := b.controllerCommand(ctx, "++addr "+addr.String()); err != nil {
		return err
	}

	if !b.cfg.verifyAddress {
		return nil
	}

	got, err := b.QueryAddress(ctx)
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("%w: selected %s, controller reports %s", ErrAddressMismatch, addr, got)
	}

	return nil
}

// QueryAddress reads the address the controller currently talks to.
func (b *Bus) QueryAddress(ctx context.Context) (gpib.Address, error) {
	reply, err := b.controllerQuery(ctx, "++addr")
	if err != nil {
		return gpib.Address{}, err
	}

	addr, err := gpib.ParseAddress(reply)
	if err != nil {
		return gpib.Address{}, fmt.Errorf("%w: ++addr: %w", ErrInvalidReply, err)
	}

	return addr, nil
}

// ScanDevices scans the bus with the configured per-address budget.
func (b *Bus) ScanDevices(ctx context.Context) ([]gpib.ScanResult, error) {
	return gpib.ScanDevices(ctx, b,
		gpib.WithAddressTimeout(b.cfg.scanAddressTimeout),
		gpib.WithScanLogger(b.logger),
	)
}

// SendSDC sends Selected Device Clear to the addressed device.
func (b *Bus) SendSDC(ctx context.Context) error {
	return b.controllerCommand(ctx, "++clr")
}

// SendIFC pulses Interface Clear, making the controller the controller-in-charge.
func (b *Bus) SendIFC(ctx context.Context) error {
	return b.controllerCommand(ctx, "++ifc")
}

// SendLLO locks out the front panel of the addressed device.
func (b *Bus) SendLLO(ctx context.Context) error {
	return b.controllerCommand(ctx, "++llo")
}

// SendLOC returns the addressed device to local control.
func (b *Bus) SendLOC(ctx context.Context) error {
	return b.controllerCommand(ctx, "++loc")
}

// SendGroupTrigger triggers the listed primary addresses. The controller
// triggers the addressed device when the list is empty.
func (b *Bus) SendGroupTrigger(ctx context.Context, addrs ...int) error {
	cmd := "++trg"
	for _, pad := range addrs {
		if err := gpib.Primary(pad).Validate(); err != nil {
			return err
		}
		cmd += " " + strconv.Itoa(pad)
	}

	return b.controllerCommand(ctx, cmd)
}

// GetSRQ reports whether some device asserts the SRQ line.
func (b *Bus) GetSRQ(ctx context.Context) (bool, error) {
	v, err := b.controllerInt(ctx, "++srq")
	if err != nil {
		return false, err
	}

	return v != 0, nil
}

// Poll serial polls the addressed device and returns its status byte.
func (b *Bus) Poll(ctx context.Context) (int, error) {
	return b.controllerInt(ctx, "++spoll")
}

// ReadTimeout reads the controller read timeout.
func (b *Bus) ReadTimeout(ctx context.Context) (time.Duration, error) {
	ms, err := b.controllerInt(ctx, "++read_tmo_ms")
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// SetReadTimeout sets the controller read timeout in whole milliseconds.
func (b *Bus) SetReadTimeout(ctx context.Context, d time.Duration) error {
	if err := checkReadTimeout(d); err != nil {
		return err
	}

	return b.controllerCommand(ctx, fmt.Sprintf("++read_tmo_ms %d", d.Milliseconds()))
}

// Version returns the controller firmware banner.
func (b *Bus) Version(ctx context.Context) (string, error) {
	lock := b.stream.ExchangeLock()
	if err := lock.Acquire(ctx); err != nil {
		return "", err
	}
	defer lock.Release()

	return b.controllerQuery(ctx, "++ver")
}

func (b *Bus) controllerCommand(ctx context.Context, cmd string) error {
	return b.stream.WriteLine(ctx, cmd)
}

// controllerQuery sends a controller command and reads its reply, bounded by
// the controller timeout.
func (b *Bus) controllerQuery(ctx context.Context, cmd string) (string, error) {
	qctx, cancel := context.WithTimeout(ctx, b.cfg.controllerTimeout)
	defer cancel()

	reply, err := b.stream.Query(qctx, cmd)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			b.logger.Error("prologix: controller did not answer", "command", cmd, "timeout", b.cfg.controllerTimeout)
			return "", fmt.Errorf("%w: %s: %w", ErrControllerUnresponsive, cmd, err)
		}

		return "", err
	}

	return strings.TrimSpace(reply), nil
}

func (b *Bus) controllerInt(ctx context.Context, cmd string) (int, error) {
	reply, err := b.controllerQuery(ctx, cmd)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %s returned %q", ErrInvalidReply, cmd, reply)
	}

	return v, nil
}

// escapeDeviceText escapes the bytes the controller would otherwise
// interpret instead of passing them to the device.
func escapeDeviceText(s string) string {
	if !strings.ContainsAny(s, "+\x1b") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '+' || c == escapeByte {
			sb.WriteByte(escapeByte)
		}
		sb.WriteByte(s[i])
	}

	return sb.String()
}
