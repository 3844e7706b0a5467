package gpib

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-scpi/transport"
)

// DeviceTransport is the transport of one device on a shared bus.
//
// SendCommand, GetResponse, Query, AbortCommand and Poll form the data path
// and expect the caller to hold ExchangeLock, as the scpi.Protocol does.
// SendSDC, SendLLO and SendLOC acquire it themselves.
type DeviceTransport struct {
	bus  Bus
	addr Address
}

var (
	_ transport.Transport = (*DeviceTransport)(nil)
	_ transport.Querier   = (*DeviceTransport)(nil)
	_ transport.Poller    = (*DeviceTransport)(nil)
)

// NewDeviceTransport binds addr on bus.
func NewDeviceTransport(bus Bus, addr Address) (*DeviceTransport, error) {
	if bus == nil {
		return nil, errors.New("gpib: nil bus")
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	return &DeviceTransport{bus: bus, addr: addr}, nil
}

// Address returns the bound device address.
func (d *DeviceTransport) Address() Address {
	return d.addr
}

// Bus returns the bus the device lives on.
func (d *DeviceTransport) Bus() Bus {
	return d.bus
}

// ExchangeLock returns the bus's exchange lock.
func (d *DeviceTransport) ExchangeLock() *transport.Lock {
	return d.bus.ExchangeLock()
}

// SendCommand selects the device and sends cmd.
func (d *DeviceTransport) SendCommand(ctx context.Context, cmd string) error {
	if err := d.selectDevice(ctx); err != nil {
		return err
	}

	return d.bus.SendCommand(ctx, cmd)
}

// GetResponse selects the device and reads its reply.
func (d *DeviceTransport) GetResponse(ctx context.Context) (string, error) {
	if err := d.selectDevice(ctx); err != nil {
		return "", err
	}

	return d.bus.GetResponse(ctx)
}

// Query selects the device, sends cmd and reads the reply.
func (d *DeviceTransport) Query(ctx context.Context, cmd string) (string, error) {
	if err := d.selectDevice(ctx); err != nil {
		return "", err
	}

	if q, ok := d.bus.(transport.Querier); ok {
		return q.Query(ctx, cmd)
	}

	if err := d.bus.SendCommand(ctx, cmd); err != nil {
		return "", err
	}

	return d.bus.GetResponse(ctx)
}

// AbortCommand selects the device and asks the bus to abort.
func (d *DeviceTransport) AbortCommand(ctx context.Context) error {
	if err := d.selectDevice(ctx); err != nil {
		return err
	}

	return d.bus.AbortCommand(ctx)
}

// Poll serial polls the device.
func (d *DeviceTransport) Poll(ctx context.Context) (int, error) {
	if err := d.selectDevice(ctx); err != nil {
		return 0, err
	}

	return d.bus.Poll(ctx)
}

// SendSDC clears the device.
func (d *DeviceTransport) SendSDC(ctx context.Context) error {
	return d.locked(ctx, d.bus.SendSDC)
}

// SendLLO locks out the device's front panel.
func (d *DeviceTransport) SendLLO(ctx context.Context) error {
	return d.locked(ctx, d.bus.SendLLO)
}

// SendLOC returns the device to local control.
func (d *DeviceTransport) SendLOC(ctx context.Context) error {
	return d.locked(ctx, d.bus.SendLOC)
}

// Close does nothing; the bus outlives its device transports.
func (d *DeviceTransport) Close() error {
	return nil
}

func (d *DeviceTransport) String() string {
	return "gpib device " + d.addr.String()
}

func (d *DeviceTransport) locked(ctx context.Context, op func(context.Context) error) error {
	lock := d.bus.ExchangeLock()
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release()

	if err := d.selectDevice(ctx); err != nil {
		return err
	}

	return op(ctx)
}

func (d *DeviceTransport) selectDevice(ctx context.Context) error {
	if err := d.bus.SetAddress(ctx, d.addr); err != nil {
		return fmt.Errorf("gpib: select %s: %w", d.addr, err)
	}

	return nil
}
