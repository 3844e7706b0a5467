package scpi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-scpi/transport"
)

// Device is an instrument speaking SCPI, with the IEEE-488.2 common commands.
//
// Command and Ask use the safe variants unless the device was created with
// WithSafeVariants(false).
type Device struct {
	protocol *Protocol
	safe     bool
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithSafeVariants selects whether Command and Ask check the error queue
// after every exchange. Enabled by default.
func WithSafeVariants(enabled bool) DeviceOption {
	return func(d *Device) {
		d.safe = enabled
	}
}

// NewDevice creates a Device with a new Protocol over t.
func NewDevice(t transport.Transport, opts ...DeviceOption) (*Device, error) {
	p, err := NewProtocol(t)
	if err != nil {
		return nil, err
	}

	return NewDeviceFromProtocol(p, opts...)
}

// NewDeviceFromProtocol creates a Device sharing p.
func NewDeviceFromProtocol(p *Protocol, opts ...DeviceOption) (*Device, error) {
	if p == nil {
		return nil, errors.New("scpi: nil protocol")
	}

	d := &Device{protocol: p, safe: true}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// NewDeviceFromDevice creates a Device sharing the protocol of other, for
// instance to view the same instrument through a richer type. The safe
// variant setting is inherited unless opts override it.
func NewDeviceFromDevice(other *Device, opts ...DeviceOption) (*Device, error) {
	if other == nil {
		return nil, errors.New("scpi: nil device")
	}

	d := &Device{protocol: other.protocol, safe: other.safe}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Protocol returns the protocol of the device.
func (d *Device) Protocol() *Protocol {
	return d.protocol
}

// Transport returns the transport of the device.
func (d *Device) Transport() transport.Transport {
	return d.protocol.Transport()
}

// SafeVariants reports whether Command and Ask check the error queue.
func (d *Device) SafeVariants() bool {
	return d.safe
}

// Command sends cmd.
func (d *Device) Command(ctx context.Context, cmd string, opts ...ExchangeOption) error {
	if d.safe {
		return d.protocol.SafeCommand(ctx, cmd, opts...)
	}

	return d.protocol.Command(ctx, cmd, opts...)
}

// Ask sends cmd and returns the reply.
func (d *Device) Ask(ctx context.Context, cmd string, opts ...ExchangeOption) (string, error) {
	if d.safe {
		return d.protocol.SafeAsk(ctx, cmd, opts...)
	}

	return d.protocol.Ask(ctx, cmd, opts...)
}

// AskInt asks cmd and parses the reply as an integer.
func (d *Device) AskInt(ctx context.Context, cmd string, opts ...ExchangeOption) (int, error) {
	reply, err := d.Ask(ctx, cmd, opts...)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, &FormatError{Kind: "integer", Reply: reply}
	}

	return v, nil
}

// AskFloat asks cmd and parses the reply as a number, e.g. "+1.234E+00".
func (d *Device) AskFloat(ctx context.Context, cmd string, opts ...ExchangeOption) (float64, error) {
	reply, err := d.Ask(ctx, cmd, opts...)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, &FormatError{Kind: "numeric", Reply: reply}
	}

	return v, nil
}

// AskBool asks cmd and parses a 0/1 reply.
func (d *Device) AskBool(ctx context.Context, cmd string, opts ...ExchangeOption) (bool, error) {
	v, err := d.AskInt(ctx, cmd, opts...)
	if err != nil {
		return false, err
	}

	return v != 0, nil
}

// Abort asks the transport to abort the command the instrument is stuck on.
func (d *Device) Abort(ctx context.Context) error {
	return d.protocol.AbortCommand(ctx)
}

// GetError reads one entry of the error queue.
func (d *Device) GetError(ctx context.Context) (code int, message string, err error) {
	return d.protocol.GetError(ctx)
}

// Close closes the transport.
func (d *Device) Close() error {
	return d.protocol.Close()
}

// Reset resets the instrument with *RST and clears its status with *CLS.
func (d *Device) Reset(ctx context.Context) error {
	return d.protocol.Command(ctx, "*RST;*CLS")
}

// WaitForComplete waits until every pending operation is done, up to timeout.
func (d *Device) WaitForComplete(ctx context.Context, timeout time.Duration) (bool, error) {
	return d.AskBool(ctx, "*WAI;*OPC?", WithTimeout(timeout))
}

// Identify returns the instrument identity.
func (d *Device) Identify(ctx context.Context) (Identity, error) {
	reply, err := d.Ask(ctx, "*IDN?")
	if err != nil {
		return Identity{}, err
	}

	return ParseIdentity(reply)
}

// QueryESR reads the Event Status Register. Reading clears it.
func (d *Device) QueryESR(ctx context.Context) (int, error) {
	return d.AskInt(ctx, "*ESR?")
}

// QueryESE reads the Event Status Enable register.
func (d *Device) QueryESE(ctx context.Context) (int, error) {
	return d.AskInt(ctx, "*ESE?")
}

// SetESE sets the Event Status Enable register, e.g.
// int(ESROperationComplete|ESRExecutionError).
func (d *Device) SetESE(ctx context.Context, mask int) error {
	return d.Command(ctx, fmt.Sprintf("*ESE %d", mask))
}

// QuerySRE reads the Service Request Enable register.
func (d *Device) QuerySRE(ctx context.Context) (int, error) {
	return d.AskInt(ctx, "*SRE?")
}

// SetSRE sets the Service Request Enable register, e.g.
// int(STBMessageAvailable|STBErrorAvailable).
func (d *Device) SetSRE(ctx context.Context, mask int) error {
	return d.Command(ctx, fmt.Sprintf("*SRE %d", mask))
}

// QueryStatusByte reads the status byte, with a serial poll when the
// transport supports one and with *STB? otherwise.
func (d *Device) QueryStatusByte(ctx context.Context) (int, error) {
	if d.protocol.CanPoll() {
		return d.protocol.Poll(ctx)
	}

	return d.AskInt(ctx, "*STB?")
}

// Trigger sends *TRG. On GPIB, a group trigger from the bus is usually
// preferable but reaches every listed device.
func (d *Device) Trigger(ctx context.Context) error {
	return d.Command(ctx, "*TRG")
}

// ClearStatus sends *CLS.
func (d *Device) ClearStatus(ctx context.Context) error {
	return d.Command(ctx, "*CLS")
}

// OperationComplete sends *OPC.
func (d *Device) OperationComplete(ctx context.Context) error {
	return d.Command(ctx, "*OPC")
}

// QueryOptions returns the installed options.
func (d *Device) QueryOptions(ctx context.Context) (string, error) {
	return d.Ask(ctx, "*OPT?")
}

// SetPowerOnStatusClear sets whether status enables are cleared at power on.
func (d *Device) SetPowerOnStatusClear(ctx context.Context, enabled bool) error {
	return d.Command(ctx, "*PSC "+boolArg(enabled))
}

// SaveState stores the current setup in memory location n.
func (d *Device) SaveState(ctx context.Context, n int) error {
	return d.Command(ctx, fmt.Sprintf("*SAV %d", n))
}

// RestoreState recalls the setup stored in memory location n.
func (d *Device) RestoreState(ctx context.Context, n int) error {
	return d.Command(ctx, fmt.Sprintf("*RCL %d", n))
}

func boolArg(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
