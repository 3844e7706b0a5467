package gpib

import (
	"context"
	"time"

	"github.com/arloliu/go-scpi/transport"
)

// Bus is a GPIB bus controller.
//
// The primitives act on the bus as it currently is and assume the caller
// holds ExchangeLock. SendCommand and GetResponse talk to the addressed
// device.
type Bus interface {
	transport.Transport

	// SetAddress selects the device the next operations talk to.
	SetAddress(ctx context.Context, addr Address) error
	// QueryAddress returns the currently selected address.
	QueryAddress(ctx context.Context) (Address, error)
	// ScanDevices returns the devices answering on the bus, ordered by address.
	ScanDevices(ctx context.Context) ([]ScanResult, error)

	// SendSDC sends Selected Device Clear to the addressed device.
	SendSDC(ctx context.Context) error
	// SendIFC pulses Interface Clear, making the controller in charge.
	SendIFC(ctx context.Context) error
	// SendLLO sends Local Lockout to the addressed device.
	SendLLO(ctx context.Context) error
	// SendLOC returns the addressed device to local control.
	SendLOC(ctx context.Context) error
	// SendGroupTrigger sends Group Execute Trigger to the listed primary
	// addresses, or to the addressed device when none are given.
	SendGroupTrigger(ctx context.Context, addrs ...int) error

	// GetSRQ reports whether some device asserts Service Request.
	GetSRQ(ctx context.Context) (bool, error)
	// Poll serial polls the addressed device and returns its status byte.
	Poll(ctx context.Context) (int, error)

	// ReadTimeout returns the controller's inter-character read timeout.
	ReadTimeout(ctx context.Context) (time.Duration, error)
	// SetReadTimeout sets the controller's inter-character read timeout.
	SetReadTimeout(ctx context.Context, d time.Duration) error
}

// ScanResult is one device found by a bus scan. Identity is the trimmed
// *IDN? reply, empty when the device answered the poll but not the query.
type ScanResult struct {
	Address  Address
	Identity string
}
