package scpi

import "fmt"

// Bit is a single bit of a status register.
type Bit uint8

// IsSet reports whether b is set in a register value.
func (b Bit) IsSet(value int) bool {
	return value&int(b) != 0
}

// Event Status Register bits, as returned by *ESR? and enabled by *ESE.
const (
	ESRPowerOn           Bit = 128
	ESRUserRequest       Bit = 64
	ESRCommandError      Bit = 32
	ESRExecutionError    Bit = 16
	ESRDeviceError       Bit = 8
	ESRQueryError        Bit = 4
	ESRControlRequest    Bit = 2
	ESROperationComplete Bit = 1
)

// Status Byte bits, as returned by *STB? or a serial poll and enabled by *SRE.
const (
	// STBRequestService is RQS in a serial poll and MSS in *STB?.
	STBRequestService   Bit = 64
	STBEventSummary     Bit = 32
	STBMessageAvailable Bit = 16
	STBErrorAvailable   Bit = 4
)

// Register selects the status register a bit name belongs to.
type Register int

const (
	EventStatusRegister Register = iota
	StatusByteRegister
)

func (r Register) String() string {
	switch r {
	case EventStatusRegister:
		return "ESR"
	case StatusByteRegister:
		return "STB"
	default:
		return "unknown"
	}
}

var esrBitNames = map[string]Bit{
	"power_on":           ESRPowerOn,
	"user_request":       ESRUserRequest,
	"command_error":      ESRCommandError,
	"exec_error":         ESRExecutionError,
	"execution_error":    ESRExecutionError,
	"device_error":       ESRDeviceError,
	"query_error":        ESRQueryError,
	"control_request":    ESRControlRequest,
	"operation_complete": ESROperationComplete,
}

var stbBitNames = map[string]Bit{
	"rqs_mss":           STBRequestService,
	"rqs":               STBRequestService,
	"mss":               STBRequestService,
	"esb":               STBEventSummary,
	"event_summary":     STBEventSummary,
	"mav":               STBMessageAvailable,
	"message_available": STBMessageAvailable,
	"eav":               STBErrorAvailable,
	"error_available":   STBErrorAvailable,
}

// LookupBit returns the bit of reg with the given name, e.g. "exec_error"
// or "mav".
func LookupBit(reg Register, name string) (Bit, error) {
	var names map[string]Bit
	switch reg {
	case EventStatusRegister:
		names = esrBitNames
	case StatusByteRegister:
		names = stbBitNames
	}

	bit, ok := names[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", ErrUnknownBit, reg, name)
	}

	return bit, nil
}

// TestBit reports whether the named bit of reg is set in value.
func TestBit(reg Register, value int, name string) (bool, error) {
	bit, err := LookupBit(reg, name)
	if err != nil {
		return false, err
	}

	return bit.IsSet(value), nil
}
