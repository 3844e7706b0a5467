package instrument

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-scpi/scpi"
)

// ErrInvalidArgument is returned when a parameter is rejected before anything is sent.
var ErrInvalidArgument = errors.New("instrument: invalid argument")

// MultiMeter measures voltage and current.
//
// The extra parameter is appended to the command header, e.g. ":ACDC".
type MultiMeter interface {
	MeasureVoltage(ctx context.Context, extra string) (float64, error)
	MeasureCurrent(ctx context.Context, extra string) (float64, error)
	SetMeasureCurrentMax(ctx context.Context, amps float64) error
	QueryMeasureCurrentMax(ctx context.Context) (float64, error)
}

// PowerSupply programs an output.
//
// The extra parameter is appended to the command header, e.g. ":PROT".
type PowerSupply interface {
	SetVoltage(ctx context.Context, millivolts float64, extra string) error
	QueryVoltage(ctx context.Context, extra string) (float64, error)
	SetCurrent(ctx context.Context, milliamps float64, extra string) error
	QueryCurrent(ctx context.Context, extra string) (float64, error)
	SetOutput(ctx context.Context, on bool) error
	QueryOutput(ctx context.Context) (bool, error)
}

// Meter implements MultiMeter over a device.
type Meter struct {
	dev *scpi.Device
}

var _ MultiMeter = (*Meter)(nil)

// NewMeter returns the measurement capability of dev.
func NewMeter(dev *scpi.Device) *Meter {
	return &Meter{dev: dev}
}

// MeasureVoltage returns the measured output voltage in volts.
func (m *Meter) MeasureVoltage(ctx context.Context, extra string) (float64, error) {
	return m.dev.AskFloat(ctx, "MEAS:SCAL:VOLT"+extra+"?")
}

// MeasureCurrent returns the measured output current in amps.
func (m *Meter) MeasureCurrent(ctx context.Context, extra string) (float64, error) {
	return m.dev.AskFloat(ctx, "MEAS:SCAL:CURR"+extra+"?")
}

// SetMeasureCurrentMax sets the upper bound of the current measurement range.
// Keeping it low improves low-current accuracy on some instruments.
func (m *Meter) SetMeasureCurrentMax(ctx context.Context, amps float64) error {
	return m.dev.Command(ctx, fmt.Sprintf("SENS:CURR:RANG %f", amps))
}

// QueryMeasureCurrentMax returns the current measurement range in amps. The
// instrument may report a different value than the one set.
func (m *Meter) QueryMeasureCurrentMax(ctx context.Context) (float64, error) {
	return m.dev.AskFloat(ctx, "SENS:CURR:RANG?")
}

// Supply implements PowerSupply over a device.
type Supply struct {
	dev *scpi.Device
}

var _ PowerSupply = (*Supply)(nil)

// NewSupply returns the output capability of dev.
func NewSupply(dev *scpi.Device) *Supply {
	return &Supply{dev: dev}
}

// SetVoltage sets the output voltage in millivolts. It does not enable the output.
func (s *Supply) SetVoltage(ctx context.Context, millivolts float64, extra string) error {
	return s.dev.Command(ctx, fmt.Sprintf("SOUR:VOLT%s %f MV", extra, millivolts))
}

// QueryVoltage returns the programmed output voltage in volts.
func (s *Supply) QueryVoltage(ctx context.Context, extra string) (float64, error) {
	return s.dev.AskFloat(ctx, "SOUR:VOLT"+extra+"?")
}

// SetCurrent sets the output current in milliamps. It does not enable the output.
func (s *Supply) SetCurrent(ctx context.Context, milliamps float64, extra string) error {
	return s.dev.Command(ctx, fmt.Sprintf("SOUR:CURR%s %f MA", extra, milliamps))
}

// QueryCurrent returns the programmed output current in amps.
func (s *Supply) QueryCurrent(ctx context.Context, extra string) (float64, error) {
	return s.dev.AskFloat(ctx, "SOUR:CURR"+extra+"?")
}

// SetOutput enables or disables the output.
func (s *Supply) SetOutput(ctx context.Context, on bool) error {
	if on {
		return s.dev.Command(ctx, "OUTP:STAT 1")
	}

	return s.dev.Command(ctx, "OUTP:STAT 0")
}

// QueryOutput reports whether the output is enabled.
func (s *Supply) QueryOutput(ctx context.Context) (bool, error) {
	return s.dev.AskBool(ctx, "OUTP:STAT?")
}
