package instrument

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/arloliu/go-scpi/rs232"
	"github.com/arloliu/go-scpi/scpi"
	"github.com/arloliu/go-scpi/transport"
)

const (
	// HP6632BLowCurrentRange is the measurement range of low-current mode in amps.
	HP6632BLowCurrentRange = 0.020
	// HP6632BHighCurrentRange is the full measurement range in amps.
	HP6632BHighCurrentRange = 5.0

	// MaxDisplayText is the number of characters the front panel can show.
	MaxDisplayText = 14
)

// Display modes accepted by SetDisplayMode.
const (
	DisplayNormal = "NORM"
	DisplayText   = "TEXT"
)

// HP6632B is an HP/Agilent 6632B system DC power supply.
type HP6632B struct {
	*scpi.Device
	*Meter
	*Supply
}

// NewHP6632B views dev as a 6632B. The protocol is shared with dev.
func NewHP6632B(dev *scpi.Device, opts ...scpi.DeviceOption) (*HP6632B, error) {
	view, err := scpi.NewDeviceFromDevice(dev, opts...)
	if err != nil {
		return nil, err
	}

	return &HP6632B{Device: view, Meter: NewMeter(view), Supply: NewSupply(view)}, nil
}

// OpenHP6632B opens a 6632B on its RS232 port.
func OpenHP6632B(cfg *rs232.Config, opts ...scpi.DeviceOption) (*HP6632B, error) {
	t, err := rs232.Open(cfg)
	if err != nil {
		return nil, err
	}

	dev, err := scpi.NewDevice(t, opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	return NewHP6632B(dev)
}

// SetLowCurrentMode switches the current measurement to the 20 mA range, or
// back to the full range.
func (d *HP6632B) SetLowCurrentMode(ctx context.Context, enabled bool) error {
	if enabled {
		return d.SetMeasureCurrentMax(ctx, HP6632BLowCurrentRange)
	}

	return d.SetMeasureCurrentMax(ctx, HP6632BHighCurrentRange)
}

// QueryLowCurrentMode reports whether the current measurement is in the 20 mA range.
func (d *HP6632B) QueryLowCurrentMode(ctx context.Context) (bool, error) {
	limit, err := d.QueryMeasureCurrentMax(ctx)
	if err != nil {
		return false, err
	}

	return limit <= HP6632BLowCurrentRange, nil
}

// MeasureCurrentAutorange measures the output current and, when the reading
// belongs to the other range, switches range and measures again.
func (d *HP6632B) MeasureCurrentAutorange(ctx context.Context, extra string) (float64, error) {
	amps, err := d.MeasureCurrent(ctx, extra)
	if err != nil {
		return 0, err
	}

	low, err := d.QueryLowCurrentMode(ctx)
	if err != nil {
		return 0, err
	}

	wantLow := math.Abs(amps) < HP6632BLowCurrentRange
	if wantLow == low {
		return amps, nil
	}

	if err := d.SetLowCurrentMode(ctx, wantLow); err != nil {
		return 0, err
	}

	return d.MeasureCurrent(ctx, extra)
}

// SetRemoteMode locks the front panel keys except Local, or returns the
// instrument to local mode. It overrides SetRWLock. RS232 only.
func (d *HP6632B) SetRemoteMode(ctx context.Context, remote bool) error {
	if err := d.requireRS232(); err != nil {
		return err
	}

	if remote {
		return d.Command(ctx, "SYST:REM")
	}

	return d.Command(ctx, "SYST:LOC")
}

// SetRWLock locks every front panel key, or returns the instrument to local
// mode. It overrides SetRemoteMode. RS232 only.
func (d *HP6632B) SetRWLock(ctx context.Context, locked bool) error {
	if err := d.requireRS232(); err != nil {
		return err
	}

	if locked {
		return d.Command(ctx, "SYST:RWL")
	}

	return d.Command(ctx, "SYST:LOC")
}

// SetDisplay turns the front panel display on or off.
func (d *HP6632B) SetDisplay(ctx context.Context, on bool) error {
	if on {
		return d.Command(ctx, "DISP ON")
	}

	return d.Command(ctx, "DISP OFF")
}

// SetDisplayMode selects DisplayNormal or DisplayText, case-insensitively.
func (d *HP6632B) SetDisplayMode(ctx context.Context, mode string) error {
	mode = strings.ToUpper(mode)
	if mode != DisplayNormal && mode != DisplayText {
		return fmt.Errorf("%w: display mode %q, want %s or %s", ErrInvalidArgument, mode, DisplayNormal, DisplayText)
	}

	return d.Command(ctx, "DISP:MODE "+mode)
}

// SetDisplayText shows text on the display. The display must be in
// DisplayText mode for it to be visible.
func (d *HP6632B) SetDisplayText(ctx context.Context, text string) error {
	if utf8.RuneCountInString(text) > MaxDisplayText {
		return fmt.Errorf("%w: display text longer than %d characters", ErrInvalidArgument, MaxDisplayText)
	}

	hasDouble := strings.Contains(text, `"`)
	if hasDouble && strings.Contains(text, "'") {
		return fmt.Errorf("%w: display text mixes single and double quotes", ErrInvalidArgument)
	}

	if hasDouble {
		return d.Command(ctx, "DISP:TEXT '"+text+"'")
	}

	return d.Command(ctx, `DISP:TEXT "`+text+`"`)
}

func (d *HP6632B) requireRS232() error {
	if _, ok := d.Transport().(*rs232.Transport); !ok {
		return fmt.Errorf("%w: front panel lock needs an RS232 link: %w", scpi.ErrMisuse, transport.ErrIncompatible)
	}

	return nil
}
