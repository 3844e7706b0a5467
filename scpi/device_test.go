package scpi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceFactories(t *testing.T) {
	require := require.New(t)

	f := newFakeInstrument(nil)

	dev, err := NewDevice(f)
	require.NoError(err)
	require.True(dev.SafeVariants())
	require.Same(f, dev.Transport())

	raw, err := NewDeviceFromProtocol(dev.Protocol(), WithSafeVariants(false))
	require.NoError(err)
	require.False(raw.SafeVariants())
	require.Same(dev.Protocol(), raw.Protocol())

	view, err := NewDeviceFromDevice(raw)
	require.NoError(err)
	require.False(view.SafeVariants())
	require.Same(dev.Protocol(), view.Protocol())

	_, err = NewDevice(nil)
	require.Error(err)
	_, err = NewDeviceFromProtocol(nil)
	require.Error(err)
	_, err = NewDeviceFromDevice(nil)
	require.Error(err)
}

func TestDevice_SafeAndRawVariants(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := newFakeInstrument(answers(map[string]string{"*OPT?": "0"}))
	safe, err := NewDevice(f)
	require.NoError(err)

	_, err = safe.QueryOptions(ctx)
	require.NoError(err)
	require.Equal([]string{"*OPT?", ErrorQueueQuery}, f.sentLines())

	f2 := newFakeInstrument(answers(map[string]string{"*OPT?": "0"}))
	raw, err := NewDevice(f2, WithSafeVariants(false))
	require.NoError(err)

	_, err = raw.QueryOptions(ctx)
	require.NoError(err)
	require.Equal([]string{"*OPT?"}, f2.sentLines())
}

func TestDevice_Identify(t *testing.T) {
	f := newFakeInstrument(answers(map[string]string{"*IDN?": "HEWLETT-PACKARD,6632B,0,A.00.01"}))
	dev, err := NewDevice(f)
	require.NoError(t, err)

	id, err := dev.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEWLETT-PACKARD", id.Manufacturer)
	assert.Equal(t, "6632B", id.Model)
}

func TestDevice_CommonCommands(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := newFakeInstrument(nil)
	dev, err := NewDevice(f, WithSafeVariants(false))
	require.NoError(err)

	require.NoError(dev.Reset(ctx))
	require.NoError(dev.SetESE(ctx, int(ESROperationComplete|ESRExecutionError)))
	require.NoError(dev.SetSRE(ctx, int(STBMessageAvailable|STBErrorAvailable)))
	require.NoError(dev.Trigger(ctx))
	require.NoError(dev.ClearStatus(ctx))
	require.NoError(dev.OperationComplete(ctx))
	require.NoError(dev.SetPowerOnStatusClear(ctx, true))
	require.NoError(dev.SaveState(ctx, 3))
	require.NoError(dev.RestoreState(ctx, 3))

	require.Equal([]string{
		"*RST;*CLS",
		"*ESE 17",
		"*SRE 20",
		"*TRG",
		"*CLS",
		"*OPC",
		"*PSC 1",
		"*SAV 3",
		"*RCL 3",
	}, f.sentLines())
}

func TestDevice_ResetIsNeverChecked(t *testing.T) {
	f := newFakeInstrument(nil)
	dev, err := NewDevice(f)
	require.NoError(t, err)

	require.NoError(t, dev.Reset(context.Background()))
	assert.Equal(t, []string{"*RST;*CLS"}, f.sentLines())
}

func TestDevice_RegisterQueries(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := newFakeInstrument(answers(map[string]string{
		"*ESR?": "+32",
		"*ESE?": "17\n",
		"*SRE?": "0",
		"*STB?": "80",
		"*OPT?": "0",
	}))
	dev, err := NewDevice(f, WithSafeVariants(false))
	require.NoError(err)

	esr, err := dev.QueryESR(ctx)
	require.NoError(err)
	require.Equal(32, esr)
	require.True(ESRCommandError.IsSet(esr))

	ese, err := dev.QueryESE(ctx)
	require.NoError(err)
	require.Equal(17, ese)

	sre, err := dev.QuerySRE(ctx)
	require.NoError(err)
	require.Zero(sre)

	stb, err := dev.QueryStatusByte(ctx)
	require.NoError(err)
	require.Equal(80, stb)
	require.Contains(f.sentLines(), "*STB?")
}

func TestDevice_StatusByteUsesSerialPoll(t *testing.T) {
	pi := &pollingInstrument{fakeInstrument: newFakeInstrument(nil), stb: 0x44}
	dev, err := NewDevice(pi)
	require.NoError(t, err)

	stb, err := dev.QueryStatusByte(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0x44, stb)
	assert.Equal(t, []string{"<poll>"}, pi.sentLines())
}

func TestDevice_WaitForComplete(t *testing.T) {
	require := require.New(t)

	f := newFakeInstrument(func(cmd string) reply {
		if cmd == "*WAI;*OPC?" {
			return reply{text: "1", delay: 40 * time.Millisecond}
		}
		return noReply()
	})
	dev, err := NewDevice(f, WithSafeVariants(false))
	require.NoError(err)

	done, err := dev.WaitForComplete(context.Background(), 500*time.Millisecond)
	require.NoError(err)
	require.True(done)

	_, err = dev.WaitForComplete(context.Background(), 10*time.Millisecond)
	require.True(IsTimeout(err))
}

func TestDevice_NumericReplies(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := newFakeInstrument(answers(map[string]string{
		"MEAS:VOLT?": "+1.23450E+01\r",
		"OUTP?":      "1",
		"BAD?":       "n/a",
	}))
	dev, err := NewDevice(f, WithSafeVariants(false))
	require.NoError(err)

	v, err := dev.AskFloat(ctx, "MEAS:VOLT?")
	require.NoError(err)
	require.InDelta(12.345, v, 1e-9)

	on, err := dev.AskBool(ctx, "OUTP?")
	require.NoError(err)
	require.True(on)

	_, err = dev.AskFloat(ctx, "BAD?")
	require.True(IsFormatError(err))
	_, err = dev.AskInt(ctx, "BAD?")
	require.True(IsFormatError(err))
}

func TestDevice_GetErrorAbortClose(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := newFakeInstrument(nil)
	f.pushErrors(`-113,"Undefined header"`)
	dev, err := NewDevice(f)
	require.NoError(err)

	code, msg, err := dev.GetError(ctx)
	require.NoError(err)
	require.Equal(-113, code)
	require.Equal("Undefined header", msg)

	require.NoError(dev.Abort(ctx))
	require.Equal(1, f.abortCount())
	require.NoError(dev.Close())
}
