// Package prologix drives a Prologix GPIB-USB controller as a gpib.Bus.
//
// The controller is a serial device speaking two vocabularies on one line:
// lines starting with "++" are controller commands, anything else is passed
// to the addressed instrument. Device responses are only read when asked for
// with "++read eoi", so the bus never receives unsolicited device output.
//
// SCPI text starting with "++" is rejected, and '+' and ESC bytes inside
// device text are escaped, so the two vocabularies never mix.
//
// Usage:
//
//	cfg, err := prologix.NewConfig("/dev/ttyUSB0")
//	if err != nil {
//		// handle error
//	}
//	bus, err := prologix.Open(ctx, cfg)
//	if err != nil {
//		// handle error
//	}
//	defer bus.Close()
//
//	dmm, err := bus.DeviceTransport(gpib.Primary(22))
package prologix
