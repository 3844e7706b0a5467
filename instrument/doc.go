// Package instrument provides capability groups shared by many SCPI
// instruments and device profiles built from them.
//
// Capabilities are composed rather than inherited: Meter and Supply each
// delegate to a *scpi.Device, and a profile such as HP6632B embeds the
// groups its hardware supports next to the device itself.
//
//	dev, err := instrument.OpenHP6632B(cfg)
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	if err := dev.SetVoltage(ctx, 5000, ""); err != nil {
//		return err
//	}
//	amps, err := dev.MeasureCurrentAutorange(ctx, "")
package instrument
