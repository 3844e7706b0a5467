// Package gpib models an IEEE-488 bus behind a controller and the per-device
// transports multiplexed on it.
//
// A Bus is one physical link shared by up to 31 instruments. Only one device
// is addressed at a time, so a DeviceTransport selects its own address
// immediately before every operation. All device transports of a bus share
// the bus's exchange lock: selecting an address and the command that follows
// are never interleaved with another device's exchange.
//
// ScanDevices discovers the instruments present on a bus with serial polls.
package gpib
