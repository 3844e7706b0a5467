// Package rs232 implements a transport.Transport over a serial port.
//
// Lines are written with a CRLF terminator and responses are framed on CRLF.
// The instrument sends responses without being asked to, so a background
// reader hands every line to the transport's dispatcher. AbortCommand sends a
// serial break, which SCPI instruments such as the HP 6632B treat as device
// clear: input and output buffers are cleared, status registers and the error
// queue are kept.
//
// Usage:
//
//	cfg, err := rs232.NewConfig("/dev/ttyUSB0", rs232.WithBaudRate(9600))
//	if err != nil {
//		// handle error
//	}
//	t, err := rs232.Open(cfg)
//	if err != nil {
//		// handle error
//	}
//	defer t.Close()
package rs232
