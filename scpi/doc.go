// Package scpi implements the SCPI protocol engine on top of a
// transport.Transport, and a Device façade offering the IEEE-488.2 common
// commands.
//
// # Exchanges
//
// Protocol.Command sends a line, Protocol.Ask sends a line and waits for one
// reply. Each exchange holds the transport's exchange lock from send to
// reply and is bounded by a timeout (one second unless WithTimeout says
// otherwise).
//
// When the timeout expires the protocol reads the instrument's error queue
// with SYST:ERR? to tell a rejected command from a slow one: a non-zero code
// yields a *CommandError, a zero code a *TimeoutError. It then asks the
// transport to abort, once. Both steps can be disabled per call.
//
// Cancelling the caller's context is not a timeout: the exchange returns
// ctx.Err() without querying or aborting anything.
//
// # Safe variants
//
// SafeCommand and SafeAsk read the error queue after every exchange and turn
// a non-zero entry into a *CommandError. A Device uses them by default.
package scpi
