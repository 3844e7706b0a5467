// Package tcp implements a transport.Transport over a raw TCP socket, as
// offered by LAN instruments on port 5025.
//
// Every write is preceded by a short pacing delay; some instruments drop
// commands that arrive back to back. AbortCommand is a no-op because a raw
// socket has no cheap device-clear equivalent.
package tcp
