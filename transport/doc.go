// Package transport defines the link contract shared by every go-scpi transport
// and the machinery the concrete links (rs232, tcp, prologix) are built from.
//
// A transport owns one physical link exclusively. A background reader frames
// incoming bytes into messages and hands each one to the Dispatcher, which
// delivers it to the single armed Expectation, or to the unsolicited handler,
// or drops it with a log line. A message is never carried over to a later
// expectation.
//
// # Exchange lock
//
// Instruments are half-duplex: one command yields at most one response. The
// exchange Lock returned by [Transport.ExchangeLock] establishes who is
// expecting the next incoming message. The data-path methods of a Transport
// (SendCommand, GetResponse, Query, AbortCommand) assume the caller holds it;
// the scpi.Protocol acquires it around every exchange.
package transport
