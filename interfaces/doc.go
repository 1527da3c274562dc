// Package interfaces defines the contracts between the LE Audio engine and
// the two transports it drives but does not implement.
//
// # Attribute Transport
//
// [GATTClient] is the client side of the attribute protocol: characteristic
// reads by UUID, write-without-response, and notification subscription. The
// unicast client uses it to discover Audio Stream Endpoints and PAC records,
// to write ASE Control Point operations, and to receive ASE status and
// control point notifications.
//
// # Isochronous Transport
//
// [ISOTransport] creates, reconfigures and terminates connected (CIG) and
// broadcast (BIG) isochronous groups, connects and disconnects individual
// channels, and sends SDUs. Asynchronous completions come back through the
// [ISOListener] registered with RegisterListener:
//
//	transport.RegisterListener(isoPool)
//	handle, err := transport.CreateCIG(params)
//
// Implementations must deliver listener and notification callbacks on the
// engine's execution context (or serialize them onto it); the engine holds
// no locks of its own.
//
// The simulation package provides in-memory implementations of both
// contracts for tests and demos.
package interfaces
