package simulation

import "errors"

// Transport errors.
var (
	// ErrUnknownGroup indicates a CIG or BIG handle the transport never created.
	ErrUnknownGroup = errors.New("unknown isochronous group")

	// ErrUnknownChannel indicates a channel that belongs to no group.
	ErrUnknownChannel = errors.New("unknown isochronous channel")

	// ErrChannelInUse indicates a channel already placed in another group.
	ErrChannelInUse = errors.New("channel already belongs to a group")

	// ErrGroupBusy indicates a CIG change while one of its CISes is active.
	ErrGroupBusy = errors.New("group has active channels")

	// ErrNotConnected indicates a send or disconnect on an idle channel.
	ErrNotConnected = errors.New("channel not connected")

	// ErrNoObserver indicates a connect for a connection without a peer.
	ErrNoObserver = errors.New("no peer attached to connection")
)

// Peer errors.
var (
	// ErrUnknownAttribute indicates a GATT access to an unknown handle.
	ErrUnknownAttribute = errors.New("unknown attribute handle")

	// ErrWrongConnection indicates a GATT access for another connection.
	ErrWrongConnection = errors.New("attribute access on foreign connection")
)
