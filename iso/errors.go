package iso

import "errors"

// Binding errors.
var (
	// ErrDirectionInUse indicates the requested half is owned by another endpoint.
	ErrDirectionInUse = errors.New("binding direction owned by another endpoint")

	// ErrNotOwner indicates the caller does not own the binding half it addresses.
	ErrNotOwner = errors.New("caller does not own binding direction")

	// ErrGroupMismatch indicates an owner from a different group.
	ErrGroupMismatch = errors.New("binding belongs to another group")

	// ErrBindingInUse indicates a binding that still has owners.
	ErrBindingInUse = errors.New("binding still has owners")
)

// Channel errors.
var (
	// ErrNotConnected indicates a send on a channel that is not connected.
	ErrNotConnected = errors.New("channel not connected")

	// ErrNoTransport indicates the pool was created without a transport.
	ErrNoTransport = errors.New("no isochronous transport")
)
