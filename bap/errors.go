package bap

import "errors"

// Sentinel errors for bap package operations.

// State machine errors.
var (
	// ErrUnexpectedTransition indicates a state change outside the ASE state graph.
	// The new state has been applied regardless.
	ErrUnexpectedTransition = errors.New("unexpected ASE state transition")

	// ErrInvalidState indicates an operation not valid from the endpoint's current state.
	ErrInvalidState = errors.New("operation not valid in current endpoint state")
)

// Stream errors.
var (
	// ErrNotAttached indicates a stream without an endpoint.
	ErrNotAttached = errors.New("stream not attached to an endpoint")

	// ErrStreamAttached indicates a stream already attached to a different endpoint.
	ErrStreamAttached = errors.New("stream already attached to another endpoint")

	// ErrEndpointInUse indicates an endpoint already holding a different stream.
	ErrEndpointInUse = errors.New("endpoint already holds another stream")

	// ErrNotReady indicates a send on a stream that is not streaming.
	ErrNotReady = errors.New("stream not ready")

	// ErrInvalidArgument indicates a nil or malformed argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Controller errors.
var (
	// ErrNoController indicates an endpoint created without a controller.
	ErrNoController = errors.New("endpoint has no controller")

	// ErrNotSupported indicates a request the endpoint's controller does not handle.
	ErrNotSupported = errors.New("operation not supported for this endpoint kind")
)

// Pool errors.
var (
	// ErrEndpointExists indicates an endpoint with the same direction and id is already allocated.
	ErrEndpointExists = errors.New("endpoint already allocated")
)
