package unicast

import "errors"

// Sentinel errors for unicast package operations.

// Wire errors.
var (
	// ErrMalformedPDU indicates a control point, status or PAC value that cannot be parsed.
	ErrMalformedPDU = errors.New("malformed PDU")

	// ErrUnknownOpcode indicates a control point opcode outside the ASCS range.
	ErrUnknownOpcode = errors.New("unknown control point opcode")
)

// Discovery errors.
var (
	// ErrAlreadyDiscovered indicates Discover on a connection that is already tracked.
	ErrAlreadyDiscovered = errors.New("connection already discovered")

	// ErrUnknownConnection indicates a connection that was never discovered.
	ErrUnknownConnection = errors.New("unknown connection")

	// ErrNoEndpoints indicates a server exposing no ASE characteristic.
	ErrNoEndpoints = errors.New("remote exposes no ASE")

	// ErrNoControlPoint indicates a server without exactly one ASE Control Point.
	ErrNoControlPoint = errors.New("remote exposes no ASE control point")

	// ErrTooManyASEs indicates more ASEs of one direction than the pool holds.
	ErrTooManyASEs = errors.New("too many ASEs")
)

// Operation errors.
var (
	// ErrWrongEndpointKind indicates a broadcast endpoint handed to the unicast client.
	ErrWrongEndpointKind = errors.New("endpoint is not a unicast client ASE")

	// ErrNotInGroup indicates a stream that is not a member of the addressed group.
	ErrNotInGroup = errors.New("stream not in unicast group")

	// ErrNoStreams indicates a Config QoS that targets no stream on the connection.
	ErrNoStreams = errors.New("no configured streams in group for connection")
)

// Group errors.
var (
	// ErrGroupLocked indicates a group mutation after channel establishment began.
	ErrGroupLocked = errors.New("unicast group channels are active")

	// ErrGroupInUse indicates a group whose members still hold QoS configured endpoints.
	ErrGroupInUse = errors.New("unicast group members still configured")

	// ErrStreamInGroup indicates a stream that already belongs to a group.
	ErrStreamInGroup = errors.New("stream already in a group")

	// ErrTooManyStreams indicates a group would exceed its stream capacity.
	ErrTooManyStreams = errors.New("too many streams in unicast group")

	// ErrGroupCreate indicates the transport failed to create or reconfigure the CIG.
	ErrGroupCreate = errors.New("failed to create connected isochronous group")
)
