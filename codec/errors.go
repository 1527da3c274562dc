package codec

import (
	"errors"
	"fmt"

	"github.com/opd-ai/leaudio/limits"
)

// LTV errors.
var (
	// ErrTooManyEntries indicates an LTV sequence would exceed its entry capacity.
	ErrTooManyEntries = fmt.Errorf("too many LTV entries: %w", limits.ErrCapacityExceeded)

	// ErrValueTooLarge indicates an LTV value or block exceeds its one byte length.
	ErrValueTooLarge = fmt.Errorf("LTV value too large: %w", limits.ErrValueTooLarge)

	// ErrMalformedLTV indicates an LTV block whose lengths do not add up.
	ErrMalformedLTV = errors.New("malformed LTV data")

	// ErrShortBuffer indicates encoded data ended before a fixed size field.
	ErrShortBuffer = errors.New("buffer too short")
)

// QoS errors.
var (
	// ErrInvalidQoS indicates a QoS parameter outside its protocol range.
	ErrInvalidQoS = errors.New("invalid QoS")

	// ErrFramingUnsupported indicates unframed PDUs were requested from a peer that does not support them.
	ErrFramingUnsupported = errors.New("unframed ISOAL PDUs not supported by peer")

	// ErrLatencyOutOfRange indicates a transport latency above the peer's preferred maximum.
	ErrLatencyOutOfRange = errors.New("transport latency above peer maximum")

	// ErrPresentationDelayOutOfRange indicates a presentation delay outside the peer's supported range.
	ErrPresentationDelayOutOfRange = errors.New("presentation delay outside peer range")
)
