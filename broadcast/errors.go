package broadcast

import (
	"errors"
	"fmt"

	"github.com/opd-ai/leaudio/limits"
)

// Sentinel errors for broadcast package operations.

// Create errors.
var (
	// ErrNoSubgroups indicates create parameters without any subgroup.
	ErrNoSubgroups = errors.New("broadcast source needs at least one subgroup")

	// ErrEmptySubgroup indicates a subgroup without any stream.
	ErrEmptySubgroup = errors.New("subgroup has no streams")

	// ErrTooManySubgroups indicates more subgroups than a source holds.
	ErrTooManySubgroups = fmt.Errorf("too many subgroups: %w", limits.ErrCapacityExceeded)

	// ErrTooManyBIS indicates more streams across all subgroups than a BIG holds.
	ErrTooManyBIS = fmt.Errorf("too many BIS: %w", limits.ErrCapacityExceeded)

	// ErrStreamGrouped indicates a stream that already belongs to a group.
	ErrStreamGrouped = errors.New("stream already belongs to a group")

	// ErrIDExhausted indicates no unused broadcast id was drawn.
	ErrIDExhausted = errors.New("no unused broadcast id")
)

// Lifecycle errors.
var (
	// ErrBIGCreate indicates the transport refused to create the BIG.
	ErrBIGCreate = errors.New("BIG creation failed")

	// ErrBIGTerminate indicates the transport refused to terminate the BIG.
	ErrBIGTerminate = errors.New("BIG termination failed")

	// ErrNotMember indicates a stream that belongs to no broadcast source.
	ErrNotMember = errors.New("stream is not a broadcast source member")
)

// BASE errors.
var (
	// ErrBufferTooSmall indicates a BASE that does not fit the destination buffer.
	ErrBufferTooSmall = errors.New("buffer too small for BASE")

	// ErrMalformedBASE indicates a BASE that cannot be parsed.
	ErrMalformedBASE = errors.New("malformed BASE")
)
