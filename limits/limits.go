package limits

import (
	"errors"
	"fmt"
)

// Protocol ceilings.
const (
	// MaxLTVValueLen is the largest LTV value. The length byte counts the
	// type byte as well, so 255 - 1 bytes remain for the value.
	MaxLTVValueLen = 254

	// MaxLTVBlockLen is the largest LTV block addressable by a one byte
	// length prefix (codec configuration, metadata, BIS data).
	MaxLTVBlockLen = 255

	// MaxSDU is the largest ISO SDU size (12 bits).
	MaxSDU = 0x0FFF

	// MaxBISPerBIG is the BIS count ceiling of a single BIG.
	MaxBISPerBIG = 31

	// MaxCISPerCIG is the CIS count ceiling of a single CIG.
	MaxCISPerCIG = 31

	// MaxBroadcastID is the largest 24-bit broadcast identifier.
	MaxBroadcastID = 0xFFFFFF

	// BroadcastCodeSize is the size of a BIG broadcast code.
	BroadcastCodeSize = 16
)

// Pool ceilings.
const (
	// MaxCodecDataEntries bounds the codec configuration LTV entries of one codec.Config.
	MaxCodecDataEntries = 8

	// MaxCodecMetaEntries bounds the metadata LTV entries of one codec.Config.
	MaxCodecMetaEntries = 8

	// MaxASEsPerDirection bounds the sink (or source) ASEs tracked per connection.
	MaxASEsPerDirection = 8

	// MaxConnections bounds the connections a unicast client tracks.
	MaxConnections = 8

	// MaxUnicastGroups bounds the concurrently allocated unicast groups.
	MaxUnicastGroups = 4

	// MaxGroupStreams bounds the streams of one unicast group.
	MaxGroupStreams = 2 * MaxCISPerCIG

	// MaxBroadcastSources bounds the concurrently allocated broadcast sources.
	MaxBroadcastSources = 4

	// MaxSubgroups bounds the subgroups of one broadcast source.
	MaxSubgroups = 8

	// MaxISOChannels bounds the ISO bindings allocated across all owners.
	MaxISOChannels = 64

	// MaxPACRecords bounds the PAC records accepted per characteristic.
	MaxPACRecords = 16
)

// Defaults used when no option overrides a pool size.
const (
	DefaultASEsPerDirection = 2
	DefaultConnections      = 2
	DefaultUnicastGroups    = 2
	DefaultGroupStreams     = 4
	DefaultBroadcastSources = 1
	DefaultSubgroups        = 2
	DefaultBISPerSource     = 4
	DefaultISOChannels      = 8
)

var (
	// ErrCapacityExceeded indicates a bounded collection would grow past its capacity
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrValueTooLarge indicates a single value exceeds its encoding limit
	ErrValueTooLarge = errors.New("value too large")
)

// ValidateEntryCount checks that count entries fit a collection of size max.
func ValidateEntryCount(count, max int) error {
	if count > max {
		return fmt.Errorf("%w: %d entries exceed limit %d", ErrCapacityExceeded, count, max)
	}
	return nil
}

// ValidateLTVValue checks that an LTV value can be encoded behind a one byte length.
func ValidateLTVValue(value []byte) error {
	if len(value) > MaxLTVValueLen {
		return fmt.Errorf("%w: LTV value size %d exceeds limit %d", ErrValueTooLarge, len(value), MaxLTVValueLen)
	}
	return nil
}

// ValidateLTVBlock checks that an encoded LTV block fits a one byte length prefix.
func ValidateLTVBlock(size int) error {
	if size > MaxLTVBlockLen {
		return fmt.Errorf("%w: LTV block size %d exceeds limit %d", ErrValueTooLarge, size, MaxLTVBlockLen)
	}
	return nil
}

// ValidatePoolSize checks that a configured pool size is positive and within max.
func ValidatePoolSize(name string, size, max int) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, size)
	}
	if size > max {
		return fmt.Errorf("%w: %s %d exceeds limit %d", ErrCapacityExceeded, name, size, max)
	}
	return nil
}
