package codec

import (
	"fmt"

	"github.com/opd-ai/leaudio/limits"
	"github.com/sirupsen/logrus"
)

// LTV is one length-type-value entry of a codec configuration, capability
// or metadata block.
//
// Wire format:
//
//	[LENGTH(1)][TYPE(1)][VALUE(LENGTH-1)]
//
// LENGTH counts the type byte, so an empty value encodes as length 1.
type LTV struct {
	Type  uint8
	Value []byte
}

// EncodedLen returns the number of bytes e occupies on the wire.
func (e LTV) EncodedLen() int {
	return 2 + len(e.Value)
}

// EncodedLen returns the number of bytes entries occupy on the wire.
func EncodedLen(entries []LTV) int {
	n := 0
	for _, e := range entries {
		n += e.EncodedLen()
	}
	return n
}

// CloneLTV returns a deep copy of entries.
func CloneLTV(entries []LTV) []LTV {
	if entries == nil {
		return nil
	}
	out := make([]LTV, len(entries))
	for i, e := range entries {
		out[i] = LTV{Type: e.Type, Value: append([]byte(nil), e.Value...)}
	}
	return out
}

// AppendLTV appends the wire encoding of entries to dst.
func AppendLTV(dst []byte, entries []LTV) ([]byte, error) {
	for _, e := range entries {
		if err := limits.ValidateLTVValue(e.Value); err != nil {
			return dst, fmt.Errorf("%w: type 0x%02x: %v", ErrValueTooLarge, e.Type, err)
		}
		dst = append(dst, byte(len(e.Value)+1), e.Type)
		dst = append(dst, e.Value...)
	}
	return dst, nil
}

// EncodeLTV encodes entries into a new block. The block must fit behind a
// one byte length prefix.
func EncodeLTV(entries []LTV) ([]byte, error) {
	if err := limits.ValidateLTVBlock(EncodedLen(entries)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValueTooLarge, err)
	}
	return AppendLTV(make([]byte, 0, EncodedLen(entries)), entries)
}

// DecodeLTV decodes an LTV block, keeping entry order. At most max entries
// are accepted; a longer block fails with ErrTooManyEntries.
func DecodeLTV(data []byte, max int) ([]LTV, error) {
	var entries []LTV
	for i := 0; i < len(data); {
		length := int(data[i])
		if length == 0 || i+1+length > len(data) {
			logrus.WithFields(logrus.Fields{
				"function": "DecodeLTV",
				"offset":   i,
				"length":   length,
				"size":     len(data),
			}).Debug("Rejecting malformed LTV entry")
			return nil, fmt.Errorf("%w: entry at offset %d has length %d, %d bytes remain",
				ErrMalformedLTV, i, length, len(data)-i-1)
		}
		if len(entries) == max {
			return nil, fmt.Errorf("%w: more than %d entries", ErrTooManyEntries, max)
		}
		entries = append(entries, LTV{
			Type:  data[i+1],
			Value: append([]byte(nil), data[i+2:i+1+length]...),
		})
		i += 1 + length
	}
	return entries, nil
}

func findLTV(entries []LTV, t uint8) ([]byte, bool) {
	for _, e := range entries {
		if e.Type == t {
			return e.Value, true
		}
	}
	return nil, false
}

// setLTV replaces the first entry of type t or appends a new one.
func setLTV(entries []LTV, t uint8, v []byte, max int) ([]LTV, error) {
	if err := limits.ValidateLTVValue(v); err != nil {
		return entries, fmt.Errorf("%w: type 0x%02x: %v", ErrValueTooLarge, t, err)
	}
	for i := range entries {
		if entries[i].Type == t {
			entries[i].Value = append([]byte(nil), v...)
			return entries, nil
		}
	}
	return addLTV(entries, t, v, max)
}

func addLTV(entries []LTV, t uint8, v []byte, max int) ([]LTV, error) {
	if err := limits.ValidateLTVValue(v); err != nil {
		return entries, fmt.Errorf("%w: type 0x%02x: %v", ErrValueTooLarge, t, err)
	}
	if len(entries) >= max {
		return entries, fmt.Errorf("%w: limit %d", ErrTooManyEntries, max)
	}
	return append(entries, LTV{Type: t, Value: append([]byte(nil), v...)}), nil
}
