package unicast

import (
	"fmt"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/limits"
)

// PAC is one Published Audio Capability record.
type PAC struct {
	ID           codec.ID
	Capabilities []codec.LTV
	Meta         []codec.LTV
}

// Capabilities summarizes what a discovered server offers.
type Capabilities struct {
	SinkASEs   int
	SourceASEs int
	Sink       []PAC
	Source     []PAC
}

// ParsePACRecords decodes a Sink or Source PAC characteristic value.
//
// Wire format:
//
//	[NUM_RECORDS(1)] then per record
//	[CODEC_ID(5)][CAP_LEN(1)][CAPABILITIES][META_LEN(1)][META]
func ParsePACRecords(data []byte) ([]PAC, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty PAC value", ErrMalformedPDU)
	}
	count := int(data[0])
	if err := limits.ValidateEntryCount(count, limits.MaxPACRecords); err != nil {
		return nil, fmt.Errorf("PAC records: %w", err)
	}

	records := make([]PAC, 0, count)
	b := data[1:]
	for i := 0; i < count; i++ {
		if len(b) < codec.IDSize+1 {
			return nil, fmt.Errorf("%w: short PAC record %d", ErrMalformedPDU, i)
		}
		id, err := codec.ParseID(b)
		if err != nil {
			return nil, err
		}
		capLen := int(b[codec.IDSize])
		b = b[codec.IDSize+1:]
		if len(b) < capLen {
			return nil, fmt.Errorf("%w: PAC record %d capabilities overrun", ErrMalformedPDU, i)
		}
		caps, err := codec.DecodeLTV(b[:capLen], limits.MaxCodecDataEntries)
		if err != nil {
			return nil, err
		}
		meta, rest, err := parseMeta(b[capLen:])
		if err != nil {
			return nil, err
		}
		b = rest
		records = append(records, PAC{ID: id, Capabilities: caps, Meta: meta})
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing PAC bytes", ErrMalformedPDU, len(b))
	}
	return records, nil
}

// AppendPACRecords encodes records onto dst.
func AppendPACRecords(dst []byte, records []PAC) ([]byte, error) {
	if err := limits.ValidateEntryCount(len(records), limits.MaxPACRecords); err != nil {
		return nil, fmt.Errorf("PAC records: %w", err)
	}
	dst = append(dst, byte(len(records)))
	for _, r := range records {
		caps, err := codec.EncodeLTV(r.Capabilities)
		if err != nil {
			return nil, err
		}
		meta, err := codec.EncodeLTV(r.Meta)
		if err != nil {
			return nil, err
		}
		dst = r.ID.Append(dst)
		dst = append(dst, byte(len(caps)))
		dst = append(dst, caps...)
		dst = append(dst, byte(len(meta)))
		dst = append(dst, meta...)
	}
	return dst, nil
}
