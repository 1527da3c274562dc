package broadcast

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/limits"
	"github.com/opd-ai/leaudio/pool"
)

// BASEUUID is the Basic Audio Announcement service UUID that opens a BASE.
const BASEUUID = uint16(interfaces.UUIDBasicAudioAnnouncement)

const (
	baseHeaderSize   = 2 + 3 + 1
	baseSubgroupSize = 1 + codec.IDSize
)

// BASE is a decoded Broadcast Audio Source Endpoint structure.
type BASE struct {
	PresentationDelay uint32
	Subgroups         []BASESubgroup
}

// BASESubgroup is one subgroup of a BASE.
type BASESubgroup struct {
	Codec codec.ID
	Data  []codec.LTV
	Meta  []codec.LTV
	BIS   []BASEBIS
}

// BASEBIS is one BIS of a BASE subgroup. Data holds only the BIS-specific
// entries.
type BASEBIS struct {
	Index uint8
	Data  []codec.LTV
}

// baseWriter fills a fixed buffer and records the first field that does
// not fit.
type baseWriter struct {
	buf []byte
	n   int
	err error
}

func (w *baseWriter) put(b ...byte) {
	if w.err != nil {
		return
	}
	if len(w.buf)-w.n < len(b) {
		w.err = fmt.Errorf("%w: need %d bytes at offset %d, %d available",
			ErrBufferTooSmall, len(b), w.n, len(w.buf)-w.n)
		return
	}
	w.n += copy(w.buf[w.n:], b)
}

// putLTV writes a length-prefixed LTV block.
func (w *baseWriter) putLTV(entries []codec.LTV) {
	if w.err != nil {
		return
	}
	block, err := codec.EncodeLTV(entries)
	if err != nil {
		w.err = err
		return
	}
	w.put(byte(len(block)))
	w.put(block...)
}

// BASE writes the source's BASE into buf and returns the number of bytes
// written. buf is never grown: when a field does not fit, BASE returns 0
// and an error wrapping ErrBufferTooSmall and buf holds no usable BASE.
//
// Wire format:
//
//	[UUID 0x1851(2 LE)][PD(3 LE)][NUM_SUBGROUPS(1)] then per subgroup
//	  [NUM_BIS(1)][CODEC_ID(5)][CC_LEN(1)][CC][META_LEN(1)][META] then per BIS
//	    [BIS_INDEX(1)][BIS_CC_LEN(1)][BIS_CC]
//
// BIS indexes start at 1 and run across all subgroups of the source.
func (m *Manager) BASE(h pool.Handle, buf []byte) (int, error) {
	src, err := m.source(h)
	if err != nil {
		return 0, err
	}

	w := &baseWriter{buf: buf}
	var hdr [baseHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], BASEUUID)
	codec.PutUint24(hdr[2:5], src.qos.PD)
	hdr[5] = byte(len(src.subgroups))
	w.put(hdr[:]...)

	for i := range src.subgroups {
		sg := &src.subgroups[i]
		w.put(byte(len(sg.members)))
		w.put(sg.codec.ID.Append(make([]byte, 0, codec.IDSize))...)
		w.putLTV(sg.codec.Data)
		w.putLTV(sg.codec.Meta)
		for j := range sg.members {
			mb := &sg.members[j]
			w.put(mb.ep.ID())
			w.putLTV(mb.data)
		}
	}
	if w.err != nil {
		return 0, w.err
	}
	return w.n, nil
}

// BASELen returns the size of the source's BASE.
func (m *Manager) BASELen(h pool.Handle) (int, error) {
	src, err := m.source(h)
	if err != nil {
		return 0, err
	}
	n := baseHeaderSize
	for i := range src.subgroups {
		sg := &src.subgroups[i]
		n += baseSubgroupSize + 1 + codec.EncodedLen(sg.codec.Data) + 1 + codec.EncodedLen(sg.codec.Meta)
		for j := range sg.members {
			n += 2 + codec.EncodedLen(sg.members[j].data)
		}
	}
	return n, nil
}

// ParseBASE decodes a BASE as written by Manager.BASE.
func ParseBASE(data []byte) (*BASE, error) {
	if len(data) < baseHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedBASE, len(data))
	}
	if uuid := binary.LittleEndian.Uint16(data[0:2]); uuid != BASEUUID {
		return nil, fmt.Errorf("%w: uuid 0x%04x", ErrMalformedBASE, uuid)
	}
	base := &BASE{PresentationDelay: codec.Uint24(data[2:5])}
	count := int(data[5])
	if count == 0 {
		return nil, fmt.Errorf("%w: no subgroups", ErrMalformedBASE)
	}
	b := data[baseHeaderSize:]

	for i := 0; i < count; i++ {
		if len(b) < baseSubgroupSize {
			return nil, fmt.Errorf("%w: short subgroup %d", ErrMalformedBASE, i)
		}
		var sg BASESubgroup
		numBIS := int(b[0])
		if numBIS == 0 {
			return nil, fmt.Errorf("%w: subgroup %d has no BIS", ErrMalformedBASE, i)
		}
		id, err := codec.ParseID(b[1:])
		if err != nil {
			return nil, err
		}
		sg.Codec = id
		b = b[baseSubgroupSize:]

		if sg.Data, b, err = readLTV(b, limits.MaxCodecDataEntries); err != nil {
			return nil, fmt.Errorf("subgroup %d codec configuration: %w", i, err)
		}
		if sg.Meta, b, err = readLTV(b, limits.MaxCodecMetaEntries); err != nil {
			return nil, fmt.Errorf("subgroup %d metadata: %w", i, err)
		}
		for j := 0; j < numBIS; j++ {
			if len(b) < 1 {
				return nil, fmt.Errorf("%w: subgroup %d BIS %d missing", ErrMalformedBASE, i, j)
			}
			bis := BASEBIS{Index: b[0]}
			if bis.Data, b, err = readLTV(b[1:], limits.MaxCodecDataEntries); err != nil {
				return nil, fmt.Errorf("subgroup %d BIS %d: %w", i, j, err)
			}
			sg.BIS = append(sg.BIS, bis)
		}
		base.Subgroups = append(base.Subgroups, sg)
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedBASE, len(b))
	}
	return base, nil
}

func readLTV(b []byte, max int) ([]codec.LTV, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("%w: missing length", ErrMalformedBASE)
	}
	n := int(b[0])
	if len(b)-1 < n {
		return nil, nil, fmt.Errorf("%w: block of %d bytes overruns BASE", ErrMalformedBASE, n)
	}
	entries, err := codec.DecodeLTV(b[1:1+n], max)
	if err != nil {
		return nil, nil, err
	}
	return entries, b[1+n:], nil
}
