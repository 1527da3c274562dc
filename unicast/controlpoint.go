package unicast

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/limits"
)

// Operation is the per-ASE parameter block of an ASE Control Point write.
// Only the fields of the PDU's opcode are encoded.
type Operation struct {
	ASEID uint8

	// Config Codec
	TargetLatency uint8
	TargetPHY     uint8
	Codec         *codec.Config // identifier and configuration entries

	// Config QoS
	CIGID uint8
	CISID uint8
	QoS   codec.QoS

	// Enable and Update Metadata
	Meta []codec.LTV
}

const (
	cpHeaderSize      = 2
	configQoSSize     = 16
	configCodecPrefix = 3 + codec.IDSize + 1
)

// EncodeControlPoint builds an ASE Control Point PDU.
//
// Wire format:
//
//	[OPCODE(1)][NUM_ASES(1)] then per ASE:
//	  Config Codec:     [ASE_ID(1)][TARGET_LATENCY(1)][TARGET_PHY(1)][CODEC_ID(5)][CC_LEN(1)][CC]
//	  Config QoS:       [ASE_ID(1)][CIG(1)][CIS(1)][INTERVAL(3)][FRAMING(1)][PHY(1)][SDU(2)][RTN(1)][LATENCY(2)][PD(3)]
//	  Enable, Metadata: [ASE_ID(1)][META_LEN(1)][META]
//	  others:           [ASE_ID(1)]
//
// Multi-byte fields are little endian.
func EncodeControlPoint(op bap.Opcode, ops []Operation) ([]byte, error) {
	if op < bap.OpConfigCodec || op > bap.OpRelease {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(op))
	}
	if len(ops) == 0 || len(ops) > 0xFE {
		return nil, fmt.Errorf("%w: %d ASEs", ErrMalformedPDU, len(ops))
	}

	buf := make([]byte, cpHeaderSize, cpHeaderSize+len(ops)*configQoSSize)
	buf[0] = byte(op)
	buf[1] = byte(len(ops))

	for i := range ops {
		o := &ops[i]
		buf = append(buf, o.ASEID)
		switch op {
		case bap.OpConfigCodec:
			if o.Codec == nil {
				return nil, fmt.Errorf("%w: ASE %d has no codec", ErrMalformedPDU, o.ASEID)
			}
			cc, err := o.Codec.EncodeData()
			if err != nil {
				return nil, err
			}
			buf = append(buf, o.TargetLatency, o.TargetPHY)
			buf = o.Codec.ID.Append(buf)
			buf = append(buf, byte(len(cc)))
			buf = append(buf, cc...)
		case bap.OpConfigQoS:
			buf = append(buf, o.CIGID, o.CISID)
			buf = codec.AppendUint24(buf, o.QoS.Interval)
			buf = append(buf, byte(o.QoS.Framing), byte(o.QoS.PHY))
			buf = codec.AppendUint16(buf, o.QoS.SDU)
			buf = append(buf, o.QoS.RTN)
			buf = codec.AppendUint16(buf, o.QoS.Latency)
			buf = codec.AppendUint24(buf, o.QoS.PD)
		case bap.OpEnable, bap.OpUpdateMetadata:
			meta, err := codec.EncodeLTV(o.Meta)
			if err != nil {
				return nil, err
			}
			buf = append(buf, byte(len(meta)))
			buf = append(buf, meta...)
		}
	}
	return buf, nil
}

// ParseControlPoint decodes an ASE Control Point PDU.
func ParseControlPoint(data []byte) (bap.Opcode, []Operation, error) {
	if len(data) < cpHeaderSize {
		return 0, nil, fmt.Errorf("%w: control point of %d bytes", ErrMalformedPDU, len(data))
	}
	op := bap.Opcode(data[0])
	if op < bap.OpConfigCodec || op > bap.OpRelease {
		return op, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, data[0])
	}
	count := int(data[1])
	if count == 0 {
		return op, nil, fmt.Errorf("%w: zero ASEs", ErrMalformedPDU)
	}

	ops := make([]Operation, 0, count)
	rest := data[cpHeaderSize:]
	for i := 0; i < count; i++ {
		var o Operation
		var err error
		if o, rest, err = parseOperation(op, rest); err != nil {
			return op, nil, err
		}
		ops = append(ops, o)
	}
	if len(rest) != 0 {
		return op, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPDU, len(rest))
	}
	return op, ops, nil
}

func parseOperation(op bap.Opcode, b []byte) (Operation, []byte, error) {
	var o Operation
	if len(b) < 1 {
		return o, nil, fmt.Errorf("%w: missing ASE id", ErrMalformedPDU)
	}
	o.ASEID = b[0]
	b = b[1:]

	switch op {
	case bap.OpConfigCodec:
		if len(b) < configCodecPrefix-1 {
			return o, nil, fmt.Errorf("%w: short config codec", ErrMalformedPDU)
		}
		o.TargetLatency, o.TargetPHY = b[0], b[1]
		id, err := codec.ParseID(b[2:])
		if err != nil {
			return o, nil, err
		}
		ccLen := int(b[2+codec.IDSize])
		b = b[3+codec.IDSize:]
		if len(b) < ccLen {
			return o, nil, fmt.Errorf("%w: codec configuration overruns PDU", ErrMalformedPDU)
		}
		data, err := codec.DecodeLTV(b[:ccLen], limits.MaxCodecDataEntries)
		if err != nil {
			return o, nil, err
		}
		o.Codec = &codec.Config{ID: id, Data: data}
		b = b[ccLen:]
	case bap.OpConfigQoS:
		if len(b) < configQoSSize-1 {
			return o, nil, fmt.Errorf("%w: short config QoS", ErrMalformedPDU)
		}
		o.CIGID, o.CISID = b[0], b[1]
		o.QoS = codec.QoS{
			Interval: codec.Uint24(b[2:5]),
			Framing:  codec.Framing(b[5]),
			PHY:      codec.PHY(b[6]),
			SDU:      binary.LittleEndian.Uint16(b[7:9]),
			RTN:      b[9],
			Latency:  binary.LittleEndian.Uint16(b[10:12]),
			PD:       codec.Uint24(b[12:15]),
		}
		b = b[15:]
	case bap.OpEnable, bap.OpUpdateMetadata:
		meta, rest, err := parseMeta(b)
		if err != nil {
			return o, nil, err
		}
		o.Meta = meta
		b = rest
	}
	return o, b, nil
}

// parseMeta reads a [LEN(1)][LTV] block.
func parseMeta(b []byte) ([]codec.LTV, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("%w: missing metadata length", ErrMalformedPDU)
	}
	n := int(b[0])
	b = b[1:]
	if len(b) < n {
		return nil, nil, fmt.Errorf("%w: metadata overruns PDU", ErrMalformedPDU)
	}
	meta, err := codec.DecodeLTV(b[:n], limits.MaxCodecMetaEntries)
	if err != nil {
		return nil, nil, err
	}
	return meta, b[n:], nil
}

// ResponseCode is an ASE Control Point response code.
type ResponseCode uint8

const (
	RspSuccess                ResponseCode = 0x00
	RspUnsupportedOpcode      ResponseCode = 0x01
	RspInvalidLength          ResponseCode = 0x02
	RspInvalidASEID           ResponseCode = 0x03
	RspInvalidTransition      ResponseCode = 0x04
	RspInvalidDirection       ResponseCode = 0x05
	RspUnsupportedCapability  ResponseCode = 0x06
	RspUnsupportedConfigValue ResponseCode = 0x07
	RspRejectedConfigValue    ResponseCode = 0x08
	RspInvalidConfigValue     ResponseCode = 0x09
	RspUnsupportedMetadata    ResponseCode = 0x0A
	RspRejectedMetadata       ResponseCode = 0x0B
	RspInvalidMetadata        ResponseCode = 0x0C
	RspInsufficientResources  ResponseCode = 0x0D
	RspUnspecifiedError       ResponseCode = 0x0E
)

var responseCodeNames = map[ResponseCode]string{
	RspSuccess:                "success",
	RspUnsupportedOpcode:      "unsupported opcode",
	RspInvalidLength:          "invalid length",
	RspInvalidASEID:           "invalid ASE id",
	RspInvalidTransition:      "invalid ASE state machine transition",
	RspInvalidDirection:       "invalid ASE direction",
	RspUnsupportedCapability:  "unsupported audio capabilities",
	RspUnsupportedConfigValue: "unsupported configuration parameter value",
	RspRejectedConfigValue:    "rejected configuration parameter value",
	RspInvalidConfigValue:     "invalid configuration parameter value",
	RspUnsupportedMetadata:    "unsupported metadata",
	RspRejectedMetadata:       "rejected metadata",
	RspInvalidMetadata:        "invalid metadata",
	RspInsufficientResources:  "insufficient resources",
	RspUnspecifiedError:       "unspecified error",
}

// String implements fmt.Stringer.
func (c ResponseCode) String() string {
	if name, ok := responseCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("response(0x%02x)", uint8(c))
}

// ResponseEntry is the result of one ASE in a control point response.
type ResponseEntry struct {
	ASEID  uint8
	Code   ResponseCode
	Reason uint8
}

// Response is an ASE Control Point notification.
//
// Wire format:
//
//	[OPCODE(1)][NUM_ASES(1)] then per ASE [ASE_ID(1)][CODE(1)][REASON(1)]
//
// NUM_ASES is 0xFF when the whole PDU was rejected for an unsupported
// opcode or invalid length; a single entry with ASE_ID 0 follows.
type Response struct {
	Op      bap.Opcode
	Entries []ResponseEntry
}

const responseWholePDU = 0xFF

// ParseResponse decodes an ASE Control Point notification.
func ParseResponse(data []byte) (*Response, error) {
	if len(data) < cpHeaderSize {
		return nil, fmt.Errorf("%w: response of %d bytes", ErrMalformedPDU, len(data))
	}
	count := int(data[1])
	if count == responseWholePDU {
		count = 1
	}
	if len(data) != cpHeaderSize+3*count {
		return nil, fmt.Errorf("%w: response of %d bytes for %d ASEs", ErrMalformedPDU, len(data), count)
	}
	r := &Response{Op: bap.Opcode(data[0]), Entries: make([]ResponseEntry, count)}
	for i := range r.Entries {
		e := data[cpHeaderSize+3*i:]
		r.Entries[i] = ResponseEntry{ASEID: e[0], Code: ResponseCode(e[1]), Reason: e[2]}
	}
	return r, nil
}

// Append encodes the response onto dst.
func (r *Response) Append(dst []byte) []byte {
	count := byte(len(r.Entries))
	if len(r.Entries) == 1 && r.Entries[0].ASEID == 0 &&
		(r.Entries[0].Code == RspUnsupportedOpcode || r.Entries[0].Code == RspInvalidLength) {
		count = responseWholePDU
	}
	dst = append(dst, byte(r.Op), count)
	for _, e := range r.Entries {
		dst = append(dst, e.ASEID, byte(e.Code), e.Reason)
	}
	return dst
}
