package unicast

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/limits"
)

// Status is a decoded ASE characteristic value.
type Status struct {
	ID     uint8
	State  bap.State
	Params StatusParams // nil for Idle and Releasing
}

// StatusParams is the state specific part of a Status. CodecParams,
// QoSParams and MetadataParams are the only implementations.
type StatusParams interface {
	isStatusParams()
}

// CodecParams accompanies the Codec Configured state.
type CodecParams struct {
	Pref  codec.QoSPreference
	Codec *codec.Config
}

// QoSParams accompanies the QoS Configured state.
type QoSParams struct {
	CIGID uint8
	CISID uint8
	QoS   codec.QoS
}

// MetadataParams accompanies the Enabling, Streaming and Disabling states.
type MetadataParams struct {
	CIGID uint8
	CISID uint8
	Meta  []codec.LTV
}

func (CodecParams) isStatusParams()    {}
func (QoSParams) isStatusParams()      {}
func (MetadataParams) isStatusParams() {}

const (
	statusHeaderSize = 2
	codecStatusFixed = 23
	qosStatusSize    = 15
	metaStatusFixed  = 3

	framingUnframedSupported = 0x00
	framingUnframedNotSupp   = 0x01
)

// ParseStatus decodes an ASE characteristic value.
//
// Wire format:
//
//	[ASE_ID(1)][STATE(1)] then
//	  Codec Configured: [FRAMING(1)][PHY(1)][RTN(1)][LATENCY(2)][PD_MIN(3)][PD_MAX(3)]
//	                    [PREF_PD_MIN(3)][PREF_PD_MAX(3)][CODEC_ID(5)][CC_LEN(1)][CC]
//	  QoS Configured:   [CIG(1)][CIS(1)][INTERVAL(3)][FRAMING(1)][PHY(1)][SDU(2)][RTN(1)][LATENCY(2)][PD(3)]
//	  Enabling, Streaming, Disabling: [CIG(1)][CIS(1)][META_LEN(1)][META]
//
// FRAMING in the Codec Configured block is 0x00 when unframed PDUs are
// supported.
func ParseStatus(data []byte) (*Status, error) {
	if len(data) < statusHeaderSize {
		return nil, fmt.Errorf("%w: status of %d bytes", ErrMalformedPDU, len(data))
	}
	st := &Status{ID: data[0], State: bap.State(data[1])}
	if !st.State.Valid() {
		return nil, fmt.Errorf("%w: state 0x%02x", ErrMalformedPDU, data[1])
	}
	b := data[statusHeaderSize:]

	switch st.State {
	case bap.StateCodecConfigured:
		if len(b) < codecStatusFixed {
			return nil, fmt.Errorf("%w: short codec configured status", ErrMalformedPDU)
		}
		p := CodecParams{Pref: codec.QoSPreference{
			UnframedSupported: b[0] == framingUnframedSupported,
			PHY:               codec.PHY(b[1]),
			RTN:               b[2],
			Latency:           binary.LittleEndian.Uint16(b[3:5]),
			PDMin:             codec.Uint24(b[5:8]),
			PDMax:             codec.Uint24(b[8:11]),
			PrefPDMin:         codec.Uint24(b[11:14]),
			PrefPDMax:         codec.Uint24(b[14:17]),
		}}
		id, err := codec.ParseID(b[17:22])
		if err != nil {
			return nil, err
		}
		ccLen := int(b[22])
		if len(b) != codecStatusFixed+ccLen {
			return nil, fmt.Errorf("%w: codec configuration length %d, %d bytes remain",
				ErrMalformedPDU, ccLen, len(b)-codecStatusFixed)
		}
		data, err := codec.DecodeLTV(b[codecStatusFixed:], limits.MaxCodecDataEntries)
		if err != nil {
			return nil, err
		}
		p.Codec = &codec.Config{ID: id, Data: data}
		st.Params = p
	case bap.StateQosConfigured:
		if len(b) != qosStatusSize {
			return nil, fmt.Errorf("%w: QoS configured status of %d bytes", ErrMalformedPDU, len(b))
		}
		st.Params = QoSParams{
			CIGID: b[0],
			CISID: b[1],
			QoS: codec.QoS{
				Interval: codec.Uint24(b[2:5]),
				Framing:  codec.Framing(b[5]),
				PHY:      codec.PHY(b[6]),
				SDU:      binary.LittleEndian.Uint16(b[7:9]),
				RTN:      b[9],
				Latency:  binary.LittleEndian.Uint16(b[10:12]),
				PD:       codec.Uint24(b[12:15]),
			},
		}
	case bap.StateEnabling, bap.StateStreaming, bap.StateDisabling:
		if len(b) < metaStatusFixed {
			return nil, fmt.Errorf("%w: short metadata status", ErrMalformedPDU)
		}
		meta, rest, err := parseMeta(b[2:])
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPDU, len(rest))
		}
		st.Params = MetadataParams{CIGID: b[0], CISID: b[1], Meta: meta}
	}
	return st, nil
}

// Append encodes the status onto dst. A state that carries parameters must
// have Params of the matching type.
func (s *Status) Append(dst []byte) ([]byte, error) {
	dst = append(dst, s.ID, byte(s.State))

	switch p := s.Params.(type) {
	case nil:
		switch s.State {
		case bap.StateIdle, bap.StateReleasing:
			return dst, nil
		}
		return nil, fmt.Errorf("%w: %s status without parameters", ErrMalformedPDU, s.State)
	case CodecParams:
		if s.State != bap.StateCodecConfigured || p.Codec == nil {
			return nil, fmt.Errorf("%w: codec parameters in %s", ErrMalformedPDU, s.State)
		}
		framing := byte(framingUnframedNotSupp)
		if p.Pref.UnframedSupported {
			framing = framingUnframedSupported
		}
		cc, err := p.Codec.EncodeData()
		if err != nil {
			return nil, err
		}
		dst = append(dst, framing, byte(p.Pref.PHY), p.Pref.RTN)
		dst = codec.AppendUint16(dst, p.Pref.Latency)
		dst = codec.AppendUint24(dst, p.Pref.PDMin)
		dst = codec.AppendUint24(dst, p.Pref.PDMax)
		dst = codec.AppendUint24(dst, p.Pref.PrefPDMin)
		dst = codec.AppendUint24(dst, p.Pref.PrefPDMax)
		dst = p.Codec.ID.Append(dst)
		dst = append(dst, byte(len(cc)))
		return append(dst, cc...), nil
	case QoSParams:
		if s.State != bap.StateQosConfigured {
			return nil, fmt.Errorf("%w: QoS parameters in %s", ErrMalformedPDU, s.State)
		}
		dst = append(dst, p.CIGID, p.CISID)
		dst = codec.AppendUint24(dst, p.QoS.Interval)
		dst = append(dst, byte(p.QoS.Framing), byte(p.QoS.PHY))
		dst = codec.AppendUint16(dst, p.QoS.SDU)
		dst = append(dst, p.QoS.RTN)
		dst = codec.AppendUint16(dst, p.QoS.Latency)
		return codec.AppendUint24(dst, p.QoS.PD), nil
	case MetadataParams:
		switch s.State {
		case bap.StateEnabling, bap.StateStreaming, bap.StateDisabling:
		default:
			return nil, fmt.Errorf("%w: metadata parameters in %s", ErrMalformedPDU, s.State)
		}
		meta, err := codec.EncodeLTV(p.Meta)
		if err != nil {
			return nil, err
		}
		dst = append(dst, p.CIGID, p.CISID, byte(len(meta)))
		return append(dst, meta...), nil
	default:
		return nil, fmt.Errorf("%w: unknown parameters %T", ErrMalformedPDU, p)
	}
}
