package bap

import (
	"fmt"

	"github.com/opd-ai/leaudio/codec"
)

// Opcode is an ASE Control Point opcode.
type Opcode uint8

const (
	OpConfigCodec    Opcode = 0x01
	OpConfigQoS      Opcode = 0x02
	OpEnable         Opcode = 0x03
	OpStart          Opcode = 0x04 // Receiver Start Ready
	OpDisable        Opcode = 0x05
	OpStop           Opcode = 0x06 // Receiver Stop Ready
	OpUpdateMetadata Opcode = 0x07
	OpRelease        Opcode = 0x08
)

// String implements fmt.Stringer.
func (op Opcode) String() string {
	switch op {
	case OpConfigCodec:
		return "config_codec"
	case OpConfigQoS:
		return "config_qos"
	case OpEnable:
		return "enable"
	case OpStart:
		return "receiver_start_ready"
	case OpDisable:
		return "disable"
	case OpStop:
		return "receiver_stop_ready"
	case OpUpdateMetadata:
		return "update_metadata"
	case OpRelease:
		return "release"
	default:
		return fmt.Sprintf("opcode(0x%02x)", uint8(op))
	}
}

var validFrom = map[Opcode]stateSet{
	OpConfigCodec:    setOf(StateIdle, StateCodecConfigured, StateQosConfigured),
	OpConfigQoS:      setOf(StateCodecConfigured, StateQosConfigured),
	OpEnable:         setOf(StateQosConfigured),
	OpUpdateMetadata: setOf(StateEnabling, StateStreaming),
	OpStart:          setOf(StateEnabling),
	OpDisable:        setOf(StateEnabling, StateStreaming),
	OpStop:           setOf(StateDisabling),
	OpRelease:        setOf(StateCodecConfigured, StateQosConfigured, StateEnabling, StateStreaming, StateDisabling),
}

// ValidFrom reports whether op may be issued by a client whose endpoint is
// in state s.
func ValidFrom(op Opcode, s State) bool {
	return validFrom[op].has(s)
}

// Request is a control operation addressed to one endpoint. The concrete
// types below are the only implementations.
type Request interface {
	Opcode() Opcode
	isRequest()
}

// ConfigCodec requests a codec configuration.
type ConfigCodec struct {
	Codec         *codec.Config
	TargetLatency uint8
	TargetPHY     uint8
}

// ConfigQoS requests a QoS configuration on a CIS.
type ConfigQoS struct {
	CIGID uint8
	CISID uint8
	QoS   codec.QoS
}

// Enable requests enabling with metadata.
type Enable struct {
	Meta []codec.LTV
}

// UpdateMetadata replaces the metadata of an enabling or streaming endpoint.
type UpdateMetadata struct {
	Meta []codec.LTV
}

// Start signals Receiver Start Ready.
type Start struct{}

// Disable requests disabling.
type Disable struct{}

// Stop signals Receiver Stop Ready.
type Stop struct{}

// Release requests release.
type Release struct{}

func (ConfigCodec) Opcode() Opcode    { return OpConfigCodec }
func (ConfigQoS) Opcode() Opcode      { return OpConfigQoS }
func (Enable) Opcode() Opcode         { return OpEnable }
func (UpdateMetadata) Opcode() Opcode { return OpUpdateMetadata }
func (Start) Opcode() Opcode          { return OpStart }
func (Disable) Opcode() Opcode        { return OpDisable }
func (Stop) Opcode() Opcode           { return OpStop }
func (Release) Opcode() Opcode        { return OpRelease }

func (ConfigCodec) isRequest()    {}
func (ConfigQoS) isRequest()      {}
func (Enable) isRequest()         {}
func (UpdateMetadata) isRequest() {}
func (Start) isRequest()          {}
func (Disable) isRequest()        {}
func (Stop) isRequest()           {}
func (Release) isRequest()        {}
