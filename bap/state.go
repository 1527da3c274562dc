package bap

import "fmt"

// State is an ASE state. Values match the ASCS ASE_State field.
type State uint8

const (
	StateIdle            State = 0x00
	StateCodecConfigured State = 0x01
	StateQosConfigured   State = 0x02
	StateEnabling        State = 0x03
	StateStreaming       State = 0x04
	StateDisabling       State = 0x05
	StateReleasing       State = 0x06
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCodecConfigured:
		return "codec_configured"
	case StateQosConfigured:
		return "qos_configured"
	case StateEnabling:
		return "enabling"
	case StateStreaming:
		return "streaming"
	case StateDisabling:
		return "disabling"
	case StateReleasing:
		return "releasing"
	default:
		return fmt.Sprintf("state(0x%02x)", uint8(s))
	}
}

// Valid reports whether s is a defined ASE state.
func (s State) Valid() bool {
	return s <= StateReleasing
}

// Dir is the ASE direction as seen from the server. Values match the PACS
// audio direction bits.
type Dir uint8

const (
	DirSink   Dir = 0x01
	DirSource Dir = 0x02
)

// String implements fmt.Stringer.
func (d Dir) String() string {
	switch d {
	case DirSink:
		return "sink"
	case DirSource:
		return "source"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// Kind distinguishes unicast client ASEs from broadcast source BISes.
type Kind uint8

const (
	KindUnicastClient Kind = iota + 1
	KindBroadcastSource
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindUnicastClient:
		return "unicast_client"
	case KindBroadcastSource:
		return "broadcast_source"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type stateSet uint8

func setOf(states ...State) stateSet {
	var s stateSet
	for _, st := range states {
		s |= 1 << st
	}
	return s
}

func (s stateSet) has(st State) bool {
	return st.Valid() && s&(1<<st) != 0
}

// unicastCommon holds the edges shared by both directions.
var unicastCommon = [...]stateSet{
	StateIdle:            setOf(StateCodecConfigured),
	StateCodecConfigured: setOf(StateCodecConfigured, StateQosConfigured, StateReleasing),
	StateQosConfigured:   setOf(StateCodecConfigured, StateQosConfigured, StateEnabling, StateReleasing),
	StateEnabling:        setOf(StateEnabling, StateStreaming, StateReleasing),
	StateStreaming:       setOf(StateStreaming, StateReleasing),
	StateDisabling:       setOf(StateQosConfigured, StateReleasing),
	StateReleasing:       setOf(StateIdle, StateCodecConfigured),
}

var broadcastEdges = [...]stateSet{
	StateIdle:          setOf(StateQosConfigured),
	StateQosConfigured: setOf(StateIdle, StateQosConfigured, StateEnabling),
	StateEnabling:      setOf(StateStreaming, StateQosConfigured),
	StateStreaming:     setOf(StateQosConfigured),
}

// Allowed reports whether from -> to is an edge of the state graph of an
// endpoint of kind k and direction d. Source ASEs stop through Disabling,
// sink ASEs return directly to QosConfigured.
func Allowed(k Kind, d Dir, from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if k == KindBroadcastSource {
		if int(from) >= len(broadcastEdges) {
			return false
		}
		return broadcastEdges[from].has(to)
	}
	if unicastCommon[from].has(to) {
		return true
	}
	if from != StateEnabling && from != StateStreaming {
		return false
	}
	if d == DirSource {
		return to == StateDisabling
	}
	return to == StateQosConfigured
}
