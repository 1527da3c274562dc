package iso

import (
	"fmt"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/pool"
)

// Direction selects a half of a binding, seen from the local device.
type Direction uint8

const (
	// DirTX is the locally transmitted half
	DirTX Direction = iota
	// DirRX is the locally received half
	DirRX
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == DirTX {
		return "tx"
	}
	return "rx"
}

// GroupKind distinguishes unicast groups from broadcast sources.
type GroupKind uint8

const (
	GroupUnicast GroupKind = iota + 1
	GroupBroadcast
)

// GroupKey identifies the group or broadcast subgroup a binding belongs to.
type GroupKey struct {
	Kind     GroupKind
	ID       pool.Handle
	Subgroup uint8
}

// IsZero reports whether k is the zero key.
func (k GroupKey) IsZero() bool {
	return k.Kind == 0
}

// String implements fmt.Stringer.
func (k GroupKey) String() string {
	switch k.Kind {
	case GroupUnicast:
		return fmt.Sprintf("unicast:%s", k.ID)
	case GroupBroadcast:
		return fmt.Sprintf("broadcast:%s/%d", k.ID, k.Subgroup)
	default:
		return "group(none)"
	}
}

// ChannelState tracks the establishment of the binding's channel.
type ChannelState uint8

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnected
	ChannelDisconnecting
)

// String implements fmt.Stringer.
func (s ChannelState) String() string {
	switch s {
	case ChannelDisconnected:
		return "disconnected"
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	case ChannelDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("channel_state(%d)", uint8(s))
	}
}

// Active reports whether the channel is connecting or connected.
func (s ChannelState) Active() bool {
	return s == ChannelConnecting || s == ChannelConnected
}

// Owner receives the channel events of the binding halves it owns.
type Owner interface {
	ISOConnected()
	ISODisconnected(reason uint8)
	ISOSent()
	ISORecv(info interfaces.RecvInfo, payload []byte)
}

type half struct {
	owner  Owner
	params interfaces.ChannelQoS
	set    bool
}

// Binding is one logical isochronous channel.
type Binding struct {
	key   GroupKey
	tx    half
	rx    half
	state ChannelState
	conn  interfaces.ConnID
}

func (b *Binding) half(dir Direction) *half {
	if dir == DirTX {
		return &b.tx
	}
	return &b.rx
}

func (b *Binding) ownerless() bool {
	return b.tx.owner == nil && b.rx.owner == nil
}

// ParamsFromQoS derives the per-direction channel parameters of a stream QoS.
func ParamsFromQoS(q *codec.QoS) interfaces.ChannelQoS {
	if q == nil {
		return interfaces.ChannelQoS{}
	}
	return interfaces.ChannelQoS{SDU: q.SDU, PHY: uint8(q.PHY), RTN: q.RTN}
}

// ChannelID returns the transport channel identifier of a binding handle.
func ChannelID(h pool.Handle) interfaces.ChannelID {
	return interfaces.ChannelID(h)
}
