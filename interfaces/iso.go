package interfaces

import (
	"errors"
	"fmt"
)

// ChannelID identifies one isochronous channel (CIS or BIS).
type ChannelID uint32

// GroupHandle identifies a CIG or BIG created by the transport.
type GroupHandle uint32

// ChannelQoS holds the per-direction parameters of one channel.
type ChannelQoS struct {
	SDU uint16
	PHY uint8
	RTN uint8
}

// CISParams describes one CIS of a CIG. A nil direction is unused.
type CISParams struct {
	Channel ChannelID
	CISID   uint8
	TX      *ChannelQoS // central to peripheral
	RX      *ChannelQoS // peripheral to central
}

// CIGParams describes a CIG.
type CIGParams struct {
	CIGID    uint8
	Channels []CISParams
	Interval uint32 // SDU interval in microseconds
	Latency  uint16 // maximum transport latency in milliseconds
	Framing  uint8
	Packing  uint8
}

// BIGParams describes a BIG.
type BIGParams struct {
	Channels      []ChannelID
	QoS           ChannelQoS
	Interval      uint32
	Latency       uint16
	Framing       uint8
	Packing       uint8
	Encryption    bool
	BroadcastCode [16]byte
}

// RecvInfo accompanies a received SDU.
type RecvInfo struct {
	Sequence  uint16
	Timestamp uint32
	Valid     bool
}

var (
	// ErrNoChannels indicates group parameters without any channel
	ErrNoChannels = errors.New("group has no channels")

	// ErrTooManyChannels indicates group parameters above the 31 channel ceiling
	ErrTooManyChannels = errors.New("group has too many channels")
)

// Validate checks the structural constraints of the CIG parameters.
func (p *CIGParams) Validate() error {
	if len(p.Channels) == 0 {
		return ErrNoChannels
	}
	if len(p.Channels) > 31 {
		return fmt.Errorf("%w: %d", ErrTooManyChannels, len(p.Channels))
	}
	for i, ch := range p.Channels {
		if ch.TX == nil && ch.RX == nil {
			return fmt.Errorf("cis %d has no direction", i)
		}
	}
	return nil
}

// Validate checks the structural constraints of the BIG parameters.
func (p *BIGParams) Validate() error {
	if len(p.Channels) == 0 {
		return ErrNoChannels
	}
	if len(p.Channels) > 31 {
		return fmt.Errorf("%w: %d", ErrTooManyChannels, len(p.Channels))
	}
	return nil
}

// ISOListener receives asynchronous isochronous transport events.
type ISOListener interface {
	Connected(ch ChannelID)
	Disconnected(ch ChannelID, reason uint8)
	Sent(ch ChannelID)
	Received(ch ChannelID, info RecvInfo, payload []byte)
}

// ISOTransport is the isochronous channel service the engine drives.
type ISOTransport interface {
	// RegisterListener sets the receiver of channel events.
	RegisterListener(l ISOListener)

	CreateCIG(params CIGParams) (GroupHandle, error)
	ReconfigureCIG(handle GroupHandle, params CIGParams) error
	TerminateCIG(handle GroupHandle) error

	// CreateBIG starts a BIG on the periodic advertising set advHandle.
	// Each BIS reports Connected once established.
	CreateBIG(advHandle uint8, params BIGParams) (GroupHandle, error)
	TerminateBIG(handle GroupHandle) error

	// Connect establishes a CIS over the given ACL connection.
	Connect(ch ChannelID, conn ConnID) error
	Disconnect(ch ChannelID) error

	Send(ch ChannelID, payload []byte, seq uint16, ts uint32) error
}
