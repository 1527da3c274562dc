package codec

import "fmt"

// Framing selects framed or unframed ISOAL PDUs.
type Framing uint8

const (
	// FramingUnframed requests unframed ISOAL PDUs
	FramingUnframed Framing = 0x00
	// FramingFramed requests framed ISOAL PDUs
	FramingFramed Framing = 0x01
)

// PHY is an LE PHY bit as used by ASCS and the ISO parameters.
type PHY uint8

const (
	PHY1M    PHY = 0x01
	PHY2M    PHY = 0x02
	PHYCoded PHY = 0x04
)

// Packing selects how the controller arranges the subevents of a group.
type Packing uint8

const (
	PackingSequential  Packing = 0x00
	PackingInterleaved Packing = 0x01
)

// QoS protocol ranges.
const (
	MinInterval = 0x0000FF
	MaxInterval = 0x0FFFFF
	MinLatency  = 0x0005
	MaxLatency  = 0x0FA0
	MaxPD       = 0xFFFFFF
	MaxSDU      = 0x0FFF
)

// QoS holds the timing parameters of one stream.
type QoS struct {
	Interval uint32 // SDU interval in microseconds
	Framing  Framing
	PHY      PHY
	SDU      uint16 // maximum SDU size in octets
	RTN      uint8  // retransmission number
	Latency  uint16 // maximum transport latency in milliseconds
	PD       uint32 // presentation delay in microseconds
}

// Validate checks every parameter against its protocol range.
func (q *QoS) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: nil", ErrInvalidQoS)
	}
	if q.Interval < MinInterval || q.Interval > MaxInterval {
		return fmt.Errorf("%w: interval %d outside [%d, %d]", ErrInvalidQoS, q.Interval, MinInterval, MaxInterval)
	}
	if q.Framing > FramingFramed {
		return fmt.Errorf("%w: framing 0x%02x", ErrInvalidQoS, q.Framing)
	}
	switch q.PHY {
	case PHY1M, PHY2M, PHYCoded:
	default:
		return fmt.Errorf("%w: phy 0x%02x", ErrInvalidQoS, q.PHY)
	}
	if q.SDU > MaxSDU {
		return fmt.Errorf("%w: sdu %d above %d", ErrInvalidQoS, q.SDU, MaxSDU)
	}
	if q.Latency < MinLatency || q.Latency > MaxLatency {
		return fmt.Errorf("%w: latency %d outside [%d, %d]", ErrInvalidQoS, q.Latency, MinLatency, MaxLatency)
	}
	if q.PD > MaxPD {
		return fmt.Errorf("%w: presentation delay %d above %d", ErrInvalidQoS, q.PD, MaxPD)
	}
	return nil
}

// QoSPreference is the QoS range a unicast server advertises in the Codec
// Configured state.
type QoSPreference struct {
	UnframedSupported bool
	PHY               PHY    // preferred PHY bitfield
	RTN               uint8  // preferred retransmission number
	Latency           uint16 // maximum transport latency
	PDMin             uint32 // supported presentation delay minimum
	PDMax             uint32 // supported presentation delay maximum
	PrefPDMin         uint32 // preferred presentation delay minimum, 0 when none
	PrefPDMax         uint32 // preferred presentation delay maximum, 0 when none
}

// Check validates a candidate QoS against the preference.
func (p *QoSPreference) Check(q *QoS) error {
	if q.Framing == FramingUnframed && !p.UnframedSupported {
		return ErrFramingUnsupported
	}
	if p.Latency != 0 && q.Latency > p.Latency {
		return fmt.Errorf("%w: %d > %d", ErrLatencyOutOfRange, q.Latency, p.Latency)
	}
	if q.PD < p.PDMin || q.PD > p.PDMax {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPresentationDelayOutOfRange, q.PD, p.PDMin, p.PDMax)
	}
	return nil
}

// Consistent reports whether the advertised ranges are internally sound:
// PDMin <= PDMax and any preferred bound lies inside the supported range.
func (p *QoSPreference) Consistent() bool {
	if p.PDMin > p.PDMax {
		return false
	}
	if p.PrefPDMin != 0 && (p.PrefPDMin < p.PDMin || p.PrefPDMin > p.PDMax) {
		return false
	}
	if p.PrefPDMax != 0 && (p.PrefPDMax < p.PrefPDMin || p.PrefPDMax > p.PDMax) {
		return false
	}
	return true
}
