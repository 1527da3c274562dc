package codec

import "encoding/binary"

// Codec specific configuration types (Assigned Numbers 6.12.5).
const (
	ConfigTypeSamplingFreq      uint8 = 0x01
	ConfigTypeFrameDuration     uint8 = 0x02
	ConfigTypeChannelAllocation uint8 = 0x03
	ConfigTypeOctetsPerFrame    uint8 = 0x04
	ConfigTypeFramesPerSDU      uint8 = 0x05
)

// Metadata types (Assigned Numbers 6.12.6).
const (
	MetaTypePreferredContexts uint8 = 0x01
	MetaTypeStreamingContexts uint8 = 0x02
	MetaTypeProgramInfo       uint8 = 0x03
	MetaTypeLanguage          uint8 = 0x04
	MetaTypeCCIDList          uint8 = 0x05
	MetaTypeParentalRating    uint8 = 0x06
	MetaTypeVendor            uint8 = 0xFF
)

// LC3 sampling frequencies.
const (
	LC3Freq8kHz  uint8 = 0x01
	LC3Freq16kHz uint8 = 0x03
	LC3Freq24kHz uint8 = 0x05
	LC3Freq32kHz uint8 = 0x06
	LC3Freq48kHz uint8 = 0x08
)

// LC3 frame durations.
const (
	LC3Duration7_5ms uint8 = 0x00
	LC3Duration10ms  uint8 = 0x01
)

// Audio contexts.
const (
	ContextUnspecified    uint16 = 0x0001
	ContextConversational uint16 = 0x0002
	ContextMedia          uint16 = 0x0004
	ContextGame           uint16 = 0x0008
)

// Audio locations.
const (
	LocationMono       uint32 = 0x00000000
	LocationFrontLeft  uint32 = 0x00000001
	LocationFrontRight uint32 = 0x00000002
)

// NewLC3Config builds an LC3 codec configuration with a streaming context
// metadata entry.
func NewLC3Config(freq, duration uint8, location uint32, octets uint16, frames uint8, ctx uint16) *Config {
	loc := make([]byte, 4)
	binary.LittleEndian.PutUint32(loc, location)
	oct := make([]byte, 2)
	binary.LittleEndian.PutUint16(oct, octets)
	c := &Config{
		ID: ID{Format: FormatLC3},
		Data: []LTV{
			{Type: ConfigTypeSamplingFreq, Value: []byte{freq}},
			{Type: ConfigTypeFrameDuration, Value: []byte{duration}},
			{Type: ConfigTypeChannelAllocation, Value: loc},
			{Type: ConfigTypeOctetsPerFrame, Value: oct},
			{Type: ConfigTypeFramesPerSDU, Value: []byte{frames}},
		},
	}
	ctxVal := make([]byte, 2)
	binary.LittleEndian.PutUint16(ctxVal, ctx)
	c.Meta = []LTV{{Type: MetaTypeStreamingContexts, Value: ctxVal}}
	return c
}

// Preset pairs a codec configuration with its recommended QoS.
type Preset struct {
	Name  string
	Codec *Config
	QoS   QoS
}

// LC3Preset16_2_1 returns the 16_2_1 unicast preset (16 kHz, 10 ms, 40 octets, low latency).
func LC3Preset16_2_1(ctx uint16) Preset {
	return Preset{
		Name:  "16_2_1",
		Codec: NewLC3Config(LC3Freq16kHz, LC3Duration10ms, LocationMono, 40, 1, ctx),
		QoS:   QoS{Interval: 10000, Framing: FramingUnframed, PHY: PHY2M, SDU: 40, RTN: 2, Latency: 10, PD: 40000},
	}
}

// LC3Preset24_2_1 returns the 24_2_1 unicast preset (24 kHz, 10 ms, 60 octets, low latency).
func LC3Preset24_2_1(ctx uint16) Preset {
	return Preset{
		Name:  "24_2_1",
		Codec: NewLC3Config(LC3Freq24kHz, LC3Duration10ms, LocationMono, 60, 1, ctx),
		QoS:   QoS{Interval: 10000, Framing: FramingUnframed, PHY: PHY2M, SDU: 60, RTN: 2, Latency: 10, PD: 40000},
	}
}

// LC3Preset48_2_1 returns the 48_2_1 unicast preset (48 kHz, 10 ms, 100 octets, low latency).
func LC3Preset48_2_1(ctx uint16) Preset {
	return Preset{
		Name:  "48_2_1",
		Codec: NewLC3Config(LC3Freq48kHz, LC3Duration10ms, LocationMono, 100, 1, ctx),
		QoS:   QoS{Interval: 10000, Framing: FramingUnframed, PHY: PHY2M, SDU: 100, RTN: 5, Latency: 20, PD: 40000},
	}
}

// LC3Preset48_4_1 returns the 48_4_1 unicast preset (48 kHz, 10 ms, 120 octets, low latency).
func LC3Preset48_4_1(ctx uint16) Preset {
	return Preset{
		Name:  "48_4_1",
		Codec: NewLC3Config(LC3Freq48kHz, LC3Duration10ms, LocationMono, 120, 1, ctx),
		QoS:   QoS{Interval: 10000, Framing: FramingUnframed, PHY: PHY2M, SDU: 120, RTN: 5, Latency: 20, PD: 40000},
	}
}

// ChannelAllocation returns the channel allocation entry of c, if present
// and well formed.
func (c *Config) ChannelAllocation() (uint32, bool) {
	v, ok := c.FindData(ConfigTypeChannelAllocation)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(v), true
}

// LocationLTV returns a channel allocation entry for use as BIS specific data.
func LocationLTV(location uint32) LTV {
	v := make([]byte, 4)
	binary.LittleEndian.PutUint32(v, location)
	return LTV{Type: ConfigTypeChannelAllocation, Value: v}
}
