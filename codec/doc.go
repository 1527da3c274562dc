// Package codec implements the codec and quality-of-service model shared by
// the unicast and broadcast sides of the LE Audio engine.
//
// # Codec Configuration
//
// A Config carries the codec identifier triple (coding format, company id,
// vendor id) plus two ordered LTV sequences: the codec specific
// configuration and the metadata. Both sequences are bounded by
// limits.MaxCodecDataEntries and limits.MaxCodecMetaEntries; adding past the
// bound fails with ErrTooManyEntries and never truncates.
//
//	cfg := codec.NewLC3Config(codec.LC3Freq48kHz, codec.LC3Duration10ms,
//	    codec.LocationFrontLeft, 100, 1, codec.ContextMedia)
//	data, err := cfg.EncodeData()
//
// # LTV Encoding
//
// Every entry is encoded as a one byte length that counts the type byte,
// the one byte type, then length-1 value bytes. DecodeLTV preserves entry
// order, so EncodeLTV followed by DecodeLTV reproduces the input.
//
// # Quality of Service
//
// QoS holds the negotiated timing parameters of one stream. QoSPreference
// is the range a unicast server advertises when it reports the Codec
// Configured state; QoSPreference.Check rejects candidate QoS values the
// server said it cannot accept.
package codec
