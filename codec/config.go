package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/leaudio/limits"
)

// Coding formats (Assigned Numbers 2.11).
const (
	FormatLinearPCM   uint8 = 0x01
	FormatTransparent uint8 = 0x03
	FormatLC3         uint8 = 0x06
	FormatVendor      uint8 = 0xFF
)

// IDSize is the encoded size of an ID.
const IDSize = 5

// ID identifies a codec.
//
// Wire format:
//
//	[FORMAT(1)][COMPANY_ID(2 LE)][VENDOR_ID(2 LE)]
type ID struct {
	Format    uint8
	CompanyID uint16
	VendorID  uint16
}

// Append appends the wire encoding of id to dst.
func (id ID) Append(dst []byte) []byte {
	dst = append(dst, id.Format)
	dst = AppendUint16(dst, id.CompanyID)
	return AppendUint16(dst, id.VendorID)
}

// ParseID decodes an ID from the first IDSize bytes of b.
func ParseID(b []byte) (ID, error) {
	if len(b) < IDSize {
		return ID{}, fmt.Errorf("%w: codec id needs %d bytes, got %d", ErrShortBuffer, IDSize, len(b))
	}
	return ID{
		Format:    b[0],
		CompanyID: binary.LittleEndian.Uint16(b[1:3]),
		VendorID:  binary.LittleEndian.Uint16(b[3:5]),
	}, nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return fmt.Sprintf("codec(0x%02x/0x%04x/0x%04x)", id.Format, id.CompanyID, id.VendorID)
}

// Config is a codec configuration: identifier, configuration LTVs and
// metadata LTVs. The zero value is an empty configuration for coding
// format 0.
type Config struct {
	ID   ID
	Data []LTV
	Meta []LTV
}

// NewConfig creates an empty configuration for id.
func NewConfig(id ID) *Config {
	return &Config{ID: id}
}

// AddData appends a configuration entry.
func (c *Config) AddData(t uint8, v []byte) error {
	data, err := addLTV(c.Data, t, v, limits.MaxCodecDataEntries)
	if err != nil {
		return err
	}
	c.Data = data
	return nil
}

// SetData replaces the configuration entry of type t, or appends it.
func (c *Config) SetData(t uint8, v []byte) error {
	data, err := setLTV(c.Data, t, v, limits.MaxCodecDataEntries)
	if err != nil {
		return err
	}
	c.Data = data
	return nil
}

// AddMeta appends a metadata entry.
func (c *Config) AddMeta(t uint8, v []byte) error {
	meta, err := addLTV(c.Meta, t, v, limits.MaxCodecMetaEntries)
	if err != nil {
		return err
	}
	c.Meta = meta
	return nil
}

// SetMeta replaces the metadata entry of type t, or appends it.
func (c *Config) SetMeta(t uint8, v []byte) error {
	meta, err := setLTV(c.Meta, t, v, limits.MaxCodecMetaEntries)
	if err != nil {
		return err
	}
	c.Meta = meta
	return nil
}

// FindData returns the value of the first configuration entry of type t.
func (c *Config) FindData(t uint8) ([]byte, bool) {
	return findLTV(c.Data, t)
}

// FindMeta returns the value of the first metadata entry of type t.
func (c *Config) FindMeta(t uint8) ([]byte, bool) {
	return findLTV(c.Meta, t)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{ID: c.ID, Data: CloneLTV(c.Data), Meta: CloneLTV(c.Meta)}
}

// Merge overlays entries onto the configuration data: an overlay entry
// replaces the existing entry of the same type, other types are appended.
// Used to derive a BIS configuration from its subgroup configuration.
func (c *Config) Merge(overlay []LTV) error {
	data := CloneLTV(c.Data)
	for _, e := range overlay {
		var err error
		if data, err = setLTV(data, e.Type, e.Value, limits.MaxCodecDataEntries); err != nil {
			return err
		}
	}
	c.Data = data
	return nil
}

// EncodeData encodes the configuration entries as one LTV block.
func (c *Config) EncodeData() ([]byte, error) {
	return EncodeLTV(c.Data)
}

// EncodeMeta encodes the metadata entries as one LTV block.
func (c *Config) EncodeMeta() ([]byte, error) {
	return EncodeLTV(c.Meta)
}

// Validate checks entry counts and that both blocks fit a one byte length.
func (c *Config) Validate() error {
	if err := limits.ValidateEntryCount(len(c.Data), limits.MaxCodecDataEntries); err != nil {
		return fmt.Errorf("%w: configuration: %v", ErrTooManyEntries, err)
	}
	if err := limits.ValidateEntryCount(len(c.Meta), limits.MaxCodecMetaEntries); err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrTooManyEntries, err)
	}
	if _, err := c.EncodeData(); err != nil {
		return err
	}
	if _, err := c.EncodeMeta(); err != nil {
		return err
	}
	return nil
}
