package interfaces

import "fmt"

// ConnID identifies an ACL connection to a remote device.
type ConnID uint16

// String implements fmt.Stringer.
func (c ConnID) String() string {
	return fmt.Sprintf("conn(%d)", uint16(c))
}

// UUID16 is a 16-bit Bluetooth SIG assigned UUID.
type UUID16 uint16

// Characteristic UUIDs used by the unicast client.
const (
	UUIDSinkASE          UUID16 = 0x2BC4
	UUIDSourceASE        UUID16 = 0x2BC5
	UUIDASEControlPoint  UUID16 = 0x2BC6
	UUIDSinkPAC          UUID16 = 0x2BC9
	UUIDSinkLocations    UUID16 = 0x2BCA
	UUIDSourcePAC        UUID16 = 0x2BCB
	UUIDSourceLocations  UUID16 = 0x2BCC
	UUIDAvailableContext UUID16 = 0x2BCD
	UUIDSupportedContext UUID16 = 0x2BCE
)

// Service UUIDs.
const (
	UUIDBasicAudioAnnouncement UUID16 = 0x1851
	UUIDBroadcastAudioAnnounce UUID16 = 0x1852
)

// Attribute is a characteristic value read from a remote device.
type Attribute struct {
	Handle uint16
	Value  []byte
}

// NotifyFunc receives the value of a notification.
type NotifyFunc func(conn ConnID, handle uint16, value []byte)

// GATTClient is the attribute protocol client the unicast controller drives.
type GATTClient interface {
	// ReadByUUID reads every characteristic value of the given type.
	ReadByUUID(conn ConnID, uuid UUID16) ([]Attribute, error)

	// WriteWithoutResponse writes value to the characteristic at handle.
	WriteWithoutResponse(conn ConnID, handle uint16, value []byte) error

	// Subscribe enables notifications for the characteristic at handle.
	Subscribe(conn ConnID, handle uint16, fn NotifyFunc) error
}
