package nfc

// Device represents an NFC reader/writer hardware device.
//
// A Device is obtained from a Manager and provides low-level access
// to NFC communication capabilities.
//
// Example:
//
//	device, err := manager.OpenDevice("")
//	defer device.Close()
type Device interface {
	Close() error
	InitiatorInit() error
	String() string
	Connection() string
	// GetTags returns the tags currently in the field. An empty slice with a
	// nil error means no tag is present.
	GetTags() ([]Tag, error)
}
