package nfc

// Card type constants for card type identification
const (
	CardTypeMifareUltralight  = "MIFARE Ultralight"
	CardTypeMifareUltralightC = "MIFARE Ultralight C"
	CardTypeNtag              = "NTAG21x"
	CardTypeType2             = "NFC Forum Type 2"
)

// Tag represents an NFC tag at the hardware protocol level.
//
// ReadData returns the raw NDEF message stored on the tag (nil when the tag
// holds none); WriteData replaces it.
//
// Example:
//
//	tags, _ := device.GetTags()
//	for _, tag := range tags {
//	    data, _ := tag.ReadData()
//	}
type Tag interface {
	UID() string
	Type() string
	Connect() error
	Disconnect() error
	ReadData() ([]byte, error)
	WriteData(data []byte) error
}

// PageTag is implemented by tags with 4-byte page addressing (NFC Forum Type 2).
type PageTag interface {
	Tag
	ReadPage(page byte) ([4]byte, error)
	WritePage(page byte, data [4]byte) error
}
