package nfc

import (
	"fmt"
	"log"
)

// pcscType2Tag reads and writes NFC Forum Type 2 tags (Ultralight, NTAG21x)
// through the reader's READ BINARY / UPDATE BINARY pseudo-APDUs.
type pcscType2Tag struct {
	device *pcscDevice
	uid    string
}

var _ PageTag = (*pcscType2Tag)(nil)

func newPCSCType2Tag(device *pcscDevice, uid string) *pcscType2Tag {
	return &pcscType2Tag{device: device, uid: uid}
}

func (t *pcscType2Tag) UID() string {
	return t.uid
}

func (t *pcscType2Tag) Type() string {
	return CardTypeType2
}

// Connect is a no-op; the device keeps the card connection.
func (t *pcscType2Tag) Connect() error {
	return nil
}

func (t *pcscType2Tag) Disconnect() error {
	return nil
}

// transceive sends an APDU and returns the response data.
func (t *pcscType2Tag) transceive(cmd []byte) ([]byte, error) {
	resp, err := t.device.Transceive(cmd)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseAPDUResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := parsed.Error(); err != nil {
		return nil, err
	}
	return parsed.Data, nil
}

func (t *pcscType2Tag) readPage(page byte) ([4]byte, error) {
	var out [4]byte
	data, err := t.transceive(ReadBinaryAPDU(page, type2PageSize))
	if err != nil {
		return out, err
	}
	// Some readers return the full 16-byte READ block regardless of Le
	if len(data) < type2PageSize {
		return out, fmt.Errorf("short read of page %d: %d bytes", page, len(data))
	}
	copy(out[:], data)
	return out, nil
}

func (t *pcscType2Tag) writePage(page byte, data [4]byte) error {
	_, err := t.transceive(UpdateBinaryAPDU(page, data[:]))
	return err
}

// ReadPage reads a 4-byte page from the tag.
func (t *pcscType2Tag) ReadPage(page byte) ([4]byte, error) {
	data, err := t.readPage(page)
	if err != nil {
		return data, fmt.Errorf("pcscType2Tag.ReadPage error: %w", err)
	}
	return data, nil
}

// WritePage writes a 4-byte page to the tag.
func (t *pcscType2Tag) WritePage(page byte, data [4]byte) error {
	if err := t.writePage(page, data); err != nil {
		return fmt.Errorf("pcscType2Tag.WritePage error: %w", err)
	}
	return nil
}

func (t *pcscType2Tag) ReadData() ([]byte, error) {
	msg, err := readType2NDEF(t, type2MaxUserPages)
	if err != nil {
		return nil, fmt.Errorf("pcscType2Tag.ReadData: %w", err)
	}
	return msg, nil
}

func (t *pcscType2Tag) WriteData(data []byte) error {
	if err := writeType2NDEF(t, data, type2MaxUserPages); err != nil {
		return fmt.Errorf("pcscType2Tag.WriteData: %w", err)
	}
	log.Printf("pcscType2Tag.WriteData: wrote %d bytes to %s", len(data), t.uid)
	return nil
}
