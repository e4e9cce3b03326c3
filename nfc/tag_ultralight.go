package nfc

import (
	"fmt"
	"log"
	"strings"

	"github.com/clausecker/freefare"
)

// ultralightTag adapts a freefare Ultralight tag (also used for NTAG21x,
// which freefare reports as Ultralight) to the Tag interface.
type ultralightTag struct {
	tag freefare.UltralightTag
}

var _ PageTag = (*ultralightTag)(nil)

func newUltralightTag(tag freefare.UltralightTag) *ultralightTag {
	return &ultralightTag{tag: tag}
}

func (u *ultralightTag) UID() string {
	return strings.ToUpper(u.tag.UID())
}

func (u *ultralightTag) Type() string {
	if u.tag.Type() == freefare.UltralightC {
		return CardTypeMifareUltralightC
	}
	return CardTypeMifareUltralight
}

func (u *ultralightTag) Connect() error {
	return u.tag.Connect()
}

func (u *ultralightTag) Disconnect() error {
	return u.tag.Disconnect()
}

// maxPages is the data area freefare can address for this tag type. NTAG
// parts advertise more memory but freefare rejects pages past the Ultralight map.
func (u *ultralightTag) maxPages() int {
	if u.tag.Type() == freefare.UltralightC {
		return ultralightCUserPages
	}
	return ultralightUserPages
}

func (u *ultralightTag) readPage(page byte) ([4]byte, error) {
	return u.tag.ReadPage(page)
}

func (u *ultralightTag) writePage(page byte, data [4]byte) error {
	return u.tag.WritePage(page, data)
}

// ReadPage reads a 4-byte page from the tag.
func (u *ultralightTag) ReadPage(page byte) ([4]byte, error) {
	if err := u.tag.Connect(); err != nil {
		return [4]byte{}, fmt.Errorf("ultralightTag.ReadPage connect error: %w", err)
	}
	defer u.tag.Disconnect()

	data, err := u.tag.ReadPage(page)
	if err != nil {
		return [4]byte{}, fmt.Errorf("ultralightTag.ReadPage error: %w", err)
	}
	return data, nil
}

// WritePage writes a 4-byte page to the tag.
func (u *ultralightTag) WritePage(page byte, data [4]byte) error {
	if err := u.tag.Connect(); err != nil {
		return fmt.Errorf("ultralightTag.WritePage connect error: %w", err)
	}
	defer u.tag.Disconnect()

	if err := u.tag.WritePage(page, data); err != nil {
		return fmt.Errorf("ultralightTag.WritePage error: %w", err)
	}
	return nil
}

// ReadData reads the NDEF message from the tag's data area.
func (u *ultralightTag) ReadData() ([]byte, error) {
	if err := u.tag.Connect(); err != nil {
		return nil, fmt.Errorf("ultralightTag.ReadData connect error: %w", err)
	}
	defer u.tag.Disconnect()

	msg, err := readType2NDEF(u, u.maxPages())
	if err != nil {
		return nil, fmt.Errorf("ultralightTag.ReadData: %w", err)
	}
	if msg == nil {
		log.Printf("ultralightTag.ReadData: no NDEF message on %s", u.UID())
	}
	return msg, nil
}

// WriteData replaces the NDEF message in the tag's data area.
func (u *ultralightTag) WriteData(data []byte) error {
	if err := u.tag.Connect(); err != nil {
		return fmt.Errorf("ultralightTag.WriteData connect error: %w", err)
	}
	defer u.tag.Disconnect()

	if err := writeType2NDEF(u, data, u.maxPages()); err != nil {
		return fmt.Errorf("ultralightTag.WriteData: %w", err)
	}
	log.Printf("ultralightTag.WriteData: wrote %d bytes to %s", len(data), u.UID())
	return nil
}
