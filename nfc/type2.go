package nfc

import (
	"errors"
	"fmt"
)

// NFC Forum Type 2 memory layout
const (
	type2PageSize      = 4
	type2CCPage        = 3 // Capability Container
	type2UserStartPage = 4
	type2CCMagic       = 0xE1

	// MIFARE Ultralight: pages 4-15
	ultralightUserPages  = 12
	// MIFARE Ultralight C: pages 4-39
	ultralightCUserPages = 36
	// Highest page addressable with a one-byte page number
	type2MaxUserPages    = 0xFF - type2UserStartPage + 1
)

var errType2ReadOnly = errors.New("capability container denies write access")

// pageIO is the raw page access a Type 2 tag offers.
type pageIO interface {
	readPage(page byte) ([4]byte, error)
	writePage(page byte, data [4]byte) error
}

// capabilityContainer is page 3 of a Type 2 tag.
type capabilityContainer [4]byte

func (cc capabilityContainer) valid() bool {
	return cc[0] == type2CCMagic
}

// userPages returns how many 4-byte pages the data area spans, capped at limit.
// Tags without a valid capability container are treated as MIFARE Ultralight.
func (cc capabilityContainer) userPages(limit int) int {
	pages := ultralightUserPages
	if cc.valid() && cc[2] != 0 {
		pages = int(cc[2]) * 8 / type2PageSize
	}
	if limit > 0 && pages > limit {
		return limit
	}
	return pages
}

func (cc capabilityContainer) writable() bool {
	return !cc.valid() || cc[3]&0x0F == 0
}

// readType2NDEF reads pages from the start of the data area until the NDEF
// Message TLV is complete. A tag without an NDEF TLV, or whose TLV area
// runs off the end of memory, yields a nil message.
func readType2NDEF(tag pageIO, maxPages int) ([]byte, error) {
	ccPage, err := tag.readPage(type2CCPage)
	if err != nil {
		return nil, fmt.Errorf("reading capability container: %w", err)
	}
	pages := capabilityContainer(ccPage).userPages(maxPages)

	area := make([]byte, 0, pages*type2PageSize)
	for i := 0; i < pages; i++ {
		page := byte(type2UserStartPage + i)
		data, err := tag.readPage(page)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", page, err)
		}
		area = append(area, data[:]...)

		if msg, complete := ScanNDEFTLV(area); complete {
			return msg, nil
		}
	}
	return nil, nil
}

// writeType2NDEF writes msg as an NDEF Message TLV at the start of the data area.
func writeType2NDEF(tag pageIO, msg []byte, maxPages int) error {
	ccPage, err := tag.readPage(type2CCPage)
	if err != nil {
		return fmt.Errorf("reading capability container: %w", err)
	}
	cc := capabilityContainer(ccPage)
	if !cc.writable() {
		return errType2ReadOnly
	}

	tlv, err := TLVEncode(msg, TLVNDEF)
	if err != nil {
		return err
	}

	pagesNeeded := (len(tlv) + type2PageSize - 1) / type2PageSize
	if available := cc.userPages(maxPages); pagesNeeded > available {
		return fmt.Errorf("NDEF message too large (%d bytes, needs %d pages, only %d available)",
			len(msg), pagesNeeded, available)
	}

	for i := 0; i < pagesNeeded; i++ {
		var pageData [4]byte
		copy(pageData[:], tlv[i*type2PageSize:])
		page := byte(type2UserStartPage + i)
		if err := tag.writePage(page, pageData); err != nil {
			return fmt.Errorf("writing page %d: %w", page, err)
		}
	}
	return nil
}
