package nfc

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// NDEF record header flags
const (
	ndefFlagMB  = 0x80 // Message Begin
	ndefFlagME  = 0x40 // Message End
	ndefFlagCF  = 0x20 // Chunk Flag
	ndefFlagSR  = 0x10 // Short Record
	ndefFlagIL  = 0x08 // ID Length present
	ndefTNFMask = 0x07

	ndefTNFWellKnown = 0x01
)

// Text record status byte
const (
	textStatusUTF16   = 0x80
	textStatusLangLen = 0x3F
)

// DefaultLanguage is the IANA language code written into new text records.
const DefaultLanguage = "en"

// NDEFRecord is a single decoded NDEF record.
type NDEFRecord struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// parseNDEFRecords splits an NDEF message into its records.
func parseNDEFRecords(msg []byte) ([]NDEFRecord, error) {
	var records []NDEFRecord

	offset := 0
	for offset < len(msg) {
		header := msg[offset]
		pos := offset + 1

		if header&ndefFlagCF != 0 {
			return nil, fmt.Errorf("invalid NDEF message: chunked records are not supported (offset %d)", offset)
		}

		if pos+1 > len(msg) {
			return nil, fmt.Errorf("invalid NDEF message: truncated type length at offset %d", pos)
		}
		typeLength := int(msg[pos])
		pos++

		var payloadLength int
		if header&ndefFlagSR != 0 {
			if pos+1 > len(msg) {
				return nil, fmt.Errorf("invalid NDEF message: truncated short record payload length at offset %d", pos)
			}
			payloadLength = int(msg[pos])
			pos++
		} else {
			if pos+4 > len(msg) {
				return nil, fmt.Errorf("invalid NDEF message: truncated payload length at offset %d", pos)
			}
			payloadLength = int(binary.BigEndian.Uint32(msg[pos : pos+4]))
			pos += 4
		}

		var idLength int
		if header&ndefFlagIL != 0 {
			if pos+1 > len(msg) {
				return nil, fmt.Errorf("invalid NDEF message: truncated ID length at offset %d", pos)
			}
			idLength = int(msg[pos])
			pos++
		}

		if pos+typeLength+idLength > len(msg) || payloadLength > len(msg)-pos-typeLength-idLength {
			return nil, fmt.Errorf("invalid NDEF message: record at offset %d exceeds message", offset)
		}

		record := NDEFRecord{TNF: header & ndefTNFMask}
		record.Type = msg[pos : pos+typeLength]
		pos += typeLength
		record.ID = msg[pos : pos+idLength]
		pos += idLength
		record.Payload = msg[pos : pos+payloadLength]
		pos += payloadLength

		records = append(records, record)
		offset = pos

		if header&ndefFlagME != 0 {
			break
		}
	}
	return records, nil
}

// IsText reports whether the record is an NFC Forum well-known Text record.
func (r NDEFRecord) IsText() bool {
	return r.TNF == ndefTNFWellKnown && len(r.Type) == 1 && r.Type[0] == 'T'
}

// ParseTextRecord returns the text of the first Text record in an NDEF
// message. found is false when the message holds no Text record.
func ParseTextRecord(msg []byte) (text string, found bool, err error) {
	if len(msg) == 0 {
		return "", false, nil
	}

	records, err := parseNDEFRecords(msg)
	if err != nil {
		return "", false, err
	}
	for _, record := range records {
		if record.IsText() {
			text, err := parseTextRecordPayload(record.Payload)
			if err != nil {
				return "", false, err
			}
			return text, true, nil
		}
	}
	return "", false, nil
}

// EncodeTextRecord creates an NDEF message containing a single UTF-8 Text record.
func EncodeTextRecord(text, lang string) []byte {
	payload := makeTextRecordPayload(text, lang)
	payloadLen := len(payload)
	short := payloadLen <= 0xFF

	header := byte(ndefFlagMB | ndefFlagME | ndefTNFWellKnown)
	if short {
		header |= ndefFlagSR
	}

	record := []byte{header, 1}
	if short {
		record = append(record, byte(payloadLen))
	} else {
		record = binary.BigEndian.AppendUint32(record, uint32(payloadLen))
	}
	record = append(record, 'T')
	return append(record, payload...)
}

func makeTextRecordPayload(text, lang string) []byte {
	if lang == "" {
		lang = DefaultLanguage
	}
	langCode := []byte(lang)
	if len(langCode) > textStatusLangLen {
		langCode = langCode[:textStatusLangLen]
	}

	payload := make([]byte, 0, 1+len(langCode)+len(text))
	payload = append(payload, byte(len(langCode)))
	payload = append(payload, langCode...)
	return append(payload, text...)
}

// parseTextRecordPayload extracts text from an NDEF Text record's payload.
func parseTextRecordPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", fmt.Errorf("text record payload too short (status byte missing)")
	}
	status := payload[0]
	textStart := 1 + int(status&textStatusLangLen)
	if textStart > len(payload) {
		return "", fmt.Errorf("text record payload too short (language code missing)")
	}
	textBytes := payload[textStart:]

	if status&textStatusUTF16 == 0 {
		return string(textBytes), nil
	}
	if len(textBytes)%2 != 0 {
		return "", fmt.Errorf("invalid UTF-16 text length: %d", len(textBytes))
	}
	return decodeUTF16(textBytes), nil
}

// decodeUTF16 decodes big-endian UTF-16 unless a byte order mark says otherwise.
func decodeUTF16(b []byte) string {
	var order binary.ByteOrder = binary.BigEndian
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFF && b[1] == 0xFE:
			order = binary.LittleEndian
			b = b[2:]
		case b[0] == 0xFE && b[1] == 0xFF:
			b = b[2:]
		}
	}

	u16s := make([]uint16, len(b)/2)
	for i := range u16s {
		u16s[i] = order.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u16s))
}
