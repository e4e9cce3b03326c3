package nfc

import (
	"errors"
	"fmt"
)

// TLV types for NDEF
const (
	TLVNull        = 0x00 // Null TLV
	TLVLockCtrl    = 0x01 // Lock Control TLV
	TLVMemCtrl     = 0x02 // Memory Control TLV
	TLVNDEF        = 0x03 // NDEF Message TLV
	TLVProprietary = 0xFD // Proprietary TLV
	TLVTerminator  = 0xFE // Terminator TLV
)

// maxTLVValue is the largest value the 3-byte length format can describe.
const maxTLVValue = 0xFFFE

var errTLVTooLarge = errors.New("TLV value too large")

// TLVEncode encodes data into TLV format followed by a Terminator TLV.
// For NDEF, use type = 0x03 (TLVNDEF).
// Returns: [Type][Length][Value][Terminator (0xFE)]
func TLVEncode(data []byte, tlvType byte) ([]byte, error) {
	length := len(data)
	if length > maxTLVValue {
		return nil, fmt.Errorf("%w: %d bytes", errTLVTooLarge, length)
	}

	result := make([]byte, 0, length+5)
	result = append(result, tlvType)

	if length < 0xFF {
		result = append(result, byte(length))
	} else {
		// Long format: 0xFF followed by 2-byte big-endian length
		result = append(result, 0xFF, byte(length>>8), byte(length&0xFF))
	}

	result = append(result, data...)
	result = append(result, TLVTerminator)
	return result, nil
}

// tlvHeader returns where the value of the TLV at data[0] starts and how long
// it is. ok is false when data ends inside the length field.
func tlvHeader(data []byte) (valueStart, length int, ok bool) {
	if len(data) < 2 {
		return 0, 0, false
	}
	if data[1] == 0xFF {
		if len(data) < 4 {
			return 0, 0, false
		}
		return 4, int(data[2])<<8 | int(data[3]), true
	}
	return 2, int(data[1]), true
}

// ScanNDEFTLV walks a TLV area looking for the NDEF Message TLV.
//
// It returns the message and complete=true when found. A Terminator TLV ends
// the scan with a nil message and complete=true. complete=false means the
// area ends before the TLV structure does and more bytes are needed.
func ScanNDEFTLV(area []byte) (msg []byte, complete bool) {
	offset := 0
	for offset < len(area) {
		switch area[offset] {
		case TLVNull:
			offset++
			continue
		case TLVTerminator:
			return nil, true
		}

		valueStart, length, ok := tlvHeader(area[offset:])
		if !ok {
			return nil, false
		}
		end := offset + valueStart + length
		if end > len(area) {
			return nil, false
		}

		if area[offset] == TLVNDEF {
			return append([]byte(nil), area[offset+valueStart:end]...), true
		}
		offset = end
	}
	return nil, false
}
