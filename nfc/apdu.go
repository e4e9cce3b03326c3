package nfc

import (
	"errors"
	"fmt"
)

// APDU status words
const (
	SW1Success  = 0x90
	SW2Success  = 0x00
	SW1MoreData = 0x61 // More data available
)

// CLAPCSC is the class byte of PC/SC pseudo-APDUs (reader commands).
const CLAPCSC = 0xFF

// PC/SC pseudo-APDU instructions
const (
	INSGetUID     = 0xCA // Get UID
	INSReadBinary = 0xB0 // Read binary
	INSUpdateBin  = 0xD6 // Update binary
)

// APDUResponse represents a parsed APDU response
type APDUResponse struct {
	Data []byte
	SW1  byte
	SW2  byte
}

// IsSuccess returns true if the response indicates success (SW1=90, SW2=00)
func (r APDUResponse) IsSuccess() bool {
	return r.SW1 == SW1Success && r.SW2 == SW2Success
}

// Error returns an error if the response is not successful
func (r APDUResponse) Error() error {
	if r.IsSuccess() {
		return nil
	}
	return fmt.Errorf("APDU error: SW1=%02X SW2=%02X", r.SW1, r.SW2)
}

// ParseAPDUResponse parses a raw response into APDUResponse
func ParseAPDUResponse(raw []byte) (APDUResponse, error) {
	if len(raw) < 2 {
		return APDUResponse{}, errors.New("response too short")
	}
	return APDUResponse{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}

// BuildAPDU constructs an APDU command
func BuildAPDU(cla, ins, p1, p2 byte, data []byte, le *byte) []byte {
	cmd := []byte{cla, ins, p1, p2}

	if len(data) > 0 {
		cmd = append(cmd, byte(len(data)))
		cmd = append(cmd, data...)
	}

	if le != nil {
		cmd = append(cmd, *le)
	}

	return cmd
}

// GetUIDAPDU returns the APDU for getting the card UID
func GetUIDAPDU() []byte {
	le := byte(0x00)
	return BuildAPDU(CLAPCSC, INSGetUID, 0x00, 0x00, nil, &le)
}

// ReadBinaryAPDU returns the APDU for reading binary data.
// For Type 2 tags the page number goes in P2.
func ReadBinaryAPDU(page byte, length byte) []byte {
	return BuildAPDU(CLAPCSC, INSReadBinary, 0x00, page, nil, &length)
}

// UpdateBinaryAPDU returns the APDU for writing binary data.
// For Type 2 tags the page number goes in P2.
func UpdateBinaryAPDU(page byte, data []byte) []byte {
	return BuildAPDU(CLAPCSC, INSUpdateBin, 0x00, page, data, nil)
}

// BytesToHex converts bytes to uppercase hex string
func BytesToHex(data []byte) string {
	const hexChars = "0123456789ABCDEF"
	result := make([]byte, len(data)*2)
	for i, b := range data {
		result[i*2] = hexChars[b>>4]
		result[i*2+1] = hexChars[b&0x0F]
	}
	return string(result)
}
