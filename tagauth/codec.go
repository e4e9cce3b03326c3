package tagauth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// RecordCodec converts between TagRecord and the on-tag text payload.
type RecordCodec struct {
	macSize int
}

// NewRecordCodec returns a codec expecting MACs of macSize bytes.
func NewRecordCodec(macSize int) (*RecordCodec, error) {
	if err := validateMACSize(macSize); err != nil {
		return nil, err
	}
	return &RecordCodec{macSize: macSize}, nil
}

// MACHexLen is the number of hex characters of the MAC field.
func (c *RecordCodec) MACHexLen() int {
	return c.macSize * 2
}

// Encode renders "<counter>|<mac>" with a decimal counter and lowercase hex.
func (c *RecordCodec) Encode(rec TagRecord) string {
	var sb strings.Builder
	sb.Grow(11 + len(rec.MAC)*2)
	sb.WriteString(strconv.FormatUint(uint64(rec.Counter), 10))
	sb.WriteByte(MessageSeparator)
	sb.WriteString(hex.EncodeToString(rec.MAC))
	return sb.String()
}

// Decode parses a payload. Any failure is a *MalformedRecordError.
func (c *RecordCodec) Decode(payload string) (TagRecord, error) {
	counterStr, macStr, ok := strings.Cut(payload, "|")
	if !ok {
		return TagRecord{}, &MalformedRecordError{Kind: BadFormat, Message: "missing separator"}
	}
	if strings.IndexByte(macStr, MessageSeparator) >= 0 {
		return TagRecord{}, &MalformedRecordError{Kind: BadFormat, Message: "too many fields"}
	}

	counter, err := parseCounter(counterStr)
	if err != nil {
		return TagRecord{}, err
	}

	if len(macStr) != c.MACHexLen() {
		return TagRecord{}, &MalformedRecordError{
			Kind:    BadMac,
			Message: fmt.Sprintf("got %d characters, want %d", len(macStr), c.MACHexLen()),
		}
	}
	mac, err := hex.DecodeString(macStr)
	if err != nil {
		return TagRecord{}, &MalformedRecordError{Kind: BadMac, Cause: err}
	}

	return TagRecord{Counter: counter, MAC: AuthTag(mac)}, nil
}

func parseCounter(s string) (Counter, error) {
	if s == "" {
		return 0, &MalformedRecordError{Kind: BadCounter, Message: "empty counter"}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &MalformedRecordError{Kind: BadCounter, Message: fmt.Sprintf("invalid counter %q", s), Cause: err}
	}
	return Counter(v), nil
}
