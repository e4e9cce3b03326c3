package tagauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strconv"
)

const (
	// DefaultMACSize is the number of digest bytes kept on the tag.
	DefaultMACSize = 4
	// MinMACSize is the smallest accepted truncation.
	MinMACSize = 4
	// MaxMACSize keeps the whole digest.
	MaxMACSize = sha256.Size
)

// MessageSeparator joins the UID and counter in the MAC message and the
// counter and MAC in the payload.
const MessageSeparator = '|'

// MacEngine computes truncated HMAC-SHA256 tags.
type MacEngine struct {
	size int
}

// NewMacEngine returns an engine that keeps the first size digest bytes.
func NewMacEngine(size int) (*MacEngine, error) {
	if err := validateMACSize(size); err != nil {
		return nil, err
	}
	return &MacEngine{size: size}, nil
}

// Size returns the MAC length in bytes.
func (e *MacEngine) Size() int {
	return e.size
}

// Compute returns HMAC-SHA256(key, "<identity>|<counter>") truncated to
// Size bytes.
func (e *MacEngine) Compute(identity TagIdentity, counter Counter, key SecretKey) AuthTag {
	h := hmac.New(sha256.New, key)
	h.Write(macMessage(identity, counter))
	sum := h.Sum(nil)
	return AuthTag(sum[:e.size])
}

// Equal compares two tags in constant time.
func (e *MacEngine) Equal(a, b AuthTag) bool {
	return hmac.Equal(a, b)
}

func macMessage(identity TagIdentity, counter Counter) []byte {
	msg := make([]byte, 0, len(identity)+11)
	msg = append(msg, string(identity)...)
	msg = append(msg, MessageSeparator)
	return strconv.AppendUint(msg, uint64(counter), 10)
}

func validateMACSize(size int) error {
	if size < MinMACSize || size > MaxMACSize {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidMACSize, size, MinMACSize, MaxMACSize)
	}
	return nil
}
