package tagauth

import (
	"encoding/hex"
	"fmt"
	"math"
)

// TagIdentity is the UID reported by the transport. It is untrusted input and
// is only used as MAC input.
type TagIdentity string

// Counter counts legitimate rewrites of one tag. 0 means "never written".
type Counter uint32

// MaxCounter is the last counter value that can be issued.
const MaxCounter Counter = math.MaxUint32

// AuthTag is a truncated HMAC-SHA256 digest.
type AuthTag []byte

// String renders the tag as lowercase hex.
func (t AuthTag) String() string {
	return hex.EncodeToString(t)
}

// TagRecord is the payload persisted on a tag.
type TagRecord struct {
	Counter Counter
	MAC     AuthTag
}

// SecretKey is the HMAC key. It formats as "[redacted]" so it cannot leak
// through logs or error messages.
type SecretKey []byte

func (SecretKey) String() string   { return "[redacted]" }
func (SecretKey) GoString() string { return "tagauth.SecretKey([redacted])" }

// Format implements fmt.Formatter so that %x and %v do not print key bytes.
func (k SecretKey) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[redacted]")
}

// Outcome is the result of verifying a tag payload.
type Outcome int

const (
	// Malformed means the payload does not follow the wire format.
	Malformed Outcome = iota
	// Authentic means the MAC matches the UID and counter.
	Authentic
	// Mismatch means the payload parsed but the MAC is wrong: probable
	// cloning or tampering.
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Authentic:
		return "authentic"
	case Mismatch:
		return "mismatch"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// State tracks a read or write operation driven by a caller.
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in-progress"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

