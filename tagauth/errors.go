package tagauth

import (
	"errors"
	"strings"
)

// MalformedKind says which part of a payload failed to parse.
type MalformedKind int

const (
	// BadFormat: no separator, or more than two parts.
	BadFormat MalformedKind = iota + 1
	// BadCounter: the counter is not a decimal uint32.
	BadCounter
	// BadMac: the MAC is not exactly the expected number of hex characters.
	BadMac
)

func (k MalformedKind) String() string {
	switch k {
	case BadFormat:
		return "bad format"
	case BadCounter:
		return "bad counter"
	case BadMac:
		return "bad mac"
	default:
		return "malformed"
	}
}

// MalformedRecordError reports a payload that does not follow the
// "<counter>|<mac>" wire format.
type MalformedRecordError struct {
	Kind    MalformedKind
	Message string
	Cause   error
}

func (e *MalformedRecordError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed record: ")
	sb.WriteString(e.Kind.String())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Cause
}

// Is matches any *MalformedRecordError with the same Kind, so callers can
// write errors.Is(err, tagauth.ErrBadCounter).
func (e *MalformedRecordError) Is(target error) bool {
	if t, ok := target.(*MalformedRecordError); ok {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrBadFormat  = &MalformedRecordError{Kind: BadFormat}
	ErrBadCounter = &MalformedRecordError{Kind: BadCounter}
	ErrBadMac     = &MalformedRecordError{Kind: BadMac}

	// ErrCounterOverflow is returned by Issue when the previous counter is
	// already MaxCounter. The tag must be re-provisioned.
	ErrCounterOverflow = errors.New("tagauth: counter overflow, tag must be re-provisioned")

	// ErrInvalidMACSize is returned for a MAC size outside [MinMACSize, MaxMACSize].
	ErrInvalidMACSize = errors.New("tagauth: invalid MAC size")
)

// IsMalformed reports whether err is a *MalformedRecordError.
func IsMalformed(err error) bool {
	var mErr *MalformedRecordError
	return errors.As(err, &mErr)
}

// MalformedKindOf returns the kind of a malformed record error, or 0.
func MalformedKindOf(err error) MalformedKind {
	var mErr *MalformedRecordError
	if errors.As(err, &mErr) {
		return mErr.Kind
	}
	return 0
}
