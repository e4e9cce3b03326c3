package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of NFC error for programmatic handling.
type ErrorCode int

const (
	// Transport errors (100-199)
	ErrCodeTransportUnavailable ErrorCode = iota + 100
	ErrCodeSessionBusy
	ErrCodeNotSupported
)

const (
	// Tag operation errors (200-299)
	ErrCodeNoTagPresent ErrorCode = iota + 200
	ErrCodeNoPayload
	ErrCodeReadFailed
	ErrCodeWriteRejected
	ErrCodeTagRemoved
)

// NFCError provides structured error information for programmatic handling.
type NFCError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "ReadTag", "WriteTag")
	TagUID  string // Optional: UID of tag involved
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *NFCError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.TagUID != "" {
		sb.WriteString(" (tag ")
		sb.WriteString(e.TagUID)
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *NFCError) Unwrap() error {
	return e.Cause
}

func (e *NFCError) Is(target error) bool {
	if t, ok := target.(*NFCError); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is matching by code.
var (
	ErrTransportUnavailable = &NFCError{Code: ErrCodeTransportUnavailable, Message: "transport unavailable"}
	ErrSessionBusy          = &NFCError{Code: ErrCodeSessionBusy, Message: "session busy"}
	ErrNoTagPresent         = &NFCError{Code: ErrCodeNoTagPresent, Message: "no tag present"}
	ErrNoPayload            = &NFCError{Code: ErrCodeNoPayload, Message: "no payload"}
	ErrWriteRejected        = &NFCError{Code: ErrCodeWriteRejected, Message: "write rejected"}
)

// NewTransportUnavailableError creates an error for when no reader can be opened.
func NewTransportUnavailableError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeTransportUnavailable,
		Op:      op,
		Message: "transport unavailable",
		Cause:   cause,
	}
}

// NewSessionBusyError creates an error for a session opened while another is active.
func NewSessionBusyError(op string) *NFCError {
	return &NFCError{
		Code:    ErrCodeSessionBusy,
		Op:      op,
		Message: "another session is in progress",
	}
}

// NewNotSupportedError creates an error for unsupported operations.
func NewNotSupportedError(op string) *NFCError {
	return &NFCError{
		Code:    ErrCodeNotSupported,
		Op:      op,
		Message: "operation not supported",
	}
}

// NewNoTagPresentError creates an error for a poll that found no tag in time.
func NewNoTagPresentError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeNoTagPresent,
		Op:      op,
		Message: "no tag present",
		Cause:   cause,
	}
}

// NewNoPayloadError creates an error for a tag that carries no text record.
func NewNoPayloadError(op, tagUID string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeNoPayload,
		Op:      op,
		TagUID:  tagUID,
		Message: "tag has no payload",
		Cause:   cause,
	}
}

// NewReadError creates an error for read failures.
func NewReadError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeReadFailed,
		Op:      op,
		Message: "read failed",
		Cause:   cause,
	}
}

// NewWriteRejectedError creates an error for a write the tag did not accept.
func NewWriteRejectedError(op, tagUID string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeWriteRejected,
		Op:      op,
		TagUID:  tagUID,
		Message: "write rejected",
		Cause:   cause,
	}
}

// NewTagRemovedError creates an error for when a tag is removed mid-operation.
func NewTagRemovedError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeTagRemoved,
		Op:      op,
		Message: "tag removed during operation",
		Cause:   cause,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code == code
	}
	return false
}

// IsTransportUnavailable reports whether no reader could be opened.
func IsTransportUnavailable(err error) bool {
	return hasCode(err, ErrCodeTransportUnavailable)
}

// IsSessionBusy reports whether another session held the reader.
func IsSessionBusy(err error) bool {
	return hasCode(err, ErrCodeSessionBusy)
}

// IsNoTagPresent reports whether polling timed out without a tag.
func IsNoTagPresent(err error) bool {
	return hasCode(err, ErrCodeNoTagPresent)
}

// IsNoPayload reports whether the tag had no readable text record.
func IsNoPayload(err error) bool {
	return hasCode(err, ErrCodeNoPayload)
}

// IsWriteRejected reports whether the tag refused a write.
func IsWriteRejected(err error) bool {
	return hasCode(err, ErrCodeWriteRejected)
}

// IsNotSupportedError checks if an error indicates an unsupported operation.
func IsNotSupportedError(err error) bool {
	return hasCode(err, ErrCodeNotSupported)
}

// IsTagRemovedError checks if an error indicates the tag was removed.
func IsTagRemovedError(err error) bool {
	if err == nil {
		return false
	}
	if hasCode(err, ErrCodeTagRemoved) {
		return true
	}
	// libnfc and pcsclite only report removal as text
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tag removed") ||
		strings.Contains(errStr, "tag lost") ||
		strings.Contains(errStr, "target was removed") ||
		strings.Contains(errStr, "card was removed")
}

// GetErrorCode extracts the ErrorCode from an error if it's an NFCError.
// Returns 0 if the error is not an NFCError.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}

// Errorf creates an NFCError with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...interface{}) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}
