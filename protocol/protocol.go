// Package protocol provides the WebSocket message types of the tag
// authenticator. It is importable by clients without pulling in server,
// transport or key handling code.
package protocol

import "time"

// Request message types
const (
	WSTypeVerifyRequest    = "verifyRequest"
	WSTypeProvisionRequest = "provisionRequest"
	WSTypeIssueRequest     = "issueRequest"
	WSTypeRewriteRequest   = "rewriteRequest"
	WSTypeWriteNextRequest = "writeNextRequest"
	WSTypeComputeRequest   = "computeRequest"
	WSTypeStatusRequest    = "statusRequest"
)

// Response and broadcast message types
const (
	WSTypeVerifyResponse  = "verifyResponse"
	WSTypeIssueResponse   = "issueResponse"
	WSTypeComputeResponse = "computeResponse"
	WSTypeStatusResponse  = "statusResponse"
	WSTypeSnapshot        = "snapshot"
	WSTypeError           = "error"
)

// Verification outcomes as reported in VerifyResponsePayload.Outcome
const (
	OutcomeAuthentic = "AUTHENTIC"
	OutcomeMismatch  = "MISMATCH"
	OutcomeMalformed = "MALFORMED"
)

// Error codes carried in the payload of error responses
const (
	ErrCodeCounterOverflow      = "COUNTER_OVERFLOW"
	ErrCodeTransportUnavailable = "TRANSPORT_UNAVAILABLE"
	ErrCodeNoTagPresent         = "NO_TAG_PRESENT"
	ErrCodeNoPayload            = "NO_PAYLOAD"
	ErrCodeWriteRejected        = "WRITE_REJECTED"
	ErrCodeSessionBusy          = "SESSION_BUSY"
	ErrCodeNotVerified          = "NOT_VERIFIED"
	ErrCodeKeyUnavailable       = "KEY_UNAVAILABLE"
	ErrCodeTagRemoved           = "TAG_REMOVED"
	ErrCodeReadFailed           = "READ_FAILED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeParseError           = "PARSE_ERROR"
	ErrCodeUnknownType          = "UNKNOWN_TYPE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// WebSocketMessage is the envelope of server broadcasts.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is for incoming requests from WebSocket clients.
type WebSocketRequest struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebSocketResponse is for responses to WebSocket requests.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IssueRequestPayload is the payload of issueRequest.
type IssueRequestPayload struct {
	PreviousCounter uint32 `json:"previousCounter"`
}

// ComputeRequestPayload is the payload of computeRequest.
type ComputeRequestPayload struct {
	UID     string `json:"uid"`
	Counter uint32 `json:"counter"`
}

// VerifyResponsePayload is the payload of verifyResponse.
type VerifyResponsePayload struct {
	UID     string `json:"uid"`
	Payload string `json:"payload"`
	Outcome string `json:"outcome"`
	Counter uint32 `json:"counter"`
	MAC     string `json:"mac,omitempty"`
	// Reason explains a MALFORMED outcome.
	Reason string `json:"reason,omitempty"`
}

// IssueResponsePayload is the payload of issueResponse. It answers
// provisionRequest, issueRequest, rewriteRequest and writeNextRequest.
type IssueResponsePayload struct {
	UID     string `json:"uid"`
	Payload string `json:"payload"`
	Counter uint32 `json:"counter"`
	MAC     string `json:"mac"`
}

// ComputeResponsePayload is the payload of computeResponse.
type ComputeResponsePayload struct {
	UID     string `json:"uid"`
	Counter uint32 `json:"counter"`
	MAC     string `json:"mac"`
	Payload string `json:"payload"`
}

// ErrorPayload is the payload of error responses.
type ErrorPayload struct {
	Code string `json:"code"`
	// Outcome is set for NOT_VERIFIED errors.
	Outcome string `json:"outcome,omitempty"`
}

// SnapshotPayload is the status of the last operation, broadcast as
// snapshot and returned by statusRequest and GET /api/v1/status.
type SnapshotPayload struct {
	Status    string    `json:"status"`
	Operation string    `json:"operation,omitempty"`
	UID       string    `json:"uid,omitempty"`
	Counter   uint32    `json:"counter"`
	MAC       string    `json:"mac,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusResponsePayload is the payload of statusResponse.
type StatusResponsePayload struct {
	Snapshot   SnapshotPayload `json:"snapshot"`
	ReaderBusy bool            `json:"readerBusy"`
	Devices    []string        `json:"devices"`
	MACSize    int             `json:"macSize"`
	Version    string          `json:"version"`
}
