package server

import (
	"errors"
	"strings"

	"github.com/nedpals/davi-tagauth/nfc"
	"github.com/nedpals/davi-tagauth/protocol"
	"github.com/nedpals/davi-tagauth/station"
	"github.com/nedpals/davi-tagauth/tagauth"
)

// errorPayload maps an operation error to the code clients switch on.
func errorPayload(err error) protocol.ErrorPayload {
	var notVerified *station.NotVerifiedError
	switch {
	case errors.As(err, &notVerified):
		p := protocol.ErrorPayload{Code: protocol.ErrCodeNotVerified}
		if notVerified.UID != "" {
			p.Outcome = outcomeCode(notVerified.Outcome)
		}
		return p
	case errors.Is(err, station.ErrKeyUnavailable):
		return protocol.ErrorPayload{Code: protocol.ErrCodeKeyUnavailable}
	case errors.Is(err, tagauth.ErrCounterOverflow):
		return protocol.ErrorPayload{Code: protocol.ErrCodeCounterOverflow}
	}

	switch nfc.GetErrorCode(err) {
	case nfc.ErrCodeTransportUnavailable:
		return protocol.ErrorPayload{Code: protocol.ErrCodeTransportUnavailable}
	case nfc.ErrCodeSessionBusy:
		return protocol.ErrorPayload{Code: protocol.ErrCodeSessionBusy}
	case nfc.ErrCodeNoTagPresent:
		return protocol.ErrorPayload{Code: protocol.ErrCodeNoTagPresent}
	case nfc.ErrCodeNoPayload:
		return protocol.ErrorPayload{Code: protocol.ErrCodeNoPayload}
	case nfc.ErrCodeWriteRejected:
		return protocol.ErrorPayload{Code: protocol.ErrCodeWriteRejected}
	case nfc.ErrCodeTagRemoved:
		return protocol.ErrorPayload{Code: protocol.ErrCodeTagRemoved}
	case nfc.ErrCodeReadFailed:
		return protocol.ErrorPayload{Code: protocol.ErrCodeReadFailed}
	}
	return protocol.ErrorPayload{Code: protocol.ErrCodeInternalError}
}

func outcomeCode(o tagauth.Outcome) string {
	switch o {
	case tagauth.Authentic:
		return protocol.OutcomeAuthentic
	case tagauth.Mismatch:
		return protocol.OutcomeMismatch
	default:
		return protocol.OutcomeMalformed
	}
}

func snapshotPayload(snap station.Snapshot) protocol.SnapshotPayload {
	return protocol.SnapshotPayload{
		Status:    snap.State.String(),
		Operation: string(snap.Operation),
		UID:       snap.UID,
		Counter:   uint32(snap.Counter),
		MAC:       snap.MAC,
		Outcome:   strings.ToUpper(snap.Outcome),
		Message:   snap.Message,
		Error:     snap.Error,
		UpdatedAt: snap.Time,
	}
}
