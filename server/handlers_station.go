package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nedpals/davi-tagauth/buildinfo"
	"github.com/nedpals/davi-tagauth/protocol"
	"github.com/nedpals/davi-tagauth/station"
	"github.com/nedpals/davi-tagauth/tagauth"
)

// StationHandler exposes station operations over WebSocket and broadcasts
// every status change.
type StationHandler struct {
	station *station.Station
}

// NewStationHandler creates a new station handler.
func NewStationHandler(st *station.Station) *StationHandler {
	return &StationHandler{station: st}
}

// Register implements ServerHandler interface.
func (h *StationHandler) Register(server HandlerServer) {
	server.Handle(protocol.WSTypeVerifyRequest, h.handleVerify)
	server.Handle(protocol.WSTypeProvisionRequest, h.handleProvision)
	server.Handle(protocol.WSTypeIssueRequest, h.handleIssue)
	server.Handle(protocol.WSTypeRewriteRequest, h.handleRewrite)
	server.Handle(protocol.WSTypeWriteNextRequest, h.handleWriteNext)
	server.Handle(protocol.WSTypeComputeRequest, h.handleCompute)
	server.Handle(protocol.WSTypeStatusRequest, h.handleStatus)

	server.StartLifecycle(func(ctx context.Context) {
		updates, cancel := h.station.Subscribe()
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-updates:
					if !ok {
						return
					}
					server.Broadcast(protocol.WebSocketMessage{
						Type:    protocol.WSTypeSnapshot,
						Payload: snapshotPayload(snap),
					})
				}
			}
		}()
	})
}

func (h *StationHandler) handleVerify(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	res, err := h.station.Read(ctx)
	if err != nil {
		return h.sendError(client, req.ID, err)
	}

	payload := protocol.VerifyResponsePayload{
		UID:     res.UID,
		Payload: res.Payload,
		Outcome: outcomeCode(res.Outcome),
	}
	if res.Outcome == tagauth.Malformed {
		payload.Reason = res.DecodeErr.Error()
	} else {
		payload.Counter = uint32(res.Record.Counter)
		payload.MAC = res.Record.MAC.String()
	}
	return client.SendResponse(req.ID, protocol.WSTypeVerifyResponse, payload)
}

func (h *StationHandler) handleProvision(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	return h.respondIssued(client, req.ID)(h.station.Provision(ctx))
}

func (h *StationHandler) handleIssue(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	if _, ok := req.Payload["previousCounter"]; !ok {
		return client.SendError(req.ID, protocol.ErrorPayload{Code: protocol.ErrCodeInvalidRequest}, "previousCounter is required")
	}
	var issueReq protocol.IssueRequestPayload
	if err := decodePayload(req.Payload, &issueReq); err != nil {
		log.Printf("Failed to parse issue request: %v", err)
		return client.SendError(req.ID, protocol.ErrorPayload{Code: protocol.ErrCodeInvalidRequest}, "Failed to parse issue request")
	}
	return h.respondIssued(client, req.ID)(h.station.Issue(ctx, tagauth.Counter(issueReq.PreviousCounter)))
}

func (h *StationHandler) handleRewrite(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	return h.respondIssued(client, req.ID)(h.station.Rewrite(ctx))
}

func (h *StationHandler) handleWriteNext(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	return h.respondIssued(client, req.ID)(h.station.WriteNext(ctx))
}

func (h *StationHandler) handleCompute(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	var computeReq protocol.ComputeRequestPayload
	if err := decodePayload(req.Payload, &computeReq); err != nil {
		log.Printf("Failed to parse compute request: %v", err)
		return client.SendError(req.ID, protocol.ErrorPayload{Code: protocol.ErrCodeInvalidRequest}, "Failed to parse compute request")
	}
	uid, err := protocol.NormalizeUID(computeReq.UID)
	if err != nil {
		return client.SendError(req.ID, protocol.ErrorPayload{Code: protocol.ErrCodeInvalidRequest}, err.Error())
	}

	rec, err := h.station.Expected(uid, tagauth.Counter(computeReq.Counter))
	if err != nil {
		return h.sendError(client, req.ID, err)
	}
	return client.SendResponse(req.ID, protocol.WSTypeComputeResponse, protocol.ComputeResponsePayload{
		UID:     uid,
		Counter: uint32(rec.Counter),
		MAC:     rec.MAC.String(),
		Payload: h.station.Encode(rec),
	})
}

func (h *StationHandler) handleStatus(ctx context.Context, client *Client, req protocol.WebSocketRequest) error {
	return client.SendResponse(req.ID, protocol.WSTypeStatusResponse, h.status())
}

func (h *StationHandler) status() protocol.StatusResponsePayload {
	devices, err := h.station.Devices()
	if err != nil {
		log.Printf("Failed to list NFC devices: %v", err)
	}
	if devices == nil {
		devices = []string{}
	}
	return protocol.StatusResponsePayload{
		Snapshot:   snapshotPayload(h.station.Snapshot()),
		ReaderBusy: h.station.ReaderBusy(),
		Devices:    devices,
		MACSize:    h.station.MACSize(),
		Version:    buildinfo.FullVersion(),
	}
}

// respondIssued sends the result of a write operation.
func (h *StationHandler) respondIssued(client *Client, requestID string) func(station.Result, error) error {
	return func(res station.Result, err error) error {
		if err != nil {
			return h.sendError(client, requestID, err)
		}
		return client.SendResponse(requestID, protocol.WSTypeIssueResponse, protocol.IssueResponsePayload{
			UID:     res.UID,
			Payload: res.Payload,
			Counter: uint32(res.Record.Counter),
			MAC:     res.Record.MAC.String(),
		})
	}
}

// sendError reports err to the client and returns it for logging.
func (h *StationHandler) sendError(client *Client, requestID string, err error) error {
	if sendErr := client.SendError(requestID, errorPayload(err), err.Error()); sendErr != nil {
		return fmt.Errorf("sending error response: %w", sendErr)
	}
	return err
}

// decodePayload converts a generic request payload into a typed struct.
func decodePayload(payload map[string]any, v any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(payloadBytes, v)
}
