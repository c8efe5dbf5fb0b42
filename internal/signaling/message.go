package signaling

import (
	"encoding/json"
	"errors"
)

// Envelope frames every message on the socket, in both directions.
// A non-zero ID ties a response to the request that carried the same
// ID; server pushes and fire-and-forget emits travel with ID 0.
type Envelope struct {
	Kind    string          `json:"kind"`
	ID      uint64          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Request kinds (client -> server, single response expected).
const (
	KindGetRtpCapabilities    = "getRtpCapabilities"
	KindCreateWebRtcTransport = "createWebRtcTransport"
	KindConnectTransport      = "connectTransport"
	KindProduce               = "produce"
	KindConsume               = "consume"
	KindCreateStream          = "create-stream"
	KindJoinStream            = "join-stream"
	KindLeaveStream           = "leave-stream"
)

// Emit kinds (client -> server, inline ack or none).
const (
	KindCommentStream     = "comment-stream"
	KindLikeStream        = "like-stream"
	KindRequestSeat       = "request-seat"
	KindAcceptSeatRequest = "accept-seat-request"
	KindKickFromSeat      = "kick-from-seat"
	KindGetStreams        = "get-streams"
)

// Server-pushed events (no response expected).
const (
	EventStreamsUpdated     = "streams-updated"
	EventNewComment         = "new-comment"
	EventViewerCountUpdated = "viewer-count-updated"
	EventLikeUpdated        = "like-updated"
	EventNewProducer        = "new-producer"
	EventSeatRequest        = "seat-request"
	EventUserJoinedSeat     = "user-joined-seat"
	EventUserKickedFromSeat = "user-kicked-from-seat"
)

// Ack is the response convention shared by every RPC-style call: a
// success flag, and a reason string when the call failed.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Err returns nil for a successful ack and the server-provided reason
// otherwise.
func (a Ack) Err() error {
	if a.Success {
		return nil
	}
	if a.Error != "" {
		return errors.New(a.Error)
	}
	return errors.New("request failed")
}
