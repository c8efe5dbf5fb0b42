package stream

import (
	"github.com/mester-live/mester-cli/internal/signaling"
)

// Comment is one entry of a room's append-only comment log.
type Comment struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// StreamData is the room snapshot returned by join-stream.
type StreamData struct {
	Comments    []Comment `json:"comments"`
	Likes       int       `json:"likes"`
	ViewerCount int       `json:"viewerCount"`
}

// StreamInfo is one row of the stream listing.
type StreamInfo struct {
	RoomID      string `json:"roomId"`
	Title       string `json:"title"`
	ViewerCount int    `json:"viewerCount"`
	Likes       int    `json:"likes"`
}

// Pagination accompanies the stream listing.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type createStreamRequest struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

type joinStreamResponse struct {
	signaling.Ack
	ProducerIDs []string   `json:"producerIds"`
	StreamData  StreamData `json:"streamData"`
}

type commentRequest struct {
	RoomID  string `json:"roomId"`
	Comment string `json:"comment"`
}

type seatRequestAck struct {
	signaling.Ack
	Username string `json:"username,omitempty"`
}

type acceptSeatRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type kickFromSeatRequest struct {
	RoomID     string `json:"roomId"`
	SeatNumber int    `json:"seatNumber"`
}

type streamsUpdatedEvent struct {
	Streams    []StreamInfo `json:"streams"`
	Pagination Pagination   `json:"pagination"`
}

// LikeUpdate is the like-updated push: the room total plus whether
// the receiving user has liked.
type LikeUpdate struct {
	Count int  `json:"count"`
	Liked bool `json:"liked"`
}

type seatRequestEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type seatJoinedEvent struct {
	SeatNumber int    `json:"seatNumber"`
	UserID     string `json:"userId"`
	Username   string `json:"username"`
}

type seatKickedEvent struct {
	SeatNumber int    `json:"seatNumber"`
	UserID     string `json:"userId"`
}
