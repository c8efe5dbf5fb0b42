package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/signaling"
)

// StreamState is the viewer-visible room state, rebuilt from the
// join-stream snapshot and kept current by server pushes.
type StreamState struct {
	Comments    []Comment
	Likes       int
	Liked       bool
	ViewerCount int
}

type newProducerEvent struct {
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

// Viewer joins one room on the receive side: it owns the recv
// transport, one consumer per remote producer, and the projected
// room state for display.
type Viewer struct {
	session *Session
	sinks   map[string]media.Sink
	seats   *SeatTable

	mu        sync.Mutex
	joined    bool
	roomID    string
	transport *media.Transport
	offs      []func()
	state     StreamState
	pending   []newProducerEvent
	onChange  func()
}

// NewViewer creates a viewer that plays incoming media through the
// given sinks, keyed by track kind. Kinds without a sink are still
// consumed, just not rendered.
func NewViewer(s *Session, sinks map[string]media.Sink) *Viewer {
	return &Viewer{
		session: s,
		sinks:   sinks,
		seats:   NewSeatTable(s.cfg.SeatCount),
	}
}

// OnChange registers a callback fired after every state mutation.
// Set it before Join; it runs on the socket read goroutine.
func (v *Viewer) OnChange(fn func()) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Join enters a room: it negotiates the recv transport, joins the
// room to obtain the snapshot and the producer list, subscribes to
// the room's pushes, and consumes every announced producer in the
// order the server listed them.
func (v *Viewer) Join(ctx context.Context, roomID string) error {
	v.mu.Lock()
	if v.joined {
		v.mu.Unlock()
		return ErrAlreadyJoined
	}
	v.mu.Unlock()

	if err := v.session.device.Load(ctx); err != nil {
		return opErr("join stream", err)
	}

	transport, err := v.session.media.CreateRecvTransport(ctx, roomID)
	if err != nil {
		return opErr("join stream", err)
	}

	transport.OnStateChange(func(state media.TransportState) {
		if state == media.TransportFailed {
			slog.Error("recv transport failed", "room", roomID)
			go v.Leave()
		}
	})

	raw, err := v.session.rpc.Request(ctx, signaling.KindJoinStream, roomPayload{RoomID: roomID})
	if err != nil {
		transport.Close()
		return opErr("join stream", err)
	}
	var resp joinStreamResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		transport.Close()
		return opErr("join stream", err)
	}
	if err := resp.Err(); err != nil {
		transport.Close()
		return opErr("join stream", err)
	}

	// The snapshot must be in place before the pushes are subscribed:
	// a push racing the consume loop then appends to it instead of
	// being overwritten by it.
	v.mu.Lock()
	v.state = StreamState{
		Comments:    resp.StreamData.Comments,
		Likes:       resp.StreamData.Likes,
		ViewerCount: resp.StreamData.ViewerCount,
	}
	v.pending = nil
	v.mu.Unlock()

	offs := []func(){
		v.session.bus.On(signaling.EventNewComment, v.handleNewComment),
		v.session.bus.On(signaling.EventViewerCountUpdated, v.handleViewerCount),
		v.session.bus.On(signaling.EventLikeUpdated, v.handleLikeUpdated),
		v.session.bus.On(signaling.EventNewProducer, v.handleNewProducer),
		v.session.bus.On(signaling.EventUserJoinedSeat, v.handleSeatJoined),
		v.session.bus.On(signaling.EventUserKickedFromSeat, v.handleSeatKicked),
	}

	for _, producerID := range resp.ProducerIDs {
		consumer, err := v.session.media.ConsumeRemote(ctx, transport, producerID)
		if err != nil {
			for _, off := range offs {
				off()
			}
			transport.Close()
			v.mu.Lock()
			v.state = StreamState{}
			v.pending = nil
			v.mu.Unlock()
			return opErr("join stream", err)
		}
		v.attach(consumer)
	}

	v.mu.Lock()
	v.joined = true
	v.roomID = roomID
	v.transport = transport
	v.offs = offs
	v.mu.Unlock()

	slog.Info("joined stream", "room", roomID, "producers", len(resp.ProducerIDs))
	v.notify()
	return nil
}

// Leave exits the room: unsubscribe the pushes, close the transport
// (which closes the consumers) and notify the server best-effort.
// Safe to call repeatedly.
func (v *Viewer) Leave() {
	v.mu.Lock()
	transport := v.transport
	offs := v.offs
	roomID := v.roomID
	wasJoined := v.joined
	v.transport = nil
	v.offs = nil
	v.joined = false
	v.mu.Unlock()

	if !wasJoined {
		return
	}

	for _, off := range offs {
		off()
	}
	if transport != nil {
		transport.Close()
	}
	v.session.leaveStream(roomID)
	slog.Info("left stream", "room", roomID)
}

// Joined reports whether the viewer is currently in a room.
func (v *Viewer) Joined() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.joined
}

func (v *Viewer) RoomID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.roomID
}

// State returns a copy of the current room state.
func (v *Viewer) State() StreamState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Comments = append([]Comment(nil), v.state.Comments...)
	return s
}

// Seats exposes the room's seat projection.
func (v *Viewer) Seats() *SeatTable { return v.seats }

// PendingProducers lists producers announced after join that have
// not been consumed yet.
func (v *Viewer) PendingProducers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.pending))
	for i, ev := range v.pending {
		out[i] = ev.ProducerID
	}
	return out
}

// ConsumeProducer consumes one producer announced after join.
func (v *Viewer) ConsumeProducer(ctx context.Context, producerID string) error {
	v.mu.Lock()
	transport := v.transport
	for i, ev := range v.pending {
		if ev.ProducerID == producerID {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			break
		}
	}
	v.mu.Unlock()

	if transport == nil {
		return opErr("consume producer", media.ErrTransportClosed)
	}
	consumer, err := v.session.media.ConsumeRemote(ctx, transport, producerID)
	if err != nil {
		return opErr("consume producer", err)
	}
	v.attach(consumer)
	return nil
}

// Comment posts a chat message; the authoritative entry arrives back
// as a new-comment push.
func (v *Viewer) Comment(ctx context.Context, text string) error {
	raw, err := v.session.rpc.EmitWithAck(ctx, signaling.KindCommentStream, commentRequest{
		RoomID:  v.RoomID(),
		Comment: text,
	})
	if err != nil {
		return opErr("comment", err)
	}
	var ack signaling.Ack
	if err := json.Unmarshal(raw, &ack); err != nil {
		return opErr("comment", err)
	}
	if err := ack.Err(); err != nil {
		return opErr("comment", err)
	}
	return nil
}

// Like toggles this user's like on the room and applies the acked
// totals immediately.
func (v *Viewer) Like(ctx context.Context) error {
	raw, err := v.session.rpc.EmitWithAck(ctx, signaling.KindLikeStream, roomPayload{RoomID: v.RoomID()})
	if err != nil {
		return opErr("like", err)
	}
	var ack struct {
		signaling.Ack
		LikeUpdate
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return opErr("like", err)
	}
	if err := ack.Err(); err != nil {
		return opErr("like", err)
	}

	v.mu.Lock()
	v.state.Likes = ack.Count
	v.state.Liked = ack.Liked
	v.mu.Unlock()
	v.notify()
	return nil
}

// RequestSeat asks the host for a seat. Whether it is granted arrives
// later as a user-joined-seat push.
func (v *Viewer) RequestSeat(ctx context.Context) error {
	raw, err := v.session.rpc.EmitWithAck(ctx, signaling.KindRequestSeat, roomPayload{RoomID: v.RoomID()})
	if err != nil {
		return opErr("request seat", err)
	}
	var ack seatRequestAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return opErr("request seat", err)
	}
	if err := ack.Err(); err != nil {
		return opErr("request seat", err)
	}
	return nil
}

func (v *Viewer) attach(c *media.Consumer) {
	sink := v.sinks[c.Kind()]
	if sink == nil {
		return
	}
	if err := sink.Attach(c); err != nil {
		slog.Warn("sink attach failed", "kind", c.Kind(), "consumer", c.ID(), "error", err)
	}
}

func (v *Viewer) notify() {
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (v *Viewer) handleNewComment(payload json.RawMessage) {
	var c Comment
	if err := json.Unmarshal(payload, &c); err != nil {
		return
	}
	v.mu.Lock()
	v.state.Comments = append(v.state.Comments, c)
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) handleViewerCount(payload json.RawMessage) {
	var count int
	if err := json.Unmarshal(payload, &count); err != nil {
		return
	}
	v.mu.Lock()
	v.state.ViewerCount = count
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) handleLikeUpdated(payload json.RawMessage) {
	var ev LikeUpdate
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	v.mu.Lock()
	v.state.Likes = ev.Count
	v.state.Liked = ev.Liked
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) handleNewProducer(payload json.RawMessage) {
	var ev newProducerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	v.mu.Lock()
	v.pending = append(v.pending, ev)
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) handleSeatJoined(payload json.RawMessage) {
	var ev seatJoinedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	if err := v.seats.ApplyJoin(ev.SeatNumber, ev.UserID, ev.Username); err != nil {
		slog.Warn("ignoring seat join push", "seat", ev.SeatNumber, "error", err)
		return
	}
	v.notify()
}

func (v *Viewer) handleSeatKicked(payload json.RawMessage) {
	var ev seatKickedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	if _, err := v.seats.ApplyKick(ev.SeatNumber); err != nil {
		slog.Warn("ignoring seat kick push", "seat", ev.SeatNumber, "error", err)
		return
	}
	v.notify()
}
