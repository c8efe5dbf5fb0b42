package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/signaling"
)

// Publisher runs the send side of a room: it owns the send transport,
// the producers for the local tracks, and the seat moderation state.
type Publisher struct {
	session *Session
	source  media.MediaSource
	seats   *SeatTable

	mu            sync.Mutex
	live          bool
	roomID        string
	title         string
	startedAt     time.Time
	tracks        []media.Track
	transport     *media.Transport
	offs          []func()
	viewerCount   int
	peakViewers   int
	likes         int
	onSeatRequest func(SeatRequest)
}

func NewPublisher(s *Session, source media.MediaSource) *Publisher {
	return &Publisher{
		session: s,
		source:  source,
		seats:   NewSeatTable(s.cfg.SeatCount),
	}
}

// OnSeatRequest registers a callback fired for every incoming seat
// request push. Safe to set at any time; requests that arrived before
// registration stay recorded in Seats().Pending().
func (p *Publisher) OnSeatRequest(fn func(SeatRequest)) {
	p.mu.Lock()
	p.onSeatRequest = fn
	p.mu.Unlock()
}

// Start goes live: it validates the title before touching media or
// the socket, acquires local tracks, announces the stream, creates
// the send transport and produces one video and one audio track.
// Any failure past media acquisition tears everything down again.
func (p *Publisher) Start(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	p.mu.Lock()
	if p.live {
		p.mu.Unlock()
		return ErrAlreadyLive
	}
	p.mu.Unlock()

	if err := p.session.device.Load(ctx); err != nil {
		return opErr("start stream", err)
	}

	tracks, err := p.source.Acquire(ctx)
	if err != nil {
		// Nothing created yet; no partial state to clean up.
		return opErr("acquire media", err)
	}

	abort := func() {
		for _, t := range tracks {
			t.Stop()
		}
	}

	roomID := "room-" + uuid.NewString()

	raw, err := p.session.rpc.Request(ctx, signaling.KindCreateStream, createStreamRequest{
		RoomID: roomID,
		Title:  title,
	})
	if err != nil {
		abort()
		return opErr("create stream", err)
	}
	var ack signaling.Ack
	if err := json.Unmarshal(raw, &ack); err != nil {
		abort()
		return opErr("create stream", err)
	}
	if err := ack.Err(); err != nil {
		abort()
		return opErr("create stream", err)
	}

	transport, err := p.session.media.CreateSendTransport(ctx, roomID)
	if err != nil {
		abort()
		return opErr("create send transport", err)
	}

	transport.OnStateChange(func(state media.TransportState) {
		if state == media.TransportFailed {
			slog.Error("send transport failed", "room", roomID)
			go p.Stop()
		}
	})

	for _, track := range tracks {
		var encodings []media.RTPEncoding
		if track.Kind() == media.KindVideo {
			encodings = media.SimulcastEncodings()
		}
		producer, err := transport.Produce(ctx, track, encodings)
		if err != nil {
			abort()
			transport.Close()
			return opErr("produce "+track.Kind(), err)
		}
		// Track failure and transport close both land here; Stop is
		// the single teardown path and tolerates re-entry.
		producer.OnClose(func() { go p.Stop() })
	}

	offs := []func(){
		p.session.bus.On(signaling.EventSeatRequest, p.handleSeatRequest),
		p.session.bus.On(signaling.EventUserJoinedSeat, p.handleSeatJoined),
		p.session.bus.On(signaling.EventUserKickedFromSeat, p.handleSeatKicked),
		p.session.bus.On(signaling.EventViewerCountUpdated, p.handleViewerCount),
		p.session.bus.On(signaling.EventLikeUpdated, p.handleLikeUpdated),
	}

	p.mu.Lock()
	p.live = true
	p.roomID = roomID
	p.title = title
	p.startedAt = time.Now()
	p.tracks = tracks
	p.transport = transport
	p.offs = offs
	p.mu.Unlock()

	slog.Info("stream started", "room", roomID, "title", title)
	return nil
}

// Stop ends the stream: stop local tracks, close the transport (which
// closes the producers) and drop the event handlers. Safe to call
// repeatedly and safe to call before Start completed.
func (p *Publisher) Stop() {
	p.mu.Lock()
	tracks := p.tracks
	transport := p.transport
	offs := p.offs
	roomID := p.roomID
	wasLive := p.live
	p.tracks = nil
	p.transport = nil
	p.offs = nil
	p.live = false
	p.mu.Unlock()

	if tracks == nil && transport == nil && offs == nil {
		return
	}

	for _, t := range tracks {
		t.Stop()
	}
	if transport != nil {
		transport.Close()
	}
	for _, off := range offs {
		off()
	}
	if wasLive {
		p.session.leaveStream(roomID)
		slog.Info("stream stopped", "room", roomID)
	}
}

// Live reports whether the stream is currently running.
func (p *Publisher) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Publisher) RoomID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomID
}

func (p *Publisher) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

// StartedAt returns when the stream went live.
func (p *Publisher) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// Stats returns the viewer and like counters from server pushes.
func (p *Publisher) Stats() (viewers, likes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewerCount, p.likes
}

// PeakViewers returns the highest viewer count seen this broadcast.
func (p *Publisher) PeakViewers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peakViewers
}

// Seats exposes the seat coordination state.
func (p *Publisher) Seats() *SeatTable { return p.seats }

// SetAudioEnabled mutes or unmutes the audio track in place.
func (p *Publisher) SetAudioEnabled(enabled bool) {
	p.setTrackEnabled(media.KindAudio, enabled)
}

// SetVideoEnabled switches the camera track on or off in place.
func (p *Publisher) SetVideoEnabled(enabled bool) {
	p.setTrackEnabled(media.KindVideo, enabled)
}

func (p *Publisher) setTrackEnabled(kind string, enabled bool) {
	p.mu.Lock()
	tracks := p.tracks
	p.mu.Unlock()
	for _, t := range tracks {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
		}
	}
}

// AcceptSeat grants a pending requester the lowest-index empty seat.
// It fails with ErrNoSeatsAvailable before contacting the server when
// the table is full.
func (p *Publisher) AcceptSeat(ctx context.Context, userID string) (int, error) {
	if p.seats.OccupiedCount() >= p.seats.Capacity() {
		return 0, ErrNoSeatsAvailable
	}

	raw, err := p.session.rpc.EmitWithAck(ctx, signaling.KindAcceptSeatRequest, acceptSeatRequest{
		RoomID: p.RoomID(),
		UserID: userID,
	})
	if err != nil {
		return 0, opErr("accept seat request", err)
	}
	var ack signaling.Ack
	if err := json.Unmarshal(raw, &ack); err != nil {
		return 0, opErr("accept seat request", err)
	}
	if err := ack.Err(); err != nil {
		return 0, opErr("accept seat request", err)
	}

	seat, err := p.seats.Accept(userID)
	if err != nil {
		return 0, opErr("accept seat request", err)
	}
	return seat, nil
}

// DenySeat drops a pending request locally. The server learns about
// it implicitly: no accept is ever sent.
func (p *Publisher) DenySeat(userID string) {
	p.seats.Deny(userID)
}

// KickSeat removes the occupant of a seat. The kicked user is
// notified by the server push, independent of who initiated the kick.
func (p *Publisher) KickSeat(ctx context.Context, seatNumber int) error {
	raw, err := p.session.rpc.EmitWithAck(ctx, signaling.KindKickFromSeat, kickFromSeatRequest{
		RoomID:     p.RoomID(),
		SeatNumber: seatNumber,
	})
	if err != nil {
		return opErr("kick from seat", err)
	}
	var ack signaling.Ack
	if err := json.Unmarshal(raw, &ack); err != nil {
		return opErr("kick from seat", err)
	}
	if err := ack.Err(); err != nil {
		return opErr("kick from seat", err)
	}

	if _, err := p.seats.ApplyKick(seatNumber); err != nil {
		return opErr("kick from seat", err)
	}
	return nil
}

func (p *Publisher) handleSeatRequest(payload json.RawMessage) {
	var ev seatRequestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	p.seats.Request(ev.UserID, ev.Username)

	p.mu.Lock()
	cb := p.onSeatRequest
	p.mu.Unlock()
	if cb != nil {
		cb(SeatRequest{UserID: ev.UserID, Username: ev.Username})
	}
}

func (p *Publisher) handleSeatJoined(payload json.RawMessage) {
	var ev seatJoinedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	if err := p.seats.ApplyJoin(ev.SeatNumber, ev.UserID, ev.Username); err != nil {
		slog.Warn("ignoring seat join push", "seat", ev.SeatNumber, "error", err)
	}
}

func (p *Publisher) handleSeatKicked(payload json.RawMessage) {
	var ev seatKickedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	if _, err := p.seats.ApplyKick(ev.SeatNumber); err != nil {
		slog.Warn("ignoring seat kick push", "seat", ev.SeatNumber, "error", err)
	}
}

func (p *Publisher) handleViewerCount(payload json.RawMessage) {
	var count int
	if err := json.Unmarshal(payload, &count); err != nil {
		return
	}
	p.mu.Lock()
	p.viewerCount = count
	if count > p.peakViewers {
		p.peakViewers = count
	}
	p.mu.Unlock()
}

func (p *Publisher) handleLikeUpdated(payload json.RawMessage) {
	var ev LikeUpdate
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	p.mu.Lock()
	p.likes = ev.Count
	p.mu.Unlock()
}
