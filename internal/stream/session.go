package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mester-live/mester-cli/internal/config"
	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/signaling"
	"github.com/mester-live/mester-cli/internal/utils"
)

// rpcClient is the request/ack surface components use; the correlator
// implements it.
type rpcClient interface {
	Request(ctx context.Context, kind string, payload any) (json.RawMessage, error)
	EmitWithAck(ctx context.Context, kind string, payload any) (json.RawMessage, error)
	Emit(kind string, payload any) error
}

// eventBus is the push event surface; the signaling client implements
// it.
type eventBus interface {
	On(event string, fn signaling.EventHandler) (off func())
}

// Session owns the signaling connection and the capability-negotiated
// device for one user. Publishers and viewers are created from a
// session and share its socket; nothing else talks to the socket
// directly.
type Session struct {
	cfg    *config.Config
	client *signaling.Client
	rpc    rpcClient
	bus    eventBus
	device *media.Device
	media  *media.TransportManager
}

// NewSession wires a session from configuration. The auth identity is
// attached at socket construction time.
func NewSession(cfg *config.Config) *Session {
	client := signaling.NewClient(cfg.SocketURL, signaling.Identity{
		UserID: cfg.UserID,
		Token:  cfg.AuthToken,
	})
	client.SetReconnect(cfg.ReconnectAttempts, cfg.ReconnectDelay)

	rpc := signaling.NewCorrelator(client, cfg.RequestTimeout)
	device := media.NewDevice(rpc)

	turnUser, turnPass := cfg.GetTURNCredentials()
	engines := media.NewPionEngineFactory(media.ICEServersFromURLs(
		cfg.GetSTUNServers(), cfg.GetTURNServers(), turnUser, turnPass,
	), cfg.ForceRelay || utils.ShouldForceRelay())

	s := newSession(cfg, rpc, client, device, media.NewTransportManager(rpc, device, engines))
	s.client = client
	return s
}

// newSession assembles a session from parts; tests inject fakes here.
func newSession(cfg *config.Config, rpc rpcClient, bus eventBus, device *media.Device, tm *media.TransportManager) *Session {
	return &Session{
		cfg:    cfg,
		rpc:    rpc,
		bus:    bus,
		device: device,
		media:  tm,
	}
}

// Connect establishes the signaling socket.
func (s *Session) Connect(ctx context.Context) error {
	return s.client.Connect(ctx)
}

// Close tears the socket down. Idempotent.
func (s *Session) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// UserID returns the authenticated user id.
func (s *Session) UserID() string { return s.cfg.UserID }

// Device returns the session's capability negotiator.
func (s *Session) Device() *media.Device { return s.device }

// Client returns the underlying signaling client, nil in tests.
func (s *Session) Client() *signaling.Client { return s.client }

// ListStreams asks the server for the live stream list. get-streams
// is a fire-and-forget emit answered by a streams-updated push, so
// the call subscribes, emits, and waits for the next push.
func (s *Session) ListStreams(ctx context.Context) ([]StreamInfo, Pagination, error) {
	updates := make(chan streamsUpdatedEvent, 1)
	off := s.bus.On(signaling.EventStreamsUpdated, func(payload json.RawMessage) {
		var ev streamsUpdatedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		select {
		case updates <- ev:
		default:
		}
	})
	defer off()

	if err := s.rpc.Emit(signaling.KindGetStreams, nil); err != nil {
		return nil, Pagination{}, opErr("list streams", err)
	}

	wait := s.cfg.RequestTimeout
	if wait <= 0 {
		wait = 15 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ev := <-updates:
		return ev.Streams, ev.Pagination, nil
	case <-timer.C:
		return nil, Pagination{}, opErr("list streams", signaling.ErrTimeout)
	case <-ctx.Done():
		return nil, Pagination{}, opErr("list streams", ctx.Err())
	}
}

// leaveStream sends the best-effort leave notification; the response
// is ignored. The server reaps the membership on disconnect anyway.
func (s *Session) leaveStream(roomID string) {
	if err := s.rpc.Emit(signaling.KindLeaveStream, roomPayload{RoomID: roomID}); err != nil {
		slog.Debug("leave-stream emit failed", "room", roomID, "error", err)
	}
}
