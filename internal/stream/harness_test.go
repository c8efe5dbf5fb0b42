package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mester-live/mester-cli/internal/config"
	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/signaling"
)

const routerCapsJSON = `{"rtpCapabilities":{"codecs":[
	{"kind":"audio","mimeType":"audio/opus","clockRate":48000,"channels":2},
	{"kind":"video","mimeType":"video/VP8","clockRate":90000}
]}}`

// fakeRPC serves scripted responses and records every call. It backs
// both the session rpc surface and the media layer's Requester.
type fakeRPC struct {
	mu       sync.Mutex
	calls    []rpcCall
	emits    []rpcCall
	handlers map[string]func(payload json.RawMessage) (json.RawMessage, error)
	emitHook func(kind string)
}

type rpcCall struct {
	kind    string
	payload json.RawMessage
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{handlers: make(map[string]func(json.RawMessage) (json.RawMessage, error))}
}

func (f *fakeRPC) respond(kind, response string) {
	f.handle(kind, func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(response), nil
	})
}

func (f *fakeRPC) handle(kind string, h func(json.RawMessage) (json.RawMessage, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[kind] = h
}

func (f *fakeRPC) Request(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = encoded
	}

	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{kind: kind, payload: data})
	h := f.handlers[kind]
	f.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("unexpected request %q", kind)
	}
	return h(data)
}

func (f *fakeRPC) EmitWithAck(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	return f.Request(ctx, kind, payload)
}

func (f *fakeRPC) Emit(kind string, payload any) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = encoded
	}
	f.mu.Lock()
	f.emits = append(f.emits, rpcCall{kind: kind, payload: data})
	hook := f.emitHook
	f.mu.Unlock()
	if hook != nil {
		hook(kind)
	}
	return nil
}

func (f *fakeRPC) callKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.kind
	}
	return out
}

func (f *fakeRPC) callCount(kind string) int {
	n := 0
	for _, k := range f.callKinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeRPC) emitCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.emits {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeRPC) payloadsOf(kind string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c.payload)
		}
	}
	return out
}

// fakeBus is an in-process event registry mirroring the signaling
// client's push dispatch.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]map[int]signaling.EventHandler
	nextID   int
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]map[int]signaling.EventHandler)}
}

func (b *fakeBus) On(event string, fn signaling.EventHandler) (off func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]signaling.EventHandler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
	}
}

func (b *fakeBus) emit(event, payload string) {
	b.mu.Lock()
	list := make([]signaling.EventHandler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		list = append(list, h)
	}
	b.mu.Unlock()
	for _, h := range list {
		h(json.RawMessage(payload))
	}
}

func (b *fakeBus) handlerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}

// fakeTrack is a controllable local track.
type fakeTrack struct {
	mu      sync.Mutex
	id      string
	kind    string
	enabled bool
	stopped bool
	onEnded func()
}

func newFakeTrack(id, kind string) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, enabled: true}
}

func (t *fakeTrack) ID() string   { return t.id }
func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

func (t *fakeTrack) end() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fakeSource hands out one video and one audio track.
type fakeSource struct {
	video *fakeTrack
	audio *fakeTrack
	err   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		video: newFakeTrack("cam", media.KindVideo),
		audio: newFakeTrack("mic", media.KindAudio),
	}
}

func (s *fakeSource) Acquire(ctx context.Context) ([]media.Track, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []media.Track{s.video, s.audio}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Domain:         "test.local",
		UserID:         "user-1",
		AuthToken:      "token",
		RequestTimeout: time.Second,
		SeatCount:      5,
	}
}

// testSession wires a session from fakes with the media layer on the
// static engine.
func testSession(rpc *fakeRPC, bus *fakeBus) *Session {
	cfg := testConfig()
	device := media.NewDevice(rpc)
	tm := media.NewTransportManager(rpc, device, &media.StaticEngineFactory{
		DTLS: media.DTLSParameters{Role: "auto"},
	})
	return newSession(cfg, rpc, bus, device, tm)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}
