package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func publishReady(rpc *fakeRPC) {
	rpc.respond("getRtpCapabilities", routerCapsJSON)
	rpc.respond("create-stream", `{"success":true}`)
	rpc.respond("createWebRtcTransport", `{"params":{"id":"transport-1"}}`)
	rpc.respond("connectTransport", `{"success":true}`)
	rpc.respond("produce", `{"success":true,"producerId":"producer-1"}`)
}

func startedPublisher(t *testing.T, rpc *fakeRPC, bus *fakeBus) (*Publisher, *fakeSource) {
	t.Helper()
	publishReady(rpc)
	source := newFakeSource()
	pub := NewPublisher(testSession(rpc, bus), source)
	if err := pub.Start(context.Background(), "My Stream"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return pub, source
}

func TestStartRejectsEmptyTitleBeforeAnyWork(t *testing.T) {
	rpc := newFakeRPC()
	source := newFakeSource()
	pub := NewPublisher(testSession(rpc, newFakeBus()), source)

	for _, title := range []string{"", "   ", "\t\n"} {
		if err := pub.Start(context.Background(), title); !errors.Is(err, ErrEmptyTitle) {
			t.Errorf("Start(%q) error = %v, want ErrEmptyTitle", title, err)
		}
	}

	if len(rpc.callKinds()) != 0 {
		t.Errorf("requests sent for empty title: %v", rpc.callKinds())
	}
	if source.video.Stopped() || source.audio.Stopped() {
		t.Error("tracks were touched for empty title")
	}
	if pub.Live() {
		t.Error("publisher live after rejected start")
	}
}

func TestStartRunsNegotiationInOrder(t *testing.T) {
	rpc := newFakeRPC()
	pub, _ := startedPublisher(t, rpc, newFakeBus())

	want := []string{
		"getRtpCapabilities",
		"create-stream",
		"createWebRtcTransport",
		"connectTransport",
		"produce",
		"produce",
	}
	got := rpc.callKinds()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("request order = %v, want %v", got, want)
	}

	if !pub.Live() {
		t.Error("publisher not live after Start")
	}
	if !strings.HasPrefix(pub.RoomID(), "room-") {
		t.Errorf("room id = %q, want room- prefix", pub.RoomID())
	}
	if pub.Title() != "My Stream" {
		t.Errorf("title = %q", pub.Title())
	}
}

func TestStartProducesVideoWithSimulcastAndAudioWithout(t *testing.T) {
	rpc := newFakeRPC()
	startedPublisher(t, rpc, newFakeBus())

	payloads := rpc.payloadsOf("produce")
	if len(payloads) != 2 {
		t.Fatalf("produce requests = %d, want 2", len(payloads))
	}

	var kinds []string
	for _, raw := range payloads {
		var req struct {
			Kind          string `json:"kind"`
			RTPParameters struct {
				Encodings []struct {
					RID        string `json:"rid"`
					MaxBitrate int    `json:"maxBitrate"`
				} `json:"encodings"`
			} `json:"rtpParameters"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("decode produce payload: %v", err)
		}
		kinds = append(kinds, req.Kind)

		switch req.Kind {
		case "video":
			if len(req.RTPParameters.Encodings) != 3 {
				t.Errorf("video encodings = %d, want 3", len(req.RTPParameters.Encodings))
			}
		case "audio":
			if len(req.RTPParameters.Encodings) != 0 {
				t.Errorf("audio encodings = %d, want 0", len(req.RTPParameters.Encodings))
			}
		}
	}

	if strings.Join(kinds, ",") != "video,audio" {
		t.Errorf("produce kinds = %v, want video then audio", kinds)
	}
}

func TestStartWhileLive(t *testing.T) {
	rpc := newFakeRPC()
	pub, _ := startedPublisher(t, rpc, newFakeBus())

	if err := pub.Start(context.Background(), "Second"); !errors.Is(err, ErrAlreadyLive) {
		t.Fatalf("Start() error = %v, want ErrAlreadyLive", err)
	}
}

func TestStartStopsTracksOnCreateStreamFailure(t *testing.T) {
	rpc := newFakeRPC()
	rpc.respond("getRtpCapabilities", routerCapsJSON)
	rpc.respond("create-stream", `{"success":false,"error":"title taken"}`)

	source := newFakeSource()
	pub := NewPublisher(testSession(rpc, newFakeBus()), source)

	err := pub.Start(context.Background(), "My Stream")
	if err == nil || !strings.Contains(err.Error(), "title taken") {
		t.Fatalf("Start() error = %v, want title taken", err)
	}

	if !source.video.Stopped() || !source.audio.Stopped() {
		t.Error("tracks not stopped after failed start")
	}
	if pub.Live() {
		t.Error("publisher live after failed start")
	}
}

func TestStopTearsDownOnce(t *testing.T) {
	rpc := newFakeRPC()
	pub, source := startedPublisher(t, rpc, newFakeBus())

	pub.Stop()
	pub.Stop()

	if pub.Live() {
		t.Error("publisher still live")
	}
	if !source.video.Stopped() || !source.audio.Stopped() {
		t.Error("tracks not stopped")
	}
	if got := rpc.emitCount("leave-stream"); got != 1 {
		t.Errorf("leave-stream emitted %d times, want 1", got)
	}
}

func TestTrackFailureEndsStream(t *testing.T) {
	rpc := newFakeRPC()
	pub, source := startedPublisher(t, rpc, newFakeBus())

	source.video.end()

	eventually(t, func() bool { return !pub.Live() }, "stream survived track failure")
}

func TestMuteTogglesTrackInPlace(t *testing.T) {
	rpc := newFakeRPC()
	pub, source := startedPublisher(t, rpc, newFakeBus())
	requests := len(rpc.callKinds())

	pub.SetAudioEnabled(false)
	pub.SetVideoEnabled(false)

	if source.audio.Enabled() || source.video.Enabled() {
		t.Error("tracks still enabled after mute")
	}

	pub.SetAudioEnabled(true)
	if !source.audio.Enabled() {
		t.Error("audio not re-enabled")
	}

	// Muting never renegotiates.
	if got := len(rpc.callKinds()); got != requests {
		t.Errorf("mute issued %d extra requests", got-requests)
	}
}

func TestSeatRequestPushInvokesCallback(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()

	var got []SeatRequest
	publishReady(rpc)
	pub := NewPublisher(testSession(rpc, bus), newFakeSource())
	pub.OnSeatRequest(func(r SeatRequest) { got = append(got, r) })
	if err := pub.Start(context.Background(), "My Stream"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	bus.emit("seat-request", `{"userId":"u1","username":"alice"}`)

	if len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("callback saw %+v", got)
	}
	if len(pub.Seats().Pending()) != 1 {
		t.Error("request not recorded as pending")
	}
}

func TestAcceptSeatConfirmsThenApplies(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()
	pub, _ := startedPublisher(t, rpc, bus)
	rpc.respond("accept-seat-request", `{"success":true}`)

	bus.emit("seat-request", `{"userId":"u1","username":"alice"}`)

	seat, err := pub.AcceptSeat(context.Background(), "u1")
	if err != nil {
		t.Fatalf("AcceptSeat() error = %v", err)
	}
	if seat != 0 {
		t.Errorf("seat = %d, want 0", seat)
	}
	if got := rpc.callCount("accept-seat-request"); got != 1 {
		t.Errorf("accept-seat-request sent %d times, want 1", got)
	}
	if pub.Seats().SeatOf("u1") != 0 {
		t.Error("accepted user not seated locally")
	}
}

func TestAcceptSeatFailsDeterministicallyWhenFull(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()
	pub, _ := startedPublisher(t, rpc, bus)

	for i := 0; i < pub.Seats().Capacity(); i++ {
		if err := pub.Seats().ApplyJoin(i, string(rune('a'+i)), "guest"); err != nil {
			t.Fatalf("ApplyJoin(%d) error = %v", i, err)
		}
	}

	bus.emit("seat-request", `{"userId":"u9","username":"late"}`)

	if _, err := pub.AcceptSeat(context.Background(), "u9"); !errors.Is(err, ErrNoSeatsAvailable) {
		t.Fatalf("AcceptSeat() error = %v, want ErrNoSeatsAvailable", err)
	}
	if got := rpc.callCount("accept-seat-request"); got != 0 {
		t.Error("accept was sent despite full table")
	}
}

func TestKickSeatConfirmsThenApplies(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()
	pub, _ := startedPublisher(t, rpc, bus)
	rpc.respond("kick-from-seat", `{"success":true}`)

	bus.emit("user-joined-seat", `{"seatNumber":2,"userId":"u1","username":"alice"}`)
	if pub.Seats().SeatOf("u1") != 2 {
		t.Fatal("join push not applied")
	}

	if err := pub.KickSeat(context.Background(), 2); err != nil {
		t.Fatalf("KickSeat() error = %v", err)
	}
	if pub.Seats().SeatOf("u1") != -1 {
		t.Error("kicked user still seated")
	}
}

func TestViewerAndLikeCountersTrackPushes(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()
	pub, _ := startedPublisher(t, rpc, bus)

	bus.emit("viewer-count-updated", `12`)
	bus.emit("viewer-count-updated", `7`)
	bus.emit("like-updated", `{"count":42,"liked":false}`)

	viewers, likes := pub.Stats()
	if viewers != 7 || likes != 42 {
		t.Errorf("stats = (%d, %d), want (7, 42)", viewers, likes)
	}
	if pub.PeakViewers() != 12 {
		t.Errorf("peak = %d, want 12", pub.PeakViewers())
	}
}

func TestSeatRequestBeforeCallbackStaysPending(t *testing.T) {
	rpc := newFakeRPC()
	bus := newFakeBus()
	pub, _ := startedPublisher(t, rpc, bus)

	// A request landing before any callback is registered must still
	// be recorded for the next repaint.
	bus.emit("seat-request", `{"userId":"u1","username":"alice"}`)

	if got := len(pub.Seats().Pending()); got != 1 {
		t.Fatalf("pending = %d, want early request recorded", got)
	}

	var seen []SeatRequest
	pub.OnSeatRequest(func(r SeatRequest) { seen = append(seen, r) })
	bus.emit("seat-request", `{"userId":"u2","username":"bob"}`)

	if len(seen) != 1 || seen[0].UserID != "u2" {
		t.Fatalf("late-registered callback saw %+v", seen)
	}
	if got := len(pub.Seats().Pending()); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
}
