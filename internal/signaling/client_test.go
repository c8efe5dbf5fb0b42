package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testServer is a websocket endpoint that records handshakes and
// echoes through a per-connection script.
type testServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  []*websocket.Conn
	auth   []handshakeAuth
	script func(conn *websocket.Conn)
}

type handshakeAuth struct {
	userID string
	token  string
}

func newTestServer(t *testing.T, script func(conn *websocket.Conn)) *testServer {
	t.Helper()
	ts := &testServer{script: script}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.auth = append(ts.auth, handshakeAuth{
			userID: r.URL.Query().Get("userId"),
			token:  r.URL.Query().Get("token"),
		})
		ts.mu.Unlock()
		if ts.script != nil {
			ts.script(conn)
		}
	}))
	t.Cleanup(ts.Server.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) handshakes() []handshakeAuth {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]handshakeAuth(nil), ts.auth...)
}

func dialClient(t *testing.T, ts *testServer) *Client {
	t.Helper()
	client := NewClient(ts.wsURL(), Identity{UserID: "user-1", Token: "secret"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestConnectAttachesIdentityToHandshake(t *testing.T) {
	ts := newTestServer(t, nil)
	client := dialClient(t, ts)

	if !client.Connected() {
		t.Fatal("client not connected after Connect")
	}

	auth := ts.handshakes()
	if len(auth) != 1 {
		t.Fatalf("handshakes = %d, want 1", len(auth))
	}
	if auth[0].userID != "user-1" || auth[0].token != "secret" {
		t.Errorf("handshake auth = %+v", auth[0])
	}
}

func TestConnectFailsFastOnDialError(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/ws", Identity{UserID: "u", Token: "t"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected dial error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("connect retried instead of failing fast (%v)", elapsed)
	}
	if client.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", client.State())
	}
}

func TestSendAndReceiveRoundTrip(t *testing.T) {
	received := make(chan Envelope, 1)
	ts := newTestServer(t, func(conn *websocket.Conn) {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		received <- env
		// Answer with the matching correlation id.
		conn.WriteJSON(&Envelope{Kind: env.Kind, ID: env.ID, Payload: json.RawMessage(`{"ok":true}`)})
	})
	client := dialClient(t, ts)

	responses := make(chan *Envelope, 1)
	client.bindResponses(func(env *Envelope) { responses <- env })

	if err := client.Send(&Envelope{Kind: "getRtpCapabilities", ID: 7}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case env := <-received:
		if env.Kind != "getRtpCapabilities" || env.ID != 7 {
			t.Errorf("server saw %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the envelope")
	}

	select {
	case env := <-responses:
		if env.ID != 7 {
			t.Errorf("response id = %d, want 7", env.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("correlated response never dispatched")
	}
}

func TestPushEventsReachHandlers(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(&Envelope{Kind: "new-comment", Payload: json.RawMessage(`{"text":"hi"}`)})
	})

	client := NewClient(ts.wsURL(), Identity{UserID: "u", Token: "t"})
	got := make(chan json.RawMessage, 1)
	client.On("new-comment", func(payload json.RawMessage) { got <- payload })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(client.Close)

	select {
	case payload := <-got:
		if string(payload) != `{"text":"hi"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push never reached handler")
	}
}

func TestOffRemovesExactlyOneHandler(t *testing.T) {
	client := NewClient("ws://unused/ws", Identity{})

	var first, second int
	off := client.On("streams-updated", func(json.RawMessage) { first++ })
	client.On("streams-updated", func(json.RawMessage) { second++ })

	off()
	client.dispatch(&Envelope{Kind: "streams-updated"})

	if first != 0 {
		t.Errorf("removed handler ran %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining handler ran %d times, want 1", second)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t, nil)
	client := dialClient(t, ts)

	client.Close()
	client.Close()

	if client.Connected() {
		t.Error("client still connected after Close")
	}
	if err := client.Send(&Envelope{Kind: "x"}); err == nil {
		t.Error("Send after Close succeeded")
	}
}

func TestConnectAfterCloseFails(t *testing.T) {
	client := NewClient("ws://unused/ws", Identity{})
	client.Close()

	if err := client.Connect(context.Background()); err != ErrClosed {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestDisconnectFailsInFlightAndReachesErrorState(t *testing.T) {
	ts := newTestServer(t, func(conn *websocket.Conn) {
		// Kill the connection immediately after the handshake.
		conn.Close()
	})

	client := NewClient(ts.wsURL(), Identity{UserID: "u", Token: "t"})
	client.SetReconnect(0, time.Millisecond)

	states := make(chan State, 16)
	client.OnStateChange(func(s State) { states <- s })

	dropped := make(chan error, 1)
	client.bindDropped(func(err error) { dropped <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(client.Close)

	select {
	case err := <-dropped:
		if err != ErrConnectionLost {
			t.Errorf("dropped cause = %v, want ErrConnectionLost", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight requests never failed")
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-states:
			if s == StateError {
				return
			}
		case <-deadline:
			t.Fatal("client never reached error state after exhausting retries")
		}
	}
}
