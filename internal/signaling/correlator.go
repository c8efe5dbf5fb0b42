package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// wire is the slice of Client the correlator needs. Tests substitute
// an in-process implementation.
type wire interface {
	Send(env *Envelope) error
	Connected() bool
	bindResponses(fn func(*Envelope))
	bindDropped(fn func(error))
}

type result struct {
	payload json.RawMessage
	err     error
}

// Correlator turns the socket's fire-and-forget envelopes into
// awaitable request/response pairs. Every pending request resolves
// exactly once: with the response payload, with the server-provided
// error, or with a timeout. Late and duplicate responses are dropped.
type Correlator struct {
	conn    wire
	timeout time.Duration

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan result
}

// NewCorrelator binds a correlator to the client. timeout bounds each
// request; zero disables the bound and a request with no response
// waits until the caller's context expires.
func NewCorrelator(client *Client, timeout time.Duration) *Correlator {
	return newCorrelator(client, timeout)
}

func newCorrelator(conn wire, timeout time.Duration) *Correlator {
	r := &Correlator{
		conn:    conn,
		timeout: timeout,
		pending: make(map[uint64]chan result),
	}
	conn.bindResponses(r.resolve)
	conn.bindDropped(r.failAll)
	return r
}

// Request sends one request and waits for its single response. It
// fails immediately with ErrNotConnected when the socket is down,
// without transmitting anything. A response carrying an error field
// rejects with that reason. Concurrent requests may complete in any
// order.
func (r *Correlator) Request(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	if !r.conn.Connected() {
		return nil, fmt.Errorf("%s: %w", kind, ErrNotConnected)
	}

	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode payload: %w", kind, err)
		}
		data = encoded
	}

	id, ch := r.register()

	if err := r.conn.Send(&Envelope{Kind: kind, ID: id, Payload: data}); err != nil {
		r.drop(id)
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	var expired <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", kind, res.err)
		}
		return res.payload, nil
	case <-expired:
		r.drop(id)
		return nil, fmt.Errorf("%s: %w", kind, ErrTimeout)
	case <-ctx.Done():
		r.drop(id)
		return nil, fmt.Errorf("%s: %w", kind, ctx.Err())
	}
}

// EmitWithAck is a fire-and-forget emit whose inline ack callback is
// delivered as the response. On the wire it is identical to Request.
func (r *Correlator) EmitWithAck(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	return r.Request(ctx, kind, payload)
}

// Emit sends an event with no response expected.
func (r *Correlator) Emit(kind string, payload any) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode payload: %w", kind, err)
		}
		data = encoded
	}
	return r.conn.Send(&Envelope{Kind: kind, Payload: data})
}

func (r *Correlator) register() (uint64, chan result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ch := make(chan result, 1)
	r.pending[r.nextID] = ch
	return r.nextID, ch
}

// drop forgets a pending request so a late response becomes a no-op.
func (r *Correlator) drop(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

// resolve completes the pending request matching the response ID.
// Unknown IDs are responses for requests that already resolved or
// were cancelled; these are ignored.
func (r *Correlator) resolve(env *Envelope) {
	r.mu.Lock()
	ch, ok := r.pending[env.ID]
	if ok {
		delete(r.pending, env.ID)
	}
	r.mu.Unlock()

	if !ok {
		slog.Debug("dropping late response", "kind", env.Kind, "id", env.ID)
		return
	}

	if env.Error != "" {
		ch <- result{err: errors.New(env.Error)}
		return
	}
	ch <- result{payload: env.Payload}
}

// failAll rejects every in-flight request, used when the connection
// drops or the client closes.
func (r *Correlator) failAll(cause error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint64]chan result)
	r.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: cause}
	}
}
