package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Direction scopes a transport to one media direction.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// TransportState follows new -> connecting -> connected | failed -> closed.
// Closed is terminal; a new transport must be created for a new attempt.
type TransportState string

const (
	TransportNew        TransportState = "new"
	TransportConnecting TransportState = "connecting"
	TransportConnected  TransportState = "connected"
	TransportFailed     TransportState = "failed"
	TransportClosed     TransportState = "closed"
)

// connectFunc forwards local DTLS parameters to the server. Installed
// by the manager; it must resolve exactly once per transport.
type connectFunc func(ctx context.Context, dtls DTLSParameters) error

// produceFunc announces a new producer to the server and returns the
// server-assigned producer id.
type produceFunc func(ctx context.Context, kind string, rtp RTPParameters, appData map[string]any) (string, error)

// Transport is one negotiated media connection, direction-scoped. It
// owns its producers (send) or consumers (recv); closing the
// transport cascades to all of them.
type Transport struct {
	id     string
	roomID string
	dir    Direction
	info   TransportInfo
	caps   RTPCapabilities
	engine Engine

	connect connectFunc
	produce produceFunc

	connOnce sync.Once
	connErr  error

	mu        sync.Mutex
	state     TransportState
	onState   func(TransportState)
	producers map[string]*Producer
	consumers map[string]*Consumer
}

func (t *Transport) ID() string           { return t.id }
func (t *Transport) RoomID() string       { return t.roomID }
func (t *Transport) Direction() Direction { return t.dir }

// Info returns the server-assigned transport parameters.
func (t *Transport) Info() TransportInfo { return t.info }

func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnStateChange registers the state transition callback. At most one;
// the lifecycle controller owns the transport.
func (t *Transport) OnStateChange(fn func(TransportState)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

func (t *Transport) setState(s TransportState) {
	t.mu.Lock()
	if t.state == TransportClosed && s != TransportClosed {
		t.mu.Unlock()
		return
	}
	t.state = s
	cb := t.onState
	t.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// ensureConnected runs the DTLS connect handshake at most once, before
// the first produce or consume. Exactly one of the two completion
// paths fires: success moves the transport to connected, failure moves
// it to failed and closes it.
func (t *Transport) ensureConnected(ctx context.Context) error {
	if t.State() == TransportClosed {
		return ErrTransportClosed
	}

	t.connOnce.Do(func() {
		t.setState(TransportConnecting)

		dtls, err := t.engine.LocalDTLSParameters()
		if err == nil {
			err = t.connect(ctx, dtls)
		}
		if err != nil {
			t.connErr = fmt.Errorf("connect transport %s: %w", t.id, err)
			t.setState(TransportFailed)
			t.Close()
			return
		}
		t.setState(TransportConnected)
	})

	return t.connErr
}

// Produce creates a producer for a local track on a send transport.
// Video producers should pass SimulcastEncodings; audio passes nil.
func (t *Transport) Produce(ctx context.Context, track Track, encodings []RTPEncoding) (*Producer, error) {
	if t.dir != DirectionSend {
		return nil, ErrWrongDirection
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}

	params, err := t.engine.SendParameters(t.caps, track.Kind(), encodings)
	if err != nil {
		return nil, fmt.Errorf("produce %s: %w", track.Kind(), err)
	}

	appData := map[string]any{"roomId": t.roomID}
	id, err := t.produce(ctx, track.Kind(), params, appData)
	if err != nil {
		return nil, fmt.Errorf("produce %s: %w", track.Kind(), err)
	}

	p := &Producer{
		id:        id,
		kind:      track.Kind(),
		track:     track,
		transport: t,
	}

	t.mu.Lock()
	if t.state == TransportClosed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if t.producers == nil {
		t.producers = make(map[string]*Producer)
	}
	t.producers[id] = p
	t.mu.Unlock()

	// Local source failure closes the producer the same way a
	// transport close would.
	track.OnEnded(func() {
		slog.Warn("local track ended", "producer", id, "kind", p.kind)
		p.Close()
	})

	return p, nil
}

// Consume creates a consumer for a remote producer on a recv
// transport, using parameters already negotiated with the server.
func (t *Transport) Consume(ctx context.Context, opts ConsumerOptions) (*Consumer, error) {
	if t.dir != DirectionRecv {
		return nil, ErrWrongDirection
	}
	if err := t.ensureConnected(ctx); err != nil {
		return nil, err
	}

	c := &Consumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		kind:       opts.Kind,
		rtp:        opts.RTPParameters,
		transport:  t,
	}

	t.mu.Lock()
	if t.state == TransportClosed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if t.consumers == nil {
		t.consumers = make(map[string]*Consumer)
	}
	t.consumers[c.id] = c
	t.mu.Unlock()

	return c, nil
}

// Producers returns the live producers owned by this transport.
func (t *Transport) Producers() []*Producer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Producer, 0, len(t.producers))
	for _, p := range t.producers {
		out = append(out, p)
	}
	return out
}

// Consumers returns the live consumers owned by this transport.
func (t *Transport) Consumers() []*Consumer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Consumer, 0, len(t.consumers))
	for _, c := range t.consumers {
		out = append(out, c)
	}
	return out
}

// Close is terminal and idempotent. It closes every owned producer
// and consumer and releases the engine.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.state == TransportClosed {
		t.mu.Unlock()
		return
	}
	t.state = TransportClosed
	cb := t.onState
	producers := t.producers
	consumers := t.consumers
	t.producers = nil
	t.consumers = nil
	t.mu.Unlock()

	for _, p := range producers {
		p.transportClosed()
	}
	for _, c := range consumers {
		c.transportClosed()
	}
	if err := t.engine.Close(); err != nil {
		slog.Debug("engine close", "transport", t.id, "error", err)
	}
	if cb != nil {
		cb(TransportClosed)
	}
}

func (t *Transport) removeProducer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.producers, id)
}

func (t *Transport) removeConsumer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.consumers, id)
}
