package media

import "sync"

// Producer is a local outbound media source bound to one track and
// one send transport. It never outlives its transport.
type Producer struct {
	id        string
	kind      string
	track     Track
	transport *Transport

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func (p *Producer) ID() string   { return p.id }
func (p *Producer) Kind() string { return p.kind }
func (p *Producer) Track() Track { return p.track }

func (p *Producer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// OnClose registers the callback fired exactly once when the producer
// closes, whether by local stop, track failure, or transport close.
// Registering on an already closed producer fires the callback
// immediately.
func (p *Producer) OnClose(fn func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onClose = fn
	p.mu.Unlock()
}

// Close stops the producer. Idempotent.
func (p *Producer) Close() {
	if !p.finish() {
		return
	}
	p.transport.removeProducer(p.id)
}

// transportClosed is the teardown path driven by the owning transport;
// it skips deregistration because the transport already dropped its
// producer set.
func (p *Producer) transportClosed() {
	p.finish()
}

func (p *Producer) finish() bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.closed = true
	cb := p.onClose
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}
