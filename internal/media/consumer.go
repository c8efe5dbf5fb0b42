package media

import "sync"

// ConsumerOptions are the server-negotiated parameters for one
// consumer.
type ConsumerOptions struct {
	ID            string
	ProducerID    string
	Kind          string
	RTPParameters RTPParameters
}

// Consumer is a local inbound media sink bound to one remote producer
// and one recv transport.
type Consumer struct {
	id         string
	producerID string
	kind       string
	rtp        RTPParameters
	transport  *Transport

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func (c *Consumer) ID() string                   { return c.id }
func (c *Consumer) ProducerID() string           { return c.producerID }
func (c *Consumer) Kind() string                 { return c.kind }
func (c *Consumer) RTPParameters() RTPParameters { return c.rtp }

func (c *Consumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OnClose registers the callback fired exactly once on close.
// Registering on an already closed consumer fires the callback
// immediately.
func (c *Consumer) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = fn
	c.mu.Unlock()
}

// Close stops the consumer. Idempotent.
func (c *Consumer) Close() {
	if !c.finish() {
		return
	}
	c.transport.removeConsumer(c.id)
}

func (c *Consumer) transportClosed() {
	c.finish()
}

func (c *Consumer) finish() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	cb := c.onClose
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}
