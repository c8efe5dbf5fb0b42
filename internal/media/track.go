package media

import "context"

// Track is a local media source bound to at most one producer.
type Track interface {
	ID() string
	// Kind is "audio" or "video".
	Kind() string
	// SetEnabled mutes or unmutes the track without renegotiation.
	SetEnabled(enabled bool)
	Enabled() bool
	// Stop releases the underlying source. Stopping a track does not
	// fire OnEnded; that callback is reserved for the source failing
	// on its own.
	Stop()
	// OnEnded registers the callback fired when the source dies
	// unexpectedly (the hardware analog of a trackended event).
	OnEnded(fn func())
}

// MediaSource acquires local tracks for publishing.
type MediaSource interface {
	Acquire(ctx context.Context) ([]Track, error)
}

// Sink receives a consumer's media for playback. Audio sinks are
// expected to start playing on attach.
type Sink interface {
	Attach(c *Consumer) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(c *Consumer) error

func (f SinkFunc) Attach(c *Consumer) error { return f(c) }
