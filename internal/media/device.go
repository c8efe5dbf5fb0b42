package media

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mester-live/mester-cli/internal/signaling"
)

// Requester issues one request over the signaling socket and returns
// its single response.
type Requester interface {
	Request(ctx context.Context, kind string, payload any) (json.RawMessage, error)
}

// Device negotiates media capabilities with the router. It caches the
// server capability set after the first successful load; transports
// cannot be created before the device is loaded.
type Device struct {
	rpc Requester

	mu   sync.Mutex
	caps *RTPCapabilities
}

func NewDevice(rpc Requester) *Device {
	return &Device{rpc: rpc}
}

// Load fetches the router RTP capabilities once. Subsequent calls are
// no-ops; concurrent callers all observe the single round trip. A
// router that advertises no video codec fails the load explicitly.
func (d *Device) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.caps != nil {
		return nil
	}

	raw, err := d.rpc.Request(ctx, signaling.KindGetRtpCapabilities, nil)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}

	var resp struct {
		RTPCapabilities RTPCapabilities `json:"rtpCapabilities"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("load device: decode capabilities: %w", err)
	}

	if !resp.RTPCapabilities.HasVideo() {
		return ErrNoVideoCodec
	}

	d.caps = &resp.RTPCapabilities
	return nil
}

// Loaded reports whether capabilities have been negotiated.
func (d *Device) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps != nil
}

// RTPCapabilities returns the negotiated capability set.
func (d *Device) RTPCapabilities() (RTPCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.caps == nil {
		return RTPCapabilities{}, ErrDeviceNotLoaded
	}
	return *d.caps, nil
}
