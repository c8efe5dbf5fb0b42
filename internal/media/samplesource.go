package media

import (
	"context"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const sampleInterval = 33 * time.Millisecond

// SampleSource synthesizes one video and one audio track backed by
// pion sample tracks. It stands in for camera and microphone capture
// when publishing from the CLI.
type SampleSource struct{}

func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

func (s *SampleSource) Acquire(ctx context.Context) ([]Track, error) {
	video, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000},
		"video", "mester-cam",
	)
	if err != nil {
		return nil, err
	}

	audio, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "mester-mic",
	)
	if err != nil {
		return nil, err
	}

	return []Track{newSampleTrack(video), newSampleTrack(audio)}, nil
}

// sampleTrack pumps blank samples into a pion local track until
// stopped. A write failure counts as the source dying and fires the
// ended callback.
type sampleTrack struct {
	local *pion.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
	stop    chan struct{}
}

func newSampleTrack(local *pion.TrackLocalStaticSample) *sampleTrack {
	t := &sampleTrack{
		local:   local,
		enabled: true,
		stop:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *sampleTrack) run() {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if !t.Enabled() {
				continue
			}
			sample := media.Sample{Data: []byte{0x00}, Duration: sampleInterval}
			if err := t.local.WriteSample(sample); err != nil {
				t.fireEnded()
				return
			}
		}
	}
}

func (t *sampleTrack) ID() string { return t.local.ID() }

func (t *sampleTrack) Kind() string { return t.local.Kind().String() }

func (t *sampleTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *sampleTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *sampleTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	close(t.stop)
}

func (t *sampleTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

func (t *sampleTrack) fireEnded() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	cb := t.onEnded
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}
