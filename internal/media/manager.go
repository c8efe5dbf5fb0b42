package media

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mester-live/mester-cli/internal/signaling"
)

type createTransportRequest struct {
	RoomID    string `json:"roomId"`
	Consuming bool   `json:"consuming"`
}

type connectTransportRequest struct {
	RoomID         string         `json:"roomId"`
	TransportID    string         `json:"transportId"`
	DTLSParameters DTLSParameters `json:"dtlsParameters"`
}

type produceRequest struct {
	RoomID        string         `json:"roomId"`
	TransportID   string         `json:"transportId"`
	Kind          string         `json:"kind"`
	RTPParameters RTPParameters  `json:"rtpParameters"`
	AppData       map[string]any `json:"appData,omitempty"`
}

type produceResponse struct {
	signaling.Ack
	ProducerID string `json:"producerId"`
}

type consumeRequest struct {
	TransportID     string          `json:"transportId"`
	ProducerID      string          `json:"producerId"`
	RTPCapabilities RTPCapabilities `json:"rtpCapabilities"`
	RoomID          string          `json:"roomId"`
}

type consumeResponse struct {
	ID            string        `json:"id"`
	Kind          string        `json:"kind"`
	RTPParameters RTPParameters `json:"rtpParameters"`
}

// TransportManager creates transports and bridges their negotiation
// events back through the correlator: the connect and produce events
// a transport raises become connectTransport and produce requests.
type TransportManager struct {
	rpc     Requester
	device  *Device
	engines EngineFactory
}

func NewTransportManager(rpc Requester, device *Device, engines EngineFactory) *TransportManager {
	return &TransportManager{rpc: rpc, device: device, engines: engines}
}

// CreateSendTransport creates the outbound transport for a room.
func (m *TransportManager) CreateSendTransport(ctx context.Context, roomID string) (*Transport, error) {
	return m.create(ctx, roomID, DirectionSend)
}

// CreateRecvTransport creates the inbound transport for a room.
func (m *TransportManager) CreateRecvTransport(ctx context.Context, roomID string) (*Transport, error) {
	return m.create(ctx, roomID, DirectionRecv)
}

func (m *TransportManager) create(ctx context.Context, roomID string, dir Direction) (*Transport, error) {
	caps, err := m.device.RTPCapabilities()
	if err != nil {
		return nil, err
	}

	raw, err := m.rpc.Request(ctx, signaling.KindCreateWebRtcTransport, createTransportRequest{
		RoomID:    roomID,
		Consuming: dir == DirectionRecv,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", dir, err)
	}

	var info TransportInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("create %s transport: decode params: %w", dir, err)
	}
	if info.Params.ID == "" {
		return nil, ErrInvalidTransport
	}

	engine, err := m.engines.NewEngine(info)
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", dir, err)
	}

	t := &Transport{
		id:     info.Params.ID,
		roomID: roomID,
		dir:    dir,
		info:   info,
		caps:   caps,
		engine: engine,
		state:  TransportNew,
	}
	t.connect = m.connectBridge(t)
	if dir == DirectionSend {
		t.produce = m.produceBridge(t)
	}

	return t, nil
}

// connectBridge answers the transport's connect event by forwarding
// the DTLS parameters to the server.
func (m *TransportManager) connectBridge(t *Transport) connectFunc {
	return func(ctx context.Context, dtls DTLSParameters) error {
		raw, err := m.rpc.Request(ctx, signaling.KindConnectTransport, connectTransportRequest{
			RoomID:         t.roomID,
			TransportID:    t.id,
			DTLSParameters: dtls,
		})
		if err != nil {
			return err
		}
		var ack signaling.Ack
		if err := json.Unmarshal(raw, &ack); err != nil {
			return fmt.Errorf("decode ack: %w", err)
		}
		return ack.Err()
	}
}

// produceBridge answers the transport's produce event and completes
// it with the server-assigned producer id.
func (m *TransportManager) produceBridge(t *Transport) produceFunc {
	return func(ctx context.Context, kind string, rtp RTPParameters, appData map[string]any) (string, error) {
		raw, err := m.rpc.Request(ctx, signaling.KindProduce, produceRequest{
			RoomID:        t.roomID,
			TransportID:   t.id,
			Kind:          kind,
			RTPParameters: rtp,
			AppData:       appData,
		})
		if err != nil {
			return "", err
		}
		var resp produceResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", fmt.Errorf("decode produce response: %w", err)
		}
		if err := resp.Err(); err != nil {
			return "", err
		}
		if resp.ProducerID == "" {
			return "", fmt.Errorf("server assigned no producer id")
		}
		return resp.ProducerID, nil
	}
}

// ConsumeRemote negotiates consumption of one remote producer with
// the local capability set, then instantiates the consumer on the
// recv transport.
func (m *TransportManager) ConsumeRemote(ctx context.Context, t *Transport, producerID string) (*Consumer, error) {
	caps, err := m.device.RTPCapabilities()
	if err != nil {
		return nil, err
	}

	raw, err := m.rpc.Request(ctx, signaling.KindConsume, consumeRequest{
		TransportID:     t.ID(),
		ProducerID:      producerID,
		RTPCapabilities: caps,
		RoomID:          t.RoomID(),
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", producerID, err)
	}

	var resp consumeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("consume %s: decode response: %w", producerID, err)
	}

	return t.Consume(ctx, ConsumerOptions{
		ID:            resp.ID,
		ProducerID:    producerID,
		Kind:          resp.Kind,
		RTPParameters: resp.RTPParameters,
	})
}
