package media

import (
	"errors"
	"fmt"

	pion "github.com/pion/webrtc/v4"
)

// PionEngineFactory builds transport engines on pion's ORTC API. The
// gatherer/ICE/DTLS stack supplies real local DTLS parameters for the
// connect handshake.
type PionEngineFactory struct {
	iceServers []pion.ICEServer
	policy     pion.ICETransportPolicy
}

func NewPionEngineFactory(iceServers []pion.ICEServer, forceRelay bool) *PionEngineFactory {
	policy := pion.ICETransportPolicyAll
	if forceRelay {
		policy = pion.ICETransportPolicyRelay
	}
	return &PionEngineFactory{iceServers: iceServers, policy: policy}
}

// ICEServersFromURLs is a convenience for config-driven setup.
func ICEServersFromURLs(stun []string, turn []string, turnUser, turnPass string) []pion.ICEServer {
	servers := []pion.ICEServer{{URLs: stun}}
	if len(turn) > 0 {
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   turnUser,
			Credential: turnPass,
		})
	}
	return servers
}

func (f *PionEngineFactory) NewEngine(info TransportInfo) (Engine, error) {
	api := pion.NewAPI()

	gatherer, err := api.NewICEGatherer(pion.ICEGatherOptions{
		ICEServers:      f.iceServers,
		ICEGatherPolicy: f.policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create ICE gatherer: %w", err)
	}

	ice := api.NewICETransport(gatherer)

	dtls, err := api.NewDTLSTransport(ice, nil)
	if err != nil {
		gatherer.Close()
		return nil, fmt.Errorf("create DTLS transport: %w", err)
	}

	return &pionEngine{
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
	}, nil
}

type pionEngine struct {
	gatherer *pion.ICEGatherer
	ice      *pion.ICETransport
	dtls     *pion.DTLSTransport
}

func (e *pionEngine) LocalDTLSParameters() (DTLSParameters, error) {
	params, err := e.dtls.GetLocalParameters()
	if err != nil {
		return DTLSParameters{}, fmt.Errorf("local DTLS parameters: %w", err)
	}

	fingerprints := make([]DTLSFingerprint, len(params.Fingerprints))
	for i, fp := range params.Fingerprints {
		fingerprints[i] = DTLSFingerprint{Algorithm: fp.Algorithm, Value: fp.Value}
	}

	return DTLSParameters{
		Role:         dtlsRoleString(params.Role),
		Fingerprints: fingerprints,
	}, nil
}

func (e *pionEngine) SendParameters(caps RTPCapabilities, kind string, encodings []RTPEncoding) (RTPParameters, error) {
	return buildSendParameters(caps, kind, encodings)
}

func (e *pionEngine) Close() error {
	return errors.Join(e.dtls.Stop(), e.ice.Stop(), e.gatherer.Close())
}

func dtlsRoleString(role pion.DTLSRole) string {
	switch role {
	case pion.DTLSRoleClient:
		return "client"
	case pion.DTLSRoleServer:
		return "server"
	default:
		return "auto"
	}
}
