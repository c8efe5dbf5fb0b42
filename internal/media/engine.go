package media

import "fmt"

// Engine supplies the local half of transport negotiation. One engine
// instance backs exactly one transport.
type Engine interface {
	// LocalDTLSParameters returns the local DTLS role and certificate
	// fingerprints forwarded in the connect handshake.
	LocalDTLSParameters() (DTLSParameters, error)
	// SendParameters builds the RTP parameters for a new producer of
	// the given kind from the negotiated capability set.
	SendParameters(caps RTPCapabilities, kind string, encodings []RTPEncoding) (RTPParameters, error)
	Close() error
}

// EngineFactory creates one engine per transport.
type EngineFactory interface {
	NewEngine(info TransportInfo) (Engine, error)
}

// StaticEngineFactory produces engines with a fixed local DTLS
// parameter set. It backs tests and environments without a WebRTC
// stack; production uses the pion factory.
type StaticEngineFactory struct {
	DTLS DTLSParameters
}

func (f *StaticEngineFactory) NewEngine(info TransportInfo) (Engine, error) {
	return &staticEngine{dtls: f.DTLS}, nil
}

type staticEngine struct {
	dtls DTLSParameters
}

func (e *staticEngine) LocalDTLSParameters() (DTLSParameters, error) {
	return e.dtls, nil
}

func (e *staticEngine) SendParameters(caps RTPCapabilities, kind string, encodings []RTPEncoding) (RTPParameters, error) {
	return buildSendParameters(caps, kind, encodings)
}

func (e *staticEngine) Close() error { return nil }

// buildSendParameters selects the advertised codecs of the producing
// kind and attaches the requested encodings.
func buildSendParameters(caps RTPCapabilities, kind string, encodings []RTPEncoding) (RTPParameters, error) {
	codecs := caps.CodecsFor(kind)
	if len(codecs) == 0 {
		return RTPParameters{}, fmt.Errorf("no %s codec negotiated", kind)
	}
	return RTPParameters{
		Codecs:    codecs,
		Encodings: encodings,
	}, nil
}
