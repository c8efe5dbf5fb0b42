package media

import "encoding/json"

// Media kinds, matching the strings on the wire.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// RTPCodec describes one codec advertised by the router or selected
// for a producer.
type RTPCodec struct {
	Kind       string         `json:"kind,omitempty"`
	MimeType   string         `json:"mimeType"`
	ClockRate  int            `json:"clockRate"`
	Channels   int            `json:"channels,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RTPCapabilities is the capability set negotiated with the router.
type RTPCapabilities struct {
	Codecs           []RTPCodec        `json:"codecs"`
	HeaderExtensions []json.RawMessage `json:"headerExtensions,omitempty"`
}

// HasVideo reports whether at least one video codec is advertised.
func (c RTPCapabilities) HasVideo() bool {
	for _, codec := range c.Codecs {
		if codec.Kind == KindVideo {
			return true
		}
	}
	return false
}

// CodecsFor returns the advertised codecs of one kind.
func (c RTPCapabilities) CodecsFor(kind string) []RTPCodec {
	var out []RTPCodec
	for _, codec := range c.Codecs {
		if codec.Kind == kind {
			out = append(out, codec)
		}
	}
	return out
}

// ICEParameters are the server-side ICE credentials for a transport.
type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	ICELite          bool   `json:"iceLite,omitempty"`
}

// ICECandidate is one server-advertised candidate.
type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcpType,omitempty"`
}

// DTLSFingerprint is one certificate fingerprint.
type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// DTLSParameters carry the DTLS role and fingerprints exchanged in
// the transport connect handshake.
type DTLSParameters struct {
	Role         string            `json:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

// RTPEncoding is one simulcast layer of a producer.
type RTPEncoding struct {
	RID             string `json:"rid,omitempty"`
	MaxBitrate      int    `json:"maxBitrate,omitempty"`
	ScalabilityMode string `json:"scalabilityMode,omitempty"`
}

// RTPParameters describe how a producer sends or a consumer receives.
// The orchestration layer forwards them; it never interprets the RTCP
// block.
type RTPParameters struct {
	MID       string          `json:"mid,omitempty"`
	Codecs    []RTPCodec      `json:"codecs"`
	Encodings []RTPEncoding   `json:"encodings,omitempty"`
	RTCP      json.RawMessage `json:"rtcp,omitempty"`
}

// TransportParams is the server-assigned parameter block for one
// transport.
type TransportParams struct {
	ID             string         `json:"id"`
	ICEParameters  ICEParameters  `json:"iceParameters"`
	ICECandidates  []ICECandidate `json:"iceCandidates"`
	DTLSParameters DTLSParameters `json:"dtlsParameters"`
}

// TransportInfo is the createWebRtcTransport response.
type TransportInfo struct {
	Params                 TransportParams `json:"params"`
	ProprietaryConstraints json.RawMessage `json:"proprietaryConstraints,omitempty"`
}

// SimulcastEncodings returns the three spatial layers applied to
// every video producer, ascending bitrate caps so the server can
// adapt to downstream bandwidth.
func SimulcastEncodings() []RTPEncoding {
	return []RTPEncoding{
		{RID: "r0", MaxBitrate: 100_000, ScalabilityMode: "S1T3"},
		{RID: "r1", MaxBitrate: 300_000, ScalabilityMode: "S1T3"},
		{RID: "r2", MaxBitrate: 900_000, ScalabilityMode: "S1T3"},
	}
}
