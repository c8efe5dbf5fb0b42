package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "live.mester.app"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // no TURN relay unless configured
	DefaultTURNUser = "mester"
	DefaultTURNPass = ""

	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultRequestTimeout    = 15 * time.Second
	DefaultSeatCount         = 5
)

// Config holds application configuration
type Config struct {
	// Domain is the signaling server domain
	Domain string

	// SocketURL is constructed from domain
	SocketURL string

	// Auth identity attached to the socket handshake
	UserID    string
	AuthToken string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Reconnection policy for the signaling socket
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// RequestTimeout bounds every signaling round trip. Zero disables
	// the bound, matching a server that is trusted to always respond.
	RequestTimeout time.Duration

	// ForceRelay restricts ICE gathering to TURN relay candidates
	ForceRelay bool

	// SeatCount is the number of guest seats per room
	SeatCount int
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	UserID     string
	AuthToken  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("MESTER_DOMAIN"), DefaultDomain)
	userID := firstNonEmpty(opts.UserID, os.Getenv("MESTER_USER_ID"))
	token := firstNonEmpty(opts.AuthToken, os.Getenv("MESTER_TOKEN"))

	if userID == "" || token == "" {
		return nil, fmt.Errorf("missing credentials: set MESTER_USER_ID and MESTER_TOKEN or pass --user/--token")
	}

	cfg := &Config{
		Domain:            domain,
		SocketURL:         fmt.Sprintf("wss://%s/ws", domain),
		UserID:            userID,
		AuthToken:         token,
		STUNServer:        firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:        firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:          firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:          firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		ForceRelay:        opts.ForceRelay || envBool("MESTER_FORCE_RELAY"),
		ReconnectAttempts: envInt("MESTER_RECONNECT_ATTEMPTS", DefaultReconnectAttempts),
		ReconnectDelay:    envDuration("MESTER_RECONNECT_DELAY", DefaultReconnectDelay),
		RequestTimeout:    envDuration("MESTER_REQUEST_TIMEOUT", DefaultRequestTimeout),
		SeatCount:         envInt("MESTER_SEAT_COUNT", DefaultSeatCount),
	}

	return cfg, nil
}

// GetStreamLink returns the webapp URL for a room ID
func (c *Config) GetStreamLink(roomID string) string {
	return fmt.Sprintf("https://%s/stream/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string) bool {
	if raw, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return false
}

func envInt(key string, fallback int) int {
	if raw, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
