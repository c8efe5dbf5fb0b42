package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mester-live/mester-cli/internal/config"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagDomain   string
	flagUser     string
	flagToken    string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

const connectTimeout = 30 * time.Second

// addSessionFlags registers the flags every networked command shares.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	cmd.Flags().StringVar(&flagUser, "user", "", "User ID (or MESTER_USER_ID)")
	cmd.Flags().StringVar(&flagToken, "token", "", "Auth token (or MESTER_TOKEN)")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}

func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:     flagDomain,
		UserID:     flagUser,
		AuthToken:  flagToken,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// ConnectSession dials the signaling server with a spinner and
// returns a connected session.
func ConnectSession(cfg *config.Config) (*stream.Session, error) {
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()

	session := stream.NewSession(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	stopSpinner()
	return session, nil
}
