package cmd

import (
	"context"
	"fmt"

	"github.com/mester-live/mester-cli/internal/ui"
	"github.com/spf13/cobra"
)

var streamsCmd = &cobra.Command{
	Use:     "streams",
	Aliases: []string{"ls", "list"},
	Short:   "List live streams",
	Long: `List the streams currently live on the server, with their room IDs,
viewer counts and likes.

Examples:
  mester streams
  mester streams --domain custom.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listStreams()
	},
}

func listStreams() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	session, err := ConnectSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	stopSpinner := ui.RunSpinner("Fetching streams...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	streams, pagination, err := session.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}
	stopSpinner()

	fmt.Println()
	ui.RenderStreamTable(streams)
	ui.RenderPagination(pagination)

	return nil
}

func init() {
	rootCmd.AddCommand(streamsCmd)

	addSessionFlags(streamsCmd)
}
