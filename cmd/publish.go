package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/ui"
	"github.com/spf13/cobra"
)

var flagTitle string

var publishCmd = &cobra.Command{
	Use:     "publish",
	Aliases: []string{"live", "go-live"},
	Short:   "Start a live stream",
	Long: `Start broadcasting a live stream. The stream gets a fresh room,
viewers can join via the watch link, comment, like, and request one
of the guest seats.

Examples:
  mester publish --title "Morning show"
  mester publish -T "Q&A" --domain custom.example.com
  mester publish -T "Road trip" --relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishStream(flagTitle)
	},
}

func publishStream(title string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	session, err := ConnectSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	pub := stream.NewPublisher(session, media.NewSampleSource())

	stopSpinner := ui.RunSpinner("Going live...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := pub.Start(ctx, title); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	stopSpinner()

	ui.RenderStreamInfo(pub.Title(), pub.RoomID(), cfg.GetStreamLink(pub.RoomID()))
	fmt.Println()

	if err := ui.RunHost(pub); err != nil {
		pub.Stop()
		return err
	}

	summary := ui.StreamSummary{
		Title:       pub.Title(),
		RoomID:      pub.RoomID(),
		Duration:    time.Since(pub.StartedAt()),
		PeakViewers: pub.PeakViewers(),
		SeatsFilled: pub.Seats().OccupiedCount(),
	}
	_, summary.Likes = pub.Stats()

	pub.Stop()

	fmt.Println()
	ui.RenderStreamSummary("📊 Stream Summary", summary)

	return nil
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVarP(&flagTitle, "title", "T", "", "Stream title (required)")
	addSessionFlags(publishCmd)
}
