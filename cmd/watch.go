package cmd

import (
	"context"
	"fmt"

	"github.com/mester-live/mester-cli/internal/media"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/ui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <room-id>",
	Aliases: []string{"w", "join"},
	Short:   "Watch a live stream",
	Long: `Join a live stream as a viewer: receive the broadcaster's audio and
video, follow the chat, like the stream and request a guest seat.

Examples:
  mester watch room-1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed
  mester watch room-1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchStream(args[0])
	},
}

func watchStream(roomID string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	session, err := ConnectSession(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	viewer := stream.NewViewer(session, playbackSinks())

	stopSpinner := ui.RunSpinner("Joining stream...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := viewer.Join(ctx, roomID); err != nil {
		return fmt.Errorf("join stream: %w", err)
	}
	stopSpinner()

	err = ui.RunWatch(viewer)
	viewer.Leave()
	return err
}

// playbackSinks maps track kinds to their playback. The terminal has
// no video surface, so video is consumed without rendering; audio
// sinks start playing on attach.
func playbackSinks() map[string]media.Sink {
	return map[string]media.Sink{
		media.KindAudio: media.SinkFunc(func(c *media.Consumer) error {
			return nil
		}),
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addSessionFlags(watchCmd)
}
