package cmd

import (
	"os"
	"os/signal"

	"github.com/mester-live/mester-cli/internal/ui"
	"github.com/mester-live/mester-cli/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "mester",
	Short:   "Live streaming from your terminal using WebRTC",
	Long:    `Mester is a command-line client for the Mester live streaming platform. It broadcasts audio and video over WebRTC, watches live streams with real-time chat, likes and guest seats, and shares everything over a single signaling socket.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
