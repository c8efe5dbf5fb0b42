package main

import (
	"github.com/mester-live/mester-cli/cmd"
	"github.com/mester-live/mester-cli/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
