package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mester-live/mester-cli/internal/utils"
)

// StreamSummary is the end-of-stream report shown after a broadcast
// finishes.
type StreamSummary struct {
	Title       string
	RoomID      string
	Duration    time.Duration
	PeakViewers int
	Likes       int
	SeatsFilled int
}

// RenderStreamSummary prints the broadcast summary as a go-pretty
// table.
func RenderStreamSummary(title string, s StreamSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter

	t.AppendRows([]table.Row{
		{"Title", s.Title},
		{"Room ID", s.RoomID},
		{"Duration", utils.FormatTimeDuration(s.Duration)},
		{"Peak Viewers", utils.FormatCount(s.PeakViewers)},
		{"Likes", utils.FormatCount(s.Likes)},
		{"Seats Filled", fmt.Sprintf("%d", s.SeatsFilled)},
	})

	t.Render()
}
