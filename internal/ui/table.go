package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/utils"
)

// StreamTable renders the live stream listing using lipgloss/table
type StreamTable struct {
	streams []stream.StreamInfo
}

func NewStreamTable(streams []stream.StreamInfo) *StreamTable {
	return &StreamTable{streams: streams}
}

// View renders the table as a string
func (t *StreamTable) View() string {
	if len(t.streams) == 0 {
		return MutedStyle.Render("No live streams right now")
	}

	headers := []string{"#", "Title", "Room ID", "Viewers", "Likes"}

	var rows [][]string
	for i, s := range t.streams {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			utils.TruncateString(s.Title, 40),
			utils.TruncateString(s.RoomID, 42),
			utils.FormatCount(s.ViewerCount),
			utils.FormatCount(s.Likes),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderStreamTable(streams []stream.StreamInfo) {
	fmt.Println(NewStreamTable(streams).View())
}

// RenderPagination prints the listing page footer.
func RenderPagination(p stream.Pagination) {
	if p.Total == 0 {
		return
	}
	fmt.Println(MutedStyle.Render(fmt.Sprintf("Page %d • %d streams total", p.Page, p.Total)))
}

// StreamInfoBox shows the room id and shareable link after going live.
type StreamInfoBox struct {
	Title      string
	RoomID     string
	StreamLink string
}

func (b *StreamInfoBox) View() string {
	content := fmt.Sprintf("%s You are live!\n\n%s Title:      %s\n%s Room ID:    %s\n%s Watch Link: %s",
		IconLive,
		IconStream, BoldStyle.Render(b.Title),
		IconCopy, BoldStyle.Foreground(Primary).Render(b.RoomID),
		IconLink, MutedStyle.Render(b.StreamLink),
	)
	return SuccessBoxStyle.Render(content)
}

func RenderStreamInfo(title, roomID, link string) {
	fmt.Println((&StreamInfoBox{Title: title, RoomID: roomID, StreamLink: link}).View())
}
