package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/utils"
)

const (
	maxVisibleComments = 12
	actionTimeout      = 10 * time.Second
)

// refreshMsg is sent from stream callbacks whenever room state moved.
type refreshMsg struct{}

// actionResultMsg carries the outcome of an async room action.
type actionResultMsg struct {
	action string
	err    error
}

// watchModel is the Bubble Tea model for watching a stream: live
// comment feed, seat row, like and viewer counters, and a comment
// input line.
type watchModel struct {
	viewer *stream.Viewer
	input  textinput.Model

	width  int
	height int
	notice string
}

func newWatchModel(viewer *stream.Viewer) *watchModel {
	input := textinput.New()
	input.Placeholder = "Say something..."
	input.Prompt = IconComment + " "
	input.CharLimit = 200

	return &watchModel{
		viewer: viewer,
		input:  input,
		width:  80,
		height: 24,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return nil
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.input.Focused() {
			switch msg.String() {
			case "esc":
				m.input.Blur()
				return m, nil
			case "enter":
				text := strings.TrimSpace(m.input.Value())
				m.input.Reset()
				m.input.Blur()
				if text == "" {
					return m, nil
				}
				return m, m.commentCmd(text)
			case "ctrl+c":
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.input.Focus()
			return m, textinput.Blink
		case "l":
			return m, m.likeCmd()
		case "s":
			return m, m.seatCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4

	case refreshMsg:
		// View reads live state; nothing to carry over.
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.notice = ErrorStyle.Render(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
		} else {
			m.notice = MutedStyle.Render(msg.action + " sent")
		}
		return m, nil
	}

	return m, nil
}

func (m *watchModel) commentCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "comment", err: m.viewer.Comment(ctx, text)}
	}
}

func (m *watchModel) likeCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "like", err: m.viewer.Like(ctx)}
	}
}

func (m *watchModel) seatCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "seat request", err: m.viewer.RequestSeat(ctx)}
	}
}

func (m *watchModel) View() string {
	state := m.viewer.State()

	var b strings.Builder

	likeIcon := IconLike
	if state.Liked {
		likeIcon = SuccessStyle.Render(IconLike)
	}
	header := HeaderStyle.Render(fmt.Sprintf("%s Watching %s  %s %s  %s %s",
		IconStream, m.viewer.RoomID(),
		IconViewer, utils.FormatCount(state.ViewerCount),
		likeIcon, utils.FormatCount(state.Likes),
	))
	b.WriteString(header + "\n\n")

	comments := state.Comments
	if len(comments) > maxVisibleComments {
		comments = comments[len(comments)-maxVisibleComments:]
	}
	if len(comments) == 0 {
		b.WriteString(MutedStyle.Render("No comments yet") + "\n")
	}
	for _, c := range comments {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			MutedStyle.Render(utils.FormatTimestamp(c.Timestamp)),
			CommentUserStyle.Render(c.UserName+":"),
			c.Text,
		))
	}

	b.WriteString("\n" + renderSeatRow(m.viewer.Seats()) + "\n")

	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	if m.input.Focused() {
		b.WriteString("\n" + m.input.View() + "\n")
		b.WriteString(FooterStyle.Render("enter send • esc cancel"))
	} else {
		b.WriteString(FooterStyle.Render("c comment • l like • s request seat • q quit"))
	}

	return b.String()
}

func renderSeatRow(seats *stream.SeatTable) string {
	var parts []string
	for i, occ := range seats.Snapshot() {
		if occ == nil {
			parts = append(parts, SeatEmptyStyle.Render(fmt.Sprintf("%s %d: empty", IconSeat, i+1)))
		} else {
			parts = append(parts, SeatFilledStyle.Render(fmt.Sprintf("%s %d: %s", IconSeat, i+1,
				utils.TruncateString(occ.Username, 12))))
		}
	}
	return strings.Join(parts, "  ")
}

// RunWatch drives the watch TUI until the user quits.
func RunWatch(viewer *stream.Viewer) error {
	model := newWatchModel(viewer)
	program := tea.NewProgram(model, tea.WithAltScreen())

	viewer.OnChange(func() {
		program.Send(refreshMsg{})
	})

	_, err := program.Run()
	return err
}
