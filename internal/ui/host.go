package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mester-live/mester-cli/internal/stream"
	"github.com/mester-live/mester-cli/internal/utils"
)

// TickMsg drives the elapsed-time readout.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// hostModel is the Bubble Tea model for the broadcasting side: live
// counters, the seat table, pending seat requests and mute toggles.
type hostModel struct {
	pub *stream.Publisher

	micOn  bool
	camOn  bool
	width  int
	notice string
}

func newHostModel(pub *stream.Publisher) *hostModel {
	return &hostModel{
		pub:   pub,
		micOn: true,
		camOn: true,
		width: 80,
	}
}

func (m *hostModel) Init() tea.Cmd {
	// One refresh on entry picks up seat requests that arrived before
	// RunHost installed the refresh callback.
	return tea.Batch(tickCmd(), func() tea.Msg { return refreshMsg{} })
}

func (m *hostModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "m":
			m.micOn = !m.micOn
			m.pub.SetAudioEnabled(m.micOn)
			return m, nil
		case "v":
			m.camOn = !m.camOn
			m.pub.SetVideoEnabled(m.camOn)
			return m, nil
		case "a":
			return m, m.acceptCmd()
		case "d":
			if pending := m.pub.Seats().Pending(); len(pending) > 0 {
				m.pub.DenySeat(pending[0].UserID)
				m.notice = MutedStyle.Render("request denied")
			}
			return m, nil
		case "1", "2", "3", "4", "5":
			seat := int(key[0]-'0') - 1
			return m, m.kickCmd(seat)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case TickMsg:
		if !m.pub.Live() {
			return m, tea.Quit
		}
		return m, tickCmd()

	case refreshMsg:
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.notice = ErrorStyle.Render(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
		} else {
			m.notice = SuccessStyle.Render(msg.action + " done")
		}
		return m, nil
	}

	return m, nil
}

func (m *hostModel) acceptCmd() tea.Cmd {
	pending := m.pub.Seats().Pending()
	if len(pending) == 0 {
		m.notice = MutedStyle.Render("no pending seat requests")
		return nil
	}
	userID := pending[0].UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		_, err := m.pub.AcceptSeat(ctx, userID)
		return actionResultMsg{action: "accept", err: err}
	}
}

func (m *hostModel) kickCmd(seat int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{action: "kick", err: m.pub.KickSeat(ctx, seat)}
	}
}

func (m *hostModel) View() string {
	var b strings.Builder

	viewers, likes := m.pub.Stats()
	elapsed := time.Duration(0)
	if !m.pub.StartedAt().IsZero() {
		elapsed = time.Since(m.pub.StartedAt())
	}

	b.WriteString(LiveBadgeStyle.Render(IconLive+" LIVE") + " " +
		BoldStyle.Render(m.pub.Title()) + "\n\n")

	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		IconTime, utils.FormatTimeDuration(elapsed),
		IconViewer, utils.FormatCount(viewers),
		IconLike, utils.FormatCount(likes),
	))

	mic := SuccessStyle.Render("on")
	if !m.micOn {
		mic = ErrorStyle.Render("muted")
	}
	cam := SuccessStyle.Render("on")
	if !m.camOn {
		cam = ErrorStyle.Render("off")
	}
	b.WriteString(fmt.Sprintf("%s mic %s   %s cam %s\n\n", IconMic, mic, IconCamera, cam))

	b.WriteString(renderSeatRow(m.pub.Seats()) + "\n")

	pending := m.pub.Seats().Pending()
	if len(pending) > 0 {
		b.WriteString("\n" + WarningStyle.Render(fmt.Sprintf("%s %d seat request(s):", IconWaiting, len(pending))) + "\n")
		for _, req := range pending {
			b.WriteString("  " + IconPeer + " " + req.Username + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}

	b.WriteString(FooterStyle.Render("a accept • d deny • 1-5 kick seat • m mic • v cam • q end stream"))

	return b.String()
}

// RunHost drives the broadcast TUI until the user ends the stream.
func RunHost(pub *stream.Publisher) error {
	model := newHostModel(pub)
	program := tea.NewProgram(model, tea.WithAltScreen())

	pub.OnSeatRequest(func(stream.SeatRequest) {
		program.Send(refreshMsg{})
	})

	_, err := program.Run()
	return err
}
