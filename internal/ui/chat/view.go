package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chatrelay/internal/store"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	statusStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("chatrelay"))
	b.WriteString(statusStyle.Render("  chat " + shortID(m.chatID)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString("> " + m.input.View())
	return b.String()
}

func (m Model) statusLine() string {
	switch m.phase {
	case PhaseSending:
		return m.spinner.View() + statusStyle.Render(" waiting for reply...")
	case PhaseStreaming:
		return m.spinner.View() + statusStyle.Render(" streaming...")
	case PhaseErrored:
		if m.err != nil {
			return errorStyle.Render("error: " + m.err.Error())
		}
		return errorStyle.Render("error")
	default:
		return statusStyle.Render("enter to send, esc to quit")
	}
}

// refreshViewport re-renders the conversation and keeps the view pinned to
// the newest message while tokens stream in.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case store.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n" + msg.Content)
		case store.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant") + "\n" + msg.Content)
		default:
			b.WriteString(statusStyle.Render(msg.Role) + "\n" + msg.Content)
		}
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
