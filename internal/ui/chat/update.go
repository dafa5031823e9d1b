package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"chatrelay/internal/client"
	"chatrelay/internal/core"
	"chatrelay/internal/store"
)

// streamEvent is what the stream goroutine hands back to the update loop:
// either one chunk, or the final outcome of the turn.
type streamEvent struct {
	Chunk core.StreamChunk
	Err   error
	Done  bool
}

type streamEventMsg streamEvent

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 4 // header, status, input
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			saveDraft(m.input.Value())
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		// Mirror the draft on every edit so nothing is lost on exit.
		saveDraft(m.input.Value())
		return m, cmd

	case streamEventMsg:
		return m.applyStreamEvent(streamEvent(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// submit starts a turn: append the user message optimistically, kick off the
// stream goroutine, and move to Sending.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.phase == PhaseSending || m.phase == PhaseStreaming {
		return m, nil
	}
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	m.messages = append(m.messages, displayMessage{Role: store.RoleUser, Content: content})
	m.input.Reset()
	clearDraft()

	turn := make([]core.TurnMessage, 0, len(m.messages))
	for _, msg := range m.messages {
		turn = append(turn, core.TurnMessage{Role: msg.Role, Content: msg.Content})
	}

	events := make(chan streamEvent, 32)
	m.events = events
	m.err = nil
	m.assistantID = ""
	m.phase = PhaseSending
	m.refreshViewport()

	cli := m.client
	req := client.SendRequest{ChatID: m.chatID, Messages: turn}
	go func() {
		err := cli.Stream(context.Background(), req, func(chunk core.StreamChunk) error {
			events <- streamEvent{Chunk: chunk}
			return nil
		})
		events <- streamEvent{Err: err, Done: true}
		close(events)
	}()

	return m, tea.Batch(m.waitForEvent(), m.spinner.Tick)
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return streamEventMsg(ev)
	}
}

// applyStreamEvent advances the state machine: first chunk creates the
// assistant placeholder, later chunks grow it, the final event settles or
// fails the turn.
func (m Model) applyStreamEvent(ev streamEvent) (tea.Model, tea.Cmd) {
	if ev.Done {
		if ev.Err != nil {
			m.phase = PhaseErrored
			m.err = ev.Err
		} else {
			m.phase = PhaseSettled
		}
		m.events = nil
		m.refreshViewport()
		return m, nil
	}

	if m.assistantID != ev.Chunk.AssistantMessageID {
		// First record of the turn: create the placeholder the next
		// chunks will append to.
		m.assistantID = ev.Chunk.AssistantMessageID
		m.messages = append(m.messages, displayMessage{
			ID:   ev.Chunk.AssistantMessageID,
			Role: store.RoleAssistant,
		})
		m.phase = PhaseStreaming
	}

	last := len(m.messages) - 1
	m.messages[last].Content += ev.Chunk.Result
	m.refreshViewport()
	return m, m.waitForEvent()
}
