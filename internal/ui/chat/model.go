// Package chat is the terminal chat view: an input line, a scrolling message
// list, and a reader that applies the relay's token stream to the last
// assistant message as it arrives.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/google/uuid"

	"chatrelay/internal/client"
)

// Phase is the explicit send-cycle state. The "last message might be a
// placeholder" condition is a named state here, not something inferred from
// the message list.
type Phase int

const (
	PhaseIdle      Phase = iota // ready for input, nothing in flight
	PhaseSending                // request sent, no token received yet
	PhaseStreaming              // placeholder exists, tokens arriving
	PhaseSettled                // last turn completed
	PhaseErrored                // last turn failed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	case PhaseErrored:
		return "error"
	}
	return "unknown"
}

// displayMessage is one rendered entry of the conversation.
type displayMessage struct {
	ID      string
	Role    string
	Content string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	client *client.Client
	chatID string

	phase       Phase
	messages    []displayMessage
	assistantID string // id of the in-flight placeholder, set by the first chunk

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	err    error
	events chan streamEvent
}

// New builds the chat model. chatID may be empty, in which case a fresh
// conversation id is minted; history, when present, seeds the message list.
func New(c *client.Client, chatID string, history []client.Message) Model {
	if chatID == "" {
		chatID = uuid.NewString()
	}

	input := textinput.New()
	input.Placeholder = "Send a message..."
	input.Focus()
	input.CharLimit = 4096
	// An unsent draft survives a restart.
	input.SetValue(loadDraft())

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		client:  c,
		chatID:  chatID,
		phase:   PhaseIdle,
		input:   input,
		spinner: sp,
	}
	for _, msg := range history {
		m.messages = append(m.messages, displayMessage{
			ID:      msg.ID,
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return m
}

// Phase exposes the current send-cycle state, mostly for tests.
func (m Model) CurrentPhase() Phase { return m.phase }

// ChatID returns the conversation id this view is bound to.
func (m Model) ChatID() string { return m.chatID }
