package model

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"atui/config"
)

// streamTickInterval paces viewport repaints while tokens stream in.
const streamTickInterval = 50 * time.Millisecond

// SendMessage dispatches a user message as a new turn. The command
// blocks until the turn lands, so callers pair it with StreamTick for
// live repaints.
func (m *Model) SendMessage(text string) tea.Cmd {
	controller := m.Controller
	return func() tea.Msg {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] sending message (%d chars)", len(text))
		}
		err := controller.Send(context.Background(), text)
		return TurnDoneMsg{Err: err}
	}
}

// RetryMessage re-sends a failed user message in place.
func (m *Model) RetryMessage(id int64) tea.Cmd {
	controller := m.Controller
	return func() tea.Msg {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] retrying message %d", id)
		}
		err := controller.Retry(context.Background(), id)
		return TurnDoneMsg{Err: err}
	}
}

// EditResendMessage rewrites the user message at index and sends the
// edited text as a new turn, discarding everything after it.
func (m *Model) EditResendMessage(index int, text string) tea.Cmd {
	controller := m.Controller
	return func() tea.Msg {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] edit-resend at index %d", index)
		}
		err := controller.EditResend(context.Background(), index, text)
		return TurnDoneMsg{Err: err}
	}
}

// RegenerateMessage discards the assistant message at index and asks
// again from the preceding user message.
func (m *Model) RegenerateMessage(index int) tea.Cmd {
	controller := m.Controller
	return func() tea.Msg {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] regenerating at index %d", index)
		}
		err := controller.Regenerate(context.Background(), index)
		return TurnDoneMsg{Err: err}
	}
}

// StreamTick schedules the next repaint tick. The update loop keeps
// rescheduling it while the controller is busy.
func (m *Model) StreamTick() tea.Cmd {
	return tea.Tick(streamTickInterval, func(time.Time) tea.Msg {
		return StreamTickMsg{}
	})
}

// ToastTick schedules the expiry check for the visible toast.
func (m *Model) ToastTick(after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return ToastTickMsg{}
	})
}
