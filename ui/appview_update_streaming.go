package ui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"atui/chat"
	"atui/config"
	appmodel "atui/model"
)

// toastDuration is how long a toast stays on the status line.
const toastDuration = 3 * time.Second

// startTurn dispatches a controller turn and starts the repaint loop.
// The first repaint lands almost immediately so the optimistic user
// bubble shows up without waiting a full tick.
func (a *AppView) startTurn(turn tea.Cmd) tea.Cmd {
	cmds := []tea.Cmd{turn, a.loadingSpinner.Tick}

	if !a.ticking {
		a.ticking = true
		cmds = append(cmds, tea.Tick(time.Millisecond, func(time.Time) tea.Msg {
			return appmodel.StreamTickMsg{}
		}))
	}

	return tea.Batch(cmds...)
}

// handleStreamTick repaints the transcript from the log while a turn is
// in flight. The loop reschedules itself until handleTurnDone clears the
// ticking flag; a tick that lands after that is dropped.
func (a AppView) handleStreamTick() (AppView, tea.Cmd) {
	if !a.ticking {
		return a, nil
	}

	a.refreshViewport(true)

	cmds := []tea.Cmd{a.dataModel.StreamTick()}
	if cmd := a.drainToast(); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// handleTurnDone runs when the blocking controller call returns. Turn
// failures live in the log and the toast queue by now; the error here is
// only ever a busy rejection or a precondition failure.
func (a AppView) handleTurnDone(msg appmodel.TurnDoneMsg) (AppView, tea.Cmd) {
	a.ticking = false

	var cmds []tea.Cmd

	if msg.Err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Chat] turn rejected: %v", msg.Err)
		}
		text := msg.Err.Error()
		if errors.Is(msg.Err, chat.ErrBusy) {
			text = "A response is already in progress"
		}
		cmds = append(cmds, a.showToastNow(chat.Toast{Message: text, Variant: chat.ToastError}))
	}

	a.refreshViewport(true)

	if cmd := a.renderPendingMarkdown(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	if cmd := a.drainToast(); cmd != nil {
		cmds = append(cmds, cmd)
	}

	// Titles and previews move after every turn.
	cmds = append(cmds, a.dataModel.FetchConversations())

	return a, tea.Batch(cmds...)
}

// handleToastTick expires the visible toast and promotes the next queued
// one, if any.
func (a AppView) handleToastTick() (AppView, tea.Cmd) {
	if next, ok := a.dataModel.Toasts.Pop(); ok {
		a.activeToast = &next
		return a, a.dataModel.ToastTick(toastDuration)
	}
	a.activeToast = nil
	return a, nil
}

// showToastNow replaces the visible toast immediately, bypassing the
// queue.
func (a *AppView) showToastNow(t chat.Toast) tea.Cmd {
	a.activeToast = &t
	return a.dataModel.ToastTick(toastDuration)
}

// drainToast promotes a queued toast when nothing is showing.
func (a *AppView) drainToast() tea.Cmd {
	if a.activeToast != nil {
		return nil
	}
	next, ok := a.dataModel.Toasts.Pop()
	if !ok {
		return nil
	}
	a.activeToast = &next
	return a.dataModel.ToastTick(toastDuration)
}
