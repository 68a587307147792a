package ui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"atui/chat"
	"atui/config"
	appmodel "atui/model"
)

// pingTickMsg schedules the next backend reachability probe.
type pingTickMsg struct{}

const pingInterval = 30 * time.Second

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// Animate the waiting spinner while a turn is in flight.
	if a.dataModel.Controller.Busy() {
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		// Reserve space for title (1), separator (1), textarea (3) and
		// the status line (1).
		a.viewport.Width = a.width
		a.viewport.Height = a.height - 6
		a.textarea.SetWidth(a.width)
		a.ready = true

		// Cached renders carry the old width.
		a.rendered = make(map[int64]renderedMarkdown)
		a.refreshViewport(true)
		return a, a.renderPendingMarkdown()

	case tea.KeyMsg:
		// PRIORITY 0: quit works everywhere
		if msg.String() == a.keys.quit || msg.String() == "ctrl+c" {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] quit requested")
			}
			a.dataModel.Quitting = true
			a.dataModel.Controller.Stop()
			return a, tea.Quit
		}

		// PRIORITY 1: modal toggle shortcuts (close current modal, open new one)
		switch msg.String() {
		case a.keys.help:
			wasOpen := a.showHelp
			a.closeAllModals()
			a.showHelp = !wasOpen
			return a, nil

		case a.keys.switcher:
			wasOpen := a.showSwitcher
			a.closeAllModals()
			a.showSwitcher = !wasOpen
			if a.showSwitcher {
				a.selectedConvIdx = 0
				for i, c := range a.dataModel.Conversations {
					if c.ID == a.dataModel.Log.ConversationID() {
						a.selectedConvIdx = i
						break
					}
				}
				return a, a.dataModel.FetchConversations()
			}
			return a, nil

		case a.keys.search:
			wasOpen := a.showSearch
			a.closeAllModals()
			a.showSearch = !wasOpen
			if a.showSearch {
				a.searchInput.Focus()
				a.searchInput.SetValue("")
				a.searchLocal = nil
				a.searchGlobal = nil
				a.selectedSearchIdx = 0
				a.searchScrollIdx = 0
				return a, textinput.Blink
			}
			return a, nil

		case a.keys.newChat:
			a.closeAllModals()
			a.dataModel.NewChat()
			a.rendered = make(map[int64]renderedMarkdown)
			a.highlightedID = 0
			a.textarea.Reset()
			a.refreshViewport(true)
			return a, nil
		}

		// PRIORITY 2: modal-specific key handling
		if a.showHelp {
			if msg.String() == "esc" || msg.String() == a.keys.closeModal {
				a.showHelp = false
			}
			return a, nil
		}

		if a.showEditModal {
			return a.handleEditModalKeys(msg)
		}

		if a.showSwitcher {
			return a.handleSwitcherKeys(msg)
		}

		if a.showSearch {
			return a.handleSearchKeys(msg)
		}

		// PRIORITY 3: chat actions in the main view
		a.highlightedID = 0

		switch msg.String() {
		case a.keys.stopGeneration:
			if a.dataModel.Controller.Busy() {
				a.dataModel.Controller.Stop()
				a.refreshViewport(true)
			}
			return a, nil

		case "esc":
			if a.dataModel.Controller.Busy() {
				a.dataModel.Controller.Stop()
				a.refreshViewport(true)
			}
			return a, nil

		case a.keys.retryFailed:
			id, ok := a.lastFailedUserID()
			if !ok {
				cmd = a.showToastNow(chat.Toast{Message: "No failed message to retry", Variant: chat.ToastInfo})
				return a, cmd
			}
			if a.dataModel.Controller.Busy() {
				cmd = a.showToastNow(chat.Toast{Message: "A response is already in progress", Variant: chat.ToastInfo})
				return a, cmd
			}
			cmd = a.startTurn(a.dataModel.RetryMessage(id))
			return a, cmd

		case a.keys.regenerate:
			idx, ok := a.lastAssistantIndex()
			if !ok {
				return a, nil
			}
			if a.dataModel.Controller.Busy() {
				cmd = a.showToastNow(chat.Toast{Message: "A response is already in progress", Variant: chat.ToastInfo})
				return a, cmd
			}
			cmd = a.startTurn(a.dataModel.RegenerateMessage(idx))
			return a, cmd

		case a.keys.editResend:
			idx, content, ok := a.lastUserMessage()
			if !ok {
				return a, nil
			}
			if a.dataModel.Controller.Busy() {
				cmd = a.showToastNow(chat.Toast{Message: "A response is already in progress", Variant: chat.ToastInfo})
				return a, cmd
			}
			a.showEditModal = true
			a.editTargetIndex = idx
			a.editInput.SetValue(content)
			a.editInput.Focus()
			return a, textarea.Blink

		case a.keys.yankResponse:
			content := a.dataModel.LastAssistantContent()
			if content == "" {
				cmd = a.showToastNow(chat.Toast{Message: "Nothing to copy yet", Variant: chat.ToastInfo})
				return a, cmd
			}
			if err := clipboard.WriteAll(content); err != nil {
				cmd = a.showToastNow(chat.Toast{Message: "Clipboard unavailable", Variant: chat.ToastError})
				return a, cmd
			}
			cmd = a.showToastNow(chat.Toast{Message: "Copied last response", Variant: chat.ToastSuccess})
			return a, cmd

		case a.keys.clearInput:
			a.textarea.Reset()
			return a, nil
		}

		// Enter sends; Alt+Enter falls through to the textarea as a newline.
		if msg.Type == tea.KeyEnter && !msg.Alt {
			text := strings.TrimSpace(a.textarea.Value())
			if text == "" {
				return a, nil
			}
			if a.dataModel.Controller.Busy() {
				cmd = a.showToastNow(chat.Toast{Message: "A response is already in progress", Variant: chat.ToastInfo})
				return a, cmd
			}
			a.textarea.Reset()
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] enter pressed, dispatching turn")
			}
			cmd = a.startTurn(a.dataModel.SendMessage(text))
			return a, cmd
		}

		// Viewport scrolling. Line keys stay with the textarea while it
		// holds a multi-line draft; home/end stay with it while it holds
		// anything at all.
		switch msg.String() {
		case a.keys.scrollUp:
			a.viewport.ViewUp()
			cmd = a.maybeLoadOlder()
			return a, cmd

		case a.keys.scrollDown:
			a.viewport.ViewDown()
			return a, nil

		case a.keys.scrollUpLine:
			if a.textarea.LineCount() > 1 {
				break
			}
			a.viewport.SetYOffset(a.viewport.YOffset - 1)
			cmd = a.maybeLoadOlder()
			return a, cmd

		case a.keys.scrollDownLine:
			if a.textarea.LineCount() > 1 {
				break
			}
			a.viewport.SetYOffset(a.viewport.YOffset + 1)
			return a, nil

		case a.keys.scrollTop:
			if a.textarea.Value() != "" {
				break
			}
			a.viewport.GotoTop()
			cmd = a.maybeLoadOlder()
			return a, cmd

		case a.keys.scrollBottom:
			if a.textarea.Value() != "" {
				break
			}
			a.viewport.GotoBottom()
			return a, nil
		}

	case appmodel.TurnDoneMsg:
		return a.handleTurnDone(msg)

	case appmodel.StreamTickMsg:
		return a.handleStreamTick()

	case appmodel.ToastTickMsg:
		return a.handleToastTick()

	case appmodel.ConversationsMsg:
		return a.handleConversations(msg)

	case appmodel.ConversationOpenedMsg:
		return a.handleConversationOpened(msg)

	case appmodel.OlderPageMsg:
		return a.handleOlderPage(msg)

	case appmodel.ConversationDeletedMsg:
		return a.handleConversationDeleted(msg)

	case appmodel.ConversationRenamedMsg:
		return a.handleConversationRenamed(msg)

	case appmodel.ConversationExportedMsg:
		if msg.Err != nil {
			cmd = a.showToastNow(chat.Toast{Message: "Export failed: " + msg.Err.Error(), Variant: chat.ToastError})
			return a, cmd
		}
		cmd = a.showToastNow(chat.Toast{Message: "Exported to " + msg.Path, Variant: chat.ToastSuccess})
		return a, cmd

	case appmodel.SearchResultsMsg:
		return a.handleSearchResults(msg)

	case appmodel.BackendPingMsg:
		a.dataModel.BackendUp = msg.Err == nil
		return a, tea.Tick(pingInterval, func(time.Time) tea.Msg {
			return pingTickMsg{}
		})

	case pingTickMsg:
		return a, a.dataModel.PingBackend()

	case appmodel.MarkdownRenderedMsg:
		if msg.Width == a.width {
			a.rendered[msg.MessageID] = renderedMarkdown{width: msg.Width, text: msg.Rendered}
			a.refreshViewport(a.viewport.AtBottom())
		}
		return a, nil
	}

	// Keys not claimed above edit the draft.
	if !a.anyModalOpen() {
		a.textarea, cmd = a.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a AppView) anyModalOpen() bool {
	return a.showHelp || a.showSwitcher || a.showSearch || a.showEditModal
}

// maybeLoadOlder fetches the next older history page once the viewport
// hits the top.
func (a *AppView) maybeLoadOlder() tea.Cmd {
	if !a.viewport.AtTop() {
		return nil
	}
	if !a.dataModel.Paginator.HasMore() || a.dataModel.Paginator.Loading() {
		return nil
	}
	a.refreshViewport(false)
	return a.dataModel.LoadOlderPage()
}

// lastFailedUserID finds the newest user message stuck in failed state.
func (a AppView) lastFailedUserID() (int64, bool) {
	msgs := a.dataModel.Log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser && msgs[i].Status == chat.StatusFailed {
			return msgs[i].ID, true
		}
	}
	return 0, false
}

// lastAssistantIndex finds the newest completed assistant message,
// skipping the welcome greeting.
func (a AppView) lastAssistantIndex() (int, bool) {
	msgs := a.dataModel.Log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && msgs[i].Status == chat.StatusSent && msgs[i].ID != 0 {
			return i, true
		}
	}
	return 0, false
}

// lastUserMessage finds the newest user message and its content.
func (a AppView) lastUserMessage() (int, string, bool) {
	msgs := a.dataModel.Log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			return i, msgs[i].Content, true
		}
	}
	return 0, "", false
}
