package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"atui/config"
	"atui/storage"
)

func (a AppView) handleSwitcherKeys(msg tea.KeyMsg) (AppView, tea.Cmd) {
	// Delete confirmation
	if a.confirmDeleteConv != nil {
		switch msg.String() {
		case "y":
			id := a.confirmDeleteConv.ID
			a.confirmDeleteConv = nil
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] delete %d confirmed", id)
			}
			return a, a.dataModel.DeleteConversation(id)
		case "n", "esc":
			a.confirmDeleteConv = nil
			return a, nil
		}
		return a, nil
	}

	// Inline rename
	if a.convRenameMode {
		switch msg.String() {
		case "esc":
			a.convRenameMode = false
			a.convRenameInput.Blur()
			return a, nil
		case "enter":
			title := strings.TrimSpace(a.convRenameInput.Value())
			a.convRenameMode = false
			a.convRenameInput.Blur()

			list := a.conversationList()
			if title == "" || a.selectedConvIdx < 0 || a.selectedConvIdx >= len(list) {
				return a, nil
			}
			conv := list[a.selectedConvIdx]
			if title == conv.Title {
				return a, nil
			}
			return a, a.dataModel.RenameConversation(conv.ID, title)
		}

		var cmd tea.Cmd
		a.convRenameInput, cmd = a.convRenameInput.Update(msg)
		return a, cmd
	}

	// Filter mode
	if a.convFilterMode {
		switch msg.String() {
		case "esc":
			a.convFilterMode = false
			a.convFilterInput.Blur()
			a.convFilterInput.SetValue("")
			a.filteredConvs = nil
			a.selectedConvIdx = 0
			return a, nil

		case "enter", a.keys.listSelect:
			return a.openSelectedConversation()

		case "down", a.keys.listDown:
			list := a.conversationList()
			if a.selectedConvIdx < len(list)-1 {
				a.selectedConvIdx++
			}
			return a, nil

		case "up", a.keys.listUp:
			if a.selectedConvIdx > 0 {
				a.selectedConvIdx--
			}
			return a, nil
		}

		var cmd tea.Cmd
		a.convFilterInput, cmd = a.convFilterInput.Update(msg)

		filterValue := a.convFilterInput.Value()
		if filterValue == "" {
			a.filteredConvs = a.dataModel.Conversations
		} else {
			targets := make([]string, len(a.dataModel.Conversations))
			for i, c := range a.dataModel.Conversations {
				targets[i] = c.Title
			}

			matches := fuzzy.Find(filterValue, targets)
			a.filteredConvs = make([]storage.CachedConversation, len(matches))
			for i, match := range matches {
				a.filteredConvs[i] = a.dataModel.Conversations[match.Index]
			}
		}

		list := a.conversationList()
		if a.selectedConvIdx >= len(list) && len(list) > 0 {
			a.selectedConvIdx = len(list) - 1
		}

		return a, cmd
	}

	// Normal mode
	switch msg.String() {
	case "/":
		a.convFilterMode = true
		a.convFilterInput.Focus()
		a.convFilterInput.SetValue("")
		a.filteredConvs = a.dataModel.Conversations
		return a, textinput.Blink

	case "esc", a.keys.closeModal:
		a.showSwitcher = false
		a.textarea.Focus()
		return a, nil

	case "j", "down", a.keys.listDown:
		list := a.conversationList()
		if a.selectedConvIdx < len(list)-1 {
			a.selectedConvIdx++
		}
		return a, nil

	case "k", "up", a.keys.listUp:
		if a.selectedConvIdx > 0 {
			a.selectedConvIdx--
		}
		return a, nil

	case "enter", a.keys.listSelect:
		return a.openSelectedConversation()

	case "n":
		a.showSwitcher = false
		a.dataModel.NewChat()
		a.rendered = make(map[int64]renderedMarkdown)
		a.highlightedID = 0
		a.refreshViewport(true)
		a.textarea.Focus()
		return a, nil

	case "r":
		list := a.conversationList()
		if a.selectedConvIdx >= 0 && a.selectedConvIdx < len(list) {
			a.convRenameMode = true
			a.convRenameInput.SetValue(list[a.selectedConvIdx].Title)
			a.convRenameInput.Focus()
			return a, textinput.Blink
		}
		return a, nil

	case "x":
		list := a.conversationList()
		if a.selectedConvIdx >= 0 && a.selectedConvIdx < len(list) {
			conv := list[a.selectedConvIdx]
			return a, a.dataModel.ExportConversation(conv.ID, conv.Title)
		}
		return a, nil

	case "d", a.keys.listDelete:
		list := a.conversationList()
		if a.selectedConvIdx >= 0 && a.selectedConvIdx < len(list) {
			conv := list[a.selectedConvIdx]
			a.confirmDeleteConv = &conv
		}
		return a, nil
	}

	return a, nil
}

// openSelectedConversation closes the switcher and loads the selection.
// Picking the conversation that is already open just closes the modal.
func (a AppView) openSelectedConversation() (AppView, tea.Cmd) {
	list := a.conversationList()
	if a.selectedConvIdx < 0 || a.selectedConvIdx >= len(list) {
		return a, nil
	}
	conv := list[a.selectedConvIdx]

	a.showSwitcher = false
	a.convFilterMode = false
	a.convFilterInput.Blur()
	a.convFilterInput.SetValue("")
	a.filteredConvs = nil
	a.textarea.Focus()

	if conv.ID == a.dataModel.Log.ConversationID() {
		return a, nil
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Conversations] opening %d", conv.ID)
	}
	return a, a.dataModel.OpenConversation(conv.ID)
}

func (a AppView) handleSearchKeys(msg tea.KeyMsg) (AppView, tea.Cmd) {
	total := len(a.searchLocal) + len(a.searchGlobal)

	switch msg.String() {
	case "esc", a.keys.closeModal:
		a.closeAllModals()
		return a, nil

	case "down", a.keys.listDown:
		if a.selectedSearchIdx < total-1 {
			a.selectedSearchIdx++
		}
		a.adjustSearchScroll()
		return a, nil

	case "up", a.keys.listUp:
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		a.adjustSearchScroll()
		return a, nil

	case "enter", a.keys.listSelect:
		if total == 0 {
			return a, nil
		}
		idx := a.selectedSearchIdx

		// Matches in the open conversation jump directly.
		if idx < len(a.searchLocal) {
			match := a.searchLocal[idx]
			a.closeAllModals()
			a.highlightedID = match.MessageID
			a.refreshViewport(false)
			a.scrollToMessage(match.MessageID)
			return a, nil
		}

		// Matches elsewhere load that conversation first; the scroll
		// happens once it arrives.
		result := a.searchGlobal[idx-len(a.searchLocal)]
		a.closeAllModals()
		a.pendingScrollToID = result.MessageID
		return a, a.dataModel.OpenConversation(result.ConversationID)
	}

	var cmd tea.Cmd
	prev := a.searchInput.Value()
	a.searchInput, cmd = a.searchInput.Update(msg)

	query := a.searchInput.Value()
	if query == prev {
		return a, cmd
	}
	if strings.TrimSpace(query) == "" {
		a.searchLocal = nil
		a.searchGlobal = nil
		a.selectedSearchIdx = 0
		a.searchScrollIdx = 0
		return a, cmd
	}

	return a, tea.Batch(cmd, a.dataModel.SearchConversations(query))
}

// adjustSearchScroll keeps the selection inside the visible window.
func (a *AppView) adjustSearchScroll() {
	maxVisible := searchMaxVisible(a.height)
	if a.selectedSearchIdx < a.searchScrollIdx {
		a.searchScrollIdx = a.selectedSearchIdx
	}
	if a.selectedSearchIdx >= a.searchScrollIdx+maxVisible {
		a.searchScrollIdx = a.selectedSearchIdx - maxVisible + 1
	}
}

func (a AppView) handleEditModalKeys(msg tea.KeyMsg) (AppView, tea.Cmd) {
	if msg.String() == "esc" {
		a.showEditModal = false
		a.editInput.Blur()
		a.textarea.Focus()
		return a, nil
	}

	// Enter resends; Alt+Enter inserts a newline via the textarea keymap.
	if msg.Type == tea.KeyEnter && !msg.Alt {
		text := strings.TrimSpace(a.editInput.Value())
		index := a.editTargetIndex

		a.showEditModal = false
		a.editInput.Blur()
		a.textarea.Focus()

		if text == "" {
			return a, nil
		}
		cmd := a.startTurn(a.dataModel.EditResendMessage(index, text))
		return a, cmd
	}

	var cmd tea.Cmd
	a.editInput, cmd = a.editInput.Update(msg)
	return a, cmd
}
