package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"atui/chat"
	"atui/config"
	appmodel "atui/model"
	"atui/storage"
)

func (a AppView) handleConversations(msg appmodel.ConversationsMsg) (AppView, tea.Cmd) {
	if msg.Err != nil && !msg.FromCache {
		a.dataModel.BackendUp = false
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Conversations] list failed: %v", msg.Err)
		}
		if a.showSwitcher {
			cmd := a.showToastNow(chat.Toast{Message: "Couldn't load conversations", Variant: chat.ToastError})
			return a, cmd
		}
		return a, nil
	}

	if !msg.FromCache {
		a.dataModel.BackendUp = true
	}

	a.dataModel.Conversations = msg.Conversations
	if a.selectedConvIdx >= len(msg.Conversations) {
		a.selectedConvIdx = max(len(msg.Conversations)-1, 0)
	}

	if msg.FromCache && a.showSwitcher {
		cmd := a.showToastNow(chat.Toast{Message: "Offline: showing cached conversations", Variant: chat.ToastInfo})
		return a, cmd
	}
	return a, nil
}

func (a AppView) handleConversationOpened(msg appmodel.ConversationOpenedMsg) (AppView, tea.Cmd) {
	if msg.Err != nil && !msg.FromCache {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Conversations] open %d failed: %v", msg.ID, msg.Err)
		}
		cmd := a.showToastNow(chat.Toast{Message: "Couldn't open conversation", Variant: chat.ToastError})
		return a, cmd
	}

	// The log now holds the other conversation; every cached render
	// belongs to the old one.
	a.rendered = make(map[int64]renderedMarkdown)
	a.highlightedID = 0

	if a.pendingScrollToID != 0 {
		a.refreshViewport(false)
		a.scrollToMessage(a.pendingScrollToID)
		a.highlightedID = a.pendingScrollToID
		a.pendingScrollToID = 0
		a.refreshViewport(false)
	} else {
		a.refreshViewport(true)
	}

	cmds := []tea.Cmd{a.renderPendingMarkdown()}
	if msg.FromCache {
		a.dataModel.BackendUp = false
		cmds = append(cmds, a.showToastNow(chat.Toast{Message: "Offline: showing cached copy", Variant: chat.ToastInfo}))
	} else {
		a.dataModel.BackendUp = true
	}

	return a, tea.Batch(cmds...)
}

// handleOlderPage re-anchors the viewport after history is prepended so
// the message the user was looking at stays put.
func (a AppView) handleOlderPage(msg appmodel.OlderPageMsg) (AppView, tea.Cmd) {
	oldTotal := a.viewport.TotalLineCount()
	oldOffset := a.viewport.YOffset

	a.refreshViewport(false)

	newTotal := a.viewport.TotalLineCount()
	a.viewport.SetYOffset(oldOffset + (newTotal - oldTotal))

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Conversations] prepended %d older messages", msg.Prepended)
	}

	return a, a.renderPendingMarkdown()
}

func (a AppView) handleConversationDeleted(msg appmodel.ConversationDeletedMsg) (AppView, tea.Cmd) {
	if msg.Err != nil {
		cmd := a.showToastNow(chat.Toast{Message: "Delete failed: " + msg.Err.Error(), Variant: chat.ToastError})
		return a, cmd
	}

	wasActive := msg.ID == a.dataModel.Log.ConversationID()

	a.dataModel.RemoveConversation(msg.ID)
	if a.selectedConvIdx >= len(a.dataModel.Conversations) {
		a.selectedConvIdx = max(len(a.dataModel.Conversations)-1, 0)
	}

	if wasActive {
		a.dataModel.NewChat()
		a.rendered = make(map[int64]renderedMarkdown)
		a.highlightedID = 0
		a.refreshViewport(true)
	}

	cmd := a.showToastNow(chat.Toast{Message: "Conversation deleted", Variant: chat.ToastSuccess})
	return a, cmd
}

func (a AppView) handleConversationRenamed(msg appmodel.ConversationRenamedMsg) (AppView, tea.Cmd) {
	if msg.Err != nil {
		cmd := a.showToastNow(chat.Toast{Message: "Rename failed: " + msg.Err.Error(), Variant: chat.ToastError})
		return a, cmd
	}

	for i := range a.dataModel.Conversations {
		if a.dataModel.Conversations[i].ID == msg.ID {
			a.dataModel.Conversations[i].Title = msg.Title
			break
		}
	}

	cmd := a.showToastNow(chat.Toast{Message: "Conversation renamed", Variant: chat.ToastSuccess})
	return a, cmd
}

func (a AppView) handleSearchResults(msg appmodel.SearchResultsMsg) (AppView, tea.Cmd) {
	// The modal may have closed, or the query moved on, while the search
	// ran.
	if !a.showSearch || msg.Query != a.searchInput.Value() {
		return a, nil
	}

	if msg.Err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Search] cache search failed: %v", msg.Err)
	}

	a.searchLocal = msg.Local

	// The live log already covers the active conversation; keep only
	// other conversations from the cache side.
	active := a.dataModel.Log.ConversationID()
	var global []storage.SearchResult
	for _, r := range msg.Results {
		if r.ConversationID != active {
			global = append(global, r)
		}
	}
	a.searchGlobal = global

	a.selectedSearchIdx = 0
	a.searchScrollIdx = 0
	return a, nil
}
