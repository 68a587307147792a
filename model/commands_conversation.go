package model

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"atui/api"
	"atui/chat"
	"atui/config"
	"atui/storage"
)

// requestTimeout bounds one REST call against the backend.
func (m *Model) requestTimeout() time.Duration {
	if m.Config != nil && m.Config.RequestTimeout > 0 {
		return time.Duration(m.Config.RequestTimeout) * time.Second
	}
	return 30 * time.Second
}

func toCached(conv api.Conversation) storage.CachedConversation {
	return storage.CachedConversation{
		ID:                 conv.ID,
		Title:              conv.Title,
		Summary:            conv.Summary,
		LastMessagePreview: conv.LastMessagePreview,
		CreatedAt:          conv.CreatedAt,
		UpdatedAt:          conv.UpdatedAt,
	}
}

// FetchConversations retrieves the conversation list, falling back to
// the local cache when the backend is unreachable.
func (m *Model) FetchConversations() tea.Cmd {
	client := m.Client
	cache := m.Cache
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		list, err := client.Conversations(ctx)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] list failed, trying cache: %v", err)
			}
			if cache != nil {
				if cached, cerr := cache.Conversations(); cerr == nil && len(cached) > 0 {
					return ConversationsMsg{Conversations: cached, FromCache: true, Err: err}
				}
			}
			return ConversationsMsg{Err: err}
		}

		convs := make([]storage.CachedConversation, 0, len(list))
		for _, c := range list {
			convs = append(convs, toCached(c))
		}
		if cache != nil {
			if err := cache.SaveConversations(convs); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] cache refresh failed: %v", err)
			}
		}
		return ConversationsMsg{Conversations: convs}
	}
}

// OpenConversation switches the log to another conversation. Any
// in-flight turn is abandoned first so its stray events cannot touch
// the new history. Offline, the cached copy is loaded instead.
func (m *Model) OpenConversation(id int64) tea.Cmd {
	client := m.Client
	cache := m.Cache
	controller := m.Controller
	paginator := m.Paginator
	timeout := m.requestTimeout()
	return func() tea.Msg {
		controller.Abandon()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		page, err := client.Messages(ctx, id, chat.PageSize, 0)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] open %d failed, trying cache: %v", id, err)
			}
			if cache != nil {
				msgs, cerr := cache.Messages(id)
				if cerr == nil && len(msgs) > 0 {
					offline := chat.HistoryPage{
						Messages: msgs,
						OldestID: msgs[0].ID,
						Total:    len(msgs),
					}
					paginator.Reset(offline, id)
					return ConversationOpenedMsg{ID: id, FromCache: true, Err: err}
				}
			}
			return ConversationOpenedMsg{ID: id, Err: err}
		}

		paginator.Reset(page, id)
		if cache != nil {
			if err := cache.SaveMessages(id, page.Messages); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] message cache write failed: %v", err)
			}
			_ = cache.SaveLastConversationID(id)
		}
		return ConversationOpenedMsg{ID: id}
	}
}

// LoadOlderPage fetches the next older history page. The paginator
// holds its own in-flight guard, so a scroll storm collapses to one
// fetch.
func (m *Model) LoadOlderPage() tea.Cmd {
	log := m.Log
	paginator := m.Paginator
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		before := log.Len()
		paginator.LoadOlder(ctx)
		return OlderPageMsg{Prepended: log.Len() - before}
	}
}

// DeleteConversation removes a conversation on the backend and in the
// local cache.
func (m *Model) DeleteConversation(id int64) tea.Cmd {
	client := m.Client
	cache := m.Cache
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := client.DeleteConversation(ctx, id); err != nil {
			return ConversationDeletedMsg{ID: id, Err: err}
		}
		if cache != nil {
			if err := cache.DeleteConversation(id); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] cache delete failed: %v", err)
			}
		}
		return ConversationDeletedMsg{ID: id}
	}
}

// RenameConversation sets a conversation title on the backend and in
// the local cache.
func (m *Model) RenameConversation(id int64, title string) tea.Cmd {
	client := m.Client
	cache := m.Cache
	timeout := m.requestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := client.RenameConversation(ctx, id, title); err != nil {
			return ConversationRenamedMsg{ID: id, Title: title, Err: err}
		}
		if cache != nil {
			if err := cache.RenameConversation(id, title); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Conversations] cache rename failed: %v", err)
			}
		}
		return ConversationRenamedMsg{ID: id, Title: title}
	}
}

// ExportConversation writes a conversation to a JSON file under
// ~/Downloads. The active conversation is flushed to the cache first so
// the export includes messages from this session.
func (m *Model) ExportConversation(id int64, title string) tea.Cmd {
	if m.Cache == nil {
		return func() tea.Msg {
			return ConversationExportedMsg{Err: errors.New("local cache unavailable")}
		}
	}

	cache := m.Cache
	var flush []chat.Message
	if id == m.Log.ConversationID() {
		flush = m.Log.Messages()
	}
	return func() tea.Msg {
		if len(flush) > 0 {
			if err := cache.SaveMessages(id, flush); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Export] flush before export failed: %v", err)
			}
		}
		path := storage.GenerateExportPath(title)
		if err := cache.ExportConversation(id, path); err != nil {
			return ConversationExportedMsg{Err: err}
		}
		return ConversationExportedMsg{Path: path}
	}
}

// SearchConversations runs a query against the cached history and the
// live log.
func (m *Model) SearchConversations(query string) tea.Cmd {
	cache := m.Cache
	local := m.Log.Messages()
	return func() tea.Msg {
		var results []storage.SearchResult
		var err error
		if cache != nil {
			results, err = cache.Search(query)
		}
		return SearchResultsMsg{
			Query:   query,
			Results: results,
			Local:   storage.SearchMessages(local, query),
			Err:     err,
		}
	}
}

// PingBackend checks backend reachability for the status bar.
func (m *Model) PingBackend() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return BackendPingMsg{Err: client.Ping(ctx)}
	}
}
