package model

import (
	"time"

	"atui/api"
	"atui/chat"
	"atui/config"
	"atui/storage"
)

// Model holds the core application data and business logic state
type Model struct {
	// Core dependencies
	Config      *config.Config
	Keybindings *config.KeyBindingsConfig
	Client      *api.Client
	Cache       *storage.Cache
	Credentials *config.CredentialStore

	// Chat state machine
	Log        *chat.Log
	Controller *chat.Controller
	Paginator  *chat.Paginator
	Toasts     *ToastQueue

	// Conversation list for the switcher, newest first
	Conversations []storage.CachedConversation

	// Runtime state (not UI)
	BackendUp bool
	Quitting  bool

	// Application metadata
	Version string
}

// NewModel creates a new Model wired over the given dependencies. cache
// may be nil when the local cache failed to open; everything it backs
// degrades to backend-only behavior.
func NewModel(cfg *config.Config, keys *config.KeyBindingsConfig, client *api.Client, cache *storage.Cache, creds *config.CredentialStore, version string) *Model {
	log := chat.NewLog()
	toasts := NewToastQueue()

	controller := chat.NewController(log, client, toasts)
	controller.SetModel(cfg.DefaultModel)
	controller.SetProvider(cfg.DefaultProvider)

	m := &Model{
		Config:      cfg,
		Keybindings: keys,
		Client:      client,
		Cache:       cache,
		Credentials: creds,
		Log:         log,
		Controller:  controller,
		Paginator:   chat.NewPaginator(log, client),
		Toasts:      toasts,
		BackendUp:   true,
		Version:     version,
	}

	// Both hooks fire on the controller's goroutine while it holds its
	// lock, so persistence moves off to the side.
	controller.OnConversationCreated(func(id int64) {
		if cache == nil {
			return
		}
		go func() {
			if err := cache.SaveLastConversationID(id); err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[Model] failed to save last conversation id: %v", err)
				}
			}
		}()
	})
	controller.OnTitle(func(title string) {
		if cache == nil {
			return
		}
		id := log.ConversationID()
		go func() {
			if id == chat.NoConversation {
				return
			}
			if err := cache.RenameConversation(id, title); err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[Model] failed to cache title for conversation %d: %v", id, err)
				}
			}
		}()
	})

	// Fresh logs open on the welcome message until history is restored.
	controller.Reset(time.Now(), cfg.UserName)

	return m
}

// ActiveConversation returns the cached summary of the conversation the
// log currently holds, or nil for a new chat.
func (m *Model) ActiveConversation() *storage.CachedConversation {
	id := m.Log.ConversationID()
	if id == chat.NoConversation {
		return nil
	}
	for i := range m.Conversations {
		if m.Conversations[i].ID == id {
			return &m.Conversations[i]
		}
	}
	return nil
}

// ActiveTitle returns a display title for the current conversation.
func (m *Model) ActiveTitle() string {
	if conv := m.ActiveConversation(); conv != nil && conv.Title != "" {
		return conv.Title
	}
	if m.Log.ConversationID() == chat.NoConversation {
		return "New Chat"
	}
	return "Untitled"
}

// NewChat abandons any in-flight turn and resets the log to a fresh
// welcome message. Synchronous; the caller repaints afterwards.
func (m *Model) NewChat() {
	m.Controller.Reset(time.Now(), m.Config.UserName)
	if m.Cache != nil {
		go func() {
			_ = m.Cache.SaveLastConversationID(chat.NoConversation)
		}()
	}
}

// RemoveConversation drops a conversation from the in-memory list after
// a confirmed delete.
func (m *Model) RemoveConversation(id int64) {
	for i := range m.Conversations {
		if m.Conversations[i].ID == id {
			m.Conversations = append(m.Conversations[:i], m.Conversations[i+1:]...)
			return
		}
	}
}

// LastAssistantContent returns the content of the newest completed
// assistant message, or "" when there is none to copy.
func (m *Model) LastAssistantContent() string {
	msgs := m.Log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant && msgs[i].Status == chat.StatusSent && msgs[i].ID != 0 {
			return msgs[i].Content
		}
	}
	return ""
}
