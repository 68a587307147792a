package model

import (
	"fmt"
	"testing"
	"time"

	"atui/api"
	"atui/chat"
	"atui/config"
	"atui/storage"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()

	client, err := api.NewClient("http://localhost:9", time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}

	cfg := &config.Config{
		DataDirectory:   t.TempDir(),
		BackendURL:      "http://localhost:9",
		RequestTimeout:  5,
		DefaultModel:    "atlas-large",
		DefaultProvider: "anthropic",
	}
	return NewModel(cfg, config.DefaultKeybindings(), client, nil, nil, "test")
}

func TestToastQueueFIFO(t *testing.T) {
	q := NewToastQueue()

	if q.Pending() {
		t.Error("Pending() = true on a fresh queue")
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() = ok on a fresh queue")
	}

	q.Notify(chat.Toast{Message: "first"})
	q.Notify(chat.Toast{Message: "second"})
	q.Notify(chat.Toast{Message: "third"})

	if !q.Pending() {
		t.Error("Pending() = false with queued notices")
	}

	for _, want := range []string{"first", "second", "third"} {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() ran dry, want %q", want)
		}
		if got.Message != want {
			t.Errorf("Pop() = %q, want %q", got.Message, want)
		}
	}

	if q.Pending() {
		t.Error("Pending() = true after draining")
	}
}

func TestToastQueueDropsOldestPastBacklog(t *testing.T) {
	q := NewToastQueue()
	for i := 0; i < toastBacklog+2; i++ {
		q.Notify(chat.Toast{Message: fmt.Sprintf("notice %d", i)})
	}

	got, ok := q.Pop()
	if !ok {
		t.Fatal("Pop() ran dry")
	}
	if got.Message != "notice 2" {
		t.Errorf("oldest kept notice = %q, want notice 2", got.Message)
	}

	count := 1
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		count++
	}
	if count != toastBacklog {
		t.Errorf("kept %d notices, want %d", count, toastBacklog)
	}
}

func TestToastQueueHelperVariants(t *testing.T) {
	tests := []struct {
		name string
		push func(*ToastQueue)
		want chat.ToastVariant
	}{
		{"info", func(q *ToastQueue) { q.Info("hello") }, chat.ToastInfo},
		{"success", func(q *ToastQueue) { q.Success("hello") }, chat.ToastSuccess},
		{"error", func(q *ToastQueue) { q.Error("hello") }, chat.ToastError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewToastQueue()
			tt.push(q)
			got, ok := q.Pop()
			if !ok {
				t.Fatal("Pop() ran dry")
			}
			if got.Variant != tt.want {
				t.Errorf("Variant = %q, want %q", got.Variant, tt.want)
			}
		})
	}
}

func TestToCached(t *testing.T) {
	now := time.Now()
	conv := api.Conversation{
		ID:                 42,
		Title:              "Line 4 audit",
		Summary:            "spindle vibration follow-up",
		LastMessagePreview: "The bearing readings look normal",
		CreatedAt:          now.Add(-time.Hour),
		UpdatedAt:          now,
	}

	got := toCached(conv)
	want := storage.CachedConversation{
		ID:                 42,
		Title:              "Line 4 audit",
		Summary:            "spindle vibration follow-up",
		LastMessagePreview: "The bearing readings look normal",
		CreatedAt:          now.Add(-time.Hour),
		UpdatedAt:          now,
	}
	if got != want {
		t.Errorf("toCached() = %+v, want %+v", got, want)
	}
}

func TestActiveTitle(t *testing.T) {
	tests := []struct {
		name    string
		convID  int64
		entries []storage.CachedConversation
		want    string
	}{
		{
			name:   "new chat",
			convID: chat.NoConversation,
			want:   "New Chat",
		},
		{
			name:    "titled conversation",
			convID:  7,
			entries: []storage.CachedConversation{{ID: 7, Title: "Line 4 audit"}},
			want:    "Line 4 audit",
		},
		{
			name:   "conversation not in the list",
			convID: 9,
			want:   "Untitled",
		},
		{
			name:    "entry without a title",
			convID:  7,
			entries: []storage.CachedConversation{{ID: 7}},
			want:    "Untitled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t)
			if tt.convID != chat.NoConversation {
				m.Log.SetConversationID(tt.convID)
			}
			m.Conversations = tt.entries

			if got := m.ActiveTitle(); got != tt.want {
				t.Errorf("ActiveTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoveConversation(t *testing.T) {
	m := newTestModel(t)
	m.Conversations = []storage.CachedConversation{
		{ID: 1, Title: "one"},
		{ID: 2, Title: "two"},
		{ID: 3, Title: "three"},
	}

	m.RemoveConversation(2)
	if len(m.Conversations) != 2 {
		t.Fatalf("len(Conversations) = %d, want 2", len(m.Conversations))
	}
	if m.Conversations[0].ID != 1 || m.Conversations[1].ID != 3 {
		t.Errorf("Conversations = %+v, want ids 1 and 3", m.Conversations)
	}

	m.RemoveConversation(99)
	if len(m.Conversations) != 2 {
		t.Errorf("removing an unknown id changed the list: %+v", m.Conversations)
	}
}

func TestLastAssistantContent(t *testing.T) {
	m := newTestModel(t)

	// A fresh model only holds the welcome greeting, which never counts
	// as a copyable response.
	if got := m.LastAssistantContent(); got != "" {
		t.Errorf("LastAssistantContent() = %q on a fresh model, want empty", got)
	}

	m.Log.LoadHistory([]chat.Message{
		{ID: 1, Role: chat.RoleUser, Content: "status of line 4?", Status: chat.StatusSent},
		{ID: 2, Role: chat.RoleAssistant, Content: "All machines nominal.", Status: chat.StatusSent},
		{ID: 3, Role: chat.RoleAssistant, Content: "partial...", Status: chat.StatusStreaming},
	}, 42)

	if got := m.LastAssistantContent(); got != "All machines nominal." {
		t.Errorf("LastAssistantContent() = %q, want the completed response", got)
	}
}

func TestNewChatResets(t *testing.T) {
	m := newTestModel(t)
	m.Log.LoadHistory([]chat.Message{
		{ID: 1, Role: chat.RoleUser, Content: "hello", Status: chat.StatusSent},
		{ID: 2, Role: chat.RoleAssistant, Content: "hi", Status: chat.StatusSent},
	}, 42)

	m.NewChat()

	if got := m.Log.ConversationID(); got != chat.NoConversation {
		t.Errorf("ConversationID() = %d after NewChat, want NoConversation", got)
	}
	if got := m.Log.Len(); got != 1 {
		t.Fatalf("Len() = %d after NewChat, want 1", got)
	}
	welcome := m.Log.Messages()[0]
	if welcome.ID != 0 || welcome.Role != chat.RoleAssistant {
		t.Errorf("log did not reset to the welcome greeting: %+v", welcome)
	}
}
