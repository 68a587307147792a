package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"atui/chat"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache() error: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	return cache
}

func cachedConv(id int64, title string, updated time.Time) CachedConversation {
	return CachedConversation{
		ID:        id,
		Title:     title,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func sentMessage(id int64, role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
		Status:    chat.StatusSent,
	}
}

func TestConversationListOrder(t *testing.T) {
	cache := newTestCache(t)

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	convs := []CachedConversation{
		cachedConv(1, "Oldest", base.Add(-2*time.Hour)),
		cachedConv(2, "Newest", base),
		cachedConv(3, "Middle", base.Add(-time.Hour)),
	}
	if err := cache.SaveConversations(convs); err != nil {
		t.Fatalf("SaveConversations() error: %v", err)
	}

	got, err := cache.Conversations()
	if err != nil {
		t.Fatalf("Conversations() error: %v", err)
	}

	wantOrder := []int64{2, 3, 1}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d conversations, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: got conversation %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestConversationUpsertAndLookup(t *testing.T) {
	cache := newTestCache(t)

	conv := cachedConv(7, "Kiln 3 downtime", time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	if err := cache.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation() error: %v", err)
	}

	// Upsert replaces, not duplicates
	conv.Title = "Kiln 3 downtime review"
	if err := cache.SaveConversation(conv); err != nil {
		t.Fatalf("second SaveConversation() error: %v", err)
	}

	got, err := cache.Conversation(7)
	if err != nil {
		t.Fatalf("Conversation() error: %v", err)
	}
	if got == nil {
		t.Fatal("Conversation(7) = nil, want row")
	}
	if got.Title != "Kiln 3 downtime review" {
		t.Errorf("Title = %q, want upserted value", got.Title)
	}
	if got.UpdatedAt.Unix() != conv.UpdatedAt.Unix() {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, conv.UpdatedAt)
	}

	missing, err := cache.Conversation(999)
	if err != nil {
		t.Fatalf("Conversation(999) error: %v", err)
	}
	if missing != nil {
		t.Error("Conversation(999) should be nil for missing row")
	}

	if err := cache.RenameConversation(7, "Kiln 3 postmortem"); err != nil {
		t.Fatalf("RenameConversation() error: %v", err)
	}
	got, _ = cache.Conversation(7)
	if got.Title != "Kiln 3 postmortem" {
		t.Errorf("Title after rename = %q", got.Title)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	conv := cachedConv(1, "Schedules", time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	if err := cache.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation() error: %v", err)
	}

	assistant := sentMessage(102, chat.RoleAssistant, "Line 2 is free after 3pm.")
	assistant.Thinking = "Checking the schedule."
	assistant.Blocks = []chat.ContentBlock{
		{Kind: chat.BlockThinking, Content: "Checking the schedule.", IsComplete: true},
		{Kind: chat.BlockText, Content: "Line 2 is free after 3pm."},
	}

	provisional := sentMessage(0, chat.RoleUser, "not yet acknowledged")
	provisional.Provisional = true

	msgs := []chat.Message{
		sentMessage(101, chat.RoleUser, "When is line 2 free?"),
		assistant,
		provisional,
	}
	if err := cache.SaveMessages(1, msgs); err != nil {
		t.Fatalf("SaveMessages() error: %v", err)
	}

	got, err := cache.Messages(1)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2 (provisional skipped)", len(got))
	}
	if got[0].ID != 101 || got[1].ID != 102 {
		t.Errorf("message order = [%d, %d], want [101, 102]", got[0].ID, got[1].ID)
	}
	if got[0].Status != chat.StatusSent {
		t.Errorf("cached message status = %v, want sent", got[0].Status)
	}
	if got[1].Thinking != "Checking the schedule." {
		t.Errorf("Thinking = %q, want preserved", got[1].Thinking)
	}
	if len(got[1].Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(got[1].Blocks))
	}
	if got[1].Blocks[0].Kind != chat.BlockThinking {
		t.Errorf("first block kind = %v, want thinking", got[1].Blocks[0].Kind)
	}
	if got[0].Blocks != nil {
		t.Error("plain message should round trip with nil blocks")
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.SaveConversation(cachedConv(1, "Doomed", time.Now().UTC())); err != nil {
		t.Fatalf("SaveConversation() error: %v", err)
	}
	if err := cache.SaveMessage(1, sentMessage(10, chat.RoleUser, "hello")); err != nil {
		t.Fatalf("SaveMessage() error: %v", err)
	}

	if err := cache.DeleteConversation(1); err != nil {
		t.Fatalf("DeleteConversation() error: %v", err)
	}

	msgs, err := cache.Messages(1)
	if err != nil {
		t.Fatalf("Messages() error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages after delete, want 0", len(msgs))
	}
}

func TestSearch(t *testing.T) {
	cache := newTestCache(t)

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if err := cache.SaveConversations([]CachedConversation{
		cachedConv(1, "Kiln maintenance", now),
		cachedConv(2, "Paint line", now.Add(-time.Hour)),
	}); err != nil {
		t.Fatalf("SaveConversations() error: %v", err)
	}

	if err := cache.SaveMessages(1, []chat.Message{
		sentMessage(101, chat.RoleUser, "When does the kiln cool down?"),
		sentMessage(102, chat.RoleAssistant, "The kiln cools by 6pm."),
	}); err != nil {
		t.Fatalf("SaveMessages(1) error: %v", err)
	}
	if err := cache.SaveMessages(2, []chat.Message{
		sentMessage(201, chat.RoleUser, "Paint batch 9 status?"),
	}); err != nil {
		t.Fatalf("SaveMessages(2) error: %v", err)
	}

	results, err := cache.Search("KILN")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (case-insensitive)", len(results))
	}
	// Newest message first
	if results[0].MessageID != 102 {
		t.Errorf("first result message = %d, want 102", results[0].MessageID)
	}
	if results[0].Title != "Kiln maintenance" {
		t.Errorf("result title = %q", results[0].Title)
	}
	if !strings.Contains(results[0].Preview, "kiln") {
		t.Errorf("preview %q should contain the match", results[0].Preview)
	}

	empty, err := cache.Search("   ")
	if err != nil {
		t.Fatalf("Search(blank) error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("blank query returned %d results, want 0", len(empty))
	}

	none, err := cache.Search("centrifuge")
	if err != nil {
		t.Fatalf("Search(no match) error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("no-match query returned %d results, want 0", len(none))
	}
}

func TestSearchMessagesInMemory(t *testing.T) {
	msgs := []chat.Message{
		sentMessage(1, chat.RoleUser, "Is press 4 jammed again?"),
		sentMessage(2, chat.RoleAssistant, "Press 4 reported a jam at 09:14."),
		sentMessage(3, chat.RoleUser, "Who is on shift?"),
	}

	matches := SearchMessages(msgs, "press 4")
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].MessageIndex != 0 || matches[1].MessageIndex != 1 {
		t.Errorf("match indexes = [%d, %d], want [0, 1]", matches[0].MessageIndex, matches[1].MessageIndex)
	}
	if matches[1].MessageID != 2 {
		t.Errorf("match id = %d, want 2", matches[1].MessageID)
	}

	if got := SearchMessages(msgs, ""); len(got) != 0 {
		t.Errorf("empty query returned %d matches, want 0", len(got))
	}
}

func TestLastConversationPointer(t *testing.T) {
	cache := newTestCache(t)

	if got := cache.LoadLastConversationID(); got != chat.NoConversation {
		t.Errorf("fresh pointer = %d, want NoConversation", got)
	}

	if err := cache.SaveLastConversationID(42); err != nil {
		t.Fatalf("SaveLastConversationID() error: %v", err)
	}
	if got := cache.LoadLastConversationID(); got != 42 {
		t.Errorf("pointer = %d, want 42", got)
	}

	// Corrupted pointer files fall back to no conversation
	path := filepath.Join(cache.dataDir, "last_conversation.id")
	if err := os.WriteFile(path, []byte("not-a-number"), 0600); err != nil {
		t.Fatalf("write corrupt pointer: %v", err)
	}
	if got := cache.LoadLastConversationID(); got != chat.NoConversation {
		t.Errorf("corrupt pointer = %d, want NoConversation", got)
	}
}

func TestExportConversation(t *testing.T) {
	cache := newTestCache(t)

	conv := cachedConv(5, "Batch QA", time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	if err := cache.SaveConversation(conv); err != nil {
		t.Fatalf("SaveConversation() error: %v", err)
	}
	if err := cache.SaveMessages(5, []chat.Message{
		sentMessage(50, chat.RoleUser, "QA results for batch 12?"),
		sentMessage(51, chat.RoleAssistant, "Batch 12 passed all checks."),
	}); err != nil {
		t.Fatalf("SaveMessages() error: %v", err)
	}

	exportPath := filepath.Join(t.TempDir(), "export", "batch-qa.json")
	if err := cache.ExportConversation(5, exportPath); err != nil {
		t.Fatalf("ExportConversation() error: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}

	var export ConversationExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("export does not parse: %v", err)
	}
	if export.ID != 5 || export.Title != "Batch QA" {
		t.Errorf("export header = (%d, %q)", export.ID, export.Title)
	}
	if len(export.Messages) != 2 {
		t.Errorf("exported %d messages, want 2", len(export.Messages))
	}

	if err := cache.ExportConversation(999, exportPath); err == nil {
		t.Error("exporting an uncached conversation should fail")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "Kiln 3 downtime", "Kiln-3-downtime"},
		{"slashes", "a/b\\c", "a-b-c"},
		{"special chars", `q:*?"<>|`, "q"},
		{"empty", "", "conversation"},
		{"trim", "--title--", "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
