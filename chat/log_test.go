package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyMsg(id int64, role Role, content string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Status:    StatusSent,
	}
}

func logIDs(l *Log) []int64 {
	msgs := l.Messages()
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func TestLoadHistoryFirstLoadReplaces(t *testing.T) {
	l := NewLog()
	l.Reset(WelcomeMessage(time.Now(), ""))

	l.LoadHistory([]Message{
		historyMsg(10, RoleUser, "hi"),
		historyMsg(11, RoleAssistant, "hello"),
	}, 7)

	require.Equal(t, []int64{10, 11}, logIDs(l))
	assert.Equal(t, int64(7), l.ConversationID())
}

func TestLoadHistoryMergeKeepsSessionMessages(t *testing.T) {
	l := NewLog()
	l.LoadHistory([]Message{historyMsg(50, RoleUser, "old")}, 7)

	// Session messages minted after the last fetch carry higher ids.
	l.AddUser("new question", 101)
	l.AddPlaceholder(102)

	l.LoadHistory([]Message{
		historyMsg(50, RoleUser, "old"),
		historyMsg(99, RoleAssistant, "old answer"),
	}, 7)

	assert.Equal(t, []int64{50, 99, 101, 102}, logIDs(l))
}

func TestLoadHistoryMergeIsIdempotent(t *testing.T) {
	l := NewLog()
	page := []Message{
		historyMsg(50, RoleUser, "a"),
		historyMsg(99, RoleAssistant, "b"),
	}

	l.LoadHistory(page, 7)
	first := l.Messages()
	l.LoadHistory(page, 7)

	assert.Equal(t, first, l.Messages())
}

func TestLoadHistoryDifferentConversationReplaces(t *testing.T) {
	l := NewLog()
	l.LoadHistory([]Message{historyMsg(50, RoleUser, "a")}, 7)
	l.AddUser("session", 101)

	l.LoadHistory([]Message{historyMsg(3, RoleUser, "other")}, 8)

	assert.Equal(t, []int64{3}, logIDs(l))
	assert.Equal(t, int64(8), l.ConversationID())
}

func TestPrependKeepsOrder(t *testing.T) {
	l := NewLog()
	l.LoadHistory([]Message{historyMsg(30, RoleUser, "newer")}, 7)

	l.Prepend([]Message{
		historyMsg(10, RoleUser, "oldest"),
		historyMsg(20, RoleAssistant, "older"),
	})

	assert.Equal(t, []int64{10, 20, 30}, logIDs(l))
}

func TestAddUserMintsUniqueIDs(t *testing.T) {
	l := NewLog()

	a := l.AddUser("one", 0)
	b := l.AddUser("two", 0)
	c := l.AddPlaceholder(0)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
	assert.Less(t, a, b)
	assert.Less(t, b, c)

	msg, ok := l.Message(a)
	require.True(t, ok)
	assert.True(t, msg.Provisional)
	assert.Equal(t, StatusSending, msg.Status)
}

func TestAddUserHonorsSuppliedID(t *testing.T) {
	l := NewLog()

	id := l.AddUser("hi", 42)

	assert.Equal(t, int64(42), id)
	msg, ok := l.Message(42)
	require.True(t, ok)
	assert.False(t, msg.Provisional)
}

func TestSetStatusClearsErrorOutsideFailed(t *testing.T) {
	l := NewLog()
	id := l.AddUser("hi", 0)

	l.SetStatus(id, StatusFailed, "boom")
	msg, _ := l.Message(id)
	assert.Equal(t, "boom", msg.Error)

	l.SetStatus(id, StatusSending, "")
	msg, _ = l.Message(id)
	assert.Empty(t, msg.Error)

	// Unknown id is a no-op.
	l.SetStatus(99999, StatusSent, "")
}

func TestUpdateContentMergesOptionalFields(t *testing.T) {
	l := NewLog()
	id := l.AddPlaceholder(0)

	l.UpdateContent(id, "Hello", "considering", nil)
	l.UpdateContent(id, "Hello world", "", nil)

	msg, _ := l.Message(id)
	assert.Equal(t, "Hello world", msg.Content)
	assert.Equal(t, "considering", msg.Thinking, "empty thinking must not clobber")
	assert.Nil(t, msg.Blocks)

	blocks := []ContentBlock{{Kind: BlockText, Content: "Hello world"}}
	l.UpdateContent(id, "Hello world", "", blocks)
	msg, _ = l.Message(id)
	assert.Equal(t, blocks, msg.Blocks)
}

func TestFinalizeEmptyContentKeepsAccumulated(t *testing.T) {
	l := NewLog()
	id := l.AddPlaceholder(0)
	l.UpdateContent(id, "partial answer", "", nil)

	l.Finalize(id, "", "", StatusSent, nil)

	msg, _ := l.Message(id)
	assert.Equal(t, "partial answer", msg.Content)
	assert.Equal(t, StatusSent, msg.Status)
}

func TestRemove(t *testing.T) {
	l := NewLog()
	a := l.AddUser("keep", 0)
	b := l.AddPlaceholder(0)

	l.Remove(b)

	assert.Equal(t, []int64{a}, logIDs(l))
	l.Remove(99999) // unknown id is a no-op
	assert.Equal(t, 1, l.Len())
}

func TestTruncateFrom(t *testing.T) {
	l := NewLog()
	l.LoadHistory([]Message{
		historyMsg(1, RoleUser, "a"),
		historyMsg(2, RoleAssistant, "b"),
		historyMsg(3, RoleUser, "c"),
		historyMsg(4, RoleAssistant, "d"),
	}, 7)

	l.TruncateFrom(2)
	assert.Equal(t, []int64{1, 2}, logIDs(l))

	// Out-of-range indexes leave the log alone.
	l.TruncateFrom(5)
	l.TruncateFrom(-1)
	assert.Equal(t, []int64{1, 2}, logIDs(l))
}

func TestResetInstallsWelcomeAndClearsConversation(t *testing.T) {
	l := NewLog()
	l.LoadHistory([]Message{historyMsg(1, RoleUser, "a")}, 7)

	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	l.Reset(WelcomeMessage(now, "Riley"))

	msgs := l.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Riley")
	assert.Equal(t, now, msgs[0].Timestamp)
	assert.Equal(t, NoConversation, l.ConversationID())
}

func TestMessagesReturnsSnapshot(t *testing.T) {
	l := NewLog()
	l.AddUser("hi", 0)

	snap := l.Messages()
	snap[0].Content = "mutated"

	fresh := l.Messages()
	assert.Equal(t, "hi", fresh[0].Content)
}
