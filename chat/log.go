package chat

import (
	"sync"
	"time"
)

// Log is the ordered message sequence for the active conversation. It is
// the single source of truth the ui renders from; the controller and the
// paginator are its only writers. Mutations never reorder entries that
// they do not touch.
type Log struct {
	mu             sync.Mutex
	messages       []Message
	conversationID int64
	loaded         bool  // history applied for conversationID at least once
	lastMinted     int64 // keeps provisional ids unique within a session
}

// NewLog returns an empty log with no active conversation.
func NewLog() *Log {
	return &Log{conversationID: NoConversation}
}

// ConversationID returns the active conversation id, or NoConversation.
func (l *Log) ConversationID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID
}

// SetConversationID adopts a server-assigned conversation id without
// touching the messages. Used when the backend creates a conversation for
// the first message of a new chat.
func (l *Log) SetConversationID(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversationID = id
}

// Messages returns a snapshot of the log in insertion order. Callers may
// hold it across renders without locking.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Message returns the message with the given id.
func (l *Log) Message(id int64) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(id); i >= 0 {
		return l.messages[i], true
	}
	return Message{}, false
}

// LoadHistory installs fetched history. The first load for a conversation
// replaces the log wholesale. A later load for the same conversation merges
// instead: messages whose id exceeds the newest fetched id were created in
// this session and are kept, with the fetched page placed ahead of them.
// Loading the same page twice therefore leaves the log unchanged.
func (l *Log) LoadHistory(msgs []Message, conversationID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if conversationID != l.conversationID || !l.loaded {
		l.messages = append([]Message(nil), msgs...)
		l.conversationID = conversationID
		l.loaded = true
		return
	}

	var maxID int64
	for _, m := range msgs {
		if m.ID > maxID {
			maxID = m.ID
		}
	}

	merged := append([]Message(nil), msgs...)
	for _, m := range l.messages {
		if m.ID > maxID {
			merged = append(merged, m)
		}
	}
	l.messages = merged
}

// Prepend inserts older history ahead of the current log. Used by the
// paginator, which fetches pages strictly older than anything held.
func (l *Log) Prepend(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]Message, 0, len(msgs)+len(l.messages))
	merged = append(merged, msgs...)
	merged = append(merged, l.messages...)
	l.messages = merged
}

// AddUser appends a user message with status sending and returns the id
// used. A zero id mints a provisional one from the clock.
func (l *Log) AddUser(content string, id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	provisional := false
	if id == 0 {
		id = l.mintID()
		provisional = true
	}
	l.messages = append(l.messages, Message{
		ID:          id,
		Provisional: provisional,
		Role:        RoleUser,
		Content:     content,
		Timestamp:   time.Now(),
		Status:      StatusSending,
	})
	return id
}

// AddPlaceholder appends the empty assistant message a stream will fill
// and returns the id used. A zero id mints a provisional one.
func (l *Log) AddPlaceholder(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	provisional := false
	if id == 0 {
		id = l.mintID()
		provisional = true
	}
	l.messages = append(l.messages, Message{
		ID:          id,
		Provisional: provisional,
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		Status:      StatusStreaming,
	})
	return id
}

// SetStatus updates status and error text in place. Unknown ids are a
// no-op. The error text is kept only for StatusFailed.
func (l *Log) SetStatus(id int64, status Status, errText string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return
	}
	l.messages[i].Status = status
	if status == StatusFailed {
		l.messages[i].Error = errText
	} else {
		l.messages[i].Error = ""
	}
}

// UpdateContent applies a streaming mutation in place. An empty thinking
// string or nil blocks leave the existing values alone; content always
// replaces, since the caller accumulates it.
func (l *Log) UpdateContent(id int64, content, thinking string, blocks []ContentBlock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return
	}
	l.messages[i].Content = content
	if thinking != "" {
		l.messages[i].Thinking = thinking
	}
	if blocks != nil {
		l.messages[i].Blocks = append([]ContentBlock(nil), blocks...)
	}
}

// Finalize applies the terminal mutation for a streamed message. Empty
// content keeps whatever already accumulated, so a bare terminal event
// cannot blank a message that streamed text.
func (l *Log) Finalize(id int64, content, thinking string, status Status, blocks []ContentBlock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return
	}
	if content != "" {
		l.messages[i].Content = content
	}
	if thinking != "" {
		l.messages[i].Thinking = thinking
	}
	if blocks != nil {
		l.messages[i].Blocks = append([]ContentBlock(nil), blocks...)
	}
	l.messages[i].Status = status
	if status != StatusFailed {
		l.messages[i].Error = ""
	}
}

// Remove deletes the message with the given id, if present. Used to roll
// back the placeholder of a failed stream.
func (l *Log) Remove(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return
	}
	l.messages = append(l.messages[:i], l.messages[i+1:]...)
}

// TruncateFrom drops every message at index and after, leaving the first
// index messages untouched. Out-of-range indexes are a no-op.
func (l *Log) TruncateFrom(index int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.messages) {
		return
	}
	l.messages = l.messages[:index]
}

// Reset replaces the log with a single welcome message and clears the
// active conversation.
func (l *Log) Reset(welcome Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = []Message{welcome}
	l.conversationID = NoConversation
	l.loaded = false
}

// index returns the position of id, or -1. Caller holds l.mu.
func (l *Log) index(id int64) int {
	for i := range l.messages {
		if l.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// mintID derives a provisional id from the wall clock. Millisecond ids
// stay above server row ids, which LoadHistory's merge relies on; the
// bump keeps two mints in the same millisecond distinct. Caller holds
// l.mu.
func (l *Log) mintID() int64 {
	id := time.Now().UnixMilli()
	if id <= l.lastMinted {
		id = l.lastMinted + 1
	}
	l.lastMinted = id
	return id
}
