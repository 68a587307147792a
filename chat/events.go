package chat

import "context"

// EventKind discriminates stream events.
type EventKind int

const (
	EventMeta EventKind = iota
	EventThinkingStart
	EventThinkingDelta
	EventThinkingEnd
	EventContentDelta
	EventToolStart
	EventToolEnd
	EventStreamEnd
	EventStreamError
)

// String returns the wire-style name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventMeta:
		return "meta"
	case EventThinkingStart:
		return "thinking_start"
	case EventThinkingDelta:
		return "thinking"
	case EventThinkingEnd:
		return "thinking_end"
	case EventContentDelta:
		return "content"
	case EventToolStart:
		return "tool_start"
	case EventToolEnd:
		return "tool_end"
	case EventStreamEnd:
		return "done"
	case EventStreamError:
		return "error"
	}
	return "unknown"
}

// Event is one element of the ordered sequence a live assistant response
// produces. The transport delivers events in arrival order; textual deltas
// are concatenation-only. A well-formed stream ends with exactly one
// terminal event (EventStreamEnd or EventStreamError).
type Event struct {
	Kind           EventKind
	ConversationID int64  // Meta, StreamEnd
	Delta          string // ThinkingDelta, ContentDelta
	ToolName       string // ToolStart, ToolEnd
	ToolParams     string // ToolStart
	ToolResult     string // ToolEnd
	Title          string // StreamEnd: server-generated conversation title
	Err            string // StreamError
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Kind == EventStreamEnd || e.Kind == EventStreamError
}

// StreamRequest describes one assistant turn.
type StreamRequest struct {
	Message        string
	Model          string
	Provider       string
	ConversationID int64 // NoConversation for a brand-new chat
	ProjectID      int64 // 0 when the conversation belongs to no project
}

// StreamHandle delivers one turn's events. The channel is closed after a
// terminal event or an abort, and nothing is delivered after it closes.
// Abort is idempotent and safe to call after completion.
type StreamHandle interface {
	Events() <-chan Event
	Abort()
}

// Streamer opens assistant response streams. Implemented by the api
// client; tests substitute their own.
type Streamer interface {
	StreamChat(ctx context.Context, req StreamRequest) (StreamHandle, error)
}

// HistoryPage is one page of conversation history, chronological within
// the page.
type HistoryPage struct {
	Messages []Message
	HasMore  bool
	OldestID int64 // 0 when the page is empty
	Total    int
}

// HistorySource fetches history pages. Implemented by the api client.
type HistorySource interface {
	Messages(ctx context.Context, conversationID int64, limit int, beforeID int64) (HistoryPage, error)
}

// ToastVariant selects toast styling.
type ToastVariant string

const (
	ToastInfo    ToastVariant = "info"
	ToastSuccess ToastVariant = "success"
	ToastError   ToastVariant = "error"
)

// Toast is a fire-and-forget user notice.
type Toast struct {
	Message string
	Variant ToastVariant
	Retry   bool // surface a retry affordance next to the notice
}

// Notifier receives toasts. Implementations must not block.
type Notifier interface {
	Notify(Toast)
}
