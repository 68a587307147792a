package model

import (
	"atui/storage"
)

// TurnDoneMsg arrives when a blocking chat turn (send, retry, edit,
// regenerate) reaches its terminal outcome. Err carries only dispatch
// rejections; stream failures land in the log instead.
type TurnDoneMsg struct {
	Err error
}

// StreamTickMsg drives viewport repaints while a turn is in flight.
type StreamTickMsg struct{}

type ToastTickMsg struct{}

type ConversationsMsg struct {
	Conversations []storage.CachedConversation
	FromCache     bool
	Err           error
}

// ConversationOpenedMsg arrives after a switch: the page is already in
// the log when Err is nil.
type ConversationOpenedMsg struct {
	ID        int64
	FromCache bool
	Err       error
}

type OlderPageMsg struct {
	Prepended int
}

type ConversationDeletedMsg struct {
	ID  int64
	Err error
}

type ConversationRenamedMsg struct {
	ID    int64
	Title string
	Err   error
}

type ConversationExportedMsg struct {
	Path string
	Err  error
}

type SearchResultsMsg struct {
	Query   string
	Results []storage.SearchResult
	Local   []storage.MessageMatch
	Err     error
}

type BackendPingMsg struct {
	Err error
}

type MarkdownRenderedMsg struct {
	MessageID int64
	Width     int
	Rendered  string
}
