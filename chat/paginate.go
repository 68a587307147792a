package chat

import (
	"context"
	"sync"
)

// PageSize is how many messages one history page holds.
const PageSize = 50

// Paginator incrementally loads older history for the active conversation
// and prepends it to the log without disturbing messages created during
// the live session.
type Paginator struct {
	mu       sync.Mutex
	log      *Log
	source   HistorySource
	hasMore  bool
	loading  bool
	oldestID int64 // 0 until a page has been seen
	total    int
}

// NewPaginator returns a paginator over log backed by source.
func NewPaginator(log *Log, source HistorySource) *Paginator {
	return &Paginator{log: log, source: source}
}

// Reset installs pagination state for a newly opened conversation: the
// page goes into the log via LoadHistory and any in-flight flag is
// cleared.
func (p *Paginator) Reset(page HistoryPage, conversationID int64) {
	p.log.LoadHistory(page.Messages, conversationID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasMore = page.HasMore
	p.oldestID = page.OldestID
	p.total = page.Total
	p.loading = false
}

// HasMore reports whether older pages remain.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Loading reports whether a page load is in flight.
func (p *Paginator) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// OldestID returns the oldest loaded message id, or 0 when none.
func (p *Paginator) OldestID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oldestID
}

// Total returns the server-reported message count for the conversation.
func (p *Paginator) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// LoadOlder fetches the next older page and prepends it to the log. It
// returns immediately when there is nothing to do: no active conversation,
// no more history, or a load already in flight. The in-flight flag is
// taken synchronously, so overlapping calls cannot double-prepend. Fetch
// errors are logged and swallowed; older pages are best effort.
func (p *Paginator) LoadOlder(ctx context.Context) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return
	}
	conversationID := p.log.ConversationID()
	if conversationID == NoConversation {
		p.mu.Unlock()
		return
	}
	p.loading = true
	beforeID := p.oldestID
	p.mu.Unlock()

	page, err := p.source.Messages(ctx, conversationID, PageSize, beforeID)
	if err != nil {
		debugf("pagination: load older failed: %v", err)
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		return
	}
	if p.log.ConversationID() != conversationID {
		// The conversation changed while the page was in flight; Reset
		// already cleared our state, so the page is dropped.
		debugf("pagination: dropping page for conversation %d", conversationID)
		return
	}

	p.log.Prepend(page.Messages)

	p.mu.Lock()
	p.hasMore = page.HasMore
	if page.OldestID != 0 {
		p.oldestID = page.OldestID
	}
	p.total = page.Total
	p.loading = false
	p.mu.Unlock()
}
