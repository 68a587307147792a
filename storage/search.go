package storage

import (
	"strings"
	"time"

	"atui/chat"
)

// SearchResult is one cached-message hit from a cross-conversation search.
type SearchResult struct {
	ConversationID int64
	MessageID      int64
	Title          string
	Role           string
	Preview        string
	CreatedAt      time.Time
}

const searchLimit = 50

// Search scans cached message content across all conversations.
// Matching is a case-insensitive substring match, newest messages first.
func (c *Cache) Search(query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, nil
	}

	sqlQuery := `
	SELECT m.conversation_id, m.id, c.title, m.role, m.content, m.created_at
	FROM messages m
	JOIN conversations c ON c.id = m.conversation_id
	WHERE m.content LIKE '%' || ? || '%'
	ORDER BY m.id DESC
	LIMIT ?
	`

	rows, err := c.db.Query(sqlQuery, query, searchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			res     SearchResult
			content string
		)
		err := rows.Scan(
			&res.ConversationID,
			&res.MessageID,
			&res.Title,
			&res.Role,
			&content,
			&res.CreatedAt,
		)
		if err != nil {
			continue
		}

		res.Preview = makePreview(content, query)
		results = append(results, res)
	}

	return results, rows.Err()
}

// MessageMatch represents a search result within the open conversation.
type MessageMatch struct {
	MessageIndex int
	MessageID    int64
	Role         string
	Preview      string
	Timestamp    time.Time
}

// SearchMessages searches the in-memory log of the open conversation.
// It covers messages the cache has not seen yet, such as an in-flight turn.
func SearchMessages(messages []chat.Message, query string) []MessageMatch {
	if strings.TrimSpace(query) == "" {
		return []MessageMatch{}
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for i, msg := range messages {
		if !strings.Contains(strings.ToLower(msg.Content), queryLower) {
			continue
		}

		matches = append(matches, MessageMatch{
			MessageIndex: i,
			MessageID:    msg.ID,
			Role:         string(msg.Role),
			Preview:      makePreview(msg.Content, query),
			Timestamp:    msg.Timestamp,
		})
	}

	return matches
}

// makePreview trims content around the first match so the hit is visible
// even in long messages.
func makePreview(content, query string) string {
	const window = 100

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}

	start := idx - window/4
	if start < 0 {
		start = 0
	}

	preview := content[start:]
	if len(preview) > window {
		preview = preview[:window] + "..."
	}
	if start > 0 {
		preview = "..." + preview
	}

	return strings.ReplaceAll(preview, "\n", " ")
}
