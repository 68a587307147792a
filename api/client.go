package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"atui/chat"
)

// TokenSource supplies the bearer token sent with every request. Token
// acquisition itself (the identity-provider dance) happens outside this
// client.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the Atlas backend. One client serves both the REST
// surface and the chat stream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient builds a client for the backend at baseURL. tokens may be nil
// for an unauthenticated backend.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}, nil
}

// newRequest builds a request with auth and tracing headers attached.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// doJSON runs a request and decodes a JSON response into out (out may be
// nil for status-only calls).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Conversation is a backend conversation summary.
type Conversation struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	Summary            string    `json:"summary,omitempty"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	IsActive           bool      `json:"is_active"`
}

// Conversations lists the user's conversations, newest first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out.Conversations, nil
}

// CreateConversation makes an empty conversation and returns it.
func (c *Client) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	var out Conversation
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", body, &out); err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return out, nil
}

// RenameConversation sets a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) error {
	body := map[string]string{"title": title}
	path := fmt.Sprintf("/conversations/%d", id)
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/conversations/%d", id)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// messagesResponse mirrors the history page the backend returns.
type messagesResponse struct {
	Messages   []wireMessage `json:"messages"`
	HasMore    bool          `json:"has_more"`
	OldestID   int64         `json:"oldest_id"`
	TotalCount int           `json:"total_count"`
}

// Messages fetches up to limit messages for a conversation, strictly
// older than beforeID when it is non-zero. Pages come back in
// chronological order. Implements chat.HistorySource.
func (c *Client) Messages(ctx context.Context, conversationID int64, limit int, beforeID int64) (chat.HistoryPage, error) {
	if limit <= 0 {
		limit = chat.PageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if beforeID != 0 {
		q.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	path := fmt.Sprintf("/conversations/%d/messages?%s", conversationID, q.Encode())

	var out messagesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return chat.HistoryPage{}, fmt.Errorf("failed to fetch messages: %w", err)
	}

	page := chat.HistoryPage{
		Messages: make([]chat.Message, 0, len(out.Messages)),
		HasMore:  out.HasMore,
		OldestID: out.OldestID,
		Total:    out.TotalCount,
	}
	for _, m := range out.Messages {
		page.Messages = append(page.Messages, m.toMessage())
	}
	return page, nil
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return nil
}
