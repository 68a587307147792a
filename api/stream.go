package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"atui/chat"
)

// streamRequestBody is the POST body opening a chat stream.
type streamRequestBody struct {
	Message        string `json:"message"`
	Model          string `json:"model,omitempty"`
	Provider       string `json:"provider,omitempty"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	ProjectID      *int64 `json:"project_id,omitempty"`
}

// streamEvent is one server-sent event payload. The type field selects
// which of the rest carry meaning.
type streamEvent struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	Delta          string          `json:"delta,omitempty"`
	Content        string          `json:"content,omitempty"`
	Tool           string          `json:"tool,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         string          `json:"result,omitempty"`
	Title          string          `json:"title,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// toEvent maps a wire event onto the reducer vocabulary. Unknown types
// come back false and are skipped.
func (w streamEvent) toEvent() (chat.Event, bool) {
	text := w.Delta
	if text == "" {
		text = w.Content
	}

	switch w.Type {
	case "meta":
		return chat.Event{Kind: chat.EventMeta, ConversationID: w.ConversationID}, true
	case "thinking_start":
		return chat.Event{Kind: chat.EventThinkingStart}, true
	case "thinking":
		return chat.Event{Kind: chat.EventThinkingDelta, Delta: text}, true
	case "thinking_end":
		return chat.Event{Kind: chat.EventThinkingEnd}, true
	case "content":
		return chat.Event{Kind: chat.EventContentDelta, Delta: text}, true
	case "tool_start":
		return chat.Event{Kind: chat.EventToolStart, ToolName: w.Tool, ToolParams: string(w.Params)}, true
	case "tool_end":
		return chat.Event{Kind: chat.EventToolEnd, ToolName: w.Tool, ToolResult: w.Result}, true
	case "done":
		return chat.Event{Kind: chat.EventStreamEnd, ConversationID: w.ConversationID, Title: w.Title}, true
	case "error":
		msg := w.Error
		if msg == "" {
			msg = "Unknown stream error"
		}
		return chat.Event{Kind: chat.EventStreamError, Err: msg}, true
	}
	return chat.Event{}, false
}

// Stream is one live assistant response. Events are delivered in arrival
// order and the channel closes after a terminal event or an abort;
// nothing is ever delivered after it closes.
type Stream struct {
	events    chan chat.Event
	cancel    context.CancelFunc
	abortOnce sync.Once
	aborted   atomic.Bool
}

// Events returns the event channel.
func (s *Stream) Events() <-chan chat.Event { return s.events }

// Abort tears down the transport. Idempotent and safe to call after the
// stream has completed.
func (s *Stream) Abort() {
	s.abortOnce.Do(func() {
		s.aborted.Store(true)
		s.cancel()
	})
}

// StreamChat opens a streaming chat turn against the backend and starts a
// reader that translates server-sent events into typed events. Implements
// chat.Streamer.
func (c *Client) StreamChat(ctx context.Context, req chat.StreamRequest) (chat.StreamHandle, error) {
	ctx, cancel := context.WithCancel(ctx)

	body := streamRequestBody{
		Message:  req.Message,
		Model:    req.Model,
		Provider: req.Provider,
	}
	if req.ConversationID != chat.NoConversation && req.ConversationID != 0 {
		id := req.ConversationID
		body.ConversationID = &id
	}
	if req.ProjectID != 0 {
		id := req.ProjectID
		body.ProjectID = &id
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", body)
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	// The shared client enforces a request timeout; a stream lives until
	// the turn ends, so it gets its own transport-level client.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream request failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	s := &Stream{
		events: make(chan chat.Event, 16),
		cancel: cancel,
	}
	go s.consume(resp.Body)
	return s, nil
}

// consume reads server-sent events line by line until a terminal event,
// an abort, or the connection drops. A drop without a terminal event is
// surfaced as a stream error so the turn can fail cleanly.
func (s *Stream) consume(body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// A single event line can carry a large delta.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var wire streamEvent
		if err := json.Unmarshal([]byte(payload), &wire); err != nil {
			debugf("stream: skipping malformed event: %v", err)
			continue
		}
		ev, ok := wire.toEvent()
		if !ok {
			debugf("stream: skipping unknown event type %q", wire.Type)
			continue
		}

		s.events <- ev
		if ev.Terminal() {
			return
		}
	}

	if s.aborted.Load() {
		return
	}
	if err := scanner.Err(); err != nil {
		debugf("stream: connection dropped: %v", err)
		s.events <- chat.Event{Kind: chat.EventStreamError, Err: "Connection lost. Please try again."}
		return
	}
	s.events <- chat.Event{Kind: chat.EventStreamError, Err: "Connection closed unexpectedly."}
}
