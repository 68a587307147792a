package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"atui/chat"
)

// sseHandler writes the given payloads as data lines, flushing between
// each one the way the backend does.
func sseHandler(t *testing.T, payloads ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("stream method: got %s, want POST", r.Method)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("accept header: got %q", accept)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
	})
}

func collectEvents(t *testing.T, h chat.StreamHandle) []chat.Event {
	t.Helper()
	var events []chat.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for stream close; got %d events", len(events))
		}
	}
}

func TestStreamChatDeliversEventsInOrder(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t,
		`{"type":"meta","conversation_id":55}`,
		`{"type":"thinking_start"}`,
		`{"type":"thinking","delta":"checking"}`,
		`{"type":"thinking_end"}`,
		`{"type":"content","delta":"All "}`,
		`{"type":"content","delta":"good."}`,
		`{"type":"done","conversation_id":55,"title":"Floor check"}`,
	))

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{
		Message:        "status?",
		ConversationID: chat.NoConversation,
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	events := collectEvents(t, h)
	wantKinds := []chat.EventKind{
		chat.EventMeta,
		chat.EventThinkingStart,
		chat.EventThinkingDelta,
		chat.EventThinkingEnd,
		chat.EventContentDelta,
		chat.EventContentDelta,
		chat.EventStreamEnd,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("event count: got %d, want %d (%+v)", len(events), len(wantKinds), events)
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Errorf("event %d: got %s, want %s", i, events[i].Kind, kind)
		}
	}
	if events[0].ConversationID != 55 {
		t.Errorf("meta conversation: got %d, want 55", events[0].ConversationID)
	}
	if events[4].Delta != "All " || events[5].Delta != "good." {
		t.Errorf("content deltas out of order: %q, %q", events[4].Delta, events[5].Delta)
	}
	last := events[len(events)-1]
	if last.Title != "Floor check" || last.ConversationID != 55 {
		t.Errorf("done event: got %+v", last)
	}
}

func TestStreamChatSkipsNoiseLines(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "event: content\n")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"delta\":\"hi\"}\n\n")
		fmt.Fprint(w, "data: not json at all\n\n")
		fmt.Fprint(w, "data: {\"type\":\"someday_event\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{Message: "hi", ConversationID: chat.NoConversation})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	events := collectEvents(t, h)
	if len(events) != 2 {
		t.Fatalf("event count: got %d, want 2 (%+v)", len(events), events)
	}
	if events[0].Kind != chat.EventContentDelta || events[0].Delta != "hi" {
		t.Errorf("first event: got %+v", events[0])
	}
	if events[1].Kind != chat.EventStreamEnd {
		t.Errorf("second event: got %+v", events[1])
	}
}

func TestStreamChatRequestBody(t *testing.T) {
	var got streamRequestBody
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{
		Message:        "hello",
		Model:          "atlas-large",
		Provider:       "default",
		ConversationID: 42,
		ProjectID:      3,
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	collectEvents(t, h)

	if got.Message != "hello" || got.Model != "atlas-large" || got.Provider != "default" {
		t.Errorf("body: got %+v", got)
	}
	if got.ConversationID == nil || *got.ConversationID != 42 {
		t.Errorf("conversation_id: got %v, want 42", got.ConversationID)
	}
	if got.ProjectID == nil || *got.ProjectID != 3 {
		t.Errorf("project_id: got %v, want 3", got.ProjectID)
	}
}

func TestStreamChatNewChatOmitsConversationID(t *testing.T) {
	var got streamRequestBody
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"done\"}\n\n")
	}))

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{
		Message:        "hello",
		ConversationID: chat.NoConversation,
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	collectEvents(t, h)

	if got.ConversationID != nil {
		t.Errorf("conversation_id: got %v, want omitted", *got.ConversationID)
	}
}

func TestStreamChatNon200(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))

	if _, err := client.StreamChat(context.Background(), chat.StreamRequest{Message: "hi", ConversationID: chat.NoConversation}); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}

func TestStreamChatDropWithoutTerminalEmitsError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content\",\"delta\":\"half\"}\n\n")
		// Connection closes with no done/error event.
	}))

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{Message: "hi", ConversationID: chat.NoConversation})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	events := collectEvents(t, h)
	if len(events) != 2 {
		t.Fatalf("event count: got %d, want 2 (%+v)", len(events), events)
	}
	if events[1].Kind != chat.EventStreamError {
		t.Errorf("final event: got %s, want %s", events[1].Kind, chat.EventStreamError)
	}
}

func TestStreamChatAbortClosesChannel(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"content\",\"delta\":\"start\"}\n\n")
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	h, err := client.StreamChat(context.Background(), chat.StreamRequest{Message: "hi", ConversationID: chat.NoConversation})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	// Drain the first event, then abort mid-stream.
	select {
	case <-h.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first event")
	}

	h.Abort()
	h.Abort() // idempotent

	// The channel must close, and an abort is not an error.
	events := collectEvents(t, h)
	for _, ev := range events {
		if ev.Kind == chat.EventStreamError {
			t.Errorf("abort surfaced a stream error: %+v", ev)
		}
	}
}
