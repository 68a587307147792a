package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CancelledNotice is shown in place of an answer when a turn is stopped
// before any content arrived.
const CancelledNotice = "_Generation cancelled by user._"

var (
	// ErrBusy rejects a new turn while one is already in flight.
	ErrBusy = errors.New("chat: a response is already in progress")

	// ErrNoUserMessage rejects a regenerate with nothing to regenerate
	// from.
	ErrNoUserMessage = errors.New("chat: no preceding user message")
)

// sendReq is the internal shape shared by send, retry, edit and
// regenerate. truncateAt below zero leaves the log alone.
type sendReq struct {
	content      string
	existingID   int64 // reuse this user message instead of appending
	skipUser     bool  // no user bubble this turn
	regenerating bool
	truncateAt   int
}

// Controller orchestrates user intents against the log and the stream: it
// owns the single in-flight turn, applies stream events in arrival order,
// and lands every outcome as log mutations plus toasts. Apart from ErrBusy
// and precondition failures, its operations do not return errors; network
// trouble is absorbed per the recovery rules, never thrown.
type Controller struct {
	mu       sync.Mutex
	log      *Log
	streamer Streamer
	notifier Notifier

	model     string
	provider  string
	projectID int64

	turn  *turn
	epoch uint64

	onConversationCreated func(id int64)
	onTitle               func(title string)
}

// NewController wires a controller over log and streamer. notifier may be
// nil, in which case toasts are dropped.
func NewController(log *Log, streamer Streamer, notifier Notifier) *Controller {
	return &Controller{log: log, streamer: streamer, notifier: notifier}
}

// SetModel selects the model sent with each turn.
func (c *Controller) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Model returns the selected model.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// SetProvider selects the provider routed by the backend.
func (c *Controller) SetProvider(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = provider
}

// Provider returns the selected provider.
func (c *Controller) Provider() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// SetProjectID scopes new conversations to a project; 0 clears it.
func (c *Controller) SetProjectID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectID = id
}

// OnConversationCreated registers the hook fired when the backend assigns
// a conversation id. Reset fires it with NoConversation.
func (c *Controller) OnConversationCreated(fn func(id int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConversationCreated = fn
}

// OnTitle registers the hook fired when a finished stream reports a
// server-generated conversation title.
func (c *Controller) OnTitle(fn func(title string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTitle = fn
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn != nil && !c.turn.terminal()
}

// Send dispatches a user message and blocks until the turn reaches a
// terminal outcome. The log is mutated optimistically before the stream
// opens; failures land in the log and as toasts rather than being
// returned. A second send while one is in flight returns ErrBusy. An
// empty message is a no-op.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.run(ctx, sendReq{content: text, truncateAt: -1})
}

// Retry re-sends a failed user message, reusing its id and content. The
// status flips back to sending before the stream opens; no second message
// is ever created for the turn.
func (c *Controller) Retry(ctx context.Context, id int64) error {
	msg, ok := c.log.Message(id)
	if !ok {
		return fmt.Errorf("chat: retry: no message %d", id)
	}
	if msg.Role != RoleUser || msg.Status != StatusFailed {
		return fmt.Errorf("chat: retry: message %d is not a failed send", id)
	}
	return c.run(ctx, sendReq{content: msg.Content, existingID: id, truncateAt: -1})
}

// EditResend rewrites the user message at index: it and everything after
// it are discarded, and the edited text goes out as a new turn.
func (c *Controller) EditResend(ctx context.Context, index int, text string) error {
	msgs := c.log.Messages()
	if index < 0 || index >= len(msgs) {
		return fmt.Errorf("chat: edit: index %d out of range", index)
	}
	if msgs[index].Role != RoleUser {
		return fmt.Errorf("chat: edit: message at index %d is not a user message", index)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.run(ctx, sendReq{content: text, truncateAt: index})
}

// Regenerate discards the assistant message at index and asks again with
// the nearest preceding user message's content. No new user bubble is
// created. A regenerate with no preceding user message is a wiring error:
// logged, rejected, and the log stays untouched.
func (c *Controller) Regenerate(ctx context.Context, index int) error {
	msgs := c.log.Messages()
	if index < 0 || index >= len(msgs) {
		return fmt.Errorf("chat: regenerate: index %d out of range", index)
	}

	content := ""
	found := false
	for i := index - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			content = msgs[i].Content
			found = true
			break
		}
	}
	if !found {
		debugf("regenerate at index %d: no preceding user message", index)
		return ErrNoUserMessage
	}

	return c.run(ctx, sendReq{
		content:      content,
		skipUser:     true,
		regenerating: true,
		truncateAt:   index,
	})
}

// Stop aborts the in-flight turn. The partial answer is kept, or the
// cancellation notice when nothing arrived yet; the thinking accumulated
// so far survives either way. A stopped turn always ends sent, never
// failed. Stopping while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	t := c.turn
	if t == nil || t.terminal() {
		c.mu.Unlock()
		return
	}
	if err := t.fire(triggerCancel); err != nil {
		c.mu.Unlock()
		return
	}

	t.closeBlocks()
	content := t.content.String()
	if content == "" {
		content = CancelledNotice
		if t.structured {
			t.blocks = append(t.blocks, ContentBlock{Kind: BlockText, Content: CancelledNotice})
		}
	}
	c.log.Finalize(t.assistantID, content, t.thinking.String(), StatusSent, t.blocks)
	if t.userID != 0 {
		c.log.SetStatus(t.userID, StatusSent, "")
	}
	handle := t.handle
	c.mu.Unlock()

	if handle != nil {
		handle.Abort()
	}
}

// Abandon invalidates any in-flight turn without touching the log. Used
// when the active conversation changes out from under a stream; events
// still in the pipe are dropped by the epoch check.
func (c *Controller) Abandon() {
	c.mu.Lock()
	c.epoch++
	t := c.turn
	c.turn = nil
	c.mu.Unlock()

	if t != nil && t.handle != nil {
		t.handle.Abort()
	}
}

// Reset abandons any in-flight turn, clears the conversation and shows a
// fresh welcome message. The conversation-created hook fires with
// NoConversation so the owner drops its selection too.
func (c *Controller) Reset(now time.Time, userName string) {
	c.mu.Lock()
	c.epoch++
	t := c.turn
	c.turn = nil
	c.log.Reset(WelcomeMessage(now, userName))
	cb := c.onConversationCreated
	c.mu.Unlock()

	if t != nil && t.handle != nil {
		t.handle.Abort()
	}
	if cb != nil {
		cb(NoConversation)
	}
}

// run is the shared turn pipeline: claim the single flight, mutate the
// log optimistically, open the stream, then fold events until a terminal
// outcome.
func (c *Controller) run(ctx context.Context, send sendReq) error {
	c.mu.Lock()
	if c.turn != nil && !c.turn.terminal() {
		c.mu.Unlock()
		return ErrBusy
	}
	// A finished turn can still hold an open handle; a new turn always
	// supersedes it.
	if c.turn != nil && c.turn.handle != nil {
		c.turn.handle.Abort()
	}
	c.epoch++

	if send.truncateAt >= 0 {
		c.log.TruncateFrom(send.truncateAt)
	}

	var userID int64
	switch {
	case send.skipUser:
	case send.existingID != 0:
		userID = send.existingID
		c.log.SetStatus(userID, StatusSending, "")
	default:
		userID = c.log.AddUser(send.content, 0)
	}
	assistantID := c.log.AddPlaceholder(0)

	t := newTurn(c.epoch, userID, assistantID, send.regenerating)
	c.turn = t
	req := StreamRequest{
		Message:        send.content,
		Model:          c.model,
		Provider:       c.provider,
		ConversationID: c.log.ConversationID(),
		ProjectID:      c.projectID,
	}
	c.mu.Unlock()

	handle, err := c.streamer.StreamChat(ctx, req)
	if err != nil {
		debugf("stream open failed: %v", err)
		c.failBeforeStream(t, "Failed to connect. Please try again.")
		return nil
	}

	c.mu.Lock()
	if t.epoch != c.epoch || t.terminal() {
		// Stopped or superseded while the stream was opening.
		c.mu.Unlock()
		handle.Abort()
		return nil
	}
	t.handle = handle
	c.mu.Unlock()

	for ev := range handle.Events() {
		c.apply(t, ev)
	}

	c.mu.Lock()
	dropped := t.epoch == c.epoch && !t.terminal()
	c.mu.Unlock()
	if dropped {
		// The channel closed without a terminal event: transport dropped
		// mid-stream.
		c.apply(t, Event{Kind: EventStreamError, Err: "Connection lost. Please try again."})
	}
	return nil
}

// failBeforeStream lands a turn whose transport never produced an event.
func (c *Controller) failBeforeStream(t *turn, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch || t.terminal() {
		return
	}
	_ = t.fire(triggerStreamError)
	c.log.Remove(t.assistantID)
	if t.userID != 0 {
		c.log.SetStatus(t.userID, StatusFailed, reason)
	}
	c.toast(Toast{Message: reason, Variant: ToastError, Retry: t.userID != 0})
}

// apply folds one stream event into the turn and the log. Events carrying
// a stale epoch, or arriving after a terminal event, are dropped.
func (c *Controller) apply(t *turn, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.epoch != c.epoch {
		debugf("dropping %s event from superseded turn", ev.Kind)
		return
	}
	if t.terminal() {
		debugf("dropping %s event after terminal state", ev.Kind)
		return
	}

	if t.state() == stateSending && !ev.Terminal() {
		if err := t.fire(triggerFirstEvent); err != nil {
			debugf("dropping %s event: %v", ev.Kind, err)
			return
		}
	}

	switch ev.Kind {
	case EventMeta:
		c.adoptConversation(ev.ConversationID)

	case EventThinkingStart:
		t.beginThinking()
		c.reflect(t)

	case EventThinkingDelta:
		t.appendThinking(ev.Delta)
		c.reflect(t)

	case EventThinkingEnd:
		t.endThinking()
		c.reflect(t)

	case EventContentDelta:
		t.appendContent(ev.Delta)
		c.reflect(t)

	case EventToolStart:
		debugf("tool started: %s", ev.ToolName)
		t.startTool(ev.ToolName, ev.ToolParams)
		c.reflect(t)

	case EventToolEnd:
		debugf("tool finished: %s", ev.ToolName)
		t.endTool(ev.ToolName, ev.ToolResult)
		c.reflect(t)

	case EventStreamEnd:
		if err := t.fire(triggerStreamEnd); err != nil {
			debugf("dropping stream end: %v", err)
			return
		}
		t.closeBlocks()
		c.log.Finalize(t.assistantID, t.content.String(), t.thinking.String(), StatusSent, t.blocks)
		if t.userID != 0 {
			c.log.SetStatus(t.userID, StatusSent, "")
		}
		c.adoptConversation(ev.ConversationID)
		if ev.Title != "" && c.onTitle != nil {
			c.onTitle(ev.Title)
		}

	case EventStreamError:
		if err := t.fire(triggerStreamError); err != nil {
			debugf("dropping stream error: %v", err)
			return
		}
		// Never leave a half answer in the log.
		c.log.Remove(t.assistantID)
		if t.userID != 0 && !t.regenerating {
			c.log.SetStatus(t.userID, StatusFailed, ev.Err)
			c.toast(Toast{Message: ev.Err, Variant: ToastError, Retry: true})
		} else {
			c.toast(Toast{Message: "Regeneration failed: " + ev.Err, Variant: ToastError})
		}
	}
}

// reflect pushes the turn's buffers into its log entry. Caller holds c.mu.
func (c *Controller) reflect(t *turn) {
	c.log.UpdateContent(t.assistantID, t.content.String(), t.thinking.String(), t.blocks)
}

// adoptConversation records a backend-assigned conversation id and tells
// the owner. Ids matching the active one, or zero, are ignored. Caller
// holds c.mu.
func (c *Controller) adoptConversation(id int64) {
	if id == 0 || id == NoConversation || id == c.log.ConversationID() {
		return
	}
	debugf("adopting conversation %d", id)
	c.log.SetConversationID(id)
	if c.onConversationCreated != nil {
		c.onConversationCreated(id)
	}
}

// toast hands a notice to the notifier, if one is wired. Caller holds
// c.mu; notifiers must not block.
func (c *Controller) toast(t Toast) {
	if c.notifier != nil {
		c.notifier.Notify(t)
	}
}
