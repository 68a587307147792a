package chat

import (
	"strings"

	"github.com/qmuntal/stateless"
)

// Turn states. Done, Failed and Cancelled are terminal: no trigger is
// permitted out of them, so a late event fails its Fire and gets dropped.
type turnState stateless.State

var (
	stateSending   turnState = "Sending"
	stateStreaming turnState = "Streaming"
	stateDone      turnState = "Done"
	stateFailed    turnState = "Failed"
	stateCancelled turnState = "Cancelled"
)

// Turn triggers.
type turnTrigger stateless.Trigger

var (
	triggerFirstEvent  turnTrigger = "FirstEvent"
	triggerStreamEnd   turnTrigger = "StreamEnd"
	triggerStreamError turnTrigger = "StreamError"
	triggerCancel      turnTrigger = "Cancel"
)

// turn tracks one user intent from dispatch to terminal outcome. A fresh
// turn, with fresh buffers, is built for every send, retry and regenerate,
// so deltas never leak across turns.
type turn struct {
	epoch        uint64
	fsm          *stateless.StateMachine
	userID       int64 // 0 when regenerating: no user bubble this turn
	assistantID  int64
	regenerating bool

	content    strings.Builder
	thinking   strings.Builder
	blocks     []ContentBlock
	structured bool // recording content blocks (thinking or tool call seen)

	handle StreamHandle
}

func newTurn(epoch uint64, userID, assistantID int64, regenerating bool) *turn {
	fsm := stateless.NewStateMachine(stateSending)
	fsm.Configure(stateSending).
		Permit(triggerFirstEvent, stateStreaming).
		Permit(triggerStreamEnd, stateDone).
		Permit(triggerStreamError, stateFailed).
		Permit(triggerCancel, stateCancelled)
	fsm.Configure(stateStreaming).
		Permit(triggerStreamEnd, stateDone).
		Permit(triggerStreamError, stateFailed).
		Permit(triggerCancel, stateCancelled)

	return &turn{
		epoch:        epoch,
		fsm:          fsm,
		userID:       userID,
		assistantID:  assistantID,
		regenerating: regenerating,
	}
}

func (t *turn) state() turnState {
	if s, ok := t.fsm.MustState().(turnState); ok {
		return s
	}
	return stateFailed
}

func (t *turn) terminal() bool {
	switch t.state() {
	case stateDone, stateFailed, stateCancelled:
		return true
	}
	return false
}

// fire advances the turn machine. An illegal trigger for the current
// state returns an error; the caller drops the event that carried it.
func (t *turn) fire(trigger turnTrigger) error {
	return t.fsm.Fire(trigger)
}

// ensureStructured switches block recording on. Content streamed before
// the first thinking or tool event is backfilled as a text block so the
// block sequence stays faithful to production order.
func (t *turn) ensureStructured() {
	if t.structured {
		return
	}
	t.structured = true
	if t.content.Len() > 0 {
		t.blocks = append(t.blocks, ContentBlock{Kind: BlockText, Content: t.content.String()})
	}
}

// beginThinking opens a streaming thinking block.
func (t *turn) beginThinking() {
	t.ensureStructured()
	t.blocks = append(t.blocks, ContentBlock{Kind: BlockThinking, IsStreaming: true})
}

// appendThinking accumulates a reasoning delta. A delta without a
// preceding thinking_start opens a block itself.
func (t *turn) appendThinking(delta string) {
	t.thinking.WriteString(delta)

	t.ensureStructured()
	if n := len(t.blocks); n > 0 {
		last := &t.blocks[n-1]
		if last.Kind == BlockThinking && last.IsStreaming {
			last.Content += delta
			return
		}
	}
	t.blocks = append(t.blocks, ContentBlock{Kind: BlockThinking, Content: delta, IsStreaming: true})
}

// endThinking closes the open thinking block, if any.
func (t *turn) endThinking() {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		if t.blocks[i].Kind == BlockThinking && t.blocks[i].IsStreaming {
			t.blocks[i].IsStreaming = false
			return
		}
	}
}

// appendContent accumulates an answer delta, extending the current text
// block when one is open.
func (t *turn) appendContent(delta string) {
	t.content.WriteString(delta)

	if !t.structured {
		return
	}
	if n := len(t.blocks); n > 0 && t.blocks[n-1].Kind == BlockText {
		t.blocks[n-1].Content += delta
		return
	}
	t.blocks = append(t.blocks, ContentBlock{Kind: BlockText, Content: delta})
}

// startTool records a tool invocation block.
func (t *turn) startTool(name, params string) {
	t.ensureStructured()
	t.blocks = append(t.blocks, ContentBlock{
		Kind:       BlockToolCall,
		ToolName:   name,
		ToolParams: params,
	})
}

// endTool completes the newest open tool block with the given name. An
// unmatched tool_end records a completed block on its own.
func (t *turn) endTool(name, result string) {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		b := &t.blocks[i]
		if b.Kind == BlockToolCall && b.ToolName == name && !b.IsComplete {
			b.ToolResult = result
			b.IsComplete = true
			return
		}
	}
	t.ensureStructured()
	t.blocks = append(t.blocks, ContentBlock{
		Kind:       BlockToolCall,
		ToolName:   name,
		ToolResult: result,
		IsComplete: true,
	})
}

// closeBlocks marks every still-streaming block finished. Used when a
// turn ends while a thinking section is open.
func (t *turn) closeBlocks() {
	for i := range t.blocks {
		t.blocks[i].IsStreaming = false
	}
}
