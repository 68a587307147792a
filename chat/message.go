package chat

import (
	"fmt"
	"strings"
	"time"
)

// NoConversation is the conversation id while no conversation is active.
const NoConversation int64 = -1

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks a message through its delivery lifecycle.
type Status string

const (
	StatusSending   Status = "sending"
	StatusStreaming Status = "streaming"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
)

// BlockKind discriminates ContentBlock variants.
type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockThinking BlockKind = "thinking"
	BlockToolCall BlockKind = "tool_call"
)

// ContentBlock is one typed segment of assistant output. Blocks keep the
// order in which thinking, text and tool calls were actually produced,
// which the flat Content string loses.
type ContentBlock struct {
	Kind BlockKind

	// Text and thinking blocks.
	Content string
	// Thinking blocks: still receiving deltas.
	IsStreaming bool

	// Tool call blocks.
	ToolName   string
	ToolParams string
	ToolResult string
	IsComplete bool
}

// Message is one entry in the visible conversation log.
type Message struct {
	ID          int64
	Provisional bool // id minted from the local clock, not server-assigned
	Role        Role
	Content     string
	Thinking    string
	Blocks      []ContentBlock
	Timestamp   time.Time
	Status      Status
	Error       string // set only while Status is StatusFailed
}

// WelcomeMessage builds the greeting shown when no conversation is active.
// The clock and user name come in as arguments so the timestamp is minted
// at session start, not at package load.
func WelcomeMessage(now time.Time, userName string) Message {
	greeting := "Hello"
	if name := strings.TrimSpace(userName); name != "" {
		greeting = fmt.Sprintf("Hello %s", name)
	}

	return Message{
		ID:        0,
		Role:      RoleAssistant,
		Content:   greeting + "! I'm Atlas. Ask me about jobs, machines, schedules, or anything else on the floor.",
		Timestamp: now,
		Status:    StatusSent,
	}
}
