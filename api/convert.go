package api

import (
	"encoding/json"
	"time"

	"atui/chat"
)

// wireMessage is a persisted message as the backend serves it.
type wireMessage struct {
	ID            int64       `json:"id"`
	Role          string      `json:"role"`
	Content       string      `json:"content"`
	Thinking      string      `json:"thinking,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	ContentBlocks []wireBlock `json:"content_blocks,omitempty"`
}

// wireBlock is one persisted content segment.
type wireBlock struct {
	Type       string          `json:"type"`
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolParams json.RawMessage `json:"tool_params,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
}

// toMessage converts a backend row into a log entry. History always
// arrives settled, so the status is sent.
func (w wireMessage) toMessage() chat.Message {
	role := chat.RoleAssistant
	if w.Role == "user" {
		role = chat.RoleUser
	}

	msg := chat.Message{
		ID:        w.ID,
		Role:      role,
		Content:   w.Content,
		Thinking:  w.Thinking,
		Timestamp: w.CreatedAt,
		Status:    chat.StatusSent,
	}
	for _, b := range w.ContentBlocks {
		msg.Blocks = append(msg.Blocks, b.toBlock())
	}
	return msg
}

func (b wireBlock) toBlock() chat.ContentBlock {
	switch b.Type {
	case "thinking":
		return chat.ContentBlock{Kind: chat.BlockThinking, Content: b.Content}
	case "tool_call":
		return chat.ContentBlock{
			Kind:       chat.BlockToolCall,
			ToolName:   b.ToolName,
			ToolParams: string(b.ToolParams),
			ToolResult: b.ToolResult,
			IsComplete: true,
		}
	default:
		return chat.ContentBlock{Kind: chat.BlockText, Content: b.Content}
	}
}
