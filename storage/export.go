package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atui/chat"
)

// ConversationExport is the JSON document written by ExportConversation.
type ConversationExport struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	Summary    string         `json:"summary,omitempty"`
	ExportedAt time.Time      `json:"exported_at"`
	Messages   []chat.Message `json:"messages"`
}

// ExportConversation writes a cached conversation and its messages to a
// JSON file at the given path.
func (c *Cache) ExportConversation(id int64, exportPath string) error {
	conv, err := c.Conversation(id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation %d not in local cache", id)
	}

	msgs, err := c.Messages(id)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	export := ConversationExport{
		ID:         conv.ID,
		Title:      conv.Title,
		Summary:    conv.Summary,
		ExportedAt: time.Now(),
		Messages:   msgs,
	}

	// Marshal with indentation for readability
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Ensure directory exists (0700 - user-only access)
	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to file (0600 - exports contain conversation history)
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// SanitizeFilename removes or replaces characters that are invalid in filenames
func SanitizeFilename(name string) string {
	// Replace problematic characters with hyphens
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, ":", "-")
	name = strings.ReplaceAll(name, "*", "-")
	name = strings.ReplaceAll(name, "?", "-")
	name = strings.ReplaceAll(name, "\"", "-")
	name = strings.ReplaceAll(name, "<", "-")
	name = strings.ReplaceAll(name, ">", "-")
	name = strings.ReplaceAll(name, "|", "-")
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "\n", "-")
	name = strings.ReplaceAll(name, "\r", "-")

	// Remove leading/trailing hyphens and dots
	name = strings.Trim(name, "-.")

	// Limit length
	if len(name) > 50 {
		name = name[:50]
	}

	// If empty after sanitization, use generic name
	if name == "" {
		name = "conversation"
	}

	return name
}

// GenerateExportPath generates a default export path for a conversation
func GenerateExportPath(title string) string {
	// Get Downloads directory (platform-specific)
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE") // Windows fallback
	}

	downloadsDir := filepath.Join(homeDir, "Downloads")

	// Sanitize conversation title for filename
	sanitized := SanitizeFilename(title)

	// Generate timestamp
	timestamp := time.Now().Format("20060102-150405")

	// Generate filename
	filename := fmt.Sprintf("atui-conversation-%s-%s.json", sanitized, timestamp)

	return filepath.Join(downloadsDir, filename)
}
