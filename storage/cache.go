package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"atui/chat"
)

// CachedConversation mirrors a backend conversation row for offline listing.
type CachedConversation struct {
	ID                 int64
	Title              string
	Summary            string
	LastMessagePreview string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Cache is the local sqlite mirror of backend conversations and messages.
// It is best effort: callers treat every write failure as non-fatal.
type Cache struct {
	db      *sql.DB
	dataDir string
}

func OpenCache(dataDir string) (*Cache, error) {
	dbPath := filepath.Join(dataDir, "cache.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	cache := &Cache{db: db, dataDir: dataDir}

	if err := cache.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cache, nil
}

func (c *Cache) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			last_message_preview TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			thinking TEXT NOT NULL DEFAULT '',
			blocks TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
	}

	for _, stmt := range schema {
		if _, err := c.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// SaveConversation upserts a conversation row.
func (c *Cache) SaveConversation(conv CachedConversation) error {
	query := `
	INSERT OR REPLACE INTO conversations (id, title, summary, last_message_preview, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query,
		conv.ID,
		conv.Title,
		conv.Summary,
		conv.LastMessagePreview,
		conv.CreatedAt,
		conv.UpdatedAt,
	)

	return err
}

// SaveConversations upserts a whole listing in one transaction.
func (c *Cache) SaveConversations(convs []CachedConversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO conversations (id, title, summary, last_message_preview, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	for _, conv := range convs {
		if _, err := tx.Exec(query,
			conv.ID,
			conv.Title,
			conv.Summary,
			conv.LastMessagePreview,
			conv.CreatedAt,
			conv.UpdatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Conversations returns all cached conversations, newest activity first.
func (c *Cache) Conversations() ([]CachedConversation, error) {
	query := `
	SELECT id, title, summary, last_message_preview, created_at, updated_at
	FROM conversations
	ORDER BY updated_at DESC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []CachedConversation
	for rows.Next() {
		var conv CachedConversation
		err := rows.Scan(
			&conv.ID,
			&conv.Title,
			&conv.Summary,
			&conv.LastMessagePreview,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			continue
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// Conversation loads a single cached conversation. Missing rows are not an error.
func (c *Cache) Conversation(id int64) (*CachedConversation, error) {
	query := `
	SELECT id, title, summary, last_message_preview, created_at, updated_at
	FROM conversations
	WHERE id = ?
	`

	var conv CachedConversation
	err := c.db.QueryRow(query, id).Scan(
		&conv.ID,
		&conv.Title,
		&conv.Summary,
		&conv.LastMessagePreview,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &conv, nil
}

// RenameConversation updates the cached title.
func (c *Cache) RenameConversation(id int64, title string) error {
	_, err := c.db.Exec(`UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	return err
}

// DeleteConversation removes a conversation and, via cascade, its messages.
func (c *Cache) DeleteConversation(id int64) error {
	_, err := c.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// SaveMessage upserts one message. Provisional messages have no server id
// yet and are skipped so the cache never diverges from backend identity.
func (c *Cache) SaveMessage(conversationID int64, msg chat.Message) error {
	if msg.Provisional || msg.ID == 0 {
		return nil
	}

	var blocks any
	if len(msg.Blocks) > 0 {
		data, err := json.Marshal(msg.Blocks)
		if err != nil {
			return fmt.Errorf("failed to marshal content blocks: %w", err)
		}
		blocks = string(data)
	}

	query := `
	INSERT OR REPLACE INTO messages (id, conversation_id, role, content, thinking, blocks, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query,
		msg.ID,
		conversationID,
		string(msg.Role),
		msg.Content,
		msg.Thinking,
		blocks,
		msg.Timestamp,
	)

	return err
}

// SaveMessages upserts a batch of messages in one transaction.
func (c *Cache) SaveMessages(conversationID int64, msgs []chat.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO messages (id, conversation_id, role, content, thinking, blocks, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, msg := range msgs {
		if msg.Provisional || msg.ID == 0 {
			continue
		}

		var blocks any
		if len(msg.Blocks) > 0 {
			data, err := json.Marshal(msg.Blocks)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to marshal content blocks: %w", err)
			}
			blocks = string(data)
		}

		if _, err := tx.Exec(query,
			msg.ID,
			conversationID,
			string(msg.Role),
			msg.Content,
			msg.Thinking,
			blocks,
			msg.Timestamp,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Messages returns all cached messages for a conversation in id order.
// Used as the offline fallback when the backend is unreachable.
func (c *Cache) Messages(conversationID int64) ([]chat.Message, error) {
	query := `
	SELECT id, role, content, thinking, blocks, created_at
	FROM messages
	WHERE conversation_id = ?
	ORDER BY id ASC
	`

	rows, err := c.db.Query(query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			msg    chat.Message
			role   string
			blocks sql.NullString
		)
		err := rows.Scan(
			&msg.ID,
			&role,
			&msg.Content,
			&msg.Thinking,
			&blocks,
			&msg.Timestamp,
		)
		if err != nil {
			continue
		}

		msg.Role = chat.Role(role)
		msg.Status = chat.StatusSent
		if blocks.Valid && blocks.String != "" {
			if err := json.Unmarshal([]byte(blocks.String), &msg.Blocks); err != nil {
				msg.Blocks = nil
			}
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// SaveLastConversationID records which conversation was open so the next
// launch can restore it.
func (c *Cache) SaveLastConversationID(id int64) error {
	path := filepath.Join(c.dataDir, "last_conversation.id")
	return os.WriteFile(path, []byte(strconv.FormatInt(id, 10)), 0600)
}

// LoadLastConversationID returns the conversation open at last exit.
// A missing or unreadable pointer file means no conversation.
func (c *Cache) LoadLastConversationID() int64 {
	path := filepath.Join(c.dataDir, "last_conversation.id")
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.NoConversation
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || id <= 0 {
		return chat.NoConversation
	}
	return id
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
