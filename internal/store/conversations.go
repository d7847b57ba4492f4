package store

import (
	"fmt"
	"time"

	"github.com/talentpipe/inboxsync/internal/model"
)

// SaveConversations replaces the cached conversation list, keeping its order.
func (db *DB) SaveConversations(list []model.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO conversations (phone, contact_id, name, last_message, last_message_at, message_count, known, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO NOTHING`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range list {
		var at int64
		if !c.LastMessageAt.IsZero() {
			at = c.LastMessageAt.UnixMilli()
		}
		if _, err := stmt.Exec(c.Phone, c.ContactID, c.Name, c.LastMessage, at, c.MessageCount, c.Known, i); err != nil {
			return fmt.Errorf("insert conversation %s: %w", c.Phone, err)
		}
	}
	return tx.Commit()
}

// LoadConversations returns the cached list in saved order.
func (db *DB) LoadConversations() ([]model.Conversation, error) {
	rows, err := db.Query(`
		SELECT phone, contact_id, name, last_message, last_message_at, message_count, known
		FROM conversations ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var list []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var at int64
		if err := rows.Scan(&c.Phone, &c.ContactID, &c.Name, &c.LastMessage, &at, &c.MessageCount, &c.Known); err != nil {
			return nil, err
		}
		if at > 0 {
			c.LastMessageAt = time.UnixMilli(at)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
