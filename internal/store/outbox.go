package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a journal row does not exist.
var ErrNotFound = errors.New("store: not found")

// QueueOutbox records a send before it leaves for the backend.
func (db *DB) QueueOutbox(e OutboxEntry) error {
	vars := ""
	if len(e.TemplateVars) > 0 {
		b, err := json.Marshal(e.TemplateVars)
		if err != nil {
			return fmt.Errorf("encode template vars: %w", err)
		}
		vars = string(b)
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_id, phone, contact_id, body, template_id, template_vars, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.ClientID, e.Phone, e.ContactID, e.Body, e.TemplateID, vars, now, now)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent' with the server message ID.
func (db *DB) MarkOutboxSent(clientID, serverID string) error {
	now := time.Now().UnixMilli()
	return db.touch(`UPDATE outbox SET status = 'sent', server_id = ?, error_message = '', updated_at = ? WHERE client_id = ?`, serverID, now, clientID)
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientID, errMsg string) error {
	now := time.Now().UnixMilli()
	return db.touch(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_id = ?`, errMsg, now, clientID)
}

// MarkOutboxResent links a failed entry to the client id of its retry.
func (db *DB) MarkOutboxResent(clientID, newClientID string) error {
	now := time.Now().UnixMilli()
	return db.touch(`UPDATE outbox SET resent_as = ?, updated_at = ? WHERE client_id = ?`, newClientID, now, clientID)
}

func (db *DB) touch(query string, args ...any) error {
	res, err := db.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOutbox returns a single entry by client id.
func (db *DB) GetOutbox(clientID string) (OutboxEntry, error) {
	row := db.QueryRow(`SELECT `+outboxColumns+` FROM outbox WHERE client_id = ?`, clientID)
	e, err := scanOutbox(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// PendingOutbox returns outbox entries that are still queued.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	return db.queryOutbox(`SELECT ` + outboxColumns + ` FROM outbox WHERE status = 'queued' ORDER BY created_at ASC`)
}

// FailedOutbox returns failed entries that have not been retried, oldest first.
func (db *DB) FailedOutbox() ([]OutboxEntry, error) {
	return db.queryOutbox(`SELECT ` + outboxColumns + ` FROM outbox WHERE status = 'failed' AND resent_as = '' ORDER BY created_at ASC`)
}

// AbandonQueued fails every entry still queued. Called at startup: a queued
// row means the previous daemon died before the backend answered.
func (db *DB) AbandonQueued(reason string) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE status = 'queued'`, reason, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const outboxColumns = `client_id, phone, contact_id, body, template_id, template_vars, status, server_id, error_message, resent_as, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOutbox(s scanner) (OutboxEntry, error) {
	var e OutboxEntry
	var vars string
	if err := s.Scan(&e.ClientID, &e.Phone, &e.ContactID, &e.Body, &e.TemplateID, &vars,
		&e.Status, &e.ServerID, &e.ErrorMessage, &e.ResentAs, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, err
	}
	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &e.TemplateVars); err != nil {
			return e, fmt.Errorf("decode template vars: %w", err)
		}
	}
	return e, nil
}

func (db *DB) queryOutbox(query string, args ...any) ([]OutboxEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
