package store

import (
	"database/sql"
	"errors"
	"time"
)

// InsertMessage appends a message (idempotent on msg_id). Re-inserting an
// existing id refreshes translations and status only; content, author and
// created_at never change once written.
func (db *DB) InsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, content, original_language, translations, user_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO UPDATE SET
			translations = excluded.translations,
			status = excluded.status`,
		m.MsgID, m.Content, m.OriginalLanguage, marshalTranslations(m.Translations), m.UserName, m.Status, orNow(m.CreatedAt, now))
	return err
}

// ListMessagesAfter returns messages created strictly after ts, ascending.
// ts = 0 returns the full history.
func (db *DB) ListMessagesAfter(ts int64) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, msg_id, content, original_language, translations, user_name, status, created_at
		FROM messages
		WHERE created_at > ?
		ORDER BY created_at ASC`, ts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var translations string
		if err := rows.Scan(&m.ID, &m.MsgID, &m.Content, &m.OriginalLanguage, &translations, &m.UserName, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Translations = unmarshalTranslations(translations)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// getMessage reads a single row back by msg_id, or nil if absent. The sync
// engine resolves ids from its in-memory index; this read-back exists for
// asserting upsert semantics in tests.
func (db *DB) getMessage(msgID string) (*Message, error) {
	var m Message
	var translations string
	err := db.QueryRow(`
		SELECT id, msg_id, content, original_language, translations, user_name, status, created_at
		FROM messages WHERE msg_id = ?`, msgID).
		Scan(&m.ID, &m.MsgID, &m.Content, &m.OriginalLanguage, &translations, &m.UserName, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Translations = unmarshalTranslations(translations)
	return &m, nil
}

func orNow(ts, now int64) int64 {
	if ts > 0 {
		return ts
	}
	return now
}
