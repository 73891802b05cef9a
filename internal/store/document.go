package store

import (
	"database/sql"
	"errors"
	"time"
)

// EnsureDocument inserts the singleton document row if it does not exist.
func (db *DB) EnsureDocument() error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO documents (id, content, translations, updated_at)
		VALUES (?, '', '{}', ?)
		ON CONFLICT(id) DO NOTHING`, DocumentID, now)
	return err
}

// GetDocument reads the singleton document, or nil if it was never created.
func (db *DB) GetDocument() (*Document, error) {
	var d Document
	var translations string
	err := db.QueryRow(`
		SELECT id, content, translations, updated_at FROM documents WHERE id = ?`, DocumentID).
		Scan(&d.ID, &d.Content, &translations, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.Translations = unmarshalTranslations(translations)
	return &d, nil
}

// UpsertDocument writes a content snapshot. Translations are stored exactly
// as given; snapshotting a live edit passes an empty map so readers know the
// previous translations no longer apply to this revision.
func (db *DB) UpsertDocument(content string, translations map[string]string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO documents (id, content, translations, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			translations = excluded.translations,
			updated_at = excluded.updated_at`,
		DocumentID, content, marshalTranslations(translations), now)
	return err
}

// SetDocumentTranslations replaces the stored translations without touching
// content. This is the write path of the enrichment job.
func (db *DB) SetDocumentTranslations(translations map[string]string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE documents SET translations = ?, updated_at = ? WHERE id = ?`,
		marshalTranslations(translations), now, DocumentID)
	return err
}
