package models

import "time"

// DocumentVersion is an immutable snapshot of file content that was about to
// be overwritten. Version records the number the content carried while active.
type DocumentVersion struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	Version    int       `db:"version" json:"version"`
	Link       string    `db:"link" json:"link"`
	Extension  string    `db:"extension" json:"extension"`
	MimeType   string    `db:"mime_type" json:"mimeType"`
	SizeBytes  int64     `db:"size_bytes" json:"sizeBytes"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
