package models

import "time"

// AuditAction constants represent document operations to be logged.
const (
	AuditActionUpload             = "DOCUMENT_UPLOAD"
	AuditActionReplace            = "DOCUMENT_REPLACE"
	AuditActionRestore            = "DOCUMENT_RESTORE"
	AuditActionDelete             = "DOCUMENT_DELETE"
	AuditActionMove               = "DOCUMENT_MOVE"
	AuditActionDownload           = "DOCUMENT_DOWNLOAD"
	AuditActionBulkDownload       = "DOCUMENT_BULK_DOWNLOAD"
	AuditActionShareCreate        = "SHARE_CREATE"
	AuditActionShareRevoke        = "SHARE_REVOKE"
	AuditActionShareResolve       = "SHARE_RESOLVE"
	AuditActionQuarantineOverride = "QUARANTINE_OVERRIDE"
)

// AuditLogEntry is an append-only record of who did what to which document.
// Entries are never updated or deleted by normal operation and survive the
// deletion of the document they reference.
type AuditLogEntry struct {
	ID         string    `db:"id" json:"id"`
	DocumentID *string   `db:"document_id" json:"documentId,omitempty"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	ActorType  ActorType `db:"actor_type" json:"actorType"`
	Action     string    `db:"action" json:"action"`
	Metadata   []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
