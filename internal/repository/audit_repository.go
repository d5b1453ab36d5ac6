package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

// AuditRepository appends to the document audit trail. Rows are never updated
// or deleted by normal operation; deleting a document leaves its trail intact.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_audit_log
	(id, document_id, actor_id, actor_type, action, metadata, created_at)
	VALUES (:id, :document_id, :actor_id, :actor_type, :action, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListByDocument returns the trail for one document, newest first.
func (r *AuditRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT id, document_id, actor_id, actor_type, action, metadata, created_at
	FROM document_audit_log WHERE document_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []models.AuditLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, documentID, limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
