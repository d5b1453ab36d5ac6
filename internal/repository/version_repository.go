package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

const versionColumns = `id, document_id, version, link, extension, mime_type, size_bytes, created_at`

// VersionRepository persists the append-only ledger of prior file contents.
// Replace and restore run inside a transaction holding a row lock on the
// document, which serializes concurrent content mutations per document.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// InTx runs fn inside a transaction, committing on success.
func (r *VersionRepository) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version tx: %w", err)
	}
	return nil
}

// LockDocument loads the document row under FOR UPDATE within the transaction.
func (r *VersionRepository) LockDocument(ctx context.Context, tx *sqlx.Tx, documentID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	var doc models.Document
	if err := tx.GetContext(ctx, &doc, query, documentID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CreateInTx inserts a ledger entry as part of a replace/restore transaction.
func (r *VersionRepository) CreateInTx(ctx context.Context, tx *sqlx.Tx, v *models.DocumentVersion) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_versions
	(id, document_id, version, link, extension, mime_type, size_bytes, created_at)
	VALUES (:id, :document_id, :version, :link, :extension, :mime_type, :size_bytes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

// UpdateContentInTx rewrites the document's active content metadata after a
// replace or restore, bumping the version counter.
func (r *VersionRepository) UpdateContentInTx(ctx context.Context, tx *sqlx.Tx, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents
	SET link = :link, extension = :extension, mime_type = :mime_type, size_bytes = :size_bytes,
	    version = :version, scan_status = :scan_status, quarantined = :quarantined,
	    updated_at = :updated_at
	WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document content: %w", err)
	}
	return nil
}

// GetByID retrieves one ledger entry.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE id = $1`
	var v models.DocumentVersion
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByDocument returns the ledger for a document, newest first.
func (r *VersionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM document_versions WHERE document_id = $1 ORDER BY created_at DESC, version DESC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// DeleteByDocument removes all ledger rows for a document being destroyed.
func (r *VersionRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM document_versions WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document versions: %w", err)
	}
	return nil
}
